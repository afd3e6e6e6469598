package sml

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_X_25)

// Crc16X25 computes the transport checksum over data. It is sent little-endian.
func Crc16X25(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
