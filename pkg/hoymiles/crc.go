package hoymiles

import (
	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
)

// x^8+1, not reflected, no xor-out
var crc8Params = crc8.Params{
	Poly:   0x01,
	Init:   0x00,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
	Check:  0x31,
	Name:   "CRC-8/HOYMILES",
}

var (
	crc8Table  = crc8.MakeTable(crc8Params)
	crc16Table = crc16.MakeTable(crc16.CRC16_MODBUS)
)

// Crc8 computes the packet checksum over data.
func Crc8(data []byte) uint8 {
	return crc8.Checksum(data, crc8Table)
}

// Crc16 computes the payload checksum over data. It is sent big-endian.
func Crc16(data []byte) uint16 {
	return crc16.Checksum(data, crc16Table)
}
