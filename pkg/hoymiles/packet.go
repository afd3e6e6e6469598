package hoymiles

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	CMD_REQUEST_INFO   = 0x15
	SUBCMD_REAL_TIME   = 0x0B
	FRAME_LAST         = 0x80
	HEADER_SIZE        = 10
	MIN_FRAME_SIZE     = HEADER_SIZE + 1
	MAX_PACKET_SIZE    = 32
	REQUEST_INFO_SIZE  = 27
	requestPayloadSize = 14
)

// Frame is a validated radio frame with the header and checksum stripped.
type Frame struct {
	Number   byte
	Sequence int
	Last     bool
	Payload  []byte
}

// BuildRequestInfoPacket creates the escaped real time info request sent by the DTU to the inverter.
func BuildRequestInfoPacket(receiver, sender Address, ts time.Time) ([]byte, error) {
	packet := make([]byte, 0, REQUEST_INFO_SIZE)
	packet = append(packet, CMD_REQUEST_INFO)
	packet = append(packet, receiver[:]...)
	packet = append(packet, sender[:]...)
	packet = append(packet, FRAME_LAST)

	payload := requestInfoPayload(ts)
	packet = append(packet, payload...)
	packet = binary.BigEndian.AppendUint16(packet, Crc16(payload))
	packet = append(packet, Crc8(packet))

	if len(packet) != REQUEST_INFO_SIZE {
		return nil, fmt.Errorf("request info packet has %d bytes, want %d: %w", len(packet), REQUEST_INFO_SIZE, ErrPacketSizeInvariantViolation)
	}

	escaped := Escape(packet)
	if len(escaped) > MAX_PACKET_SIZE {
		return nil, fmt.Errorf("escaped request info packet has %d bytes, max %d: %w", len(escaped), MAX_PACKET_SIZE, ErrPacketSizeInvariantViolation)
	}
	return escaped, nil
}

func requestInfoPayload(ts time.Time) []byte {
	payload := make([]byte, requestPayloadSize)
	payload[0] = SUBCMD_REAL_TIME
	payload[1] = 0x00 // revision
	binary.BigEndian.PutUint32(payload[2:6], uint32(ts.Unix()))
	payload[9] = 0x05
	return payload
}

// ValidateAndStrip unescapes a received frame, checks its checksum and addresses and strips the header.
func ValidateAndStrip(raw []byte, expected Address) (Frame, error) {
	data, err := Unescape(raw)
	if err != nil {
		return Frame{}, err
	}
	if len(data) < MIN_FRAME_SIZE {
		return Frame{}, fmt.Errorf("frame has %d bytes, min %d: %w", len(data), MIN_FRAME_SIZE, ErrFraming)
	}
	last := len(data) - 1
	if sum := Crc8(data[:last]); sum != data[last] {
		return Frame{}, fmt.Errorf("frame crc8 %02X, computed %02X: %w", data[last], sum, ErrChecksumMismatch)
	}
	if !bytes.Equal(data[1:5], expected[:]) || !bytes.Equal(data[5:9], expected[:]) {
		return Frame{}, fmt.Errorf("frame addresses %X/%X, want %s: %w", data[1:5], data[5:9], expected, ErrAddressMismatch)
	}
	number := data[9]
	return Frame{
		Number:   number,
		Sequence: int(number & 0x0F),
		Last:     number&FRAME_LAST != 0,
		Payload:  data[HEADER_SIZE:last],
	}, nil
}
