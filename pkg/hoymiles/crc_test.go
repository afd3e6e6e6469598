package hoymiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrc8(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(uint8(0x9D), Crc8([]byte{0x15, 1, 2, 3, 4, 5, 6, 7, 8, 0x80}), "header crc8")
	assert.Equal(uint8(0x31), Crc8([]byte("123456789")), "check value")
	assert.Equal(uint8(0x00), Crc8(nil), "empty input")
}

func TestCrc8DetectsBitFlips(t *testing.T) {

	assert := assert.New(t)

	data := []byte{0x15, 1, 2, 3, 4, 5, 6, 7, 8, 0x80}
	ref := Crc8(data)
	for i := range data {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= 1 << bit
			assert.NotEqual(ref, Crc8(mutated), "flip byte %d bit %d", i, bit)
		}
	}
}

func TestCrc16(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(uint16(0x4B37), Crc16([]byte("123456789")), "modbus check value")
	assert.Equal(uint16(0xFFFF), Crc16(nil), "init value")
}
