package hoymiles

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Address is a 4 byte radio identifier, big-endian.
type Address [4]byte

func (a Address) String() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}

// RadioPipe returns the 5 byte nRF24 pipe address used on air for a.
func (a Address) RadioPipe() []byte {
	return append([]byte{0x01}, a[:]...)
}

func ParseAddress(s string) (Address, error) {
	var addr Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: must be 4 bytes", s)
	}
	copy(addr[:], raw)
	return addr, nil
}

// SerialNumber is a parsed inverter serial number as printed on the case sticker.
type SerialNumber struct {
	Value    string
	Channels int
	Address  Address
}

// ParseSerialNumber validates the 12 digit serial number and derives the channel count and radio address.
func ParseSerialNumber(serial string) (SerialNumber, error) {
	serial = strings.TrimSpace(serial)
	if len(serial) != 12 {
		return SerialNumber{}, fmt.Errorf("serial number %q must have 12 digits: %w", serial, ErrUnsupportedSerialNumber)
	}
	for _, c := range serial {
		if c < '0' || c > '9' {
			return SerialNumber{}, fmt.Errorf("serial number %q must be decimal: %w", serial, ErrUnsupportedSerialNumber)
		}
	}
	channels, err := channelsFromSerial(serial)
	if err != nil {
		return SerialNumber{}, err
	}
	addr, err := ParseAddress(serial[4:])
	if err != nil {
		return SerialNumber{}, fmt.Errorf("serial number %q: %w", serial, ErrUnsupportedSerialNumber)
	}
	return SerialNumber{
		Value:    serial,
		Channels: channels,
		Address:  addr,
	}, nil
}

func channelsFromSerial(serial string) (int, error) {
	if prefix := serial[0:2]; prefix == "10" || prefix == "11" {
		switch serial[2:4] {
		case "21", "22", "24":
			return 1, nil
		case "41", "42", "44":
			return 2, nil
		case "61", "62", "64":
			return 4, nil
		}
	}
	return 0, fmt.Errorf("inverter type with serial number %s: %w", serial, ErrUnsupportedSerialNumber)
}

// DtuAddressFromUUID derives the local radio address from the decimal digits of a UUID.
func DtuAddressFromUUID(u uuid.UUID) Address {
	n := new(big.Int).SetBytes(u[:])
	ten := big.NewInt(10)
	digit := new(big.Int)

	var id uint64
	for i := 0; i < 7; i++ {
		n.DivMod(n, ten, digit)
		id |= digit.Uint64()
		id <<= 4
	}
	id |= 0x80000000

	var addr Address
	binary.BigEndian.PutUint32(addr[:], uint32(id))
	return addr
}

// NewDtuAddress derives a DTU address from a fresh time based UUID.
func NewDtuAddress() (Address, error) {
	u, err := uuid.NewUUID()
	if err != nil {
		return Address{}, err
	}
	return DtuAddressFromUUID(u), nil
}
