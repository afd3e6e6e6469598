package hoymiles

import (
	"encoding/binary"
	"fmt"
)

const (
	ONE_CHANNEL_PAYLOAD_SIZE = 30
	TWO_CHANNEL_PAYLOAD_SIZE = 42
)

// DecodeInverterInfo maps a reassembled real time info payload to physical values.
func DecodeInverterInfo(payload []byte, channels int) (*InverterReading, error) {
	switch channels {
	case 1:
		if len(payload) < ONE_CHANNEL_PAYLOAD_SIZE {
			return nil, fmt.Errorf("1 channel payload has %d bytes, want %d: %w", len(payload), ONE_CHANNEL_PAYLOAD_SIZE, ErrFraming)
		}
		return decodeOneChannel(payload), nil
	case 2:
		if len(payload) < TWO_CHANNEL_PAYLOAD_SIZE {
			return nil, fmt.Errorf("2 channel payload has %d bytes, want %d: %w", len(payload), TWO_CHANNEL_PAYLOAD_SIZE, ErrFraming)
		}
		return decodeTwoChannels(payload), nil
	default:
		// the 4 channel layout has not been verified against a real capture
		return nil, fmt.Errorf("inverter with %d channel(s): %w", channels, ErrUnsupportedInverterType)
	}
}

func decodeOneChannel(p []byte) *InverterReading {
	return &InverterReading{
		Channels: []ChannelReading{
			{
				Voltage:     u16(p, 2) / 10,
				Current:     u16(p, 4) / 100,
				Power:       u16(p, 6) / 10,
				EnergyTotal: u32(p, 8) / 1000,
				EnergyToday: u16(p, 12),
			},
		},
		AC:    decodeAC(p, 14),
		Event: binary.BigEndian.Uint16(p[28:30]),
	}
}

func decodeTwoChannels(p []byte) *InverterReading {
	return &InverterReading{
		Channels: []ChannelReading{
			{
				Voltage:     u16(p, 2) / 10,
				Current:     u16(p, 4) / 100,
				Power:       u16(p, 6) / 10,
				EnergyTotal: u32(p, 14) / 1000,
				EnergyToday: u16(p, 22),
			},
			{
				Voltage:     u16(p, 8) / 10,
				Current:     u16(p, 10) / 100,
				Power:       u16(p, 12) / 10,
				EnergyTotal: u32(p, 18) / 1000,
				EnergyToday: u16(p, 24),
			},
		},
		AC:    decodeAC(p, 26),
		Event: binary.BigEndian.Uint16(p[40:42]),
	}
}

// AC block: V, F, P, Q, I, PF, T
func decodeAC(p []byte, off int) ACReading {
	return ACReading{
		Voltage:       u16(p, off) / 10,
		Frequency:     u16(p, off+2) / 100,
		Power:         u16(p, off+4) / 10,
		ReactivePower: i16(p, off+6) / 10,
		Current:       u16(p, off+8) / 100,
		PowerFactor:   i16(p, off+10) / 1000,
		Temperature:   i16(p, off+12) / 10,
	}
}

func u16(p []byte, off int) float64 {
	return float64(binary.BigEndian.Uint16(p[off : off+2]))
}

func i16(p []byte, off int) float64 {
	return float64(int16(binary.BigEndian.Uint16(p[off : off+2])))
}

func u32(p []byte, off int) float64 {
	return float64(binary.BigEndian.Uint32(p[off : off+4]))
}
