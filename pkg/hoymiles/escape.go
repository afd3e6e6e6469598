package hoymiles

import "fmt"

const escapeByte = 0x7D

// Escape replaces 0x7D, 0x7E and 0x7F by 0x7D followed by the byte xor 0x20.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	for _, b := range data {
		switch b {
		case 0x7D, 0x7E, 0x7F:
			out = append(out, escapeByte, b^0x20)
		default:
			out = append(out, b)
		}
	}
	return out
}

func Unescape(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != escapeByte {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(data) {
			return nil, fmt.Errorf("trailing escape byte at %d: %w", i-1, ErrEscapeSequenceInvalid)
		}
		switch data[i] {
		case 0x5D, 0x5E, 0x5F:
			out = append(out, data[i]^0x20)
		default:
			return nil, fmt.Errorf("invalid escape sequence 7D %02X at %d: %w", data[i], i-1, ErrEscapeSequenceInvalid)
		}
	}
	return out, nil
}
