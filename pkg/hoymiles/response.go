package hoymiles

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ResponseSet collects the frames received for one request attempt, in arrival order.
type ResponseSet struct {
	address  Address
	channels int
	frames   []Frame
	invalid  []error
	foreign  int
}

type FrameKind int

const (
	FRAME_ACCEPTED FrameKind = iota
	FRAME_INVALID
	FRAME_FOREIGN
)

func NewResponseSet(address Address, channels int) *ResponseSet {
	return &ResponseSet{
		address:  address,
		channels: channels,
	}
}

// Add validates a raw frame. Frames from another sender are dropped, corrupted ones spoil the set.
func (s *ResponseSet) Add(raw []byte) (FrameKind, error) {
	frame, err := ValidateAndStrip(raw, s.address)
	switch {
	case errors.Is(err, ErrAddressMismatch):
		s.foreign++
		return FRAME_FOREIGN, err
	case err != nil:
		s.invalid = append(s.invalid, err)
		return FRAME_INVALID, err
	}
	s.frames = append(s.frames, frame)
	return FRAME_ACCEPTED, nil
}

func (s *ResponseSet) Len() int {
	return len(s.frames) + len(s.invalid)
}

func (s *ResponseSet) Foreign() int {
	return s.foreign
}

// Payload returns the reassembled payload without its trailing CRC16.
func (s *ResponseSet) Payload() ([]byte, error) {
	if len(s.invalid) > 0 {
		return nil, fmt.Errorf("%d invalid frame(s): %w", len(s.invalid), s.invalid[0])
	}
	return Reassemble(s.frames, s.channels)
}

// Reassemble checks that frames are numbered 1..N with the last flag only on N, where N is channels+1,
// concatenates their payloads in that order and verifies the trailing CRC16.
func Reassemble(frames []Frame, channels int) ([]byte, error) {
	expected := channels + 1
	if len(frames) != expected {
		return nil, fmt.Errorf("got %d frames, want %d: %w", len(frames), expected, ErrIncompleteResponse)
	}

	var data []byte
	for i, frame := range frames {
		number := byte(i + 1)
		if i == expected-1 {
			number |= FRAME_LAST
		}
		if frame.Number != number {
			return nil, fmt.Errorf("frame %d has number %02X, want %02X: %w", i, frame.Number, number, ErrIncompleteResponse)
		}
		data = append(data, frame.Payload...)
	}

	if len(data) < 2 {
		return nil, fmt.Errorf("payload has %d bytes: %w", len(data), ErrFraming)
	}
	end := len(data) - 2
	want := binary.BigEndian.Uint16(data[end:])
	if sum := Crc16(data[:end]); sum != want {
		return nil, fmt.Errorf("payload crc16 %04X, computed %04X: %w", want, sum, ErrChecksumMismatch)
	}
	return data[:end], nil
}
