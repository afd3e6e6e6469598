package sml

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

const (
	MAX_FRAME_SIZE        = 1024
	DEFAULT_FRAME_TIMEOUT = 3 * time.Second
	readChunkSize         = 64
)

var startSequence = append(append([]byte(nil), ESCAPE_SEQUENCE...), VERSION_1...)

// ByteSource is a byte stream with a bounded per-read timeout. Read returns 0 bytes and no error when
// the timeout elapses without data.
type ByteSource interface {
	Read(p []byte) (int, error)
	ResetInputBuffer() error
}

// FrameReader cuts complete transport frames out of a ByteSource.
type FrameReader struct {
	src          ByteSource
	frameTimeout time.Duration
	maxFrameSize int
}

type FrameReaderOption func(*FrameReader)

func WithFrameTimeout(timeout time.Duration) FrameReaderOption {
	return func(r *FrameReader) {
		r.frameTimeout = timeout
	}
}

func WithMaxFrameSize(size int) FrameReaderOption {
	return func(r *FrameReader) {
		r.maxFrameSize = size
	}
}

func NewFrameReader(src ByteSource, opts ...FrameReaderOption) *FrameReader {
	r := &FrameReader{
		src:          src,
		frameTimeout: DEFAULT_FRAME_TIMEOUT,
		maxFrameSize: MAX_FRAME_SIZE,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFrame drops buffered input, waits for the next start sequence and returns the frame up to and
// including its checksum.
func (r *FrameReader) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := r.src.ResetInputBuffer(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(r.frameTimeout)
	chunk := make([]byte, readChunkSize)
	var buf []byte
	synced := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no complete frame within %s (%d bytes buffered): %w", r.frameTimeout, len(buf), ErrFrameTimeout)
		}

		n, err := r.src.Read(chunk)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		buf = append(buf, chunk[:n]...)

		if !synced {
			idx := bytes.Index(buf, startSequence)
			if idx < 0 {
				// keep a possible partial start sequence
				if keep := len(startSequence) - 1; len(buf) > keep {
					buf = append(buf[:0], buf[len(buf)-keep:]...)
				}
				continue
			}
			buf = append(buf[:0], buf[idx:]...)
			synced = true
		}

		if end := frameEnd(buf); end > 0 {
			return bytes.Clone(buf[:end]), nil
		}
		if len(buf) > r.maxFrameSize {
			return nil, fmt.Errorf("no end sequence within %d bytes: %w", r.maxFrameSize, ErrFraming)
		}
	}
}

// frameEnd returns the length of the frame at the start of buf, or 0 if the end sequence has not
// arrived yet. Escape sequences are 4-byte aligned, an escaped escape is a doubled sequence.
func frameEnd(buf []byte) int {
	for i := 8; i+8 <= len(buf); i += 4 {
		if !bytes.Equal(buf[i:i+4], ESCAPE_SEQUENCE) {
			continue
		}
		if buf[i+4] == END_MARKER {
			return i + 8
		}
		if bytes.Equal(buf[i+4:i+8], ESCAPE_SEQUENCE) {
			i += 4
		}
	}
	return 0
}
