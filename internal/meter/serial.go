package meter

import (
	"errors"
	"time"

	"github.com/goburrow/serial"
)

// drained bytes after which ResetInputBuffer gives up waiting for a quiet line
const MAX_DRAIN_BYTES = 4096

// SerialSource adapts a serial port with read timeout to sml.ByteSource.
type SerialSource struct {
	port serial.Port
}

func OpenSerialSource(address string, baudRate int, readTimeout time.Duration) (*SerialSource, error) {
	port, err := serial.Open(&serial.Config{
		Address:  address,
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readTimeout,
	})
	if err != nil {
		return nil, err
	}
	return NewSerialSource(port), nil
}

func NewSerialSource(port serial.Port) *SerialSource {
	return &SerialSource{port: port}
}

func (s *SerialSource) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if errors.Is(err, serial.ErrTimeout) {
		return 0, nil
	}
	return n, err
}

// ResetInputBuffer discards pending input until the line is quiet for one read timeout.
func (s *SerialSource) ResetInputBuffer() error {
	buf := make([]byte, 256)
	drained := 0
	for drained < MAX_DRAIN_BYTES {
		n, err := s.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		drained += n
	}
	return nil
}

func (s *SerialSource) Close() error {
	return s.port.Close()
}
