package sml

import (
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// TestByteSource replays Data in chunks. Once drained it behaves like an idle line and times out.
type TestByteSource struct {
	mu sync.Mutex

	Data        []byte
	Chunk       int
	ReadTimeout time.Duration
	Resets      int
}

func (s *TestByteSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.Data) == 0 {
		s.mu.Unlock()
		time.Sleep(s.ReadTimeout)
		return 0, nil
	}
	n := len(s.Data)
	if s.Chunk > 0 {
		n = min(n, s.Chunk)
	}
	n = copy(p, s.Data[:n])
	s.Data = s.Data[n:]
	s.mu.Unlock()
	return n, nil
}

func (s *TestByteSource) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Resets++
	return nil
}

// TestFrameBytes parses a space separated hex dump.
func TestFrameBytes(dump string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(dump, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}

// TEST_FRAME is a telegram of an eBZ DD3 meter.
const TEST_FRAME = "1B 1B 1B 1B 01 01 01 01 76 05 00 95 A0 D5 62 00 62 00 72 65 00 00 01 01 76 01 01 07 65 42 5A 44 44 33 0B 09 01 45 42 5A 01 00 2D 16 C3 01 01 63 32 DE 00 76 05 00 95 A0 D6 62 00 62 00 72 65 00 00 07 01 77 01 0B 09 01 45 42 5A 01 00 2D 16 C3 01 72 62 01 65 00 18 F1 35 7A 77 07 81 81 C7 82 03 FF 01 01 01 01 04 45 42 5A 01 77 07 01 00 00 00 09 FF 01 01 01 01 0B 09 01 45 42 5A 01 00 2D 16 C3 01 77 07 01 00 01 08 00 FF 64 01 01 80 01 62 1E 52 FB 69 00 00 00 08 BA 13 9B 6E 01 77 07 01 00 01 08 01 FF 01 01 62 1E 52 FB 69 00 00 00 08 B4 25 5B 8E 01 77 07 01 00 01 08 02 FF 01 01 62 1E 52 FB 69 00 00 00 00 05 EE 3F E0 01 77 07 01 00 02 08 00 FF 64 01 01 80 01 62 1E 52 FB 69 00 00 00 00 0D 18 5B 20 01 77 07 01 00 10 07 00 FF 01 01 62 1B 52 FE 55 00 00 01 85 01 77 07 01 00 24 07 00 FF 01 01 62 1B 52 FE 55 00 00 01 85 01 77 07 01 00 38 07 00 FF 01 01 62 1B 52 FE 55 00 00 00 00 01 77 07 01 00 4C 07 00 FF 01 01 62 1B 52 FE 55 00 00 00 00 01 01 01 63 88 D6 00 76 05 00 95 A0 D7 62 00 62 00 72 65 00 00 02 01 71 01 63 76 07 00 00 00 00 1B 1B 1B 1B 1A 03 4E 67"
