package hoymiles

import (
	"encoding/binary"
	"sync"
)

const TEST_FRAME_DATA_SIZE = 16

// TestTransceiver is an in-memory radio. Each Write pops the next scripted answer and delivers its frames
// while listening. Once the script is exhausted, Answer (if set) is delivered for every write.
type TestTransceiver struct {
	mu sync.Mutex

	Script [][][]byte
	Answer [][]byte

	Channels    []uint8
	PowerLevels []PowerLevel
	Writes      [][]byte

	listening bool
	pending   [][]byte
}

func CreateTestTransceiver(serial SerialNumber) *TestTransceiver {
	return &TestTransceiver{
		Answer: TestResponseFrames(serial.Address, TestInfoPayload(serial.Channels)),
	}
}

func (t *TestTransceiver) SetChannel(channel uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Channels = append(t.Channels, channel)
	return nil
}

func (t *TestTransceiver) SetPowerLevel(level PowerLevel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PowerLevels = append(t.PowerLevels, level)
	return nil
}

func (t *TestTransceiver) StartListening() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listening = true
	return nil
}

func (t *TestTransceiver) StopListening() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listening = false
	return nil
}

func (t *TestTransceiver) Write(packet []byte) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Writes = append(t.Writes, append([]byte(nil), packet...))
	if len(t.Script) > 0 {
		t.pending = append(t.pending, t.Script[0]...)
		t.Script = t.Script[1:]
	} else {
		t.pending = append(t.pending, t.Answer...)
	}
	return true, nil
}

func (t *TestTransceiver) Available() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listening && len(t.pending) > 0, nil
}

func (t *TestTransceiver) ReadDynamicPayload() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return nil, nil
	}
	frame := t.pending[0]
	t.pending = t.pending[1:]
	return frame, nil
}

func (t *TestTransceiver) FlushTx() error {
	return nil
}

// FlushRx only clears the hardware fifo, frames still in the air are kept.
func (t *TestTransceiver) FlushRx() error {
	return nil
}

func (t *TestTransceiver) WriteCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Writes)
}

func (t *TestTransceiver) LastPowerLevel() PowerLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.PowerLevels) == 0 {
		return PA_MIN
	}
	return t.PowerLevels[len(t.PowerLevels)-1]
}

// TestResponseFrames splits payload plus its CRC16 into escaped inverter response frames.
func TestResponseFrames(addr Address, payload []byte) [][]byte {
	data := binary.BigEndian.AppendUint16(append([]byte(nil), payload...), Crc16(payload))

	var frames [][]byte
	for i := 0; len(data) > 0; i++ {
		n := min(TEST_FRAME_DATA_SIZE, len(data))
		number := byte(i + 1)
		if n == len(data) {
			number |= FRAME_LAST
		}
		frames = append(frames, TestFrame(addr, number, data[:n]))
		data = data[n:]
	}
	return frames
}

// TestFrame builds one escaped response frame.
func TestFrame(addr Address, number byte, data []byte) []byte {
	frame := []byte{CMD_REQUEST_INFO | 0x80}
	frame = append(frame, addr[:]...)
	frame = append(frame, addr[:]...)
	frame = append(frame, number)
	frame = append(frame, data...)
	frame = append(frame, Crc8(frame))
	return Escape(frame)
}

// TestInfoPayload returns a plausible real time info payload for a 1 or 2 channel inverter.
func TestInfoPayload(channels int) []byte {
	if channels == 1 {
		p := make([]byte, ONE_CHANNEL_PAYLOAD_SIZE)
		put16(p, 0, 0x0001)
		put16(p, 2, 325)     // 32.5 V
		put16(p, 4, 512)     // 5.12 A
		put16(p, 6, 1664)    // 166.4 W
		put32(p, 8, 1234567) // 1234.567 kWh
		put16(p, 12, 1520)   // 1520 Wh
		put16(p, 14, 2312)   // 231.2 V
		put16(p, 16, 5001)   // 50.01 Hz
		put16(p, 18, 1598)   // 159.8 W
		put16(p, 20, 0)      // 0 var
		put16(p, 22, 69)     // 0.69 A
		put16(p, 24, 1000)   // 1.000
		put16(p, 26, 356)    // 35.6 °C
		put16(p, 28, 3)      // event
		return p
	}
	p := make([]byte, TWO_CHANNEL_PAYLOAD_SIZE)
	put16(p, 0, 0x0001)
	put16(p, 2, 325)      // ch1 32.5 V
	put16(p, 4, 512)      // ch1 5.12 A
	put16(p, 6, 1664)     // ch1 166.4 W
	put16(p, 8, 331)      // ch2 33.1 V
	put16(p, 10, 480)     // ch2 4.80 A
	put16(p, 12, 1589)    // ch2 158.9 W
	put32(p, 14, 1234567) // ch1 1234.567 kWh
	put32(p, 18, 987654)  // ch2 987.654 kWh
	put16(p, 22, 1520)    // ch1 1520 Wh
	put16(p, 24, 1433)    // ch2 1433 Wh
	put16(p, 26, 2312)    // 231.2 V
	put16(p, 28, 5001)    // 50.01 Hz
	put16(p, 30, 3105)    // 310.5 W
	put16(p, 32, 0)       // 0 var
	put16(p, 34, 134)     // 1.34 A
	put16(p, 36, 1000)    // 1.000
	put16(p, 38, 356)     // 35.6 °C
	put16(p, 40, 3)       // event
	return p
}

func put16(p []byte, off int, v uint16) {
	binary.BigEndian.PutUint16(p[off:], v)
}

func put32(p []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(p[off:], v)
}
