package hoymiles

type PowerLevel uint8

const (
	PA_MIN PowerLevel = iota
	PA_LOW
	PA_HIGH
	PA_MAX
)

func PowerLevelToString(level PowerLevel) string {
	switch level {
	case PA_MIN:
		return "min"
	case PA_LOW:
		return "low"
	case PA_HIGH:
		return "high"
	case PA_MAX:
		return "max"
	default:
		return "unknown"
	}
}

// Transceiver is the half duplex radio used to talk to the inverter.
// Implementations are not safe for concurrent use.
type Transceiver interface {
	SetChannel(channel uint8) error
	SetPowerLevel(level PowerLevel) error
	StartListening() error
	StopListening() error
	// Write sends one packet and reports whether the link layer acknowledged it.
	Write(packet []byte) (bool, error)
	Available() (bool, error)
	ReadDynamicPayload() ([]byte, error)
	FlushTx() error
	FlushRx() error
}
