package hoymiles

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_RETRIES         = 20
	DEFAULT_BACKOFF         = 3 * time.Second
	DEFAULT_RECEIVE_TIMEOUT = 5 * time.Millisecond
	DEFAULT_SCAN_SLOTS      = 100
)

const (
	ATTEMPT_OK         = "ok"
	ATTEMPT_INCOMPLETE = "incomplete"
	ATTEMPT_CHECKSUM   = "checksum"
	ATTEMPT_ERROR      = "error"
)

var TX_CHANNELS = []uint8{3, 23, 40, 61, 75}

// the inverter answers on the next channels of the hopping sequence, never on the tx channel
var RX_CHANNELS = map[uint8][]uint8{
	3:  {23, 40, 61},
	23: {40, 61, 75},
	40: {61, 75, 3},
	61: {75, 3, 23},
	75: {3, 23, 40},
}

type SessionInstrument struct {
	RecordAttempt func(channel uint8, outcome string)
	RecordTime    func(fnName string, duration time.Duration)
}

// Session runs real time info queries against one inverter. It must be owned by a single goroutine.
type Session struct {
	tr             Transceiver
	serial         SerialNumber
	dtu            Address
	retries        int
	backoff        time.Duration
	receiveTimeout time.Duration
	scanSlots      int
	rand           *rand.Rand
	now            func() time.Time
	sleep          func(context.Context, time.Duration) error
	instrument     []SessionInstrument
	logger         *zap.Logger
}

type SessionOption func(*Session)

func WithRetries(retries int) SessionOption {
	return func(s *Session) {
		s.retries = retries
	}
}

func WithBackoff(backoff time.Duration) SessionOption {
	return func(s *Session) {
		s.backoff = backoff
	}
}

func WithReceiveTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		s.receiveTimeout = timeout
	}
}

func WithScanSlots(slots int) SessionOption {
	return func(s *Session) {
		s.scanSlots = slots
	}
}

func WithRand(r *rand.Rand) SessionOption {
	return func(s *Session) {
		s.rand = r
	}
}

// WithClock sets the source of the request timestamp.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithInstrument(instrument SessionInstrument) SessionOption {
	return func(s *Session) {
		s.instrument = append(s.instrument, instrument)
	}
}

func NewSession(tr Transceiver, serial SerialNumber, dtu Address, opts ...SessionOption) (*Session, error) {
	if serial.Channels != 1 && serial.Channels != 2 {
		return nil, fmt.Errorf("inverter %s with %d channel(s): %w", serial.Value, serial.Channels, ErrUnsupportedInverterType)
	}
	s := &Session{
		tr:             tr,
		serial:         serial,
		dtu:            dtu,
		retries:        DEFAULT_RETRIES,
		backoff:        DEFAULT_BACKOFF,
		receiveTimeout: DEFAULT_RECEIVE_TIMEOUT,
		scanSlots:      DEFAULT_SCAN_SLOTS,
		rand:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9E3779B97F4A7C15)),
		now:            time.Now,
		sleep:          sleepContext,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("inverter", serial.Value))
	return s, nil
}

func (s *Session) SerialNumber() SerialNumber {
	return s.serial
}

func (s *Session) DtuAddress() Address {
	return s.dtu
}

// QueryInverterInfo requests the real time values of the inverter, retrying on other channels until a
// complete response arrives or the retries are exhausted. It reports false when no data was received.
func (s *Session) QueryInverterInfo(ctx context.Context) (*InverterReading, bool) {
	defer RecordTimer("QueryInverterInfo", s.instrument)()

	if err := s.tr.FlushTx(); err != nil {
		s.logger.Error("radio flush tx", zap.Error(err))
		return nil, false
	}
	if err := s.tr.FlushRx(); err != nil {
		s.logger.Error("radio flush rx", zap.Error(err))
		return nil, false
	}

	if err := s.tr.SetPowerLevel(PA_MAX); err != nil {
		s.logger.Error("radio set power level", zap.Error(err))
		s.lowerPower()
		return nil, false
	}
	defer s.lowerPower()

	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.backoff); err != nil {
				s.logger.Debug("query cancelled", zap.Int("attempt", attempt), zap.Error(err))
				return nil, false
			}
		}

		txChannel := TX_CHANNELS[s.rand.IntN(len(TX_CHANNELS))]
		reading, err := s.attempt(txChannel)
		if err == nil {
			s.recordAttempt(txChannel, ATTEMPT_OK)
			s.logger.Debug("query ok", zap.Int("attempt", attempt+1), zap.Uint8("channel", txChannel))
			return reading, true
		}

		outcome := ATTEMPT_INCOMPLETE
		switch {
		case errors.Is(err, ErrChecksumMismatch):
			outcome = ATTEMPT_CHECKSUM
		case !errors.Is(err, ErrIncompleteResponse):
			outcome = ATTEMPT_ERROR
		}
		s.recordAttempt(txChannel, outcome)
		s.logger.Debug("query attempt failed", zap.Int("attempt", attempt+1), zap.Uint8("channel", txChannel), zap.Error(err))
	}

	s.logger.Info("no response from inverter", zap.Int("retries", s.retries))
	return nil, false
}

func (s *Session) attempt(txChannel uint8) (*InverterReading, error) {
	packet, err := BuildRequestInfoPacket(s.serial.Address, s.dtu, s.now())
	if err != nil {
		return nil, err
	}
	set, err := s.sendAndScan(txChannel, RX_CHANNELS[txChannel], packet)
	if err != nil {
		return nil, err
	}
	payload, err := set.Payload()
	if err != nil {
		return nil, err
	}
	return DecodeInverterInfo(payload, s.serial.Channels)
}

func (s *Session) sendAndScan(txChannel uint8, rxChannels []uint8, packet []byte) (*ResponseSet, error) {
	defer RecordTimer("SendAndScan", s.instrument)()

	if err := s.tr.StopListening(); err != nil {
		return nil, err
	}
	if err := s.tr.SetChannel(txChannel); err != nil {
		return nil, err
	}
	if err := s.tr.FlushRx(); err != nil {
		return nil, err
	}
	acked, err := s.tr.Write(packet)
	if err != nil {
		return nil, err
	}
	if !acked {
		// the inverter may still answer even if the ack got lost
		s.logger.Debug("request not acknowledged", zap.Uint8("channel", txChannel))
	}
	if err := s.tr.StartListening(); err != nil {
		return nil, err
	}

	set := NewResponseSet(s.serial.Address, s.serial.Channels)
	for slot := 0; slot < s.scanSlots; slot++ {
		if err := s.tr.SetChannel(rxChannels[slot%len(rxChannels)]); err != nil {
			return nil, err
		}
		deadline := time.Now().Add(s.receiveTimeout)
		for time.Now().Before(deadline) {
			available, err := s.tr.Available()
			if err != nil {
				return nil, err
			}
			if !available {
				continue
			}
			raw, err := s.tr.ReadDynamicPayload()
			if err != nil {
				return nil, err
			}
			if err := s.tr.FlushRx(); err != nil {
				return nil, err
			}
			if kind, err := set.Add(raw); kind != FRAME_ACCEPTED {
				s.logger.Debug("frame rejected", zap.Uint8("channel", rxChannels[slot%len(rxChannels)]), zap.Error(err))
			}
		}
	}
	return set, nil
}

func (s *Session) lowerPower() {
	if err := s.tr.SetPowerLevel(PA_MIN); err != nil {
		s.logger.Error("radio restore power level", zap.Error(err))
	}
}

func (s *Session) recordAttempt(channel uint8, outcome string) {
	for i := range s.instrument {
		if s.instrument[i].RecordAttempt != nil {
			s.instrument[i].RecordAttempt(channel, outcome)
		}
	}
}

func RecordTimer(name string, instrument []SessionInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			if instrument[i].RecordTime != nil {
				instrument[i].RecordTime(name, duration)
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
