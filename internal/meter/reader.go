package meter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/energylog/pkg/sml"
	"go.uber.org/zap"
)

const (
	METER_COUNT             = 2
	DEFAULT_SETTLE_DURATION = 100 * time.Millisecond
)

var ErrInvalidChannel = errors.New("invalid meter channel")

type MeterReader interface {
	Open() error
	Close() error
	ReadMeter(ctx context.Context, channel int) (*sml.MeterReading, error)
}

type MeterInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

type Config struct {
	SerialPort   string
	BaudRate     int
	ReadTimeout  time.Duration
	FrameTimeout time.Duration
	SwitchPin    string
	Settle       time.Duration
}

// EbzDD3Reader reads two eBZ DD3 meters sharing one serial line behind a channel switch.
type EbzDD3Reader struct {
	config     Config
	channels   ChannelSwitch
	source     sml.ByteSource
	frames     *sml.FrameReader
	closer     func() error
	instrument []MeterInstrument
	logger     *zap.Logger
}

func traceLoggerInstrumentation(logger *zap.Logger) *MeterInstrument {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &MeterInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug(fmt.Sprintf("meter [%s]: %d millis", fnName, readTime.Milliseconds()))
		},
	}
}

// CreateEbzDD3Reader returns a reader on the real serial port and select pin. Nothing is opened until Open.
func CreateEbzDD3Reader(config Config, logger *zap.Logger, instrumentation *MeterInstrument) (MeterReader, error) {
	if config.SerialPort == "" {
		return nil, errors.New("meter serial port not set")
	}
	if config.SwitchPin == "" {
		return nil, errors.New("meter switch pin not set")
	}
	return &EbzDD3Reader{
		config:     config,
		instrument: instruments(logger, instrumentation),
		logger:     logger,
	}, nil
}

// NewEbzDD3Reader wires a reader to already open collaborators.
func NewEbzDD3Reader(channels ChannelSwitch, source sml.ByteSource, config Config, logger *zap.Logger,
	instrumentation *MeterInstrument) *EbzDD3Reader {
	reader := &EbzDD3Reader{
		config:     config,
		instrument: instruments(logger, instrumentation),
		logger:     logger,
	}
	reader.attach(channels, source)
	return reader
}

func instruments(logger *zap.Logger, instrumentation *MeterInstrument) []MeterInstrument {
	var inst []MeterInstrument
	if logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "meter"))); logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return inst
}

func (reader *EbzDD3Reader) attach(channels ChannelSwitch, source sml.ByteSource) {
	reader.channels = channels
	reader.source = source
	var opts []sml.FrameReaderOption
	if reader.config.FrameTimeout > 0 {
		opts = append(opts, sml.WithFrameTimeout(reader.config.FrameTimeout))
	}
	reader.frames = sml.NewFrameReader(source, opts...)
}

func (reader *EbzDD3Reader) Open() error {
	if reader.frames != nil {
		return nil
	}
	channels, err := OpenGPIOChannelSwitch(reader.config.SwitchPin)
	if err != nil {
		return err
	}
	source, err := OpenSerialSource(reader.config.SerialPort, reader.config.BaudRate, reader.config.ReadTimeout)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", reader.config.SerialPort, err)
	}
	reader.attach(channels, source)
	reader.closer = source.Close
	return nil
}

func (reader *EbzDD3Reader) Close() error {
	if reader.closer == nil {
		return nil
	}
	err := reader.closer()
	reader.closer = nil
	reader.frames = nil
	return err
}

// ReadMeter switches the line to channel, waits for it to settle and decodes the next telegram.
func (reader *EbzDD3Reader) ReadMeter(ctx context.Context, channel int) (*sml.MeterReading, error) {
	defer RecordTimer("ReadMeter", reader.instrument)()

	if reader.frames == nil {
		return nil, errors.New("meter reader not open")
	}
	if channel < 0 || channel >= METER_COUNT {
		return nil, fmt.Errorf("meter channel %d: %w", channel, ErrInvalidChannel)
	}
	if err := reader.channels.Select(channel); err != nil {
		return nil, fmt.Errorf("select meter %d: %w", channel, err)
	}
	if err := sleepContext(ctx, reader.settle()); err != nil {
		return nil, err
	}

	frame, err := reader.readFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("meter %d: %w", channel, err)
	}
	messages, err := sml.DecodeMessages(frame)
	if err != nil {
		return nil, fmt.Errorf("meter %d: %w", channel, err)
	}
	reading, err := sml.ExtractMeterReading(messages)
	if err != nil {
		return nil, fmt.Errorf("meter %d: %w", channel, err)
	}
	return reading, nil
}

func (reader *EbzDD3Reader) readFrame(ctx context.Context) ([]byte, error) {
	defer RecordTimer("ReadFrame", reader.instrument)()
	return reader.frames.ReadFrame(ctx)
}

func (reader *EbzDD3Reader) settle() time.Duration {
	if reader.config.Settle > 0 {
		return reader.config.Settle
	}
	return DEFAULT_SETTLE_DURATION
}

func RecordTimer(name string, instrument []MeterInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
