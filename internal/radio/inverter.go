package radio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/energylog/internal/radio/nrf24"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"go.uber.org/zap"
)

// InverterClient is the device side view of one Hoymiles inverter.
type InverterClient interface {
	Open() error
	Close() error
	QueryInverterInfo(ctx context.Context) (*hoymiles.InverterReading, bool)
	SerialNumber() hoymiles.SerialNumber
	DtuAddress() hoymiles.Address
}

type Config struct {
	SerialNumber hoymiles.SerialNumber
	DtuAddress   hoymiles.Address
	Retries      int
	SPIPort      string
	CEPin        string
}

// HoymilesInverter talks to the inverter through an nRF24 radio.
type HoymilesInverter struct {
	config     Config
	device     *nrf24.Device
	session    *hoymiles.Session
	instrument []hoymiles.SessionInstrument
	logger     *zap.Logger
}

func traceLoggerInstrumentation(logger *zap.Logger) *hoymiles.SessionInstrument {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &hoymiles.SessionInstrument{
		RecordAttempt: func(channel uint8, outcome string) {
			logger.Debug(fmt.Sprintf("radio attempt on channel %d: %s", channel, outcome))
		},
		RecordTime: func(fnName string, duration time.Duration) {
			logger.Debug(fmt.Sprintf("radio [%s]: %d millis", fnName, duration.Milliseconds()))
		},
	}
}

// CreateHoymilesInverter validates the inverter settings. The radio is opened in Open.
func CreateHoymilesInverter(config Config, logger *zap.Logger, instrumentation *hoymiles.SessionInstrument) (InverterClient, error) {
	if config.SerialNumber.Channels != 1 && config.SerialNumber.Channels != 2 {
		return nil, fmt.Errorf("inverter %s: %w", config.SerialNumber.Value, hoymiles.ErrUnsupportedInverterType)
	}
	if config.SPIPort == "" || config.CEPin == "" {
		return nil, errors.New("radio spi port and ce pin must be set")
	}
	var inst []hoymiles.SessionInstrument
	if logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "radio"))); logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return &HoymilesInverter{
		config:     config,
		instrument: inst,
		logger:     logger,
	}, nil
}

func (inv *HoymilesInverter) Open() error {
	if inv.session != nil {
		return nil
	}
	device, err := nrf24.Open(nrf24.Config{
		SPIPort:   inv.config.SPIPort,
		CEPin:     inv.config.CEPin,
		TxAddress: inv.config.SerialNumber.Address.RadioPipe(),
		RxAddress: inv.config.DtuAddress.RadioPipe(),
	}, inv.logger)
	if err != nil {
		return err
	}
	opts := []hoymiles.SessionOption{hoymiles.WithLogger(inv.logger)}
	if inv.config.Retries > 0 {
		opts = append(opts, hoymiles.WithRetries(inv.config.Retries))
	}
	for i := range inv.instrument {
		opts = append(opts, hoymiles.WithInstrument(inv.instrument[i]))
	}
	session, err := hoymiles.NewSession(device, inv.config.SerialNumber, inv.config.DtuAddress, opts...)
	if err != nil {
		device.Close()
		return err
	}
	inv.device = device
	inv.session = session
	inv.logger.Info("radio ready",
		zap.String("inverter", inv.config.SerialNumber.Value),
		zap.Stringer("dtu", inv.config.DtuAddress))
	return nil
}

func (inv *HoymilesInverter) Close() error {
	if inv.device == nil {
		return nil
	}
	err := inv.device.Close()
	inv.device = nil
	inv.session = nil
	return err
}

func (inv *HoymilesInverter) QueryInverterInfo(ctx context.Context) (*hoymiles.InverterReading, bool) {
	if inv.session == nil {
		inv.logger.Error("radio not open")
		return nil, false
	}
	return inv.session.QueryInverterInfo(ctx)
}

func (inv *HoymilesInverter) SerialNumber() hoymiles.SerialNumber {
	return inv.config.SerialNumber
}

func (inv *HoymilesInverter) DtuAddress() hoymiles.Address {
	return inv.config.DtuAddress
}
