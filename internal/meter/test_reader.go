package meter

import (
	"context"
	"fmt"

	"github.com/berfenger/energylog/pkg/sml"
)

func CreateTestMeterReader() (MeterReader, error) {
	return &TestMeterReader{}, nil
}

// TestMeterReader returns fixed readings. Errors[channel] makes that channel fail.
type TestMeterReader struct {
	Errors map[int]error
}

func (reader *TestMeterReader) Open() error {
	return nil
}

func (reader *TestMeterReader) Close() error {
	return nil
}

func (reader *TestMeterReader) ReadMeter(ctx context.Context, channel int) (*sml.MeterReading, error) {
	if channel < 0 || channel >= METER_COUNT {
		return nil, fmt.Errorf("meter channel %d: %w", channel, ErrInvalidChannel)
	}
	if err := reader.Errors[channel]; err != nil {
		return nil, err
	}
	return TestMeterReading(channel), nil
}

func TestMeterReading(channel int) *sml.MeterReading {
	if channel == 1 {
		return &sml.MeterReading{
			EnergyImport:   1520.5,
			EnergyImportT1: 1520.5,
			EnergyExport:   812.25,
			Power:          -245.6,
			PowerL1:        -245.6,
		}
	}
	return &sml.MeterReading{
		EnergyImport:   374.81585518,
		EnergyImportT1: 373.82085518,
		EnergyImportT2: 0.995,
		EnergyExport:   2.197,
		Power:          3.89,
		PowerL1:        3.89,
	}
}
