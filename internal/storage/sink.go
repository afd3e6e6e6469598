package storage

import (
	"context"
	"errors"
	"time"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
)

// Sink persists readings. Implementations are used from a single actor and need not be thread safe.
type Sink interface {
	InsertMeterReading(ctx context.Context, meter int, reading *sml.MeterReading, t time.Time) error
	InsertInverterReading(ctx context.Context, reading *hoymiles.InverterReading, t time.Time) error
	Close() error
}

type FanoutSink struct {
	sinks []Sink
}

// NewFanoutSink writes every reading to all sinks. A failing sink does not stop the others.
func NewFanoutSink(sinks ...Sink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

func (f *FanoutSink) InsertMeterReading(ctx context.Context, meter int, reading *sml.MeterReading, t time.Time) error {
	var errs []error
	for _, sink := range f.sinks {
		errs = append(errs, sink.InsertMeterReading(ctx, meter, reading, t))
	}
	return errors.Join(errs...)
}

func (f *FanoutSink) InsertInverterReading(ctx context.Context, reading *hoymiles.InverterReading, t time.Time) error {
	var errs []error
	for _, sink := range f.sinks {
		errs = append(errs, sink.InsertInverterReading(ctx, reading, t))
	}
	return errors.Join(errs...)
}

func (f *FanoutSink) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}
