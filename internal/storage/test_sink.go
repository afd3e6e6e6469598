package storage

import (
	"context"
	"sync"
	"time"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
)

type TestMeterRecord struct {
	Meter   int
	Reading *sml.MeterReading
	Time    time.Time
}

type TestInverterRecord struct {
	Reading *hoymiles.InverterReading
	Time    time.Time
}

// TestSink keeps readings in memory. Err, if set, is returned by every insert.
type TestSink struct {
	mu       sync.Mutex
	Err      error
	meters   []TestMeterRecord
	inverter []TestInverterRecord
	closed   bool
}

func CreateTestSink() *TestSink {
	return &TestSink{}
}

func (s *TestSink) InsertMeterReading(ctx context.Context, meter int, reading *sml.MeterReading, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.meters = append(s.meters, TestMeterRecord{Meter: meter, Reading: reading, Time: t})
	return nil
}

func (s *TestSink) InsertInverterReading(ctx context.Context, reading *hoymiles.InverterReading, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.inverter = append(s.inverter, TestInverterRecord{Reading: reading, Time: t})
	return nil
}

func (s *TestSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *TestSink) MeterRecords() []TestMeterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TestMeterRecord(nil), s.meters...)
}

func (s *TestSink) InverterRecords() []TestInverterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TestInverterRecord(nil), s.inverter...)
}

func (s *TestSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
