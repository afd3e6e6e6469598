package domain

import (
	"fmt"
	"time"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// Reading events are published on the event stream once per successful device read.

type MeterReadingEvent struct {
	Meter   int
	Reading *sml.MeterReading
	Time    time.Time
}

type InverterReadingEvent struct {
	Reading *hoymiles.InverterReading
	Time    time.Time
}

const (
	POLL_OUTCOME_OK       = "ok"
	POLL_OUTCOME_ERROR    = "error"
	POLL_OUTCOME_SKIPPED  = "skipped"
	POLL_DEVICE_INVERTER  = "inverter"
	POLL_DEVICE_METER_FMT = "meter%d"
)

type PollOutcomeEvent struct {
	Device  string
	Outcome string
}

func MeterDeviceName(meter int) string {
	return fmt.Sprintf(POLL_DEVICE_METER_FMT, meter)
}
