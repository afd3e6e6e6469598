package domain

import (
	"errors"
	"time"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_DEVICE       = "device"
	ACTOR_ID_POLL         = "poll"
	ACTOR_ID_RECORDER     = "recorder"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

var (
	ErrDeviceDisabled     = errors.New("device disabled")
	ErrNoInverterResponse = errors.New("no response from inverter")
)

type GetDevicesInfoRequest struct {
	ActorRequestMixIn
}

type GetDevicesInfoResponse struct {
	ActorResponseMixIn
	// nil when the inverter is not polled
	Inverter   *hoymiles.SerialNumber
	DtuAddress hoymiles.Address
	Meters     int
}

type ReadMeterRequest struct {
	ActorRequestMixIn
	Meter int
}

type ReadMeterResponse struct {
	ActorResponseMixIn
	Meter   int
	Reading *sml.MeterReading
	Time    time.Time
}

type QueryInverterRequest struct {
	ActorRequestMixIn
}

type QueryInverterResponse struct {
	ActorResponseMixIn
	Reading *hoymiles.InverterReading
	Time    time.Time
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
