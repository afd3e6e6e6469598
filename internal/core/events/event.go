package events

import (
	. "github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
)

func MeterReadingToUpdateEvents(meter int, reading *sml.MeterReading) []any {
	var events []any

	for _, q := range MeterQuantities(reading) {
		events = append(events, quantityEvent(MeterSensorId(meter, q.Quantity), q))
	}

	return events
}

func InverterReadingToUpdateEvents(reading *hoymiles.InverterReading) []any {
	var events []any

	// AC side
	for _, q := range InverterQuantities(reading) {
		events = append(events, quantityEvent(InverterSensorId(q.Quantity), q))
	}
	// Total DC power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_DC_POWER,
		},
		Value:    reading.TotalDCPower(),
		Decimals: 1,
	})
	// PV inputs
	for i, ch := range reading.Channels {
		for _, q := range ChannelQuantities(ch) {
			events = append(events, quantityEvent(ChannelSensorId(i+1, q.Quantity), q))
		}
	}
	// Event counter
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_EVENT,
		},
		Value: float64(reading.Event),
	})

	return events
}

func BridgeStateUpdateEvents(online bool) []any {
	return []any{BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}}
}

func quantityEvent(id string, q QuantityValue) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    q.Value,
		Decimals: q.Decimals,
	}
}
