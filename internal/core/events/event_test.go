package events

import (
	"testing"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatEvents(t *testing.T, evs []any) map[string]domain.FloatSensorUpdateEvent {
	byId := map[string]domain.FloatSensorUpdateEvent{}
	for _, ev := range evs {
		fev, ok := ev.(domain.FloatSensorUpdateEvent)
		require.True(t, ok)
		byId[fev.Id] = fev
	}
	return byId
}

func TestMeterReadingToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	evs := floatEvents(t, MeterReadingToUpdateEvents(1, meter.TestMeterReading(1)))
	assert.Len(evs, 8)
	assert.Equal(-245.6, evs["meter1_power"].Value)
	assert.Equal(uint(2), evs["meter1_power"].Decimals)
	assert.Equal(812.25, evs["meter1_energy_export"].Value)
	assert.Equal(uint(4), evs["meter1_energy_export"].Decimals)
}

func TestInverterReadingToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	serial, err := hoymiles.ParseSerialNumber("114172220203")
	require.NoError(t, err)
	reading, err := hoymiles.DecodeInverterInfo(hoymiles.TestInfoPayload(serial.Channels), serial.Channels)
	require.NoError(t, err)

	evs := floatEvents(t, InverterReadingToUpdateEvents(reading))
	assert.Len(evs, len(domain.InverterSensors(domain.InverterDevice(serial), serial.Channels)))
	assert.Equal(reading.AC.Power, evs["inverter_ac_power"].Value)
	assert.Equal(reading.Channels[1].Power, evs["inverter_ch2_dc_power"].Value)
	assert.Equal(reading.TotalDCPower(), evs[domain.SENSOR_ID_INVERTER_DC_POWER].Value)
	assert.Equal(float64(reading.Event), evs[domain.SENSOR_ID_INVERTER_EVENT].Value)
}

func TestBridgeStateUpdateEvents(t *testing.T) {

	evs := BridgeStateUpdateEvents(true)
	assert.Equal(t, []any{domain.BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_BRIDGE_STATE},
		Value:                  true,
	}}, evs)
}
