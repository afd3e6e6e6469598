package domain

import (
	"testing"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeterQuantities(t *testing.T) {

	assert := assert.New(t)

	values := MeterQuantities(&sml.MeterReading{
		EnergyImport: 374.81585518,
		EnergyExport: 2.197,
		Power:        3.89,
		PowerL3:      -1.5,
	})
	require.Len(t, values, len(METER_QUANTITIES))
	assert.Equal("energy_import", values[0].Id)
	assert.Equal(374.81585518, values[0].Value)
	assert.Equal("energy_export", values[3].Id)
	assert.Equal(2.197, values[3].Value)
	assert.Equal("power", values[4].Id)
	assert.Equal(3.89, values[4].Value)
	assert.Equal("power_l3", values[7].Id)
	assert.Equal(-1.5, values[7].Value)
}

func TestInverterQuantities(t *testing.T) {

	assert := assert.New(t)

	reading := &hoymiles.InverterReading{
		Channels: []hoymiles.ChannelReading{{Voltage: 33.1, Power: 150.2, EnergyTotal: 1034.5}},
		AC:       hoymiles.ACReading{Voltage: 230.1, Power: 145.5, PowerFactor: 0.998, Temperature: -2.5},
	}
	ac := InverterQuantities(reading)
	require.Len(t, ac, 7)
	assert.Equal("ac_voltage", ac[0].Id)
	assert.Equal(230.1, ac[0].Value)
	assert.Equal("ac_power", ac[3].Id)
	assert.Equal(0.998, ac[5].Value)
	assert.Equal("temperature", ac[6].Id)
	assert.Equal(-2.5, ac[6].Value)

	ch := ChannelQuantities(reading.Channels[0])
	require.Len(t, ch, 5)
	assert.Equal("dc_power", ch[2].Id)
	assert.Equal(150.2, ch[2].Value)
	assert.Equal(1034.5, ch[4].Value)
}

func TestSensorCatalogue(t *testing.T) {

	assert := assert.New(t)

	serial, err := hoymiles.ParseSerialNumber("114172220203")
	require.NoError(t, err)

	inverter := InverterDevice(serial)
	sensors := InverterSensors(inverter, serial.Channels)
	assert.Len(sensors, 7+1+2*5+1)
	assert.Equal(inverter, sensors[0].Device, "first sensor carries the device")
	assert.Equal(IdDevice(inverter), sensors[1].Device)
	assert.Equal("Hoymiles", inverter.Manufacturer)

	ids := map[string]bool{}
	for _, s := range sensors {
		assert.False(ids[s.Id], "duplicated sensor id %s", s.Id)
		ids[s.Id] = true
	}
	assert.True(ids["inverter_ac_power"])
	assert.True(ids["inverter_ch2_dc_energy_total"])
	assert.False(ids["inverter_ch3_dc_power"])

	meter := MeterDevice("energylog", 1)
	meterSensors := MeterSensors(meter, 1)
	assert.Len(meterSensors, 8)
	assert.Equal("meter1_energy_import", meterSensors[0].Id)
	assert.Equal(STATE_CLASS_TOTAL_INCREASING, meterSensors[0].StateClass)
	assert.Equal("uid_"+meter.Id+"_meter1_power", meterSensors[4].UniqueId)
	assert.NotEqual(MeterDevice("energylog", 0).Id, meter.Id)

	bridge := BridgeSensors(BridgeDevice("energylog"))
	assert.Len(bridge, 1)
	assert.Equal(SENSOR_TYPE_BINARY, bridge[0].SensorType)
}
