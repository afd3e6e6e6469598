package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_INVERTER_DC_POWER  = "inverter_dc_power"
	SENSOR_ID_INVERTER_EVENT     = "inverter_event"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_CURRENT         = "current"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_FREQUENCY       = "frequency"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_POWER_FACTOR    = "power_factor"
	DEVICE_CLASS_REACTIVE_POWER  = "reactive_power"
	DEVICE_CLASS_TEMPERATURE     = "temperature"
	DEVICE_CLASS_VOLTAGE         = "voltage"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
)

func MeterSensorId(meter int, quantity Quantity) string {
	return fmt.Sprintf("meter%d_%s", meter, quantity.Id)
}

func InverterSensorId(quantity Quantity) string {
	return fmt.Sprintf("inverter_%s", quantity.Id)
}

// ChannelSensorId names a PV input sensor, channels are numbered from 1 as printed on the inverter.
func ChannelSensorId(channel int, quantity Quantity) string {
	return fmt.Sprintf("inverter_ch%d_%s", channel, quantity.Id)
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("energylog_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "energylog",
		Model:        "energylog",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("energylog %s", md5HashShort(baseTopic)),
	}
}

func MeterDevice(baseTopic string, meter int) Device {
	return Device{
		Id:           fmt.Sprintf("elog_meter%d_%s", meter, md5HashShort(baseTopic)),
		Manufacturer: "eBZ",
		Model:        "DD3",
		Name:         fmt.Sprintf("eBZ DD3 meter %d", meter),
	}
}

func InverterDevice(serial hoymiles.SerialNumber) Device {
	return Device{
		Id:           fmt.Sprintf("elog_inverter_%s", md5HashShort(serial.Value)),
		Manufacturer: "Hoymiles",
		Model:        fmt.Sprintf("HM %dT", serial.Channels),
		Name:         fmt.Sprintf("Hoymiles %s", serial.Value),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

// MeterSensors lists the sensors of one meter. Only the first one carries the full device description.
func MeterSensors(meterDevice Device, meter int) []GenericSensor {
	var sensors []GenericSensor
	for _, q := range METER_QUANTITIES {
		sensors = append(sensors, quantitySensor(meterDevice, MeterSensorId(meter, q), q.Name, q))
	}
	useIdDevice(sensors)
	return sensors
}

func InverterSensors(inverterDevice Device, channels int) []GenericSensor {
	var sensors []GenericSensor
	for _, q := range INVERTER_QUANTITIES {
		sensors = append(sensors, quantitySensor(inverterDevice, InverterSensorId(q), q.Name, q))
	}

	// DC power of all inputs
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_INVERTER_DC_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "DC power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_DC_POWER),
	})

	for ch := 1; ch <= channels; ch++ {
		for _, q := range CHANNEL_QUANTITIES {
			sensors = append(sensors, quantitySensor(inverterDevice, ChannelSensorId(ch, q), fmt.Sprintf("CH%d %s", ch, q.Name), q))
		}
	}

	// Inverter event counter
	sensors = append(sensors, GenericSensor{
		Device:           inverterDevice,
		Id:               SENSOR_ID_INVERTER_EVENT,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Event counter",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		Icon:             "mdi:counter",
		UniqueId:         uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_EVENT),
	})

	useIdDevice(sensors)
	return sensors
}

func quantitySensor(device Device, id, name string, q Quantity) GenericSensor {
	return GenericSensor{
		Device:            device,
		Id:                id,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              name,
		StateClass:        q.StateClass,
		DeviceClass:       q.DeviceClass,
		UnitOfMeasurement: q.Unit,
		Icon:              q.Icon,
		UniqueId:          uniqueId(device.Id, id),
	}
}

func useIdDevice(sensors []GenericSensor) {
	for i := range sensors {
		if i > 0 {
			sensors[i].Device = IdDevice(sensors[i].Device)
		}
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
