package domain

import (
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
)

// Quantity describes one measured value. Id is used in sensor ids, metric labels and field names.
type Quantity struct {
	Id          string
	Name        string
	Unit        string
	DeviceClass string
	StateClass  string
	Decimals    uint
	Icon        string
}

type QuantityValue struct {
	Quantity
	Value float64
}

var (
	QUANTITY_ENERGY_IMPORT    = Quantity{Id: "energy_import", Name: "Energy import", Unit: "kWh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING, Decimals: 4}
	QUANTITY_ENERGY_IMPORT_T1 = Quantity{Id: "energy_import_t1", Name: "Energy import T1", Unit: "kWh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING, Decimals: 4}
	QUANTITY_ENERGY_IMPORT_T2 = Quantity{Id: "energy_import_t2", Name: "Energy import T2", Unit: "kWh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING, Decimals: 4}
	QUANTITY_ENERGY_EXPORT    = Quantity{Id: "energy_export", Name: "Energy export", Unit: "kWh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING, Decimals: 4}
	QUANTITY_POWER            = Quantity{Id: "power", Name: "Power", Unit: "W", DeviceClass: DEVICE_CLASS_POWER, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 2}
	QUANTITY_POWER_L1         = Quantity{Id: "power_l1", Name: "Power L1", Unit: "W", DeviceClass: DEVICE_CLASS_POWER, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 2}
	QUANTITY_POWER_L2         = Quantity{Id: "power_l2", Name: "Power L2", Unit: "W", DeviceClass: DEVICE_CLASS_POWER, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 2}
	QUANTITY_POWER_L3         = Quantity{Id: "power_l3", Name: "Power L3", Unit: "W", DeviceClass: DEVICE_CLASS_POWER, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 2}

	QUANTITY_AC_VOLTAGE        = Quantity{Id: "ac_voltage", Name: "AC voltage", Unit: "V", DeviceClass: DEVICE_CLASS_VOLTAGE, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 1}
	QUANTITY_AC_CURRENT        = Quantity{Id: "ac_current", Name: "AC current", Unit: "A", DeviceClass: DEVICE_CLASS_CURRENT, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 2}
	QUANTITY_AC_FREQUENCY      = Quantity{Id: "ac_frequency", Name: "AC frequency", Unit: "Hz", DeviceClass: DEVICE_CLASS_FREQUENCY, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 2}
	QUANTITY_AC_POWER          = Quantity{Id: "ac_power", Name: "AC power", Unit: "W", DeviceClass: DEVICE_CLASS_POWER, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 1}
	QUANTITY_AC_REACTIVE_POWER = Quantity{Id: "ac_reactive_power", Name: "AC reactive power", Unit: "var", DeviceClass: DEVICE_CLASS_REACTIVE_POWER, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 1}
	QUANTITY_AC_POWER_FACTOR   = Quantity{Id: "ac_power_factor", Name: "AC power factor", DeviceClass: DEVICE_CLASS_POWER_FACTOR, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 3}
	QUANTITY_TEMPERATURE       = Quantity{Id: "temperature", Name: "Temperature", Unit: "°C", DeviceClass: DEVICE_CLASS_TEMPERATURE, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 1}

	QUANTITY_DC_VOLTAGE      = Quantity{Id: "dc_voltage", Name: "DC voltage", Unit: "V", DeviceClass: DEVICE_CLASS_VOLTAGE, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 1}
	QUANTITY_DC_CURRENT      = Quantity{Id: "dc_current", Name: "DC current", Unit: "A", DeviceClass: DEVICE_CLASS_CURRENT, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 2}
	QUANTITY_DC_POWER        = Quantity{Id: "dc_power", Name: "DC power", Unit: "W", DeviceClass: DEVICE_CLASS_POWER, StateClass: STATE_CLASS_MEASUREMENT, Decimals: 1, Icon: "mdi:solar-power"}
	QUANTITY_DC_ENERGY_TODAY = Quantity{Id: "dc_energy_today", Name: "DC energy today", Unit: "Wh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING, Decimals: 0}
	QUANTITY_DC_ENERGY_TOTAL = Quantity{Id: "dc_energy_total", Name: "DC energy total", Unit: "kWh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING, Decimals: 3}
)

// The order of these lists fixes the Modbus register layout.

var METER_QUANTITIES = []Quantity{
	QUANTITY_ENERGY_IMPORT, QUANTITY_ENERGY_IMPORT_T1, QUANTITY_ENERGY_IMPORT_T2, QUANTITY_ENERGY_EXPORT,
	QUANTITY_POWER, QUANTITY_POWER_L1, QUANTITY_POWER_L2, QUANTITY_POWER_L3,
}

var INVERTER_QUANTITIES = []Quantity{
	QUANTITY_AC_VOLTAGE, QUANTITY_AC_CURRENT, QUANTITY_AC_FREQUENCY, QUANTITY_AC_POWER,
	QUANTITY_AC_REACTIVE_POWER, QUANTITY_AC_POWER_FACTOR, QUANTITY_TEMPERATURE,
}

var CHANNEL_QUANTITIES = []Quantity{
	QUANTITY_DC_VOLTAGE, QUANTITY_DC_CURRENT, QUANTITY_DC_POWER, QUANTITY_DC_ENERGY_TODAY, QUANTITY_DC_ENERGY_TOTAL,
}

func MeterQuantities(r *sml.MeterReading) []QuantityValue {
	return withValues(METER_QUANTITIES,
		r.EnergyImport, r.EnergyImportT1, r.EnergyImportT2, r.EnergyExport,
		r.Power, r.PowerL1, r.PowerL2, r.PowerL3)
}

func InverterQuantities(r *hoymiles.InverterReading) []QuantityValue {
	ac := r.AC
	return withValues(INVERTER_QUANTITIES,
		ac.Voltage, ac.Current, ac.Frequency, ac.Power, ac.ReactivePower, ac.PowerFactor, ac.Temperature)
}

func ChannelQuantities(ch hoymiles.ChannelReading) []QuantityValue {
	return withValues(CHANNEL_QUANTITIES, ch.Voltage, ch.Current, ch.Power, ch.EnergyToday, ch.EnergyTotal)
}

func withValues(quantities []Quantity, values ...float64) []QuantityValue {
	result := make([]QuantityValue, len(quantities))
	for i := range quantities {
		result[i] = QuantityValue{Quantity: quantities[i], Value: values[i]}
	}
	return result
}
