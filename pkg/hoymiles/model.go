package hoymiles

// ChannelReading holds the DC side values of one PV input.
type ChannelReading struct {
	Voltage     float64 // V
	Current     float64 // A
	Power       float64 // W
	EnergyToday float64 // Wh
	EnergyTotal float64 // kWh
}

// ACReading holds the grid side values of the inverter.
type ACReading struct {
	Voltage       float64 // V
	Current       float64 // A
	Frequency     float64 // Hz
	Power         float64 // W
	ReactivePower float64 // var
	PowerFactor   float64
	Temperature   float64 // °C
}

type InverterReading struct {
	Channels []ChannelReading
	AC       ACReading
	Event    uint16
}

// TotalDCPower sums the power of all PV inputs.
func (r InverterReading) TotalDCPower() float64 {
	var total float64
	for _, ch := range r.Channels {
		total += ch.Power
	}
	return total
}
