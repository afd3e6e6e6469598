package meter

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ChannelSwitch routes one of the meters to the shared serial line.
type ChannelSwitch interface {
	Select(channel int) error
}

// GPIOChannelSwitch drives the select pin low for meter 0 and high for meter 1.
type GPIOChannelSwitch struct {
	pin gpio.PinOut
}

func OpenGPIOChannelSwitch(pinName string) (*GPIOChannelSwitch, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("unknown switch pin %s", pinName)
	}
	return NewGPIOChannelSwitch(pin), nil
}

func NewGPIOChannelSwitch(pin gpio.PinOut) *GPIOChannelSwitch {
	return &GPIOChannelSwitch{pin: pin}
}

func (s *GPIOChannelSwitch) Select(channel int) error {
	switch channel {
	case 0:
		return s.pin.Out(gpio.Low)
	case 1:
		return s.pin.Out(gpio.High)
	default:
		return fmt.Errorf("meter channel %d: %w", channel, ErrInvalidChannel)
	}
}
