package util

import (
	"github.com/berfenger/energylog/internal/config"
	"github.com/berfenger/energylog/internal/radio"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Inverter: config.InverterConfig{
			Enabled:      true,
			SerialNumber: radio.TEST_SERIAL_NUMBER,
			Retries:      2,
			SPIPort:      "/dev/spidev0.0",
			CEPin:        "GPIO24",
		},
		Meter: config.MeterConfig{
			Enabled:            true,
			SerialPort:         "/dev/ttyAMA0",
			BaudRate:           9600,
			ReadTimeoutMillis:  200,
			FrameTimeoutMillis: 3000,
			SwitchPin:          "GPIO17",
			SettleMillis:       100,
		},
		Monitor: config.MonitorConfig{
			PeriodSeconds:   5,
			HeartbeatCycles: 20,
		},
		Location: config.LocationConfig{
			Latitude:  52.52,
			Longitude: 13.405,
			TimeZone:  "Europe/Berlin",
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "energylog",
			HADiscoveryTopic: "homeassistant",
		},
		Modbus: config.ModbusConfig{
			Listen: "tcp://localhost:25503",
		},
		Port: 8080,
	}
}
