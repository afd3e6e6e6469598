package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Inverter InverterConfig `mapstructure:"inverter"`
	Meter    MeterConfig    `mapstructure:"meter"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Location LocationConfig `mapstructure:"location"`
	Database DatabaseConfig `mapstructure:"database"`
	Influx   InfluxConfig   `mapstructure:"influx"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Modbus   ModbusConfig   `mapstructure:"modbus"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

type InverterConfig struct {
	Enabled      bool
	SerialNumber string `mapstructure:"serial_number"`
	DtuAddress   string `mapstructure:"dtu_address"`
	Retries      int
	SPIPort      string `mapstructure:"spi_port"`
	CEPin        string `mapstructure:"ce_pin"`
}

type MeterConfig struct {
	Enabled            bool
	SerialPort         string `mapstructure:"serial_port"`
	BaudRate           int    `mapstructure:"baud_rate"`
	ReadTimeoutMillis  uint32 `mapstructure:"read_timeout_millis"`
	FrameTimeoutMillis uint32 `mapstructure:"frame_timeout_millis"`
	SwitchPin          string `mapstructure:"switch_pin"`
	SettleMillis       uint32 `mapstructure:"settle_millis"`
}

type MonitorConfig struct {
	PeriodSeconds   uint32 `mapstructure:"period_seconds"`
	HeartbeatCycles uint32 `mapstructure:"heartbeat_cycles"`
}

type LocationConfig struct {
	Latitude  float64
	Longitude float64
	TimeZone  string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	FilePath string `mapstructure:"filepath"`
}

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string
	Org    string
	Bucket string
}

type MQTTConfig struct {
	Enabled           bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type ModbusConfig struct {
	Enabled bool
	Listen  string
}

const MIN_PERIOD_SECONDS = 5

func (c MonitorConfig) Period() time.Duration {
	return time.Duration(c.PeriodSeconds) * time.Second
}

func (c MeterConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMillis) * time.Millisecond
}

func (c MeterConfig) FrameTimeout() time.Duration {
	return time.Duration(c.FrameTimeoutMillis) * time.Millisecond
}

func (c MeterConfig) Settle() time.Duration {
	return time.Duration(c.SettleMillis) * time.Millisecond
}

// TimeLocation resolves the configured zone, "" and "Local" mean the system zone.
func (c LocationConfig) TimeLocation() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
