package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("EnergyLog_1")
	assert.NoError(err)
	assert.Equal("energylog_1", topic)

	_, err = CheckMQTTTopic("energy/log")
	assert.Error(err)
	_, err = CheckMQTTTopic("")
	assert.Error(err)
}

func TestDurations(t *testing.T) {

	assert := assert.New(t)

	meter := MeterConfig{ReadTimeoutMillis: 200, FrameTimeoutMillis: 3000, SettleMillis: 100}
	assert.Equal(200*time.Millisecond, meter.ReadTimeout())
	assert.Equal(3*time.Second, meter.FrameTimeout())
	assert.Equal(100*time.Millisecond, meter.Settle())
	assert.Equal(time.Minute, MonitorConfig{PeriodSeconds: 60}.Period())
}

func TestTimeLocation(t *testing.T) {

	assert := assert.New(t)

	loc, err := LocationConfig{}.TimeLocation()
	assert.NoError(err)
	assert.Equal(time.Local, loc)

	loc, err = LocationConfig{TimeZone: "UTC"}.TimeLocation()
	assert.NoError(err)
	assert.Equal("UTC", loc.String())

	_, err = LocationConfig{TimeZone: "Mars/Olympus"}.TimeLocation()
	assert.Error(err)
}
