package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveReadings(t *testing.T) {

	assert := assert.New(t)

	m := NewMetrics()
	ts := time.Unix(1700000000, 0)

	m.ObserveMeterReading(1, meter.TestMeterReading(1), ts)
	assert.Equal(-245.6, testutil.ToFloat64(m.meterValue.WithLabelValues("1", "power")))
	assert.Equal(1520.5, testutil.ToFloat64(m.meterValue.WithLabelValues("1", "energy_import")))
	assert.Equal(float64(1700000000), testutil.ToFloat64(m.lastReading.WithLabelValues("meter1")))

	reading, err := hoymiles.DecodeInverterInfo(hoymiles.TestInfoPayload(2), 2)
	require.NoError(t, err)
	m.ObserveInverterReading(reading, ts)
	assert.Equal(reading.AC.Power, testutil.ToFloat64(m.inverterValue.WithLabelValues("ac", "ac_power")))
	assert.Equal(reading.Channels[1].Voltage, testutil.ToFloat64(m.inverterValue.WithLabelValues("2", "dc_voltage")))
	assert.Equal(7+2*5, testutil.CollectAndCount(m.inverterValue))
}

func TestInstruments(t *testing.T) {

	assert := assert.New(t)

	m := NewMetrics()
	session := m.SessionInstrument()
	session.RecordAttempt(23, hoymiles.ATTEMPT_INCOMPLETE)
	session.RecordAttempt(40, hoymiles.ATTEMPT_OK)
	session.RecordAttempt(61, hoymiles.ATTEMPT_INCOMPLETE)
	session.RecordTime("QueryInverterInfo", 1500*time.Millisecond)
	m.MeterInstrument().RecordTime("ReadMeter", 800*time.Millisecond)

	assert.Equal(float64(2), testutil.ToFloat64(m.radioAttempts.WithLabelValues(hoymiles.ATTEMPT_INCOMPLETE)))
	assert.Equal(float64(1), testutil.ToFloat64(m.radioAttempts.WithLabelValues(hoymiles.ATTEMPT_OK)))
	assert.Equal(2, testutil.CollectAndCount(m.duration))

	m.ObservePoll("meter0", "ok")
	m.ObservePoll("meter0", "ok")
	m.ObservePoll("inverter", "skipped")
	assert.Equal(float64(2), testutil.ToFloat64(m.polls.WithLabelValues("meter0", "ok")))
}

func TestHandler(t *testing.T) {

	m := NewMetrics()
	m.ObservePoll("meter1", "error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `energylog_poll_total{device="meter1",outcome="error"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
