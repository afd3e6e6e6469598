package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	NAMESPACE  = "energylog"
	CHANNEL_AC = "ac"
)

type Metrics struct {
	registry      *prometheus.Registry
	meterValue    *prometheus.GaugeVec
	inverterValue *prometheus.GaugeVec
	radioAttempts *prometheus.CounterVec
	polls         *prometheus.CounterVec
	lastReading   *prometheus.GaugeVec
	duration      *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a private registry together with the process and Go collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		meterValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "meter_value",
			Help:      "Last value read from an electricity meter.",
		}, []string{"meter", "quantity"}),
		inverterValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "inverter_value",
			Help:      "Last value read from the inverter, channel is ac or the PV input number.",
		}, []string{"channel", "quantity"}),
		radioAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "radio_attempts_total",
			Help:      "Inverter query attempts by outcome.",
		}, []string{"outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "poll_total",
			Help:      "Device polls by outcome.",
		}, []string{"device", "outcome"}),
		lastReading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "last_reading_timestamp_seconds",
			Help:      "Unix time of the last successful reading.",
		}, []string{"device"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "operation_duration_seconds",
			Help:      "Duration of device operations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		m.meterValue, m.inverterValue, m.radioAttempts, m.polls, m.lastReading, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveMeterReading(meterIndex int, reading *sml.MeterReading, t time.Time) {
	label := strconv.Itoa(meterIndex)
	for _, q := range domain.MeterQuantities(reading) {
		m.meterValue.WithLabelValues(label, q.Id).Set(q.Value)
	}
	m.lastReading.WithLabelValues(domain.MeterDeviceName(meterIndex)).Set(float64(t.Unix()))
}

func (m *Metrics) ObserveInverterReading(reading *hoymiles.InverterReading, t time.Time) {
	for _, q := range domain.InverterQuantities(reading) {
		m.inverterValue.WithLabelValues(CHANNEL_AC, q.Id).Set(q.Value)
	}
	for i, ch := range reading.Channels {
		label := strconv.Itoa(i + 1)
		for _, q := range domain.ChannelQuantities(ch) {
			m.inverterValue.WithLabelValues(label, q.Id).Set(q.Value)
		}
	}
	m.lastReading.WithLabelValues(domain.POLL_DEVICE_INVERTER).Set(float64(t.Unix()))
}

func (m *Metrics) ObservePoll(device, outcome string) {
	m.polls.WithLabelValues(device, outcome).Inc()
}

func (m *Metrics) SessionInstrument() *hoymiles.SessionInstrument {
	return &hoymiles.SessionInstrument{
		RecordAttempt: func(channel uint8, outcome string) {
			m.radioAttempts.WithLabelValues(outcome).Inc()
		},
		RecordTime: m.recordTime,
	}
}

func (m *Metrics) MeterInstrument() *meter.MeterInstrument {
	return &meter.MeterInstrument{
		RecordTime: m.recordTime,
	}
}

func (m *Metrics) recordTime(fnName string, duration time.Duration) {
	m.duration.WithLabelValues(fnName).Observe(duration.Seconds())
}
