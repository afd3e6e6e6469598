package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	MEASUREMENT_METER            = "meter"
	MEASUREMENT_INVERTER         = "inverter"
	MEASUREMENT_INVERTER_CHANNEL = "inverter_channel"
	TAG_METER                    = "meter"
	TAG_CHANNEL                  = "channel"
	FIELD_DC_POWER               = "dc_power"
	FIELD_EVENT                  = "event"
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	logger *zap.Logger
}

func CreateInfluxSink(cfg InfluxConfig, logger *zap.Logger) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx url, org and bucket must be set")
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, influxdb2.DefaultOptions().SetPrecision(time.Second))
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger.With(zap.String("target", "influx")),
	}, nil
}

func (s *InfluxSink) InsertMeterReading(ctx context.Context, meter int, reading *sml.MeterReading, t time.Time) error {
	fields := map[string]interface{}{}
	for _, q := range domain.MeterQuantities(reading) {
		fields[q.Id] = q.Value
	}
	point := influxdb2.NewPoint(MEASUREMENT_METER, map[string]string{TAG_METER: strconv.Itoa(meter)}, fields, t)
	if err := s.writer.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write meter %d: %w", meter, err)
	}
	return nil
}

func (s *InfluxSink) InsertInverterReading(ctx context.Context, reading *hoymiles.InverterReading, t time.Time) error {
	fields := map[string]interface{}{
		FIELD_DC_POWER: reading.TotalDCPower(),
		FIELD_EVENT:    int64(reading.Event),
	}
	for _, q := range domain.InverterQuantities(reading) {
		fields[q.Id] = q.Value
	}
	points := []*write.Point{influxdb2.NewPoint(MEASUREMENT_INVERTER, nil, fields, t)}

	for i, ch := range reading.Channels {
		chFields := map[string]interface{}{}
		for _, q := range domain.ChannelQuantities(ch) {
			chFields[q.Id] = q.Value
		}
		points = append(points, influxdb2.NewPoint(MEASUREMENT_INVERTER_CHANNEL,
			map[string]string{TAG_CHANNEL: strconv.Itoa(i + 1)}, chFields, t))
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write inverter: %w", err)
	}
	return nil
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
