package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	SQLITE_DRIVER        = "sqlite"
	INVERTER_TABLE       = "Inverter"
	METER_TABLE_FMT      = "ElectricityMeter%d"
	TIME_COLUMN          = "time"
	CHANNEL_COLUMN_FMT   = "CH%d %s"
	CREATE_TABLE_TIMEOUT = 10 * time.Second
)

var CHANNEL_COLUMNS = []string{"DC V", "DC I", "DC P", "DC E day", "DC E total"}

var AC_COLUMNS = []string{"AC V", "AC I", "AC F", "AC P", "AC Q", "AC PF", "T"}

// SQLiteSink keeps one STRICT table per device keyed by unix seconds.
type SQLiteSink struct {
	db               *sql.DB
	inverterChannels int
	meterInsert      []string
	inverterInsert   string
	logger           *zap.Logger
}

// CreateSQLiteSink opens or creates the database file with one table per meter. The inverter table has one
// column group per channel, inverterChannels 0 skips the inverter table.
func CreateSQLiteSink(path string, meters int, inverterChannels int, logger *zap.Logger) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open(SQLITE_DRIVER, path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	sink := &SQLiteSink{
		db:               db,
		inverterChannels: inverterChannels,
		logger:           logger.With(zap.String("target", "sqlite")),
	}

	ctx, cancel := context.WithTimeout(context.Background(), CREATE_TABLE_TIMEOUT)
	defer cancel()

	for m := 0; m < meters; m++ {
		table := fmt.Sprintf(METER_TABLE_FMT, m)
		if err := sink.createTable(ctx, table, sml.KEYS); err != nil {
			db.Close()
			return nil, err
		}
		sink.meterInsert = append(sink.meterInsert, insertStatement(table, sml.KEYS))
	}
	if inverterChannels > 0 {
		columns := InverterColumns(inverterChannels)
		if err := sink.createTable(ctx, INVERTER_TABLE, columns); err != nil {
			db.Close()
			return nil, err
		}
		sink.inverterInsert = insertStatement(INVERTER_TABLE, columns)
	}
	return sink, nil
}

// InverterColumns lists the inverter table columns, channels are numbered from 0.
func InverterColumns(channels int) []string {
	var columns []string
	for ch := 0; ch < channels; ch++ {
		for _, name := range CHANNEL_COLUMNS {
			columns = append(columns, fmt.Sprintf(CHANNEL_COLUMN_FMT, ch, name))
		}
	}
	return append(columns, AC_COLUMNS...)
}

func (s *SQLiteSink) createTable(ctx context.Context, table string, columns []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (%s INTEGER NOT NULL PRIMARY KEY", quote(table), quote(TIME_COLUMN))
	for _, c := range columns {
		fmt.Fprintf(&b, ", %s REAL", quote(c))
	}
	b.WriteString(") STRICT")
	if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteSink) InsertMeterReading(ctx context.Context, meter int, reading *sml.MeterReading, t time.Time) error {
	if meter < 0 || meter >= len(s.meterInsert) {
		return fmt.Errorf("no table for meter %d", meter)
	}
	values := reading.Values()
	args := []any{t.Unix()}
	for _, key := range sml.KEYS {
		args = append(args, values[key])
	}
	if _, err := s.db.ExecContext(ctx, s.meterInsert[meter], args...); err != nil {
		return fmt.Errorf("insert meter %d reading: %w", meter, err)
	}
	s.logger.Debug("meter reading stored", zap.Int("meter", meter), zap.Int64("time", t.Unix()))
	return nil
}

func (s *SQLiteSink) InsertInverterReading(ctx context.Context, reading *hoymiles.InverterReading, t time.Time) error {
	if s.inverterInsert == "" {
		return errors.New("no inverter table")
	}
	if len(reading.Channels) != s.inverterChannels {
		return fmt.Errorf("inverter reading with %d channels, table has %d", len(reading.Channels), s.inverterChannels)
	}
	args := []any{t.Unix()}
	for _, ch := range reading.Channels {
		args = append(args, ch.Voltage, ch.Current, ch.Power, ch.EnergyToday, ch.EnergyTotal)
	}
	ac := reading.AC
	args = append(args, ac.Voltage, ac.Current, ac.Frequency, ac.Power, ac.ReactivePower, ac.PowerFactor, ac.Temperature)
	if _, err := s.db.ExecContext(ctx, s.inverterInsert, args...); err != nil {
		return fmt.Errorf("insert inverter reading: %w", err)
	}
	s.logger.Debug("inverter reading stored", zap.Int64("time", t.Unix()))
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func insertStatement(table string, columns []string) string {
	quoted := []string{quote(TIME_COLUMN)}
	for _, c := range columns {
		quoted = append(quoted, quote(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), strings.Join(quoted, ", "), placeholders)
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
