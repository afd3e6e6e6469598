package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/energylog/internal/adapter/actor"
	"github.com/berfenger/energylog/internal/config"
	"github.com/berfenger/energylog/internal/core/actor"
	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/internal/metrics"
	"github.com/berfenger/energylog/internal/modbusexport"
	"github.com/berfenger/energylog/internal/radio"
	"github.com/berfenger/energylog/internal/server"
	"github.com/berfenger/energylog/internal/storage"
	"github.com/berfenger/energylog/internal/sun"
	"github.com/berfenger/energylog/internal/util/actorutil"
	"github.com/berfenger/energylog/pkg/hoymiles"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("starting energylog", zap.String("version", versioninfo.Short()))

	if err := run(cfg, logger); err != nil {
		logger.Error("energylog stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {

	// init metrics
	m := metrics.NewMetrics()

	// init devices
	inverter, err := inverterClient(cfg, m, logger)
	if err != nil {
		return err
	}
	meters, err := meterReader(cfg, m, logger)
	if err != nil {
		return err
	}
	if inverter == nil && meters == nil {
		return errors.New("both inverter and meters are disabled")
	}
	inverterChannels := 0
	if inverter != nil {
		inverterChannels = inverter.SerialNumber().Channels
	}

	meterCount := 0
	if meters != nil {
		meterCount = meter.METER_COUNT
	}

	// init storage
	sink, err := createSink(cfg, meterCount, inverterChannels, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("could not close storage", zap.Error(err))
		}
	}()

	// init Modbus export
	var registers *modbusexport.RegisterBank
	if cfg.Modbus.Enabled {
		registers = modbusexport.NewRegisterBank(inverterChannels)
		modbusServer, err := modbusexport.NewServer(cfg.Modbus.Listen, registers, logger)
		if err != nil {
			return err
		}
		if err := modbusServer.Start(); err != nil {
			return fmt.Errorf("modbus server: %w", err)
		}
		defer modbusServer.Stop()
	}

	// sun gate
	tz, err := cfg.Location.TimeLocation()
	if err != nil {
		return err
	}
	sunTimes := sun.NewCache(sun.Location{
		Latitude:  cfg.Location.Latitude,
		Longitude: cfg.Location.Longitude,
		TimeZone:  tz,
	})

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	var mqttProv actor.MQTTActorProvider
	if cfg.MQTT.Enabled {
		mqttProv = mqttActorProvider(cfg, logger)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, deviceActorProvider(inverter, meters, logger), mqttProv,
			recorderActorProvider(sink, m, registers, logger), sunTimes, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return err
	}

	server := server.NewServer(*cfg, ctx, pid, m.Handler())
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
	return nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => ENERGYLOG_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ENERGYLOG_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("energylog")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check inverter addressing
	if cfg.Inverter.Enabled {
		if _, err := hoymiles.ParseSerialNumber(cfg.Inverter.SerialNumber); err != nil {
			return nil, fmt.Errorf("config param inverter.serial_number: %w", err)
		}
		if cfg.Inverter.DtuAddress != "" {
			if _, err := hoymiles.ParseAddress(cfg.Inverter.DtuAddress); err != nil {
				return nil, fmt.Errorf("config param inverter.dtu_address: %w", err)
			}
		}
	}

	// check bounds
	if cfg.Monitor.PeriodSeconds < config.MIN_PERIOD_SECONDS {
		return nil, fmt.Errorf("config param monitor.period_seconds should be >= %d", config.MIN_PERIOD_SECONDS)
	}
	if cfg.Meter.Enabled && cfg.Meter.BaudRate <= 0 {
		return nil, errors.New("config param meter.baud_rate should be > 0")
	}
	if _, err := cfg.Location.TimeLocation(); err != nil {
		return nil, fmt.Errorf("config param location.timezone: %w", err)
	}

	return &cfg, nil
}

func inverterClient(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (radio.InverterClient, error) {
	if !cfg.Inverter.Enabled {
		return nil, nil
	}
	serial, err := hoymiles.ParseSerialNumber(cfg.Inverter.SerialNumber)
	if err != nil {
		return nil, err
	}
	var dtu hoymiles.Address
	if cfg.Inverter.DtuAddress != "" {
		dtu, err = hoymiles.ParseAddress(cfg.Inverter.DtuAddress)
	} else {
		dtu, err = hoymiles.NewDtuAddress()
	}
	if err != nil {
		return nil, err
	}
	logger.Info("inverter", zap.String("serial", serial.Value), zap.Int("channels", serial.Channels),
		zap.String("dtu_address", dtu.String()))
	return radio.CreateHoymilesInverter(radio.Config{
		SerialNumber: serial,
		DtuAddress:   dtu,
		Retries:      cfg.Inverter.Retries,
		SPIPort:      cfg.Inverter.SPIPort,
		CEPin:        cfg.Inverter.CEPin,
	}, logger, m.SessionInstrument())
}

func meterReader(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (meter.MeterReader, error) {
	if !cfg.Meter.Enabled {
		return nil, nil
	}
	return meter.CreateEbzDD3Reader(meter.Config{
		SerialPort:   cfg.Meter.SerialPort,
		BaudRate:     cfg.Meter.BaudRate,
		ReadTimeout:  cfg.Meter.ReadTimeout(),
		FrameTimeout: cfg.Meter.FrameTimeout(),
		SwitchPin:    cfg.Meter.SwitchPin,
		Settle:       cfg.Meter.Settle(),
	}, logger, m.MeterInstrument())
}

func createSink(cfg *config.Config, meters int, inverterChannels int, logger *zap.Logger) (*storage.FanoutSink, error) {
	var sinks []storage.Sink
	if cfg.Database.FilePath != "" {
		sqlite, err := storage.CreateSQLiteSink(cfg.Database.FilePath, meters, inverterChannels, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sqlite)
	}
	if cfg.Influx.URL != "" {
		influx, err := storage.CreateInfluxSink(storage.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, logger)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, influx)
	}
	if len(sinks) == 0 {
		logger.Warn("no storage configured, readings are only published")
	}
	return storage.NewFanoutSink(sinks...), nil
}

func deviceActorProvider(inverter radio.InverterClient, meters meter.MeterReader, logger *zap.Logger) actor.DeviceActorProvider {
	return func() *adactor.DeviceActor {
		return adactor.NewDeviceActor(inverter, meters, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func recorderActorProvider(sink storage.Sink, m *metrics.Metrics, registers *modbusexport.RegisterBank, logger *zap.Logger) actor.RecorderActorProvider {
	return func(es *eventstream.EventStream) *actor.RecorderActor {
		return actor.NewRecorderActor(es, sink, m, registers, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("inverter.enabled", true)
	viper.SetDefault("inverter.serial_number", "")
	viper.SetDefault("inverter.dtu_address", "")
	viper.SetDefault("inverter.retries", 20)
	viper.SetDefault("inverter.spi_port", "/dev/spidev0.0")
	viper.SetDefault("inverter.ce_pin", "GPIO24")
	viper.SetDefault("meter.enabled", true)
	viper.SetDefault("meter.serial_port", "/dev/ttyAMA0")
	viper.SetDefault("meter.baud_rate", 9600)
	viper.SetDefault("meter.read_timeout_millis", 200)
	viper.SetDefault("meter.frame_timeout_millis", 3000)
	viper.SetDefault("meter.switch_pin", "GPIO17")
	viper.SetDefault("meter.settle_millis", 100)
	viper.SetDefault("monitor.period_seconds", 60)
	viper.SetDefault("monitor.heartbeat_cycles", 20)
	viper.SetDefault("location.latitude", 0.0)
	viper.SetDefault("location.longitude", 0.0)
	viper.SetDefault("location.timezone", "Local")
	viper.SetDefault("database.filepath", "./data/energylog.db")
	viper.SetDefault("influx.url", "")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "")
	viper.SetDefault("influx.bucket", "")
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.base_topic", "energylog")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("modbus.enabled", false)
	viper.SetDefault("modbus.listen", "tcp://0.0.0.0:5502")
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Influx.Token = "*redacted*"
	slog.Info("Using", "config", cfg)
}
