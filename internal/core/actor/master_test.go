package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/energylog/internal/adapter/actor"
	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/internal/radio"
	"github.com/berfenger/energylog/internal/storage"
	"github.com/berfenger/energylog/internal/util"
	"github.com/berfenger/energylog/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enabled = true
	cfg.MQTT.HADiscoveryEnable = true
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	inv, err := radio.CreateTestInverter()
	require.NoError(t, err)
	meters, err := meter.CreateTestMeterReader()
	require.NoError(t, err)
	sink := storage.CreateTestSink()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, func() *adactor.DeviceActor {
			return adactor.NewDeviceActor(inv, meters, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, func(es *eventstream.EventStream) *RecorderActor {
			return NewRecorderActor(es, sink, nil, nil, logger)
		}, DaylightFunc(func(time.Time) bool { return true }), logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	// the first cycle runs right after start
	require.Eventually(t, func() bool {
		return len(sink.MeterRecords()) == 2 && len(sink.InverterRecords()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true")
	assert.Equal(t, domain.ACTOR_ID_MASTER, healthResp.Id)

	context.Stop(pid)

	as.Shutdown()
}

func TestMasterActorWithoutMQTT(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enabled = false
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	meters, err := meter.CreateTestMeterReader()
	require.NoError(t, err)
	sink := storage.CreateTestSink()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, func() *adactor.DeviceActor {
			return adactor.NewDeviceActor(nil, meters, logger)
		}, nil, func(es *eventstream.EventStream) *RecorderActor {
			return NewRecorderActor(es, sink, nil, nil, logger)
		}, nil, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	defer as.Root.Stop(pid)

	require.Eventually(t, func() bool {
		return len(sink.MeterRecords()) == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, sink.InverterRecords())

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ActorHealthResponse).Healthy)
}
