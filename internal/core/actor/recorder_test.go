package actor

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/internal/metrics"
	"github.com/berfenger/energylog/internal/modbusexport"
	"github.com/berfenger/energylog/internal/storage"
	"github.com/berfenger/energylog/internal/util/actorutil"
	"github.com/berfenger/energylog/pkg/hoymiles"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecorderActor(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	es := &eventstream.EventStream{}
	sink := storage.CreateTestSink()
	m := metrics.NewMetrics()
	bank := modbusexport.NewRegisterBank(2)

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewRecorderActor(es, sink, m, bank, logger) }))
	defer as.Root.Stop(pid)

	// wait for the subscription
	_, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)

	serial, err := hoymiles.ParseSerialNumber("114172220203")
	require.NoError(t, err)
	reading, err := hoymiles.DecodeInverterInfo(hoymiles.TestInfoPayload(serial.Channels), serial.Channels)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	es.Publish(domain.MeterReadingEvent{Meter: 1, Reading: meter.TestMeterReading(1), Time: now})
	es.Publish(domain.InverterReadingEvent{Reading: reading, Time: now})
	es.Publish(domain.PollOutcomeEvent{Device: "meter1", Outcome: domain.POLL_OUTCOME_OK})
	// not recorded
	es.Publish(domain.FloatSensorUpdateEvent{Value: 1})

	require.Eventually(t, func() bool {
		return len(sink.MeterRecords()) == 1 && len(sink.InverterRecords()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(1, sink.MeterRecords()[0].Meter)
	assert.Equal(now, sink.MeterRecords()[0].Time)
	assert.Equal(reading, sink.InverterRecords()[0].Reading)

	regs, err := bank.Read(modbusexport.METER_BASE[1]+8, 2)
	require.NoError(t, err)
	power := math.Float32frombits(uint32(regs[0])<<16 | uint32(regs[1]))
	assert.InDelta(-245.6, power, 0.001)
}

func TestRecorderActorSinkFailure(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	es := &eventstream.EventStream{}
	sink := storage.CreateTestSink()
	sink.Err = errors.New("disk full")
	bank := modbusexport.NewRegisterBank(0)

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewRecorderActor(es, sink, nil, bank, logger) }))
	defer as.Root.Stop(pid)

	_, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)

	es.Publish(domain.MeterReadingEvent{Meter: 0, Reading: meter.TestMeterReading(0), Time: time.Now()})

	// the register bank is still updated
	require.Eventually(t, func() bool {
		regs, err := bank.Read(modbusexport.METER_BASE[0], 2)
		return err == nil && !math.IsNaN(float64(math.Float32frombits(uint32(regs[0])<<16|uint32(regs[1]))))
	}, 2*time.Second, 10*time.Millisecond)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.True(health.Healthy)
	assert.Equal("idle, 1 failed writes", health.State)
}
