package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/internal/radio"
	"github.com/berfenger/energylog/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnDeviceActor(t *testing.T, inverter radio.InverterClient, meters meter.MeterReader) (*actor.ActorSystem, *actor.PID) {
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	props := actor.PropsFromProducer(func() actor.Actor { return NewDeviceActor(inverter, meters, logger) })
	pid := as.Root.Spawn(props)
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	return as, pid
}

func TestGetDevicesInfoDeviceActor(t *testing.T) {

	assert := assert.New(t)

	inv, err := radio.CreateTestInverter()
	require.NoError(t, err)
	meters, err := meter.CreateTestMeterReader()
	require.NoError(t, err)

	as, pid := spawnDeviceActor(t, inv, meters)

	result, err := as.Root.RequestFuture(pid, domain.GetDevicesInfoRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.GetDevicesInfoResponse)

	require.NotNil(t, resp.Inverter)
	assert.Equal(radio.TEST_SERIAL_NUMBER, resp.Inverter.Value)
	assert.Equal(2, resp.Inverter.Channels)
	assert.Equal(radio.TEST_DTU_ADDRESS, resp.DtuAddress)
	assert.Equal(meter.METER_COUNT, resp.Meters)
}

func TestReadMeterDeviceActor(t *testing.T) {

	assert := assert.New(t)

	reader := &meter.TestMeterReader{Errors: map[int]error{1: errors.New("no frame")}}
	as, pid := spawnDeviceActor(t, nil, reader)

	result, err := as.Root.RequestFuture(pid, domain.ReadMeterRequest{Meter: 0}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.ReadMeterResponse)
	assert.False(resp.HasResponseError())
	assert.Equal(0, resp.Meter)
	assert.Equal(meter.TestMeterReading(0), resp.Reading)
	assert.False(resp.Time.IsZero())

	// one failing meter does not affect the other
	result, err = as.Root.RequestFuture(pid, domain.ReadMeterRequest{Meter: 1}, 5*time.Second).Result()
	require.NoError(t, err)
	resp = result.(domain.ReadMeterResponse)
	assert.True(resp.HasResponseError())
	assert.Equal(1, resp.Meter)
	assert.Nil(resp.Reading)

	result, err = as.Root.RequestFuture(pid, domain.ReadMeterRequest{Meter: 0}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.False(result.(domain.ReadMeterResponse).HasResponseError())
}

func TestQueryInverterDeviceActor(t *testing.T) {

	assert := assert.New(t)

	inv, err := radio.CreateTestInverter()
	require.NoError(t, err)
	as, pid := spawnDeviceActor(t, inv, nil)

	result, err := as.Root.RequestFuture(pid, domain.QueryInverterRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.QueryInverterResponse)
	require.False(t, resp.HasResponseError())
	require.NotNil(t, resp.Reading)
	assert.Len(resp.Reading.Channels, 2)
	assert.Equal(310.5, resp.Reading.AC.Power)

	inv.Silence()
	result, err = as.Root.RequestFuture(pid, domain.QueryInverterRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp = result.(domain.QueryInverterResponse)
	assert.ErrorIs(resp.GetResponseError(), domain.ErrNoInverterResponse)
}

func TestDisabledDevicesDeviceActor(t *testing.T) {

	assert := assert.New(t)

	as, pid := spawnDeviceActor(t, nil, nil)

	result, err := as.Root.RequestFuture(pid, domain.QueryInverterRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(result.(domain.QueryInverterResponse).GetResponseError(), domain.ErrDeviceDisabled)

	result, err = as.Root.RequestFuture(pid, domain.ReadMeterRequest{Meter: 1}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(result.(domain.ReadMeterResponse).GetResponseError(), domain.ErrDeviceDisabled)

	result, err = as.Root.RequestFuture(pid, domain.GetDevicesInfoRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	info := result.(domain.GetDevicesInfoResponse)
	assert.Nil(info.Inverter)
	assert.Equal(0, info.Meters)
}

func TestQueuedRequestsDeviceActor(t *testing.T) {

	assert := assert.New(t)

	inv, err := radio.CreateTestInverter()
	require.NoError(t, err)
	meters, err := meter.CreateTestMeterReader()
	require.NoError(t, err)
	as, pid := spawnDeviceActor(t, inv, meters)

	// requests sent back to back are served in order by the single owner
	f1 := as.Root.RequestFuture(pid, domain.QueryInverterRequest{}, 5*time.Second)
	f2 := as.Root.RequestFuture(pid, domain.ReadMeterRequest{Meter: 1}, 5*time.Second)
	f3 := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second)

	r1, err := f1.Result()
	require.NoError(t, err)
	r2, err := f2.Result()
	require.NoError(t, err)
	r3, err := f3.Result()
	require.NoError(t, err)

	assert.False(r1.(domain.QueryInverterResponse).HasResponseError())
	assert.Equal(1, r2.(domain.ReadMeterResponse).Meter)
	assert.True(r3.(domain.ActorHealthResponse).Healthy)
}
