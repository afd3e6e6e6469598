package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/internal/radio"
	"github.com/berfenger/energylog/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	METER_READ_TIMEOUT     = 10 * time.Second
	INVERTER_QUERY_TIMEOUT = 90 * time.Second
	// extra time for the task to return after its context deadline
	TASK_GRACE = 2 * time.Second
)

// DeviceActor is the single owner of the radio and the meter serial port.
// Requests received while a device operation runs are stashed.
type DeviceActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	inverter radio.InverterClient
	meters   meter.MeterReader
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

// NewDeviceActor takes nil for a disabled device.
func NewDeviceActor(inverter radio.InverterClient, meters meter.MeterReader, logger *zap.Logger) *DeviceActor {
	act := &DeviceActor{
		inverter: inverter,
		meters:   meters,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_DEVICE, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DeviceActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DeviceActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("device@starting started")
		if state.meters != nil {
			if err := state.meters.Open(); err != nil {
				state.logger.Error("device@starting could not open meters", zap.Error(err))
				panic(err)
			}
		}
		if state.inverter != nil {
			if err := state.inverter.Open(); err != nil {
				state.logger.Error("device@starting could not open radio", zap.Error(err))
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("device@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DeviceActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("device@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DEVICE,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDevicesInfoRequest:
		state.logger.Debug("device@default GetDevicesInfoRequest")
		actorutil.ForRequest(msg).Respond(ctx, state.devicesInfo())
	case domain.ReadMeterRequest:
		state.logger.Debug("device@default ReadMeterRequest", zap.Int("meter", msg.Meter))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		if state.meters == nil {
			ctx.Send(sender, domain.ReadMeterResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.ErrDeviceDisabled),
				Meter:              msg.Meter,
			})
			return
		}
		meterIdx := msg.Meter
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.ReadMeterResponse, error) {
			return state.readMeter(meterIdx)
		}), mapTaskResult[domain.ReadMeterResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReadMeterResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
					Meter:              meterIdx,
				},
				replyTo: sender,
			}
		}).WithTimeout(METER_READ_TIMEOUT + TASK_GRACE).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case domain.QueryInverterRequest:
		state.logger.Debug("device@default QueryInverterRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		if state.inverter == nil {
			ctx.Send(sender, domain.QueryInverterResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.ErrDeviceDisabled),
			})
			return
		}
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.queryInverter),
			mapTaskResult[domain.QueryInverterResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.QueryInverterResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
				},
				replyTo: sender,
			}
		}).WithTimeout(INVERTER_QUERY_TIMEOUT + TASK_GRACE).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case *actor.Restarting:
		state.close()
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("device@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DeviceActor) WaitingDevice(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("device@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		// a long radio session must not look like a dead actor
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DEVICE,
			Healthy: true,
			State:   "busy",
		})
	case *actor.Restarting:
		state.close()
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("device@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DeviceActor) devicesInfo() domain.GetDevicesInfoResponse {
	resp := domain.GetDevicesInfoResponse{}
	if state.inverter != nil {
		serial := state.inverter.SerialNumber()
		resp.Inverter = &serial
		resp.DtuAddress = state.inverter.DtuAddress()
	}
	if state.meters != nil {
		resp.Meters = meter.METER_COUNT
	}
	return resp
}

func (state *DeviceActor) readMeter(meterIdx int) (*domain.ReadMeterResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), METER_READ_TIMEOUT)
	defer cancel()
	reading, err := state.meters.ReadMeter(ctx, meterIdx)
	if err != nil {
		state.logger.Warn("device@waiting meter read failed", zap.Int("meter", meterIdx), zap.Error(err))
		return nil, err
	}
	return &domain.ReadMeterResponse{
		Meter:   meterIdx,
		Reading: reading,
		Time:    time.Now(),
	}, nil
}

func (state *DeviceActor) queryInverter() (*domain.QueryInverterResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), INVERTER_QUERY_TIMEOUT)
	defer cancel()
	reading, ok := state.inverter.QueryInverterInfo(ctx)
	if !ok {
		return nil, domain.ErrNoInverterResponse
	}
	return &domain.QueryInverterResponse{
		Reading: reading,
		Time:    time.Now(),
	}, nil
}

func (state *DeviceActor) close() {
	if state.inverter != nil {
		if err := state.inverter.Close(); err != nil {
			state.logger.Warn("device: radio close", zap.Error(err))
		}
	}
	if state.meters != nil {
		if err := state.meters.Close(); err != nil {
			state.logger.Warn("device: meter close", zap.Error(err))
		}
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
