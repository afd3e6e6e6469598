package actor

import (
	"fmt"
	"time"

	adactor "github.com/berfenger/energylog/internal/adapter/actor"
	"github.com/berfenger/energylog/internal/config"
	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/core/events"
	. "github.com/berfenger/energylog/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	MIN_CYCLE_SLEEP       = config.MIN_PERIOD_SECONDS * time.Second
	METER_REQUEST_TIMEOUT = adactor.METER_READ_TIMEOUT + 2*adactor.TASK_GRACE
	// the device actor may still be busy with a previous meter read
	INVERTER_REQUEST_TIMEOUT = adactor.INVERTER_QUERY_TIMEOUT + METER_REQUEST_TIMEOUT
)

type DaylightGate interface {
	IsDaylight(now time.Time) bool
}

type DaylightFunc func(now time.Time) bool

func (f DaylightFunc) IsDaylight(now time.Time) bool {
	return f(now)
}

// PollActor runs the collection cycle: every meter in order, then the inverter when the sun is up.
type PollActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	deviceActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	daylight    DaylightGate
	now         func() time.Time

	meters      int
	hasInverter bool
	steps       []pollStep
	cycleStart  time.Time
	cycles      uint64

	logger *zap.Logger
}

type pollTick struct {
}

type pollStep struct {
	meter    int
	inverter bool
}

func NewPollActor(config *config.Config, deviceActor *actor.PID, eventStream *eventstream.EventStream, daylight DaylightGate, logger *zap.Logger) *PollActor {
	act := &PollActor{
		config:      config,
		deviceActor: deviceActor,
		eventStream: eventStream,
		daylight:    daylight,
		now:         time.Now,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_POLL, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poll@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deviceActor, domain.GetDevicesInfoRequest{}, 2*time.Second), func(err error) any {
			return domain.GetDevicesInfoResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
			}
		})
		state.behavior.Become(state.WaitingInfoReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("poll@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDevicesInfoResponse:
		if msg.HasResponseError() {
			state.logger.Error("poll@waitingInfo GetDevicesInfoResponse", zap.Error(msg.GetResponseError()))
			panic(msg.GetResponseError())
		}
		state.logger.Debug("poll@waitingInfo GetDevicesInfoResponse", zap.Int("meters", msg.Meters), zap.Bool("inverter", msg.Inverter != nil))
		state.meters = msg.Meters
		state.hasInverter = msg.Inverter != nil
		state.behavior.Become(state.DefaultReceive)
		// first cycle right away
		ctx.Send(ctx.Self(), pollTick{})
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poll@waitingInfo stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poll@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLL,
			Healthy: true,
			State:   "idle",
		})
	case pollTick:
		state.logger.Debug("poll@default tick")
		state.cycleStart = state.now()
		state.steps = state.planCycle()
		state.behavior.BecomeStacked(state.CollectingReceive)
		state.nextStep(ctx)
	default:
		state.logger.Debug("poll@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollActor) CollectingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLL,
			Healthy: true,
			State:   "collecting",
		})
	case domain.ReadMeterResponse:
		device := domain.MeterDeviceName(msg.Meter)
		if msg.HasResponseError() {
			state.logger.Error("poll@collecting meter read failed", zap.Int("meter", msg.Meter), zap.Error(msg.GetResponseError()))
			state.publishOutcome(device, domain.POLL_OUTCOME_ERROR)
		} else {
			state.logger.Debug("poll@collecting ReadMeterResponse", zap.Int("meter", msg.Meter))
			state.eventStream.Publish(domain.MeterReadingEvent{
				Meter:   msg.Meter,
				Reading: msg.Reading,
				Time:    msg.Time,
			})
			state.publishAll(events.MeterReadingToUpdateEvents(msg.Meter, msg.Reading))
			state.publishOutcome(device, domain.POLL_OUTCOME_OK)
		}
		state.nextStep(ctx)
	case domain.QueryInverterResponse:
		if msg.HasResponseError() {
			state.logger.Error("poll@collecting inverter query failed", zap.Error(msg.GetResponseError()))
			state.publishOutcome(domain.POLL_DEVICE_INVERTER, domain.POLL_OUTCOME_ERROR)
		} else {
			state.logger.Debug("poll@collecting QueryInverterResponse", zap.Float64("ac_power", msg.Reading.AC.Power))
			state.eventStream.Publish(domain.InverterReadingEvent{
				Reading: msg.Reading,
				Time:    msg.Time,
			})
			state.publishAll(events.InverterReadingToUpdateEvents(msg.Reading))
			state.publishOutcome(domain.POLL_DEVICE_INVERTER, domain.POLL_OUTCOME_OK)
		}
		state.nextStep(ctx)
	case pollTick:
		// a cycle is already running
	default:
		state.logger.Debug("poll@collecting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollActor) planCycle() []pollStep {
	var steps []pollStep
	for i := 0; i < state.meters; i++ {
		steps = append(steps, pollStep{meter: i})
	}
	if state.hasInverter {
		if state.daylight == nil || state.daylight.IsDaylight(state.cycleStart) {
			steps = append(steps, pollStep{inverter: true})
		} else {
			state.logger.Debug("poll@default inverter skipped, sun is down")
			state.publishOutcome(domain.POLL_DEVICE_INVERTER, domain.POLL_OUTCOME_SKIPPED)
		}
	}
	return steps
}

func (state *PollActor) nextStep(ctx actor.Context) {
	if len(state.steps) == 0 {
		state.finishCycle(ctx)
		return
	}
	step := state.steps[0]
	state.steps = state.steps[1:]

	if step.inverter {
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deviceActor, domain.QueryInverterRequest{}, INVERTER_REQUEST_TIMEOUT), func(err error) any {
			return domain.QueryInverterResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
			}
		})
		return
	}
	meterIdx := step.meter
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deviceActor, domain.ReadMeterRequest{Meter: meterIdx}, METER_REQUEST_TIMEOUT), func(err error) any {
		return domain.ReadMeterResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			Meter:              meterIdx,
		}
	})
}

func (state *PollActor) finishCycle(ctx actor.Context) {
	state.cycles++
	if state.config.Monitor.HeartbeatCycles > 0 && state.cycles%uint64(state.config.Monitor.HeartbeatCycles) == 0 {
		state.logger.Info("energylog is running", zap.Uint64("cycle", state.cycles))
	}

	elapsed := state.now().Sub(state.cycleStart)
	sleep := NextCycleDelay(state.config.Monitor.Period(), elapsed)
	state.logger.Debug("poll@collecting cycle done", zap.Duration("elapsed", elapsed), zap.Duration("sleep", sleep))
	state.scheduler.RequestOnce(sleep, ctx.Self(), pollTick{})

	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func (state *PollActor) publishOutcome(device, outcome string) {
	state.eventStream.Publish(domain.PollOutcomeEvent{
		Device:  device,
		Outcome: outcome,
	})
}

func (state *PollActor) publishAll(evs []any) {
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
}

// NextCycleDelay is the remaining part of the period, never shorter than MIN_CYCLE_SLEEP.
func NextCycleDelay(period, elapsed time.Duration) time.Duration {
	return max(period-elapsed, MIN_CYCLE_SLEEP)
}
