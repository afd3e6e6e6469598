package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/metrics"
	"github.com/berfenger/energylog/internal/modbusexport"
	"github.com/berfenger/energylog/internal/storage"
	. "github.com/berfenger/energylog/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const SINK_TIMEOUT = 10 * time.Second

// RecorderActor hands every reading to the sinks, the metrics and the Modbus register bank.
// Any of them may be nil.
type RecorderActor struct {
	behavior       actor.Behavior
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription

	sink      storage.Sink
	metrics   *metrics.Metrics
	registers *modbusexport.RegisterBank

	failures uint

	logger *zap.Logger
}

type recordEvent struct {
	event any
}

func NewRecorderActor(eventStream *eventstream.EventStream, sink storage.Sink, metrics *metrics.Metrics,
	registers *modbusexport.RegisterBank, logger *zap.Logger) *RecorderActor {
	act := &RecorderActor{
		eventStream: eventStream,
		sink:        sink,
		metrics:     metrics,
		registers:   registers,
		behavior:    actor.NewBehavior(),
		logger:      ActorLogger(domain.ACTOR_ID_RECORDER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *RecorderActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *RecorderActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("recorder@default started")
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			switch value.(type) {
			case domain.MeterReadingEvent, domain.InverterReadingEvent, domain.PollOutcomeEvent:
				ctx.Send(ctx.Self(), recordEvent{event: value})
			}
		})
	case *actor.Restarting:
		state.unsubscribe()
	case *actor.Stopping:
		state.unsubscribe()
	case domain.ActorHealthRequest:
		state.logger.Debug("recorder@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_RECORDER,
			Healthy: true,
			State:   fmt.Sprintf("idle, %d failed writes", state.failures),
		})
	case recordEvent:
		switch ev := msg.event.(type) {
		case domain.MeterReadingEvent:
			state.recordMeter(ev)
		case domain.InverterReadingEvent:
			state.recordInverter(ev)
		case domain.PollOutcomeEvent:
			if state.metrics != nil {
				state.metrics.ObservePoll(ev.Device, ev.Outcome)
			}
		}
	default:
		state.logger.Debug("recorder@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *RecorderActor) recordMeter(ev domain.MeterReadingEvent) {
	state.logger.Debug("recorder@default MeterReadingEvent", zap.Int("meter", ev.Meter))
	if state.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), SINK_TIMEOUT)
		defer cancel()
		if err := state.sink.InsertMeterReading(ctx, ev.Meter, ev.Reading, ev.Time); err != nil {
			state.failures++
			state.logger.Error("recorder@default could not store meter reading", zap.Int("meter", ev.Meter), zap.Error(err))
		}
	}
	if state.metrics != nil {
		state.metrics.ObserveMeterReading(ev.Meter, ev.Reading, ev.Time)
	}
	if state.registers != nil {
		state.registers.UpdateMeter(ev.Meter, ev.Reading)
	}
}

func (state *RecorderActor) recordInverter(ev domain.InverterReadingEvent) {
	state.logger.Debug("recorder@default InverterReadingEvent")
	if state.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), SINK_TIMEOUT)
		defer cancel()
		if err := state.sink.InsertInverterReading(ctx, ev.Reading, ev.Time); err != nil {
			state.failures++
			state.logger.Error("recorder@default could not store inverter reading", zap.Error(err))
		}
	}
	if state.metrics != nil {
		state.metrics.ObserveInverterReading(ev.Reading, ev.Time)
	}
	if state.registers != nil {
		state.registers.UpdateInverter(ev.Reading)
	}
}

func (state *RecorderActor) unsubscribe() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}
