package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/teunlao/saraudio-sub000/internal/o11y"
	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/eventbus"
)

// preReadyCapacity bounds the buffer Pipeline.Push fills while no stages
// are configured. Overflow drops the newest frame, per spec §4.1.
const preReadyCapacity = 64

// noopCtx is used for the logging/metrics calls Push and teardown make
// outside of any caller-supplied context.Context — Push and Configure are
// synchronous, non-suspending operations per spec §5 and carry no context
// of their own.
var noopCtx = context.Background()

type stageRecord struct {
	controller *StageController
	stage      Stage
}

// Pipeline owns the ordered list of stages, dispatches every admitted Frame
// to each in order, and owns an event bus shared between them.
type Pipeline struct {
	bus      *eventbus.Bus
	ctx      *stageContext
	logger   *o11y.Logger
	records  []stageRecord
	preReady []audio.Frame
}

// Option configures a Pipeline constructed by New.
type Option func(*Pipeline)

// WithLogger attaches a Logger used for warn-level teardown failures.
func WithLogger(l *o11y.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the clock StageContext.Now reports. Defaults to the
// wall clock in milliseconds; tests may inject a deterministic clock.
func WithClock(clock func() int64) Option {
	return func(p *Pipeline) { p.ctx.clock = clock }
}

// New returns an empty Pipeline with no configured stages.
func New(opts ...Option) *Pipeline {
	bus := eventbus.New()
	p := &Pipeline{
		bus: bus,
		ctx: &stageContext{
			bus:   bus,
			clock: func() int64 { return time.Now().UnixMilli() },
			newID: func() string { return uuid.NewString() },
		},
		logger: o11y.NewLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bus returns the pipeline's shared event bus, for callers (e.g. the
// recorder façade) that subscribe to core events outside of a Stage.
func (p *Pipeline) Bus() *eventbus.Bus {
	return p.bus
}

// Push admits a Frame. If no stages are configured it is buffered in the
// pre-ready queue (overflow silently drops the newest frame); otherwise it
// is dispatched to every stage's Handle in declared order. A stage error is
// reported via the "error" event and discards the offending frame without
// affecting subsequent pushes.
func (p *Pipeline) Push(frame audio.Frame) {
	o11y.RecordFramePushed(noopCtx, "pipeline")
	if len(p.records) == 0 {
		if len(p.preReady) >= preReadyCapacity {
			o11y.RecordFrameDropped(noopCtx, "pre_ready_overflow")
			return
		}
		p.preReady = append(p.preReady, frame)
		return
	}
	p.dispatch(frame)
}

func (p *Pipeline) dispatch(frame audio.Frame) {
	for _, rec := range p.records {
		if err := rec.stage.Handle(p.ctx, frame); err != nil {
			p.bus.Emit("error", err)
			return
		}
	}
}

// Configure applies a new ordered stage list, performing a positional diff
// against the previous configuration (spec §4.1): matching controllers
// reuse their stage instance via Configure; mismatches tear down the old
// stage and set up the new one. Trailing previous records not covered by
// the new list are torn down. After applying, the pre-ready queue is
// drained by re-pushing its frames in order.
func (p *Pipeline) Configure(inputs []StageInput) error {
	next := make([]stageRecord, len(inputs))

	for i, in := range inputs {
		var prev *stageRecord
		if i < len(p.records) {
			prev = &p.records[i]
		}

		if in.controller != nil && prev != nil && prev.controller != nil && in.controller.matches(prev.controller) {
			if in.controller.Configure != nil {
				if err := in.controller.Configure(prev.stage); err != nil {
					return err
				}
			}
			next[i] = stageRecord{controller: in.controller, stage: prev.stage}
			continue
		}

		if prev != nil {
			p.teardown(*prev)
		}

		var stage Stage
		if in.controller != nil {
			stage = in.controller.Create()
		} else {
			stage = in.stage
		}
		if setupper, ok := stage.(Setupper); ok {
			if err := setupper.Setup(p.ctx); err != nil {
				return err
			}
		}
		next[i] = stageRecord{controller: in.controller, stage: stage}
	}

	for i := len(inputs); i < len(p.records); i++ {
		p.teardown(p.records[i])
	}

	p.records = next

	pending := p.preReady
	p.preReady = nil
	for _, frame := range pending {
		p.dispatch(frame)
	}

	return nil
}

func (p *Pipeline) teardown(rec stageRecord) {
	teardowner, ok := rec.stage.(Teardowner)
	if !ok {
		return
	}
	if err := teardowner.Teardown(p.ctx); err != nil {
		p.logger.Warn(noopCtx, "pipeline: stage teardown failed", "error", err)
	}
}

// Flush invokes Flush on every current stage, in order, for stages that
// implement Flusher.
func (p *Pipeline) Flush() error {
	for _, rec := range p.records {
		flusher, ok := rec.stage.(Flusher)
		if !ok {
			continue
		}
		if err := flusher.Flush(p.ctx); err != nil {
			return err
		}
	}
	return nil
}

// Dispose tears down every stage and clears the pipeline's stage list.
func (p *Pipeline) Dispose() {
	for _, rec := range p.records {
		p.teardown(rec)
	}
	p.records = nil
	p.preReady = nil
}
