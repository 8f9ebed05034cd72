// Package pipeline implements the staged, event-emitting frame pipeline
// (spec §4.1): an ordered list of stages that every admitted Frame is
// dispatched through, with pre-ready buffering and controller-driven hot
// reconfiguration that reuses matching stage instances across reconfigures.
package pipeline

import (
	"github.com/teunlao/saraudio-sub000/pkg/audio"
	"github.com/teunlao/saraudio-sub000/pkg/eventbus"
)

// StageContext is the handle a Stage receives in Setup, Handle, Flush, and
// Teardown. It exposes the pipeline's shared event bus plus clock/id
// helpers; the pipeline is otherwise agnostic to what events a stage emits.
// A defined core set of event names is {vad, speechStart, speechEnd,
// segment, meter, error}.
type StageContext interface {
	Emit(event string, payload any)
	On(event string, handler eventbus.Handler) eventbus.Unsubscribe
	Now() int64
	CreateID() string
}

// Stage is a configurable audio processor. Handle is the only required
// method; Setup, Flush, and Teardown are optional hooks a Stage may
// additionally implement (Setupper, Flusher, Teardowner below).
type Stage interface {
	Handle(ctx StageContext, frame audio.Frame) error
}

// Setupper is implemented by stages that need one-time initialization when
// they are first instantiated into a pipeline slot.
type Setupper interface {
	Setup(ctx StageContext) error
}

// Flusher is implemented by stages that must finalize buffered state when
// the pipeline is asked to drain (e.g. the segmenter finalizing an active
// segment).
type Flusher interface {
	Flush(ctx StageContext) error
}

// Teardowner is implemented by stages that hold resources (subscriptions,
// timers) needing release when the slot is replaced or the pipeline is
// disposed.
type Teardowner interface {
	Teardown(ctx StageContext) error
}

// stageContext is the StageContext implementation threaded through a
// Pipeline's stages.
type stageContext struct {
	bus   *eventbus.Bus
	clock func() int64
	newID func() string
}

func (c *stageContext) Emit(event string, payload any) {
	c.bus.Emit(event, payload)
}

func (c *stageContext) On(event string, handler eventbus.Handler) eventbus.Unsubscribe {
	return c.bus.On(event, handler)
}

func (c *stageContext) Now() int64 {
	return c.clock()
}

func (c *stageContext) CreateID() string {
	return c.newID()
}
