package pipeline

import "reflect"

// StageController is an identity + factory wrapper around a Stage, used by
// Pipeline.Configure to decide whether a position's stage instance survives
// a reconfigure or is torn down and recreated.
type StageController struct {
	// ID groups controllers that represent the "same" logical stage slot
	// across reconfigures. Required.
	ID string
	// Key is an opaque equality token; two controllers with the same ID
	// and equal, present Keys are treated as the same stage (rule b).
	Key any
	// Metadata is compared via reflect.DeepEqual when neither controller
	// carries a Key and no IsEqual reported a match (rule d).
	Metadata map[string]any

	// Create instantiates the Stage. Required.
	Create func() Stage
	// Configure is invoked on the existing Stage when this controller
	// replaces a matching predecessor in place. Optional.
	Configure func(existing Stage) error
	// IsEqual provides custom match logic against a same-ID predecessor
	// (rule c). Optional.
	IsEqual func(prev *StageController) bool
}

// matches reports whether prev represents the same logical stage slot as c,
// per the four rules in spec §3: reference identity, id+key equality,
// id+isEqual, or id+no-key+identical-metadata.
func (c *StageController) matches(prev *StageController) bool {
	if prev == nil || c == nil {
		return false
	}
	if prev == c {
		return true
	}
	if prev.ID != c.ID {
		return false
	}
	if prev.Key != nil && c.Key != nil {
		return prev.Key == c.Key
	}
	if c.IsEqual != nil && c.IsEqual(prev) {
		return true
	}
	if prev.IsEqual != nil && prev.IsEqual(c) {
		return true
	}
	if prev.Key == nil && c.Key == nil {
		return reflect.DeepEqual(prev.Metadata, c.Metadata)
	}
	return false
}

// StageInput is an element of the list passed to Pipeline.Configure: either
// a raw Stage with no reconfiguration identity, or a StageController.
type StageInput struct {
	stage      Stage
	controller *StageController
}

// RawStage wraps a Stage with no hot-reconfig identity: it is always torn
// down and recreated on every Configure call that reaches its position.
func RawStage(s Stage) StageInput {
	return StageInput{stage: s}
}

// Controlled wraps a StageController as a StageInput.
func Controlled(c *StageController) StageInput {
	return StageInput{controller: c}
}
