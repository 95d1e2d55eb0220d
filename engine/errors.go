package engine

import (
	"errors"
	"fmt"

	mbaudio "github.com/herzi/mb-audio-engine"
)

var (
	// ErrLinkFailure means a branch could not be connected. The branch stays
	// unconnected and playback continues.
	ErrLinkFailure = errors.New("engine: link failure")
	// ErrSeekFailure means the loop could not be armed. Playback runs to its
	// natural end.
	ErrSeekFailure = errors.New("engine: seek failure")
	// ErrPortExhausted means the mixer refused another input.
	ErrPortExhausted = mbaudio.ErrPortExhausted
	// ErrNoFreeSlot means every effect slot is attached or none was picked.
	ErrNoFreeSlot = errors.New("engine: no free effect slot")
	// ErrCapability means a capability required at startup is missing.
	ErrCapability = errors.New("engine: missing capability")
)

// FatalError is a graph-level error. It ends Controller.Run.
type FatalError struct {
	Source string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("engine: fatal: %v", e.Err)
	}
	return fmt.Sprintf("engine: fatal error from %s: %v", e.Source, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
