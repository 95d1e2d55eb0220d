package engine

import (
	"time"

	mbaudio "github.com/herzi/mb-audio-engine"
)

// Progress is a snapshot of the playback taken on every progress tick.
type Progress struct {
	// Position and Duration refer to the background track. Duration is zero
	// while unknown.
	Position time.Duration
	Duration time.Duration
	State    mbaudio.State
	// Loops counts completed background traversals.
	Loops         int
	Looping       bool
	ActiveEffects int
	Attaches      int
	Detaches      int
}

// Reporter receives progress snapshots on the controller's goroutine.
// Report must not block.
type Reporter interface {
	Report(p Progress)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Progress)

func (f ReporterFunc) Report(p Progress) {
	f(p)
}

// Stats are the controller's counters. Safe to read from any goroutine.
type Stats struct {
	Loops    int
	Attaches int
	Detaches int
	// Failures counts attach attempts that were reported and dropped.
	Failures int
}

func (c *Controller) snapshot() Progress {
	p := Progress{
		State:         c.graph.State(),
		Loops:         int(c.loops.Load()),
		Looping:       c.looping,
		ActiveEffects: c.inserter.active(),
		Attaches:      int(c.attaches.Load()),
		Detaches:      int(c.detaches.Load()),
	}
	bg := c.graph.Background()
	if pos, ok := bg.Position(); ok {
		p.Position = pos
	}
	if d, ok := bg.Duration(); ok {
		p.Duration = d
	}
	return p
}

func (c *Controller) report() {
	if c.opts.Reporter != nil {
		c.opts.Reporter.Report(c.snapshot())
	}
}
