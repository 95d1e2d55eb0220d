package engine

import (
	mbaudio "github.com/herzi/mb-audio-engine"
)

// onStateChanged sets up looping when the background prerolls and starts
// playback once the whole graph has prerolled.
func (c *Controller) onStateChanged(msg mbaudio.Message) error {
	c.log.Debug().
		Str("source", msg.Source).
		Stringer("from", msg.Old).
		Stringer("to", msg.New).
		Msg("state changed")
	if msg.Old != mbaudio.StateReady || msg.New != mbaudio.StatePaused {
		return nil
	}

	switch msg.Source {
	case c.graph.Background().Name():
		c.armLoop()
	case c.graph.Name():
		c.inserter.parkAll()
		if err := c.graph.SetState(mbaudio.StatePlaying); err != nil {
			return &FatalError{Source: c.graph.Name(), Err: err}
		}
	}
	return nil
}
