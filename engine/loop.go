package engine

import (
	"fmt"

	mbaudio "github.com/herzi/mb-audio-engine"
)

// armLoop issues the flushing segment seek over the whole background track.
// Without it the track plays once and the graph ends normally.
func (c *Controller) armLoop() {
	if err := c.graph.Background().Seek(mbaudio.LoopSeek(true)); err != nil {
		c.log.Warn().Err(fmt.Errorf("%w: %w", ErrSeekFailure, err)).Msg("background will not loop")
		c.looping = false
		return
	}
	c.looping = true
}

// onSegmentDone restarts the background at its beginning.
func (c *Controller) onSegmentDone(msg mbaudio.Message) error {
	bg := c.graph.Background()
	if msg.Source != bg.Name() {
		c.log.Debug().Str("source", msg.Source).Msg("ignoring segment-done")
		return nil
	}
	n := c.loops.Add(1)
	if err := bg.Seek(mbaudio.LoopSeek(false)); err != nil {
		// The background has reached its end and cannot restart.
		c.log.Warn().Err(fmt.Errorf("%w: %w", ErrSeekFailure, err)).Msg("loop stopped")
		c.looping = false
		c.stop = true
		return nil
	}
	c.log.Debug().Int64("loop", n).Dur("position", msg.Position).Msg("background looped")
	return nil
}
