// Package engine drives a playback graph: it keeps the background looping,
// splices effects into the mixer at runtime and reacts to bus messages on a
// single control goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	mbaudio "github.com/herzi/mb-audio-engine"
)

const (
	DefaultProgressInterval = 50 * time.Millisecond
	DefaultEffectInterval   = 2000 * time.Millisecond
)

// Scheduler returns the effect slots due after elapsed playback time.
// An empty name lets the picker choose.
type Scheduler interface {
	Due(elapsed time.Duration) []string
}

// Options configure a Controller.
type Options struct {
	// ProgressInterval is the period of progress reports. 0 means
	// DefaultProgressInterval.
	ProgressInterval time.Duration
	// EffectInterval is the period of the effect timer. 0 means
	// DefaultEffectInterval, a negative value disables the timer.
	EffectInterval time.Duration
	// EffectOnce fires the effect timer a single time.
	EffectOnce bool
	Reporter   Reporter
	Picker     Picker
	Scheduler  Scheduler
	Logger     zerolog.Logger
}

type handler func(msg mbaudio.Message) error

// Controller owns a graph for the duration of Run.
type Controller struct {
	graph    mbaudio.Graph
	bus      *mbaudio.Bus
	opts     Options
	log      zerolog.Logger
	handlers map[mbaudio.MessageKind]handler
	inserter *inserter

	running atomic.Bool
	started time.Time
	stop    bool
	looping bool

	loops    atomic.Int64
	attaches atomic.Int64
	detaches atomic.Int64
	failures atomic.Int64
}

// New creates a controller for g. The graph must be in NULL.
func New(g mbaudio.Graph, opts Options) (*Controller, error) {
	if g == nil {
		return nil, errors.New("engine: nil graph")
	}
	if g.Background() == nil {
		return nil, errors.New("engine: graph has no background unit")
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.EffectInterval == 0 {
		opts.EffectInterval = DefaultEffectInterval
	}

	c := &Controller{
		graph: g,
		bus:   g.Bus(),
		opts:  opts,
		log:   opts.Logger,
	}
	c.inserter = newInserter(g, opts.Picker, c.log)
	c.handlers = map[mbaudio.MessageKind]handler{
		mbaudio.MessageEOS:              c.onEOS,
		mbaudio.MessageError:            c.onError,
		mbaudio.MessageWarning:          c.onWarning,
		mbaudio.MessageSegmentDone:      c.onSegmentDone,
		mbaudio.MessageStateChanged:     c.onStateChanged,
		mbaudio.MessageStreamDiscovered: c.onStreamDiscovered,
		mbaudio.MessageEffectFinished:   c.onEffectFinished,
		mbaudio.MessageTriggerEffect:    c.onTriggerEffect,
	}
	return c, nil
}

// TriggerEffect asks the running controller to attach an effect. It never
// blocks and may be called from any goroutine.
func (c *Controller) TriggerEffect() {
	c.bus.Post(mbaudio.Message{Kind: mbaudio.MessageTriggerEffect, Source: "controller"})
}

func (c *Controller) Stats() Stats {
	return Stats{
		Loops:    int(c.loops.Load()),
		Attaches: int(c.attaches.Load()),
		Detaches: int(c.detaches.Load()),
		Failures: int(c.failures.Load()),
	}
}

// Run starts playback and processes bus messages, timers and cancellation
// until ctx is done, the graph reaches end-of-stream or a fatal error occurs.
// On return the graph is closed. Run may only be called once.
func (c *Controller) Run(ctx context.Context) (err error) {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("engine: controller already ran")
	}
	c.started = time.Now()

	progress := time.NewTicker(c.opts.ProgressInterval)
	defer progress.Stop()

	var effects <-chan time.Time
	switch {
	case c.opts.EffectInterval < 0:
	case c.opts.EffectOnce:
		t := time.NewTimer(c.opts.EffectInterval)
		defer t.Stop()
		effects = t.C
	default:
		t := time.NewTicker(c.opts.EffectInterval)
		defer t.Stop()
		effects = t.C
	}

	defer func() {
		if serr := c.shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()

	c.log.Info().
		Str("background", c.graph.Background().Name()).
		Int("effects", len(c.inserter.slots)).
		Msg("starting playback")
	if err := c.graph.SetState(mbaudio.StatePaused); err != nil {
		return &FatalError{Source: c.graph.Name(), Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("interrupted")
			return nil
		case <-c.bus.Ready():
			for _, msg := range c.bus.Drain() {
				if err := c.dispatch(msg); err != nil {
					return err
				}
				if c.stop {
					return nil
				}
			}
		case <-progress.C:
			c.report()
			c.schedule()
		case <-effects:
			c.attach("", "timer")
		}
	}
}

func (c *Controller) dispatch(msg mbaudio.Message) error {
	h, ok := c.handlers[msg.Kind]
	if !ok {
		c.log.Debug().Stringer("kind", msg.Kind).Str("source", msg.Source).Msg("ignoring message")
		return nil
	}
	return h(msg)
}

func (c *Controller) schedule() {
	if c.opts.Scheduler == nil {
		return
	}
	for _, name := range c.opts.Scheduler.Due(time.Since(c.started)) {
		c.attach(name, "cue")
	}
}

// attach splices in the named effect slot, or a picked one for an empty name.
// Failures are reported and dropped.
func (c *Controller) attach(name, reason string) {
	s, err := c.inserter.attach(name)
	if err != nil {
		c.failures.Add(1)
		c.log.Warn().Err(err).Str("reason", reason).Msg("cannot attach effect")
		return
	}
	c.attaches.Add(1)
	c.log.Info().Str("slot", s.name()).Str("reason", reason).Msg("effect attached")
}

func (c *Controller) onEOS(msg mbaudio.Message) error {
	c.log.Info().Str("source", msg.Source).Msg("end of stream")
	c.stop = true
	return nil
}

func (c *Controller) onError(msg mbaudio.Message) error {
	if c.inserter.owns(msg.Source) {
		c.log.Warn().Err(msg.Err).Str("slot", msg.Source).Msg("effect failed")
		c.inserter.fail(msg.Source, msg.Err)
		return nil
	}
	return &FatalError{Source: msg.Source, Err: msg.Err}
}

func (c *Controller) onWarning(msg mbaudio.Message) error {
	c.log.Warn().Err(msg.Err).Str("source", msg.Source).Msg("graph warning")
	return nil
}

func (c *Controller) onStreamDiscovered(msg mbaudio.Message) error {
	c.log.Debug().Str("unit", msg.Source).Stringer("caps", msg.Caps).Msg("stream discovered")
	return nil
}

func (c *Controller) onEffectFinished(msg mbaudio.Message) error {
	if c.inserter.finished(msg) {
		c.detaches.Add(1)
		c.log.Info().Str("slot", msg.Source).Msg("effect finished")
	}
	return nil
}

func (c *Controller) onTriggerEffect(mbaudio.Message) error {
	c.attach("", "trigger")
	return nil
}

// shutdown detaches running effects and tears the graph down.
func (c *Controller) shutdown() error {
	if n := c.inserter.detachAll(); n > 0 {
		c.detaches.Add(int64(n))
	}
	var errs []error
	if err := c.graph.SetState(mbaudio.StateNull); err != nil {
		errs = append(errs, fmt.Errorf("stop graph: %w", err))
	}
	if err := c.graph.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close graph: %w", err))
	}
	stats := c.Stats()
	c.log.Info().
		Int("loops", stats.Loops).
		Int("attaches", stats.Attaches).
		Int("detaches", stats.Detaches).
		Int("failures", stats.Failures).
		Msg("playback stopped")
	return errors.Join(errs...)
}
