//go:build gst

// Package gst builds the playback graph on GStreamer:
//
//	background: filesrc ! decodebin ! audioconvert ! audioresample ! volume ─┐
//	effect:     filesrc ! decodebin ! audioconvert ! audioresample ! volume ─┤ (request pads)
//	                                                 audiomixer ! capsfilter ! sink
//
// Effect bins live in the pipeline with a locked state and are linked to a
// fresh audiomixer request pad for every attach.
package gst

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"

	mbaudio "github.com/herzi/mb-audio-engine"
	"github.com/herzi/mb-audio-engine/audio"
)

// pollInterval bounds how long the bus pump waits for a message, and with it
// how long Close waits for the pump.
const pollInterval = 50 * time.Millisecond

var initOnce sync.Once

type Options struct {
	Name       string
	Background mbaudio.UnitConfig
	Effects    []mbaudio.UnitConfig
	// SampleRate of the output. 0 lets the sink negotiate.
	SampleRate int
	// Sink is the factory name of the output element, autoaudiosink by default.
	Sink string
	// MaxPorts caps the mixer inputs. 0 allows the background plus every effect.
	MaxPorts int
	Volumes  map[mbaudio.ChannelId]float32
	Bus      *mbaudio.Bus
	Logger   zerolog.Logger
}

// Graph is the GStreamer implementation of mbaudio.Graph.
type Graph struct {
	name string
	bus  *mbaudio.Bus
	log  zerolog.Logger

	pipeline   *gst.Pipeline
	mixer      *Mixer
	background *Unit
	effects    []*Unit
	bgPort     mbaudio.Port
	units      map[string]*Unit

	state     mbaudio.State
	stopPump  context.CancelFunc
	pumpDone  chan struct{}
	closeOnce sync.Once
}

var _ mbaudio.Graph = (*Graph)(nil)

// New builds the pipeline in NULL. The effect units are locked and unlinked.
func New(opts Options) (*Graph, error) {
	initOnce.Do(func() { gst.Init(nil) })

	if opts.Background.Source == nil {
		return nil, fmt.Errorf("gst: no background source")
	}
	if opts.SampleRate < 0 {
		return nil, fmt.Errorf("gst: %w: sample rate %d", audio.ErrInvalidFormat, opts.SampleRate)
	}
	if opts.Name == "" {
		opts.Name = "pipeline"
	}
	if opts.Sink == "" {
		opts.Sink = "autoaudiosink"
	}
	if opts.Bus == nil {
		opts.Bus = mbaudio.NewBus()
	}
	if opts.MaxPorts == 0 {
		opts.MaxPorts = 1 + len(opts.Effects)
	}

	pipeline, err := gst.NewPipeline(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: pipeline: %w", ErrElement, err)
	}
	g := &Graph{
		name:     opts.Name,
		bus:      opts.Bus,
		log:      opts.Logger.With().Str("graph", opts.Name).Logger(),
		pipeline: pipeline,
		units:    make(map[string]*Unit),
	}

	mix, err := gst.NewElementWithName("audiomixer", opts.Name+"-mixer")
	if err != nil {
		return nil, fmt.Errorf("%w: audiomixer: %w", ErrElement, err)
	}
	filter, err := gst.NewElementWithName("capsfilter", opts.Name+"-format")
	if err != nil {
		return nil, fmt.Errorf("%w: capsfilter: %w", ErrElement, err)
	}
	caps := outputCaps(opts.SampleRate)
	if err := filter.SetProperty("caps", gst.NewCapsFromString(caps)); err != nil {
		return nil, fmt.Errorf("gst: caps: %w", err)
	}
	sink, err := gst.NewElementWithName(opts.Sink, opts.Name+"-sink")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrElement, opts.Sink, err)
	}
	if err := pipeline.AddMany(mix, filter, sink); err != nil {
		return nil, fmt.Errorf("gst: %w", err)
	}
	if err := gst.ElementLinkMany(mix, filter, sink); err != nil {
		return nil, fmt.Errorf("%w: output: %w", ErrLink, err)
	}
	g.mixer = &Mixer{element: mix, max: opts.MaxPorts, ports: make(map[*mixerPort]struct{})}
	g.log.Debug().Str("caps", caps).Str("sink", opts.Sink).Msg("built output")

	gain := func(id mbaudio.ChannelId) float32 {
		if v, ok := opts.Volumes[id]; ok {
			return v
		}
		return 1
	}

	bg := opts.Background
	if bg.Name == "" {
		bg.Name = "background"
	}
	if g.background, err = g.addUnit(bg, gain(mbaudio.ChannelIdBackground)); err != nil {
		return nil, err
	}
	for i, e := range opts.Effects {
		if e.Name == "" {
			e.Name = fmt.Sprintf("effect%d", i)
		}
		fx, err := g.addUnit(e, gain(mbaudio.ChannelIdEffects))
		if err != nil {
			return nil, err
		}
		fx.SetLocked(true)
		g.effects = append(g.effects, fx)
	}

	port, err := g.mixer.RequestPort()
	if err != nil {
		return nil, fmt.Errorf("gst: background port: %w", err)
	}
	if err := g.background.Output().Link(port); err != nil {
		g.log.Warn().Err(err).Msg("cannot link background")
	}
	g.bgPort = port

	ctx, cancel := context.WithCancel(context.Background())
	g.stopPump = cancel
	g.pumpDone = make(chan struct{})
	go g.pump(ctx)
	return g, nil
}

func outputCaps(rate int) string {
	if rate > 0 {
		return audio.NativeFormat(rate).Caps()
	}
	caps := audio.NativeFormat(1).Caps()
	return caps[:strings.LastIndex(caps, ",rate=")]
}

func (g *Graph) addUnit(cfg mbaudio.UnitConfig, gain float32) (*Unit, error) {
	if _, dup := g.units[cfg.Name]; dup || cfg.Name == g.name {
		return nil, fmt.Errorf("gst: duplicate unit name %q", cfg.Name)
	}
	u, err := newUnit(g, cfg, gain)
	if err != nil {
		return nil, err
	}
	if err := g.pipeline.Add(u.bin.Element); err != nil {
		return nil, fmt.Errorf("gst: %s: %w", cfg.Name, err)
	}
	g.units[cfg.Name] = u
	return u, nil
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) State() mbaudio.State {
	return g.state
}

func (g *Graph) Bus() *mbaudio.Bus {
	return g.bus
}

func (g *Graph) Background() mbaudio.Unit {
	return g.background
}

func (g *Graph) Effects() []mbaudio.Unit {
	units := make([]mbaudio.Unit, len(g.effects))
	for i, u := range g.effects {
		units[i] = u
	}
	return units
}

func (g *Graph) Mixer() mbaudio.Mixer {
	return g.mixer
}

// SetState steps the pipeline towards target. Prerolling completes
// asynchronously: the READY -> PAUSED message arrives on the bus once the sink
// has prerolled.
func (g *Graph) SetState(target mbaudio.State) error {
	for g.state != target {
		from := g.state
		to := from.Step(target)
		if err := g.pipeline.SetState(toGst(to)); err != nil {
			return fmt.Errorf("%w: %s: %s -> %s: %w", ErrState, g.name, from, to, err)
		}
		// The background follows the pipeline.
		g.background.m.Lock()
		if from == mbaudio.StatePaused && to == mbaudio.StateReady {
			g.background.resolution = mbaudio.Unresolved{}
		}
		g.background.state = to
		g.background.m.Unlock()
		g.state = to
	}
	return nil
}

// Close drives the pipeline and every effect unit to NULL, releases all mixer
// ports and closes the bus.
func (g *Graph) Close() error {
	var err error
	g.closeOnce.Do(func() {
		err = g.SetState(mbaudio.StateNull)
		for _, fx := range g.effects {
			if ferr := fx.SetState(mbaudio.StateNull); ferr != nil && err == nil {
				err = ferr
			}
		}
		g.mixer.releaseAll()
		g.bgPort = nil
		g.stopPump()
		<-g.pumpDone
		g.bus.Close()
	})
	return err
}

// pump forwards GStreamer bus messages to the graph bus.
func (g *Graph) pump(ctx context.Context) {
	defer close(g.pumpDone)
	bus := g.pipeline.GetPipelineBus()
	for ctx.Err() == nil {
		msg := bus.TimedPop(pollInterval)
		if msg == nil {
			continue
		}
		if m, ok := g.translate(msg); ok {
			g.bus.Post(m)
		}
	}
}

func (g *Graph) translate(msg *gst.Message) (mbaudio.Message, bool) {
	source := msg.Source()
	switch msg.Type() {
	case gst.MessageEOS:
		return mbaudio.Message{Kind: mbaudio.MessageEOS, Source: g.name}, true

	case gst.MessageSegmentDone:
		// Only the background runs segment seeks.
		var pos time.Duration
		if d, ok := g.background.Position(); ok {
			pos = d
		}
		return mbaudio.Message{Kind: mbaudio.MessageSegmentDone, Source: g.background.name, Position: pos}, true

	case gst.MessageError:
		gerr := msg.ParseError()
		g.log.Debug().Str("source", source).Str("debug", gerr.DebugString()).Msg("gstreamer error")
		return mbaudio.Message{Kind: mbaudio.MessageError, Source: g.owner(source, gerr.DebugString()), Err: gerr}, true

	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		return mbaudio.Message{Kind: mbaudio.MessageWarning, Source: g.owner(source, gerr.DebugString()), Err: gerr}, true

	case gst.MessageStateChanged:
		if source != g.name {
			if _, ok := g.units[source]; !ok {
				return mbaudio.Message{}, false
			}
		}
		old, now := msg.ParseStateChanged()
		from, ok1 := fromGst(old)
		to, ok2 := fromGst(now)
		if !ok1 || !ok2 {
			return mbaudio.Message{}, false
		}
		return mbaudio.Message{Kind: mbaudio.MessageStateChanged, Source: source, Old: from, New: to}, true
	}
	return mbaudio.Message{}, false
}

// owner maps an element to the unit it belongs to. Unit elements are named
// "<unit>-<role>"; elements created inside decodebin are found through the
// object path GStreamer puts into the debug string.
func (g *Graph) owner(element, debug string) string {
	if _, ok := g.units[element]; ok {
		return element
	}
	for name := range g.units {
		if strings.HasPrefix(element, name+"-") || strings.Contains(debug, "/GstBin:"+name+"/") {
			return name
		}
	}
	return g.name
}
