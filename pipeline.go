package mbaudio

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/herzi/mb-audio-engine/audio"
)

// UnitConfig describes one decode unit of a pipeline.
type UnitConfig struct {
	Name   string
	Source MediaSource
	// Volume scales the unit's output. 0 means unity gain.
	Volume float32
}

// PipelineOptions configure a software playback graph.
type PipelineOptions struct {
	Name       string
	Background UnitConfig
	Effects    []UnitConfig
	Sink       audio.Sink
	// SampleRate of the output. 0 takes the background's native rate.
	SampleRate int
	// MaxPorts caps the mixer inputs. 0 allows the background plus every effect.
	MaxPorts    int
	ChunkFrames int
	Volumes     map[ChannelId]float32
	Bus         *Bus
	Logger      zerolog.Logger
}

// Pipeline is the software Graph. Its state is driven from a single
// goroutine; only the mixer runs concurrently.
type Pipeline struct {
	name       string
	bus        *Bus
	log        zerolog.Logger
	rate       int
	mux        *Mux
	background *Player
	effects    []*Player
	bgPort     Port
	state      State
}

var _ Graph = (*Pipeline)(nil)

// NewPipeline builds background -> mixer -> format filter -> sink and creates
// the effect units locked in NULL, unlinked.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Background.Source == nil {
		return nil, errors.New("pipeline: no background source")
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline: no sink")
	}
	if opts.SampleRate < 0 {
		return nil, fmt.Errorf("pipeline: %w: sample rate %d", audio.ErrInvalidFormat, opts.SampleRate)
	}
	if opts.Name == "" {
		opts.Name = "pipeline"
	}
	if opts.Bus == nil {
		opts.Bus = NewBus()
	}
	if opts.MaxPorts == 0 {
		opts.MaxPorts = 1 + len(opts.Effects)
	}

	p := &Pipeline{
		name: opts.Name,
		bus:  opts.Bus,
		log:  opts.Logger.With().Str("graph", opts.Name).Logger(),
		rate: opts.SampleRate,
	}
	p.mux = NewMux(MuxOptions{
		Name:        opts.Name,
		Bus:         opts.Bus,
		Sink:        opts.Sink,
		MaxPorts:    opts.MaxPorts,
		ChunkFrames: opts.ChunkFrames,
		Logger:      p.log,
	})
	for id, v := range opts.Volumes {
		p.mux.SetVolume(id, v)
	}

	bg := opts.Background
	if bg.Name == "" {
		bg.Name = "background"
	}
	p.background = p.mux.NewPlayer(bg.Name, bg.Source, ChannelIdBackground, bg.Volume)

	names := map[string]bool{bg.Name: true}
	for i, e := range opts.Effects {
		if e.Name == "" {
			e.Name = fmt.Sprintf("effect%d", i)
		}
		if names[e.Name] {
			return nil, fmt.Errorf("pipeline: duplicate unit name %q", e.Name)
		}
		names[e.Name] = true
		fx := p.mux.NewPlayer(e.Name, e.Source, ChannelIdEffects, e.Volume)
		fx.SetLocked(true)
		p.effects = append(p.effects, fx)
	}

	port, err := p.mux.RequestPort()
	if err != nil {
		return nil, fmt.Errorf("pipeline: background port: %w", err)
	}
	if err := p.background.Output().Link(port); err != nil {
		// Not fatal: the background branch simply stays silent.
		p.log.Warn().Err(err).Msg("cannot link background")
	}
	p.bgPort = port
	return p, nil
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) Bus() *Bus {
	return p.bus
}

func (p *Pipeline) Background() Unit {
	return p.background
}

func (p *Pipeline) Effects() []Unit {
	units := make([]Unit, len(p.effects))
	for i, e := range p.effects {
		units[i] = e
	}
	return units
}

func (p *Pipeline) Mixer() Mixer {
	return p.mux
}

// Mux exposes the software mixer for volume control and statistics.
func (p *Pipeline) Mux() *Mux {
	return p.mux
}

func (p *Pipeline) SetState(target State) error {
	for p.state != target {
		from := p.state
		to := from.Step(target)
		if err := p.changeState(from, to); err != nil {
			return fmt.Errorf("%s: %s -> %s: %w", p.name, from, to, err)
		}
		p.state = to
		p.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state changed")
		p.bus.Post(Message{Kind: MessageStateChanged, Source: p.name, Old: from, New: to})
	}
	return nil
}

func (p *Pipeline) changeState(from, to State) error {
	if from == StateNull && to == StateReady {
		p.negotiate()
	}

	// Downward transitions stop the data flow before the units reset.
	if to < from {
		if err := p.mux.changeState(from, to); err != nil {
			return err
		}
		return p.units(to)
	}

	if err := p.units(to); err != nil {
		return err
	}
	return p.mux.changeState(from, to)
}

// units moves every unlocked unit to state.
func (p *Pipeline) units(state State) error {
	if p.background.Locked() {
		return nil
	}
	return p.background.SetState(state)
}

// negotiate fixes the output format: stereo, s16, native byte order and the
// configured rate or the background's own.
func (p *Pipeline) negotiate() {
	rate := p.rate
	if rate == 0 {
		var err error
		rate, err = p.background.nativeRate()
		if err != nil || rate < 1 {
			rate = audio.DefaultSampleRate
		}
	}
	format := audio.NativeFormat(rate)
	p.mux.setFormat(format)
	p.log.Debug().Str("caps", format.Caps()).Msg("negotiated output format")
}

// Close drives the graph and every effect unit to NULL and releases all
// mixer ports. The bus is closed last.
func (p *Pipeline) Close() error {
	err := p.SetState(StateNull)
	for _, fx := range p.effects {
		if ferr := fx.SetState(StateNull); ferr != nil && err == nil {
			err = ferr
		}
	}
	p.mux.releaseAll()
	p.bgPort = nil
	p.bus.Close()
	return err
}
