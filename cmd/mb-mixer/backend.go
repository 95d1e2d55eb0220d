package main

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	mbaudio "github.com/herzi/mb-audio-engine"
	"github.com/herzi/mb-audio-engine/audio"
	"github.com/herzi/mb-audio-engine/engine"
	"github.com/herzi/mb-audio-engine/internal/config"
	"github.com/herzi/mb-audio-engine/loaders"
	"github.com/herzi/mb-audio-engine/sfx"
)

// graphOptions is what a backend needs to build the playback graph.
type graphOptions struct {
	cfg      config.Config
	registry *sfx.Registry // nil without effects
	log      zerolog.Logger
}

type backendFunc func(o graphOptions) (mbaudio.Graph, error)

var backends = map[string]backendFunc{
	"soft": newSoftGraph,
}

func newGraph(o graphOptions) (mbaudio.Graph, error) {
	build, ok := backends[o.cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: backend %q is not compiled in", engine.ErrCapability, o.cfg.Backend)
	}
	return build(o)
}

func newSoftGraph(o graphOptions) (mbaudio.Graph, error) {
	decoders := loaders.DefaultRegistry()
	opts := mbaudio.PipelineOptions{
		Name: "mixer",
		Background: mbaudio.UnitConfig{
			Name:   "background",
			Source: mbaudio.FileSource(nil, decoders, o.cfg.Background),
		},
		Sink:       newSink(o.cfg.Output, o.log),
		SampleRate: o.cfg.Output.SampleRate,
		Volumes: map[mbaudio.ChannelId]float32{
			mbaudio.ChannelIdBackground: o.cfg.Playback.BackgroundVolume,
			mbaudio.ChannelIdEffects:    o.cfg.Playback.EffectVolume,
		},
		Logger: o.log,
	}
	if o.registry != nil {
		opts.Effects = o.registry.Units(decoders)
	}
	if o.cfg.Playback.MaxEffects > 0 {
		opts.MaxPorts = 1 + o.cfg.Playback.MaxEffects
	}
	return mbaudio.NewPipeline(opts)
}

func newSink(c config.OutputConfig, log zerolog.Logger) audio.Sink {
	switch c.Sink {
	case "oto":
		return audio.NewOtoSink(audio.SinkOptions{BufferSize: c.Buffer})
	case "null":
		return audio.NewNullSink()
	case "wav":
		return audio.NewWavSink(c.File)
	}
	return &fallbackSink{
		primary:  audio.NewOtoSink(audio.SinkOptions{BufferSize: c.Buffer}),
		fallback: audio.NewNullSink(),
		log:      log,
	}
}

// fallbackSink opens primary and falls back when no device is available.
type fallbackSink struct {
	primary  audio.Sink
	fallback audio.Sink
	log      zerolog.Logger

	m      sync.Mutex
	active audio.Sink
}

func (s *fallbackSink) Open(f audio.Format) error {
	s.m.Lock()
	defer s.m.Unlock()
	if err := s.primary.Open(f); err != nil {
		s.log.Warn().Err(err).Msg("no audio device, playing silently")
		s.active = s.fallback
		return s.fallback.Open(f)
	}
	s.active = s.primary
	return nil
}

func (s *fallbackSink) sink() audio.Sink {
	s.m.Lock()
	defer s.m.Unlock()
	return s.active
}

func (s *fallbackSink) Write(p []byte) (int, error) {
	active := s.sink()
	if active == nil {
		return 0, audio.ErrSinkClosed
	}
	return active.Write(p)
}

func (s *fallbackSink) Close() error {
	s.m.Lock()
	active := s.active
	s.active = nil
	s.m.Unlock()
	if active == nil {
		return nil
	}
	return active.Close()
}
