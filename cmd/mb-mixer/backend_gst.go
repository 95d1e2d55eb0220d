//go:build gst

package main

import (
	mbaudio "github.com/herzi/mb-audio-engine"
	"github.com/herzi/mb-audio-engine/gst"
)

func init() {
	backends["gst"] = newGstGraph
}

func newGstGraph(o graphOptions) (mbaudio.Graph, error) {
	opts := gst.Options{
		Name: "mixer",
		Background: mbaudio.UnitConfig{
			Name:   "background",
			Source: mbaudio.FileSource(nil, nil, o.cfg.Background),
		},
		SampleRate: o.cfg.Output.SampleRate,
		Sink:       o.cfg.Output.Element,
		Volumes: map[mbaudio.ChannelId]float32{
			mbaudio.ChannelIdBackground: o.cfg.Playback.BackgroundVolume,
			mbaudio.ChannelIdEffects:    o.cfg.Playback.EffectVolume,
		},
		Logger: o.log,
	}
	if o.registry != nil {
		opts.Effects = o.registry.Units(nil)
	}
	if o.cfg.Playback.MaxEffects > 0 {
		opts.MaxPorts = 1 + o.cfg.Playback.MaxEffects
	}
	return gst.New(opts)
}
