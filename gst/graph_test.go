//go:build gst

package gst

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinyzimmer/go-gst/gst"

	mbaudio "github.com/herzi/mb-audio-engine"
	"github.com/herzi/mb-audio-engine/engine"
	"github.com/herzi/mb-audio-engine/internal/audiotest"
)

func TestParseCaps(t *testing.T) {
	initOnce.Do(func() { gst.Init(nil) })

	tests := []struct {
		name string
		caps *gst.Caps
		want mbaudio.Caps
	}{
		{
			name: "decoded audio",
			caps: gst.NewCapsFromString("audio/x-raw, format=(string)F32LE, layout=(string)interleaved, rate=(int)44100, channels=(int)2"),
			want: mbaudio.Caps{MediaType: "audio/x-raw", SampleRate: 44100, Channels: 2},
		},
		{
			name: "output format",
			caps: gst.NewCapsFromString(outputCaps(48000)),
			want: mbaudio.Caps{MediaType: "audio/x-raw", SampleRate: 48000, Channels: 2},
		},
		{
			name: "unfixed rate",
			caps: gst.NewCapsFromString("audio/x-raw, rate=(int)[ 1, 2147483647 ], channels=(int)1"),
			want: mbaudio.Caps{MediaType: "audio/x-raw", Channels: 1},
		},
		{
			name: "video",
			caps: gst.NewCapsFromString("video/x-raw"),
			want: mbaudio.Caps{MediaType: "video/x-raw"},
		},
		{
			name: "no caps",
			want: mbaudio.Caps{MediaType: "unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCaps(tt.caps))
		})
	}
}

func TestOutputCaps(t *testing.T) {
	tests := []struct {
		rate     int
		contains []string
		excludes []string
	}{
		{rate: 48000, contains: []string{"audio/x-raw", "channels=2", "rate=48000"}},
		{rate: 8000, contains: []string{"rate=8000"}},
		{rate: 0, contains: []string{"audio/x-raw", "channels=2"}, excludes: []string{"rate"}},
	}
	for _, tt := range tests {
		caps := outputCaps(tt.rate)
		for _, s := range tt.contains {
			assert.Contains(t, caps, s, "rate %d", tt.rate)
		}
		for _, s := range tt.excludes {
			assert.NotContains(t, caps, s, "rate %d", tt.rate)
		}
	}
}

func TestOwner(t *testing.T) {
	g := &Graph{name: "pipe", units: map[string]*Unit{"background": nil, "boom-0": nil}}

	tests := []struct {
		source, debug, want string
	}{
		{"boom-0", "", "boom-0"},
		{"background", "", "background"},
		{"boom-0-src", "", "boom-0"},
		{"background-decode", "", "background"},
		{"wavparse1", "gstwavparse.c: /GstPipeline:pipe/GstBin:boom-0/GstDecodeBin:boom-0-decode/GstWavParse:wavparse1", "boom-0"},
		{"pipe-sink", "", "pipe"},
		{"pipe", "", "pipe"},
		{"audiomixer0", "gstaggregator.c: /GstPipeline:pipe/GstAudioMixer:audiomixer0", "pipe"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.owner(tt.source, tt.debug), "%s %q", tt.source, tt.debug)
	}
}

func requireElements(t *testing.T, factories ...string) {
	t.Helper()
	initOnce.Do(func() { gst.Init(nil) })
	for _, f := range factories {
		e, err := gst.NewElement(f)
		if err != nil {
			t.Skipf("gstreamer element %s not available: %v", f, err)
		}
		_ = e.SetState(gst.StateNull)
	}
}

func TestLoopWithEffectOnGStreamer(t *testing.T) {
	requireElements(t, "filesrc", "decodebin", "audioconvert", "audioresample", "volume", "audiomixer", "capsfilter", "fakesink")

	dir := t.TempDir()
	bg := audiotest.WriteWAV(t, dir, "bg.wav", 8000, 2, audiotest.Constant(2000, 2, 8192))
	fx := audiotest.WriteWAV(t, dir, "fx.wav", 8000, 1, audiotest.Constant(400, 1, 16384))

	g, err := New(Options{
		Name:       "pipe",
		Background: mbaudio.UnitConfig{Source: mbaudio.FileSource(nil, nil, bg)},
		Effects:    []mbaudio.UnitConfig{{Name: "fx", Source: mbaudio.FileSource(nil, nil, fx)}},
		SampleRate: 8000,
		Sink:       "fakesink",
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Mixer().PortCount())

	c, err := engine.New(g, engine.Options{
		EffectInterval: 300 * time.Millisecond,
		EffectOnce:     true,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.Loops, 1)
	assert.Equal(t, 1, stats.Attaches)
	assert.Equal(t, 0, g.Mixer().PortCount())
	assert.Equal(t, mbaudio.StateNull, g.State())
}
