package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mbaudio "github.com/herzi/mb-audio-engine"
	"github.com/herzi/mb-audio-engine/audio"
	"github.com/herzi/mb-audio-engine/internal/audiotest"
)

const scenarioRate = 8000

func softPipeline(t *testing.T, sink audio.Sink, background string, effects ...string) *mbaudio.Pipeline {
	t.Helper()
	opts := mbaudio.PipelineOptions{
		Name:        "pipeline",
		Background:  mbaudio.UnitConfig{Source: mbaudio.FileSource(nil, nil, background)},
		Sink:        sink,
		ChunkFrames: 128,
		Logger:      zerolog.Nop(),
	}
	for _, path := range effects {
		opts.Effects = append(opts.Effects, mbaudio.UnitConfig{Source: mbaudio.FileSource(nil, nil, path)})
	}
	p, err := mbaudio.NewPipeline(opts)
	require.NoError(t, err)
	return p
}

func runFor(t *testing.T, c *Controller, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, c.Run(ctx))
}

func TestLoopWithOneEffect(t *testing.T) {
	dir := t.TempDir()
	bg := audiotest.WriteWAV(t, dir, "bg.wav", scenarioRate, 2, audiotest.Constant(2000, 2, 8192))
	fx := audiotest.WriteWAV(t, dir, "fx.wav", scenarioRate, 1, audiotest.Constant(400, 1, 16384))

	sink := audio.NewCaptureSink(true)
	p := softPipeline(t, sink, bg, fx)
	c, err := New(p, Options{
		EffectInterval: 300 * time.Millisecond,
		EffectOnce:     true,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)

	runFor(t, c, 1200*time.Millisecond)

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.Loops, 3)
	assert.Equal(t, 1, stats.Attaches)
	assert.Equal(t, 1, stats.Detaches)
	assert.Equal(t, mbaudio.StateNull, p.State())
	assert.Zero(t, p.Mixer().PortCount())

	alone := audio.Float32ToInt16(0.25)
	mixed := audio.Float32ToInt16(0.75)
	samples := sink.Samples()
	require.Greater(t, len(samples)/audio.ChannelCount, 3*2000)

	first, last, count := -1, -1, 0
	for i := 0; i < len(samples); i += audio.ChannelCount {
		frame := i / audio.ChannelCount
		switch samples[i] {
		case alone:
		case mixed:
			if first < 0 {
				first = frame
			}
			last = frame
			count++
		default:
			t.Fatalf("frame %d: unexpected sample %d", frame, samples[i])
		}
		require.Equal(t, samples[i], samples[i+1], "frame %d", frame)
	}
	assert.Equal(t, 400, count)
	assert.Equal(t, 399, last-first)
}

func TestInvalidEffectKeepsBackgroundLooping(t *testing.T) {
	dir := t.TempDir()
	bg := audiotest.WriteWAV(t, dir, "bg.wav", scenarioRate, 2, audiotest.Constant(800, 2, 8192))
	missing := filepath.Join(dir, "missing.wav")

	sink := audio.NewCaptureSink(true)
	p := softPipeline(t, sink, bg, missing)
	c, err := New(p, Options{
		EffectInterval: 100 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)

	runFor(t, c, 600*time.Millisecond)

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.Loops, 2)
	assert.Zero(t, stats.Attaches)
	assert.Positive(t, stats.Failures)
	assert.Zero(t, p.Mixer().PortCount())

	alone := audio.Float32ToInt16(0.25)
	for i, s := range sink.Samples() {
		require.Equal(t, alone, s, "sample %d", i)
	}
}

func TestMissingBackgroundIsFatal(t *testing.T) {
	dir := t.TempDir()
	p := softPipeline(t, audio.NewCaptureSink(false), filepath.Join(dir, "missing.wav"))
	c, err := New(p, Options{EffectInterval: -1, Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = c.Run(context.Background())
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "pipeline", fatal.Source)
	assert.Equal(t, mbaudio.StateNull, p.State())
	assert.Zero(t, p.Mixer().PortCount())
}
