package mbaudio

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herzi/mb-audio-engine/audio"
)

func testPipeline(t *testing.T, sink audio.Sink, bgFrames int, effects ...UnitConfig) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineOptions{
		Name:        "pipe",
		Background:  UnitConfig{Source: PCMSource{Name: "bg", PCM: constantPCM(bgFrames, 1000, 0.25)}},
		Effects:     effects,
		Sink:        sink,
		ChunkFrames: 32,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func TestNewPipelineValidates(t *testing.T) {
	_, err := NewPipeline(PipelineOptions{Sink: audio.NewCaptureSink(false)})
	require.Error(t, err)

	_, err = NewPipeline(PipelineOptions{Background: UnitConfig{Source: PCMSource{}}})
	require.Error(t, err)

	_, err = NewPipeline(PipelineOptions{
		Background: UnitConfig{Source: PCMSource{}},
		Effects: []UnitConfig{
			{Name: "fx", Source: PCMSource{}},
			{Name: "fx", Source: PCMSource{}},
		},
		Sink: audio.NewCaptureSink(false),
	})
	require.ErrorContains(t, err, "duplicate")
}

func TestPipelineTopology(t *testing.T) {
	p := testPipeline(t, audio.NewCaptureSink(false), 10,
		UnitConfig{Source: PCMSource{Name: "a"}},
		UnitConfig{Name: "boom", Source: PCMSource{Name: "b"}},
	)

	assert.Equal(t, "background", p.Background().Name())
	assert.NotNil(t, p.Background().Output().Peer())
	assert.Equal(t, 1, p.Mixer().PortCount())

	fx := p.Effects()
	require.Len(t, fx, 2)
	assert.Equal(t, "effect0", fx[0].Name())
	assert.Equal(t, "boom", fx[1].Name())
	for _, u := range fx {
		assert.Nil(t, u.Output().Peer())
		assert.Equal(t, StateNull, u.State())
	}

	require.NoError(t, p.Close())
	assert.Zero(t, p.Mixer().PortCount())
}

func TestPipelineLockedEffectsStayNull(t *testing.T) {
	p := testPipeline(t, audio.NewCaptureSink(false), 10, UnitConfig{Source: PCMSource{Name: "a", PCM: constantPCM(5, 1000, 0.5)}})

	require.NoError(t, p.SetState(StatePaused))
	assert.Equal(t, StatePaused, p.Background().State())
	assert.Equal(t, StateNull, p.Effects()[0].State())
	assert.Equal(t, 1000, p.Mux().Format().SampleRate)

	var changes []Message
	for _, m := range p.Bus().Drain() {
		if m.Kind == MessageStateChanged && m.Source == "pipe" {
			changes = append(changes, m)
		}
	}
	require.Len(t, changes, 2)
	assert.Equal(t, StateReady, changes[1].Old)
	assert.Equal(t, StatePaused, changes[1].New)
	require.NoError(t, p.Close())
}

func TestPipelinePlaysToEOS(t *testing.T) {
	sink := audio.NewCaptureSink(false)
	p := testPipeline(t, sink, 100)

	require.NoError(t, p.SetState(StatePlaying))
	waitFor(t, p.Bus(), MessageEOS, "pipe")
	require.NoError(t, p.Close())

	assert.Equal(t, 100, sink.Frames())
	assert.Equal(t, StateNull, p.State())
}

func TestPipelineLoopsGapless(t *testing.T) {
	sink := audio.NewCaptureSink(false)
	p := testPipeline(t, sink, 70)

	require.NoError(t, p.SetState(StatePaused))
	require.NoError(t, p.Background().Seek(LoopSeek(true)))
	require.NoError(t, p.SetState(StatePlaying))

	for i := 0; i < 3; i++ {
		waitFor(t, p.Bus(), MessageSegmentDone, "background")
		require.NoError(t, p.Background().Seek(LoopSeek(false)))
	}
	waitFor(t, p.Bus(), MessageSegmentDone, "background")
	require.NoError(t, p.Close())

	samples := sink.Samples()
	require.Len(t, samples, 4*70*audio.ChannelCount)
	want := audio.Float32ToInt16(0.25)
	for i, s := range samples {
		require.Equal(t, want, s, "sample %d", i)
	}
}
