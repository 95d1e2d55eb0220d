package loaders_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/godoc/vfs"
	"golang.org/x/tools/godoc/vfs/mapfs"

	"github.com/herzi/mb-audio-engine/audio"
	"github.com/herzi/mb-audio-engine/internal/audiotest"
	"github.com/herzi/mb-audio-engine/loaders"
)

func TestDefaultRegistryLoadsWav(t *testing.T) {
	dir := t.TempDir()
	audiotest.WriteWAV(t, dir, "tone.wav", 8000, 1, []int{0, 8192, 16384})

	pcm, err := loaders.DefaultRegistry().Load(vfs.OS(dir), "tone.wav")
	require.NoError(t, err)
	assert.Equal(t, 1, pcm.Channels)
	assert.Equal(t, 3, pcm.Frames())
}

func TestRegistrySniffsSignature(t *testing.T) {
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "tone.wav", 8000, 2, audiotest.Constant(4, 2, 0))
	fs := mapfs.New(map[string]string{"noext": string(audiotest.ReadFile(t, path))})

	pcm, err := loaders.DefaultRegistry().Load(fs, "noext")
	require.NoError(t, err)
	assert.Equal(t, 4, pcm.Frames())
}

func TestRegistryUnsupported(t *testing.T) {
	fs := mapfs.New(map[string]string{"notes.txt": "hello world, not audio"})
	_, err := loaders.DefaultRegistry().Load(fs, "notes.txt")
	require.ErrorIs(t, err, loaders.ErrUnsupportedFormat)
}

func TestRegistryMissingFile(t *testing.T) {
	_, err := loaders.DefaultRegistry().Load(mapfs.New(nil), "missing.wav")
	require.Error(t, err)
}

func TestRegisterOverridesExtension(t *testing.T) {
	r := loaders.NewRegistry()
	called := false
	r.Register(loaders.DecoderFunc(func(io.ReadSeeker) (audio.PCM, error) {
		called = true
		return audio.PCM{Channels: 1, SampleRate: 1}, nil
	}), ".RAW")

	_, err := r.Decode("clip.raw", bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestConvertMonoToStereo(t *testing.T) {
	out, err := loaders.Convert(audio.PCM{Samples: []float32{0.1, 0.2}, Channels: 1, SampleRate: 8000}, 8000)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.1, 0.2, 0.2}, out)
}

func TestConvertDownmixesSurround(t *testing.T) {
	// Four channels: L = avg(c0, c2), R = avg(c1, c3).
	out, err := loaders.Convert(audio.PCM{Samples: []float32{0.2, 0.4, 0.4, 0.8}, Channels: 4, SampleRate: 10}, 10)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.3, 0.6}, out, 1e-6)
}

func TestConvertResamplesLength(t *testing.T) {
	src := audio.PCM{Samples: make([]float32, 2*4410), Channels: 2, SampleRate: 44100}
	for i := range src.Samples {
		src.Samples[i] = 0.5
	}
	out, err := loaders.Convert(src, 8000)
	require.NoError(t, err)
	assert.Len(t, out, 2*800)
	for _, v := range out {
		assert.InDelta(t, 0.5, v, 1e-5)
	}
}

func TestConvertRejectsBrokenStreams(t *testing.T) {
	_, err := loaders.Convert(audio.PCM{Channels: 0, SampleRate: 8000}, 8000)
	require.ErrorIs(t, err, loaders.ErrCannotConvert)
	_, err = loaders.Convert(audio.PCM{Channels: 2, SampleRate: 8000}, 0)
	require.ErrorIs(t, err, loaders.ErrCannotConvert)
}
