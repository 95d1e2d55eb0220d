package oggvorbis

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/herzi/mb-audio-engine/audio"
)

// Decode reads a whole Ogg Vorbis stream.
func Decode(r io.Reader) (audio.PCM, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("oggvorbis: %w", err)
	}
	if format.Channels < 1 {
		return audio.PCM{}, fmt.Errorf("oggvorbis: number of channels must be positive but was %d", format.Channels)
	}
	return audio.PCM{
		Samples:    data,
		Channels:   format.Channels,
		SampleRate: format.SampleRate,
	}, nil
}

func Load(oggData []byte) (audio.PCM, error) {
	return Decode(bytes.NewReader(oggData))
}

func LoadFile(path string) (audio.PCM, error) {
	rawData, err := os.ReadFile(path)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%s: failed to open: %w", path, err)
	}

	pcm, err := Load(rawData)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%s: %w", path, err)
	}
	return pcm, nil
}
