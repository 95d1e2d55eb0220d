// Package aiff decodes uncompressed AIFF streams.
package aiff

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"

	"github.com/herzi/mb-audio-engine/audio"
)

var (
	ErrNotAiffFile     = errors.New("aiff: not a valid AIFF file")
	ErrUnsupportedAiff = errors.New("aiff: unsupported layout")
)

// Decode reads a whole AIFF stream.
func Decode(r io.ReadSeeker) (audio.PCM, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return audio.PCM{}, ErrNotAiffFile
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.PCM{}, fmt.Errorf("aiff: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return audio.PCM{}, ErrUnsupportedAiff
	}

	scale := audio.IntScale(int(dec.BitDepth))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return audio.PCM{
		Samples:    samples,
		Channels:   buf.Format.NumChannels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}
