// Package mp3 decodes MPEG-1/2 layer 3 streams.
package mp3

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/herzi/mb-audio-engine/audio"
)

// go-mp3 always produces interleaved stereo 16 bit little endian.
const channels = 2

// Decode reads a whole MP3 stream.
func Decode(r io.Reader) (audio.PCM, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("mp3: %w", err)
	}
	return audio.PCM{
		Samples:    convertInt16LEToFloat32(raw),
		Channels:   channels,
		SampleRate: dec.SampleRate(),
	}, nil
}

func convertInt16LEToFloat32(raw []byte) []float32 {
	f32 := make([]float32, len(raw)/2)
	for i := range f32 {
		f32[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768.0
	}
	return f32
}
