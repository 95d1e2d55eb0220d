// Package audiotest builds media fixtures for tests.
package audiotest

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes samples as a 16 bit PCM WAV file in dir and returns its path.
func WriteWAV(tb testing.TB, dir, name string, sampleRate, channels int, samples []int) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("audiotest: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		tb.Fatalf("audiotest: %v", err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("audiotest: %v", err)
	}
	if err := f.Close(); err != nil {
		tb.Fatalf("audiotest: %v", err)
	}
	return path
}

// ReadFile returns the bytes of path.
func ReadFile(tb testing.TB, path string) []byte {
	tb.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("audiotest: %v", err)
	}
	return data
}

// Constant returns frames frames of value on every channel.
func Constant(frames, channels, value int) []int {
	s := make([]int, frames*channels)
	for i := range s {
		s[i] = value
	}
	return s
}

// Ramp returns a mono ramp 0, step, 2*step, ... of length frames.
func Ramp(frames, step int) []int {
	s := make([]int, frames)
	for i := range s {
		s[i] = i * step
	}
	return s
}
