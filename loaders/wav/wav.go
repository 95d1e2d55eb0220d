// Copyright 2016 Hajime Hoshi
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wav provides WAV (RIFF) decoder.
package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/herzi/mb-audio-engine/audio"
)

var (
	ErrNotWavFile     = errors.New("wav: invalid header: 'RIFF' or 'WAVE' not found")
	ErrNotLinearPCM   = errors.New("wav: format must be linear PCM")
	ErrNoChannels     = errors.New("wav: file has no channels")
	ErrInvalidBitRate = errors.New("wav: unsupported bits per sample")
)

const formatPCM = 1

// Decode reads a whole linear PCM WAV stream.
// Any channel count, sample rate and 8/16/24/32 bit depth is accepted.
func Decode(r io.ReadSeeker) (audio.PCM, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return audio.PCM{}, ErrNotWavFile
	}
	if d.WavAudioFormat != formatPCM {
		return audio.PCM{}, ErrNotLinearPCM
	}
	if d.NumChans == 0 {
		return audio.PCM{}, ErrNoChannels
	}
	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		return audio.PCM{}, fmt.Errorf("%w: %d", ErrInvalidBitRate, d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return audio.PCM{}, fmt.Errorf("wav: %w", err)
	}

	scale := audio.IntScale(int(d.BitDepth))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if d.BitDepth == 8 {
			// 8 bit WAV is unsigned.
			v -= 128
		}
		samples[i] = float32(v) / scale
	}
	return audio.PCM{
		Samples:    samples,
		Channels:   int(d.NumChans),
		SampleRate: int(d.SampleRate),
	}, nil
}

func Load(data []byte) (audio.PCM, error) {
	return Decode(bytes.NewReader(data))
}

func LoadFile(path string) (audio.PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.PCM{}, err
	}
	defer f.Close()
	return Decode(f)
}
