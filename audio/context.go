// Copyright 2021 The Oto Authors
// Copyright 2025 Lundis
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

// Package audio defines the output format of a playback graph and the sinks
// that consume it.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sys/cpu"
)

const (
	ChannelCount   = 2
	BytesPerSample = 2

	DefaultSampleRate = 44100
)

var ErrInvalidFormat = errors.New("audio: invalid format")

// Format is interleaved stereo, signed 16 bit samples. The byte order is the
// host's unless a sink asks otherwise.
type Format struct {
	SampleRate int
	BigEndian  bool
}

// NativeFormat returns the output format for sampleRate in host byte order.
func NativeFormat(sampleRate int) Format {
	return Format{SampleRate: sampleRate, BigEndian: cpu.IsBigEndian}
}

func (f Format) Validate() error {
	if f.SampleRate < 1 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	return nil
}

// FrameSize is the number of bytes per stereo frame.
func (f Format) FrameSize() int {
	return ChannelCount * BytesPerSample
}

// Frames converts d to a frame count, rounding down.
func (f Format) Frames(d time.Duration) int {
	return int(int64(d) * int64(f.SampleRate) / int64(time.Second))
}

// Duration converts a frame count to stream time.
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate < 1 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

type sampleOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func (f Format) byteOrder() sampleOrder {
	if f.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Caps renders the format the way a raw-audio caps filter spells it.
func (f Format) Caps() string {
	name := "S16LE"
	if f.BigEndian {
		name = "S16BE"
	}
	return fmt.Sprintf("audio/x-raw,format=%s,channels=%d,rate=%d", name, ChannelCount, f.SampleRate)
}

// Encode clamps samples to [-1, 1] and appends them to dst as s16.
func (f Format) Encode(dst []byte, samples []float32) []byte {
	order := f.byteOrder()
	for _, s := range samples {
		dst = order.AppendUint16(dst, uint16(Float32ToInt16(s)))
	}
	return dst
}

// Decode is the inverse of Encode.
func (f Format) Decode(dst []int16, p []byte) []int16 {
	order := f.byteOrder()
	for i := 0; i+1 < len(p); i += BytesPerSample {
		dst = append(dst, int16(order.Uint16(p[i:])))
	}
	return dst
}

func Float32ToInt16(s float32) int16 {
	switch {
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return math.MinInt16
	}
	return int16(math.Round(float64(s) * math.MaxInt16))
}

// SinkOptions represents options shared by sinks.
type SinkOptions struct {
	// BufferSize specifies a buffer size in the underlying device.
	//
	// If 0 is specified, the driver's default buffer size is used.
	// Too big buffer size can increase the latency time.
	// On the other hand, too small buffer size can cause glitch noises due to buffer shortage.
	BufferSize time.Duration
}

func (o SinkOptions) bufferSizeInBytes(f Format) int {
	if o.BufferSize == 0 {
		return 0
	}
	bytesPerSecond := f.SampleRate * f.FrameSize()
	n := int(int64(o.BufferSize) * int64(bytesPerSecond) / int64(time.Second))
	return n / f.FrameSize() * f.FrameSize()
}

// Sink consumes encoded frames from a graph's data-flow goroutine.
// Write may block to pace the producer.
type Sink interface {
	Open(f Format) error
	Write(p []byte) (int, error)
	Close() error
}
