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

package mbaudio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/tools/godoc/vfs"

	"github.com/herzi/mb-audio-engine/audio"
	"github.com/herzi/mb-audio-engine/loaders"
)

var errEmptyStream = errors.New("stream has no frames")

// MediaSource produces the encoded input of a decode unit.
type MediaSource interface {
	Location() string
	Decode() (audio.PCM, error)
}

// LocalSource is a MediaSource backed by a file on the local filesystem.
// Backends that decode on their own read LocalPath instead of calling Decode.
type LocalSource interface {
	MediaSource
	LocalPath() string
}

type fileSource struct {
	fs       vfs.Opener
	decoders *loaders.Registry
	path     string
	local    string
}

// FileSource reads path from fs. With a nil fs path is opened on the local
// filesystem. A nil registry means loaders.DefaultRegistry.
func FileSource(fs vfs.Opener, decoders *loaders.Registry, path string) MediaSource {
	if decoders == nil {
		decoders = loaders.DefaultRegistry()
	}
	if fs != nil {
		return &fileSource{fs: fs, decoders: decoders, path: path}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	dir, base := filepath.Split(path)
	return &fileSource{fs: vfs.OS(dir), decoders: decoders, path: base, local: path}
}

func (s *fileSource) Location() string {
	return s.path
}

// LocalPath returns the absolute path of a file opened on the local
// filesystem, or "" for sources read from a virtual filesystem.
func (s *fileSource) LocalPath() string {
	return s.local
}

func (s *fileSource) Decode() (audio.PCM, error) {
	return s.decoders.Load(s.fs, s.path)
}

// PCMSource is an already decoded in-memory source.
type PCMSource struct {
	Name string
	PCM  audio.PCM
}

func (s PCMSource) Location() string {
	return s.Name
}

func (s PCMSource) Decode() (audio.PCM, error) {
	return s.PCM, nil
}

// Player is the decode unit of the software backend: a media source, its
// decoder and a converter to the mixer's format behind one output port.
//
// Decoded audio is cached for the lifetime of the player, so cycling a player
// between READY and PAUSED is cheap.
type Player struct {
	name    string
	source  MediaSource
	channel ChannelId
	volume  float32
	mux     *Mux
	bus     *Bus
	log     zerolog.Logger
	out     *SoftPort
	locked  atomic.Bool

	m           sync.Mutex
	state       State
	resolution  Resolution
	decodeOnce  sync.Once
	decoded     audio.PCM
	decodeErr   error
	converted   []float32
	format      audio.Format
	reader      *SegmentReader
	scratch     []float32
	segment     bool
	segmentDone bool
	eos         bool
	eosSent     bool
}

// NewPlayer creates a decode unit whose output can be linked to m.
// A volume of 0 means unity gain.
func (m *Mux) NewPlayer(name string, source MediaSource, channel ChannelId, volume float32) *Player {
	if volume == 0 {
		volume = 1
	}
	p := &Player{
		name:       name,
		source:     source,
		channel:    channel,
		volume:     volume,
		mux:        m,
		bus:        m.bus,
		log:        m.log.With().Str("unit", name).Logger(),
		resolution: Unresolved{},
	}
	p.out = newPort(m, name+":src", portSource, p)
	return p
}

func (p *Player) Name() string {
	return p.name
}

func (p *Player) Output() Port {
	return p.out
}

func (p *Player) Location() string {
	return p.source.Location()
}

func (p *Player) State() State {
	p.m.Lock()
	defer p.m.Unlock()
	return p.state
}

func (p *Player) Resolution() Resolution {
	p.m.Lock()
	defer p.m.Unlock()
	return p.resolution
}

func (p *Player) SetLocked(locked bool) {
	p.locked.Store(locked)
}

func (p *Player) Locked() bool {
	return p.locked.Load()
}

func (p *Player) SetState(target State) error {
	for {
		cur := p.State()
		if cur == target {
			return nil
		}
		next := cur.Step(target)
		if err := p.changeState(cur, next); err != nil {
			return fmt.Errorf("%s: %s -> %s: %w", p.name, cur, next, err)
		}
		p.bus.Post(Message{Kind: MessageStateChanged, Source: p.name, Old: cur, New: next})
	}
}

func (p *Player) changeState(from, to State) error {
	switch {
	case from == StateReady && to == StatePaused:
		if err := p.preroll(); err != nil {
			return err
		}
	case from == StatePaused && to == StateReady:
		p.m.Lock()
		p.resolution = Unresolved{}
		p.reader = nil
		p.segment = false
		p.segmentDone = false
		p.eos = false
		p.eosSent = false
		p.m.Unlock()
	case from == StateReady && to == StateNull:
		p.m.Lock()
		p.converted = nil
		p.m.Unlock()
	}

	p.m.Lock()
	p.state = to
	p.m.Unlock()
	p.mux.wake()
	return nil
}

// decode runs the decoder once and remembers its outcome.
func (p *Player) decode() (audio.PCM, error) {
	p.decodeOnce.Do(func() {
		pcm, err := p.source.Decode()
		if err != nil {
			p.decodeErr = err
			return
		}
		p.decoded = pcm
	})
	return p.decoded, p.decodeErr
}

// nativeRate returns the sample rate of the decoded stream.
func (p *Player) nativeRate() (int, error) {
	pcm, err := p.decode()
	if err != nil {
		return 0, err
	}
	return pcm.SampleRate, nil
}

// preroll discovers the stream and links it to the converter.
func (p *Player) preroll() error {
	format := p.mux.Format()
	pcm, err := p.decode()
	if err != nil {
		err = fmt.Errorf("%s: %w", p.source.Location(), err)
		p.bus.Post(Message{Kind: MessageError, Source: p.name, Err: err})
		return err
	}

	caps := Caps{MediaType: "audio/x-raw", SampleRate: pcm.SampleRate, Channels: pcm.Channels}
	p.bus.Post(Message{Kind: MessageStreamDiscovered, Source: p.name, Caps: caps})

	p.m.Lock()
	defer p.m.Unlock()
	if _, ok := p.resolution.(Resolved); ok {
		p.log.Warn().Stringer("caps", caps).Msg("ignoring additional stream")
		return nil
	}
	p.format = format
	if p.converted == nil {
		p.converted, err = loaders.Convert(pcm, format.SampleRate)
		if err == nil && len(p.converted) == 0 {
			err = errEmptyStream
		}
	}
	if err != nil {
		// The unit stays unresolved and produces no output.
		p.log.Warn().Err(err).Stringer("caps", caps).Msg("cannot link stream")
		p.converted = nil
		p.eos = true
		return nil
	}
	p.resolution = Resolved{Caps: caps}
	p.reader = NewSegmentReader(p.converted)
	p.segment = false
	p.segmentDone = false
	p.eos = false
	p.eosSent = false
	return nil
}

func (p *Player) Seek(s Seek) error {
	p.m.Lock()
	if p.state < StatePaused {
		p.m.Unlock()
		return fmt.Errorf("%s: %w", p.name, ErrNotPrerolled)
	}
	if p.reader == nil {
		p.m.Unlock()
		return fmt.Errorf("%s: %w", p.name, ErrNoStream)
	}
	start := p.format.Frames(s.Start) * audio.ChannelCount
	stop := -1
	if s.Stop >= 0 {
		stop = p.format.Frames(s.Stop) * audio.ChannelCount
		if stop <= start {
			p.m.Unlock()
			return fmt.Errorf("%s: empty segment [%s, %s)", p.name, s.Start, s.Stop)
		}
	}
	if start >= p.reader.Len() {
		p.m.Unlock()
		return fmt.Errorf("%s: start %s beyond end of stream", p.name, s.Start)
	}
	p.reader.SetStop(-1)
	_, _ = p.reader.Seek(start, io.SeekStart)
	p.reader.SetStop(stop)
	p.segment = s.Flags&SeekSegment != 0
	p.segmentDone = false
	p.eos = false
	p.eosSent = false
	p.m.Unlock()

	p.mux.wake()
	return nil
}

func (p *Player) Position() (time.Duration, bool) {
	p.m.Lock()
	defer p.m.Unlock()
	if p.reader == nil {
		return 0, false
	}
	return p.format.Duration(p.reader.Pos() / audio.ChannelCount), true
}

func (p *Player) Duration() (time.Duration, bool) {
	p.m.Lock()
	defer p.m.Unlock()
	if p.reader == nil {
		return 0, false
	}
	return p.format.Duration(p.reader.Len() / audio.ChannelCount), true
}

// available reports how many frames the player can deliver now. Once its
// segment runs out it posts segment-done, or marks end-of-stream and reports
// ended exactly once. Called with the mixer's lock held.
func (p *Player) available() (frames int, eos bool, ended bool) {
	p.m.Lock()
	defer p.m.Unlock()

	// Inputs below PAUSED are halted and no longer hold the mixer back.
	if p.state < StatePaused {
		return 0, true, false
	}
	if p.state != StatePlaying {
		return 0, p.eos, false
	}
	if !p.eos && p.reader != nil {
		if n := p.reader.Remaining() / audio.ChannelCount; n > 0 {
			return n, false, false
		}
		if p.segment {
			if !p.segmentDone {
				p.segmentDone = true
				p.bus.Post(Message{
					Kind:     MessageSegmentDone,
					Source:   p.name,
					Position: p.format.Duration(p.reader.Pos() / audio.ChannelCount),
				})
			}
			return 0, false, false
		}
		p.eos = true
	}
	if p.eos && !p.eosSent {
		p.eosSent = true
		return 0, true, true
	}
	return 0, p.eos, false
}

// mixInto adds the next len(buf) samples scaled by gain to buf.
// Called with the mixer's lock held.
func (p *Player) mixInto(buf []float32, gain float32) {
	p.m.Lock()
	defer p.m.Unlock()
	if p.reader == nil {
		return
	}
	if cap(p.scratch) < len(buf) {
		p.scratch = make([]float32, len(buf))
	}
	n, _ := p.reader.Read(p.scratch[:len(buf)])
	g := gain * p.volume
	for i, v := range p.scratch[:n] {
		buf[i] += v * g
	}
}
