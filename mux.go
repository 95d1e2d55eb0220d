// Copyright 2021 The Oto Authors
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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/herzi/mb-audio-engine/audio"
)

const defaultChunkFrames = 512

// MuxOptions configure a Mux.
type MuxOptions struct {
	// Name is used as the source of end-of-stream and error messages.
	Name string
	Bus  *Bus
	Sink audio.Sink
	// MaxPorts caps the number of request ports. 0 means unlimited.
	MaxPorts int
	// ChunkFrames is the number of frames mixed per cycle.
	ChunkFrames int
	Logger      zerolog.Logger
}

// Mux is a request-port mixer. Its data-flow goroutine waits until every
// linked, still running input has data, mixes the largest chunk all of them
// can deliver and writes it to the sink.
type Mux struct {
	name     string
	bus      *Bus
	sink     audio.Sink
	maxPorts int
	chunk    int
	log      zerolog.Logger

	cond      *sync.Cond
	ports     map[*SoftPort]struct{}
	nextPort  int
	channels  channelTable
	format    audio.Format
	state     State
	stopping  bool
	failed    bool
	eosPosted bool
	inputs    []*SoftPort
	done      chan struct{}

	err     atomicError
	written atomic.Int64
}

// NewMux creates a new Mux.
func NewMux(opts MuxOptions) *Mux {
	if opts.ChunkFrames <= 0 {
		opts.ChunkFrames = defaultChunkFrames
	}
	if opts.Bus == nil {
		opts.Bus = NewBus()
	}
	return &Mux{
		name:     opts.Name,
		bus:      opts.Bus,
		sink:     opts.Sink,
		maxPorts: opts.MaxPorts,
		chunk:    opts.ChunkFrames,
		log:      opts.Logger,
		cond:     sync.NewCond(&sync.Mutex{}),
		ports:    make(map[*SoftPort]struct{}),
		channels: make(channelTable),
	}
}

// RequestPort creates a new input named sink_N. Names are never reused.
func (m *Mux) RequestPort() (Port, error) {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()

	if m.maxPorts > 0 && len(m.ports) >= m.maxPorts {
		return nil, fmt.Errorf("%d ports in use: %w", len(m.ports), ErrPortExhausted)
	}
	p := newPort(m, fmt.Sprintf("sink_%d", m.nextPort), portSink, nil)
	m.nextPort++
	m.ports[p] = struct{}{}
	return p, nil
}

// ReleasePort unlinks p if needed and removes it from the mixer.
func (m *Mux) ReleasePort(p Port) error {
	sp, ok := p.(*SoftPort)
	if !ok {
		return ErrIncompatiblePort
	}
	m.cond.L.Lock()
	defer m.cond.L.Unlock()

	if _, ok := m.ports[sp]; !ok {
		return fmt.Errorf("%s: %w", sp.name, ErrPortReleased)
	}
	sp.unlinkLocked()
	sp.released = true
	delete(m.ports, sp)
	m.cond.Broadcast()
	return nil
}

func (m *Mux) releaseAll() {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()
	for sp := range m.ports {
		sp.unlinkLocked()
		sp.released = true
		delete(m.ports, sp)
	}
	m.cond.Broadcast()
}

func (m *Mux) PortCount() int {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()
	return len(m.ports)
}

func (m *Mux) Format() audio.Format {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()
	return m.format
}

func (m *Mux) setFormat(f audio.Format) {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()
	m.format = f
}

// Written returns the stream time delivered to the sink.
func (m *Mux) Written() time.Duration {
	return m.Format().Duration(int(m.written.Load()))
}

// Err returns the first sink error of the current run.
func (m *Mux) Err() error {
	return m.err.Load()
}

// wake makes the data-flow goroutine re-evaluate its inputs.
func (m *Mux) wake() {
	m.cond.L.Lock()
	m.cond.Broadcast()
	m.cond.L.Unlock()
}

func (m *Mux) changeState(from, to State) error {
	switch {
	case from == StateNull && to == StateReady:
		if err := m.sink.Open(m.Format()); err != nil {
			return fmt.Errorf("open sink: %w", err)
		}
	case from == StateReady && to == StatePaused:
		m.cond.L.Lock()
		m.stopping = false
		m.failed = false
		m.eosPosted = false
		m.state = StatePaused
		m.done = make(chan struct{})
		m.cond.L.Unlock()
		m.err.Reset()
		go m.loop(m.done)
		return nil
	case from == StatePaused && to == StateReady:
		m.cond.L.Lock()
		m.stopping = true
		done := m.done
		m.cond.Broadcast()
		m.cond.L.Unlock()
		<-done
	case from == StateReady && to == StateNull:
		if err := m.sink.Close(); err != nil {
			return fmt.Errorf("close sink: %w", err)
		}
	}

	m.cond.L.Lock()
	m.state = to
	m.cond.Broadcast()
	m.cond.L.Unlock()
	return nil
}

func (m *Mux) loop(done chan struct{}) {
	defer close(done)

	format := m.Format()
	buf := make([]float32, m.chunk*audio.ChannelCount)
	var out []byte
	for {
		n, ok := m.next(buf)
		if !ok {
			return
		}
		out = format.Encode(out[:0], buf[:n*audio.ChannelCount])
		if _, err := m.sink.Write(out); err != nil {
			m.fail(err)
			continue
		}
		m.written.Add(int64(n))
	}
}

func (m *Mux) fail(err error) {
	err = fmt.Errorf("sink: %w", err)
	if m.err.TryStore(err) {
		m.log.Error().Err(err).Msg("data flow stopped")
		m.bus.Post(Message{Kind: MessageError, Source: m.name, Err: err})
	}
	m.cond.L.Lock()
	m.failed = true
	m.cond.L.Unlock()
}

// next blocks until a chunk was mixed into buf or the mixer stops.
func (m *Mux) next(buf []float32) (int, bool) {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()

	for {
		if m.stopping {
			return 0, false
		}
		if m.state == StatePlaying && !m.failed {
			if n := m.mixLocked(buf); n > 0 {
				return n, true
			}
		}
		m.cond.Wait()
	}
}

func (m *Mux) mixLocked(buf []float32) int {
	frames := len(buf) / audio.ChannelCount
	for i := range m.inputs {
		m.inputs[i] = nil
	}
	m.inputs = m.inputs[:0]

	linked := 0
	wait := false
	for sp := range m.ports {
		src := sp.peer
		if src == nil {
			continue
		}
		linked++
		if src.blockedLocked() {
			wait = true
			continue
		}
		n, eos, ended := src.player.available()
		if ended {
			src.pushEOSLocked()
		}
		if eos {
			continue
		}
		if n == 0 {
			wait = true
			continue
		}
		frames = min(frames, n)
		m.inputs = append(m.inputs, src)
	}

	if wait {
		return 0
	}
	if len(m.inputs) == 0 {
		if linked > 0 && !m.eosPosted {
			m.eosPosted = true
			m.bus.Post(Message{Kind: MessageEOS, Source: m.name})
		}
		return 0
	}
	m.eosPosted = false

	mix := buf[:frames*audio.ChannelCount]
	clear(mix)
	for _, src := range m.inputs {
		src.player.mixInto(mix, m.channels.gain(src.player.channel))
	}
	return frames
}
