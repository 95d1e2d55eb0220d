// Package mbaudio describes a playback graph of decode units feeding a
// request-port mixer, and implements an in-process software backend for it.
//
// The graph vocabulary (states, seeks, ports, bus messages) is shared by every
// backend. The controller in package engine only talks to these interfaces.
package mbaudio

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of a graph element.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Step returns the state one level closer to target.
func (s State) Step(target State) State {
	switch {
	case s < target:
		return s + 1
	case s > target:
		return s - 1
	}
	return s
}

// SeekFlags modify how a Seek is applied.
type SeekFlags int

const (
	// SeekFlush discards queued data and restarts flow from the new position.
	SeekFlush SeekFlags = 1 << iota
	// SeekSegment makes the unit report segment completion instead of end-of-stream.
	SeekSegment
)

// Seek describes a playback region. A negative Stop means open-ended.
type Seek struct {
	Flags SeekFlags
	Start time.Duration
	Stop  time.Duration
}

// LoopSeek returns the segment seek that arms a loop over the whole stream.
func LoopSeek(flush bool) Seek {
	s := Seek{Flags: SeekSegment, Start: 0, Stop: -1}
	if flush {
		s.Flags |= SeekFlush
	}
	return s
}

// Caps describes a discovered raw audio stream.
type Caps struct {
	MediaType  string
	SampleRate int
	Channels   int
}

func (c Caps) String() string {
	return fmt.Sprintf("%s, rate=%d, channels=%d", c.MediaType, c.SampleRate, c.Channels)
}

// Resolution tells whether a decode unit has discovered and linked its stream.
// It is either Unresolved or Resolved.
type Resolution interface {
	resolution()
}

// Unresolved is the state of a unit whose decoder has not exposed a stream yet.
type Unresolved struct{}

// Resolved holds the caps of the stream a unit linked to its converter.
type Resolved struct {
	Caps Caps
}

func (Unresolved) resolution() {}
func (Resolved) resolution()   {}

// ProbeKind selects what a port probe reacts to.
type ProbeKind int

const (
	// ProbeBlock holds data flow on the port while installed.
	ProbeBlock ProbeKind = iota
	// ProbeEOS calls its callback when end-of-stream passes the port.
	// The callback runs on the data-flow goroutine and must not call back into the graph.
	ProbeEOS
)

// ProbeID identifies an installed probe.
type ProbeID uint64

var (
	ErrNotLinked        = errors.New("ports are not linked")
	ErrAlreadyLinked    = errors.New("port is already linked")
	ErrWrongDirection   = errors.New("ports have incompatible directions")
	ErrIncompatiblePort = errors.New("port belongs to another backend")
	ErrPortReleased     = errors.New("port was released")
	ErrPortExhausted    = errors.New("mixer has no free input port")
	ErrNotPrerolled     = errors.New("unit is not prerolled")
	ErrNoStream         = errors.New("unit has no linked stream")
	ErrUnknownProbe     = errors.New("unknown probe")
)

// Element is anything with a lifecycle state.
type Element interface {
	Name() string
	State() State
	// SetState moves the element to target one level at a time, posting a
	// state-changed message for every step.
	SetState(target State) error
}

// Port is a connection point of a unit or the mixer.
type Port interface {
	Name() string
	// Link connects this source port to sink.
	Link(sink Port) error
	// Unlink disconnects this source port from sink.
	Unlink(sink Port) error
	Peer() Port
	AddProbe(kind ProbeKind, fn func()) (ProbeID, error)
	RemoveProbe(id ProbeID) error
}

// Unit is a decode unit: source, decoder and converter behind one output port.
type Unit interface {
	Element
	Output() Port
	Resolution() Resolution
	// Seek applies s to the unit's terminal element.
	Seek(s Seek) error
	// SetLocked keeps the unit's state out of its parent's state changes.
	SetLocked(locked bool)
	Position() (time.Duration, bool)
	Duration() (time.Duration, bool)
}

// Mixer combines any number of request ports into one stream.
type Mixer interface {
	RequestPort() (Port, error)
	ReleasePort(p Port) error
	PortCount() int
}

// Graph is a complete playback graph: background unit, effect units, mixer,
// format filter and sink.
type Graph interface {
	Element
	Bus() *Bus
	Background() Unit
	Effects() []Unit
	Mixer() Mixer
	// Close drives the graph to NULL and releases every mixer port.
	Close() error
}
