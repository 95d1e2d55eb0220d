package audio

import (
	"sync"
	"time"
)

// CaptureSink keeps every written frame in memory.
// With Paced set it consumes audio in real time like NullSink.
type CaptureSink struct {
	Paced bool

	m       sync.Mutex
	format  Format
	samples []int16
	open    bool
	pace    NullSink
}

func NewCaptureSink(paced bool) *CaptureSink {
	return &CaptureSink{Paced: paced}
}

func (s *CaptureSink) Open(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.m.Lock()
	s.format = f
	s.open = true
	s.m.Unlock()
	if s.Paced {
		return s.pace.Open(f)
	}
	return nil
}

func (s *CaptureSink) Write(p []byte) (int, error) {
	s.m.Lock()
	if !s.open {
		s.m.Unlock()
		return 0, ErrSinkClosed
	}
	s.samples = s.format.Decode(s.samples, p)
	s.m.Unlock()
	if s.Paced {
		return s.pace.Write(p)
	}
	return len(p), nil
}

func (s *CaptureSink) Close() error {
	s.m.Lock()
	s.open = false
	s.m.Unlock()
	return s.pace.Close()
}

// Samples returns a copy of everything captured so far.
func (s *CaptureSink) Samples() []int16 {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]int16(nil), s.samples...)
}

// Frames returns the number of captured frames.
func (s *CaptureSink) Frames() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.samples) / ChannelCount
}

// Captured returns the stream time of the captured audio.
func (s *CaptureSink) Captured() time.Duration {
	s.m.Lock()
	defer s.m.Unlock()
	return s.format.Duration(len(s.samples) / ChannelCount)
}
