// Copyright 2022 The Oto Authors
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

package audio

import (
	"errors"
	"time"
)

var ErrSinkClosed = errors.New("audio: sink is closed")

// NullSink discards audio at the pace a device would consume it.
type NullSink struct {
	format Format
	open   bool
	// next is when the device would have drained everything written so far.
	next time.Time
}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (s *NullSink) Open(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.format = f
	s.open = true
	s.next = time.Time{}
	return nil
}

func (s *NullSink) Write(p []byte) (int, error) {
	if !s.open {
		return 0, ErrSinkClosed
	}
	now := time.Now()
	if s.next.Before(now) {
		s.next = now
	}
	s.next = s.next.Add(s.format.Duration(len(p) / s.format.FrameSize()))
	// Sleeping is necessary, otherwise the producer spins as fast as it can decode.
	time.Sleep(time.Until(s.next))
	return len(p), nil
}

func (s *NullSink) Close() error {
	s.open = false
	return nil
}
