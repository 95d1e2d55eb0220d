package sfx

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// staleAfter is how late a cue may still be played.
const staleAfter = 3 * time.Second

// Cue plays a sound effect At a playback offset.
type Cue struct {
	Id Id
	At time.Duration
}

// ParseCue parses "id@offset", for example "door-open@1.5s".
func ParseCue(s string) (Cue, error) {
	id, at, ok := strings.Cut(s, "@")
	if !ok || id == "" {
		return Cue{}, fmt.Errorf("sfx: cue %q: want id@offset", s)
	}
	d, err := time.ParseDuration(at)
	if err != nil {
		return Cue{}, fmt.Errorf("sfx: cue %q: %w", s, err)
	}
	if d < 0 {
		return Cue{}, fmt.Errorf("sfx: cue %q: negative offset", s)
	}
	return Cue{Id: Id(id), At: d}, nil
}

// Scheduler lets you register sounds that should play in the future,
// relative to the start of playback.
//
// Scheduler can be used to line sounds up with the background, without
// needing to trigger them at exactly the right time. The controller asks it
// for due cues on every progress tick.
type Scheduler struct {
	registry *Registry

	m      sync.Mutex
	sounds []Cue
}

func NewScheduler(r *Registry, cues ...Cue) *Scheduler {
	s := &Scheduler{
		registry: r,
		sounds:   make([]Cue, 0, max(len(cues), 16)),
	}
	s.sounds = append(s.sounds, cues...)
	return s
}

func (s *Scheduler) PlayAt(id Id, at time.Duration) {
	s.m.Lock()
	defer s.m.Unlock()
	s.sounds = append(s.sounds, Cue{Id: id, At: at})
}

func (s *Scheduler) Clear() {
	s.m.Lock()
	defer s.m.Unlock()
	s.sounds = s.sounds[:0]
}

// Pending returns the number of cues not yet due.
func (s *Scheduler) Pending() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.sounds)
}

// Due removes the cues due at elapsed and returns the slots to attach.
// Cues more than a few seconds late are dropped.
func (s *Scheduler) Due(elapsed time.Duration) []string {
	s.m.Lock()
	defer s.m.Unlock()

	var slots []string
	i := 0
	for i < len(s.sounds) {
		if s.sounds[i].At > elapsed {
			i++
			continue
		}
		if s.sounds[i].At >= elapsed-staleAfter {
			if slot, ok := s.registry.Variant(s.sounds[i].Id); ok {
				slots = append(slots, slot)
			}
		}
		// clean array by moving the last element to the now free position
		s.sounds[i] = s.sounds[len(s.sounds)-1]
		s.sounds = s.sounds[:len(s.sounds)-1]
	}
	return slots
}
