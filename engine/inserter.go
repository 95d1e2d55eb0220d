package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	mbaudio "github.com/herzi/mb-audio-engine"
)

// Picker chooses the effect slot to attach from the currently parked ones.
// Returning false skips the attach.
type Picker interface {
	Pick(parked []string) (string, bool)
}

type slotState int

const (
	slotIdle slotState = iota
	slotParked
	slotAttached
	slotBroken
)

func (s slotState) String() string {
	switch s {
	case slotIdle:
		return "idle"
	case slotParked:
		return "parked"
	case slotAttached:
		return "attached"
	case slotBroken:
		return "broken"
	}
	return fmt.Sprintf("slotState(%d)", int(s))
}

// slot is one effect unit cycling parked -> attached -> parked.
type slot struct {
	unit    mbaudio.Unit
	state   slotState
	block   mbaudio.ProbeID
	blocked bool
	eos     mbaudio.ProbeID
	port    mbaudio.Port
	// token is the pending detach of the current attach cycle.
	token string
	err   error
}

func (s *slot) name() string {
	return s.unit.Name()
}

// inserter splices effect units into the running mixer. Every method runs on
// the controller's goroutine; only the end-of-stream probe runs elsewhere and
// it just posts to the bus.
type inserter struct {
	mixer  mbaudio.Mixer
	bus    *mbaudio.Bus
	picker Picker
	log    zerolog.Logger
	slots  []*slot
	byName map[string]*slot
}

func newInserter(g mbaudio.Graph, picker Picker, log zerolog.Logger) *inserter {
	in := &inserter{
		mixer:  g.Mixer(),
		bus:    g.Bus(),
		picker: picker,
		log:    log,
		byName: make(map[string]*slot),
	}
	for _, u := range g.Effects() {
		s := &slot{unit: u}
		in.slots = append(in.slots, s)
		in.byName[u.Name()] = s
	}
	return in
}

func (in *inserter) owns(name string) bool {
	_, ok := in.byName[name]
	return ok
}

func (in *inserter) active() int {
	n := 0
	for _, s := range in.slots {
		if s.state == slotAttached {
			n++
		}
	}
	return n
}

// parkAll prepares every idle slot for attaching. Slots that fail are marked
// broken; the rest of the pool stays usable.
func (in *inserter) parkAll() {
	for _, s := range in.slots {
		if s.state == slotIdle {
			_ = in.park(s)
		}
	}
}

// park blocks the slot's output and prerolls its unit, locked out of the
// graph's state changes.
func (in *inserter) park(s *slot) error {
	out := s.unit.Output()
	if !s.blocked {
		id, err := out.AddProbe(mbaudio.ProbeBlock, nil)
		if err != nil {
			return in.markBroken(s, fmt.Errorf("block output: %w", err))
		}
		s.block, s.blocked = id, true
	}
	s.unit.SetLocked(true)
	if err := s.unit.SetState(mbaudio.StatePaused); err != nil {
		return in.markBroken(s, err)
	}
	s.state = slotParked
	in.log.Debug().Str("slot", s.name()).Msg("parked")
	return nil
}

// markBroken takes the slot out of the pool. Its block probe is removed and
// its unit halted, so a broken slot holds no prerolled data.
func (in *inserter) markBroken(s *slot, err error) error {
	s.state = slotBroken
	s.err = err
	if s.blocked {
		in.removeProbe(s, s.block)
		s.block, s.blocked = 0, false
	}
	if s.unit.State() > mbaudio.StateReady {
		if herr := s.unit.SetState(mbaudio.StateReady); herr != nil {
			in.log.Warn().Err(herr).Str("slot", s.name()).Msg("cannot halt effect")
		}
	}
	in.log.Warn().Err(err).Str("slot", s.name()).Msg("effect slot unusable")
	return fmt.Errorf("%s: %w", s.name(), err)
}

// choose returns the slot to attach. An empty name lets the picker decide.
func (in *inserter) choose(name string) (*slot, error) {
	if name != "" {
		s, ok := in.byName[name]
		switch {
		case !ok:
			return nil, fmt.Errorf("%w: unknown slot %q", ErrNoFreeSlot, name)
		case s.state == slotBroken:
			return nil, fmt.Errorf("%s: %w: %w", name, ErrLinkFailure, s.err)
		case s.state != slotParked:
			return nil, fmt.Errorf("%w: %s is %s", ErrNoFreeSlot, name, s.state)
		}
		return s, nil
	}

	var parked []string
	broken := 0
	for _, s := range in.slots {
		switch s.state {
		case slotParked:
			parked = append(parked, s.name())
		case slotBroken:
			broken++
		}
	}
	if len(parked) == 0 {
		if broken > 0 && broken == len(in.slots) {
			return nil, fmt.Errorf("%w: every effect slot is broken", ErrLinkFailure)
		}
		return nil, fmt.Errorf("%w: %d of %d slots attached", ErrNoFreeSlot, in.active(), len(in.slots))
	}
	if in.picker == nil {
		return in.byName[parked[0]], nil
	}
	picked, ok := in.picker.Pick(parked)
	if !ok {
		return nil, fmt.Errorf("%w: nothing picked", ErrNoFreeSlot)
	}
	s, ok := in.byName[picked]
	if !ok || s.state != slotParked {
		return nil, fmt.Errorf("%w: picked slot %q is not parked", ErrNoFreeSlot, picked)
	}
	return s, nil
}

// attach connects a parked slot to a new mixer port and starts it. On failure
// the completed steps are undone and the slot is parked again.
func (in *inserter) attach(name string) (*slot, error) {
	s, err := in.choose(name)
	if err != nil {
		return nil, err
	}
	name = s.name()
	out := s.unit.Output()

	port, err := in.mixer.RequestPort()
	if err != nil {
		if !errors.Is(err, ErrPortExhausted) {
			err = fmt.Errorf("%w: %w", ErrPortExhausted, err)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	token := uuid.NewString()
	bus := in.bus
	eos, err := out.AddProbe(mbaudio.ProbeEOS, func() {
		bus.Post(mbaudio.Message{Kind: mbaudio.MessageEffectFinished, Source: name, Token: token})
	})
	if err != nil {
		in.releasePort(name, port)
		return nil, fmt.Errorf("%s: %w: %w", name, ErrLinkFailure, err)
	}
	if err := out.Link(port); err != nil {
		in.removeProbe(s, eos)
		in.releasePort(name, port)
		return nil, fmt.Errorf("%s -> %s: %w: %w", name, port.Name(), ErrLinkFailure, err)
	}
	if s.blocked {
		if err := out.RemoveProbe(s.block); err != nil {
			in.log.Warn().Err(err).Str("slot", name).Msg("cannot unblock output")
		}
		s.blocked = false
	}
	if err := s.unit.SetState(mbaudio.StatePlaying); err != nil {
		_ = out.Unlink(port)
		in.removeProbe(s, eos)
		in.releasePort(name, port)
		_ = in.park(s)
		return nil, fmt.Errorf("%s: start: %w", name, err)
	}

	s.port = port
	s.eos = eos
	s.token = token
	s.state = slotAttached
	in.log.Debug().Str("slot", name).Str("port", port.Name()).Str("token", token).Msg("attached")
	return s, nil
}

func (in *inserter) removeProbe(s *slot, id mbaudio.ProbeID) {
	if err := s.unit.Output().RemoveProbe(id); err != nil {
		in.log.Warn().Err(err).Str("slot", s.name()).Msg("cannot remove probe")
	}
}

func (in *inserter) releasePort(name string, port mbaudio.Port) {
	if err := in.mixer.ReleasePort(port); err != nil {
		in.log.Warn().Err(err).Str("slot", name).Str("port", port.Name()).Msg("cannot release port")
	}
}

// finished handles an effect-finished message. It reports false for messages
// that do not belong to a current attach cycle.
func (in *inserter) finished(msg mbaudio.Message) bool {
	s, ok := in.byName[msg.Source]
	if !ok || s.state != slotAttached || msg.Token != s.token {
		in.log.Debug().Str("slot", msg.Source).Str("token", msg.Token).Msg("ignoring stale effect-finished")
		return false
	}
	in.detach(s)
	_ = in.park(s)
	return true
}

// detach takes an attached slot off the mixer and releases its port.
func (in *inserter) detach(s *slot) {
	name := s.name()
	out := s.unit.Output()
	in.removeProbe(s, s.eos)
	if err := s.unit.SetState(mbaudio.StateReady); err != nil {
		in.log.Warn().Err(err).Str("slot", name).Msg("cannot halt effect")
	}
	if err := out.Unlink(s.port); err != nil {
		in.log.Warn().Err(err).Str("slot", name).Msg("cannot unlink effect")
	}
	in.releasePort(name, s.port)
	in.log.Debug().Str("slot", name).Str("port", s.port.Name()).Str("token", s.token).Msg("detached")

	s.port = nil
	s.eos = 0
	s.token = ""
	s.state = slotIdle
}

// fail marks the slot owning a failed unit broken, detaching it first.
func (in *inserter) fail(name string, err error) {
	s, ok := in.byName[name]
	if !ok {
		return
	}
	if s.state == slotAttached {
		in.detach(s)
	}
	if s.state != slotBroken {
		_ = in.markBroken(s, err)
	}
}

// detachAll detaches every attached slot without parking it again.
func (in *inserter) detachAll() int {
	n := 0
	for _, s := range in.slots {
		if s.state == slotAttached {
			in.detach(s)
			n++
		}
	}
	return n
}
