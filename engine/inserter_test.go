package engine

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	mbaudio "github.com/herzi/mb-audio-engine"
)

func parkedInserter(t *testing.T, g *fakeGraph, picker Picker) *inserter {
	t.Helper()
	in := newInserter(g, picker, zerolog.Nop())
	in.parkAll()
	return in
}

func TestAttachReportsPortExhaustion(t *testing.T) {
	g := newFakeGraph(2)
	g.mixer.max = 2
	in := parkedInserter(t, g, nil)

	_, err := in.attach("")
	require.NoError(t, err)
	_, err = in.attach("")
	require.ErrorIs(t, err, ErrPortExhausted)

	// The failed slot is still parked and unlinked.
	fx := g.fx[1]
	assert.Equal(t, slotParked, in.byName[fx.name].state)
	assert.Nil(t, fx.out.Peer())
	assert.True(t, fx.out.hasProbe(mbaudio.ProbeBlock))
	assert.False(t, fx.out.hasProbe(mbaudio.ProbeEOS))
	assert.Equal(t, 2, g.mixer.PortCount())
}

func TestAttachRollsBackFailedLink(t *testing.T) {
	g := newFakeGraph(1)
	in := parkedInserter(t, g, nil)
	g.fx[0].out.peer = &fakePort{g: g, name: "elsewhere"}

	_, err := in.attach("effect0")
	require.ErrorIs(t, err, ErrLinkFailure)
	require.ErrorIs(t, err, mbaudio.ErrAlreadyLinked)
	assert.Equal(t, 1, g.mixer.PortCount())
	assert.False(t, g.fx[0].out.hasProbe(mbaudio.ProbeEOS))
}

func TestBrokenSlotsReportLinkFailure(t *testing.T) {
	g := newFakeGraph(2)
	for _, fx := range g.fx {
		fx.stateErr = errors.New("cannot open")
	}
	in := parkedInserter(t, g, nil)

	for _, s := range in.slots {
		assert.Equal(t, slotBroken, s.state)
	}
	_, err := in.attach("")
	require.ErrorIs(t, err, ErrLinkFailure)
	_, err = in.attach("effect1")
	require.ErrorIs(t, err, ErrLinkFailure)
	assert.Equal(t, 1, g.mixer.PortCount())
}

func TestFailedParkedSlotIsHalted(t *testing.T) {
	g := newFakeGraph(2)
	in := parkedInserter(t, g, nil)
	fx := g.fx[1]
	require.Equal(t, mbaudio.StatePaused, fx.State())
	require.True(t, fx.out.hasProbe(mbaudio.ProbeBlock))

	in.fail("effect1", errors.New("decoder broke"))

	assert.Equal(t, slotBroken, in.byName["effect1"].state)
	assert.Equal(t, mbaudio.StateReady, fx.State())
	assert.False(t, fx.out.hasProbe(mbaudio.ProbeBlock))
	assert.False(t, in.byName["effect1"].blocked)

	// The rest of the pool is untouched.
	s, err := in.attach("")
	require.NoError(t, err)
	assert.Equal(t, "effect0", s.name())
}

func TestChooseRejectsUnknownAndBusySlots(t *testing.T) {
	g := newFakeGraph(1)
	in := parkedInserter(t, g, nil)

	_, err := in.attach("nope")
	require.ErrorIs(t, err, ErrNoFreeSlot)
	_, err = in.attach("effect0")
	require.NoError(t, err)
	_, err = in.attach("effect0")
	require.ErrorIs(t, err, ErrNoFreeSlot)
	_, err = in.attach("")
	require.ErrorIs(t, err, ErrNoFreeSlot)
}

type declinePicker struct{}

func (declinePicker) Pick([]string) (string, bool) { return "", false }

func TestPickerMayDecline(t *testing.T) {
	g := newFakeGraph(1)
	in := parkedInserter(t, g, declinePicker{})
	_, err := in.attach("")
	require.ErrorIs(t, err, ErrNoFreeSlot)
	assert.Equal(t, 1, g.mixer.PortCount())
}

// The live port count always equals the background port plus attached
// effects, whatever order attaches and finishes arrive in.
func TestPortCountTracksAttachedEffects(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		slots := rapid.IntRange(1, 4).Draw(t, "slots")
		g := newFakeGraph(slots)
		in := newInserter(g, nil, zerolog.Nop())
		in.parkAll()
		seen := map[string]bool{"sink_0": true}

		steps := rapid.SliceOfN(rapid.IntRange(0, slots), 1, 40).Draw(t, "steps")
		for _, step := range steps {
			if step == slots {
				s, err := in.attach("")
				if err != nil {
					if !errors.Is(err, ErrNoFreeSlot) {
						t.Fatalf("attach: %v", err)
					}
				} else {
					name := s.port.Name()
					if seen[name] {
						t.Fatalf("port name %s reused", name)
					}
					seen[name] = true
				}
			} else {
				g.fx[step].finish()
				for _, msg := range g.bus.Drain() {
					if msg.Kind == mbaudio.MessageEffectFinished {
						in.finished(msg)
					}
				}
			}
			if got, want := g.mixer.PortCount(), 1+in.active(); got != want {
				t.Fatalf("%d live ports, want %d", got, want)
			}
		}
	})
}
