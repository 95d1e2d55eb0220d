//go:build gst

package gst

import (
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"

	mbaudio "github.com/herzi/mb-audio-engine"
)

// unitPort is the ghost src pad of a unit.
type unitPort struct {
	unit *Unit
	pad  *gst.Pad

	m      sync.Mutex
	peer   *mixerPort
	next   mbaudio.ProbeID
	probes map[mbaudio.ProbeID]uint64
}

func (p *unitPort) Name() string {
	return p.unit.name + ":src"
}

func (p *unitPort) Peer() mbaudio.Port {
	p.m.Lock()
	defer p.m.Unlock()
	if p.peer == nil {
		return nil
	}
	return p.peer
}

// Link connects the unit to a mixer port. Data leaving the unit is shifted to
// the mixer's current running time so that it is mixed in at once.
func (p *unitPort) Link(sink mbaudio.Port) error {
	mp, ok := sink.(*mixerPort)
	if !ok {
		return mbaudio.ErrIncompatiblePort
	}
	p.m.Lock()
	defer p.m.Unlock()
	if p.peer != nil {
		return mbaudio.ErrAlreadyLinked
	}
	if mp.released() {
		return mbaudio.ErrPortReleased
	}
	if ret := p.pad.Link(mp.pad); ret != gst.PadLinkOK {
		return fmt.Errorf("%w: %s -> %s: %d", ErrLink, p.Name(), mp.Name(), int(ret))
	}
	if t, ok := runningTime(p.unit.graph.pipeline.Element); ok {
		// Shift the effect so it starts at the current running time.
		p.pad.SetOffset(int64(t))
	}
	p.peer = mp
	return nil
}

func (p *unitPort) Unlink(sink mbaudio.Port) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.peer == nil || sink != mbaudio.Port(p.peer) {
		return mbaudio.ErrNotLinked
	}
	if !p.pad.Unlink(p.peer.pad) {
		return fmt.Errorf("%w: unlink %s", ErrLink, p.Name())
	}
	p.pad.SetOffset(0)
	p.peer = nil
	return nil
}

// AddProbe installs a blocking probe or an end-of-stream interceptor on the
// pad. EOS callbacks run on a streaming thread and the event passes on.
func (p *unitPort) AddProbe(kind mbaudio.ProbeKind, fn func()) (mbaudio.ProbeID, error) {
	var id uint64
	switch kind {
	case mbaudio.ProbeBlock:
		id = p.pad.AddProbe(gst.PadProbeTypeBlockDownstream, func(*gst.Pad, *gst.PadProbeInfo) gst.PadProbeReturn {
			return gst.PadProbeOK
		})
	case mbaudio.ProbeEOS:
		id = p.pad.AddProbe(gst.PadProbeTypeEventDownstream, func(_ *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
			if ev := info.GetEvent(); ev != nil && ev.Type() == gst.EventTypeEOS && fn != nil {
				fn()
			}
			return gst.PadProbeOK
		})
	default:
		return 0, fmt.Errorf("gst: unknown probe kind %d", kind)
	}
	if id == 0 {
		return 0, fmt.Errorf("gst: %s: probe not installed", p.Name())
	}

	p.m.Lock()
	defer p.m.Unlock()
	p.next++
	p.probes[p.next] = id
	return p.next, nil
}

func (p *unitPort) RemoveProbe(id mbaudio.ProbeID) error {
	p.m.Lock()
	gid, ok := p.probes[id]
	delete(p.probes, id)
	p.m.Unlock()
	if !ok {
		return mbaudio.ErrUnknownProbe
	}
	p.pad.RemoveProbe(gid)
	return nil
}

// mixerPort is a request sink pad of the audiomixer.
type mixerPort struct {
	mixer *Mixer
	pad   *gst.Pad
	name  string

	m    sync.Mutex
	gone bool
}

func (p *mixerPort) Name() string {
	return p.name
}

func (p *mixerPort) Peer() mbaudio.Port {
	return nil
}

func (p *mixerPort) Link(mbaudio.Port) error {
	return mbaudio.ErrWrongDirection
}

func (p *mixerPort) Unlink(mbaudio.Port) error {
	return mbaudio.ErrWrongDirection
}

func (p *mixerPort) AddProbe(mbaudio.ProbeKind, func()) (mbaudio.ProbeID, error) {
	return 0, fmt.Errorf("gst: probes are installed on unit outputs")
}

func (p *mixerPort) RemoveProbe(mbaudio.ProbeID) error {
	return mbaudio.ErrUnknownProbe
}

func (p *mixerPort) released() bool {
	p.m.Lock()
	defer p.m.Unlock()
	return p.gone
}
