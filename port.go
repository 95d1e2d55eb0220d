package mbaudio

import "fmt"

type portDirection int

const (
	portSource portDirection = iota
	portSink
)

type probe struct {
	kind ProbeKind
	fn   func()
}

// SoftPort is a port of the software backend. All of its state is guarded
// by the owning mixer's lock.
type SoftPort struct {
	name      string
	dir       portDirection
	mux       *Mux
	player    *Player
	peer      *SoftPort
	released  bool
	probes    map[ProbeID]probe
	nextProbe ProbeID
}

func newPort(m *Mux, name string, dir portDirection, p *Player) *SoftPort {
	return &SoftPort{
		name:   name,
		dir:    dir,
		mux:    m,
		player: p,
		probes: make(map[ProbeID]probe),
	}
}

func (p *SoftPort) Name() string {
	return p.name
}

func (p *SoftPort) Peer() Port {
	p.mux.cond.L.Lock()
	defer p.mux.cond.L.Unlock()
	if p.peer == nil {
		return nil
	}
	return p.peer
}

func (p *SoftPort) checkPair(sink Port) (*SoftPort, error) {
	s, ok := sink.(*SoftPort)
	if !ok || s.mux != p.mux {
		return nil, fmt.Errorf("%s: %w", p.name, ErrIncompatiblePort)
	}
	if p.dir != portSource || s.dir != portSink {
		return nil, fmt.Errorf("%s -> %s: %w", p.name, s.name, ErrWrongDirection)
	}
	if p.released || s.released {
		return nil, fmt.Errorf("%s -> %s: %w", p.name, s.name, ErrPortReleased)
	}
	return s, nil
}

func (p *SoftPort) Link(sink Port) error {
	p.mux.cond.L.Lock()
	defer p.mux.cond.L.Unlock()

	s, err := p.checkPair(sink)
	if err != nil {
		return err
	}
	if p.peer != nil || s.peer != nil {
		return fmt.Errorf("%s -> %s: %w", p.name, s.name, ErrAlreadyLinked)
	}
	p.peer = s
	s.peer = p
	p.mux.cond.Broadcast()
	return nil
}

func (p *SoftPort) Unlink(sink Port) error {
	p.mux.cond.L.Lock()
	defer p.mux.cond.L.Unlock()

	s, ok := sink.(*SoftPort)
	if !ok || p.peer == nil || p.peer != s {
		return fmt.Errorf("%s: %w", p.name, ErrNotLinked)
	}
	p.unlinkLocked()
	p.mux.cond.Broadcast()
	return nil
}

func (p *SoftPort) unlinkLocked() {
	if p.peer != nil {
		p.peer.peer = nil
		p.peer = nil
	}
}

func (p *SoftPort) AddProbe(kind ProbeKind, fn func()) (ProbeID, error) {
	p.mux.cond.L.Lock()
	defer p.mux.cond.L.Unlock()
	if p.released {
		return 0, fmt.Errorf("%s: %w", p.name, ErrPortReleased)
	}
	p.nextProbe++
	p.probes[p.nextProbe] = probe{kind: kind, fn: fn}
	return p.nextProbe, nil
}

func (p *SoftPort) RemoveProbe(id ProbeID) error {
	p.mux.cond.L.Lock()
	defer p.mux.cond.L.Unlock()
	if _, ok := p.probes[id]; !ok {
		return fmt.Errorf("%s: probe %d: %w", p.name, id, ErrUnknownProbe)
	}
	delete(p.probes, id)
	p.mux.cond.Broadcast()
	return nil
}

func (p *SoftPort) blockedLocked() bool {
	for _, pr := range p.probes {
		if pr.kind == ProbeBlock {
			return true
		}
	}
	return false
}

// pushEOSLocked runs the end-of-stream probes on the data-flow goroutine.
func (p *SoftPort) pushEOSLocked() {
	for _, pr := range p.probes {
		if pr.kind == ProbeEOS && pr.fn != nil {
			pr.fn()
		}
	}
}
