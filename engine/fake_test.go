package engine

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	mbaudio "github.com/herzi/mb-audio-engine"
)

// goid returns the id of the calling goroutine.
func goid() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

type call struct {
	op  string
	gid uint64
}

// fakeGraph is an in-memory Graph that records which goroutine mutates it.
type fakeGraph struct {
	mu    sync.Mutex
	name  string
	bus   *mbaudio.Bus
	state mbaudio.State
	bg    *fakeUnit
	fx    []*fakeUnit
	mixer *fakeMixer
	calls []call

	closed  bool
	playErr error
}

func newFakeGraph(effects int) *fakeGraph {
	g := &fakeGraph{name: "pipeline", bus: mbaudio.NewBus()}
	g.mixer = &fakeMixer{g: g, ports: make(map[*fakePort]struct{})}
	g.bg = g.newUnit("background")
	for i := 0; i < effects; i++ {
		fx := g.newUnit(fmt.Sprintf("effect%d", i))
		fx.locked = true
		g.fx = append(g.fx, fx)
	}
	port, _ := g.mixer.requestPort()
	g.bg.out.peer = port
	port.peer = g.bg.out
	g.calls = nil
	return g
}

func (g *fakeGraph) newUnit(name string) *fakeUnit {
	u := &fakeUnit{g: g, name: name, duration: time.Second}
	u.out = &fakePort{g: g, name: name + ":src", unit: u, probes: make(map[mbaudio.ProbeID]fakeProbe)}
	return u
}

func (g *fakeGraph) record(op string) {
	g.calls = append(g.calls, call{op: op, gid: goid()})
}

// mutators returns the goroutine ids that changed the graph.
func (g *fakeGraph) mutators() map[uint64][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make(map[uint64][]string)
	for _, c := range g.calls {
		ids[c.gid] = append(ids[c.gid], c.op)
	}
	return ids
}

func (g *fakeGraph) Name() string { return g.name }

func (g *fakeGraph) State() mbaudio.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *fakeGraph) SetState(target mbaudio.State) error {
	g.mu.Lock()
	g.record("graph.SetState")
	g.mu.Unlock()
	for {
		g.mu.Lock()
		cur := g.state
		g.mu.Unlock()
		if cur == target {
			return nil
		}
		next := cur.Step(target)
		if next == mbaudio.StatePlaying && g.playErr != nil {
			return g.playErr
		}
		if err := g.bg.step(next); err != nil {
			return err
		}
		g.mu.Lock()
		g.state = next
		g.mu.Unlock()
		g.bus.Post(mbaudio.Message{Kind: mbaudio.MessageStateChanged, Source: g.name, Old: cur, New: next})
	}
}

func (g *fakeGraph) Bus() *mbaudio.Bus { return g.bus }

func (g *fakeGraph) Background() mbaudio.Unit { return g.bg }

func (g *fakeGraph) Mixer() mbaudio.Mixer { return g.mixer }

func (g *fakeGraph) Effects() []mbaudio.Unit {
	units := make([]mbaudio.Unit, len(g.fx))
	for i, u := range g.fx {
		units[i] = u
	}
	return units
}

func (g *fakeGraph) Close() error {
	err := g.SetState(mbaudio.StateNull)
	for _, fx := range g.fx {
		_ = fx.SetState(mbaudio.StateNull)
	}
	g.mu.Lock()
	g.record("graph.Close")
	for p := range g.mixer.ports {
		if p.peer != nil {
			p.peer.peer = nil
			p.peer = nil
		}
		delete(g.mixer.ports, p)
	}
	g.closed = true
	g.mu.Unlock()
	g.bus.Close()
	return err
}

func (g *fakeGraph) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

type fakeUnit struct {
	g        *fakeGraph
	name     string
	out      *fakePort
	state    mbaudio.State
	locked   bool
	seeks    []mbaudio.Seek
	seekErr  error
	stateErr error
	duration time.Duration
}

func (u *fakeUnit) Name() string { return u.name }

func (u *fakeUnit) State() mbaudio.State {
	u.g.mu.Lock()
	defer u.g.mu.Unlock()
	return u.state
}

func (u *fakeUnit) SetState(target mbaudio.State) error {
	u.g.mu.Lock()
	u.g.record(u.name + ".SetState")
	u.g.mu.Unlock()
	return u.step(target)
}

// step walks the unit to target like a real element, posting every change.
func (u *fakeUnit) step(target mbaudio.State) error {
	for {
		u.g.mu.Lock()
		cur := u.state
		err := u.stateErr
		u.g.mu.Unlock()
		if cur == target {
			return nil
		}
		next := cur.Step(target)
		if next == mbaudio.StatePaused && next > cur && err != nil {
			u.g.bus.Post(mbaudio.Message{Kind: mbaudio.MessageError, Source: u.name, Err: err})
			return err
		}
		u.g.mu.Lock()
		u.state = next
		u.g.mu.Unlock()
		u.g.bus.Post(mbaudio.Message{Kind: mbaudio.MessageStateChanged, Source: u.name, Old: cur, New: next})
	}
}

func (u *fakeUnit) Output() mbaudio.Port { return u.out }

func (u *fakeUnit) Resolution() mbaudio.Resolution {
	if u.State() >= mbaudio.StatePaused {
		return mbaudio.Resolved{Caps: mbaudio.Caps{MediaType: "audio/x-raw", SampleRate: 8000, Channels: 2}}
	}
	return mbaudio.Unresolved{}
}

func (u *fakeUnit) Seek(s mbaudio.Seek) error {
	u.g.mu.Lock()
	defer u.g.mu.Unlock()
	u.g.record(u.name + ".Seek")
	if u.seekErr != nil {
		return u.seekErr
	}
	u.seeks = append(u.seeks, s)
	return nil
}

func (u *fakeUnit) seekLog() []mbaudio.Seek {
	u.g.mu.Lock()
	defer u.g.mu.Unlock()
	return append([]mbaudio.Seek(nil), u.seeks...)
}

func (u *fakeUnit) SetLocked(locked bool) {
	u.g.mu.Lock()
	defer u.g.mu.Unlock()
	u.locked = locked
}

func (u *fakeUnit) isLocked() bool {
	u.g.mu.Lock()
	defer u.g.mu.Unlock()
	return u.locked
}

func (u *fakeUnit) Position() (time.Duration, bool) { return 0, true }

func (u *fakeUnit) Duration() (time.Duration, bool) { return u.duration, true }

// finish emulates the data-flow goroutine pushing end-of-stream through the
// unit's output.
func (u *fakeUnit) finish() {
	u.g.mu.Lock()
	var fns []func()
	for _, p := range u.out.probes {
		if p.kind == mbaudio.ProbeEOS {
			fns = append(fns, p.fn)
		}
	}
	u.g.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fakeProbe struct {
	kind mbaudio.ProbeKind
	fn   func()
}

type fakePort struct {
	g      *fakeGraph
	name   string
	unit   *fakeUnit
	peer   *fakePort
	probes map[mbaudio.ProbeID]fakeProbe
	next   mbaudio.ProbeID
}

func (p *fakePort) Name() string { return p.name }

func (p *fakePort) Link(sink mbaudio.Port) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	p.g.record(p.name + ".Link")
	s, ok := sink.(*fakePort)
	if !ok {
		return mbaudio.ErrIncompatiblePort
	}
	if _, live := p.g.mixer.ports[s]; !live {
		return mbaudio.ErrPortReleased
	}
	if p.peer != nil || s.peer != nil {
		return mbaudio.ErrAlreadyLinked
	}
	p.peer, s.peer = s, p
	return nil
}

func (p *fakePort) Unlink(sink mbaudio.Port) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	p.g.record(p.name + ".Unlink")
	if p.peer == nil || p.peer != sink {
		return mbaudio.ErrNotLinked
	}
	p.peer.peer = nil
	p.peer = nil
	return nil
}

func (p *fakePort) Peer() mbaudio.Port {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if p.peer == nil {
		return nil
	}
	return p.peer
}

func (p *fakePort) AddProbe(kind mbaudio.ProbeKind, fn func()) (mbaudio.ProbeID, error) {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	p.g.record(p.name + ".AddProbe")
	p.next++
	p.probes[p.next] = fakeProbe{kind: kind, fn: fn}
	return p.next, nil
}

func (p *fakePort) RemoveProbe(id mbaudio.ProbeID) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	p.g.record(p.name + ".RemoveProbe")
	if _, ok := p.probes[id]; !ok {
		return mbaudio.ErrUnknownProbe
	}
	delete(p.probes, id)
	return nil
}

func (p *fakePort) hasProbe(kind mbaudio.ProbeKind) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	for _, pr := range p.probes {
		if pr.kind == kind {
			return true
		}
	}
	return false
}

type fakeMixer struct {
	g     *fakeGraph
	ports map[*fakePort]struct{}
	next  int
	max   int
	names []string
}

func (m *fakeMixer) requestPort() (*fakePort, error) {
	if m.max > 0 && len(m.ports) >= m.max {
		return nil, mbaudio.ErrPortExhausted
	}
	p := &fakePort{g: m.g, name: fmt.Sprintf("sink_%d", m.next), probes: make(map[mbaudio.ProbeID]fakeProbe)}
	m.next++
	m.ports[p] = struct{}{}
	m.names = append(m.names, p.name)
	return p, nil
}

func (m *fakeMixer) RequestPort() (mbaudio.Port, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	m.g.record("mixer.RequestPort")
	p, err := m.requestPort()
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (m *fakeMixer) ReleasePort(port mbaudio.Port) error {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	m.g.record("mixer.ReleasePort")
	p, ok := port.(*fakePort)
	if !ok {
		return mbaudio.ErrIncompatiblePort
	}
	if _, live := m.ports[p]; !live {
		return mbaudio.ErrPortReleased
	}
	if p.peer != nil {
		p.peer.peer = nil
		p.peer = nil
	}
	delete(m.ports, p)
	return nil
}

func (m *fakeMixer) PortCount() int {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	return len(m.ports)
}

func (m *fakeMixer) portNames() []string {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	return append([]string(nil), m.names...)
}
