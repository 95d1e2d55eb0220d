//go:build gst

package gst

import (
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"

	mbaudio "github.com/herzi/mb-audio-engine"
)

// Mixer hands out request pads of an audiomixer element.
type Mixer struct {
	element *gst.Element
	max     int

	m     sync.Mutex
	ports map[*mixerPort]struct{}
}

var _ mbaudio.Mixer = (*Mixer)(nil)

func (m *Mixer) RequestPort() (mbaudio.Port, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.max > 0 && len(m.ports) >= m.max {
		return nil, mbaudio.ErrPortExhausted
	}
	pad := m.element.GetRequestPad("sink_%u")
	if pad == nil {
		return nil, fmt.Errorf("%w: audiomixer refused a pad", mbaudio.ErrPortExhausted)
	}
	p := &mixerPort{mixer: m, pad: pad, name: pad.GetName()}
	m.ports[p] = struct{}{}
	return p, nil
}

func (m *Mixer) ReleasePort(port mbaudio.Port) error {
	p, ok := port.(*mixerPort)
	if !ok || p.mixer != m {
		return mbaudio.ErrIncompatiblePort
	}
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.ports[p]; !ok {
		return mbaudio.ErrPortReleased
	}
	delete(m.ports, p)
	p.m.Lock()
	p.gone = true
	p.m.Unlock()
	m.element.ReleaseRequestPad(p.pad)
	return nil
}

func (m *Mixer) PortCount() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.ports)
}

func (m *Mixer) releaseAll() {
	m.m.Lock()
	ports := make([]*mixerPort, 0, len(m.ports))
	for p := range m.ports {
		ports = append(ports, p)
	}
	m.m.Unlock()
	for _, p := range ports {
		_ = m.ReleasePort(p)
	}
}
