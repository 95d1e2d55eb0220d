//go:build gst

package gst

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"

	mbaudio "github.com/herzi/mb-audio-engine"
)

// parseCaps reads the media type, rate and channel count of the first
// structure of c.
func parseCaps(c *gst.Caps) mbaudio.Caps {
	if c == nil || c.GetSize() == 0 {
		return mbaudio.Caps{MediaType: "unknown"}
	}
	st := c.GetStructureAt(0)
	if st == nil {
		return mbaudio.Caps{MediaType: "unknown"}
	}
	return mbaudio.Caps{
		MediaType:  st.Name(),
		SampleRate: intField(st, "rate"),
		Channels:   intField(st, "channels"),
	}
}

// intField returns a fixed integer field of st, or 0 when it is missing or
// not fixed.
func intField(st *gst.Structure, key string) int {
	v, err := st.GetValue(key)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint32:
		return int(n)
	}
	return 0
}

// Unit is a decode unit: filesrc ! decodebin, linked on discovery to
// audioconvert ! audioresample ! volume, behind a ghost src pad.
type Unit struct {
	name     string
	location string
	graph    *Graph
	bus      *mbaudio.Bus
	log      zerolog.Logger

	bin      *gst.Bin
	convert  *gst.Element
	terminal *gst.Element
	volume   *gst.Element
	out      *unitPort

	m          sync.Mutex
	state      mbaudio.State
	resolution mbaudio.Resolution
	locked     bool
}

var _ mbaudio.Unit = (*Unit)(nil)

func newUnit(g *Graph, cfg mbaudio.UnitConfig, gain float32) (*Unit, error) {
	location := cfg.Source.Location()
	if local, ok := cfg.Source.(mbaudio.LocalSource); ok && local.LocalPath() != "" {
		location = local.LocalPath()
	}
	u := &Unit{
		name:       cfg.Name,
		location:   location,
		graph:      g,
		bus:        g.bus,
		log:        g.log.With().Str("unit", cfg.Name).Logger(),
		resolution: mbaudio.Unresolved{},
	}

	u.bin = gst.NewBin(cfg.Name)
	src, err := u.element("filesrc", "src")
	if err != nil {
		return nil, err
	}
	if err := src.SetProperty("location", location); err != nil {
		return nil, fmt.Errorf("%s: location: %w", cfg.Name, err)
	}
	decode, err := u.element("decodebin", "decode")
	if err != nil {
		return nil, err
	}
	if u.convert, err = u.element("audioconvert", "convert"); err != nil {
		return nil, err
	}
	if u.terminal, err = u.element("audioresample", "resample"); err != nil {
		return nil, err
	}
	if u.volume, err = u.element("volume", "volume"); err != nil {
		return nil, err
	}
	volume := cfg.Volume
	if volume == 0 {
		volume = 1
	}
	if err := u.volume.SetProperty("volume", float64(volume*gain)); err != nil {
		return nil, fmt.Errorf("%s: volume: %w", cfg.Name, err)
	}

	if err := u.bin.AddMany(src, decode, u.convert, u.terminal, u.volume); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	if err := src.Link(decode); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLink, cfg.Name, err)
	}
	if err := gst.ElementLinkMany(u.convert, u.terminal, u.volume); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLink, cfg.Name, err)
	}
	if _, err := decode.Connect("pad-added", u.onPadAdded); err != nil {
		return nil, fmt.Errorf("%s: pad-added: %w", cfg.Name, err)
	}

	ghost := gst.NewGhostPad("src", u.volume.GetStaticPad("src"))
	if ghost == nil || !u.bin.AddPad(ghost.Pad) {
		return nil, fmt.Errorf("%w: %s: ghost pad", ErrLink, cfg.Name)
	}
	u.out = &unitPort{unit: u, pad: ghost.Pad, probes: make(map[mbaudio.ProbeID]uint64)}
	return u, nil
}

func (u *Unit) element(factory, role string) (*gst.Element, error) {
	e, err := gst.NewElementWithName(factory, u.name+"-"+role)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrElement, factory, err)
	}
	return e, nil
}

// onPadAdded runs on a streaming thread. The first audio stream of a preroll
// cycle is linked to the converter, later ones are only logged.
func (u *Unit) onPadAdded(_ *gst.Element, pad *gst.Pad) {
	caps := parseCaps(pad.GetCurrentCaps())
	if !strings.HasPrefix(caps.MediaType, "audio/") {
		u.log.Debug().Stringer("caps", caps).Msg("ignoring non-audio stream")
		return
	}

	u.m.Lock()
	defer u.m.Unlock()
	if _, ok := u.resolution.(mbaudio.Resolved); ok {
		u.log.Info().Stringer("caps", caps).Msg("ignoring additional stream")
		return
	}
	u.bus.Post(mbaudio.Message{Kind: mbaudio.MessageStreamDiscovered, Source: u.name, Caps: caps})

	if ret := pad.Link(u.convert.GetStaticPad("sink")); ret != gst.PadLinkOK {
		// The unit stays silent; decodebin ends the stream on its own.
		u.log.Warn().Stringer("caps", caps).Int("result", int(ret)).Msg("cannot link stream")
		return
	}
	u.resolution = mbaudio.Resolved{Caps: caps}
	u.log.Debug().Stringer("caps", caps).Msg("linked stream")
}

func (u *Unit) Name() string {
	return u.name
}

func (u *Unit) State() mbaudio.State {
	u.m.Lock()
	defer u.m.Unlock()
	return u.state
}

// SetState steps the bin towards target. GStreamer posts the state-changed
// messages, which the graph forwards to the bus.
func (u *Unit) SetState(target mbaudio.State) error {
	for {
		u.m.Lock()
		from := u.state
		u.m.Unlock()
		if from == target {
			return nil
		}
		to := from.Step(target)
		if err := u.bin.SetState(toGst(to)); err != nil {
			return fmt.Errorf("%w: %s: %s -> %s: %w", ErrState, u.name, from, to, err)
		}

		u.m.Lock()
		u.state = to
		if from == mbaudio.StatePaused && to == mbaudio.StateReady {
			u.resolution = mbaudio.Unresolved{}
		}
		u.m.Unlock()
	}
}

func (u *Unit) Output() mbaudio.Port {
	return u.out
}

func (u *Unit) Resolution() mbaudio.Resolution {
	u.m.Lock()
	defer u.m.Unlock()
	return u.resolution
}

// Seek sends s to the unit's terminal element, from where it travels upstream
// to the demuxer.
func (u *Unit) Seek(s mbaudio.Seek) error {
	flags := gst.SeekFlags(0)
	if s.Flags&mbaudio.SeekFlush != 0 {
		flags |= gst.SeekFlagFlush
	}
	if s.Flags&mbaudio.SeekSegment != 0 {
		flags |= gst.SeekFlagSegment
	}
	stopType, stop := gst.SeekTypeSet, int64(s.Stop)
	if s.Stop < 0 {
		stopType, stop = gst.SeekTypeNone, -1
	}
	ev := gst.NewSeekEvent(1.0, gst.FormatTime, flags, gst.SeekTypeSet, int64(s.Start), stopType, stop)
	if !u.terminal.SendEvent(ev) {
		return fmt.Errorf("%w: %s", ErrSeek, u.name)
	}
	return nil
}

func (u *Unit) SetLocked(locked bool) {
	u.m.Lock()
	u.locked = locked
	u.m.Unlock()
	setLockedState(u.bin.Element, locked)
}

func (u *Unit) Locked() bool {
	u.m.Lock()
	defer u.m.Unlock()
	return u.locked
}

func (u *Unit) Position() (time.Duration, bool) {
	ok, pos := u.terminal.QueryPosition(gst.FormatTime)
	if !ok || pos < 0 {
		return 0, false
	}
	return time.Duration(pos), true
}

func (u *Unit) Duration() (time.Duration, bool) {
	ok, d := u.terminal.QueryDuration(gst.FormatTime)
	if !ok || d < 0 {
		return 0, false
	}
	return time.Duration(d), true
}

func toGst(s mbaudio.State) gst.State {
	switch s {
	case mbaudio.StateReady:
		return gst.StateReady
	case mbaudio.StatePaused:
		return gst.StatePaused
	case mbaudio.StatePlaying:
		return gst.StatePlaying
	}
	return gst.StateNull
}

func fromGst(s gst.State) (mbaudio.State, bool) {
	switch s {
	case gst.StateNull:
		return mbaudio.StateNull, true
	case gst.StateReady:
		return mbaudio.StateReady, true
	case gst.StatePaused:
		return mbaudio.StatePaused, true
	case gst.StatePlaying:
		return mbaudio.StatePlaying, true
	}
	return 0, false
}
