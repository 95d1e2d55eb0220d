package mbaudio

// ChannelId groups mixer inputs that share a volume setting.
type ChannelId int

const (
	ChannelIdBackground ChannelId = iota
	ChannelIdEffects
	// ChannelIdLast is for when you want to define additional channels yourself
	ChannelIdLast
)

type channelSettings struct {
	volume float32
	muted  bool
}

// channelTable holds per-channel volumes of one mixer. It is guarded by the
// mixer's lock.
type channelTable map[ChannelId]channelSettings

func (t channelTable) get(id ChannelId) channelSettings {
	if s, ok := t[id]; ok {
		return s
	}
	return channelSettings{
		volume: 1,
	}
}

// gain is the multiplier applied to samples of channel id.
func (t channelTable) gain(id ChannelId) float32 {
	s := t.get(id)
	if s.muted {
		return 0
	}
	return s.volume
}

// SetVolume sets the volume of every input on channel id.
func (m *Mux) SetVolume(id ChannelId, volume float32) {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()
	s := m.channels.get(id)
	s.volume = volume
	m.channels[id] = s
}

// Mute silences channel id without removing its inputs.
func (m *Mux) Mute(id ChannelId) {
	m.setMuted(id, true)
}

func (m *Mux) Unmute(id ChannelId) {
	m.setMuted(id, false)
}

func (m *Mux) setMuted(id ChannelId, muted bool) {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()
	s := m.channels.get(id)
	s.muted = muted
	m.channels[id] = s
}

// Volume returns the volume of channel id.
func (m *Mux) Volume(id ChannelId) float32 {
	m.cond.L.Lock()
	defer m.cond.L.Unlock()
	return m.channels.get(id).volume
}
