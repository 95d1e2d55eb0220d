package sfx

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/godoc/vfs/mapfs"

	mbaudio "github.com/herzi/mb-audio-engine"
	"github.com/herzi/mb-audio-engine/engine"
)

var (
	_ engine.Picker    = (*Registry)(nil)
	_ engine.Scheduler = (*Scheduler)(nil)
)

const registryJSON = `[
	{"id": "door-open", "volume": 0.5, "throttlingMs": 100, "variations": [
		{"path": "door1.wav", "probability": 0.75},
		{"path": "door2.wav", "probability": 0.25, "volume": 0.5}
	]},
	{"id": "ui.click", "variations": [{"path": "click.ogg"}]}
]`

const registryYAML = `
- id: bell
  variations:
    - path: bell.wav
      throttlingMs: 50
`

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func load(t *testing.T, files map[string]string) (*Registry, *clock) {
	t.Helper()
	r, err := Load(mapfs.New(files), zerolog.Nop())
	require.NoError(t, err)
	c := &clock{t: time.Unix(1000, 0)}
	r.now = c.now
	r.rand = func() float64 { return 0 }
	return r, c
}

func TestLoadJSON(t *testing.T) {
	r, _ := load(t, map[string]string{"sfx.json": registryJSON})

	assert.Equal(t, []Id{"door-open", "ui.click"}, r.Ids())
	door, ok := r.Get("door-open")
	require.True(t, ok)
	require.Len(t, door.Variations, 2)
	assert.Equal(t, "door-open-1", door.Variations[1].Slot())
	assert.Equal(t, float32(1), door.Variations[0].Volume)

	units := r.Units(nil)
	require.Len(t, units, 3)
	assert.Equal(t, "door-open-0", units[0].Name)
	assert.Equal(t, float32(0.5), units[0].Volume)
	assert.Equal(t, float32(0.25), units[1].Volume)
	assert.Equal(t, "door2.wav", units[1].Source.Location())
	assert.Equal(t, "ui.click-0", units[2].Name)
}

func TestLoadYAML(t *testing.T) {
	r, _ := load(t, map[string]string{"sfx.yaml": registryYAML})
	bell, ok := r.Get("bell")
	require.True(t, ok)
	assert.Equal(t, 50, bell.Variations[0].ThrottlingMs)
	assert.Equal(t, 1, r.Len())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(mapfs.New(map[string]string{}), zerolog.Nop())
	require.ErrorIs(t, err, ErrNoRegistry)

	_, err = Load(mapfs.New(map[string]string{"sfx.json": "{"}), zerolog.Nop())
	require.ErrorContains(t, err, "failed to parse sfx.json")

	_, err = Load(mapfs.New(map[string]string{"sfx.json": "[]"}), zerolog.Nop())
	require.ErrorIs(t, err, ErrEmptyRegistry)

	_, err = Load(mapfs.New(map[string]string{"sfx.json": `[{"id": "a", "variations": []}]`}), zerolog.Nop())
	require.ErrorIs(t, err, ErrInvalidSfx)

	_, err = Load(mapfs.New(map[string]string{"sfx.json": `[
		{"id": "a", "variations": [{"path": "a.wav"}]},
		{"id": "a", "variations": [{"path": "b.wav"}]}
	]`}), zerolog.Nop())
	require.ErrorIs(t, err, ErrDuplicateSfx)
}

func TestLoadFolderUsesLocalPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sfx.yaml"), []byte(registryYAML), 0o644))

	r, err := LoadFolder(dir, zerolog.Nop())
	require.NoError(t, err)

	units := r.Units(nil)
	require.Len(t, units, 1)
	local, ok := units[0].Source.(mbaudio.LocalSource)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "bell.wav"), local.LocalPath())
}

func TestFromPaths(t *testing.T) {
	r, err := FromPaths([]string{"/tmp/Door Open.wav", "/other/door open.ogg", "boom.mp3"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []Id{"boom", "door-open", "door-open-1"}, r.Ids())

	units := r.Units(nil)
	require.Len(t, units, 3)
	assert.Equal(t, "boom-0", units[0].Name)
	assert.Equal(t, float32(1), units[0].Volume)
}

func TestPickWeightsAndThrottles(t *testing.T) {
	r, c := load(t, map[string]string{"sfx.json": registryJSON})
	parked := []string{"door-open-0", "door-open-1"}

	r.rand = func() float64 { return 0.9 }
	slot, ok := r.Pick(parked)
	require.True(t, ok)
	assert.Equal(t, "door-open-1", slot)

	// The whole effect is throttled for 100ms.
	_, ok = r.Pick(parked)
	assert.False(t, ok)
	c.advance(101 * time.Millisecond)

	r.rand = func() float64 { return 0.1 }
	slot, ok = r.Pick(parked)
	require.True(t, ok)
	assert.Equal(t, "door-open-0", slot)
}

func TestPickOnlyParked(t *testing.T) {
	r, _ := load(t, map[string]string{"sfx.json": registryJSON})

	slot, ok := r.Pick([]string{"ui.click-0", "unknown"})
	require.True(t, ok)
	assert.Equal(t, "ui.click-0", slot)

	_, ok = r.Pick([]string{"unknown"})
	assert.False(t, ok)
	_, ok = r.Pick(nil)
	assert.False(t, ok)
}

func TestSchedulerDue(t *testing.T) {
	r, _ := load(t, map[string]string{"sfx.json": registryJSON})
	s := NewScheduler(r, Cue{Id: "ui.click", At: time.Second})
	s.PlayAt("door-open", 2*time.Second)
	s.PlayAt("ui.click", 100*time.Millisecond)
	s.PlayAt("missing", 0)

	assert.Empty(t, s.Due(0))
	assert.Equal(t, 3, s.Pending())

	assert.Equal(t, []string{"ui.click-0"}, s.Due(500*time.Millisecond))
	assert.Equal(t, 2, s.Pending())

	// Late cues are dropped once they are stale.
	assert.Empty(t, s.Due(10*time.Second))
	assert.Zero(t, s.Pending())

	s.PlayAt("ui.click", 0)
	s.Clear()
	assert.Zero(t, s.Pending())
}

func TestParseCue(t *testing.T) {
	c, err := ParseCue("door-open@1.5s")
	require.NoError(t, err)
	assert.Equal(t, Cue{Id: "door-open", At: 1500 * time.Millisecond}, c)

	for _, bad := range []string{"door-open", "@1s", "a@soon", "a@-1s"} {
		_, err := ParseCue(bad)
		assert.Error(t, err, bad)
	}
}

func TestExportConstants(t *testing.T) {
	r, _ := load(t, map[string]string{"sfx.json": registryJSON})
	assert.Equal(t, map[string]string{
		"DoorOpen": "door-open",
		"UiClick":  "ui.click",
	}, r.ExportConstants())

	var buf bytes.Buffer
	require.NoError(t, r.WriteConstants(&buf, "Sfx"))
	assert.Equal(t, "const (\n\tSfxDoorOpen sfx.Id = \"door-open\"\n\tSfxUiClick sfx.Id = \"ui.click\"\n)\n", buf.String())
}
