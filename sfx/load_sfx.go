package sfx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/tools/godoc/vfs"
	"gopkg.in/yaml.v3"

	mbaudio "github.com/herzi/mb-audio-engine"
	"github.com/herzi/mb-audio-engine/loaders"
)

// RegistryFiles are looked up at the root of a sound effect filesystem, in order.
var RegistryFiles = []string{"sfx.json", "sfx.yaml", "sfx.yml"}

var (
	ErrNoRegistry    = errors.New("sfx: no registry file")
	ErrInvalidSfx    = errors.New("sfx: invalid sound effect")
	ErrDuplicateSfx  = errors.New("sfx: duplicate sound effect")
	ErrEmptyRegistry = errors.New("sfx: registry has no sound effects")
)

type slotRef struct {
	sfx     *Sfx
	variant *SfxVariant
}

// Registry holds the loaded sound effects. Every variation is played by its
// own effect unit, named by its slot.
type Registry struct {
	fs vfs.Opener
	// root is the local folder of fs, if any.
	root string
	log  zerolog.Logger

	m       sync.Mutex
	effects map[Id]*Sfx
	ids     []Id
	slots   map[string]slotRef
	now     func() time.Time
	rand    func() float64
}

// LoadFolder loads sound effects from a regular folder.
// See Load for more information.
func LoadFolder(folder string, log zerolog.Logger) (*Registry, error) {
	r, err := Load(vfs.OS(folder), log)
	if err != nil {
		return nil, err
	}
	r.root = folder
	return r, nil
}

// Load loads sound effects from a virtual filesystem.
// At the root of the filesystem there must be a "sfx.json" or "sfx.yaml"
// file, which references the files to be played.
func Load(fileSystem vfs.Opener, log zerolog.Logger) (*Registry, error) {
	start := time.Now()
	var (
		soundEffects []*Sfx
		err          error
	)
	for _, name := range RegistryFiles {
		soundEffects, err = loadRegistry(fileSystem, name)
		if !errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: looked for %v", ErrNoRegistry, RegistryFiles)
	}
	if err != nil {
		return nil, err
	}
	r, err := newRegistry(fileSystem, soundEffects, log)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("effects", len(r.effects)).
		Int("slots", len(r.slots)).
		Dur("took", time.Since(start)).
		Msg("loaded sound effects")
	return r, nil
}

// FromPaths builds a registry with one single-variation effect per local file.
func FromPaths(paths []string, log zerolog.Logger) (*Registry, error) {
	effects := make([]*Sfx, 0, len(paths))
	seen := make(map[Id]int)
	for _, path := range paths {
		id := IdFromPath(path)
		if n := seen[id]; n > 0 {
			seen[id]++
			id = Id(fmt.Sprintf("%s-%d", id, n))
		} else {
			seen[id] = 1
		}
		effects = append(effects, &Sfx{
			Id:         id,
			Variations: []*SfxVariant{{Path: path}},
		})
	}
	return newRegistry(nil, effects, log)
}

func newRegistry(fs vfs.Opener, soundEffects []*Sfx, log zerolog.Logger) (*Registry, error) {
	if len(soundEffects) == 0 {
		return nil, ErrEmptyRegistry
	}
	r := &Registry{
		fs:      fs,
		log:     log,
		effects: make(map[Id]*Sfx, len(soundEffects)),
		slots:   make(map[string]slotRef),
		now:     time.Now,
		rand:    rand.Float64,
	}
	for _, e := range soundEffects {
		if err := normalize(e); err != nil {
			return nil, err
		}
		if _, ok := r.effects[e.Id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSfx, e.Id)
		}
		r.effects[e.Id] = e
		r.ids = append(r.ids, e.Id)
		for i, v := range e.Variations {
			v.slot = e.Id.Slot(i)
			if _, ok := r.slots[v.slot]; ok {
				return nil, fmt.Errorf("%w: slot %s", ErrDuplicateSfx, v.slot)
			}
			r.slots[v.slot] = slotRef{sfx: e, variant: v}
		}
	}
	slices.Sort(r.ids)
	return r, nil
}

// normalize checks e and fills in defaults: a volume of 0 means unity gain.
func normalize(e *Sfx) error {
	if e == nil || e.Id == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSfx)
	}
	if len(e.Variations) == 0 {
		return fmt.Errorf("%w: %s has no variations", ErrInvalidSfx, e.Id)
	}
	if e.Volume == 0 {
		e.Volume = 1
	}
	if e.Volume < 0 || e.ThrottlingMs < 0 {
		return fmt.Errorf("%w: %s has negative volume or throttling", ErrInvalidSfx, e.Id)
	}
	for i, v := range e.Variations {
		if v == nil || v.Path == "" {
			return fmt.Errorf("%w: %s variation %d has no path", ErrInvalidSfx, e.Id, i)
		}
		if v.Volume == 0 {
			v.Volume = 1
		}
		if v.Volume < 0 || v.Probability < 0 || v.ThrottlingMs < 0 {
			return fmt.Errorf("%w: %s variation %d has negative settings", ErrInvalidSfx, e.Id, i)
		}
	}
	return nil
}

func readFile(fs vfs.Opener, path string) (data []byte, err error) {
	file, err := fs.Open(path)
	if err != nil {
		return
	}
	data, err = io.ReadAll(file)
	_ = file.Close()
	return
}

func loadRegistry(fs vfs.Opener, path string) (registry []*Sfx, err error) {
	data, err := readFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		err = fmt.Errorf("failed to open %s: %w", path, err)
		return
	}
	switch path {
	case "sfx.json":
		err = json.Unmarshal(data, &registry)
	default:
		err = yaml.Unmarshal(data, &registry)
	}
	if err != nil {
		err = fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return
}

// Units returns one effect unit configuration per variation, in slot order.
// A nil decoder registry means loaders.DefaultRegistry.
func (r *Registry) Units(decoders *loaders.Registry) []mbaudio.UnitConfig {
	var units []mbaudio.UnitConfig
	for _, id := range r.ids {
		e := r.effects[id]
		for _, v := range e.Variations {
			fs, path := r.fs, v.Path
			if r.root != "" {
				fs, path = nil, filepath.Join(r.root, v.Path)
			}
			units = append(units, mbaudio.UnitConfig{
				Name:   v.slot,
				Source: mbaudio.FileSource(fs, decoders, path),
				Volume: e.Volume * v.Volume,
			})
		}
	}
	return units
}

// Ids returns the loaded ids in sorted order.
func (r *Registry) Ids() []Id {
	return slices.Clone(r.ids)
}

func (r *Registry) Get(id Id) (*Sfx, bool) {
	e, ok := r.effects[id]
	return e, ok
}

// Len returns the number of sound effects.
func (r *Registry) Len() int {
	return len(r.effects)
}
