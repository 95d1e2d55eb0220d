// Package loaders picks a decoder for a media file and converts its output
// to the graph's stereo format.
package loaders

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"golang.org/x/tools/godoc/vfs"

	"github.com/herzi/mb-audio-engine/audio"
	"github.com/herzi/mb-audio-engine/loaders/aiff"
	"github.com/herzi/mb-audio-engine/loaders/mp3"
	"github.com/herzi/mb-audio-engine/loaders/oggvorbis"
	"github.com/herzi/mb-audio-engine/loaders/wav"
)

var ErrUnsupportedFormat = errors.New("loaders: unsupported media format")

// Decoder turns an encoded stream into PCM.
type Decoder interface {
	Decode(r io.ReadSeeker) (audio.PCM, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.ReadSeeker) (audio.PCM, error)

func (f DecoderFunc) Decode(r io.ReadSeeker) (audio.PCM, error) {
	return f(r)
}

// Registry maps file extensions and container signatures to decoders.
type Registry struct {
	m          sync.RWMutex
	extensions map[string]Decoder
	magic      []signature
}

type signature struct {
	prefix  []byte
	decoder Decoder
}

func NewRegistry() *Registry {
	return &Registry{extensions: make(map[string]Decoder)}
}

// DefaultRegistry knows WAV, Ogg Vorbis, MP3 and AIFF.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	wavDec := DecoderFunc(wav.Decode)
	oggDec := DecoderFunc(func(rs io.ReadSeeker) (audio.PCM, error) { return oggvorbis.Decode(rs) })
	mp3Dec := DecoderFunc(func(rs io.ReadSeeker) (audio.PCM, error) { return mp3.Decode(rs) })
	aiffDec := DecoderFunc(aiff.Decode)

	r.Register(wavDec, ".wav", ".wave")
	r.Register(oggDec, ".ogg", ".oga")
	r.Register(mp3Dec, ".mp3")
	r.Register(aiffDec, ".aif", ".aiff")

	r.RegisterSignature([]byte("RIFF"), wavDec)
	r.RegisterSignature([]byte("OggS"), oggDec)
	r.RegisterSignature([]byte("FORM"), aiffDec)
	r.RegisterSignature([]byte("ID3"), mp3Dec)
	return r
}

// Register binds d to every extension, replacing earlier bindings.
func (r *Registry) Register(d Decoder, extensions ...string) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, ext := range extensions {
		r.extensions[strings.ToLower(ext)] = d
	}
}

// RegisterSignature binds d to streams starting with prefix.
func (r *Registry) RegisterSignature(prefix []byte, d Decoder) {
	r.m.Lock()
	defer r.m.Unlock()
	r.magic = append(r.magic, signature{prefix: prefix, decoder: d})
}

// Lookup finds a decoder by the extension of name, then by the stream header.
func (r *Registry) Lookup(name string, header []byte) (Decoder, bool) {
	r.m.RLock()
	defer r.m.RUnlock()
	if d, ok := r.extensions[strings.ToLower(path.Ext(name))]; ok {
		return d, true
	}
	for _, s := range r.magic {
		if bytes.HasPrefix(header, s.prefix) {
			return s.decoder, true
		}
	}
	return nil, false
}

// Decode reads name from rs with the matching decoder.
func (r *Registry) Decode(name string, rs io.ReadSeeker) (audio.PCM, error) {
	header := make([]byte, 12)
	n, _ := io.ReadFull(rs, header)
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return audio.PCM{}, fmt.Errorf("%s: %w", name, err)
	}
	d, ok := r.Lookup(name, header[:n])
	if !ok {
		return audio.PCM{}, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	pcm, err := d.Decode(rs)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%s: %w", name, err)
	}
	return pcm, nil
}

// Load opens name on fs and decodes it.
func (r *Registry) Load(fs vfs.Opener, name string) (audio.PCM, error) {
	f, err := fs.Open(name)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%s: failed to open: %w", name, err)
	}
	defer f.Close()
	return r.Decode(name, f)
}
