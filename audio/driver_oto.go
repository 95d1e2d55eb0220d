package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoRate    int
	otoErr     error
)

func initOto(f Format, bufferSize SinkOptions) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: ChannelCount,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   bufferSize.BufferSize,
		}
		var ready chan struct{}
		otoContext, ready, otoErr = oto.NewContext(op)
		if otoErr == nil {
			<-ready
			otoRate = f.SampleRate
		}
	})
	if otoErr != nil {
		return nil, fmt.Errorf("audio: oto: %w", otoErr)
	}
	if otoRate != f.SampleRate {
		return nil, fmt.Errorf("%w: device already runs at %d Hz, want %d Hz", ErrInvalidFormat, otoRate, f.SampleRate)
	}
	return otoContext, nil
}

// OtoSink plays audio on the default output device.
type OtoSink struct {
	options SinkOptions
	swap    bool
	player  *oto.Player
	pw      *io.PipeWriter
	scratch []byte
}

func NewOtoSink(options SinkOptions) *OtoSink {
	return &OtoSink{options: options}
}

func (s *OtoSink) Open(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	ctx, err := initOto(f, s.options)
	if err != nil {
		return err
	}
	pr, pw := io.Pipe()
	s.pw = pw
	s.swap = f.BigEndian
	s.player = ctx.NewPlayer(pr)
	if n := s.options.bufferSizeInBytes(f); n > 0 {
		s.player.SetBufferSize(n)
	}
	s.player.Play()
	return nil
}

func (s *OtoSink) Write(p []byte) (int, error) {
	if s.pw == nil {
		return 0, ErrSinkClosed
	}
	if !s.swap {
		return s.pw.Write(p)
	}
	// The device format is little endian.
	s.scratch = append(s.scratch[:0], p...)
	for i := 0; i+1 < len(s.scratch); i += BytesPerSample {
		s.scratch[i], s.scratch[i+1] = s.scratch[i+1], s.scratch[i]
	}
	return s.pw.Write(s.scratch)
}

func (s *OtoSink) Close() error {
	if s.pw == nil {
		return nil
	}
	_ = s.pw.Close()
	err := s.player.Close()
	s.pw = nil
	s.player = nil
	return err
}
