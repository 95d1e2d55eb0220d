package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WavSink records the mixed output into a WAV file.
type WavSink struct {
	path    string
	format  Format
	file    *os.File
	enc     *wav.Encoder
	samples []int16
	buf     goaudio.IntBuffer
}

func NewWavSink(path string) *WavSink {
	return &WavSink{path: path}
}

func (s *WavSink) Open(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("audio: wav sink: %w", err)
	}
	s.format = f
	s.file = file
	s.enc = wav.NewEncoder(file, f.SampleRate, 8*BytesPerSample, ChannelCount, wavFormatPCM)
	s.buf = goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: ChannelCount, SampleRate: f.SampleRate},
		SourceBitDepth: 8 * BytesPerSample,
	}
	return nil
}

func (s *WavSink) Write(p []byte) (int, error) {
	if s.enc == nil {
		return 0, ErrSinkClosed
	}
	s.samples = s.format.Decode(s.samples[:0], p)
	s.buf.Data = s.buf.Data[:0]
	for _, v := range s.samples {
		s.buf.Data = append(s.buf.Data, int(v))
	}
	if err := s.enc.Write(&s.buf); err != nil {
		return 0, fmt.Errorf("audio: wav sink: %w", err)
	}
	return len(p), nil
}

func (s *WavSink) Close() error {
	if s.enc == nil {
		return nil
	}
	err := s.enc.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.enc = nil
	s.file = nil
	return err
}
