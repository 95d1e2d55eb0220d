package mbaudio

import "io"

type AudioStream interface {
	Read(p []float32) (n int, err error)
}
type SeekableAudioStream interface {
	AudioStream
	Seek(offset int, whence int) (int, error)
}

// SegmentReader reads interleaved samples from memory up to a movable stop.
type SegmentReader struct {
	data []float32
	pos  int
	stop int
}

func NewSegmentReader(data []float32) *SegmentReader {
	return &SegmentReader{data: data, stop: len(data)}
}

func (r *SegmentReader) Read(p []float32) (n int, err error) {
	n = copy(p, r.data[r.pos:r.stop])
	r.pos += n
	if r.pos >= r.stop {
		err = io.EOF
	}
	return
}

// Seek moves the read position, clamped to [0, stop].
func (r *SegmentReader) Seek(offset int, whence int) (int, error) {
	switch whence {
	case io.SeekStart:
		r.pos = offset
	case io.SeekCurrent:
		r.pos += offset
	case io.SeekEnd:
		r.pos = r.stop + offset
	}
	r.pos = max(0, min(r.pos, r.stop))
	return r.pos, nil
}

// SetStop bounds the segment. A negative stop means the end of the data.
func (r *SegmentReader) SetStop(stop int) {
	if stop < 0 || stop > len(r.data) {
		stop = len(r.data)
	}
	r.stop = stop
	r.pos = min(r.pos, r.stop)
}

// Remaining returns the number of samples left in the segment.
func (r *SegmentReader) Remaining() int {
	return r.stop - r.pos
}

func (r *SegmentReader) Pos() int {
	return r.pos
}

func (r *SegmentReader) Len() int {
	return len(r.data)
}
