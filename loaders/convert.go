package loaders

import (
	"errors"
	"fmt"

	"github.com/herzi/mb-audio-engine/audio"
)

var ErrCannotConvert = errors.New("loaders: stream cannot be converted")

// Convert maps pcm onto interleaved stereo at sampleRate.
// Mono is duplicated to both sides; with more than two channels even channels
// are averaged into the left side and odd channels into the right.
// Rate changes use cubic interpolation.
func Convert(pcm audio.PCM, sampleRate int) ([]float32, error) {
	if pcm.Channels < 1 || pcm.SampleRate < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz to %d Hz", ErrCannotConvert, pcm.Channels, pcm.SampleRate, sampleRate)
	}
	stereo := toStereo(pcm)
	if pcm.SampleRate == sampleRate {
		return stereo, nil
	}
	return resample(stereo, pcm.SampleRate, sampleRate), nil
}

func toStereo(pcm audio.PCM) []float32 {
	frames := pcm.Frames()
	out := make([]float32, frames*audio.ChannelCount)
	switch pcm.Channels {
	case 1:
		for i := 0; i < frames; i++ {
			out[2*i] = pcm.Samples[i]
			out[2*i+1] = pcm.Samples[i]
		}
	case 2:
		copy(out, pcm.Samples[:frames*2])
	default:
		left := float32((pcm.Channels + 1) / 2)
		right := float32(pcm.Channels / 2)
		for i := 0; i < frames; i++ {
			frame := pcm.Samples[i*pcm.Channels : (i+1)*pcm.Channels]
			var l, r float32
			for c, v := range frame {
				if c%2 == 0 {
					l += v
				} else {
					r += v
				}
			}
			out[2*i] = l / left
			out[2*i+1] = r / right
		}
	}
	return out
}

// resample converts interleaved stereo from srcRate to dstRate.
func resample(src []float32, srcRate, dstRate int) []float32 {
	srcFrames := len(src) / audio.ChannelCount
	if srcFrames == 0 {
		return nil
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	out := make([]float32, dstFrames*audio.ChannelCount)
	ratio := float64(srcRate) / float64(dstRate)

	at := func(frame, ch int) float32 {
		frame = max(0, min(frame, srcFrames-1))
		return src[frame*audio.ChannelCount+ch]
	}
	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * ratio
		i1 := int(pos)
		t := float32(pos - float64(i1))
		for ch := 0; ch < audio.ChannelCount; ch++ {
			out[i*audio.ChannelCount+ch] = cubic(at(i1-1, ch), at(i1, ch), at(i1+1, ch), at(i1+2, ch), t)
		}
	}
	return out
}

// cubic is Catmull-Rom interpolation between y1 and y2.
func cubic(y0, y1, y2, y3, t float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1
	return ((a0*t+a1)*t+a2)*t + a3
}
