// Package sfx describes the sound effects an engine can splice into the
// background: a registry loaded from sfx.json or sfx.yaml, weighted variant
// selection with throttling, and a cue scheduler.
package sfx

import (
	"slices"
	"time"
)

type Sfx struct {
	Id           Id            `json:"id" yaml:"id"`
	Volume       float32       `json:"volume" yaml:"volume"`
	ThrottlingMs int           `json:"throttlingMs" yaml:"throttlingMs"`
	Variations   []*SfxVariant `json:"variations" yaml:"variations"`
	lastPlayed   time.Time
}

type SfxVariant struct {
	Path         string  `json:"path" yaml:"path"`
	Probability  float64 `json:"probability" yaml:"probability"`
	Volume       float32 `json:"volume" yaml:"volume"`
	ThrottlingMs int     `json:"throttlingMs" yaml:"throttlingMs"`
	slot         string
	lastPlayed   time.Time
}

// Slot returns the name of the effect unit playing this variation.
func (v *SfxVariant) Slot() string {
	return v.slot
}

func throttled(last, now time.Time, ms int) bool {
	return !last.IsZero() && now.Sub(last) <= time.Duration(ms)*time.Millisecond
}

func (e *Sfx) throttled(now time.Time) bool {
	return throttled(e.lastPlayed, now, e.ThrottlingMs)
}

func (v *SfxVariant) throttled(now time.Time) bool {
	return throttled(v.lastPlayed, now, v.ThrottlingMs)
}

// choose picks one of candidates weighted by probability. x is uniform in [0, 1).
func choose(candidates []*SfxVariant, x float64) *SfxVariant {
	if len(candidates) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range candidates {
		sum += v.Probability
	}
	if sum <= 0 {
		return candidates[min(int(x*float64(len(candidates))), len(candidates)-1)]
	}
	random := x * sum
	for _, v := range candidates {
		if random <= v.Probability+0.001 {
			return v
		}
		random -= v.Probability
	}
	return candidates[len(candidates)-1]
}

// variant picks an unthrottled variation of e among allowed, or of all
// variations when allowed is nil, and marks it played.
func (e *Sfx) variant(now time.Time, x float64, allowed []*SfxVariant) *SfxVariant {
	if len(e.Variations) == 0 || e.throttled(now) {
		return nil
	}
	var unThrottled []*SfxVariant
	for _, v := range e.Variations {
		if allowed != nil && !slices.Contains(allowed, v) {
			continue
		}
		if !v.throttled(now) {
			unThrottled = append(unThrottled, v)
		}
	}
	v := choose(unThrottled, x)
	if v == nil {
		return nil
	}
	e.lastPlayed = now
	v.lastPlayed = now
	return v
}
