package sfx

// Pick chooses the slot to attach among the parked ones: a random sound
// effect with at least one parked, unthrottled variation, then one of those
// variations weighted by probability.
func (r *Registry) Pick(parked []string) (string, bool) {
	r.m.Lock()
	defer r.m.Unlock()

	now := r.now()
	avail := make(map[Id][]*SfxVariant)
	var candidates []Id
	for _, name := range parked {
		ref, ok := r.slots[name]
		if !ok || ref.sfx.throttled(now) || ref.variant.throttled(now) {
			continue
		}
		if _, seen := avail[ref.sfx.Id]; !seen {
			candidates = append(candidates, ref.sfx.Id)
		}
		avail[ref.sfx.Id] = append(avail[ref.sfx.Id], ref.variant)
	}
	if len(candidates) == 0 {
		return "", false
	}
	id := candidates[min(int(r.rand()*float64(len(candidates))), len(candidates)-1)]
	v := r.effects[id].variant(now, r.rand(), avail[id])
	if v == nil {
		return "", false
	}
	r.log.Debug().Str("sfx", string(id)).Str("slot", v.slot).Msg("picked sound effect")
	return v.slot, true
}

// Variant chooses a variation of id regardless of its slot's state and
// returns its slot. It reports false for unknown or throttled effects.
func (r *Registry) Variant(id Id) (string, bool) {
	r.m.Lock()
	defer r.m.Unlock()

	e, ok := r.effects[id]
	if !ok {
		r.log.Warn().Str("sfx", string(id)).Msg("sound effect not loaded")
		return "", false
	}
	v := e.variant(r.now(), r.rand(), nil)
	if v == nil {
		return "", false
	}
	return v.slot, true
}
