package glasstokey

// modifierSet reference-counts the four modifiers plus the chord-shift
// latch bit, per spec.md §4.5. mod_down/mod_up only emit a dispatch event
// on the 0->1 / 1->0 edge; every emitted ModifierDown is matched by exactly
// one ModifierUp, which is the engine's single most important invariant
// (spec.md §8, invariant 1).
//
// Grounded on terma/keybind.go's modifier-matching shape, generalized from
// "does this one event match a modifier pattern" to "how many currently-held
// touches are claiming this modifier."
type modifierSet struct {
	counts [5]int // indexed by ModifierCode; ModNone unused

	chord chordShiftState
}

type chordShiftState struct {
	active            [2]bool // indexed by Side
	lastContactTime   [2]Ticks
	hadAnyContact     [2]bool
	shiftLatchDown    bool // true while the synthetic chord-shift ModifierDown is outstanding
}

func newModifierSet() *modifierSet {
	return &modifierSet{}
}

// down increments the counter for mod and returns a ModifierDown dispatch
// iff this is the 0->1 transition.
func (m *modifierSet) down(mod ModifierCode, now Ticks, side Side) (DispatchEvent, bool) {
	if mod == ModNone {
		return DispatchEvent{}, false
	}
	wasZero := m.counts[mod] == 0
	m.counts[mod]++
	if !wasZero {
		return DispatchEvent{}, false
	}
	return DispatchEvent{
		Timestamp: now,
		Kind:      KindModifierDown,
		Side:      side,
		Label:     modifierLabel(mod),
	}, true
}

// up decrements the counter for mod (floored at zero) and returns a
// ModifierUp dispatch iff the counter reached zero. An underflow (up called
// with a zero counter) is clamped and does not emit — spec.md §7(e).
func (m *modifierSet) up(mod ModifierCode, now Ticks, side Side) (DispatchEvent, bool) {
	if mod == ModNone {
		return DispatchEvent{}, false
	}
	if m.counts[mod] == 0 {
		return DispatchEvent{}, false
	}
	m.counts[mod]--
	if m.counts[mod] != 0 {
		return DispatchEvent{}, false
	}
	return DispatchEvent{
		Timestamp: now,
		Kind:      KindModifierUp,
		Side:      side,
		Label:     modifierLabel(mod),
	}, true
}

// isActive reports whether any modifier is currently held (counters > 0) or
// the chord-shift latch is engaged; used by the force guard ("no modifiers
// globally active").
func (m *modifierSet) isActive() bool {
	if m.chord.active[SideLeft] || m.chord.active[SideRight] {
		return true
	}
	for i := 1; i < len(m.counts); i++ {
		if m.counts[i] > 0 {
			return true
		}
	}
	return false
}

// effectiveFlags returns the union of modifier-down bits currently in
// effect (spec.md §4.5: "effective modifier flags = Σ(counters) ∪ {Shift
// if chord-latch}"), for stamping onto a dispatched Key/KeyChord event so
// the injector applies whatever else is currently held alongside it.
func (m *modifierSet) effectiveFlags() KeyFlags {
	var f KeyFlags
	if m.counts[ModShift] > 0 || m.chord.active[SideLeft] || m.chord.active[SideRight] {
		f |= FlagShift
	}
	if m.counts[ModControl] > 0 {
		f |= FlagControl
	}
	if m.counts[ModOption] > 0 {
		f |= FlagOption
	}
	if m.counts[ModCommand] > 0 {
		f |= FlagCommand
	}
	return f
}

// chordActive reports whether side's chord-shift latch is currently
// engaged, used by the intent classifier's per-side typing override
// (spec.md §4.3).
func (m *modifierSet) chordActive(side Side) bool {
	return m.chord.active[side]
}

func modifierLabel(mod ModifierCode) string {
	switch mod {
	case ModShift:
		return "Shift"
	case ModControl:
		return "Control"
	case ModOption:
		return "Option"
	case ModCommand:
		return "Command"
	default:
		return "Unknown"
	}
}

// chordContactSeen records that side reported at least one contact this
// frame, latching chord-shift active if contactCount >= threshold. Returns
// a synthetic Shift dispatch if the union of latches flipped.
func (m *modifierSet) chordContactSeen(side Side, contactCount int, threshold int, now Ticks) (DispatchEvent, bool) {
	m.chord.hadAnyContact[side] = contactCount > 0
	if contactCount > 0 {
		m.chord.lastContactTime[side] = now
	}
	if contactCount >= threshold {
		if !m.chord.active[side] {
			m.chord.active[side] = true
			return m.syncChordLatch(now)
		}
	}
	return DispatchEvent{}, false
}

// chordSweep clears a side's latch once it has reported zero contacts for
// at least holdDuration, per spec.md §4.5/§8 invariant 4. Returns a
// synthetic Shift-up dispatch if the union of latches flipped to false.
func (m *modifierSet) chordSweep(now Ticks, holdDuration Ticks) (DispatchEvent, bool) {
	changed := false
	for _, side := range []Side{SideLeft, SideRight} {
		if !m.chord.active[side] {
			continue
		}
		if m.chord.hadAnyContact[side] {
			continue
		}
		if now-m.chord.lastContactTime[side] >= holdDuration {
			m.chord.active[side] = false
			changed = true
		}
	}
	if !changed {
		return DispatchEvent{}, false
	}
	return m.syncChordLatch(now)
}

// syncChordLatch emits the single synthetic Shift edge implied by the union
// of the two sides' chord latches, honoring the invariant that a cleared
// latch emits exactly one Shift-up iff exactly one synthetic Shift-down is
// outstanding (spec.md §3's ChordShiftState invariant).
func (m *modifierSet) syncChordLatch(now Ticks) (DispatchEvent, bool) {
	union := m.chord.active[SideLeft] || m.chord.active[SideRight]
	switch {
	case union && !m.chord.shiftLatchDown:
		m.chord.shiftLatchDown = true
		return DispatchEvent{Timestamp: now, Kind: KindModifierDown, Label: "Shift"}, true
	case !union && m.chord.shiftLatchDown:
		m.chord.shiftLatchDown = false
		return DispatchEvent{Timestamp: now, Kind: KindModifierUp, Label: "Shift"}, true
	default:
		return DispatchEvent{}, false
	}
}

// chordSourceSuppressed reports whether side is currently the source of an
// active chord latch, meaning all its touches must be Disqualified so it
// cannot also emit ordinary keys (spec.md §4.5).
func (m *modifierSet) chordSourceSuppressed(side Side) bool {
	return m.chord.active[side]
}

// reset drives every counter to zero, emitting a synthetic ModifierUp for
// each still-held modifier, and clears the chord latch (emitting a Shift-up
// if one was outstanding). Used by Engine.reset (spec.md §4.4 "unbalanced
// modifier counters on reset are driven to zero with synthetic up events").
func (m *modifierSet) reset(now Ticks) []DispatchEvent {
	var evs []DispatchEvent
	for code := ModShift; code <= ModCommand; code++ {
		for m.counts[code] > 0 {
			if ev, ok := m.up(code, now, SideLeft); ok {
				evs = append(evs, ev)
			}
		}
	}
	m.chord.active[SideLeft] = false
	m.chord.active[SideRight] = false
	if m.chord.shiftLatchDown {
		m.chord.shiftLatchDown = false
		evs = append(evs, DispatchEvent{Timestamp: now, Kind: KindModifierUp, Label: "Shift"})
	}
	return evs
}
