package glasstokey

// ContactPhase tags the ContactState sum type (spec.md §3: "exactly one of
// Pending{...} or Active{...}").
type ContactPhase uint8

const (
	PhasePending ContactPhase = iota
	PhaseActive
)

// DisqualifyReason documents why a contact was marked Disqualified, mostly
// for diagnostics; dispatch logic only cares about the boolean.
type DisqualifyReason string

const (
	ReasonNone            DisqualifyReason = ""
	ReasonTypingDisabled  DisqualifyReason = "typing-disabled"
	ReasonForceCap        DisqualifyReason = "force-cap"
	ReasonTapConsumed     DisqualifyReason = "tap-consumed"
	ReasonDragCancel      DisqualifyReason = "drag-cancel"
	ReasonIntentMouse     DisqualifyReason = "intent-mouse"
	ReasonChordSource     DisqualifyReason = "chord-source"
	ReasonSnapConsumed    DisqualifyReason = "snap-consumed"
	ReasonGestureBlocked  DisqualifyReason = "gesture-candidate"
)

// ContactState is C4's per-contact record (spec.md §3/§4.4).
type ContactState struct {
	Phase  ContactPhase
	Side   Side
	Layer  int
	Binding *Binding

	StartTime  Ticks
	StartPoint Point

	InitialContactPoint Point
	InitialPressure     float64
	MaxDrift2           float64

	IsModifier      bool
	ModifierCode    ModifierCode
	ModifierEngaged bool

	IsContinuous     bool
	HoldBinding      *Binding
	DidHold          bool
	HoldRepeatActive bool
	RepeatToken      uint64

	ForceGuardTriggered bool
	Disqualified        bool
	DisqualifyReason    DisqualifyReason
}

func (c *ContactState) disqualify(reason DisqualifyReason) {
	c.Disqualified = true
	c.DisqualifyReason = reason
}

// dragCancelSqNorm returns the squared drag-cancel distance in normalized
// units for the current config.
func (e *Engine) dragCancelSqNorm() float64 {
	d := e.cfg.mmToNorm(e.cfg.DragCancelDistanceMM)
	return d * d
}

// processContact runs one RawContact through the C4 lifecycle for one
// frame. It is called once per contact per frame, after the intent
// classifier has updated for the frame. Returns any DispatchEvents produced.
//
// Grounded on terma/app.go's mouseClickTracker/mouseDragState (press/
// release/drag-chain bookkeeping) and terma/hover.go's transition dispatch
// shape, generalized to the spec's Pending->Active->resolution machine.
func (e *Engine) processContact(key ContactKey, rc RawContact, side Side, now Ticks, allowTyping bool, intentMode IntentModeKind) []DispatchEvent {
	var out []DispatchEvent

	if rc.Tag.IsTerminal() {
		out = append(out, e.releaseContact(key, now, allowTyping, intentMode)...)
		e.contacts.remove(key)
		delete(e.momentaryLayers, key)
		return out
	}

	cs, existed := e.contacts.get(key)

	// Step 2: chord-shift suppression for this side.
	if e.mods.chordSourceSuppressed(side) {
		if !existed {
			cs = &ContactState{Side: side, StartTime: now, StartPoint: rc.Position, InitialContactPoint: rc.Position, InitialPressure: rc.Pressure}
			e.contacts.insert(key, cs)
		}
		if !cs.Disqualified {
			cs.disqualify(ReasonTypingDisabled)
		}
		return out
	}

	if intentMode == IntentGestureCandidate {
		if !existed {
			cs = &ContactState{Side: side, StartTime: now, StartPoint: rc.Position, InitialContactPoint: rc.Position, InitialPressure: rc.Pressure}
			e.contacts.insert(key, cs)
		}
		if !cs.Disqualified {
			cs.disqualify(ReasonGestureBlocked)
		}
		return out
	}

	if !existed {
		layer := e.activeLayer()
		idx := e.bindingIndexFor(side, layer)
		var binding *Binding
		if idx != nil {
			binding = idx.At(rc.Position)
		}
		cs = &ContactState{
			Side:                side,
			Layer:               layer,
			Binding:             binding,
			StartTime:           now,
			StartPoint:          rc.Position,
			InitialContactPoint: rc.Position,
			InitialPressure:     rc.Pressure,
		}
		e.contacts.insert(key, cs)
		out = append(out, e.onContactLanded(key, cs, now, allowTyping)...)
	} else {
		out = append(out, e.onContactTouching(key, cs, rc, now, allowTyping)...)
	}

	return out
}

// onContactLanded handles the first frame a contact is seen: Force Guard,
// then dispatch on the binding's Action (spec.md §4.4 steps 3-4).
func (e *Engine) onContactLanded(key ContactKey, cs *ContactState, now Ticks, allowTyping bool) []DispatchEvent {
	var out []DispatchEvent

	if e.cfg.ForceClickCapGrams > 0 && !e.mods.isActive() && cs.InitialPressure >= e.cfg.ForceClickCapGrams {
		cs.ForceGuardTriggered = true
		cs.disqualify(ReasonForceCap)
		return out
	}

	if cs.Binding == nil {
		return out
	}

	switch cs.Binding.Action.Kind {
	case ActionTypingToggle:
		// Toggled on release; nothing to do on landing.
		return out
	case ActionLayerToggle:
		// Toggled on release while typing enabled; nothing to do on landing.
		return out
	case ActionLayerMomentary:
		e.momentaryLayers[key] = cs.Binding.Action.Layer
		return out
	case ActionNone:
		return out
	}

	if !allowTyping {
		return out
	}

	// Tap-on-release priority: a modifier already active and this binding
	// carries none fires immediately (spec.md §4.4 step 5).
	if e.mods.isActive() && cs.Binding.Action.Kind != ActionModifier {
		out = append(out, e.emitKeyTap(cs, now)...)
		cs.disqualify(ReasonTapConsumed)
		return out
	}

	isModifierOrContinuous := cs.Binding.Action.Kind == ActionModifier || cs.Binding.Action.IsContinuous
	if isModifierOrContinuous {
		cs.Phase = PhasePending
	} else {
		cs.Phase = PhaseActive
	}

	if cs.Binding.Action.Kind == ActionModifier {
		cs.IsModifier = true
		cs.ModifierCode = cs.Binding.Action.Modifier
		if ev, ok := e.mods.down(cs.ModifierCode, now, cs.Side); ok {
			out = append(out, ev)
		}
		cs.ModifierEngaged = true
	}
	cs.IsContinuous = cs.Binding.Action.IsContinuous

	return out
}

// onContactTouching handles every subsequent frame a contact is present:
// drift tracking, hold detection (spec.md §4.4 step 5).
func (e *Engine) onContactTouching(key ContactKey, cs *ContactState, rc RawContact, now Ticks, allowTyping bool) []DispatchEvent {
	var out []DispatchEvent
	if cs.Disqualified || cs.Binding == nil {
		return out
	}

	d2 := sqDist(rc.Position, cs.StartPoint)
	if d2 > cs.MaxDrift2 {
		cs.MaxDrift2 = d2
	}

	disqualify := func(reason DisqualifyReason) {
		cs.disqualify(reason)
		if cs.HoldRepeatActive {
			e.repeats.cancel(cs.RepeatToken)
			cs.HoldRepeatActive = false
		}
	}

	if e.cfg.ForceClickCapGrams > 0 && !e.mods.isActive() && rc.Pressure >= e.cfg.ForceClickCapGrams {
		cs.ForceGuardTriggered = true
		disqualify(ReasonForceCap)
		return out
	}

	dragCancelSq := e.dragCancelSqNorm()
	isTapOnly := !cs.IsContinuous && cs.Binding.Action.Kind != ActionModifier
	if cs.MaxDrift2 > dragCancelSq && isTapOnly {
		disqualify(ReasonDragCancel)
		return out
	}
	if cs.IsContinuous && !cs.Binding.Rect.Contains(cs.InitialContactPoint) {
		disqualify(ReasonDragCancel)
		return out
	}
	if cs.IsContinuous && !cs.Binding.Rect.Contains(rc.Position) {
		disqualify(ReasonDragCancel)
		return out
	}

	if !cs.DidHold && now-cs.StartTime >= secondsToTicks(e.cfg.HoldMinSeconds) &&
		cs.MaxDrift2 <= dragCancelSq &&
		cs.Binding.Rect.Contains(cs.InitialContactPoint) && allowTyping {

		cs.DidHold = true
		switch {
		case cs.IsContinuous:
			out = append(out, e.emitKeyTap(cs, now)...)
			cs.RepeatToken = e.repeats.start(key, cs.Binding.Action.KeyCode, cs.Binding.Action.KeyFlags, cs.Side, cs.Binding.Label, e.cfg, now)
			cs.HoldRepeatActive = true
		case cs.Binding.HoldAction != nil:
			held := *cs.Binding.HoldAction
			out = append(out, e.emitAction(held, cs.Side, cs.Binding.Label, now)...)
			if held.IsContinuous {
				cs.RepeatToken = e.repeats.start(key, held.KeyCode, held.KeyFlags, cs.Side, cs.Binding.Label, e.cfg, now)
				cs.HoldRepeatActive = true
			}
		}
	}

	return out
}

// releaseContact resolves a contact's terminal frame: release-tap,
// momentary-layer close, and snap-on-release (spec.md §4.4 steps 5-6).
func (e *Engine) releaseContact(key ContactKey, now Ticks, allowTyping bool, intentMode IntentModeKind) []DispatchEvent {
	var out []DispatchEvent
	cs, ok := e.contacts.get(key)
	if !ok {
		return out
	}

	if cs.IsModifier && cs.ModifierEngaged {
		if ev, ok := e.mods.up(cs.ModifierCode, now, cs.Side); ok {
			out = append(out, ev)
		}
	}

	if cs.HoldRepeatActive {
		e.repeats.cancel(cs.RepeatToken)
	}

	if layer, opened := e.momentaryLayers[key]; opened {
		_ = layer
		delete(e.momentaryLayers, key)
	}

	if cs.Binding == nil {
		if !cs.Disqualified && (intentMode == IntentTypingCommitted || intentMode == IntentKeyCandidate) {
			out = append(out, e.trySnapOnRelease(cs, now)...)
		}
		return out
	}

	switch cs.Binding.Action.Kind {
	case ActionTypingToggle:
		if cs.MaxDrift2 <= e.dragCancelSqNorm() {
			e.typingEnabled = !e.typingEnabled
			if !e.typingEnabled {
				out = append(out, e.releaseAllHeld(now)...)
			}
		}
		return out
	case ActionLayerToggle:
		if e.typingEnabled {
			n := cs.Binding.Action.Layer
			if e.persistentLayer == n {
				e.persistentLayer = 0
			} else {
				e.persistentLayer = n
			}
		}
		return out
	}

	if cs.Disqualified || cs.DidHold {
		return out
	}

	withinTap := now-cs.StartTime <= secondsToTicks(e.cfg.TapMaxSeconds)
	withinDrift := cs.MaxDrift2 <= e.dragCancelSqNorm()
	allowed := allowTyping || intentMode == IntentKeyCandidate

	if withinTap && withinDrift && allowed {
		out = append(out, e.emitKeyTap(cs, now)...)
	}
	return out
}

// trySnapOnRelease implements spec.md §4.4 step 6: a release that landed on
// no binding may still count as a tap on the nearest eligible key/modifier
// rect. releaseContact only calls it for a contact with no binding that is
// not disqualified, while the release tap needs a binding, so the two never
// both fire for one contact; a snap marks the contact ReasonSnapConsumed.
func (e *Engine) trySnapOnRelease(cs *ContactState, now Ticks) []DispatchEvent {
	e.snapAttempts++
	idx := e.bindingIndexFor(cs.Side, cs.Layer)
	if idx == nil {
		return nil
	}
	binding, ok := idx.NearestSnap(cs.StartPoint, e.cfg.AmbiguityRatio)
	if !ok {
		return nil
	}
	e.snapAccepted++
	cs.Binding = binding
	cs.disqualify(ReasonSnapConsumed)
	return e.emitKeyTap(cs, now)
}

// emitKeyTap produces the KeyTap/MouseButtonClick dispatch for cs's binding
// action and extends typing grace (spec.md §4.3: "whenever a key
// dispatches, extend the typing grace deadline").
func (e *Engine) emitKeyTap(cs *ContactState, now Ticks) []DispatchEvent {
	evs := e.emitAction(cs.Binding.Action, cs.Side, cs.Binding.Label, now)
	if len(evs) > 0 {
		e.intent.extendTypingGrace(now, e.cfg.TypingGraceSeconds, e.cfg.UnitsPerMM)
	}
	return evs
}

// emitAction turns a Binding's Action into zero or one DispatchEvent.
func (e *Engine) emitAction(a Action, side Side, label string, now Ticks) []DispatchEvent {
	switch a.Kind {
	case ActionKey, ActionKeyChord:
		return []DispatchEvent{{
			Timestamp:     now,
			Kind:          KindKeyTap,
			VirtualKey:    a.KeyCode,
			Side:          side,
			Label:         label,
			Flags:         DispatchFlags{Repeatable: a.IsContinuous, Haptic: true},
			ModifierFlags: a.KeyFlags | a.ChordExtra | e.mods.effectiveFlags(),
		}}
	case ActionMouseButton:
		return []DispatchEvent{{
			Timestamp:   now,
			Kind:        KindMouseButtonClick,
			MouseButton: a.Button,
			ClickCount:  1,
			Side:        side,
			Label:       label,
			Flags:       DispatchFlags{Haptic: true},
		}}
	default:
		return nil
	}
}

// releaseAllHeld force-releases every active key/modifier/repeat, used when
// typing is toggled off and by Engine.Reset (spec.md §4.4/§9).
func (e *Engine) releaseAllHeld(now Ticks) []DispatchEvent {
	var out []DispatchEvent
	e.contacts.forEach(func(key ContactKey, cs *ContactState) {
		if cs.IsModifier && cs.ModifierEngaged {
			if ev, ok := e.mods.up(cs.ModifierCode, now, cs.Side); ok {
				out = append(out, ev)
			}
			cs.ModifierEngaged = false
		}
		if cs.HoldRepeatActive {
			e.repeats.cancel(cs.RepeatToken)
			cs.HoldRepeatActive = false
		}
		if !cs.Disqualified {
			cs.disqualify(ReasonTypingDisabled)
		}
	})
	for k := range e.momentaryLayers {
		delete(e.momentaryLayers, k)
	}
	out = append(out, e.mods.reset(now)...)
	return out
}

// activeLayer computes the effective layer: the max momentary layer if any
// are held, else the persistent layer (spec.md §4.4).
func (e *Engine) activeLayer() int {
	best := -1
	for _, l := range e.momentaryLayers {
		if l > best {
			best = l
		}
	}
	if best >= 0 {
		return best
	}
	return e.persistentLayer
}
