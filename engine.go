package glasstokey

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Engine is C9: the single-writer actor that owns every other component.
// All state access is serialized through its mutex, which stands in for the
// "single logical executor" the design calls for — Ingest, configuration
// updates, Reset, and Status all take the same lock, so from any caller's
// perspective the engine behaves exactly like one goroutine processing one
// message at a time to completion.
//
// Grounded on terma/app.go's Run() event loop: where Run selects over
// terminal events, animation ticks, and render timers, Engine.Ingest plays
// the same role for one RawFrame, and the errgroup-supervised egress drain
// below plays the role of Run's own background animation/render goroutines.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	pendingCfg *Config

	contacts *contactTable
	mods     *modifierSet
	intent   *IntentState
	repeats  *repeatScheduler
	dispatchQ *dispatchQueue
	gestures *gestureDetectors

	haptic    HapticPort
	egress    EgressPort
	dictation DictationPort

	diagnostics *diagnosticsTap
	faults      *faultRing
	fp          *fingerprintState
	log         *Logger

	deviceSide map[int]Side
	bindingIdx map[Side]map[int]*BindingIndex
	generation uint64

	typingEnabled   bool
	persistentLayer int
	momentaryLayers map[ContactKey]int

	snapAttempts, snapAccepted int
	frameCount                 uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewEngine constructs an Engine with no bindings loaded; call SetBindings
// for each (side, layer) pair before feeding frames, or load a
// LayoutDocument via config.go's ApplyTo.
func NewEngine(cfg Config, egress EgressPort, dictation DictationPort, haptic HapticPort, log *Logger) *Engine {
	if egress == nil {
		egress = NoopEgress{}
	}
	if dictation == nil {
		dictation = NoopDictation{}
	}
	if haptic == nil {
		haptic = NoopHaptic{}
	}
	if log == nil {
		log = NewLogger()
	}
	e := &Engine{
		cfg:             cfg,
		contacts:        newContactTable(),
		mods:            newModifierSet(),
		intent:          newIntentState(),
		repeats:         newRepeatScheduler(),
		dispatchQ:       newDispatchQueue(cfg.DispatchQueueCapacity),
		gestures:        newGestureDetectors(),
		haptic:          haptic,
		egress:          egress,
		dictation:       dictation,
		diagnostics:     newDiagnosticsTap(256),
		faults:          newFaultRing(32),
		fp:              newFingerprintState(),
		log:             log,
		deviceSide:      map[int]Side{0: SideLeft, 1: SideRight},
		bindingIdx:      map[Side]map[int]*BindingIndex{SideLeft: {}, SideRight: {}},
		typingEnabled:   cfg.KeyboardModeEnabled,
		persistentLayer: cfg.PersistentLayer,
		momentaryLayers: make(map[ContactKey]int),
	}
	return e
}

// SetDeviceSide assigns which physical side a HID device index reports for.
func (e *Engine) SetDeviceSide(deviceIndex int, side Side) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deviceSide[deviceIndex] = side
}

// SetBindings installs (or replaces) the binding index for one (side, layer)
// pair, bumping the shared generation counter so snapshots/diagnostics can
// detect a reload happened mid-stream.
func (e *Engine) SetBindings(side Side, layer int, gridBindings, customButtons []Binding, canvasRows, canvasCols int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	idx := BuildBindingIndex(side, layer, gridBindings, customButtons, canvasRows, canvasCols, e.cfg.SnapRadiusPercent/100, e.generation)
	if e.bindingIdx[side] == nil {
		e.bindingIdx[side] = map[int]*BindingIndex{}
	}
	e.bindingIdx[side][layer] = idx
}

func (e *Engine) deviceSideFunc(deviceIndex int) Side {
	if s, ok := e.deviceSide[deviceIndex]; ok {
		return s
	}
	return SideLeft
}

func (e *Engine) bindingIndexFor(side Side, layer int) *BindingIndex {
	byLayer := e.bindingIdx[side]
	if byLayer == nil {
		return nil
	}
	if idx, ok := byLayer[layer]; ok {
		return idx
	}
	return byLayer[0]
}

// UpdateConfig queues a full config replacement, applied at the next frame
// boundary (spec.md §5: "configuration changes take effect at the next
// frame boundary", avoiding torn reads of thresholds mid-frame).
func (e *Engine) UpdateConfig(mutate func(*Config)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.cfg
	if e.pendingCfg != nil {
		next = *e.pendingCfg
	}
	mutate(&next)
	e.pendingCfg = &next
}

func (e *Engine) applyPendingConfig() {
	if e.pendingCfg == nil {
		return
	}
	e.cfg = *e.pendingCfg
	e.pendingCfg = nil
}

// Ingest is the engine's single ingress entry point: it runs one RawFrame
// through C1-C8 to completion and returns every DispatchEvent produced,
// which have also been pushed onto the bounded dispatch queue for the
// egress drain task to pick up.
func (e *Engine) Ingest(frame RawFrame, now Ticks) (events []DispatchEvent, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer recoverInto(&err, e.faults, now)

	e.applyPendingConfig()
	e.frameCount++

	side := e.deviceSideFunc(frame.DeviceIndex)
	layer := e.activeLayer()
	idx := e.bindingIndexFor(side, layer)

	isOnKey := func(s Side, p Point) bool {
		i := e.bindingIndexFor(s, layer)
		return i != nil && i.At(p) != nil
	}

	liveCount := 0
	for _, rc := range frame.Contacts {
		if rc.Tag.IsDown() {
			liveCount++
		}
	}
	if chordEv, ok := e.mods.chordContactSeen(side, liveCount, e.cfg.ChordThreshold, now); ok && e.cfg.ChordalShiftEnabled {
		events = append(events, chordEv)
	}
	if sweepEv, ok := e.mods.chordSweep(now, secondsToTicks(e.cfg.ContactHoldDuration.Seconds())); ok {
		events = append(events, sweepEv)
	}

	keyboardAnchorActive := e.cfg.KeyboardModeEnabled
	result := e.intent.update(frame, now, e.cfg, e.deviceSideFunc, isOnKey, keyboardAnchorActive)
	// spec.md §4.3: chord-shift on one side allows typing on the opposite
	// side even when the global classifier gate is false.
	result.PerSideAllow[SideLeft] = result.PerSideAllow[SideLeft] || e.mods.chordActive(SideRight)
	result.PerSideAllow[SideRight] = result.PerSideAllow[SideRight] || e.mods.chordActive(SideLeft)

	for _, rc := range frame.Contacts {
		key := NewContactKey(frame.DeviceIndex, rc.ID)
		allow := result.PerSideAllow[side] && !e.gestures.corner.isDictating()
		evs := e.processContact(key, rc, side, now, allow, e.intent.Mode)
		events = append(events, evs...)
	}

	events = append(events, e.runGestureDetectors(frame, result, now)...)
	events = append(events, e.repeats.poll(now)...)

	_ = idx
	e.dispatchQ.enqueueAll(events)
	e.diagnostics.record(frame, result, events, now)
	e.fp.mix(frame, result.Transition, events)

	return events, nil
}

// runGestureDetectors drives C7 off the current frame's intent-classifier
// result. Tap-click only arms and swipe only tracks while in
// GestureCandidate; any other mode resets the swipe tracker. Corner hold
// runs on every frame regardless of mode.
func (e *Engine) runGestureDetectors(frame RawFrame, result classifierResult, now Ticks) []DispatchEvent {
	var out []DispatchEvent
	dragCancelSq := e.dragCancelSqNorm()

	if e.cfg.TapClickEnabled {
		if e.intent.Mode == IntentGestureCandidate && result.ContactCount >= 2 {
			e.gestures.tap.begin(result.ContactCount, now)
			e.gestures.tap.trackDrift(result.MaxDrift2)
		}
		if result.ContactCount == 0 {
			if ev, ok := e.gestures.tap.resolve(now, e.cfg, dragCancelSq); ok {
				out = append(out, ev)
			}
		}
	}

	if e.intent.Mode == IntentGestureCandidate {
		if ev := e.gestures.swipe.update(result.ContactCount, result.Centroid, now, e.cfg); ev != nil {
			out = append(out, *ev)
		}
	} else {
		e.gestures.swipe.reset()
	}

	var livePoints []Point
	for _, rc := range frame.Contacts {
		if rc.Tag.IsDown() {
			livePoints = append(livePoints, rc.Position)
		}
	}
	out = append(out, e.gestures.corner.update(livePoints, now, e.cfg, dragCancelSq)...)

	return out
}

// DrainDispatch pops every currently-queued event and hands it to the
// egress port, applying the haptic port first for any event flagged
// Haptic. Called by the supervised egress-drain task, but safe to call
// directly in tests.
func (e *Engine) DrainDispatch(now Ticks) error {
	e.mu.Lock()
	evs := e.dispatchQ.drain()
	haptic := e.haptic
	egress := e.egress
	e.mu.Unlock()

	for _, ev := range evs {
		if ev.Flags.Haptic {
			haptic.Fire(ev.Side, now)
		}
		switch ev.Kind {
		case KindDictationHoldStart:
			if err := e.dictation.Start(now); err != nil {
				return err
			}
		case KindDictationHoldEnd:
			if err := e.dictation.Stop(now); err != nil {
				return err
			}
		}
		if err := egress.Emit(ev); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the engine's supervised cooperative tasks (currently just
// the egress drain loop) under an errgroup. A DrainDispatch error is logged
// and the loop keeps running; panics are not recovered. Cancel the returned
// context (via Stop) to shut them down.
func (e *Engine) Start(ctx context.Context, pump <-chan Ticks) error {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = g

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case now, ok := <-pump:
				if !ok {
					return nil
				}
				if err := e.DrainDispatch(now); err != nil {
					e.log.Errorf("egress drain: %v", err)
				}
			}
		}
	})
	return nil
}

// Stop cancels the supervised tasks and waits for them to exit.
func (e *Engine) Stop() error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	err := e.group.Wait()
	e.cancel = nil
	e.group = nil
	return err
}

// Reset clears all live contact/modifier/layer state, emitting synthetic
// release events for anything outstanding, per spec.md §4.4's "an engine
// reset must never leave the OS with a stuck key or modifier" invariant.
// stopVoice additionally force-ends any in-progress dictation hold.
func (e *Engine) Reset(stopVoice bool, now Ticks) []DispatchEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []DispatchEvent
	out = append(out, e.releaseAllHeld(now)...)

	e.contacts.forEach(func(key ContactKey, cs *ContactState) {
		e.repeats.cancelForContact(key)
	})
	e.contacts.clearPreservingCapacity()
	for k := range e.momentaryLayers {
		delete(e.momentaryLayers, k)
	}
	e.intent = newIntentState()

	if stopVoice && e.gestures.corner.isDictating() {
		out = append(out, e.gestures.corner.reset(now)...)
	}
	e.dispatchQ.enqueueAll(out)
	return out
}

// Status is exported in status.go; StatusSnapshot is the locked accessor.
func (e *Engine) StatusSnapshot(now Ticks) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildStatus(now)
}

// FingerprintSum returns the engine's current replay fingerprint digest
// (C10), for CLI/test callers comparing two runs for determinism.
func (e *Engine) FingerprintSum() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fp.Sum()
}
