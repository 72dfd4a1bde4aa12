package glasstokey

import "math"

// IntentModeKind tags the IntentState sum type (spec.md §3/§4.3).
type IntentModeKind uint8

const (
	IntentIdle IntentModeKind = iota
	IntentKeyCandidate
	IntentTypingCommitted
	IntentMouseCandidate
	IntentMouseActive
	IntentGestureCandidate
)

func (k IntentModeKind) String() string {
	switch k {
	case IntentIdle:
		return "Idle"
	case IntentKeyCandidate:
		return "KeyCandidate"
	case IntentTypingCommitted:
		return "TypingCommitted"
	case IntentMouseCandidate:
		return "MouseCandidate"
	case IntentMouseActive:
		return "MouseActive"
	case IntentGestureCandidate:
		return "GestureCandidate"
	default:
		return "Unknown"
	}
}

// touchTrack is IntentState's per-contact bookkeeping (spec.md §3).
type touchTrack struct {
	startPoint Point
	startTime  Ticks
	lastPoint  Point
	lastTime   Ticks
	maxDrift2  float64
}

// IntentState is the C3 singleton: the engine's current read of what the
// user is doing, independent of any one contact's own lifecycle.
//
// Grounded on terma/hover.go's "only transition on identity change" shape,
// generalized from widget-hover identity to a six-state tagged mode.
type IntentState struct {
	Mode       IntentModeKind
	modeStart  Ticks
	untilAllUp bool // only meaningful when Mode == IntentTypingCommitted

	touches map[ContactKey]*touchTrack

	lastContactCount int

	typingGraceActive   bool
	typingGraceDeadline Ticks
}

func newIntentState() *IntentState {
	return &IntentState{touches: make(map[ContactKey]*touchTrack)}
}

// IntentTransition records a mode change for the diagnostics tap / replay
// fingerprint (spec.md §6's "sequence of intent transitions").
type IntentTransition struct {
	Timestamp Ticks
	Previous  IntentModeKind
	Current   IntentModeKind
	Reason    string
}

// classifierResult is C3's per-frame output, consumed by C4/C7.
type classifierResult struct {
	Mode              IntentModeKind
	AllowTypingGlobal bool
	PerSideAllow      [2]bool
	ContactCount      int
	OnKeyCount        int
	Centroid          Point
	MaxDrift2         float64
	MaxVelocityMMS    float64
	Transition        *IntentTransition // non-nil if Mode changed this frame
}

// extendTypingGrace is called whenever a key dispatches; per spec.md §4.3
// it forces the mode to TypingCommitted for the grace window regardless of
// what the rest of the classifier would otherwise conclude.
func (is *IntentState) extendTypingGrace(now Ticks, graceSeconds float64, unitsPerMM float64) {
	is.typingGraceActive = true
	is.typingGraceDeadline = now + Ticks(graceSeconds*float64(time1Second))
}

// time1Second is the tick scale: the engine treats Ticks as nanoseconds so
// that millisecond/second thresholds in Config convert directly. Replay
// capture frames carry their timestamps in seconds, which capture.go's
// ToRawFrame converts to this same scale.
const time1Second Ticks = 1_000_000_000

func secondsToTicks(s float64) Ticks { return Ticks(s * float64(time1Second)) }

// update advances the classifier for one RawFrame. deviceSide maps a raw
// frame's device index to a Side; isOnKey reports whether a point lies on
// some key/modifier binding for that side at the currently active layer.
func (is *IntentState) update(frame RawFrame, now Ticks, cfg Config, deviceSide func(int) Side, isOnKey func(Side, Point) bool, keyboardAnchorActive bool) classifierResult {
	side := deviceSide(frame.DeviceIndex)

	live := make(map[ContactKey]bool, len(frame.Contacts))
	var onKeyCount, contactCount int
	var sumX, sumY float64
	var maxDrift2, maxVelocity float64

	for _, rc := range frame.Contacts {
		key := NewContactKey(frame.DeviceIndex, rc.ID)
		if rc.Tag.IsTerminal() {
			delete(is.touches, key)
			continue
		}
		if !rc.Tag.IsDown() {
			continue
		}
		live[key] = true
		contactCount++
		sumX += rc.Position.X
		sumY += rc.Position.Y

		tr, ok := is.touches[key]
		if !ok {
			tr = &touchTrack{startPoint: rc.Position, startTime: now, lastPoint: rc.Position, lastTime: now}
			is.touches[key] = tr
		}
		dt := now - tr.lastTime
		if dt > 0 {
			dist := math.Sqrt(sqDist(rc.Position, tr.lastPoint))
			v := dist / (float64(dt) / float64(time1Second))
			if v > maxVelocity {
				maxVelocity = v
			}
		}
		tr.lastPoint = rc.Position
		tr.lastTime = now
		d2 := sqDist(rc.Position, tr.startPoint)
		if d2 > tr.maxDrift2 {
			tr.maxDrift2 = d2
		}
		if tr.maxDrift2 > maxDrift2 {
			maxDrift2 = tr.maxDrift2
		}

		if isOnKey(side, rc.Position) {
			onKeyCount++
		}
	}
	// Drop tracks for contacts no longer present at all (defensive; the
	// terminal-tag branch above handles the common case).
	for key := range is.touches {
		if _, present := live[key]; !present {
			if _, inFrame := indexContact(frame, key); !inFrame {
				delete(is.touches, key)
			}
		}
	}

	var centroid Point
	if contactCount > 0 {
		centroid = Point{X: sumX / float64(contactCount), Y: sumY / float64(contactCount)}
	}

	moveThresholdNorm := cfg.mmToNorm(cfg.IntentMoveThresholdMM)
	velThresholdNorm := cfg.mmToNorm(cfg.IntentVelocityThresholdMMS)

	mouseSignal := is.detectMouseSignal(contactCount, onKeyCount, maxDrift2, maxVelocity, moveThresholdNorm, velThresholdNorm)
	gestureSignal := is.detectGestureSignal(now, cfg)

	prevMode := is.Mode
	reason := ""

	if is.typingGraceActive {
		if now >= is.typingGraceDeadline {
			is.typingGraceActive = false
		} else {
			is.setMode(IntentTypingCommitted, now)
			is.untilAllUp = !cfg.AllowMouseTakeoverDuringTyping
			reason = "typing-grace"
		}
	}

	if reason == "" {
		switch is.Mode {
		case IntentIdle:
			switch {
			case keyboardAnchorActive && contactCount <= 1:
				is.setMode(IntentTypingCommitted, now)
				is.untilAllUp = !cfg.AllowMouseTakeoverDuringTyping
				reason = "keyboard-anchor"
			case gestureSignal:
				is.setMode(IntentGestureCandidate, now)
				reason = "multi-finger-landing"
			case onKeyCount > 0 && !mouseSignal:
				is.setMode(IntentKeyCandidate, now)
				reason = "on-key"
			default:
				is.setMode(IntentMouseCandidate, now)
				reason = "default-to-mouse"
			}
		case IntentKeyCandidate:
			if mouseSignal {
				is.setMode(IntentMouseCandidate, now)
				reason = "mouse-signal"
			} else if now-is.modeStart >= secondsToTicks(cfg.KeyBufferSeconds) {
				is.setMode(IntentTypingCommitted, now)
				is.untilAllUp = !cfg.AllowMouseTakeoverDuringTyping
				reason = "key-buffer-elapsed"
			}
		case IntentTypingCommitted:
			allUp := contactCount == 0
			if is.untilAllUp {
				if allUp {
					is.setMode(IntentIdle, now)
					reason = "all-up"
				}
			} else if mouseSignal {
				is.setMode(IntentMouseActive, now)
				reason = "mouse-takeover"
			} else if allUp {
				is.setMode(IntentIdle, now)
				reason = "all-up"
			}
		case IntentMouseCandidate:
			if mouseSignal || now-is.modeStart >= secondsToTicks(cfg.KeyBufferSeconds) {
				is.setMode(IntentMouseActive, now)
				reason = "mouse-committed"
			}
		case IntentMouseActive:
			if contactCount == 0 {
				is.setMode(IntentIdle, now)
				reason = "all-up"
			}
		case IntentGestureCandidate:
			if contactCount == 0 {
				is.setMode(IntentIdle, now)
				reason = "all-up"
			}
		}
	}

	is.lastContactCount = contactCount

	result := classifierResult{
		ContactCount:   contactCount,
		OnKeyCount:     onKeyCount,
		Centroid:       centroid,
		MaxDrift2:      maxDrift2,
		MaxVelocityMMS: maxVelocity,
	}
	result.Mode = is.Mode
	result.AllowTypingGlobal = is.Mode == IntentTypingCommitted || is.Mode == IntentKeyCandidate
	// Baseline per-side allow mirrors the global gate; Engine.Ingest folds in
	// the opposite side's chord-shift override afterward (spec.md §4.3).
	result.PerSideAllow = [2]bool{result.AllowTypingGlobal, result.AllowTypingGlobal}

	if is.Mode != prevMode {
		result.Transition = &IntentTransition{Timestamp: now, Previous: prevMode, Current: is.Mode, Reason: reason}
	}
	return result
}

func (is *IntentState) setMode(mode IntentModeKind, now Ticks) {
	is.Mode = mode
	is.modeStart = now
}

// detectMouseSignal implements spec.md §4.3's mouse-signal predicate: drift
// past threshold, velocity past threshold while drift exceeds a quarter of
// it, or a second finger landing off-key. Centroid movement is not checked.
func (is *IntentState) detectMouseSignal(contactCount, onKeyCount int, maxDrift2, maxVelocity, moveThresholdNorm, velThresholdNorm float64) bool {
	if maxDrift2 > moveThresholdNorm*moveThresholdNorm {
		return true
	}
	if maxVelocity > velThresholdNorm && maxDrift2 > (moveThresholdNorm*moveThresholdNorm)/16 {
		return true
	}
	if contactCount >= 2 && onKeyCount < contactCount {
		return true
	}
	return false
}

// detectGestureSignal implements spec.md §4.3's GestureCandidate entry
// condition: >=2 contacts landed within key_buffer_seconds of each other
// (staggered landings up to 3 or 5 fingers also qualify).
func (is *IntentState) detectGestureSignal(now Ticks, cfg Config) bool {
	n := len(is.touches)
	if n < 2 {
		return false
	}
	var minStart, maxStart Ticks
	first := true
	for _, tr := range is.touches {
		if first {
			minStart, maxStart = tr.startTime, tr.startTime
			first = false
			continue
		}
		if tr.startTime < minStart {
			minStart = tr.startTime
		}
		if tr.startTime > maxStart {
			maxStart = tr.startTime
		}
	}
	spread := maxStart - minStart
	return spread <= secondsToTicks(cfg.KeyBufferSeconds)
}

// indexContact reports whether key is still present (in any tag state) in frame.
func indexContact(frame RawFrame, key ContactKey) (RawContact, bool) {
	for _, rc := range frame.Contacts {
		if NewContactKey(frame.DeviceIndex, rc.ID) == key {
			return rc, true
		}
	}
	return RawContact{}, false
}
