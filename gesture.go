package glasstokey

// gestureDetectors bundles C7's three independent recognizers: multi-finger
// tap-click, 5-finger swipe, and corner/dictation hold. All three run only
// while the intent classifier is in GestureCandidate (or, for corner holds,
// regardless of mode since a stationary finger in a dead corner never looks
// like typing or mousing).
//
// Grounded on terma/app.go's mouseClickTracker (click-chain counting by
// elapsed time and identity) generalized from "same widget, same button" to
// "same finger count".
type gestureDetectors struct {
	tap    tapClickTracker
	swipe  swipeTracker
	corner cornerHoldTracker
}

func newGestureDetectors() *gestureDetectors {
	return &gestureDetectors{}
}

// tapClickTracker resolves a short multi-finger contact into a synthetic
// mouse click, chaining click counts the same way a single-finger tap does.
type tapClickTracker struct {
	lastClickTime   Ticks
	lastFingerCount int
	clickCount      int

	pending       bool
	pendingCount  int
	pendingStart  Ticks
	pendingMax2   float64
}

// begin records that a tap-candidate gesture of fingerCount fingers started
// landing at now.
func (t *tapClickTracker) begin(fingerCount int, now Ticks) {
	if t.pending {
		return
	}
	t.pending = true
	t.pendingCount = fingerCount
	t.pendingStart = now
	t.pendingMax2 = 0
}

// trackDrift folds in the per-frame max centroid drift while a tap is
// pending, used to cancel taps that turn into a drag.
func (t *tapClickTracker) trackDrift(drift2 float64) {
	if drift2 > t.pendingMax2 {
		t.pendingMax2 = drift2
	}
}

// resolve is called when all fingers of a pending tap have released. It
// emits a click only if the whole gesture stayed within TapMaxSeconds and
// the drift bound, and folds the result into the click-chain counter
// (TapClickCadence decides whether it chains onto the previous click).
func (t *tapClickTracker) resolve(now Ticks, cfg Config, dragCancelSqNorm float64) (DispatchEvent, bool) {
	if !t.pending {
		return DispatchEvent{}, false
	}
	fingerCount := t.pendingCount
	t.pending = false

	if now-t.pendingStart > secondsToTicks(cfg.TapMaxSeconds) || t.pendingMax2 > dragCancelSqNorm {
		return DispatchEvent{}, false
	}

	cadence := secondsToTicks(cfg.TapClickCadence.Seconds())
	sameKind := fingerCount == t.lastFingerCount
	if sameKind && now-t.lastClickTime <= cadence {
		t.clickCount++
	} else {
		t.clickCount = 1
	}
	t.lastFingerCount = fingerCount
	t.lastClickTime = now

	button := buttonForFingerCount(fingerCount)
	if button == MouseButtonNone {
		return DispatchEvent{}, false
	}
	return DispatchEvent{
		Timestamp:   now,
		Kind:        KindMouseButtonClick,
		MouseButton: button,
		ClickCount:  t.clickCount,
		Label:       "tap-click",
		Flags:       DispatchFlags{Haptic: true},
	}, true
}

func buttonForFingerCount(n int) MouseButton {
	switch n {
	case 2:
		return MouseButtonLeft
	case 3:
		return MouseButtonRight
	default:
		return MouseButtonNone
	}
}

// swipeTracker recognizes a 5-finger swipe gesture. It tolerates a brief
// 5->4->5 finger drop (a finger momentarily losing contact mid-swipe is
// common on glass trackpads) by holding the gesture open for dropGrace
// after the count first drops below 5, rather than resetting immediately.
type swipeTracker struct {
	active       bool
	fired        bool
	startTime    Ticks
	startCentroid Point
	lastFullTime Ticks
	belowFull    bool
}

const swipeDropGraceSeconds = 0.12

// update folds in one frame's gesture-candidate contact count/centroid.
// Returns a non-nil DispatchEvent the first time a swipe resolves.
func (s *swipeTracker) update(contactCount int, centroid Point, now Ticks, cfg Config) *DispatchEvent {
	if contactCount < 4 {
		s.reset()
		return nil
	}

	if !s.active {
		if contactCount < 5 {
			return nil
		}
		s.active = true
		s.fired = false
		s.startTime = now
		s.startCentroid = centroid
		s.lastFullTime = now
		s.belowFull = false
		return nil
	}

	if contactCount >= 5 {
		s.lastFullTime = now
		s.belowFull = false
	} else {
		if !s.belowFull {
			s.belowFull = true
			s.lastFullTime = now
		}
		if now-s.lastFullTime > secondsToTicks(swipeDropGraceSeconds) {
			s.reset()
			return nil
		}
	}

	if s.fired {
		return nil
	}

	thresholdNorm := cfg.mmToNorm(cfg.SwipeThresholdMM)
	dx := centroid.X - s.startCentroid.X
	dy := centroid.Y - s.startCentroid.Y
	if dx*dx+dy*dy < thresholdNorm*thresholdNorm {
		return nil
	}

	var dir SwipeDirection
	if abs(dx) >= abs(dy) {
		if dx > 0 {
			dir = SwipeRight
		} else {
			dir = SwipeLeft
		}
	} else {
		if dy > 0 {
			dir = SwipeDown
		} else {
			dir = SwipeUp
		}
	}
	s.fired = true
	return &DispatchEvent{
		Timestamp: now,
		Kind:      KindSwipe,
		Swipe:     dir,
		Label:     "swipe-" + dir.String(),
	}
}

func (s *swipeTracker) reset() {
	*s = swipeTracker{}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// cornerHoldTracker watches for two fingers parked in a pair of corner
// zones for a sustained hold (spec.md §4.7): two contacts in diagonally
// opposite corners emit a CornerHold dispatch once, while two contacts in
// the top and bottom of the same side's outer edge emit a dedicated
// DictationHoldStart/End pair for "push to dictate".
type cornerHoldTracker struct {
	corners       [2]Corner // the two corners currently held, ascending
	startTime     Ticks
	startByCorner [5]Point // indexed by Corner
	fired         bool
	dictating     bool
}

const cornerZoneFraction = 0.12

func classifyCorner(p Point) Corner {
	switch {
	case p.X <= cornerZoneFraction && p.Y <= cornerZoneFraction:
		return CornerTopLeft
	case p.X >= 1-cornerZoneFraction && p.Y <= cornerZoneFraction:
		return CornerTopRight
	case p.X <= cornerZoneFraction && p.Y >= 1-cornerZoneFraction:
		return CornerBottomLeft
	case p.X >= 1-cornerZoneFraction && p.Y >= 1-cornerZoneFraction:
		return CornerBottomRight
	default:
		return CornerNone
	}
}

// oppositeCornerPair reports whether lo/hi (already corner-sorted
// ascending) are diagonally opposite corners.
func oppositeCornerPair(lo, hi Corner) bool {
	return (lo == CornerTopLeft && hi == CornerBottomRight) || (lo == CornerTopRight && hi == CornerBottomLeft)
}

// sameSideEdgePair reports whether lo/hi are the top and bottom corners of
// the same side's outer edge.
func sameSideEdgePair(lo, hi Corner) bool {
	return (lo == CornerTopLeft && hi == CornerBottomLeft) || (lo == CornerTopRight && hi == CornerBottomRight)
}

// update folds in every currently-down contact's position for the frame.
// A corner/dictation hold can only arm with exactly two contacts, both
// sitting in corner zones that form a valid pair; any other shape resets
// the tracker.
func (c *cornerHoldTracker) update(points []Point, now Ticks, cfg Config, dragCancelSqNorm float64) []DispatchEvent {
	if len(points) != 2 {
		return c.reset(now)
	}
	cA, cB := classifyCorner(points[0]), classifyCorner(points[1])
	if cA == CornerNone || cB == CornerNone || cA == cB {
		return c.reset(now)
	}
	lo, hi, pLo, pHi := cA, cB, points[0], points[1]
	if lo > hi {
		lo, hi, pLo, pHi = hi, lo, pHi, pLo
	}

	plainPair := oppositeCornerPair(lo, hi)
	dictationPair := sameSideEdgePair(lo, hi)
	if !plainPair && !dictationPair {
		return c.reset(now)
	}

	if c.corners != [2]Corner{lo, hi} {
		c.corners = [2]Corner{lo, hi}
		c.startTime = now
		c.startByCorner[lo] = pLo
		c.startByCorner[hi] = pHi
		c.fired = false
		c.dictating = false
		return nil
	}
	if sqDist(pLo, c.startByCorner[lo]) > dragCancelSqNorm || sqDist(pHi, c.startByCorner[hi]) > dragCancelSqNorm {
		return c.reset(now)
	}

	var out []DispatchEvent
	if !c.fired && plainPair && now-c.startTime >= secondsToTicks(cfg.CornerHoldSeconds) {
		c.fired = true
		out = append(out, DispatchEvent{Timestamp: now, Kind: KindCornerHold, Corner: lo, Label: "corner-hold"})
	}
	if dictationPair && !c.dictating && now-c.startTime >= secondsToTicks(cfg.VoiceHoldSeconds) {
		c.dictating = true
		out = append(out, DispatchEvent{Timestamp: now, Kind: KindDictationHoldStart, Corner: lo, Label: "dictation-hold"})
	}
	return out
}

// reset clears the tracker, emitting a DictationHoldEnd if a dictation hold
// was in progress.
func (c *cornerHoldTracker) reset(now Ticks) []DispatchEvent {
	wasDictating := c.dictating
	corner := c.corners[0]
	*c = cornerHoldTracker{}
	if wasDictating {
		return []DispatchEvent{{Timestamp: now, Kind: KindDictationHoldEnd, Corner: corner, Label: "dictation-hold"}}
	}
	return nil
}

// isDictating reports whether a dictation hold is currently open, used to
// suppress ordinary key/tap emission while dictating (spec.md §4.7).
func (c *cornerHoldTracker) isDictating() bool { return c.dictating }
