package glasstokey

// FrameSummary is one frame's worth of diagnostic detail: what the
// classifier saw and what the engine emitted because of it. Generalized
// from terma/debug.go's DebugMetrics (which tracks one frame's render cost
// and widget counts) to one frame's touch-processing cost and output.
type FrameSummary struct {
	Timestamp    Ticks
	ContactCount int
	OnKeyCount   int
	Mode         IntentModeKind
	EventCount   int
}

// diagnosticsTap is a fixed-size ring of recent FrameSummary/IntentTransition
// records plus running counters. Status carries only the recent
// transitions; frames are read through RecentFrames, and the counters are
// not exported (spec.md has no built-in UI).
type diagnosticsTap struct {
	frames      []FrameSummary
	frameHead   int
	frameFull   bool
	transitions []IntentTransition

	totalFrames     uint64
	totalEvents     uint64
	totalTransitions uint64
}

func newDiagnosticsTap(capacity int) *diagnosticsTap {
	if capacity <= 0 {
		capacity = 1
	}
	return &diagnosticsTap{frames: make([]FrameSummary, capacity)}
}

// record folds one frame's processing result into the tap.
func (d *diagnosticsTap) record(frame RawFrame, result classifierResult, events []DispatchEvent, now Ticks) {
	d.totalFrames++
	d.totalEvents += uint64(len(events))

	d.frames[d.frameHead] = FrameSummary{
		Timestamp:    now,
		ContactCount: result.ContactCount,
		OnKeyCount:   result.OnKeyCount,
		Mode:         result.Mode,
		EventCount:   len(events),
	}
	d.frameHead = (d.frameHead + 1) % len(d.frames)
	if d.frameHead == 0 {
		d.frameFull = true
	}

	if result.Transition != nil {
		d.totalTransitions++
		d.transitions = append(d.transitions, *result.Transition)
		if len(d.transitions) > 256 {
			d.transitions = d.transitions[len(d.transitions)-256:]
		}
	}
}

// RecentFrames returns up to n of the most recent frame summaries,
// oldest-first.
func (d *diagnosticsTap) RecentFrames(n int) []FrameSummary {
	var all []FrameSummary
	if d.frameFull {
		all = append(all, d.frames[d.frameHead:]...)
		all = append(all, d.frames[:d.frameHead]...)
	} else {
		all = append(all, d.frames[:d.frameHead]...)
	}
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// RecentTransitions returns up to n of the most recent intent transitions.
func (d *diagnosticsTap) RecentTransitions(n int) []IntentTransition {
	if n <= 0 || n >= len(d.transitions) {
		out := make([]IntentTransition, len(d.transitions))
		copy(out, d.transitions)
		return out
	}
	out := make([]IntentTransition, n)
	copy(out, d.transitions[len(d.transitions)-n:])
	return out
}
