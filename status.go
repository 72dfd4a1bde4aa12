package glasstokey

// Status is a point-in-time snapshot of everything a host application might
// want to show a user or log: mode, held state, queue health, and recent
// diagnostics. Unlike terma's Signal[T] (which pushes change notifications
// to subscribed widgets), Status is pulled on demand via
// Engine.StatusSnapshot — there is no rendering layer here to subscribe
// anything to, so the reactive half of the Signal pattern has no home; only
// its "one consistent read of live state" half survives, generalized to a
// plain struct copy instead of a generic cell.
type Status struct {
	Timestamp Ticks

	Mode            IntentModeKind
	TypingEnabled   bool
	PersistentLayer int
	ActiveLayer     int

	ActiveContacts int
	HeldModifiers  [5]int
	ChordShiftLeft  bool
	ChordShiftRight bool

	Dispatch DispatchMetrics

	SnapAttempts int
	SnapAccepted int

	Generation uint64
	FrameCount uint64

	RecentFaults      []EngineFault
	RecentTransitions []IntentTransition
}

func (e *Engine) buildStatus(now Ticks) Status {
	s := Status{
		Timestamp:       now,
		Mode:            e.intent.Mode,
		TypingEnabled:   e.typingEnabled,
		PersistentLayer: e.persistentLayer,
		ActiveLayer:     e.activeLayer(),
		ActiveContacts:  e.contacts.len(),
		HeldModifiers:   e.mods.counts,
		ChordShiftLeft:  e.mods.chord.active[SideLeft],
		ChordShiftRight: e.mods.chord.active[SideRight],
		Dispatch:        e.dispatchQ.Snapshot(),
		SnapAttempts:    e.snapAttempts,
		SnapAccepted:    e.snapAccepted,
		Generation:      e.generation,
		FrameCount:      e.frameCount,
	}
	s.RecentFaults = e.faults.snapshot()
	s.RecentTransitions = e.diagnostics.RecentTransitions(16)
	return s
}
