package glasstokey

// repeatEntry is one held key/button currently re-firing on an interval.
type repeatEntry struct {
	token    uint64
	key      ContactKey
	keyCode  uint16
	flags    KeyFlags
	side     Side
	label    string
	nextFire Ticks
	interval Ticks
}

// repeatScheduler is C6: a timer wheel for auto-repeating continuous keys.
// Unlike a real-time ticker, every tick is evaluated against the engine's
// own Ticks clock (poll is called once per ingested frame), which keeps
// replay fully deterministic — no wall-clock goroutine is ever consulted to
// decide whether a repeat is due.
//
// Grounded on terma/animation_controller.go's AnimationController: entries
// register/unregister by token exactly as animations register/unregister by
// handle, and isEmpty mirrors its "stop the ticker when nothing is
// animating" optimization (here: skip the poll's bookkeeping work entirely).
type repeatScheduler struct {
	entries   map[uint64]*repeatEntry
	nextToken uint64
}

func newRepeatScheduler() *repeatScheduler {
	return &repeatScheduler{entries: make(map[uint64]*repeatEntry)}
}

// maxCatchUpFires bounds how many repeat events a single poll can emit for
// one entry, guarding against runaway output if "now" jumps far ahead (e.g.
// a paused replay resuming).
const maxCatchUpFires = 64

// start registers a new repeating entry and returns its token. The spacebar
// gets double the configured delay/interval to avoid runaway word breaks
// (spec.md §4.6).
func (rs *repeatScheduler) start(key ContactKey, keyCode uint16, flags KeyFlags, side Side, label string, cfg Config, now Ticks) uint64 {
	delay := secondsToTicks(cfg.RepeatInitialDelay.Seconds())
	interval := secondsToTicks(cfg.RepeatInterval.Seconds())
	if keyCode == cfg.SpacebarKeyCode {
		delay *= 2
		interval *= 2
	}
	rs.nextToken++
	token := rs.nextToken
	rs.entries[token] = &repeatEntry{
		token:    token,
		key:      key,
		keyCode:  keyCode,
		flags:    flags,
		side:     side,
		label:    label,
		nextFire: now + delay,
		interval: interval,
	}
	return token
}

// cancel unregisters a repeat entry, e.g. on release or disqualification.
func (rs *repeatScheduler) cancel(token uint64) {
	delete(rs.entries, token)
}

// cancelForContact cancels whatever entry belongs to key, if any; used by
// Engine.Reset to make sure no repeat outlives its owning contact.
func (rs *repeatScheduler) cancelForContact(key ContactKey) {
	for token, e := range rs.entries {
		if e.key == key {
			delete(rs.entries, token)
		}
	}
}

// isEmpty reports whether any entries are registered.
func (rs *repeatScheduler) isEmpty() bool {
	return len(rs.entries) == 0
}

// poll fires every entry whose nextFire has elapsed, emitting one repeatable
// KeyDown dispatch carrying the repeat token per fire and rescheduling it
// forward (spec.md §4.6: the egress port treats a KeyDown with an
// already-seen token as a repeat rather than a fresh press).
func (rs *repeatScheduler) poll(now Ticks) []DispatchEvent {
	if rs.isEmpty() {
		return nil
	}
	var out []DispatchEvent
	for _, e := range rs.entries {
		fires := 0
		for e.nextFire <= now && fires < maxCatchUpFires {
			out = append(out, DispatchEvent{
				Timestamp:   now,
				Kind:        KindKeyDown,
				VirtualKey:  e.keyCode,
				Side:        e.side,
				Label:       e.label,
				RepeatToken: e.token,
				Flags:       DispatchFlags{Repeatable: true, Haptic: e.flags&FlagHaptic != 0},
			})
			if e.interval <= 0 {
				break
			}
			e.nextFire += e.interval
			fires++
		}
	}
	return out
}

// reset clears all entries without emitting events (the caller is
// responsible for any corresponding key-up semantics).
func (rs *repeatScheduler) reset() {
	rs.entries = make(map[uint64]*repeatEntry)
}
