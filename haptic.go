package glasstokey

import "github.com/gen2brain/beeep"

// HapticPort is the engine's best-effort feedback boundary: a buzz or click
// played back when a dispatch is flagged Haptic. Real trackpad Taptic
// Engine control is OS/hardware-specific and out of scope here; BeepHaptic
// is a platform-portable stand-in grounded in whatever notification sound
// API the host OS exposes through beeep.
type HapticPort interface {
	Fire(side Side, now Ticks)
}

// NoopHaptic fires nothing.
type NoopHaptic struct{}

func (NoopHaptic) Fire(Side, Ticks) {}

// hapticMinIntervalTicks is the minimum spacing between fires on the same
// side: without it, a fast auto-repeat stream would turn into a
// continuous buzz instead of discrete clicks (spec.md §5's haptic rate
// limit of at least 20ms per side).
const hapticMinIntervalTicks Ticks = 20_000_000 // 20ms in nanosecond Ticks

// BeepHaptic plays the system notification sound as a haptic stand-in,
// rate-limited independently per side.
type BeepHaptic struct {
	lastFire [2]Ticks
	armed    [2]bool
}

func NewBeepHaptic() *BeepHaptic {
	return &BeepHaptic{}
}

func (b *BeepHaptic) Fire(side Side, now Ticks) {
	if b.armed[side] && now-b.lastFire[side] < hapticMinIntervalTicks {
		return
	}
	b.armed[side] = true
	b.lastFire[side] = now
	_ = beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}
