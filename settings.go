package glasstokey

import "time"

// Config holds every tunable threshold the ingress port's update_* calls
// mutate (spec.md §6). Configuration changes take effect at the next frame
// boundary (spec.md §5); Engine double-buffers Config for exactly that
// reason (see engine.go's applyPendingConfig).
type Config struct {
	// Geometry / units.
	UnitsPerMM float64 // millimeters spanned by one normalized unit (mmToNorm divides by it); 1 = safe fallback

	// C1 Geometry.
	SnapRadiusPercent float64 // 0..100, fraction of min(w,h) used as snap radius
	AmbiguityRatio    float64

	// C3 Intent Classifier.
	KeyBufferSeconds           float64
	IntentMoveThresholdMM      float64
	IntentVelocityThresholdMMS float64
	AllowMouseTakeoverDuringTyping bool
	TypingGraceSeconds         float64

	// C4 Per-contact lifecycle.
	HoldMinSeconds      float64
	TapMaxSeconds       float64
	DragCancelDistanceMM float64
	ForceClickCapGrams  float64

	// C5 Modifier & chord-shift.
	ChordThreshold       int
	ContactHoldDuration  time.Duration
	ChordalShiftEnabled  bool

	// C6 Auto-repeat.
	RepeatInitialDelay time.Duration
	RepeatInterval     time.Duration
	SpacebarKeyCode    uint16

	// C7 Gesture detectors.
	TapClickEnabled      bool
	TapClickCadence      time.Duration
	SwipeThresholdMM     float64
	CornerHoldSeconds    float64
	VoiceHoldSeconds     float64

	// C8 Dispatch queue.
	DispatchQueueCapacity int

	// C9 Engine / modes.
	KeyboardModeEnabled   bool
	KeymapEditingEnabled  bool
	Listening             bool
	PersistentLayer       int

	// Haptic.
	HapticStrength float64 // 0..1
}

// DefaultConfig returns the engine's factory defaults. Values are chosen to
// match spec.md §8's concrete scenarios (6x3 preset defaults).
func DefaultConfig() Config {
	return Config{
		UnitsPerMM: 1,

		SnapRadiusPercent: 100,
		AmbiguityRatio:    defaultAmbiguityRatio,

		KeyBufferSeconds:               0.08,
		IntentMoveThresholdMM:          4,
		IntentVelocityThresholdMMS:     200,
		AllowMouseTakeoverDuringTyping: true,
		TypingGraceSeconds:             0.35,

		HoldMinSeconds:       0.5,
		TapMaxSeconds:        0.2,
		DragCancelDistanceMM: 5,
		ForceClickCapGrams:   0, // 0 disables the force guard

		ChordThreshold:      4,
		ContactHoldDuration: 60 * time.Millisecond,
		ChordalShiftEnabled: true,

		RepeatInitialDelay: 350 * time.Millisecond,
		RepeatInterval:     40 * time.Millisecond,
		SpacebarKeyCode:    keyCodeSpace,

		TapClickEnabled:   true,
		TapClickCadence:   300 * time.Millisecond,
		SwipeThresholdMM:  20,
		CornerHoldSeconds: 0.6,
		VoiceHoldSeconds:  0.8,

		DispatchQueueCapacity: 4096,

		KeyboardModeEnabled:  false,
		KeymapEditingEnabled: false,
		Listening:            true,
		PersistentLayer:      0,

		HapticStrength: 0.5,
	}
}

// keyCodeSpace is the virtual key code used for the spacebar; auto-repeat
// uses 2x the configured interval for this code specifically (spec.md §4.6)
// to avoid runaway word breaks.
const keyCodeSpace uint16 = 0x31

// mmToNorm converts a millimeter distance to normalized-space units given
// the configured UnitsPerMM scale. Falls back to 1mm=1unit if unset.
func (c Config) mmToNorm(mm float64) float64 {
	scale := c.UnitsPerMM
	if scale <= 0 {
		scale = 1
	}
	return mm / scale
}
