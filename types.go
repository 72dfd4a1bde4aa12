// Package glasstokey implements the GlassToKey touch processing engine: it
// turns raw multitouch frames from a pair of glass trackpads into a
// synthetic keyboard/mouse dispatch stream.
package glasstokey

import "fmt"

// Ticks is a monotonic high-resolution timestamp. The engine never reads
// the wall clock itself; every
// entry point that needs "now" takes it as a Ticks parameter.
type Ticks int64

// Side identifies which physical trackpad a contact or binding belongs to.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// other returns the opposite side.
func (s Side) other() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// ContactLifecycleTag mirrors the HID decoder's per-contact phase tag.
type ContactLifecycleTag uint8

const (
	TagStarting ContactLifecycleTag = iota
	TagMaking
	TagTouching
	TagBreaking
	TagLeaving
	TagHovering
	TagLingering
	TagNotTouching
)

// IsDown reports whether the tag represents a finger in physical contact.
func (t ContactLifecycleTag) IsDown() bool {
	switch t {
	case TagStarting, TagMaking, TagTouching, TagBreaking:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the tag represents a finger that has left the
// surface for good (as opposed to merely hovering/lingering above it).
func (t ContactLifecycleTag) IsTerminal() bool {
	return t == TagLeaving || t == TagNotTouching
}

// Point is a normalized trackpad-surface coordinate in [0,1]^2, bottom-origin
// agnostic (the vertical flip happens once at decode, upstream of the
// engine; see spec.md §3).
type Point struct {
	X, Y float64
}

// RawContact is one finger's state within a RawFrame.
type RawContact struct {
	ID       uint32
	Position Point
	Pressure float64
	Tag      ContactLifecycleTag
}

// RawFrame is one report from the (out-of-scope) HID decoder.
type RawFrame struct {
	DeviceIndex int
	ArrivalTime Ticks
	Contacts    []RawContact
}

// ContactKey totally orders a touch's identity for its whole lifetime:
// (deviceIndex << 32) | contactID.
type ContactKey uint64

// NewContactKey packs a device index and per-device contact id.
func NewContactKey(deviceIndex int, contactID uint32) ContactKey {
	return ContactKey(uint64(uint32(deviceIndex))<<32 | uint64(contactID))
}

func (k ContactKey) DeviceIndex() int { return int(uint32(k >> 32)) }
func (k ContactKey) ContactID() uint32 { return uint32(k) }

func (k ContactKey) String() string {
	return fmt.Sprintf("dev%d#%d", k.DeviceIndex(), k.ContactID())
}

// ActionKind tags the Action sum type (spec.md §3).
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionKey
	ActionModifier
	ActionMouseButton
	ActionKeyChord
	ActionTypingToggle
	ActionLayerToggle
	ActionLayerMomentary
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "None"
	case ActionKey:
		return "Key"
	case ActionModifier:
		return "Modifier"
	case ActionMouseButton:
		return "MouseButton"
	case ActionKeyChord:
		return "KeyChord"
	case ActionTypingToggle:
		return "TypingToggle"
	case ActionLayerToggle:
		return "LayerToggle"
	case ActionLayerMomentary:
		return "LayerMomentary"
	default:
		return "Unknown"
	}
}

// ModifierCode enumerates the reference-counted modifiers (spec.md §3/§4.5).
type ModifierCode uint8

const (
	ModNone ModifierCode = iota
	ModShift
	ModControl
	ModOption
	ModCommand
)

// MouseButton enumerates the synthetic mouse buttons an Action can emit.
type MouseButton uint8

const (
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle
)

// KeyFlags carries auxiliary bits for a Key/KeyChord action (e.g. extra
// modifier flags baked into a chord, or the "repeatable" bit copied onto
// dispatch).
type KeyFlags uint16

const (
	FlagNone       KeyFlags = 0
	FlagRepeatable KeyFlags = 1 << iota
	FlagHaptic
	FlagShift
	FlagControl
	FlagOption
	FlagCommand
)

// Action is the tagged union attached to a Binding (spec.md §3). Exactly one
// of the fields below is meaningful, selected by Kind.
type Action struct {
	Kind ActionKind

	// ActionKey / ActionKeyChord
	KeyCode    uint16
	KeyFlags   KeyFlags
	ChordExtra KeyFlags

	// ActionModifier
	Modifier ModifierCode

	// ActionMouseButton
	Button MouseButton

	// ActionLayerToggle / ActionLayerMomentary
	Layer int

	// IsContinuous marks a key that repeats while held (e.g. arrow keys) as
	// opposed to a plain tap-only key.
	IsContinuous bool
}

// IsModifier reports whether this action is the distinguished Modifier
// subcase of Key, per spec.md §3.
func (a Action) IsModifier() bool { return a.Kind == ActionModifier }

// BindingID stably identifies a custom (non-grid) button binding.
type BindingID string

// GridPos identifies a fixed-layout key binding by (side, row, col).
type GridPos struct {
	Side Side
	Row  int
	Col  int
}

// Binding is an immutable rectangle-to-Action mapping on one side's surface.
type Binding struct {
	ID    BindingID
	Grid  GridPos
	IsGrid bool // true if keyed by Grid, false if keyed by ID (custom button)

	Rect  Rect // trackpad-normalized space
	Side  Side
	Label string

	Action     Action
	HoldAction *Action
}

// Key returns a stable identity string for the binding, used for de-duping
// and for momentary-layer bookkeeping.
func (b Binding) Key() string {
	if b.IsGrid {
		return fmt.Sprintf("grid:%d:%d:%d", b.Grid.Side, b.Grid.Row, b.Grid.Col)
	}
	return "id:" + string(b.ID)
}

// DispatchKind enumerates the events the engine emits to the egress port.
type DispatchKind uint8

const (
	KindKeyTap DispatchKind = iota
	KindKeyDown
	KindKeyUp
	KindModifierDown
	KindModifierUp
	KindMouseButtonClick
	KindMouseButtonDown
	KindMouseButtonUp
	KindSwipe
	KindCornerHold
	KindDictationHoldStart
	KindDictationHoldEnd
)

func (k DispatchKind) String() string {
	switch k {
	case KindKeyTap:
		return "KeyTap"
	case KindKeyDown:
		return "KeyDown"
	case KindKeyUp:
		return "KeyUp"
	case KindModifierDown:
		return "ModifierDown"
	case KindModifierUp:
		return "ModifierUp"
	case KindMouseButtonClick:
		return "MouseButtonClick"
	case KindMouseButtonDown:
		return "MouseButtonDown"
	case KindMouseButtonUp:
		return "MouseButtonUp"
	case KindSwipe:
		return "Swipe"
	case KindCornerHold:
		return "CornerHold"
	case KindDictationHoldStart:
		return "DictationHoldStart"
	case KindDictationHoldEnd:
		return "DictationHoldEnd"
	default:
		return "Unknown"
	}
}

// SwipeDirection enumerates the four cardinal directions a 5-finger swipe
// can resolve to.
type SwipeDirection uint8

const (
	SwipeNone SwipeDirection = iota
	SwipeUp
	SwipeDown
	SwipeLeft
	SwipeRight
)

func (d SwipeDirection) String() string {
	switch d {
	case SwipeUp:
		return "up"
	case SwipeDown:
		return "down"
	case SwipeLeft:
		return "left"
	case SwipeRight:
		return "right"
	default:
		return "none"
	}
}

// Corner enumerates the four trackpad corners corner-hold/dictation-hold
// detectors watch.
type Corner uint8

const (
	CornerNone Corner = iota
	CornerTopLeft
	CornerTopRight
	CornerBottomLeft
	CornerBottomRight
)

// DispatchFlags carries the repeatable/haptic bits for a dispatch event.
type DispatchFlags struct {
	Repeatable bool
	Haptic     bool
}

// Semantic carries human-facing metadata alongside a DispatchEvent, kept
// separate from the hot fields so the fingerprinter can choose which parts
// to mix (spec.md §3's `semantic:{kind_mask, label}`).
type Semantic struct {
	KindMask uint32
	Label    string
}

// DispatchEvent is one item posted to the bounded dispatch queue (C8) for
// the OS-side injector to consume.
type DispatchEvent struct {
	Timestamp   Ticks
	Kind        DispatchKind
	VirtualKey  uint16
	MouseButton MouseButton
	ClickCount  int
	RepeatToken uint64
	Flags       DispatchFlags
	Side        Side
	Label       string
	Semantic    Semantic
	Swipe       SwipeDirection
	Corner      Corner
	// ModifierFlags carries the currently-held modifiers (spec.md §4.5's
	// effective modifier flags) alongside a Key/KeyChord dispatch, for
	// modifiers held on a different contact than the one that dispatched.
	ModifierFlags KeyFlags
}
