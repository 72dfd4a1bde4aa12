package glasstokey

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LayoutDocument is the on-disk YAML schema for a glass-trackpad layout:
// grid key bindings, custom (non-grid) buttons, per-layer overlays, and a
// tuning block mapping onto Config. Field tags and the flat-struct shape
// mirror gazed-vu's shader-description loader (load/shd.go): decode the
// whole document into an exported struct with yaml tags, then translate
// string fields into engine types by hand.
type LayoutDocument struct {
	Side        string              `yaml:"side"`
	CanvasRows  int                 `yaml:"canvas_rows"`
	CanvasCols  int                 `yaml:"canvas_cols"`
	Grid        []GridBindingDoc    `yaml:"grid"`
	Buttons     []CustomButtonDoc   `yaml:"buttons"`
	Layers      []LayerOverlayDoc   `yaml:"layers"`
	Tuning      *TuningDoc          `yaml:"tuning"`
}

// GridBindingDoc is one fixed-layout cell.
type GridBindingDoc struct {
	Row    int       `yaml:"row"`
	Col    int       `yaml:"col"`
	Label  string    `yaml:"label"`
	Action ActionDoc `yaml:"action"`
}

// CustomButtonDoc is one free-floating rectangle button.
type CustomButtonDoc struct {
	ID     string    `yaml:"id"`
	Label  string    `yaml:"label"`
	X      float64   `yaml:"x"`
	Y      float64   `yaml:"y"`
	Width  float64   `yaml:"width"`
	Height float64   `yaml:"height"`
	Action ActionDoc `yaml:"action"`
}

// LayerOverlayDoc applies a second set of grid/button bindings on top of
// the base layer, active only while that layer number is current.
type LayerOverlayDoc struct {
	Layer   int               `yaml:"layer"`
	Grid    []GridBindingDoc  `yaml:"grid"`
	Buttons []CustomButtonDoc `yaml:"buttons"`
}

// ActionDoc is the YAML-facing Action sum type: kind plus whichever of the
// optional fields that kind needs. Unset optional fields default to their
// Action zero values.
type ActionDoc struct {
	Kind         string `yaml:"kind"`
	Key          string `yaml:"key,omitempty"`
	Modifier     string `yaml:"modifier,omitempty"`
	Button       string `yaml:"button,omitempty"`
	Layer        int    `yaml:"layer,omitempty"`
	Continuous   bool   `yaml:"continuous,omitempty"`
	Repeatable   bool   `yaml:"repeatable,omitempty"`
	Haptic       bool   `yaml:"haptic,omitempty"`
	Hold         *ActionDoc `yaml:"hold,omitempty"` // parsed only: decodeAction ignores it, so bindings built by ApplyTo carry no HoldAction
}

// TuningDoc overrides a subset of Config fields; unset (zero-value) fields
// leave the engine's current config untouched. Durations are written as
// YAML duration strings ("350ms") per time.ParseDuration.
type TuningDoc struct {
	HoldMinSeconds       *float64 `yaml:"hold_min_seconds,omitempty"`
	TapMaxSeconds        *float64 `yaml:"tap_max_seconds,omitempty"`
	DragCancelDistanceMM *float64 `yaml:"drag_cancel_distance_mm,omitempty"`
	ForceClickCapGrams   *float64 `yaml:"force_click_cap_grams,omitempty"`
	ChordThreshold       *int     `yaml:"chord_threshold,omitempty"`
	ContactHoldDuration  *string  `yaml:"contact_hold_duration,omitempty"`
	RepeatInitialDelay   *string  `yaml:"repeat_initial_delay,omitempty"`
	RepeatInterval       *string  `yaml:"repeat_interval,omitempty"`
	TapClickCadence      *string  `yaml:"tap_click_cadence,omitempty"`
	SwipeThresholdMM     *float64 `yaml:"swipe_threshold_mm,omitempty"`
	CornerHoldSeconds    *float64 `yaml:"corner_hold_seconds,omitempty"`
	VoiceHoldSeconds     *float64 `yaml:"voice_hold_seconds,omitempty"`
}

// LoadLayoutDocument parses a layout YAML document. Errors are wrapped with
// the surrounding operation name, matching gazed-vu's "Shd: yaml %w" style.
func LoadLayoutDocument(data []byte) (*LayoutDocument, error) {
	var doc LayoutDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("glasstokey: LoadLayoutDocument: yaml: %w", err)
	}
	if doc.Side != "left" && doc.Side != "right" {
		return nil, fmt.Errorf("glasstokey: LoadLayoutDocument: side must be \"left\" or \"right\", got %q", doc.Side)
	}
	return &doc, nil
}

func (d *LayoutDocument) side() Side {
	if d.Side == "right" {
		return SideRight
	}
	return SideLeft
}

// ApplyTo installs this document's base layer onto e, then every named
// overlay layer, then any tuning overrides. Malformed actions fail the
// whole call rather than installing a half-applied layout.
func (d *LayoutDocument) ApplyTo(e *Engine) error {
	side := d.side()

	type resolvedLayer struct {
		layer         int
		grid, buttons []Binding
	}
	grid, buttons, err := d.resolveLayer(d.Grid, d.Buttons, side)
	if err != nil {
		return fmt.Errorf("glasstokey: ApplyTo: base layer: %w", err)
	}
	layers := []resolvedLayer{{layer: 0, grid: grid, buttons: buttons}}

	for _, overlay := range d.Layers {
		g, b, err := d.resolveLayer(overlay.Grid, overlay.Buttons, side)
		if err != nil {
			return fmt.Errorf("glasstokey: ApplyTo: layer %d: %w", overlay.Layer, err)
		}
		layers = append(layers, resolvedLayer{layer: overlay.Layer, grid: g, buttons: b})
	}

	var durations tuningDurations
	if d.Tuning != nil {
		if durations, err = d.Tuning.parseDurations(); err != nil {
			return fmt.Errorf("glasstokey: ApplyTo: tuning: %w", err)
		}
	}

	for _, l := range layers {
		e.SetBindings(side, l.layer, l.grid, l.buttons, d.CanvasRows, d.CanvasCols)
	}

	if d.Tuning != nil {
		t := d.Tuning
		e.UpdateConfig(func(cfg *Config) {
			applyFloatOverride(&cfg.HoldMinSeconds, t.HoldMinSeconds)
			applyFloatOverride(&cfg.TapMaxSeconds, t.TapMaxSeconds)
			applyFloatOverride(&cfg.DragCancelDistanceMM, t.DragCancelDistanceMM)
			applyFloatOverride(&cfg.ForceClickCapGrams, t.ForceClickCapGrams)
			applyFloatOverride(&cfg.SwipeThresholdMM, t.SwipeThresholdMM)
			applyFloatOverride(&cfg.CornerHoldSeconds, t.CornerHoldSeconds)
			applyFloatOverride(&cfg.VoiceHoldSeconds, t.VoiceHoldSeconds)
			if t.ChordThreshold != nil {
				cfg.ChordThreshold = *t.ChordThreshold
			}
			durations.applyTo(cfg)
		})
	}

	return nil
}

func applyFloatOverride(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// tuningDurations holds the pre-parsed, validated form of TuningDoc's
// duration-string fields, so ApplyTo can fail before it ever touches the
// engine's config rather than partway through UpdateConfig's closure
// (which has no way to report an error back out).
type tuningDurations struct {
	contactHold, repeatDelay, repeatInterval, tapCadence *time.Duration
}

func (t *TuningDoc) parseDurations() (tuningDurations, error) {
	var out tuningDurations
	var err error
	if out.contactHold, err = parseOptionalDuration(t.ContactHoldDuration); err != nil {
		return out, fmt.Errorf("contact_hold_duration: %w", err)
	}
	if out.repeatDelay, err = parseOptionalDuration(t.RepeatInitialDelay); err != nil {
		return out, fmt.Errorf("repeat_initial_delay: %w", err)
	}
	if out.repeatInterval, err = parseOptionalDuration(t.RepeatInterval); err != nil {
		return out, fmt.Errorf("repeat_interval: %w", err)
	}
	if out.tapCadence, err = parseOptionalDuration(t.TapClickCadence); err != nil {
		return out, fmt.Errorf("tap_click_cadence: %w", err)
	}
	return out, nil
}

func (d tuningDurations) applyTo(cfg *Config) {
	if d.contactHold != nil {
		cfg.ContactHoldDuration = *d.contactHold
	}
	if d.repeatDelay != nil {
		cfg.RepeatInitialDelay = *d.repeatDelay
	}
	if d.repeatInterval != nil {
		cfg.RepeatInterval = *d.repeatInterval
	}
	if d.tapCadence != nil {
		cfg.TapClickCadence = *d.tapCadence
	}
}

func parseOptionalDuration(s *string) (*time.Duration, error) {
	if s == nil {
		return nil, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *LayoutDocument) resolveLayer(grid []GridBindingDoc, buttons []CustomButtonDoc, side Side) ([]Binding, []Binding, error) {
	gridBindings := make([]Binding, 0, len(grid))
	for _, g := range grid {
		action, err := decodeAction(g.Action)
		if err != nil {
			return nil, nil, fmt.Errorf("grid[%d,%d]: %w", g.Row, g.Col, err)
		}
		gridBindings = append(gridBindings, Binding{
			IsGrid: true,
			Grid:   GridPos{Side: side, Row: g.Row, Col: g.Col},
			Side:   side,
			Label:  g.Label,
			Action: action,
		})
	}

	customBindings := make([]Binding, 0, len(buttons))
	for _, b := range buttons {
		action, err := decodeAction(b.Action)
		if err != nil {
			return nil, nil, fmt.Errorf("button %q: %w", b.ID, err)
		}
		customBindings = append(customBindings, Binding{
			ID:     BindingID(b.ID),
			IsGrid: false,
			Side:   side,
			Label:  b.Label,
			Rect:   Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height},
			Action: action,
		})
	}

	return gridBindings, customBindings, nil
}

func decodeAction(doc ActionDoc) (Action, error) {
	a := Action{IsContinuous: doc.Continuous}
	var flags KeyFlags
	if doc.Repeatable {
		flags |= FlagRepeatable
	}
	if doc.Haptic {
		flags |= FlagHaptic
	}

	switch doc.Kind {
	case "", "none":
		a.Kind = ActionNone
	case "key":
		a.Kind = ActionKey
		code, err := parseKeyCode(doc.Key)
		if err != nil {
			return Action{}, err
		}
		a.KeyCode = code
		a.KeyFlags = flags
	case "key_chord":
		a.Kind = ActionKeyChord
		code, err := parseKeyCode(doc.Key)
		if err != nil {
			return Action{}, err
		}
		a.KeyCode = code
		a.KeyFlags = flags
		mod, err := parseModifier(doc.Modifier)
		if err != nil {
			return Action{}, err
		}
		switch mod {
		case ModShift:
			a.ChordExtra = FlagShift
		case ModControl:
			a.ChordExtra = FlagControl
		case ModOption:
			a.ChordExtra = FlagOption
		case ModCommand:
			a.ChordExtra = FlagCommand
		}
	case "modifier":
		a.Kind = ActionModifier
		mod, err := parseModifier(doc.Modifier)
		if err != nil {
			return Action{}, err
		}
		a.Modifier = mod
	case "mouse_button":
		a.Kind = ActionMouseButton
		btn, err := parseMouseButton(doc.Button)
		if err != nil {
			return Action{}, err
		}
		a.Button = btn
	case "typing_toggle":
		a.Kind = ActionTypingToggle
	case "layer_toggle":
		a.Kind = ActionLayerToggle
		a.Layer = doc.Layer
	case "layer_momentary":
		a.Kind = ActionLayerMomentary
		a.Layer = doc.Layer
	default:
		return Action{}, fmt.Errorf("unknown action kind %q", doc.Kind)
	}

	return a, nil
}

func parseModifier(s string) (ModifierCode, error) {
	switch s {
	case "shift":
		return ModShift, nil
	case "control":
		return ModControl, nil
	case "option":
		return ModOption, nil
	case "command":
		return ModCommand, nil
	default:
		return ModNone, fmt.Errorf("unknown modifier %q", s)
	}
}

func parseMouseButton(s string) (MouseButton, error) {
	switch s {
	case "left":
		return MouseButtonLeft, nil
	case "right":
		return MouseButtonRight, nil
	case "middle":
		return MouseButtonMiddle, nil
	default:
		return MouseButtonNone, fmt.Errorf("unknown mouse button %q", s)
	}
}

// parseKeyCode accepts either a bare decimal virtual key code or a
// "0x"-prefixed hex one, since layout authors tend to copy codes straight
// out of a platform keycode table.
func parseKeyCode(s string) (uint16, error) {
	var code uint16
	if _, err := fmt.Sscanf(s, "0x%x", &code); err == nil {
		return code, nil
	}
	if _, err := fmt.Sscanf(s, "%d", &code); err == nil {
		return code, nil
	}
	return 0, fmt.Errorf("unparsable key code %q", s)
}
