package glasstokey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLayoutYAML = `
side: left
canvas_rows: 2
canvas_cols: 2
grid:
  - row: 0
    col: 0
    label: A
    action:
      kind: key
      key: "0x04"
      repeatable: true
buttons:
  - id: shift-btn
    label: Shift
    x: 0.8
    y: 0.8
    width: 0.1
    height: 0.1
    action:
      kind: modifier
      modifier: shift
layers:
  - layer: 1
    grid:
      - row: 0
        col: 1
        label: B
        action:
          kind: key
          key: "5"
tuning:
  hold_min_seconds: 0.2
  repeat_initial_delay: "120ms"
`

func TestLoadLayoutDocument_ParsesValidDocument(t *testing.T) {
	doc, err := LoadLayoutDocument([]byte(sampleLayoutYAML))
	require.NoError(t, err)
	assert.Equal(t, "left", doc.Side)
	assert.Equal(t, 2, doc.CanvasRows)
	require.Len(t, doc.Grid, 1)
	assert.Equal(t, "A", doc.Grid[0].Label)
	require.Len(t, doc.Layers, 1)
	assert.Equal(t, 1, doc.Layers[0].Layer)
	require.NotNil(t, doc.Tuning)
	assert.Equal(t, 0.2, *doc.Tuning.HoldMinSeconds)
}

func TestLoadLayoutDocument_RejectsInvalidSide(t *testing.T) {
	_, err := LoadLayoutDocument([]byte("side: up\n"))
	assert.Error(t, err)
}

func TestLoadLayoutDocument_RejectsMalformedYAML(t *testing.T) {
	_, err := LoadLayoutDocument([]byte("side: [left\n"))
	assert.Error(t, err)
}

func TestDecodeAction_Key(t *testing.T) {
	a, err := decodeAction(ActionDoc{Kind: "key", Key: "0x04", Repeatable: true})
	require.NoError(t, err)
	assert.Equal(t, ActionKey, a.Kind)
	assert.Equal(t, uint16(0x04), a.KeyCode)
	assert.True(t, a.KeyFlags&FlagRepeatable != 0)
}

func TestDecodeAction_KeyChord(t *testing.T) {
	a, err := decodeAction(ActionDoc{Kind: "key_chord", Key: "10", Modifier: "command"})
	require.NoError(t, err)
	assert.Equal(t, ActionKeyChord, a.Kind)
	assert.Equal(t, uint16(10), a.KeyCode)
	assert.Equal(t, FlagCommand, a.ChordExtra)
}

func TestDecodeAction_Modifier(t *testing.T) {
	a, err := decodeAction(ActionDoc{Kind: "modifier", Modifier: "option"})
	require.NoError(t, err)
	assert.Equal(t, ActionModifier, a.Kind)
	assert.Equal(t, ModOption, a.Modifier)
}

func TestDecodeAction_MouseButton(t *testing.T) {
	a, err := decodeAction(ActionDoc{Kind: "mouse_button", Button: "middle"})
	require.NoError(t, err)
	assert.Equal(t, ActionMouseButton, a.Kind)
	assert.Equal(t, MouseButtonMiddle, a.Button)
}

func TestDecodeAction_LayerToggleAndMomentary(t *testing.T) {
	a, err := decodeAction(ActionDoc{Kind: "layer_toggle", Layer: 2})
	require.NoError(t, err)
	assert.Equal(t, ActionLayerToggle, a.Kind)
	assert.Equal(t, 2, a.Layer)

	a2, err := decodeAction(ActionDoc{Kind: "layer_momentary", Layer: 3})
	require.NoError(t, err)
	assert.Equal(t, ActionLayerMomentary, a2.Kind)
	assert.Equal(t, 3, a2.Layer)
}

func TestDecodeAction_UnknownKindErrors(t *testing.T) {
	_, err := decodeAction(ActionDoc{Kind: "teleport"})
	assert.Error(t, err)
}

func TestParseKeyCode_HexAndDecimal(t *testing.T) {
	v, err := parseKeyCode("0x1F")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1F), v)

	v2, err := parseKeyCode("42")
	require.NoError(t, err)
	assert.Equal(t, uint16(42), v2)

	_, err = parseKeyCode("not-a-code")
	assert.Error(t, err)
}

func TestParseModifierAndMouseButton_RejectUnknown(t *testing.T) {
	_, err := parseModifier("banana")
	assert.Error(t, err)

	_, err = parseMouseButton("banana")
	assert.Error(t, err)
}

func TestLayoutDocument_ApplyTo_InstallsBindingsAndTuning(t *testing.T) {
	doc, err := LoadLayoutDocument([]byte(sampleLayoutYAML))
	require.NoError(t, err)

	engine := NewEngine(DefaultConfig(), nil, nil, nil, nil)
	err = doc.ApplyTo(engine)
	require.NoError(t, err)

	// A frame landing inside the grid cell (0,0) should be accepted without
	// error; the pending tuning override also lands on this first Ingest.
	frame := RawFrame{DeviceIndex: 0, ArrivalTime: 0, Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.1, Y: 0.1}, Tag: TagStarting},
	}}
	_, err = engine.Ingest(frame, 0)
	assert.NoError(t, err)
}

func TestLayoutDocument_ApplyTo_RejectsMalformedAction(t *testing.T) {
	bad := `
side: left
grid:
  - row: 0
    col: 0
    action:
      kind: key
      key: "not-a-keycode"
`
	doc, err := LoadLayoutDocument([]byte(bad))
	require.NoError(t, err)

	engine := NewEngine(DefaultConfig(), nil, nil, nil, nil)
	err = doc.ApplyTo(engine)
	assert.Error(t, err)
}
