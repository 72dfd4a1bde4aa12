package glasstokey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyGridEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UnitsPerMM = 100
	e := NewEngine(cfg, nil, nil, nil, nil)
	e.SetBindings(SideLeft, 0, []Binding{
		{
			IsGrid: true,
			Grid:   GridPos{Side: SideLeft, Row: 0, Col: 0},
			Side:   SideLeft,
			Label:  "A",
			Rect:   Rect{X: 0, Y: 0, Width: 0.5, Height: 0.5},
			Action: Action{Kind: ActionKey, KeyCode: 4},
		},
	}, nil, 1, 1)
	return e
}

func TestEngine_TapOnGridKeyDispatchesKeyTap(t *testing.T) {
	e := keyGridEngine(t)

	land := RawFrame{DeviceIndex: 0, ArrivalTime: 0, Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.1, Y: 0.1}, Tag: TagStarting},
	}}
	_, err := e.Ingest(land, 0)
	require.NoError(t, err)

	release := RawFrame{DeviceIndex: 0, ArrivalTime: secondsToTicks(0.05), Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.1, Y: 0.1}, Tag: TagLeaving},
	}}
	evs, err := e.Ingest(release, secondsToTicks(0.05))
	require.NoError(t, err)

	require.Len(t, evs, 1)
	assert.Equal(t, KindKeyTap, evs[0].Kind)
	assert.Equal(t, uint16(4), evs[0].VirtualKey)
}

func TestEngine_DragPastCancelDistanceSuppressesTap(t *testing.T) {
	e := keyGridEngine(t)
	e.UpdateConfig(func(cfg *Config) { cfg.DragCancelDistanceMM = 2 })

	land := RawFrame{DeviceIndex: 0, ArrivalTime: 0, Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.05, Y: 0.05}, Tag: TagStarting},
	}}
	_, err := e.Ingest(land, 0) // applyPendingConfig lands the new threshold before this frame is processed
	require.NoError(t, err)

	drift := RawFrame{DeviceIndex: 0, ArrivalTime: secondsToTicks(0.01), Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.45, Y: 0.45}, Tag: TagTouching},
	}}
	_, err = e.Ingest(drift, secondsToTicks(0.01))
	require.NoError(t, err)

	release := RawFrame{DeviceIndex: 0, ArrivalTime: secondsToTicks(0.02), Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.45, Y: 0.45}, Tag: TagLeaving},
	}}
	evs, err := e.Ingest(release, secondsToTicks(0.02))
	require.NoError(t, err)
	assert.Empty(t, evs, "a large drift before release should cancel the tap")
}

func TestEngine_ContinuousKeyHoldStartsRepeat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitsPerMM = 100
	cfg.HoldMinSeconds = 0.05
	e := NewEngine(cfg, nil, nil, nil, nil)
	e.SetBindings(SideLeft, 0, []Binding{
		{
			IsGrid: true,
			Grid:   GridPos{Side: SideLeft, Row: 0, Col: 0},
			Side:   SideLeft,
			Rect:   Rect{X: 0, Y: 0, Width: 1, Height: 1},
			Action: Action{Kind: ActionKey, KeyCode: 79, IsContinuous: true},
		},
	}, nil, 1, 1)

	land := RawFrame{DeviceIndex: 0, ArrivalTime: 0, Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.5, Y: 0.5}, Tag: TagStarting},
	}}
	_, err := e.Ingest(land, 0)
	require.NoError(t, err)

	hold := RawFrame{DeviceIndex: 0, ArrivalTime: secondsToTicks(0.1), Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.5, Y: 0.5}, Tag: TagTouching},
	}}
	evs, err := e.Ingest(hold, secondsToTicks(0.1))
	require.NoError(t, err)

	var sawTap bool
	for _, ev := range evs {
		if ev.Kind == KindKeyTap && ev.VirtualKey == 79 {
			sawTap = true
		}
	}
	assert.True(t, sawTap, "reaching HoldMinSeconds on a continuous key should fire an initial tap")
	assert.False(t, e.repeats.isEmpty(), "reaching HoldMinSeconds on a continuous key should register an auto-repeat")
}

func TestEngine_ResetReleasesHeldModifiersAndClearsContacts(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil, nil)
	e.SetBindings(SideLeft, 0, []Binding{
		{
			IsGrid: true,
			Rect:   Rect{X: 0, Y: 0, Width: 1, Height: 1},
			Side:   SideLeft,
			Action: Action{Kind: ActionModifier, Modifier: ModShift},
		},
	}, nil, 1, 1)

	land := RawFrame{DeviceIndex: 0, ArrivalTime: 0, Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.5, Y: 0.5}, Tag: TagStarting},
	}}
	_, err := e.Ingest(land, 0)
	require.NoError(t, err)

	evs := e.Reset(false, secondsToTicks(0.01))
	var sawModifierUp bool
	for _, ev := range evs {
		if ev.Kind == KindModifierUp {
			sawModifierUp = true
		}
	}
	assert.True(t, sawModifierUp, "Reset should release any modifier held at the time of reset")
}

func TestEngine_FingerprintSumIsDeterministicAcrossIdenticalRuns(t *testing.T) {
	frame := RawFrame{DeviceIndex: 0, ArrivalTime: 0, Contacts: []RawContact{
		{ID: 1, Position: Point{X: 0.2, Y: 0.2}, Tag: TagStarting},
	}}

	e1 := keyGridEngine(t)
	_, err := e1.Ingest(frame, 0)
	require.NoError(t, err)

	e2 := keyGridEngine(t)
	_, err = e2.Ingest(frame, 0)
	require.NoError(t, err)

	assert.Equal(t, e1.FingerprintSum(), e2.FingerprintSum())
}
