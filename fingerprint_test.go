package glasstokey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleFrame(seq uint32, x, y float64) RawFrame {
	return RawFrame{
		DeviceIndex: 0,
		ArrivalTime: Ticks(seq) * 1000,
		Contacts: []RawContact{
			{ID: seq, Position: Point{X: x, Y: y}, Tag: TagTouching},
		},
	}
}

func TestFingerprintState_SameInputsProduceSameDigest(t *testing.T) {
	f1 := newFingerprintState()
	f2 := newFingerprintState()

	frame := sampleFrame(1, 0.5, 0.5)
	events := []DispatchEvent{{Kind: KindKeyTap, VirtualKey: 4, Label: "A"}}

	f1.mix(frame, nil, events)
	f2.mix(frame, nil, events)

	assert.Equal(t, f1.Sum(), f2.Sum())
	assert.Equal(t, uint64(1), f1.FramesMixed())
}

func TestFingerprintState_DifferentContactPositionsDiverge(t *testing.T) {
	f1 := newFingerprintState()
	f2 := newFingerprintState()

	f1.mix(sampleFrame(1, 0.5, 0.5), nil, nil)
	f2.mix(sampleFrame(1, 0.6, 0.5), nil, nil)

	assert.NotEqual(t, f1.Sum(), f2.Sum())
}

func TestFingerprintState_FrameOrdinalAffectsDigest(t *testing.T) {
	f1 := newFingerprintState()
	f2 := newFingerprintState()

	frame := sampleFrame(1, 0.5, 0.5)
	f1.mix(frame, nil, nil)
	f1.mix(frame, nil, nil)

	f2.mix(frame, nil, nil)

	assert.NotEqual(t, f1.Sum(), f2.Sum(), "mixing the same frame twice should not collapse to the single-mix digest")
}

func TestFingerprintState_TransitionAffectsDigest(t *testing.T) {
	f1 := newFingerprintState()
	f2 := newFingerprintState()

	frame := sampleFrame(1, 0.5, 0.5)
	f1.mix(frame, nil, nil)
	f2.mix(frame, &IntentTransition{Previous: IntentIdle, Current: IntentKeyCandidate, Reason: "landed"}, nil)

	assert.NotEqual(t, f1.Sum(), f2.Sum())
}

func TestFingerprintState_EventOrderMattersForDigest(t *testing.T) {
	f1 := newFingerprintState()
	f2 := newFingerprintState()

	a := DispatchEvent{Kind: KindKeyTap, VirtualKey: 4, Label: "A"}
	b := DispatchEvent{Kind: KindKeyTap, VirtualKey: 5, Label: "B"}

	f1.mix(sampleFrame(1, 0.1, 0.1), nil, []DispatchEvent{a, b})
	f2.mix(sampleFrame(1, 0.1, 0.1), nil, []DispatchEvent{b, a})

	assert.NotEqual(t, f1.Sum(), f2.Sum())
}
