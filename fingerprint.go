package glasstokey

import "math"

// fingerprintState is C10: a rolling hash over every decoded frame, intent
// transition, and dispatch event the engine has processed, used to detect
// the instant a replay diverges from a recorded-good run. It deliberately
// does not use hash/fnv: the mix order here interleaves heterogeneous
// fields (floats, tags, enums) per spec, which hash.Hash64's byte-stream
// Write interface doesn't fit cleanly, so the FNV-1a mixing rule is
// reimplemented directly over each field instead of marshaling to bytes.
type fingerprintState struct {
	digest uint64
	frames uint64
}

const (
	fnvOffsetBasis uint64 = 0xCBF29CE484222325
	fnvPrime       uint64 = 0x100000001B3
)

func newFingerprintState() *fingerprintState {
	return &fingerprintState{digest: fnvOffsetBasis}
}

func (f *fingerprintState) mixUint64(v uint64) {
	f.digest ^= v
	f.digest *= fnvPrime
}

func (f *fingerprintState) mixFloat(v float64) {
	f.mixUint64(math.Float64bits(v))
}

func (f *fingerprintState) mixString(s string) {
	for i := 0; i < len(s); i++ {
		f.digest ^= uint64(s[i])
		f.digest *= fnvPrime
	}
}

// mix folds one processed frame's inputs, its classifier transition (if
// any), and everything it dispatched into the running digest, in the field
// order spec.md §6 fixes: (device tag, report id, scan time, contact
// count, each contact's (flags, id, x, y)) so two identical replays always
// converge on the same digest. There is no HID "report id" in a decoded
// RawFrame, so the frame's own ordinal position in the stream (frames
// mixed so far) stands in for it.
func (f *fingerprintState) mix(frame RawFrame, transition *IntentTransition, events []DispatchEvent) {
	f.mixUint64(uint64(frame.DeviceIndex))
	f.mixUint64(f.frames)
	f.mixUint64(uint64(frame.ArrivalTime))
	f.mixUint64(uint64(len(frame.Contacts)))
	for _, rc := range frame.Contacts {
		f.mixUint64(uint64(rc.Tag))
		f.mixUint64(uint64(rc.ID))
		f.mixFloat(rc.Position.X)
		f.mixFloat(rc.Position.Y)
	}
	f.frames++

	if transition != nil {
		f.mixUint64(uint64(transition.Previous))
		f.mixUint64(uint64(transition.Current))
		f.mixString(transition.Reason)
	}

	for _, ev := range events {
		f.mixUint64(uint64(ev.Kind))
		f.mixUint64(uint64(ev.VirtualKey))
		f.mixUint64(uint64(ev.MouseButton))
		f.mixUint64(uint64(ev.ClickCount))
		f.mixUint64(uint64(ev.Side))
		f.mixString(ev.Label)
	}
}

// Sum returns the current rolling digest.
func (f *fingerprintState) Sum() uint64 { return f.digest }

// FramesMixed reports how many frames have been folded in, for sanity
// checks that a replay processed the number of frames it claims to.
func (f *fingerprintState) FramesMixed() uint64 { return f.frames }
