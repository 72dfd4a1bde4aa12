package glasstokey

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureHeader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := CaptureHeader{Version: 3, TickFrequency: 1_000_000_000}
	require.NoError(t, WriteCaptureHeader(&buf, want))

	got, err := ReadCaptureHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCaptureHeader_BadMagicErrors(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NOTATPCAP")
	buf.Write(make([]byte, 11))

	_, err := ReadCaptureHeader(&buf)
	require.Error(t, err)
	var ce *CaptureError
	assert.True(t, errors.As(err, &ce))
}

func TestRecordHeaderV3_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := RecordHeader{
		PayloadLength: 64, ArrivalTicks: 12345, DeviceIndex: 1,
		DeviceHash: 0xABCD, Vendor: 0x05AC, Product: 0x0262,
		UsagePage: 0x0D, Usage: 0x04, SideHint: 2, DecoderProfile: 1,
	}
	require.NoError(t, writeRecordHeader(&buf, 3, want))

	got, err := readRecordHeader(&buf, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, SideRight, got.Side())
}

func TestRecordHeader_NegativePayloadLengthErrors(t *testing.T) {
	var buf bytes.Buffer
	bad := RecordHeader{PayloadLength: -1}
	require.NoError(t, writeRecordHeader(&buf, 2, bad))

	_, err := readRecordHeader(&buf, 2, 20)
	require.Error(t, err)
	var ce *CaptureError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(20), ce.Offset)
}

func TestContactRecordV3_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := ContactRecordV3{ID: 7, X: 0.25, Y: 0.75, State: 1}
	require.NoError(t, writeContactRecordV3(&buf, want))

	got, err := readContactRecordV3(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.InDelta(t, want.X, got.X, 1e-6)
	assert.InDelta(t, want.Y, got.Y, 1e-6)
	assert.Equal(t, want.State, got.State)
}

func TestRFV3Payload_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := RFV3Frame{
		Sequence: 42, TimestampSeconds: 1.5, DeviceID: 9,
		Contacts: []ContactRecordV3{{ID: 1, X: 0.1, Y: 0.2, State: 1}, {ID: 2, X: 0.3, Y: 0.4, State: 0}},
	}
	require.NoError(t, writeRFV3Payload(&buf, want))

	got, err := readRFV3Payload(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, want.Sequence, got.Sequence)
	assert.Equal(t, want.DeviceID, got.DeviceID)
	assert.InDelta(t, want.TimestampSeconds, got.TimestampSeconds, 1e-9)
	require.Len(t, got.Contacts, 2)
	assert.Equal(t, int32(1), got.Contacts[0].ID)
}

func TestRFV3Frame_ToRawFrame_ClampsUnknownState(t *testing.T) {
	f := RFV3Frame{
		TimestampSeconds: 0,
		Contacts:         []ContactRecordV3{{ID: 1, State: 250}}, // out-of-range lifecycle tag
	}
	raw := f.ToRawFrame(0, 1_000_000_000)
	require.Len(t, raw.Contacts, 1)
	assert.Equal(t, TagTouching, raw.Contacts[0].Tag, "unknown state byte should clamp to TagTouching, not error")
}

// buildCaptureFile assembles a minimal valid ATPCAP v3 stream with one meta
// record and one RFV3 frame record, for CaptureReader.Next round-trip tests.
func buildCaptureFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteCaptureHeader(&buf, CaptureHeader{Version: 3, TickFrequency: 1_000_000_000}))

	metaPayload, err := json.Marshal(MetaRecord{Type: "meta", Schema: "v1", FramesCaptured: 1})
	require.NoError(t, err)
	require.NoError(t, writeRecordHeader(&buf, 3, RecordHeader{PayloadLength: int32(len(metaPayload))}))
	buf.Write(metaPayload)

	var framePayload bytes.Buffer
	require.NoError(t, writeRFV3Payload(&framePayload, RFV3Frame{
		Sequence: 1, TimestampSeconds: 0.01, DeviceID: 1,
		Contacts: []ContactRecordV3{{ID: 1, X: 0.5, Y: 0.5, State: 1}},
	}))
	require.NoError(t, writeRecordHeader(&buf, 3, RecordHeader{
		PayloadLength: int32(framePayload.Len()), DeviceIndex: 0,
	}))
	buf.Write(framePayload.Bytes())

	return buf.Bytes()
}

func TestCaptureReader_DecodesMetaThenFrameThenEOF(t *testing.T) {
	cr, err := OpenCaptureReader(bytes.NewReader(buildCaptureFile(t)))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cr.Header().Version)

	rec1, err := cr.Next()
	require.NoError(t, err)
	require.NotNil(t, rec1.Meta)
	assert.Equal(t, "meta", rec1.Meta.Type)

	rec2, err := cr.Next()
	require.NoError(t, err)
	require.NotNil(t, rec2.Frame)
	assert.Len(t, rec2.Frame.Contacts, 1)
	assert.Equal(t, uint32(1), rec2.Frame.Contacts[0].ID)

	_, err = cr.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestCaptureReader_TruncatedRecordYieldsCaptureError(t *testing.T) {
	full := buildCaptureFile(t)
	truncated := full[:len(full)-5] // chop off the tail of the last record's payload

	cr, err := OpenCaptureReader(bytes.NewReader(truncated))
	require.NoError(t, err)

	_, err = cr.Next() // meta record, still intact
	require.NoError(t, err)

	_, err = cr.Next() // frame record, now truncated
	require.Error(t, err)
	var ce *CaptureError
	assert.True(t, errors.As(err, &ce), "truncated record should surface as a CaptureError with an offset")
}

func TestCaptureReader_RawPassthroughForUnrecognizedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCaptureHeader(&buf, CaptureHeader{Version: 2, TickFrequency: 1_000_000_000}))
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	require.NoError(t, writeRecordHeader(&buf, 2, RecordHeader{PayloadLength: int32(len(payload))}))
	buf.Write(payload)

	cr, err := OpenCaptureReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	rec, err := cr.Next()
	require.NoError(t, err)
	assert.Nil(t, rec.Frame)
	assert.Nil(t, rec.Meta)
	assert.Equal(t, payload, rec.RawPayload)
}

func init() {
	// sanity: rfv3Magic constant matches the little-endian "RFV3" encoding
	// used when hand-assembling test payloads above.
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], rfv3Magic)
	if string(b[:]) != "RFV3" {
		panic("rfv3Magic does not decode to RFV3")
	}
}
