package glasstokey

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// ATPCAP is the binary replay capture format used only by replay tests and
// the CLI's --replay mode (spec.md §6). Struct layouts below mirror the
// format byte-for-byte via encoding/binary, the same struct-to-wire
// mirroring style the mricos-demos MultitouchSupport capture example uses
// for its cgo MTTouch struct, adapted from a C struct overlay to an
// explicit little-endian binary.Read/Write codec since there is no C ABI
// here to piggyback on.
const (
	captureMagic    = "ATPCAP01"
	rfv3Magic       = 0x33564652 // "RFV3" read little-endian
	captureHeaderSize = 20
	recordHeaderV2Size = 32
	recordHeaderV3Size = 34
	contactRecordV3Size = 40
)

// CaptureHeader is the 20-byte file header.
type CaptureHeader struct {
	Version       uint32
	TickFrequency int64
}

// CaptureError wraps a malformed-record failure with the byte offset it was
// found at (spec.md §7a: "malformed capture record -> fatal for replay,
// surfaced as a single structured error with byte offset").
type CaptureError struct {
	Offset int64
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("glasstokey: capture error at offset %d: %v", e.Offset, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// ReadCaptureHeader reads and validates the 20-byte ATPCAP header.
func ReadCaptureHeader(r io.Reader) (CaptureHeader, error) {
	buf := make([]byte, captureHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return CaptureHeader{}, &CaptureError{Offset: 0, Err: err}
	}
	if string(buf[:8]) != captureMagic {
		return CaptureHeader{}, &CaptureError{Offset: 0, Err: fmt.Errorf("bad magic %q", buf[:8])}
	}
	h := CaptureHeader{
		Version:       binary.LittleEndian.Uint32(buf[8:12]),
		TickFrequency: int64(binary.LittleEndian.Uint64(buf[12:20])),
	}
	if h.Version != 2 && h.Version != 3 {
		return h, &CaptureError{Offset: 8, Err: fmt.Errorf("unsupported capture version %d", h.Version)}
	}
	return h, nil
}

// WriteCaptureHeader writes the 20-byte ATPCAP header.
func WriteCaptureHeader(w io.Writer, h CaptureHeader) error {
	buf := make([]byte, captureHeaderSize)
	copy(buf[:8], captureMagic)
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(h.TickFrequency))
	_, err := w.Write(buf)
	return err
}

// RecordHeader is the per-record header; V2 is the first 32 bytes, V3 adds
// the trailing 2 bytes (SideHint, DecoderProfile).
type RecordHeader struct {
	PayloadLength  int32
	ArrivalTicks   Ticks
	DeviceIndex    int32
	DeviceHash     uint32
	Vendor         uint32
	Product        uint32
	UsagePage      uint16
	Usage          uint16
	SideHint       uint8 // 0=unknown, 1=left, 2=right (V3 only)
	DecoderProfile uint8 // V3 only
}

// Side maps the V3 SideHint byte to a Side, defaulting to SideLeft when
// unknown (0) — spec.md doesn't define three-valued Side, so "unknown"
// falls back to the engine's left-device default rather than erroring.
func (h RecordHeader) Side() Side {
	if h.SideHint == 2 {
		return SideRight
	}
	return SideLeft
}

func readRecordHeader(r io.Reader, version uint32, offset int64) (RecordHeader, error) {
	size := recordHeaderV2Size
	if version == 3 {
		size = recordHeaderV3Size
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return RecordHeader{}, &CaptureError{Offset: offset, Err: err}
	}
	h := RecordHeader{
		PayloadLength: int32(binary.LittleEndian.Uint32(buf[0:4])),
		ArrivalTicks:  Ticks(int64(binary.LittleEndian.Uint64(buf[4:12]))),
		DeviceIndex:   int32(binary.LittleEndian.Uint32(buf[12:16])),
		DeviceHash:    binary.LittleEndian.Uint32(buf[16:20]),
		Vendor:        binary.LittleEndian.Uint32(buf[20:24]),
		Product:       binary.LittleEndian.Uint32(buf[24:28]),
		UsagePage:     binary.LittleEndian.Uint16(buf[28:30]),
		Usage:         binary.LittleEndian.Uint16(buf[30:32]),
	}
	if version == 3 {
		h.SideHint = buf[32]
		h.DecoderProfile = buf[33]
	}
	if h.PayloadLength < 0 {
		return h, &CaptureError{Offset: offset, Err: fmt.Errorf("negative payload length %d", h.PayloadLength)}
	}
	return h, nil
}

func writeRecordHeader(w io.Writer, version uint32, h RecordHeader) error {
	size := recordHeaderV2Size
	if version == 3 {
		size = recordHeaderV3Size
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.PayloadLength))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(int64(h.ArrivalTicks)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.DeviceIndex))
	binary.LittleEndian.PutUint32(buf[16:20], h.DeviceHash)
	binary.LittleEndian.PutUint32(buf[20:24], h.Vendor)
	binary.LittleEndian.PutUint32(buf[24:28], h.Product)
	binary.LittleEndian.PutUint16(buf[28:30], h.UsagePage)
	binary.LittleEndian.PutUint16(buf[30:32], h.Usage)
	if version == 3 {
		buf[32] = h.SideHint
		buf[33] = h.DecoderProfile
	}
	_, err := w.Write(buf)
	return err
}

// ContactRecordV3 is one 40-byte contact entry within an RFV3 payload.
type ContactRecordV3 struct {
	ID       int32
	X, Y     float32
	Reserved [6]float32
	State    uint8
}

func readContactRecordV3(r io.Reader, offset int64) (ContactRecordV3, error) {
	buf := make([]byte, contactRecordV3Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ContactRecordV3{}, &CaptureError{Offset: offset, Err: err}
	}
	var c ContactRecordV3
	c.ID = int32(binary.LittleEndian.Uint32(buf[0:4]))
	c.X = math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	c.Y = math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))
	for i := 0; i < 6; i++ {
		c.Reserved[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[12+i*4 : 16+i*4]))
	}
	c.State = buf[36]
	return c, nil
}

func writeContactRecordV3(w io.Writer, c ContactRecordV3) error {
	buf := make([]byte, contactRecordV3Size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.ID))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(c.X))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(c.Y))
	for i := 0; i < 6; i++ {
		binary.LittleEndian.PutUint32(buf[12+i*4:16+i*4], math.Float32bits(c.Reserved[i]))
	}
	buf[36] = c.State
	_, err := w.Write(buf)
	return err
}

// RFV3Frame is one decoded engine-level frame payload.
type RFV3Frame struct {
	Sequence         uint64
	TimestampSeconds float64
	DeviceID         uint64
	Contacts         []ContactRecordV3
}

func readRFV3Payload(r io.Reader, offset int64) (RFV3Frame, error) {
	head := make([]byte, 4+8+8+8+2+2)
	if _, err := io.ReadFull(r, head); err != nil {
		return RFV3Frame{}, &CaptureError{Offset: offset, Err: err}
	}
	magic := binary.LittleEndian.Uint32(head[0:4])
	if magic != rfv3Magic {
		return RFV3Frame{}, &CaptureError{Offset: offset, Err: fmt.Errorf("bad RFV3 magic 0x%x", magic)}
	}
	f := RFV3Frame{
		Sequence:         binary.LittleEndian.Uint64(head[4:12]),
		TimestampSeconds: math.Float64frombits(binary.LittleEndian.Uint64(head[12:20])),
		DeviceID:         binary.LittleEndian.Uint64(head[20:28]),
	}
	count := binary.LittleEndian.Uint16(head[28:30])
	f.Contacts = make([]ContactRecordV3, count)
	pos := offset + int64(len(head))
	for i := range f.Contacts {
		c, err := readContactRecordV3(r, pos)
		if err != nil {
			return RFV3Frame{}, err
		}
		f.Contacts[i] = c
		pos += contactRecordV3Size
	}
	return f, nil
}

func writeRFV3Payload(w io.Writer, f RFV3Frame) error {
	head := make([]byte, 4+8+8+8+2+2)
	binary.LittleEndian.PutUint32(head[0:4], rfv3Magic)
	binary.LittleEndian.PutUint64(head[4:12], f.Sequence)
	binary.LittleEndian.PutUint64(head[12:20], math.Float64bits(f.TimestampSeconds))
	binary.LittleEndian.PutUint64(head[20:28], f.DeviceID)
	binary.LittleEndian.PutUint16(head[28:30], uint16(len(f.Contacts)))
	if _, err := w.Write(head); err != nil {
		return err
	}
	for _, c := range f.Contacts {
		if err := writeContactRecordV3(w, c); err != nil {
			return err
		}
	}
	return nil
}

// MetaRecord is a capture-file meta record: a JSON object describing the
// capture session rather than a frame of touch data.
type MetaRecord struct {
	Type           string `json:"type"`
	Schema         string `json:"schema"`
	CapturedAt     string `json:"capturedAt"`
	Platform       string `json:"platform"`
	Source         string `json:"source"`
	FramesCaptured int    `json:"framesCaptured"`
}

// ToRawFrame converts a decoded RFV3 frame into the engine's RawFrame,
// tolerating unknown contact state bytes by falling back to TagTouching
// rather than failing the whole replay (spec.md §7b). The frame timestamp is
// already in seconds and becomes nanosecond Ticks, the engine's scale, so
// tickFreq does not affect ArrivalTime.
func (f RFV3Frame) ToRawFrame(deviceIndex int, tickFreq int64) RawFrame {
	contacts := make([]RawContact, len(f.Contacts))
	for i, c := range f.Contacts {
		tag := ContactLifecycleTag(c.State)
		if tag > TagNotTouching {
			tag = TagTouching
		}
		contacts[i] = RawContact{
			ID:       uint32(c.ID),
			Position: Point{X: float64(c.X), Y: float64(c.Y)},
			Tag:      tag,
		}
	}
	return RawFrame{
		DeviceIndex: deviceIndex,
		ArrivalTime: secondsToTicks(f.TimestampSeconds),
		Contacts:    contacts,
	}
}

func secondsAtFrequency(seconds float64, tickFreq int64) Ticks {
	if tickFreq <= 0 {
		tickFreq = int64(time1Second)
	}
	return Ticks(seconds * float64(tickFreq))
}

// CaptureRecord is the decoded result of one Next() call: exactly one of
// Frame, Meta, or RawPayload (for an unparsed V2 record) is non-nil/non-empty.
type CaptureRecord struct {
	Header     RecordHeader
	Frame      *RawFrame
	Meta       *MetaRecord
	RawPayload []byte
}

// CaptureReader streams CaptureRecords out of an ATPCAP file.
type CaptureReader struct {
	r      io.Reader
	header CaptureHeader
	offset int64
}

// OpenCaptureReader reads and validates the file header, returning a reader
// positioned at the first record.
func OpenCaptureReader(r io.Reader) (*CaptureReader, error) {
	h, err := ReadCaptureHeader(r)
	if err != nil {
		return nil, err
	}
	return &CaptureReader{r: r, header: h, offset: captureHeaderSize}, nil
}

func (cr *CaptureReader) Header() CaptureHeader { return cr.header }

// Next reads one record, returning io.EOF when the stream is exhausted.
func (cr *CaptureReader) Next() (CaptureRecord, error) {
	recHeader, err := readRecordHeader(cr.r, cr.header.Version, cr.offset)
	if err != nil {
		if isEOF(err) {
			return CaptureRecord{}, io.EOF
		}
		return CaptureRecord{}, err
	}
	headerSize := int64(recordHeaderV2Size)
	if cr.header.Version == 3 {
		headerSize = recordHeaderV3Size
	}
	payloadOffset := cr.offset + headerSize
	cr.offset = payloadOffset

	payload := make([]byte, recHeader.PayloadLength)
	if _, err := io.ReadFull(cr.r, payload); err != nil {
		return CaptureRecord{}, &CaptureError{Offset: cr.offset, Err: err}
	}
	cr.offset += int64(recHeader.PayloadLength)

	rec := CaptureRecord{Header: recHeader}

	switch {
	case len(payload) > 0 && payload[0] == '{':
		var meta MetaRecord
		if err := json.Unmarshal(payload, &meta); err != nil {
			return CaptureRecord{}, &CaptureError{Offset: payloadOffset, Err: err}
		}
		rec.Meta = &meta

	case cr.header.Version == 3 && len(payload) >= 4 && binary.LittleEndian.Uint32(payload[:4]) == rfv3Magic:
		f, err := readRFV3Payload(bytes.NewReader(payload), payloadOffset)
		if err != nil {
			return CaptureRecord{}, err
		}
		rawFrame := f.ToRawFrame(int(recHeader.DeviceIndex), cr.header.TickFrequency)
		rec.Frame = &rawFrame

	default:
		rec.RawPayload = payload
	}

	return rec, nil
}

func isEOF(err error) bool {
	if ce, ok := err.(*CaptureError); ok {
		return ce.Err == io.EOF || ce.Err == io.ErrUnexpectedEOF
	}
	return err == io.EOF
}

