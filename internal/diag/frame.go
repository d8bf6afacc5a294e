package diag

import (
	"fmt"
	"time"
)

// HDLC-style transport constants used by the diagnostic interface
const (
	FrameDelimiter = 0x7e
	EscapeByte     = 0x7d
	EscapeMask     = 0x20
	ChecksumSize   = 2
	MaxFrameSize   = 64 * 1024 // largest de-escaped frame accepted before forcing a resync
)

// Fault classifies why a frame could not be delivered intact.
type Fault uint8

const (
	FaultNone Fault = iota
	FaultChecksum
	FaultTruncated
	FaultOversize
	FaultBadEscape
	FaultTooShort
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultChecksum:
		return "checksum_mismatch"
	case FaultTruncated:
		return "truncated"
	case FaultOversize:
		return "oversize"
	case FaultBadEscape:
		return "bad_escape"
	case FaultTooShort:
		return "too_short"
	default:
		return fmt.Sprintf("fault(%d)", uint8(f))
	}
}

// RawFrame is a single de-framed record. Payload excludes the checksum
// trailer when the frame is intact; for faulted frames it holds whatever
// de-escaped bytes were recovered.
type RawFrame struct {
	Seq       uint64
	Timestamp time.Time
	Payload   []byte
	Fault     Fault
}

// OK reports whether the frame passed transport validation.
func (f RawFrame) OK() bool { return f.Fault == FaultNone }

func (f RawFrame) String() string {
	if f.OK() {
		return fmt.Sprintf("RawFrame{seq=%d, len=%d}", f.Seq, len(f.Payload))
	}
	return fmt.Sprintf("RawFrame{seq=%d, len=%d, fault=%s}", f.Seq, len(f.Payload), f.Fault)
}

// Clock supplies capture timestamps. Replays of raw dumps use a zero clock
// so that reports stay reproducible.
type Clock func() time.Time

// ZeroClock always returns the zero time.
func ZeroClock() time.Time { return time.Time{} }

// Decoder splits a byte stream into frames. It is not safe for concurrent
// use; each capture owns one.
type Decoder struct {
	residual []byte
	escaped  bool
	oversize bool
	seq      uint64
	clock    Clock
}

// NewDecoder creates a decoder stamping frames with clock. A nil clock
// means ZeroClock. Stamps are stored in UTC without a monotonic reading, as
// they are read back from a capture file.
func NewDecoder(clock Clock) *Decoder {
	if clock == nil {
		clock = ZeroClock
	}
	return &Decoder{clock: clock}
}

// Feed consumes the next chunk of the stream and returns every frame it
// completes. Bytes after the last delimiter are kept for the next call.
func (d *Decoder) Feed(chunk []byte) []RawFrame {
	var frames []RawFrame
	for _, b := range chunk {
		if b == FrameDelimiter {
			if f, ok := d.complete(); ok {
				frames = append(frames, f)
			}
			continue
		}

		if d.oversize {
			continue
		}

		if d.escaped {
			d.escaped = false
			b ^= EscapeMask
		} else if b == EscapeByte {
			d.escaped = true
			continue
		}

		if len(d.residual) >= MaxFrameSize+ChecksumSize {
			d.oversize = true
			continue
		}
		d.residual = append(d.residual, b)
	}
	return frames
}

// Finish flushes the residual buffer at end of stream. A non-empty residual
// is reported as a truncated frame.
func (d *Decoder) Finish() (RawFrame, bool) {
	if len(d.residual) == 0 && !d.escaped && !d.oversize {
		return RawFrame{}, false
	}
	payload := d.take()
	d.reset()
	return d.emit(payload, FaultTruncated), true
}

// Pending returns the number of buffered bytes awaiting a delimiter.
func (d *Decoder) Pending() int { return len(d.residual) }

func (d *Decoder) complete() (RawFrame, bool) {
	defer d.reset()

	if d.oversize {
		return d.emit(d.take(), FaultOversize), true
	}
	if d.escaped {
		return d.emit(d.take(), FaultBadEscape), true
	}
	if len(d.residual) == 0 {
		// back-to-back delimiters
		return RawFrame{}, false
	}
	if len(d.residual) <= ChecksumSize {
		return d.emit(d.take(), FaultTooShort), true
	}

	body := d.residual[:len(d.residual)-ChecksumSize]
	trailer := d.residual[len(d.residual)-ChecksumSize:]
	want := uint16(trailer[0]) | uint16(trailer[1])<<8
	if Checksum(body) != want {
		return d.emit(d.take(), FaultChecksum), true
	}

	payload := make([]byte, len(body))
	copy(payload, body)
	return d.emit(payload, FaultNone), true
}

func (d *Decoder) take() []byte {
	out := make([]byte, len(d.residual))
	copy(out, d.residual)
	return out
}

func (d *Decoder) reset() {
	d.residual = d.residual[:0]
	d.escaped = false
	d.oversize = false
}

func (d *Decoder) emit(payload []byte, fault Fault) RawFrame {
	d.seq++
	return RawFrame{
		Seq:       d.seq,
		Timestamp: d.clock().UTC().Round(0),
		Payload:   payload,
		Fault:     fault,
	}
}

// Encode frames payload for the wire: checksum appended, reserved bytes
// escaped, delimiter terminated.
func Encode(payload []byte) []byte {
	crc := Checksum(payload)
	raw := append(append([]byte{}, payload...), byte(crc), byte(crc>>8))

	out := make([]byte, 0, len(raw)+len(raw)/8+1)
	for _, b := range raw {
		if b == FrameDelimiter || b == EscapeByte {
			out = append(out, EscapeByte, b^EscapeMask)
			continue
		}
		out = append(out, b)
	}
	return append(out, FrameDelimiter)
}
