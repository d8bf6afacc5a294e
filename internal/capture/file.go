package capture

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/cellwatch/internal/diag"
)

// File format constants.
const (
	Magic         = "CWCAP\x00"
	FormatVersion = 1
	Extension     = ".cwcap"

	recordFrame byte = 1
	recordEnd   byte = 2

	recordHeaderSize = 5  // kind + length
	frameHeaderSize  = 17 // seq + unix nanos + fault
	endBodySize      = 9  // frame count + status
	maxMetadataSize  = 64 << 10
	maxRecordSize    = diag.MaxFrameSize + diag.ChecksumSize + frameHeaderSize
)

var (
	ErrBadMagic           = errors.New("not a cellwatch capture file")
	ErrUnsupportedVersion = errors.New("unsupported capture format version")
	ErrCorrupt            = errors.New("corrupt capture record")
	ErrClosed             = errors.New("capture writer closed")
)

// EndStatus records how a capture stopped.
type EndStatus uint8

const (
	EndNormal EndStatus = iota + 1
	EndDeviceError
	EndStorageError
)

// Status maps the end record to the session health status.
func (s EndStatus) Status() Status {
	switch s {
	case EndDeviceError:
		return StatusStoppedDeviceError
	case EndStorageError:
		return StatusStoppedStorageError
	default:
		return StatusStoppedNormally
	}
}

// Metadata identifies a capture session. It is stored as JSON after the
// file header.
type Metadata struct {
	SessionID   string    `json:"session_id"`
	Start       time.Time `json:"start"`
	Device      string    `json:"device"`
	ToolVersion string    `json:"tool_version"`
}

// End is the trailer of a cleanly finalized capture.
type End struct {
	Frames uint64
	Status EndStatus
}

// Writer appends frames to a capture file. Every record is flushed as it
// is written.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	count  uint64
	closed bool
}

// Create creates the capture file at path and writes its header.
func Create(path string, meta Metadata) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create capture %s: %w", path, err)
	}
	w, err := NewWriter(f, meta)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// NewWriter writes the header to w. If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer, meta Metadata) (*Writer, error) {
	js, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode capture metadata: %w", err)
	}

	cw := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}

	hdr := make([]byte, 0, len(Magic)+6+len(js))
	hdr = append(hdr, Magic...)
	hdr = binary.LittleEndian.AppendUint16(hdr, FormatVersion)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(len(js)))
	hdr = append(hdr, js...)
	if err := cw.emit(hdr); err != nil {
		return nil, err
	}
	return cw, nil
}

// WriteFrame appends one frame record.
func (w *Writer) WriteFrame(f diag.RawFrame) error {
	if w.closed {
		return ErrClosed
	}
	body := make([]byte, 0, frameHeaderSize+len(f.Payload))
	body = binary.LittleEndian.AppendUint64(body, f.Seq)
	body = binary.LittleEndian.AppendUint64(body, uint64(encodeTime(f.Timestamp)))
	body = append(body, byte(f.Fault))
	body = append(body, f.Payload...)
	if err := w.record(recordFrame, body); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of frames written.
func (w *Writer) Count() uint64 { return w.count }

// Close writes the end record and closes the underlying file.
func (w *Writer) Close(status EndStatus) error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	body := binary.LittleEndian.AppendUint64(make([]byte, 0, endBodySize), w.count)
	body = append(body, byte(status))
	err := w.record(recordEnd, body)
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close capture: %w", cerr)
		}
	}
	return err
}

func (w *Writer) record(kind byte, body []byte) error {
	hdr := [recordHeaderSize]byte{kind}
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(body)))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write capture record: %w", err)
	}
	return w.emit(body)
}

func (w *Writer) emit(b []byte) error {
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("write capture: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush capture: %w", err)
	}
	return nil
}

// Zero timestamps are stored as 0 so they survive the round trip.
func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Reader reads frames back from a capture. It implements diag.Source.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	meta   Metadata
	end    *End
	last   uint64
	done   bool
}

// NewReader validates the header of r and reads the metadata.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var hdr [len(Magic) + 6]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if string(hdr[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(hdr[len(Magic):]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	n := binary.LittleEndian.Uint32(hdr[len(Magic)+2:])
	if n > maxMetadataSize {
		return nil, fmt.Errorf("%w: metadata length %d", ErrCorrupt, n)
	}

	js := make([]byte, n)
	if _, err := io.ReadFull(br, js); err != nil {
		return nil, fmt.Errorf("read capture metadata: %w", err)
	}
	cr := &Reader{r: br}
	if err := json.Unmarshal(js, &cr.meta); err != nil {
		return nil, fmt.Errorf("decode capture metadata: %w", err)
	}
	if c, ok := r.(io.Closer); ok {
		cr.closer = c
	}
	return cr, nil
}

// Metadata returns the capture metadata.
func (r *Reader) Metadata() Metadata { return r.meta }

// End returns the end record once Next has reached it.
func (r *Reader) End() (End, bool) {
	if r.end == nil {
		return End{}, false
	}
	return *r.end, true
}

// Next returns the next stored frame. A record cut short by a crash is
// returned once as a FaultTruncated frame, followed by io.EOF.
func (r *Reader) Next() (diag.RawFrame, error) {
	if r.done {
		return diag.RawFrame{}, io.EOF
	}

	var hdr [recordHeaderSize]byte
	n, err := io.ReadFull(r.r, hdr[:])
	if errors.Is(err, io.EOF) {
		r.done = true
		return diag.RawFrame{}, io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return r.truncated(hdr[:n]), nil
	}
	if err != nil {
		return diag.RawFrame{}, fmt.Errorf("read capture record: %w", err)
	}

	kind := hdr[0]
	size := binary.LittleEndian.Uint32(hdr[1:])
	if size > maxRecordSize {
		r.done = true
		return diag.RawFrame{}, fmt.Errorf("%w: record length %d", ErrCorrupt, size)
	}

	body := make([]byte, size)
	n, err = io.ReadFull(r.r, body)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return r.truncated(body[:n]), nil
	}
	if err != nil {
		return diag.RawFrame{}, fmt.Errorf("read capture record: %w", err)
	}

	switch kind {
	case recordFrame:
		if len(body) < frameHeaderSize {
			r.done = true
			return diag.RawFrame{}, fmt.Errorf("%w: frame record of %d bytes", ErrCorrupt, len(body))
		}
		f := diag.RawFrame{
			Seq:       binary.LittleEndian.Uint64(body[0:8]),
			Timestamp: decodeTime(int64(binary.LittleEndian.Uint64(body[8:16]))),
			Fault:     diag.Fault(body[16]),
			Payload:   body[frameHeaderSize:],
		}
		r.last = f.Seq
		return f, nil
	case recordEnd:
		r.done = true
		if len(body) >= endBodySize {
			r.end = &End{
				Frames: binary.LittleEndian.Uint64(body[0:8]),
				Status: EndStatus(body[8]),
			}
		}
		return diag.RawFrame{}, io.EOF
	default:
		r.done = true
		return diag.RawFrame{}, fmt.Errorf("%w: unknown record kind %d", ErrCorrupt, kind)
	}
}

func (r *Reader) truncated(partial []byte) diag.RawFrame {
	r.done = true
	r.last++
	return diag.RawFrame{Seq: r.last, Payload: partial, Fault: diag.FaultTruncated}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// File is a capture on disk. Each Open starts a fresh pass.
type File struct {
	Path string
}

// Open opens the capture and positions it at the first frame.
func (f File) Open() (diag.Source, error) {
	return f.OpenReader()
}

// OpenReader is Open with the concrete reader type.
func (f File) OpenReader() (*Reader, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	r, err := NewReader(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("open capture %s: %w", f.Path, err)
	}
	return r, nil
}

// ReadMetadata reads only the metadata of the capture at path.
func ReadMetadata(path string) (Metadata, error) {
	r, err := File{Path: path}.OpenReader()
	if err != nil {
		return Metadata{}, err
	}
	defer r.Close()
	return r.Metadata(), nil
}
