package diag

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultReadSize is the chunk size used when pulling from a byte stream.
const DefaultReadSize = 4096

// Source is an ordered, lazily produced sequence of frames. Next returns
// io.EOF once the sequence is exhausted.
type Source interface {
	Next() (RawFrame, error)
	Close() error
}

// Replayable is a finite source that can be iterated again from the start.
type Replayable interface {
	Open() (Source, error)
}

// Reader turns an io.Reader into a frame Source.
type Reader struct {
	r       io.Reader
	closer  io.Closer
	dec     *Decoder
	buf     []byte
	queue   []RawFrame
	readErr error
	done    bool
}

// NewReader wraps r. If r also implements io.Closer, Close releases it.
func NewReader(r io.Reader, clock Clock) *Reader {
	rd := &Reader{
		r:   r,
		dec: NewDecoder(clock),
		buf: make([]byte, DefaultReadSize),
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Next returns the next frame. Faulted frames are returned as values with a
// nil error; only the underlying reader's failure or io.EOF is an error.
func (r *Reader) Next() (RawFrame, error) {
	for len(r.queue) == 0 {
		if r.done {
			if r.readErr != nil {
				return RawFrame{}, r.readErr
			}
			return RawFrame{}, io.EOF
		}
		r.fill()
	}
	f := r.queue[0]
	r.queue = r.queue[1:]
	return f, nil
}

func (r *Reader) fill() {
	n, err := r.r.Read(r.buf)
	if n > 0 {
		r.queue = append(r.queue, r.dec.Feed(r.buf[:n])...)
	}
	if err == nil {
		return
	}
	if f, ok := r.dec.Finish(); ok {
		r.queue = append(r.queue, f)
	}
	r.done = true
	if !errors.Is(err, io.EOF) {
		r.readErr = fmt.Errorf("read diagnostic stream: %w", err)
	}
}

// Close releases the underlying reader when it is closable.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// File is a raw diagnostic dump on disk.
type File struct {
	Path string
}

// Open starts a fresh pass over the dump.
func (f File) Open() (Source, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open raw dump: %w", err)
	}
	return NewReader(fh, ZeroClock), nil
}
