package session

import (
	"iter"

	"github.com/muurk/cellwatch/internal/protocol"
)

// DefaultHistorySize is used when no analyzer asks for a longer lookback.
const DefaultHistorySize = 64

// History is a fixed-capacity ring of recent events, oldest first. Only the
// tracker appends to it.
type History struct {
	buf   []protocol.Event
	start int
	n     int
}

// NewHistory creates a ring holding at most size events.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]protocol.Event, size)}
}

// Cap returns the ring capacity.
func (h *History) Cap() int { return len(h.buf) }

// Len returns the number of retained events.
func (h *History) Len() int { return h.n }

// At returns the i-th retained event, 0 being the oldest.
func (h *History) At(i int) protocol.Event {
	if i < 0 || i >= h.n {
		return nil
	}
	return h.buf[(h.start+i)%len(h.buf)]
}

// Backward yields retained events newest first.
func (h *History) Backward() iter.Seq[protocol.Event] {
	return func(yield func(protocol.Event) bool) {
		for i := h.n - 1; i >= 0; i-- {
			if !yield(h.At(i)) {
				return
			}
		}
	}
}

// Between yields events with after < seq < before, newest first.
func (h *History) Between(after, before uint64) iter.Seq[protocol.Event] {
	return func(yield func(protocol.Event) bool) {
		for ev := range h.Backward() {
			seq := ev.Header().Seq
			if seq >= before {
				continue
			}
			if seq <= after {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

func (h *History) push(ev protocol.Event) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = ev
		h.n++
		return
	}
	h.buf[h.start] = ev
	h.start = (h.start + 1) % len(h.buf)
}
