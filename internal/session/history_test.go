package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muurk/cellwatch/internal/protocol"
)

func seqs(h *History) []uint64 {
	var out []uint64
	for i := 0; i < h.Len(); i++ {
		out = append(out, h.At(i).Header().Seq)
	}
	return out
}

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.push(&protocol.HandoverComplete{Meta: protocol.Meta{Seq: uint64(i)}})
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []uint64{3, 4, 5}, seqs(h))
	assert.Nil(t, h.At(3))
	assert.Nil(t, h.At(-1))

	var back []uint64
	for ev := range h.Backward() {
		back = append(back, ev.Header().Seq)
	}
	assert.Equal(t, []uint64{5, 4, 3}, back)
}

func TestHistoryBetween(t *testing.T) {
	h := NewHistory(10)
	for i := 1; i <= 6; i++ {
		h.push(&protocol.HandoverComplete{Meta: protocol.Meta{Seq: uint64(i)}})
	}

	var got []uint64
	for ev := range h.Between(2, 6) {
		got = append(got, ev.Header().Seq)
	}
	assert.Equal(t, []uint64{5, 4, 3}, got)

	got = nil
	for ev := range h.Between(5, 6) {
		got = append(got, ev.Header().Seq)
	}
	assert.Empty(t, got)
}
