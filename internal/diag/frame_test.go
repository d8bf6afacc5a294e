package diag

import (
	"bytes"
	"testing"
	"time"
)

func TestChecksum(t *testing.T) {
	// CRC-16/X.25 check value
	if got := Checksum([]byte("123456789")); got != 0x906e {
		t.Errorf("Checksum() = 0x%04x, want 0x906e", got)
	}
}

func TestDecoderFeed(t *testing.T) {
	good := []byte{0x10, 0x00, 0x7e, 0x7d, 0x42}
	corrupt := Encode([]byte{0x01, 0x02, 0x03})
	corrupt[0] ^= 0xff

	tests := []struct {
		name   string
		stream []byte
		verify func(t *testing.T, frames []RawFrame)
	}{
		{
			name:   "single frame with escaped bytes",
			stream: Encode(good),
			verify: func(t *testing.T, frames []RawFrame) {
				if len(frames) != 1 {
					t.Fatalf("got %d frames, want 1", len(frames))
				}
				if !frames[0].OK() {
					t.Errorf("fault = %s, want none", frames[0].Fault)
				}
				if !bytes.Equal(frames[0].Payload, good) {
					t.Errorf("payload = %x, want %x", frames[0].Payload, good)
				}
			},
		},
		{
			name:   "leading and repeated delimiters are ignored",
			stream: append([]byte{FrameDelimiter, FrameDelimiter}, Encode(good)...),
			verify: func(t *testing.T, frames []RawFrame) {
				if len(frames) != 1 {
					t.Fatalf("got %d frames, want 1", len(frames))
				}
			},
		},
		{
			name:   "checksum failure resyncs",
			stream: append(corrupt, Encode(good)...),
			verify: func(t *testing.T, frames []RawFrame) {
				if len(frames) != 2 {
					t.Fatalf("got %d frames, want 2", len(frames))
				}
				if frames[0].Fault != FaultChecksum {
					t.Errorf("frames[0].Fault = %s, want checksum_mismatch", frames[0].Fault)
				}
				if !frames[1].OK() || !bytes.Equal(frames[1].Payload, good) {
					t.Errorf("frames[1] = %s, want intact payload", frames[1])
				}
				if frames[0].Seq != 1 || frames[1].Seq != 2 {
					t.Errorf("seqs = %d,%d, want 1,2", frames[0].Seq, frames[1].Seq)
				}
			},
		},
		{
			name:   "frame shorter than checksum",
			stream: []byte{0x01, FrameDelimiter},
			verify: func(t *testing.T, frames []RawFrame) {
				if len(frames) != 1 || frames[0].Fault != FaultTooShort {
					t.Fatalf("frames = %v, want one too_short", frames)
				}
			},
		},
		{
			name:   "escape before delimiter",
			stream: []byte{0x01, 0x02, 0x03, EscapeByte, FrameDelimiter},
			verify: func(t *testing.T, frames []RawFrame) {
				if len(frames) != 1 || frames[0].Fault != FaultBadEscape {
					t.Fatalf("frames = %v, want one bad_escape", frames)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(nil)
			tt.verify(t, d.Feed(tt.stream))
		})
	}
}

func TestDecoderSplitReads(t *testing.T) {
	payload := []byte{0x10, 0x00, 0x20, 0x00, 0x7e, 0x7d, 0x99, 0x01}
	stream := append(Encode(payload), Encode(payload)...)

	// Every split point, including one in the middle of an escape sequence.
	for cut := 1; cut < len(stream); cut++ {
		d := NewDecoder(nil)
		frames := d.Feed(stream[:cut])
		frames = append(frames, d.Feed(stream[cut:])...)

		if len(frames) != 2 {
			t.Fatalf("cut %d: got %d frames, want 2", cut, len(frames))
		}
		for i, f := range frames {
			if !f.OK() || !bytes.Equal(f.Payload, payload) {
				t.Fatalf("cut %d: frame %d = %s %x", cut, i, f, f.Payload)
			}
		}
		if _, ok := d.Finish(); ok {
			t.Fatalf("cut %d: unexpected residual", cut)
		}
	}
}

func TestDecoderFinishTruncated(t *testing.T) {
	d := NewDecoder(nil)
	stream := Encode([]byte{0x01, 0x02, 0x03, 0x04})
	frames := d.Feed(stream[:len(stream)-2])
	if len(frames) != 0 {
		t.Fatalf("got %d frames before finish, want 0", len(frames))
	}
	if d.Pending() == 0 {
		t.Fatal("residual should be buffered")
	}

	f, ok := d.Finish()
	if !ok {
		t.Fatal("Finish() reported no frame")
	}
	if f.Fault != FaultTruncated {
		t.Errorf("fault = %s, want truncated", f.Fault)
	}
	if _, ok := d.Finish(); ok {
		t.Error("second Finish() should be empty")
	}
}

func TestDecoderOversize(t *testing.T) {
	d := NewDecoder(nil)
	big := bytes.Repeat([]byte{0x01}, MaxFrameSize+100)
	stream := append(append(big, FrameDelimiter), Encode([]byte{0x05, 0x06})...)

	frames := d.Feed(stream)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Fault != FaultOversize {
		t.Errorf("frames[0].Fault = %s, want oversize", frames[0].Fault)
	}
	if len(frames[0].Payload) > MaxFrameSize+ChecksumSize {
		t.Errorf("oversize payload kept %d bytes", len(frames[0].Payload))
	}
	if !frames[1].OK() {
		t.Errorf("frames[1].Fault = %s, want none", frames[1].Fault)
	}
}

func TestDecoderStampsUTC(t *testing.T) {
	local := time.Date(2024, time.May, 4, 6, 0, 0, 123, time.FixedZone("EDT", -4*3600))

	tests := []struct {
		name  string
		clock Clock
		want  time.Time
	}{
		{"fixed zone", func() time.Time { return local }, local.UTC()},
		{"zero", ZeroClock, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := NewDecoder(tt.clock).Feed(Encode([]byte{0x10, 0x01}))
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(frames))
			}
			got := frames[0].Timestamp
			if got != tt.want {
				t.Errorf("timestamp = %#v, want %#v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("location = %s, want UTC", got.Location())
			}
		})
	}

	// time.Now carries a monotonic reading; capture files do not
	now := NewDecoder(time.Now).Feed(Encode([]byte{0x10}))[0].Timestamp
	if now != now.Round(0) {
		t.Errorf("timestamp kept its monotonic reading: %v", now)
	}
}

func FuzzDecoderFeed(f *testing.F) {
	f.Add([]byte{0x10, 0x00, 0x7e, 0x7d, 0x42})
	f.Add(append(Encode([]byte{0x10, 0x01}), 0x7d))
	f.Add([]byte{0x7e, 0x7e, 0x7d, 0x5e})

	f.Fuzz(func(t *testing.T, data []byte) {
		// arbitrary bytes as a stream: frames stay numbered from 1
		dec := NewDecoder(ZeroClock)
		frames := dec.Feed(data)
		if last, ok := dec.Finish(); ok {
			frames = append(frames, last)
		}
		for i, fr := range frames {
			if fr.Seq != uint64(i+1) {
				t.Fatalf("frame %d has seq %d", i, fr.Seq)
			}
		}

		// the same bytes as a payload survive framing
		if len(data) == 0 || len(data) > MaxFrameSize {
			return
		}
		got := NewDecoder(ZeroClock).Feed(Encode(data))
		if len(got) != 1 || !got[0].OK() || !bytes.Equal(got[0].Payload, data) {
			t.Fatalf("Encode round trip of %x gave %+v", data, got)
		}
	})
}
