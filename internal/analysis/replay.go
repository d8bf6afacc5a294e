package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/muurk/cellwatch/internal/diag"
)

// rawIDPrefix is the length of content hashed for raw dump session ids.
const rawIDPrefix = 4096

// Replay drives a finite source to completion and returns the final report.
// On a read error or cancellation the partial snapshot is returned with the
// error.
func Replay(ctx context.Context, src diag.Replayable, c *Coordinator) (Report, error) {
	s, err := src.Open()
	if err != nil {
		return c.Snapshot(), fmt.Errorf("open replay source: %w", err)
	}
	defer s.Close()

	for {
		if err := ctx.Err(); err != nil {
			return c.Snapshot(), err
		}
		frame, err := s.Next()
		if errors.Is(err, io.EOF) {
			return c.Finalize(), nil
		}
		if err != nil {
			return c.Snapshot(), fmt.Errorf("replay: %w", err)
		}
		c.Process(frame)
	}
}

// SessionID derives the id of a capture session from the device identity
// and start time recorded in its metadata.
func SessionID(device string, start time.Time) string {
	h := sha256.New()
	h.Write([]byte(device))
	h.Write([]byte{0})
	h.Write([]byte(start.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// RawSessionID derives a session id for a raw dump without metadata from
// its first 4 KiB.
func RawSessionID(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.CopyN(h, r, rawIDPrefix); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("hash raw dump: %w", err)
	}
	return "raw-" + hex.EncodeToString(h.Sum(nil))[:16], nil
}
