package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/logging"
)

// Conn is an open diagnostic channel. Both character devices opened with
// os.OpenFile and network bridges satisfy it.
type Conn interface {
	io.ReadCloser
	SetReadDeadline(t time.Time) error
}

// Default open parameters.
const (
	DefaultOpenTimeout     = 30 * time.Second
	DefaultInitialInterval = 250 * time.Millisecond
)

// OpenOptions configures Open.
type OpenOptions struct {
	// Timeout bounds the total time spent retrying. Zero means
	// DefaultOpenTimeout.
	Timeout         time.Duration
	InitialInterval time.Duration
}

// Open connects to the diagnostic channel at path, retrying with
// exponential backoff while the device node is absent or the bridge
// refuses connections. Paths of the form tcp://host:port dial a network
// bridge; anything else is opened as a file.
func Open(ctx context.Context, path string, opts OpenOptions) (Conn, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOpenTimeout
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultInitialInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialInterval
	b.MaxElapsedTime = opts.Timeout

	var conn Conn
	op := func() error {
		c, err := dial(ctx, path)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logging.Warn("Diagnostic device not ready, retrying",
			zap.String("device", path),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("open diagnostic device %s: %w", path, err)
	}
	logging.Info("Diagnostic device opened", zap.String("device", path))
	return conn, nil
}

func dial(ctx context.Context, path string) (Conn, error) {
	if addr, ok := strings.CutPrefix(path, "tcp://"); ok {
		var d net.Dialer
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func retryable(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
