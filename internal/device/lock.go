package device

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned by TryAcquire when another session holds the device.
var ErrBusy = errors.New("diagnostic device is busy")

// Lock guards exclusive access to the diagnostic device. The modem exposes
// a single diagnostic channel, so one Lock exists per process.
type Lock struct {
	slot chan struct{}

	mu     sync.Mutex
	holder string
}

var global = NewLock()

// Global returns the process-wide device lock.
func Global() *Lock { return global }

// NewLock creates an unheld lock.
func NewLock() *Lock {
	return &Lock{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the lock without waiting.
func (l *Lock) TryAcquire(owner string) (release func(), err error) {
	select {
	case l.slot <- struct{}{}:
		return l.held(owner), nil
	default:
		return nil, ErrBusy
	}
}

// Acquire waits for the lock until ctx is done.
func (l *Lock) Acquire(ctx context.Context, owner string) (release func(), err error) {
	select {
	case l.slot <- struct{}{}:
		return l.held(owner), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Holder names the current owner, or "" when the lock is free.
func (l *Lock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

func (l *Lock) held(owner string) func() {
	l.mu.Lock()
	l.holder = owner
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holder = ""
			l.mu.Unlock()
			<-l.slot
		})
	}
}
