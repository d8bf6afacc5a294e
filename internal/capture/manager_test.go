package capture

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/cellwatch/internal/device"
)

type pipeDevice struct {
	modems chan net.Conn
}

func (p *pipeDevice) open(ctx context.Context) (device.Conn, error) {
	modem, host := net.Pipe()
	p.modems <- modem
	return host, nil
}

func newTestManager(t *testing.T) (*Manager, *pipeDevice) {
	t.Helper()
	dev := &pipeDevice{modems: make(chan net.Conn, 4)}
	m, err := NewManager(ManagerOptions{
		Open:    dev.open,
		Lock:    device.NewLock(),
		Session: sessionOptions(t.TempDir()),
	})
	require.NoError(t, err)
	return m, dev
}

func TestManagerLiveLifecycle(t *testing.T) {
	m, dev := newTestManager(t)

	_, err := m.StopLive(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	s, err := m.StartLive(ctx)
	require.NoError(t, err)
	modem := <-dev.modems
	defer modem.Close()

	st := m.Status()
	require.NotNil(t, st.Live)
	assert.Equal(t, StatusRunning, st.Live.Status)
	assert.Equal(t, s.ID(), st.Live.SessionID)

	// the device is held: a second live session waits and gives up
	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.StartLive(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	infos, err := m.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Live)

	writeChunks(t, modem, downgradeStream(), 32)

	report, err := m.StopLive(ctx)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)

	// watch records the finished session after Done
	require.Eventually(t, func() bool {
		return len(m.Status().Finished) == 1
	}, time.Second, 5*time.Millisecond)
	st = m.Status()
	assert.Equal(t, StatusStoppedNormally, st.Live.Status)
	assert.Equal(t, []string{s.ID()}, st.Finished)

	got, err := m.Report(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, report.Summary, got.Summary)
}

func TestManagerReplaysFinishedCaptures(t *testing.T) {
	m, dev := newTestManager(t)
	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()

	s, err := m.StartLive(ctx)
	require.NoError(t, err)
	modem := <-dev.modems
	writeChunks(t, modem, downgradeStream(), 32)
	_, err = s.Stop(ctx)
	require.NoError(t, err)
	modem.Close()

	// a fresh manager only knows the file and has to replay it
	fresh, err := NewManager(ManagerOptions{
		Open:    dev.open,
		Lock:    device.NewLock(),
		Session: m.opts.Session,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID()}, fresh.Status().Finished)

	report, err := fresh.Report(ctx, s.ID())
	require.NoError(t, err)
	assert.True(t, report.Final)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "downgrade", report.Warnings[0].Analyzer)

	st := fresh.Status()
	assert.Empty(t, st.Queued)
	assert.Empty(t, st.Running)
	assert.Nil(t, st.Live)
}

func TestManagerReportErrors(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, name := range []string{"", "..", "../etc/passwd", "a/b", "x.cwcap"} {
		_, err := m.Report(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	_, err := m.Report(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerOpenFailureReleasesDevice(t *testing.T) {
	lock := device.NewLock()
	m, err := NewManager(ManagerOptions{
		Open: func(context.Context) (device.Conn, error) {
			return nil, errors.New("no such modem")
		},
		Lock:    lock,
		Session: sessionOptions(t.TempDir()),
	})
	require.NoError(t, err)

	_, err = m.StartLive(context.Background())
	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "open", devErr.Op)
	assert.Empty(t, lock.Holder())
}

func TestNewManagerRequiresDir(t *testing.T) {
	_, err := NewManager(ManagerOptions{})
	assert.Error(t, err)
}
