package capture

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/device"
	"github.com/muurk/cellwatch/internal/diag"
	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/protocol"
)

func sessionOptions(dir string) Options {
	return Options{
		Device:       "test-modem",
		Dir:          dir,
		ToolVersion:  "dev",
		PollInterval: 10 * time.Millisecond,
		Analysis:     analysis.Options{Analyzers: heuristic.DefaultConfig()},
		Clock:        func() time.Time { return t0 },
	}
}

func downgradeStream() []byte {
	var b []byte
	b = append(b, diag.Encode(protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 10)))...)
	b = append(b, diag.Encode(protocol.BuildCellInfo(t0, cell(protocol.RATGSM, 2, 20)))...)
	return b
}

// writeChunks writes b to the device side in small pieces so frames span
// reads. net.Pipe writes return only once the reader has taken the bytes.
func writeChunks(t *testing.T, w io.Writer, b []byte, size int) {
	t.Helper()
	for len(b) > 0 {
		n := min(size, len(b))
		_, err := w.Write(b[:n])
		require.NoError(t, err)
		b = b[n:]
	}
}

func TestSessionStopNormally(t *testing.T) {
	dir := t.TempDir()
	modem, host := net.Pipe()
	defer modem.Close()

	lock := device.NewLock()
	release, err := lock.TryAcquire("test")
	require.NoError(t, err)

	s, err := Start(host, release, sessionOptions(dir))
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status())
	assert.Equal(t, analysis.SessionID("test-modem", t0), s.ID())

	ch, cancel := s.Coordinator().Broadcaster().Subscribe(8)
	defer cancel()

	writeChunks(t, modem, downgradeStream(), 7)

	select {
	case w := <-ch:
		assert.Equal(t, "downgrade", w.Analyzer)
	case <-time.After(2 * time.Second):
		t.Fatal("no live warning")
	}

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	report, err := s.Stop(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusStoppedNormally, s.Status())
	assert.True(t, report.Final)
	assert.Equal(t, uint64(2), report.Summary.Frames)
	require.Len(t, report.Warnings, 1)
	assert.Empty(t, lock.Holder(), "device released")

	// the capture replays to the same warnings
	c := analysis.NewCoordinator(analysis.Options{SessionID: s.ID(), Analyzers: heuristic.DefaultConfig()})
	replayed, err := analysis.Replay(context.Background(), File{Path: s.Path()}, c)
	require.NoError(t, err)
	assert.Equal(t, report.Warnings, replayed.Warnings)

	r, err := File{Path: s.Path()}.OpenReader()
	require.NoError(t, err)
	defer r.Close()
	for {
		if _, err := r.Next(); err != nil {
			break
		}
	}
	end, ok := r.End()
	require.True(t, ok)
	assert.Equal(t, End{Frames: 2, Status: EndNormal}, end)

	lf, err := os.Open(filepath.Join(dir, s.ID()+LogExtension))
	require.NoError(t, err)
	defer lf.Close()
	rows, err := analysis.ReadLog(lf)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, analysis.RowMetadata, rows[0].Type)
	assert.Equal(t, analysis.RowWarning, rows[1].Type)
	assert.Equal(t, analysis.RowSummary, rows[2].Type)
}

func TestSessionDeviceError(t *testing.T) {
	dir := t.TempDir()
	modem, host := net.Pipe()

	lock := device.NewLock()
	release, err := lock.TryAcquire("test")
	require.NoError(t, err)

	s, err := Start(host, release, sessionOptions(dir))
	require.NoError(t, err)

	stream := downgradeStream()
	// leave the second frame without its delimiter
	writeChunks(t, modem, stream[:len(stream)-1], 16)
	modem.Close()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	report, err := s.Wait(ctx)
	require.Error(t, err)

	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "read", devErr.Op)
	assert.Equal(t, StatusStoppedDeviceError, s.Status())
	assert.Empty(t, lock.Holder())

	// the residual is flushed as a truncated frame
	assert.Equal(t, uint64(2), report.Summary.Frames)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, protocol.ReasonTruncatedFrame, report.Errors[0].Reason)

	r, err := File{Path: s.Path()}.OpenReader()
	require.NoError(t, err)
	defer r.Close()
	for {
		if _, err := r.Next(); err != nil {
			break
		}
	}
	end, ok := r.End()
	require.True(t, ok)
	assert.Equal(t, EndDeviceError, end.Status)
}

func TestSessionNeverDropsFrames(t *testing.T) {
	dir := t.TempDir()
	modem, host := net.Pipe()
	defer modem.Close()

	opts := sessionOptions(dir)
	opts.QueueSize = 1
	opts.MaxPending = 2
	s, err := Start(host, nil, opts)
	require.NoError(t, err)

	const n = 200
	var b []byte
	for i := 0; i < n; i++ {
		b = append(b, diag.Encode(protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, uint32(i+1))))...)
	}
	writeChunks(t, modem, b, 4096)

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	report, err := s.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), report.Summary.Frames)
	assert.Equal(t, uint64(n), s.Frames())
	assert.Zero(t, report.Summary.DecodeErrors)
}

func TestSessionStopWithoutData(t *testing.T) {
	modem, host := net.Pipe()
	defer modem.Close()

	s, err := Start(host, nil, sessionOptions(t.TempDir()))
	require.NoError(t, err)

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	report, err := s.Stop(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Summary.Frames)
	assert.Empty(t, report.Warnings)

	// a second stop is harmless
	_, err = s.Stop(ctx)
	assert.NoError(t, err)
}

func TestSessionReplayMatchesLiveReport(t *testing.T) {
	// frames are stamped by time.Now in a zone other than UTC
	defer func(loc *time.Location) { time.Local = loc }(time.Local)
	time.Local = time.FixedZone("EDT", -4*3600)

	modem, host := net.Pipe()
	defer modem.Close()

	opts := sessionOptions(t.TempDir())
	opts.Clock = nil
	s, err := Start(host, nil, opts)
	require.NoError(t, err)

	corrupt := diag.Encode(protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 11)))
	corrupt[0] ^= 0x01
	writeChunks(t, modem, diag.Encode(protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 10))), 64)
	writeChunks(t, modem, corrupt, 64)

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	live, err := s.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, live.Errors, 1)

	c := analysis.NewCoordinator(analysis.Options{SessionID: s.ID(), Analyzers: heuristic.DefaultConfig()})
	replayed, err := analysis.Replay(context.Background(), File{Path: s.Path()}, c)
	require.NoError(t, err)

	want, err := live.MarshalIndent()
	require.NoError(t, err)
	got, err := replayed.MarshalIndent()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

var errDiskFull = errors.New("no space left on device")

// diskFull accepts allowed writes, then fails every write.
type diskFull struct{ allowed int }

func (d *diskFull) Write(p []byte) (int, error) {
	if d.allowed == 0 {
		return 0, errDiskFull
	}
	d.allowed--
	return len(p), nil
}

func TestSessionWriteFailureEndsSession(t *testing.T) {
	modem, host := net.Pipe()
	defer modem.Close()

	lock := device.NewLock()
	release, err := lock.TryAcquire("test")
	require.NoError(t, err)

	opts := sessionOptions(t.TempDir())
	opts.create = func(_ string, meta Metadata) (*Writer, error) {
		// the header is the only write that succeeds
		return NewWriter(&diskFull{allowed: 1}, meta)
	}
	s, err := Start(host, release, opts)
	require.NoError(t, err)

	// the producer stops reading at the failed write; this returns once the
	// session closes the device
	go func() { _, _ = modem.Write(downgradeStream()) }()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	report, err := s.Wait(ctx)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr), "err = %v", err)
	assert.Equal(t, uint64(1), storageErr.Seq)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, StatusStoppedStorageError, s.Status())
	assert.Equal(t, StatusStoppedStorageError, EndStorageError.Status())
	assert.Empty(t, lock.Holder(), "device released")

	// nothing that failed to persist reaches the analysis
	assert.True(t, report.Final)
	assert.Zero(t, report.Summary.Frames)
	assert.Empty(t, report.Warnings)
	assert.Zero(t, s.Frames())

	_, err = s.Stop(ctx)
	assert.ErrorAs(t, err, &storageErr)
}
