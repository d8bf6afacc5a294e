package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/device"
	"github.com/muurk/cellwatch/internal/diag"
	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/logging"
)

// Status is the health of a capture session.
type Status string

// A session that stopped with StatusStoppedStorageError could not write a
// frame to its capture file; frames from that one on were not analyzed.
const (
	StatusRunning             Status = "running"
	StatusStoppedNormally     Status = "stopped_normally"
	StatusStoppedDeviceError  Status = "stopped_device_error"
	StatusStoppedStorageError Status = "stopped_storage_error"
)

// Session defaults.
const (
	DefaultQueueSize    = 256
	DefaultMaxPending   = 1 << 16
	DefaultPollInterval = 200 * time.Millisecond
	LogExtension        = ".ndjson"
)

// DeviceError reports a failure of the diagnostic device that ended a
// session.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("diagnostic device %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// StorageError reports a frame that could not be appended to the capture
// file. It ends the session.
type StorageError struct {
	Path string
	Seq  uint64
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("capture %s: frame %d: %v", e.Path, e.Seq, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Options configures a live session.
type Options struct {
	// Device identifies the modem in metadata and session ids.
	Device      string
	Dir         string
	ToolVersion string

	QueueSize    int
	MaxPending   int
	PollInterval time.Duration
	ReadSize     int

	// Analysis configures the coordinator; SessionID and Sink are set by
	// the session.
	Analysis analysis.Options

	// Clock stamps frames and the session start. Nil means time.Now.
	Clock func() time.Time

	create func(path string, meta Metadata) (*Writer, error)
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.MaxPending <= 0 {
		o.MaxPending = DefaultMaxPending
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReadSize <= 0 {
		o.ReadSize = diag.DefaultReadSize
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.create == nil {
		o.create = Create
	}
	if o.Device == "" {
		o.Device = "unknown"
	}
}

// Session is one live capture: a producer goroutine reads the device and
// persists every frame, a consumer goroutine runs the analysis.
type Session struct {
	opts    Options
	meta    Metadata
	path    string
	logPath string

	conn    device.Conn
	release func()

	writer  *Writer
	logFile *os.File
	log     *analysis.LogWriter
	coord   *analysis.Coordinator

	frames   chan diag.RawFrame
	stop     chan struct{}
	stopOnce sync.Once
	consumed chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	status   Status
	err      error
	final    analysis.Report
	produced uint64
}

// Start begins capturing from conn. release is called once the capture
// file is finalized and conn closed; it is typically the device lock
// release.
func Start(conn device.Conn, release func(), opts Options) (*Session, error) {
	opts.defaults()
	if release == nil {
		release = func() {}
	}

	start := opts.Clock().UTC()
	meta := Metadata{
		SessionID:   analysis.SessionID(opts.Device, start),
		Start:       start,
		Device:      opts.Device,
		ToolVersion: opts.ToolVersion,
	}

	s := &Session{
		opts:     opts,
		meta:     meta,
		path:     filepath.Join(opts.Dir, meta.SessionID+Extension),
		logPath:  filepath.Join(opts.Dir, meta.SessionID+LogExtension),
		conn:     conn,
		release:  release,
		frames:   make(chan diag.RawFrame, opts.QueueSize),
		stop:     make(chan struct{}),
		consumed: make(chan struct{}),
		done:     make(chan struct{}),
		status:   StatusRunning,
	}

	if err := s.open(); err != nil {
		conn.Close()
		release()
		return nil, err
	}

	logging.Info("Capture session started",
		zap.String("session", meta.SessionID),
		zap.String("device", meta.Device),
		zap.String("file", s.path),
	)

	go s.produce()
	go s.consume()
	go s.supervise()
	return s, nil
}

func (s *Session) open() error {
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create capture directory: %w", err)
	}
	w, err := s.opts.create(s.path, s.meta)
	if err != nil {
		return err
	}
	lf, err := os.Create(s.logPath)
	if err != nil {
		w.Close(EndNormal)
		return fmt.Errorf("create analysis log: %w", err)
	}

	lw, err := analysis.NewLogWriter(lf, analysis.Metadata{
		SessionID: s.meta.SessionID,
		Analyzers: heuristic.Describe(heuristic.New(s.opts.Analysis.Analyzers)),
	})
	if err != nil {
		lf.Close()
		w.Close(EndNormal)
		return err
	}

	aopts := s.opts.Analysis
	aopts.SessionID = s.meta.SessionID
	aopts.Sink = lw
	s.writer, s.logFile, s.log = w, lf, lw
	s.coord = analysis.NewCoordinator(aopts)
	return nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.meta.SessionID }

// Metadata returns the capture metadata.
func (s *Session) Metadata() Metadata { return s.meta }

// Path returns the capture file path.
func (s *Session) Path() string { return s.path }

// Coordinator exposes the session's analysis, for subscriptions.
func (s *Session) Coordinator() *analysis.Coordinator { return s.coord }

// Done is closed once the session has fully stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns the health of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Frames returns the number of frames read and persisted so far.
func (s *Session) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.produced
}

// Report returns the live report, or the final one once stopped.
func (s *Session) Report() analysis.Report {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.final
	default:
		return s.coord.Snapshot()
	}
}

// Stop requests a normal stop and waits for the session to finish or ctx
// to expire.
func (s *Session) Stop(ctx context.Context) (analysis.Report, error) {
	s.stopOnce.Do(func() { close(s.stop) })
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		// no deadline support: closing is the only way to unblock Read
		s.conn.Close()
	}
	return s.Wait(ctx)
}

// Wait blocks until the session ends and returns its final report and the
// error that ended it.
func (s *Session) Wait(ctx context.Context) (analysis.Report, error) {
	select {
	case <-s.done:
		return s.Report(), s.Err()
	case <-ctx.Done():
		return s.coord.Snapshot(), ctx.Err()
	}
}

func (s *Session) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// produce owns the device and the frame decoder. Frames are written to the
// capture file before they are handed to the consumer, and are never
// dropped: when the channel is full they wait in pending, and past
// MaxPending the producer blocks. A failed write stops production.
func (s *Session) produce() {
	defer close(s.frames)

	dec := diag.NewDecoder(s.opts.Clock)
	buf := make([]byte, s.opts.ReadSize)
	var pending []diag.RawFrame
	stored := true

	for stored && !s.stopping() {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PollInterval))
		n, err := s.conn.Read(buf)
		if n > 0 {
			pending, stored = s.persist(pending, dec.Feed(buf[:n]))
		}
		pending = s.deliver(pending)

		if !stored || err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		if s.stopping() {
			break
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		s.fail(&DeviceError{Device: s.meta.Device, Op: "read", Err: err})
		break
	}

	if f, ok := dec.Finish(); ok && stored {
		pending, _ = s.persist(pending, []diag.RawFrame{f})
	}
	for _, f := range pending {
		s.frames <- f
	}
}

// persist appends frames to the capture file and queues the written ones.
// It reports false once a write fails; that frame and the ones after it are
// not analyzed.
func (s *Session) persist(pending, frames []diag.RawFrame) ([]diag.RawFrame, bool) {
	written := len(frames)
	for i, f := range frames {
		if err := s.writer.WriteFrame(f); err != nil {
			logging.Error("Failed to persist frame",
				zap.String("session", s.meta.SessionID),
				zap.Uint64("seq", f.Seq),
				zap.Error(err),
			)
			s.fail(&StorageError{Path: s.path, Seq: f.Seq, Err: err})
			written = i
			break
		}
	}
	s.mu.Lock()
	s.produced += uint64(written)
	s.mu.Unlock()
	return append(pending, frames[:written]...), written == len(frames)
}

func (s *Session) deliver(pending []diag.RawFrame) []diag.RawFrame {
	for len(pending) > 0 {
		if len(pending) > s.opts.MaxPending {
			s.frames <- pending[0]
			pending = pending[1:]
			continue
		}
		select {
		case s.frames <- pending[0]:
			pending = pending[1:]
		default:
			return pending
		}
	}
	return pending
}

func (s *Session) consume() {
	defer close(s.consumed)
	for f := range s.frames {
		s.coord.Process(f)
	}
}

// supervise finalizes the session once the consumer has drained every
// frame: capture file first, then the analysis log, then the device.
func (s *Session) supervise() {
	<-s.consumed

	end, status := EndNormal, StatusStoppedNormally
	var storageErr *StorageError
	switch err := s.Err(); {
	case errors.As(err, &storageErr):
		end, status = EndStorageError, StatusStoppedStorageError
	case err != nil:
		end, status = EndDeviceError, StatusStoppedDeviceError
	}

	if err := s.writer.Close(end); err != nil {
		logging.Error("Failed to finalize capture", zap.String("session", s.meta.SessionID), zap.Error(err))
	}
	report := s.coord.Finalize()
	if err := s.log.WriteSummary(report.Summary); err != nil {
		logging.Error("Failed to write analysis summary", zap.String("session", s.meta.SessionID), zap.Error(err))
	}
	s.logFile.Close()

	s.conn.Close()
	s.release()

	s.mu.Lock()
	s.status = status
	s.final = report
	err := s.err
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("session", s.meta.SessionID),
		zap.String("status", string(status)),
		zap.Uint64("frames", report.Summary.Frames),
		zap.Int("warnings", report.Summary.Warnings),
	}
	if err != nil {
		logging.Error("Capture session ended", append(fields, zap.Error(err))...)
	} else {
		logging.Info("Capture session ended", fields...)
	}
	close(s.done)
}
