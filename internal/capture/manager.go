package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/device"
	"github.com/muurk/cellwatch/internal/logging"
)

var (
	ErrNotFound    = errors.New("capture not found")
	ErrNoSession   = errors.New("no live capture session")
	ErrInvalidName = errors.New("invalid capture name")
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// DevicePath is passed to device.Open unless Open is set.
	DevicePath string
	DeviceOpen device.OpenOptions
	Open       func(ctx context.Context) (device.Conn, error)

	// Lock defaults to device.Global().
	Lock *device.Lock

	// Session is the template for live sessions. Its Dir is the capture
	// directory.
	Session Options
}

// Manager owns the capture directory: at most one live session plus
// on-demand replays of finished captures.
type Manager struct {
	opts ManagerOptions

	replayMu sync.Mutex // one replay at a time

	mu       sync.Mutex
	live     *Session
	queued   []string
	running  string
	finished []string
	reports  map[string]analysis.Report
}

// State is the manager status exposed over HTTP.
type State struct {
	Live     *LiveState `json:"live,omitempty"`
	Queued   []string   `json:"queued"`
	Running  string     `json:"running,omitempty"`
	Finished []string   `json:"finished"`
}

// LiveState summarizes the live session.
type LiveState struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Start     time.Time `json:"start"`
	Frames    uint64    `json:"frames"`
	Warnings  int       `json:"warnings"`
	Error     string    `json:"error,omitempty"`
}

// Info describes a capture file.
type Info struct {
	Name     string   `json:"name"`
	Size     int64    `json:"size"`
	Metadata Metadata `json:"metadata"`
	Live     bool     `json:"live"`
}

// NewManager creates the capture directory if needed and lists existing
// captures as finished.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Session.Dir == "" {
		return nil, errors.New("capture directory not set")
	}
	if opts.Lock == nil {
		opts.Lock = device.Global()
	}
	if opts.Open == nil {
		path, dopts := opts.DevicePath, opts.DeviceOpen
		opts.Open = func(ctx context.Context) (device.Conn, error) {
			return device.Open(ctx, path, dopts)
		}
	}
	if err := os.MkdirAll(opts.Session.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}

	m := &Manager{opts: opts, reports: make(map[string]analysis.Report)}
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		m.finished = append(m.finished, info.Name)
	}
	return m, nil
}

// StartLive waits for the device, opens it and starts a live session. A
// previous session still holding the device is waited for until ctx
// expires.
func (m *Manager) StartLive(ctx context.Context) (*Session, error) {
	release, err := m.opts.Lock.Acquire(ctx, "live capture")
	if err != nil {
		return nil, fmt.Errorf("acquire diagnostic device: %w", err)
	}
	conn, err := m.opts.Open(ctx)
	if err != nil {
		release()
		return nil, &DeviceError{Device: m.opts.Session.Device, Op: "open", Err: err}
	}
	s, err := Start(conn, release, m.opts.Session)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.live = s
	m.mu.Unlock()

	go m.watch(s)
	return s, nil
}

func (m *Manager) watch(s *Session) {
	<-s.Done()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[s.ID()] = s.Report()
	if !slices.Contains(m.finished, s.ID()) {
		m.finished = append(m.finished, s.ID())
	}
}

// StopLive stops the live session and returns its final report.
func (m *Manager) StopLive(ctx context.Context) (analysis.Report, error) {
	s := m.Live()
	if s == nil || s.Status() != StatusRunning {
		return analysis.Report{}, ErrNoSession
	}
	return s.Stop(ctx)
}

// Live returns the current or most recent live session, or nil.
func (m *Manager) Live() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Status reports the live session and the replay queue.
func (m *Manager) Status() State {
	m.mu.Lock()
	st := State{
		Queued:   slices.Clone(m.queued),
		Running:  m.running,
		Finished: slices.Clone(m.finished),
	}
	live := m.live
	m.mu.Unlock()

	if st.Queued == nil {
		st.Queued = []string{}
	}
	if st.Finished == nil {
		st.Finished = []string{}
	}
	if live != nil {
		report := live.Report()
		ls := &LiveState{
			SessionID: live.ID(),
			Status:    live.Status(),
			Start:     live.Metadata().Start,
			Frames:    live.Frames(),
			Warnings:  report.Summary.Warnings,
		}
		if err := live.Err(); err != nil {
			ls.Error = err.Error()
		}
		st.Live = ls
	}
	return st
}

// List returns the captures in the directory, oldest first.
func (m *Manager) List() ([]Info, error) {
	paths, err := filepath.Glob(filepath.Join(m.opts.Session.Dir, "*"+Extension))
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}

	live := ""
	if s := m.Live(); s != nil && s.Status() == StatusRunning {
		live = s.ID()
	}

	infos := make([]Info, 0, len(paths))
	for _, p := range paths {
		meta, err := ReadMetadata(p)
		if err != nil {
			logging.Warn("Skipping unreadable capture", zap.String("path", p), zap.Error(err))
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(p), Extension)
		infos = append(infos, Info{Name: name, Size: fi.Size(), Metadata: meta, Live: name == live})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.Metadata.Start.Compare(b.Metadata.Start); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return infos, nil
}

// Report returns the analysis report of the named capture. The live
// session answers with its incremental report; finished captures are
// replayed once and cached.
func (m *Manager) Report(ctx context.Context, name string) (analysis.Report, error) {
	if !validName(name) {
		return analysis.Report{}, ErrInvalidName
	}
	if s := m.Live(); s != nil && s.ID() == name {
		return s.Report(), nil
	}

	m.mu.Lock()
	if r, ok := m.reports[name]; ok {
		m.mu.Unlock()
		return r, nil
	}
	m.mu.Unlock()

	path, err := m.Path(name)
	if err != nil {
		return analysis.Report{}, err
	}

	m.setQueued(name, true)
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	m.setQueued(name, false)

	m.mu.Lock()
	m.running = name
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = ""
		m.mu.Unlock()
	}()

	r, err := m.replay(ctx, path)
	if err != nil {
		return r, err
	}

	m.mu.Lock()
	m.reports[name] = r
	if !slices.Contains(m.finished, name) {
		m.finished = append(m.finished, name)
	}
	m.mu.Unlock()
	return r, nil
}

// Path returns the file of the named capture.
func (m *Manager) Path(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(m.opts.Session.Dir, name+Extension)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat capture: %w", err)
	}
	return path, nil
}

func (m *Manager) replay(ctx context.Context, path string) (analysis.Report, error) {
	meta, err := ReadMetadata(path)
	if err != nil {
		return analysis.Report{}, err
	}
	aopts := m.opts.Session.Analysis
	aopts.SessionID = meta.SessionID
	aopts.Sink = nil
	c := analysis.NewCoordinator(aopts)
	return analysis.Replay(ctx, File{Path: path}, c)
}

func (m *Manager) setQueued(name string, queued bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if queued {
		m.queued = append(m.queued, name)
		return
	}
	if i := slices.Index(m.queued, name); i >= 0 {
		m.queued = slices.Delete(m.queued, i, i+1)
	}
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
