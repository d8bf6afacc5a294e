package analysis

import (
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/diag"
	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/logging"
	"github.com/muurk/cellwatch/internal/protocol"
	"github.com/muurk/cellwatch/internal/session"
)

// Sink receives every warning synchronously, in order, as it is produced.
type Sink interface {
	WriteWarning(w heuristic.Warning) error
}

// Options configures a Coordinator.
type Options struct {
	SessionID string
	Analyzers heuristic.Config

	// HistorySize enlarges the history ring; it is never smaller than the
	// longest analyzer lookback.
	HistorySize int
	MaxObserved int

	// Sink, if set, receives each warning before it is published.
	Sink Sink
}

// Coordinator runs one capture session: decode, track, evaluate. Process is
// called from a single goroutine; Snapshot may be called concurrently.
type Coordinator struct {
	tracker   *session.Tracker
	analyzers []heuristic.Analyzer
	sink      Sink
	broadcast *Broadcaster

	mu     sync.Mutex
	report Report
}

// NewCoordinator builds the analyzer list and tracker for one session.
func NewCoordinator(opts Options) *Coordinator {
	analyzers := heuristic.New(opts.Analyzers)
	history := max(opts.HistorySize, heuristic.MaxLookback(analyzers), 1)

	return &Coordinator{
		tracker:   session.NewTracker(session.Options{HistorySize: history, MaxObserved: opts.MaxObserved}),
		analyzers: analyzers,
		sink:      opts.Sink,
		broadcast: NewBroadcaster(),
		report:    newReport(opts.SessionID, heuristic.Describe(analyzers)),
	}
}

// SessionID returns the id the report is filed under.
func (c *Coordinator) SessionID() string { return c.report.SessionID }

// Broadcaster returns the live warning publisher of this session.
func (c *Coordinator) Broadcaster() *Broadcaster { return c.broadcast }

// State exposes the tracked session state. Only safe to read from the
// goroutine calling Process.
func (c *Coordinator) State() session.View { return c.tracker.State() }

// Process handles one frame and returns the warnings it produced.
func (c *Coordinator) Process(frame diag.RawFrame) []heuristic.Warning {
	ev := protocol.Decode(frame)
	c.tracker.Apply(ev)

	var produced []heuristic.Warning
	for _, a := range c.analyzers {
		if w, ok := a.Evaluate(ev, c.tracker.State(), c.tracker.History()); ok {
			produced = append(produced, w)
		}
	}

	c.mu.Lock()
	c.count(ev)
	for _, w := range produced {
		c.report.addWarning(w)
	}
	c.report.Summary.Inconsistencies = c.tracker.Inconsistencies()
	c.mu.Unlock()

	for _, w := range produced {
		if c.sink != nil {
			if err := c.sink.WriteWarning(w); err != nil {
				logging.Error("Failed to write warning",
					zap.String("session", c.report.SessionID),
					zap.String("analyzer", w.Analyzer),
					zap.Error(err),
				)
			}
		}
		c.broadcast.Publish(w)
	}
	return produced
}

// count updates the summary counters for ev. Callers hold c.mu.
func (c *Coordinator) count(ev protocol.Event) {
	s := &c.report.Summary
	s.Frames++

	switch e := ev.(type) {
	case *protocol.DecodeError:
		s.DecodeErrors++
		c.report.Errors = append(c.report.Errors, errorRecord(e))
		logging.LogRawBytes("Decode error", e.Raw,
			zap.Uint64("seq", e.Seq),
			zap.String("reason", e.Reason.String()),
			zap.String("detail", e.Detail),
		)
	case *protocol.Unknown:
		s.Unknown++
	default:
		s.Events++
	}
}

// Snapshot returns a copy of the report so far.
func (c *Coordinator) Snapshot() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report.clone()
}

// Finalize marks the report final, closes the broadcaster and returns the
// final report. Process must not be called afterwards.
func (c *Coordinator) Finalize() Report {
	c.mu.Lock()
	c.report.Final = true
	out := c.report.clone()
	c.mu.Unlock()

	c.broadcast.Close()
	logging.Info("Analysis finalized",
		zap.String("session", out.SessionID),
		zap.Uint64("frames", out.Summary.Frames),
		zap.Int("warnings", out.Summary.Warnings),
		zap.Uint64("decode_errors", out.Summary.DecodeErrors),
	)
	return out
}
