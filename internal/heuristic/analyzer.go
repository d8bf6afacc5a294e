package heuristic

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/muurk/cellwatch/internal/protocol"
	"github.com/muurk/cellwatch/internal/session"
)

// Severity grades how strongly a warning indicates a rogue base station.
type Severity uint8

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	default:
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "low":
		*s = SeverityLow
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Warning is a single detection. Events references the triggering events by
// sequence number.
type Warning struct {
	Analyzer  string    `json:"analyzer"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Events    []uint64  `json:"events"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Severity, w.Analyzer, w.Message)
}

// Analyzer is a pure detection rule. Evaluate is called exactly once per
// event, after the tracker has applied it, and must depend only on its
// arguments. It may look at most Lookback events back into the history.
type Analyzer interface {
	ID() string
	Name() string
	Description() string
	Lookback() int
	Evaluate(ev protocol.Event, st session.View, h *session.History) (Warning, bool)
}

// Info describes an analyzer for report metadata.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Describe lists the analyzers in evaluation order.
func Describe(analyzers []Analyzer) []Info {
	infos := make([]Info, len(analyzers))
	for i, a := range analyzers {
		infos[i] = Info{ID: a.ID(), Name: a.Name(), Description: a.Description()}
	}
	return infos
}

// MaxLookback returns the history size needed by analyzers.
func MaxLookback(analyzers []Analyzer) int {
	n := 0
	for _, a := range analyzers {
		n = max(n, a.Lookback())
	}
	return n
}

func newWarning(a Analyzer, sev Severity, ev protocol.Event, msg string, related ...uint64) Warning {
	meta := ev.Header()
	return Warning{
		Analyzer:  a.ID(),
		Severity:  sev,
		Message:   msg,
		Timestamp: meta.Timestamp,
		Events:    append(related, meta.Seq),
	}
}

// window yields at most limit history events with after < seq < before,
// newest first.
func window(h *session.History, after, before uint64, limit int) iter.Seq[protocol.Event] {
	return func(yield func(protocol.Event) bool) {
		n := 0
		for ev := range h.Between(after, before) {
			if n >= limit {
				return
			}
			n++
			if !yield(ev) {
				return
			}
		}
	}
}
