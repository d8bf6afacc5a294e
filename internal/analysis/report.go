package analysis

import (
	"encoding/hex"
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/protocol"
)

// maxErrorRaw caps the raw bytes kept per decode error record.
const maxErrorRaw = 256

// Report is the analysis result of one capture session. It carries no wall
// clock data, so replaying the same input yields the same bytes.
type Report struct {
	SessionID string              `json:"session_id"`
	Final     bool                `json:"final"`
	Analyzers []heuristic.Info    `json:"analyzers"`
	Warnings  []heuristic.Warning `json:"warnings"`
	Errors    []DecodeErrorRecord `json:"decode_errors"`
	Summary   Summary             `json:"summary"`
}

// DecodeErrorRecord is the report entry for one DecodeError event.
type DecodeErrorRecord struct {
	Seq       uint64           `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	LogCode   protocol.LogCode `json:"log_code,omitempty"`
	Reason    protocol.Reason  `json:"reason"`
	Detail    string           `json:"detail"`
	Raw       string           `json:"raw,omitempty"`
	RawLen    int              `json:"raw_len"`
}

// Summary holds the report counters.
type Summary struct {
	Frames          uint64         `json:"frames"`
	Events          uint64         `json:"events"`
	Unknown         uint64         `json:"unknown"`
	DecodeErrors    uint64         `json:"decode_errors"`
	Warnings        int            `json:"warnings"`
	BySeverity      map[string]int `json:"by_severity"`
	ByAnalyzer      map[string]int `json:"by_analyzer"`
	Inconsistencies int            `json:"inconsistencies"`
}

func newReport(id string, analyzers []heuristic.Info) Report {
	return Report{
		SessionID: id,
		Analyzers: analyzers,
		Warnings:  []heuristic.Warning{},
		Errors:    []DecodeErrorRecord{},
		Summary: Summary{
			BySeverity: map[string]int{},
			ByAnalyzer: map[string]int{},
		},
	}
}

func errorRecord(ev *protocol.DecodeError) DecodeErrorRecord {
	raw := ev.Raw
	if len(raw) > maxErrorRaw {
		raw = raw[:maxErrorRaw]
	}
	return DecodeErrorRecord{
		Seq:       ev.Seq,
		Timestamp: ev.Timestamp,
		LogCode:   ev.LogCode,
		Reason:    ev.Reason,
		Detail:    ev.Detail,
		Raw:       hex.EncodeToString(raw),
		RawLen:    len(ev.Raw),
	}
}

func (r *Report) addWarning(w heuristic.Warning) {
	r.Warnings = append(r.Warnings, w)
	r.Summary.Warnings++
	r.Summary.BySeverity[w.Severity.String()]++
	r.Summary.ByAnalyzer[w.Analyzer]++
}

// clone deep-copies the report so snapshots never alias live state.
func (r *Report) clone() Report {
	out := *r
	out.Analyzers = slices.Clone(r.Analyzers)
	out.Warnings = make([]heuristic.Warning, len(r.Warnings))
	for i, w := range r.Warnings {
		w.Events = slices.Clone(w.Events)
		out.Warnings[i] = w
	}
	out.Errors = slices.Clone(r.Errors)
	out.Summary.BySeverity = maps.Clone(r.Summary.BySeverity)
	out.Summary.ByAnalyzer = maps.Clone(r.Summary.ByAnalyzer)
	return out
}

// HighestSeverity returns the most severe warning level, or zero when the
// report has no warnings.
func (r *Report) HighestSeverity() heuristic.Severity {
	var top heuristic.Severity
	for _, w := range r.Warnings {
		top = max(top, w.Severity)
	}
	return top
}

// MarshalIndent renders the report as indented JSON. Map keys are sorted by
// encoding/json, so equal reports render to equal bytes.
func (r *Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
