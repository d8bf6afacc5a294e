package analysis

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/muurk/cellwatch/internal/heuristic"
)

// Row types of the analysis log.
const (
	RowMetadata = "metadata"
	RowWarning  = "warning"
	RowSummary  = "summary"
)

// Metadata is the first row of an analysis log.
type Metadata struct {
	SessionID string           `json:"session_id"`
	Analyzers []heuristic.Info `json:"analyzers"`
}

// Row is one line of an analysis log. Exactly one of the payload fields is
// set, matching Type.
type Row struct {
	Type     string             `json:"type"`
	Metadata *Metadata          `json:"metadata,omitempty"`
	Warning  *heuristic.Warning `json:"warning,omitempty"`
	Summary  *Summary           `json:"summary,omitempty"`
}

// LogWriter appends analysis results to a newline-delimited JSON log. Every
// row is flushed as it is written so a crash loses at most the row in
// flight. It implements Sink.
type LogWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewLogWriter writes the metadata row and returns the writer.
func NewLogWriter(w io.Writer, meta Metadata) (*LogWriter, error) {
	lw := &LogWriter{w: bufio.NewWriter(w)}
	if err := lw.write(Row{Type: RowMetadata, Metadata: &meta}); err != nil {
		return nil, err
	}
	return lw, nil
}

// WriteWarning appends a warning row.
func (lw *LogWriter) WriteWarning(w heuristic.Warning) error {
	return lw.write(Row{Type: RowWarning, Warning: &w})
}

// WriteSummary appends the closing summary row.
func (lw *LogWriter) WriteSummary(s Summary) error {
	return lw.write(Row{Type: RowSummary, Summary: &s})
}

func (lw *LogWriter) write(row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("analysis log: marshal %s row: %w", row.Type, err)
	}
	data = append(data, '\n')

	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, err := lw.w.Write(data); err != nil {
		return fmt.Errorf("analysis log: write: %w", err)
	}
	if err := lw.w.Flush(); err != nil {
		return fmt.Errorf("analysis log: flush: %w", err)
	}
	return nil
}

// ReadLog parses an analysis log back into its rows.
func ReadLog(r io.Reader) ([]Row, error) {
	var rows []Row
	dec := json.NewDecoder(r)
	for {
		var row Row
		err := dec.Decode(&row)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("analysis log: row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
}
