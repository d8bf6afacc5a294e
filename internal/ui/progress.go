package ui

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/cellwatch/internal/diag"
)

// frameOverhead approximates the HDLC bytes a frame spends beyond its payload
// (CRC and flag).
const frameOverhead = 3

// Tracker counts replay progress. It is safe for concurrent use; the replay
// goroutine writes while the renderer reads.
type Tracker struct {
	bytes    atomic.Int64
	frames   atomic.Uint64
	warnings atomic.Int64
}

// Track wraps src so every frame read from it is counted by t.
func (t *Tracker) Track(src diag.Replayable) diag.Replayable {
	return trackedReplayable{src: src, t: t}
}

// AddWarning records one emitted warning.
func (t *Tracker) AddWarning() { t.warnings.Add(1) }

// Bytes returns the approximate input bytes consumed.
func (t *Tracker) Bytes() int64 { return t.bytes.Load() }

// Frames returns the frames read.
func (t *Tracker) Frames() uint64 { return t.frames.Load() }

// Warnings returns the warnings recorded.
func (t *Tracker) Warnings() int64 { return t.warnings.Load() }

type trackedReplayable struct {
	src diag.Replayable
	t   *Tracker
}

func (r trackedReplayable) Open() (diag.Source, error) {
	s, err := r.src.Open()
	if err != nil {
		return nil, err
	}
	return trackedSource{Source: s, t: r.t}, nil
}

type trackedSource struct {
	diag.Source
	t *Tracker
}

func (s trackedSource) Next() (diag.RawFrame, error) {
	f, err := s.Source.Next()
	if err == nil {
		s.t.frames.Add(1)
		s.t.bytes.Add(int64(len(f.Payload) + frameOverhead))
	}
	return f, err
}

// Progress renders a replay progress bar with frame and warning counters.
type Progress struct {
	Label   string   // e.g., "Analyzing capture..."
	Total   int64    // Input size in bytes; zero hides the bar
	Tracker *Tracker // Source of the counters
	Done    bool     // Set once the replay has finished
	Width   int      // Terminal width
	bar     progress.Model
}

// NewProgress creates a progress display for an input of total bytes.
func NewProgress(label string, total int64, t *Tracker) *Progress {
	p := &Progress{Label: label, Total: total, Tracker: t}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	// Leave room for percentage
	barWidth := min(max(width-20, 20), 50)
	p.bar = progress.New(
		progress.WithGradient(string(PrimaryColor), string(SuccessColor)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return p
}

// Percent returns the completed fraction in [0, 1].
func (p *Progress) Percent() float64 {
	if p.Done {
		return 1
	}
	if p.Total <= 0 {
		return 0
	}
	return min(float64(p.Tracker.Bytes())/float64(p.Total), 0.99)
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	if p.Total > 0 {
		line := fmt.Sprintf("%s  %3.0f%%", p.bar.ViewAs(p.Percent()), p.Percent()*100)
		b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(line))
		b.WriteString("\n")
	}

	counts := fmt.Sprintf("%d frames  %d warnings", p.Tracker.Frames(), p.Tracker.Warnings())
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(ProgressCountStyle.Render(counts)))
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
