package ui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/heuristic"
)

// maxListedErrors caps the decode errors listed individually.
const maxListedErrors = 10

var severities = []heuristic.Severity{heuristic.SeverityHigh, heuristic.SeverityMedium, heuristic.SeverityLow}

// ReportView renders an analysis report for the terminal.
type ReportView struct {
	Report  analysis.Report
	Command string // e.g., "cellwatch analyze capture.cwcap"
	Width   int
}

// NewReportView creates a view sized to the current terminal.
func NewReportView(r analysis.Report, command string) *ReportView {
	return &ReportView{Report: r, Command: command, Width: GetTerminalWidth()}
}

// SetWidth sets the terminal width for responsive rendering
func (v *ReportView) SetWidth(width int) *ReportView {
	v.Width = width
	return v
}

// Render returns the header, warning list, decode errors and verdict box.
func (v *ReportView) Render() string {
	width := clampWidth(v.Width)
	r := v.Report

	status := "final"
	if !r.Final {
		status = "in progress"
	}
	header := NewHeader("Capture analysis", v.Command,
		Param{"Session", r.SessionID},
		Param{"Status", status},
		Param{"Frames", strconv.FormatUint(r.Summary.Frames, 10)},
		Param{"Events", fmt.Sprintf("%d (%d unknown)", r.Summary.Events, r.Summary.Unknown)},
		Param{"Analyzers", analyzerList(r.Analyzers)},
	).SetWidth(width)

	sections := []string{header.Render()}
	if len(r.Warnings) > 0 {
		sections = append(sections, v.renderWarnings(width))
	}
	if len(r.Errors) > 0 {
		sections = append(sections, v.renderErrors())
	}
	sections = append(sections, v.verdict().SetWidth(width).Render())
	return strings.Join(sections, "\n\n")
}

// String implements fmt.Stringer
func (v *ReportView) String() string {
	return v.Render()
}

func (v *ReportView) renderWarnings(width int) string {
	lines := []string{SectionTitleStyle.Render(fmt.Sprintf("Warnings (%d)", len(v.Report.Warnings)))}
	msgWidth := max(width-32, 20)

	for _, sev := range severities {
		for _, w := range v.Report.Warnings {
			if w.Severity != sev {
				continue
			}
			lines = append(lines, RenderWarning(w, msgWidth))
		}
	}
	return strings.Join(lines, "\n")
}

func (v *ReportView) renderErrors() string {
	errs := v.Report.Errors
	lines := []string{SectionTitleStyle.Render(fmt.Sprintf("Decode errors (%d)", len(errs)))}
	for _, e := range errs[:min(len(errs), maxListedErrors)] {
		where := "#" + strconv.FormatUint(e.Seq, 10)
		if e.LogCode != 0 {
			where += " " + e.LogCode.String()
		}
		lines = append(lines, fmt.Sprintf("  %s %s  %s  %s",
			TroubleshootingItemStyle.Render(BulletMarker),
			ResultValueStyle.Render(where),
			ErrorMessageStyle.Render(e.Reason.String()),
			NoteStyle.Render(e.Detail)))
	}
	if extra := len(errs) - maxListedErrors; extra > 0 {
		lines = append(lines, NoteStyle.Render(fmt.Sprintf("    ... and %d more", extra)))
	}
	return strings.Join(lines, "\n")
}

func (v *ReportView) verdict() *Result {
	r := v.Report
	counts := make([]string, 0, len(severities))
	for _, sev := range severities {
		if n := r.Summary.BySeverity[sev.String()]; n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, strings.ToLower(sev.String())))
		}
	}

	switch top := r.HighestSeverity(); top {
	case 0:
		res := NewSuccessResult("No suspicious activity detected")
		if r.Summary.DecodeErrors > 0 {
			res.AddDetail("Decode errors", strconv.FormatUint(r.Summary.DecodeErrors, 10))
		}
		return res
	case heuristic.SeverityHigh:
		res := NewFailureResult("Likely rogue base station", nil,
			"Review the high severity warnings above",
			"Avoid sensitive calls and SMS on this device until the cell changes",
			"Keep the capture file; export it with `cellwatch export` for Wireshark")
		res.AddDetail("Warnings", strings.Join(counts, ", "))
		return res
	default:
		return NewWarningResult("Suspicious activity detected",
			Param{"Warnings", strings.Join(counts, ", ")},
			Param{"Highest", top.String()})
	}
}

// RenderWarning renders one warning as a severity badge and message, with
// the analyzer, timestamp and triggering events on a second line.
func RenderWarning(w heuristic.Warning, msgWidth int) string {
	badge := SeverityStyle(w.Severity).Render(w.Severity.String())
	msg := lipgloss.NewStyle().Foreground(TextColor).Width(msgWidth).Render(w.Message)
	line := lipgloss.JoinHorizontal(lipgloss.Top, "  ", badge, " ", msg)
	meta := NoteStyle.Render(w.Analyzer) + "  " + NoteStyle.Render(formatStamp(w.Timestamp))
	if events := eventList(w.Events); events != "" {
		meta += "  " + NoteStyle.Render(events)
	}
	return line + "\n          " + meta
}

func analyzerList(infos []heuristic.Info) string {
	if len(infos) == 0 {
		return "none"
	}
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return strings.Join(ids, ", ")
}

func eventList(seqs []uint64) string {
	if len(seqs) == 0 {
		return ""
	}
	seqs = slices.Compact(slices.Clone(seqs))
	parts := make([]string, len(seqs))
	for i, s := range seqs {
		parts[i] = "#" + strconv.FormatUint(s, 10)
	}
	return "events " + strings.Join(parts, " ")
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05.000")
}
