// Package ui renders cellwatch output for the terminal.
//
// Components follow a "render once and exit" pattern: they return styled
// strings built with Lipgloss and never require interaction, except for
// Confirm. The only animated component is the replay progress display,
// which RunWithProgress drives with a Bubble Tea program while the analysis
// runs on its own goroutine.
//
//   - Header: command banner showing the operation and its parameters
//   - Progress: bar and counters fed by a Tracker wrapped around the source
//   - ReportView: warnings grouped by severity, decode errors and a verdict
//   - Result: success, warning or failure boxes
//
// Example:
//
//	tracker := new(ui.Tracker)
//	p := ui.NewProgress("Analyzing capture...", size, tracker)
//	err := ui.RunWithProgress(ctx, os.Stderr, p, func(ctx context.Context) error {
//	    report, err = analysis.Replay(ctx, tracker.Track(src), coord)
//	    return err
//	})
//	ui.NewPrinter(os.Stdout).PrintReport(ui.NewReportView(report, "cellwatch analyze"))
//
// Commands only use these components when stdout is a terminal; otherwise
// they print the report as JSON.
package ui
