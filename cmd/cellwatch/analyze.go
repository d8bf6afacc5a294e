package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/diag"
	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/logging"
	"github.com/muurk/cellwatch/internal/ui"
)

var errFindings = errors.New("warnings at or above the --fail-on severity")

// Analyze command flags
var (
	analyzeJSON   bool
	analyzeFailOn string
	analyzeOnly   []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a capture or raw diagnostic dump",
	Long: `Replay a recorded capture (.cwcap) or a raw HDLC diagnostic dump through
the decoder and every enabled analyzer, then print the report.

Replaying the same file always yields the same report. On a terminal the
report is rendered for reading; otherwise, or with --json, it is printed as
JSON.`,
	Example: `  # Analyze a capture recorded with 'cellwatch capture'
  cellwatch analyze ~/.config/cellwatch/captures/3f0c9a1b2c3d4e5f.cwcap

  # JSON report of a raw dump, only running two analyzers
  cellwatch analyze dump.bin --json --only downgrade,null_cipher

  # Fail a script when anything high severity shows up
  cellwatch analyze dump.bin --fail-on high`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
	analyzeCmd.Flags().StringVar(&analyzeFailOn, "fail-on", "", "Exit with status 3 if a warning of this severity or higher is found (low, medium, high)")
	analyzeCmd.Flags().StringSliceVar(&analyzeOnly, "only", nil, "Run only these analyzers (comma separated ids)")

	rootCmd.AddCommand(analyzeCmd)
}

// input is an analyzable file.
type input struct {
	src       diag.Replayable
	sessionID string
	size      int64
}

// openInput sniffs the capture magic to pick the frame source.
func openInput(path string) (input, error) {
	fh, err := os.Open(path)
	if err != nil {
		return input{}, err
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return input{}, err
	}

	magic := make([]byte, len(capture.Magic))
	n, err := io.ReadFull(fh, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return input{}, fmt.Errorf("read %s: %w", path, err)
	}

	if n == len(magic) && string(magic) == capture.Magic {
		meta, err := capture.ReadMetadata(path)
		if err != nil {
			return input{}, err
		}
		return input{src: capture.File{Path: path}, sessionID: meta.SessionID, size: st.Size()}, nil
	}

	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return input{}, err
	}
	id, err := analysis.RawSessionID(fh)
	if err != nil {
		return input{}, err
	}
	return input{src: diag.File{Path: path}, sessionID: id, size: st.Size()}, nil
}

// analyzerConfig applies --only on top of the configured enable map.
func analyzerConfig(only []string) (heuristic.Config, error) {
	if len(only) == 0 {
		return cfg.Analysis.Analyzers, nil
	}
	return heuristic.Only(only...)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	var threshold heuristic.Severity
	if analyzeFailOn != "" {
		if err := threshold.UnmarshalText([]byte(analyzeFailOn)); err != nil {
			return fmt.Errorf("--fail-on: %w", err)
		}
	}

	in, err := openInput(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	analyzers, err := analyzerConfig(analyzeOnly)
	if err != nil {
		return err
	}
	opts := cfg.AnalysisOptions()
	opts.SessionID = in.sessionID
	opts.Analyzers = analyzers
	coord := analysis.NewCoordinator(opts)

	logging.Info("Analyzing file", zap.String("path", path), zap.String("session", in.sessionID), zap.Int64("size", in.size))

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	pretty := !analyzeJSON && ui.IsTerminal(os.Stdout)
	var report analysis.Report
	if pretty && ui.IsTerminal(os.Stderr) {
		tracker := new(ui.Tracker)
		warnings, cancel := coord.Broadcaster().Subscribe(analysis.DefaultSubscriberBuffer)
		defer cancel()
		go func() {
			for range warnings {
				tracker.AddWarning()
			}
		}()

		p := ui.NewProgress("Analyzing "+filepath.Base(path)+"...", in.size, tracker)
		err = ui.RunWithProgress(ctx, os.Stderr, p, func(ctx context.Context) error {
			var rerr error
			report, rerr = analysis.Replay(ctx, tracker.Track(in.src), coord)
			return rerr
		})
	} else {
		report, err = analysis.Replay(ctx, in.src, coord)
	}
	if err != nil {
		return fmt.Errorf("analysis of %s failed: %w", path, err)
	}

	if pretty {
		ui.NewPrinter(os.Stdout).PrintReport(ui.NewReportView(report, "cellwatch analyze "+path))
	} else if err := printJSON(os.Stdout, report); err != nil {
		return err
	}

	if threshold != 0 && report.HighestSeverity() >= threshold {
		return errFindings
	}
	return nil
}

func printJSON(w io.Writer, report analysis.Report) error {
	data, err := report.MarshalIndent()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
