package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/ui"
	"github.com/muurk/cellwatch/internal/version"
)

// stopTimeout bounds how long a stop waits for the session to flush.
const stopTimeout = 10 * time.Second

// Capture command flags
var (
	captureDevice   string
	captureDir      string
	captureDuration time.Duration
	captureJSON     bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record and analyze the live diagnostic stream",
	Long: `Open the diagnostic device, record every frame to a capture file and
analyze the stream as it arrives. Warnings are printed as they are raised.

The capture runs until interrupted (Ctrl+C), until --duration elapses, or
until the device fails. The capture file is finalized in every case and can
be replayed later with 'cellwatch analyze'.`,
	Example: `  # Capture until Ctrl+C
  cellwatch capture

  # Ten minute capture from a specific device node
  cellwatch capture --device /dev/diag1 --duration 10m`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureDevice, "device", "", "Diagnostic device path (overrides device.path)")
	captureCmd.Flags().StringVar(&captureDir, "dir", "", "Capture directory (overrides capture.dir)")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	captureCmd.Flags().BoolVar(&captureJSON, "json", false, "Print warnings and the final report as JSON")

	rootCmd.AddCommand(captureCmd)
}

// newManager builds the capture manager after applying command overrides.
func newManager(devicePath, dir string) (*capture.Manager, error) {
	if devicePath != "" {
		cfg.Device.Path = devicePath
	}
	if dir != "" {
		cfg.Capture.Dir = dir
	}
	return capture.NewManager(cfg.ManagerOptions(version.ToolVersion()))
}

func runCapture(cmd *cobra.Command, args []string) error {
	mgr, err := newManager(captureDevice, captureDir)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if captureDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, captureDuration)
		defer cancel()
	}

	pretty := !captureJSON && ui.IsTerminal(os.Stdout)
	printer := ui.NewPrinter(os.Stdout)

	s, err := mgr.StartLive(ctx)
	if err != nil {
		if pretty {
			printer.PrintFailure("Capture failed to start", err,
				"Check that "+cfg.Device.Path+" exists and is readable",
				"The diagnostic port may need to be enabled on the phone first",
				"Only one capture can hold the device at a time")
		}
		return err
	}

	if pretty {
		printer.PrintHeader("Live capture", "cellwatch capture",
			ui.Param{Key: "Session", Value: s.ID()},
			ui.Param{Key: "Device", Value: cfg.Device.Path},
			ui.Param{Key: "File", Value: s.Path()},
		)
	}

	warnings, cancel := s.Coordinator().Broadcaster().Subscribe(analysis.DefaultSubscriberBuffer)
	defer cancel()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for w := range warnings {
			printLiveWarning(printer, w, pretty)
		}
	}()

	var report analysis.Report
	select {
	case <-s.Done():
		report, err = s.Wait(context.Background())
	case <-ctx.Done():
		sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
		report, err = s.Stop(sctx)
		scancel()
	}
	cancel()
	<-printed

	if !pretty {
		if jerr := printJSON(os.Stdout, report); jerr != nil {
			return jerr
		}
		return err
	}

	printer.Newline()
	printer.PrintReport(ui.NewReportView(report, "cellwatch capture"))
	printer.Newline()

	var (
		devErr     *capture.DeviceError
		storageErr *capture.StorageError
	)
	switch {
	case errors.As(err, &devErr):
		printer.PrintFailure("Capture ended by a device error", err,
			"The capture file was finalized and can still be analyzed",
			"Check the USB connection and the diagnostic port")
	case errors.As(err, &storageErr):
		printer.PrintFailure("Capture ended by a write error", err,
			"Frames from the failed one on were neither saved nor analyzed",
			"Check free space and permissions of the capture directory")
	case err != nil:
		printer.PrintFailure("Capture did not stop cleanly", err)
	default:
		printer.PrintSuccess("Capture stopped",
			ui.Param{Key: "Frames", Value: strconv.FormatUint(s.Frames(), 10)},
			ui.Param{Key: "File", Value: s.Path()},
		)
	}
	return err
}

// printLiveWarning renders w on stdout, or as a plain line on stderr so a
// JSON report on stdout stays parseable.
func printLiveWarning(p *ui.Printer, w heuristic.Warning, pretty bool) {
	if pretty {
		p.Println(ui.RenderWarning(w, max(p.Width()-32, 20)))
		return
	}
	fmt.Fprintln(os.Stderr, w.String())
}
