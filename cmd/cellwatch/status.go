package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/client"
	"github.com/muurk/cellwatch/internal/discovery"
	"github.com/muurk/cellwatch/internal/ui"
)

// Status command flags
var (
	statusURL    string
	statusReport bool
	statusStart  bool
	statusStop   bool
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query or control a running daemon",
	Long: `Show the state of a cellwatch daemon: the live capture, queued and
finished captures. With --url unset, the first daemon found over mDNS is
used.`,
	Example: `  # Status of the daemon found on the LAN
  cellwatch status

  # Live report from a known daemon
  cellwatch status --url http://192.168.4.16:8080 --report

  # Start and later stop a remote capture
  cellwatch status --start
  cellwatch status --stop`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "Daemon base URL (skips discovery)")
	statusCmd.Flags().BoolVar(&statusReport, "report", false, "Print the live report")
	statusCmd.Flags().BoolVar(&statusStart, "start", false, "Start a live capture on the daemon")
	statusCmd.Flags().BoolVar(&statusStop, "stop", false, "Stop the live capture and print its final report")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print JSON")
	statusCmd.MarkFlagsMutuallyExclusive("report", "start", "stop")

	rootCmd.AddCommand(statusCmd)
}

// daemonURL returns --url, or the first daemon found over mDNS.
func daemonURL(ctx context.Context) (string, error) {
	if statusURL != "" {
		return statusURL, nil
	}
	daemons, err := discovery.QuickScan(ctx)
	if err != nil {
		return "", fmt.Errorf("discovery failed: %w", err)
	}
	if len(daemons) == 0 {
		return "", errors.New("no daemon found on the network (use --url)")
	}
	return daemons[0].BaseURL(), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	base, err := daemonURL(ctx)
	if err != nil {
		return err
	}
	c := client.New(base)
	pretty := !statusJSON && ui.IsTerminal(os.Stdout)
	printer := ui.NewPrinter(os.Stdout)

	fail := func(title string, err error) error {
		if pretty {
			printer.PrintFailure(title, err, client.Troubleshooting(err, base)...)
		}
		return err
	}

	switch {
	case statusStart:
		res, err := c.Start(ctx)
		if err != nil {
			return fail("Capture failed to start", err)
		}
		if !pretty {
			return writeJSON(res)
		}
		printer.PrintSuccess("Capture started",
			ui.Param{Key: "Session", Value: res.SessionID},
			ui.Param{Key: "Daemon", Value: base},
		)
		return nil

	case statusStop, statusReport:
		var r analysis.Report
		if statusStop {
			r, err = c.Stop(ctx)
		} else {
			r, err = c.Report(ctx)
		}
		if err != nil {
			return fail("Request failed", err)
		}
		if !pretty {
			return printJSON(os.Stdout, r)
		}
		printer.PrintReport(ui.NewReportView(r, "cellwatch status "+base))
		return nil
	}

	st, err := c.Status(ctx)
	if err != nil {
		return fail("Daemon unreachable", err)
	}
	if !pretty {
		return writeJSON(st)
	}
	printer.PrintHeader("Daemon status", base, stateParams(st)...)
	return nil
}

func stateParams(st capture.State) []ui.Param {
	params := []ui.Param{}
	if st.Live != nil {
		params = append(params,
			ui.Param{Key: "Live", Value: fmt.Sprintf("%s (%s)", st.Live.SessionID, st.Live.Status)},
			ui.Param{Key: "Frames", Value: strconv.FormatUint(st.Live.Frames, 10)},
			ui.Param{Key: "Warnings", Value: strconv.Itoa(st.Live.Warnings)},
		)
		if st.Live.Error != "" {
			params = append(params, ui.Param{Key: "Error", Value: st.Live.Error})
		}
	} else {
		params = append(params, ui.Param{Key: "Live", Value: "none"})
	}
	if st.Running != "" {
		params = append(params, ui.Param{Key: "Replaying", Value: st.Running})
	}
	params = append(params,
		ui.Param{Key: "Queued", Value: strconv.Itoa(len(st.Queued))},
		ui.Param{Key: "Finished", Value: strconv.Itoa(len(st.Finished))},
	)
	return params
}
