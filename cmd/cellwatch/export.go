package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/cellwatch/internal/export"
	"github.com/muurk/cellwatch/internal/ui"
)

// Export command flags
var (
	exportOutput string
	exportForce  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export decoded messages to a GSMTAP pcap",
	Long: `Decode a capture or raw dump and write every control-plane message
with a GSMTAP mapping as a UDP packet to port 4729, so Wireshark can dissect
it. Unknown records and decode errors are skipped.`,
	Example: `  # Writes session.pcap next to the input
  cellwatch export session.cwcap

  # Explicit output, replacing an existing file
  cellwatch export dump.bin -o /tmp/dump.pcap --force`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output pcap path (default: input with .pcap extension)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Overwrite the output without asking")

	rootCmd.AddCommand(exportCmd)
}

// pcapPath derives the default output path.
func pcapPath(in string) string {
	if i := strings.LastIndexByte(in, '.'); i > strings.LastIndexByte(in, os.PathSeparator) {
		in = in[:i]
	}
	return in + ".pcap"
}

func runExport(cmd *cobra.Command, args []string) error {
	in, err := openInput(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}

	out := exportOutput
	if out == "" {
		out = pcapPath(args[0])
	}

	if _, err := os.Stat(out); err == nil && !exportForce {
		if !ui.IsTerminal(os.Stdin) {
			return fmt.Errorf("%s exists (use --force to overwrite)", out)
		}
		if !ui.Confirm(os.Stdin, os.Stdout, "Overwrite "+out, "The file already exists and will be replaced") {
			return nil
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	fh, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	stats, err := export.Export(ctx, in.src, fh)
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if ui.IsTerminal(os.Stdout) {
		ui.NewPrinter(os.Stdout).PrintSuccess("Export complete",
			ui.Param{Key: "Output", Value: out},
			ui.Param{Key: "Frames", Value: fmt.Sprint(stats.Frames)},
			ui.Param{Key: "Packets", Value: fmt.Sprint(stats.Packets)},
			ui.Param{Key: "Skipped", Value: fmt.Sprint(stats.Skipped)},
		)
		return nil
	}
	fmt.Printf("%s: %d packets from %d frames (%d skipped)\n", out, stats.Packets, stats.Frames, stats.Skipped)
	return nil
}
