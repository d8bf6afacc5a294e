package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/cellwatch/internal/discovery"
)

var discoverTimeout time.Duration

// discoverCmd finds daemons on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find cellwatch daemons on the local network",
	Long: `Browse mDNS for cellwatch daemons started with 'cellwatch serve --advertise'
and print their addresses and metadata.`,
	Example: `  # Scan for 5 seconds (default)
  cellwatch discover

  # Longer scan for busy networks
  cellwatch discover --timeout 15s`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for cellwatch daemons (timeout: %s)...\n\n", discoverTimeout)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout
	daemons, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(daemons) == 0 {
		fmt.Println("No daemons found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Start the daemon with 'cellwatch serve --advertise'")
		fmt.Println("  - Make sure both machines are on the same network segment")
		fmt.Println("  - Multicast DNS (UDP 5353) must not be blocked by a firewall")
		fmt.Println("  - Try increasing --timeout")
		return nil
	}

	fmt.Printf("Found %d daemon(s):\n\n", len(daemons))
	for i, d := range daemons {
		fmt.Printf("%d. %s\n", i+1, d.Instance)
		fmt.Printf("   URL:     %s\n", d.BaseURL())
		fmt.Printf("   Host:    %s\n", d.Hostname)
		if v := d.GetMetadata("version"); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		if dev := d.GetMetadata("device"); dev != "" {
			fmt.Printf("   Device:  %s\n", dev)
		}
		fmt.Println()
	}
	fmt.Println("Use 'curl <URL>/api/status' to query a daemon")
	return nil
}
