package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/discovery"
	"github.com/muurk/cellwatch/internal/logging"
	"github.com/muurk/cellwatch/internal/server"
	"github.com/muurk/cellwatch/internal/version"
)

// Serve command flags
var (
	serveListen    string
	serveDevice    string
	serveDir       string
	serveOrigins   []string
	serveAdvertise bool
	serveInstance  string
	serveLive      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP status surface",
	Long: `Serve capture status, reports and a live warning stream over HTTP.

Routes:
  GET  /api/status                 manager state and the live session
  GET  /api/report                 live report of the running capture
  GET  /api/captures               finished captures
  GET  /api/captures/{name}/report report of a finished capture
  GET  /api/captures/{name}/pcap   GSMTAP pcap export of a capture
  POST /api/capture/start          start a live capture
  POST /api/capture/stop           stop it and return the final report
  GET  /api/warnings/stream        WebSocket stream of live warnings

With --advertise the daemon announces itself over mDNS so 'cellwatch
discover' can find it.`,
	Example: `  # Local status surface
  cellwatch serve

  # Reachable on the LAN, announced over mDNS, capturing right away
  cellwatch serve --listen :8080 --advertise --start`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides server.listen)")
	serveCmd.Flags().StringVar(&serveDevice, "device", "", "Diagnostic device path (overrides device.path)")
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "Capture directory (overrides capture.dir)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "Allowed browser origin for CORS and WebSocket (repeatable)")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Announce the daemon over mDNS (overrides server.advertise)")
	serveCmd.Flags().StringVar(&serveInstance, "instance", "", "mDNS instance name (default cellwatch-<hostname>)")
	serveCmd.Flags().BoolVar(&serveLive, "start", false, "Start a live capture immediately")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if len(serveOrigins) > 0 {
		cfg.Server.AllowedOrigins = serveOrigins
	}
	if cmd.Flags().Changed("advertise") {
		cfg.Server.Advertise = serveAdvertise
	}
	if serveInstance != "" {
		cfg.Server.Instance = serveInstance
	}

	mgr, err := newManager(serveDevice, serveDir)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	listener, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Listen, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Printf("cellwatch %s serving on http://%s\n", version.Version, listener.Addr())

	if cfg.Server.Advertise {
		ad, err := discovery.Advertise(cfg.Server.Instance, port, map[string]string{
			"version": version.ToolVersion(),
			"device":  cfg.DeviceIdentity(),
			"api":     "/api",
		})
		if err != nil {
			listener.Close()
			return err
		}
		defer ad.Shutdown()
	}

	if serveLive {
		s, err := mgr.StartLive(ctx)
		if err != nil {
			listener.Close()
			return fmt.Errorf("failed to start live capture: %w", err)
		}
		logging.Info("Live capture started", zap.String("session", s.ID()), zap.String("file", s.Path()))
	}

	srv := server.New(server.Config{
		Listen:         cfg.Server.Listen,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, mgr)
	return srv.Serve(ctx, listener)
}
