// Package server exposes a capture manager over HTTP.
//
// # Routes
//
//	GET  /api/status                 manager state: live session, queued, running and finished replays
//	GET  /api/report                 incremental report of the live session
//	GET  /api/captures               capture files, oldest first
//	GET  /api/captures/{name}/report report of a capture, replayed on first request
//	GET  /api/captures/{name}/pcap   GSMTAP pcap export of a capture
//	POST /api/capture/start          open the diagnostic device and start capturing
//	POST /api/capture/stop           stop the live session, returns its final report
//	GET  /api/warnings/stream        WebSocket, one JSON message per live warning
//
// Errors are JSON objects with a single "error" field. A start request that
// cannot get the device within Config.StartTimeout answers 409; a device
// that fails to open answers 503.
//
// # Warning stream
//
// The stream follows the session that is running when it connects. Each
// warning is sent as a text message; the server closes the stream with a
// normal closure when the session stops. A client too slow to keep up
// misses warnings rather than stalling the capture; the report always
// has all of them.
//
// # Usage Example
//
//	mgr, err := capture.NewManager(cfg.ManagerOptions(version.ToolVersion()))
//	if err != nil {
//	    return err
//	}
//	srv := server.New(server.Config{Listen: ":8080"}, mgr)
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return srv.Start(ctx)
package server
