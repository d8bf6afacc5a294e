// Package analysis coordinates one capture session.
//
// A Coordinator owns the session tracker and the analyzer list built from
// configuration. Each frame goes through the same three steps, strictly in
// arrival order:
//
//  1. protocol.Decode turns the frame into an event (never fails)
//  2. the tracker applies the event to the session state
//  3. every enabled analyzer evaluates the event once
//
// Warnings are appended to the report, written to the optional Sink (the
// NDJSON analysis log) and published to live subscribers through the
// Broadcaster.
//
// # Reports
//
// Report holds no wall clock data. Replaying the same capture with the same
// analyzer configuration produces byte-identical JSON:
//
//	c := analysis.NewCoordinator(analysis.Options{
//	    SessionID: id,
//	    Analyzers: heuristic.DefaultConfig(),
//	})
//	report, err := analysis.Replay(ctx, diag.File{Path: path}, c)
//
// # Session IDs
//
// Captures carry device identity and start time in their metadata; SessionID
// hashes both, so a replayed capture keeps its id. Raw DIAG dumps have no
// metadata and use RawSessionID over their first 4 KiB.
package analysis
