// Package capture persists diagnostic frames and runs live capture
// sessions.
//
// # File format
//
// A capture file (.cwcap) starts with a header and JSON metadata, followed
// by length-prefixed records. All integers are little-endian.
//
//	"CWCAP\x00" | u16 version | u32 metadata length | metadata JSON
//	[u8 kind][u32 length][body] ...
//
// Frame records (kind 1) carry [u64 seq][i64 unix nanos][u8 fault][payload].
// The end record (kind 2) carries [u64 frame count][u8 end status] and is
// written when the session stops. A file cut short by a crash replays its
// partial last record as one truncated frame.
//
// File implements diag.Replayable, so a capture goes through the same
// analysis path as a raw DIAG dump:
//
//	c := analysis.NewCoordinator(analysis.Options{SessionID: meta.SessionID})
//	report, err := analysis.Replay(ctx, capture.File{Path: path}, c)
//
// # Live sessions
//
// Start spawns a producer goroutine that reads the device with a poll
// deadline, decodes frames and appends each one to the capture file before
// queueing it for the consumer goroutine, which runs the coordinator.
// Frames are never dropped. Stop drains the decoder, finalizes the capture
// file and the NDJSON analysis log, then closes the device and releases the
// device lock.
//
// A read failure ends the session with StatusStoppedDeviceError and a
// *DeviceError; the capture is still finalized. A failed write to the
// capture file ends it with StatusStoppedStorageError and a *StorageError,
// and the frame that could not be written is not analyzed, so the report
// only covers what the capture holds.
package capture
