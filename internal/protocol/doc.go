// Package protocol decodes diagnostic log records into control-plane events.
//
// Every intact frame from package diag carries one diagnostic response.
// Responses other than log records (command code 0x10) are preserved as
// Unknown events. Log records are selected by log code into a RAT-specific
// schema and decoded into one of the concrete Event types.
//
// # Record Overview
//
// Log records have a fixed little-endian header:
//   - Command code: 0x10
//   - Reserved byte
//   - Outer length and inner length: 2 bytes each, must agree
//   - Log code: 2 bytes, selects the schema
//   - Timestamp: 8 bytes, 1.25 ms ticks since the GPS epoch in the upper 48 bits
//   - Body: exactly inner length minus 12 bytes
//
// # Schemas
//
// The supported log codes are:
//   - 0xB0C0: LTE RRC OTA messages
//   - 0xB0C2: LTE serving cell info (fixed layout, versions 2 and 3)
//   - 0xB0EC, 0xB0ED: LTE NAS EMM messages
//   - 0x412F: UMTS RRC signalling
//   - 0x713A: UMTS/GSM NAS (MM and GMM)
//   - 0x512F: GSM RR signalling
//
// TLV message bodies start with a version byte and a message type, followed
// by information elements of the form [tag][length][value]. Cell descriptions
// nest inside neighbor, target and redirect elements using the same
// encoding. Elements with unknown tags are skipped by their length, so
// firmware that adds elements stays decodable.
//
// # Failure Handling
//
// Decode never returns an error and never panics on hostile input:
//   - Unknown log codes and message types yield Unknown with the raw bytes
//   - Length mismatches, truncated elements, wrong element sizes, missing
//     mandatory elements and out-of-range values yield DecodeError with a
//     Reason
//   - Frames that failed transport validation yield DecodeError as well
//
// # Usage Example - Decoding
//
//	src := diag.NewReader(f, diag.ZeroClock)
//	for {
//	    frame, err := src.Next()
//	    if err != nil {
//	        break
//	    }
//	    switch ev := protocol.Decode(frame).(type) {
//	    case *protocol.SecurityModeCommand:
//	        fmt.Println("cipher", protocol.CipherName(ev.RAT, ev.Cipher))
//	    case *protocol.DecodeError:
//	        fmt.Println("bad record:", ev.Reason)
//	    }
//	}
//
// # Usage Example - Building
//
// The Build* functions produce payloads identical to modem output and are
// used to construct fixtures:
//
//	payload := protocol.BuildCellInfo(ts, protocol.Cell{...})
//	wire := diag.Encode(payload)
package protocol
