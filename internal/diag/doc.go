// Package diag de-frames the modem diagnostic byte stream.
//
// The diagnostic interface carries records in an HDLC-like envelope:
//   - Each frame ends with the delimiter 0x7e
//   - 0x7d escapes the following byte, which is XORed with 0x20
//   - The last two de-escaped bytes are a CRC-16/X.25, little-endian
//
// # Resynchronization
//
// A corrupt frame never terminates the stream. Checksum failures, short
// frames, dangling escapes and oversize frames are emitted as RawFrame values
// with a Fault set, and decoding resumes at the next delimiter. Bytes left
// over after the last delimiter of a read are carried to the next Feed call,
// so frames split across read boundaries decode normally. At end of stream a
// non-empty residual is reported as FaultTruncated.
//
// # Sources
//
// Reader adapts any io.Reader (a device node, a pipe, a dump file) into a
// Source. File is Replayable: each Open starts again from the beginning,
// which is what offline re-analysis relies on.
package diag
