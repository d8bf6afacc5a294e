package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Diagnostic command codes
const (
	CmdLogRecord = 0x10
)

// Log record header layout
const (
	RecordHeaderSize = 16 // cmd + reserved + outer len + inner len + log code + timestamp
	LogHeaderSize    = 12 // inner len + log code + timestamp, counted by the inner length
	MessageHeaderLen = 2  // version + message type of a TLV message body
)

// LogCode identifies the log record type and selects the body schema.
type LogCode uint16

const (
	LogLTERRC         LogCode = 0xB0C0
	LogLTEServingCell LogCode = 0xB0C2
	LogLTENASIncoming LogCode = 0xB0EC
	LogLTENASOutgoing LogCode = 0xB0ED
	LogUMTSRRC        LogCode = 0x412F
	LogUMTSNAS        LogCode = 0x713A
	LogGSMRR          LogCode = 0x512F
)

func (c LogCode) String() string { return fmt.Sprintf("0x%04X", uint16(c)) }

func (c LogCode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// gpsEpoch is the origin of diagnostic timestamps.
var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

const ticksPerSecond = 800 // 1.25 ms per tick

// DecodeTimestamp converts a record timestamp. The upper 48 bits count
// 1.25 ms ticks since the GPS epoch; the low 16 bits are a sub-tick chip
// counter that is ignored.
func DecodeTimestamp(raw uint64) time.Time {
	ticks := raw >> 16
	sec := int64(ticks / ticksPerSecond)
	nsec := int64(ticks%ticksPerSecond) * int64(time.Second/ticksPerSecond)
	return time.Unix(gpsEpoch.Unix()+sec, nsec).UTC()
}

// EncodeTimestamp is the inverse of DecodeTimestamp, truncating to a tick.
func EncodeTimestamp(t time.Time) uint64 {
	if t.Before(gpsEpoch) {
		return 0
	}
	d := t.Sub(gpsEpoch)
	ticks := uint64(d / (time.Second / ticksPerSecond))
	return ticks << 16
}

// Record is a parsed log record header with its body
type Record struct {
	Command   byte
	LogCode   LogCode
	Timestamp time.Time
	Body      []byte // exactly the declared body, never the trailing bytes
	Raw       []byte
}

// ParseRecord validates the log record header. Payloads carrying another
// diagnostic command are returned with only Command and Raw set.
func ParseRecord(payload []byte) (*Record, error) {
	if len(payload) == 0 {
		return nil, faultf(ReasonShortHeader, "empty payload")
	}
	if payload[0] != CmdLogRecord {
		return &Record{Command: payload[0], Raw: payload}, nil
	}
	if len(payload) < RecordHeaderSize {
		return nil, faultf(ReasonShortHeader, "log record too short: %d bytes (minimum %d)", len(payload), RecordHeaderSize)
	}

	outer := binary.LittleEndian.Uint16(payload[2:4])
	inner := binary.LittleEndian.Uint16(payload[4:6])
	if outer != inner {
		return nil, faultf(ReasonLengthMismatch, "outer length %d does not match inner length %d", outer, inner)
	}
	if inner < LogHeaderSize {
		return nil, faultf(ReasonLengthMismatch, "inner length %d below log header size %d", inner, LogHeaderSize)
	}
	end := 4 + int(inner)
	if end > len(payload) {
		return nil, faultf(ReasonTruncatedBody, "declared record length %d exceeds payload %d", end, len(payload))
	}

	return &Record{
		Command:   payload[0],
		LogCode:   LogCode(binary.LittleEndian.Uint16(payload[6:8])),
		Timestamp: DecodeTimestamp(binary.LittleEndian.Uint64(payload[8:16])),
		Body:      payload[RecordHeaderSize:end],
		Raw:       payload,
	}, nil
}
