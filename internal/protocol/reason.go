package protocol

import (
	"fmt"

	"github.com/muurk/cellwatch/internal/diag"
)

// Reason classifies a decode failure.
type Reason uint8

const (
	ReasonNone Reason = iota

	// transport faults
	ReasonChecksum
	ReasonTruncatedFrame
	ReasonOversizeFrame
	ReasonBadEscape
	ReasonShortFrame

	// record and message faults
	ReasonShortHeader
	ReasonLengthMismatch
	ReasonTruncatedBody
	ReasonTruncatedIE
	ReasonFieldLength
	ReasonFieldRange
	ReasonMissingIE
)

var reasonNames = map[Reason]string{
	ReasonNone:           "none",
	ReasonChecksum:       "checksum_mismatch",
	ReasonTruncatedFrame: "truncated_frame",
	ReasonOversizeFrame:  "oversize_frame",
	ReasonBadEscape:      "bad_escape",
	ReasonShortFrame:     "short_frame",
	ReasonShortHeader:    "short_header",
	ReasonLengthMismatch: "length_mismatch",
	ReasonTruncatedBody:  "truncated_body",
	ReasonTruncatedIE:    "truncated_ie",
	ReasonFieldLength:    "field_length",
	ReasonFieldRange:     "field_out_of_range",
	ReasonMissingIE:      "missing_ie",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Transport reports whether the reason came from frame validation rather
// than message decoding.
func (r Reason) Transport() bool {
	return r >= ReasonChecksum && r <= ReasonShortFrame
}

// reasonForFault maps a frame fault onto the decode reason taxonomy.
func reasonForFault(f diag.Fault) Reason {
	switch f {
	case diag.FaultChecksum:
		return ReasonChecksum
	case diag.FaultTruncated:
		return ReasonTruncatedFrame
	case diag.FaultOversize:
		return ReasonOversizeFrame
	case diag.FaultBadEscape:
		return ReasonBadEscape
	case diag.FaultTooShort:
		return ReasonShortFrame
	default:
		return ReasonNone
	}
}

// FieldError is returned by the parse functions for recognized records that
// are structurally invalid.
type FieldError struct {
	Reason Reason
	Detail string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func faultf(reason Reason, format string, args ...any) *FieldError {
	return &FieldError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
