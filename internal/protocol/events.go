package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the concrete event types.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDecodeError
	KindCellInfo
	KindNeighborList
	KindMeasurementReport
	KindSecurityModeCommand
	KindSecurityModeComplete
	KindIdentityRequest
	KindConnectionRelease
	KindHandoverCommand
	KindHandoverComplete
	KindReselection
)

// GetKindName returns a human-readable name for an event kind
func GetKindName(k Kind) string {
	switch k {
	case KindUnknown:
		return "Unknown"
	case KindDecodeError:
		return "DecodeError"
	case KindCellInfo:
		return "CellInfo"
	case KindNeighborList:
		return "NeighborList"
	case KindMeasurementReport:
		return "MeasurementReport"
	case KindSecurityModeCommand:
		return "SecurityModeCommand"
	case KindSecurityModeComplete:
		return "SecurityModeComplete"
	case KindIdentityRequest:
		return "IdentityRequest"
	case KindConnectionRelease:
		return "ConnectionRelease"
	case KindHandoverCommand:
		return "HandoverCommand"
	case KindHandoverComplete:
		return "HandoverComplete"
	case KindReselection:
		return "Reselection"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) String() string { return GetKindName(k) }

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Meta is the envelope shared by every event. Raw references the frame
// payload; it is not copied.
type Meta struct {
	Seq         uint64
	Timestamp   time.Time
	LogCode     LogCode
	RAT         RAT
	Layer       Layer
	MessageType byte
	MessageName string
	Raw         []byte
}

// Header returns the envelope. It is promoted to every concrete event.
func (m Meta) Header() Meta { return m }

// Event is a decoded control-plane event
type Event interface {
	Kind() Kind
	Header() Meta
	String() string
}

// CellInfo reports the serving cell for one domain.
type CellInfo struct {
	Meta
	Domain Domain
	Cell   Cell
}

func (e *CellInfo) Kind() Kind { return KindCellInfo }

func (e *CellInfo) String() string {
	return fmt.Sprintf("CellInfo{seq=%d, domain=%s, cell=%s}", e.Seq, e.Domain, e.Cell)
}

// NeighborList is a broadcast advertisement of neighbor cells.
type NeighborList struct {
	Meta
	Neighbors []Cell
}

func (e *NeighborList) Kind() Kind { return KindNeighborList }

func (e *NeighborList) String() string {
	return fmt.Sprintf("NeighborList{seq=%d, rat=%s, neighbors=%s}", e.Seq, e.RAT, formatCells(e.Neighbors))
}

// MeasurementReport lists the cells the device measured.
type MeasurementReport struct {
	Meta
	Cells []Cell
}

func (e *MeasurementReport) Kind() Kind { return KindMeasurementReport }

func (e *MeasurementReport) String() string {
	return fmt.Sprintf("MeasurementReport{seq=%d, rat=%s, cells=%s}", e.Seq, e.RAT, formatCells(e.Cells))
}

// SecurityModeCommand selects ciphering and integrity algorithms.
// HasIntegrity is false on GSM, which has no integrity protection.
type SecurityModeCommand struct {
	Meta
	Cipher       uint8
	Integrity    uint8
	HasIntegrity bool
}

func (e *SecurityModeCommand) Kind() Kind { return KindSecurityModeCommand }

// NullCipher reports whether ciphering is disabled.
func (e *SecurityModeCommand) NullCipher() bool { return e.Cipher == AlgorithmNull }

// NullIntegrity reports whether integrity protection is disabled.
func (e *SecurityModeCommand) NullIntegrity() bool {
	return e.HasIntegrity && e.Integrity == AlgorithmNull
}

func (e *SecurityModeCommand) String() string {
	integrity := "none"
	if e.HasIntegrity {
		integrity = IntegrityName(e.RAT, e.Integrity)
	}
	return fmt.Sprintf("SecurityModeCommand{seq=%d, layer=%s, cipher=%s, integrity=%s}",
		e.Seq, e.Layer, CipherName(e.RAT, e.Cipher), integrity)
}

// SecurityModeComplete confirms the security context.
type SecurityModeComplete struct {
	Meta
}

func (e *SecurityModeComplete) Kind() Kind { return KindSecurityModeComplete }

func (e *SecurityModeComplete) String() string {
	return fmt.Sprintf("SecurityModeComplete{seq=%d, rat=%s, layer=%s}", e.Seq, e.RAT, e.Layer)
}

// IdentityRequest is a network solicitation of a device identity.
type IdentityRequest struct {
	Meta
	Identity IdentityType
}

func (e *IdentityRequest) Kind() Kind { return KindIdentityRequest }

func (e *IdentityRequest) String() string {
	return fmt.Sprintf("IdentityRequest{seq=%d, rat=%s, identity=%s}", e.Seq, e.RAT, e.Identity)
}

// Redirect is the carrier a release steers the device to.
type Redirect struct {
	RAT     RAT
	Channel uint32
}

// ConnectionRelease ends the connection, optionally redirecting the device.
type ConnectionRelease struct {
	Meta
	Cause    uint8
	Redirect *Redirect
}

func (e *ConnectionRelease) Kind() Kind { return KindConnectionRelease }

func (e *ConnectionRelease) String() string {
	if e.Redirect != nil {
		return fmt.Sprintf("ConnectionRelease{seq=%d, cause=%d, redirect=%s ch=%d}",
			e.Seq, e.Cause, e.Redirect.RAT, e.Redirect.Channel)
	}
	return fmt.Sprintf("ConnectionRelease{seq=%d, cause=%d}", e.Seq, e.Cause)
}

// HandoverCommand orders the device to another cell, possibly on another RAT.
type HandoverCommand struct {
	Meta
	Target Cell
}

func (e *HandoverCommand) Kind() Kind { return KindHandoverCommand }

func (e *HandoverCommand) String() string {
	return fmt.Sprintf("HandoverCommand{seq=%d, target=%s}", e.Seq, e.Target)
}

// HandoverComplete confirms arrival on the handover target.
type HandoverComplete struct {
	Meta
}

func (e *HandoverComplete) Kind() Kind { return KindHandoverComplete }

func (e *HandoverComplete) String() string {
	return fmt.Sprintf("HandoverComplete{seq=%d, rat=%s}", e.Seq, e.RAT)
}

// Reselection reports an idle-mode move to another cell.
type Reselection struct {
	Meta
	Target Cell
}

func (e *Reselection) Kind() Kind { return KindReselection }

func (e *Reselection) String() string {
	return fmt.Sprintf("Reselection{seq=%d, target=%s}", e.Seq, e.Target)
}

// Unknown preserves records with no schema.
type Unknown struct {
	Meta
	Command byte
}

func (e *Unknown) Kind() Kind { return KindUnknown }

func (e *Unknown) String() string {
	return fmt.Sprintf("Unknown{seq=%d, cmd=0x%02x, log_code=%s, type=0x%02x, len=%d}",
		e.Seq, e.Command, e.LogCode, e.MessageType, len(e.Raw))
}

// DecodeError marks a frame or record that failed validation.
type DecodeError struct {
	Meta
	Reason Reason
	Detail string
}

func (e *DecodeError) Kind() Kind { return KindDecodeError }

func (e *DecodeError) String() string {
	return fmt.Sprintf("DecodeError{seq=%d, reason=%s, detail=%q, len=%d}", e.Seq, e.Reason, e.Detail, len(e.Raw))
}

func formatCells(cells []Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
