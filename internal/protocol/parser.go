package protocol

import (
	"errors"

	"github.com/muurk/cellwatch/internal/diag"
)

// Decode maps a frame to an event. It never fails: transport faults and
// malformed records become DecodeError events, records without a schema
// become Unknown events.
func Decode(frame diag.RawFrame) Event {
	meta := Meta{
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp,
		Raw:       frame.Payload,
	}

	if !frame.OK() {
		return &DecodeError{
			Meta:   meta,
			Reason: reasonForFault(frame.Fault),
			Detail: "frame failed transport validation: " + frame.Fault.String(),
		}
	}

	rec, err := ParseRecord(frame.Payload)
	if err != nil {
		return decodeError(meta, err)
	}
	if rec.Command != CmdLogRecord {
		return &Unknown{Meta: meta, Command: rec.Command}
	}

	meta.LogCode = rec.LogCode
	meta.Timestamp = rec.Timestamp
	meta.RAT = SchemaRAT(rec.LogCode)

	ev, err := rec.ParseEvent(meta)
	if err != nil {
		return decodeError(ev.Header(), err)
	}
	return ev
}

func decodeError(meta Meta, err error) *DecodeError {
	var fe *FieldError
	if errors.As(err, &fe) {
		return &DecodeError{Meta: meta, Reason: fe.Reason, Detail: fe.Detail}
	}
	return &DecodeError{Meta: meta, Reason: ReasonFieldRange, Detail: err.Error()}
}

// ParseEvent decodes the record body according to its log code schema.
// On error the returned event is an Unknown carrying the meta that was
// resolved before the failure.
func (r *Record) ParseEvent(meta Meta) (Event, error) {
	if r.LogCode == LogLTEServingCell {
		meta.MessageName = "ServingCellInfo"
		ev, err := parseServingCellInfo(meta, r.Body)
		if err != nil {
			return &Unknown{Meta: meta, Command: r.Command}, err
		}
		return ev, nil
	}

	s, ok := schemas[r.LogCode]
	if !ok {
		return &Unknown{Meta: meta, Command: r.Command}, nil
	}
	meta.Layer = s.layer

	if len(r.Body) < MessageHeaderLen {
		return &Unknown{Meta: meta, Command: r.Command},
			faultf(ReasonTruncatedBody, "message body too short: %d bytes (minimum %d)", len(r.Body), MessageHeaderLen)
	}
	meta.MessageType = r.Body[1]

	spec, ok := s.messages[meta.MessageType]
	if !ok {
		return &Unknown{Meta: meta, Command: r.Command}, nil
	}
	meta.MessageName = spec.name

	ies, err := parseIEs(r.Body[MessageHeaderLen:])
	if err != nil {
		return &Unknown{Meta: meta, Command: r.Command}, err
	}

	ev, err := parseMessage(spec.kind, s, meta, ies)
	if err != nil {
		return &Unknown{Meta: meta, Command: r.Command}, err
	}
	return ev, nil
}

// parseMessage builds the concrete event for a recognized message
func parseMessage(kind Kind, s *schema, meta Meta, ies ieList) (Event, error) {
	switch kind {
	case KindCellInfo:
		return parseCellInfo(s, meta, ies)
	case KindNeighborList:
		cells, err := ies.cells(TagNeighbor, s.rat)
		if err != nil {
			return nil, err
		}
		return &NeighborList{Meta: meta, Neighbors: cells}, nil
	case KindMeasurementReport:
		cells, err := ies.cells(TagNeighbor, s.rat)
		if err != nil {
			return nil, err
		}
		return &MeasurementReport{Meta: meta, Cells: cells}, nil
	case KindSecurityModeCommand:
		return parseSecurityModeCommand(meta, ies)
	case KindSecurityModeComplete:
		return &SecurityModeComplete{Meta: meta}, nil
	case KindIdentityRequest:
		return parseIdentityRequest(meta, ies)
	case KindConnectionRelease:
		return parseConnectionRelease(meta, ies)
	case KindHandoverCommand:
		target, err := parseTarget(s, ies)
		if err != nil {
			return nil, err
		}
		return &HandoverCommand{Meta: meta, Target: target}, nil
	case KindHandoverComplete:
		return &HandoverComplete{Meta: meta}, nil
	case KindReselection:
		target, err := parseTarget(s, ies)
		if err != nil {
			return nil, err
		}
		return &Reselection{Meta: meta, Target: target}, nil
	default:
		return &Unknown{Meta: meta}, nil
	}
}

func parseCellInfo(s *schema, meta Meta, ies ieList) (*CellInfo, error) {
	if _, ok := ies.first(TagCellID); !ok {
		return nil, faultf(ReasonMissingIE, "%s without cell identity", meta.MessageName)
	}
	if _, ok := ies.first(TagAreaCode); !ok {
		return nil, faultf(ReasonMissingIE, "%s without area code", meta.MessageName)
	}
	cell, err := ies.cell(s.rat)
	if err != nil {
		return nil, err
	}
	if cell.RAT != s.rat {
		return nil, faultf(ReasonFieldRange, "%s cell info carried on %s records", cell.RAT, s.rat)
	}

	domain := s.domain
	v, ok, err := ies.u8(TagDomain, "domain")
	if err != nil {
		return nil, err
	}
	if ok {
		if v > uint8(DomainPS) {
			return nil, faultf(ReasonFieldRange, "domain %d out of range", v)
		}
		domain = Domain(v)
	}
	return &CellInfo{Meta: meta, Domain: domain, Cell: cell}, nil
}

func parseSecurityModeCommand(meta Meta, ies ieList) (*SecurityModeCommand, error) {
	cipher, ok, err := ies.algorithm(TagCipher, "cipher")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faultf(ReasonMissingIE, "security mode command without cipher algorithm")
	}
	integrity, hasIntegrity, err := ies.algorithm(TagIntegrity, "integrity")
	if err != nil {
		return nil, err
	}
	return &SecurityModeCommand{
		Meta:         meta,
		Cipher:       cipher,
		Integrity:    integrity,
		HasIntegrity: hasIntegrity,
	}, nil
}

func parseIdentityRequest(meta Meta, ies ieList) (*IdentityRequest, error) {
	v, ok, err := ies.u8(TagIdentityType, "identity type")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faultf(ReasonMissingIE, "identity request without identity type")
	}
	// only the low three bits are the type of identity
	id := IdentityType(v & 0x07)
	if id < IdentityIMSI || id > IdentityTMSI {
		return nil, faultf(ReasonFieldRange, "identity type %d out of range", id)
	}
	return &IdentityRequest{Meta: meta, Identity: id}, nil
}

func parseConnectionRelease(meta Meta, ies ieList) (*ConnectionRelease, error) {
	cause, _, err := ies.u8(TagCause, "cause")
	if err != nil {
		return nil, err
	}
	ev := &ConnectionRelease{Meta: meta, Cause: cause}

	if v, ok := ies.first(TagRedirect); ok {
		inner, err := parseIEs(v)
		if err != nil {
			return nil, err
		}
		rat, ok, err := inner.rat(TagRAT)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, faultf(ReasonMissingIE, "redirect without RAT")
		}
		channel, _, err := inner.u32(TagChannel, "redirect channel")
		if err != nil {
			return nil, err
		}
		ev.Redirect = &Redirect{RAT: rat, Channel: channel}
	}
	return ev, nil
}

func parseTarget(s *schema, ies ieList) (Cell, error) {
	v, ok := ies.first(TagTarget)
	if !ok {
		return Cell{}, faultf(ReasonMissingIE, "mobility command without target cell")
	}
	return nestedCell(v, s.rat)
}
