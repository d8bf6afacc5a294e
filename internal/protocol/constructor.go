package protocol

import (
	"encoding/binary"
	"time"
)

// Record and message builders. They produce de-framed payloads exactly as
// the modem would emit them; wrap with diag.Encode for a wire stream.

// BuildRecord wraps body in a log record header.
//
// Record structure:
//
//	[0]      0x10        Command code (CmdLogRecord)
//	[1]      0x00        Reserved
//	[2-3]    length      Outer length (little-endian uint16)
//	[4-5]    length      Inner length, same value
//	[6-7]    log_code    Log code (little-endian uint16)
//	[8-15]   timestamp   1.25 ms ticks << 16 since the GPS epoch
//	[16+]    body
func BuildRecord(code LogCode, ts time.Time, body []byte) []byte {
	n := LogHeaderSize + len(body)
	b := make([]byte, RecordHeaderSize, RecordHeaderSize+len(body))
	b[0] = CmdLogRecord
	binary.LittleEndian.PutUint16(b[2:4], uint16(n))
	binary.LittleEndian.PutUint16(b[4:6], uint16(n))
	binary.LittleEndian.PutUint16(b[6:8], uint16(code))
	binary.LittleEndian.PutUint64(b[8:16], EncodeTimestamp(ts))
	return append(b, body...)
}

// BuildMessage encodes a TLV message body.
func BuildMessage(msgType byte, ies ...IE) []byte {
	b := []byte{0x01, msgType}
	for _, ie := range ies {
		b = append(b, EncodeIE(ie)...)
	}
	return b
}

// EncodeIE encodes one element. Values longer than 255 bytes are truncated.
func EncodeIE(ie IE) []byte {
	v := ie.Value
	if len(v) > 0xff {
		v = v[:0xff]
	}
	return append([]byte{ie.Tag, byte(len(v))}, v...)
}

// ByteIE is a single-octet element.
func ByteIE(tag byte, v uint8) IE { return IE{Tag: tag, Value: []byte{v}} }

func uint16IE(tag byte, v uint16) IE {
	return IE{Tag: tag, Value: binary.BigEndian.AppendUint16(nil, v)}
}

func uint32IE(tag byte, v uint32) IE {
	return IE{Tag: tag, Value: binary.BigEndian.AppendUint32(nil, v)}
}

// CellIEs describes c as a flat list of elements. A cell without a RAT
// inherits the RAT of the record it is carried in.
func CellIEs(c Cell) []IE {
	var ies []IE
	if c.RAT != RATUnknown {
		ies = append(ies, ByteIE(TagRAT, uint8(c.RAT)))
	}
	if c.PLMN.MCC != "" {
		ies = append(ies, IE{Tag: TagPLMN, Value: encodePLMN(c.PLMN)})
	}
	ies = append(ies, uint16IE(TagAreaCode, c.AreaCode), uint32IE(TagCellID, c.CellID))
	if c.Channel != 0 {
		ies = append(ies, uint32IE(TagChannel, c.Channel))
	}
	if c.PhysicalID != 0 {
		ies = append(ies, uint16IE(TagPhysicalID, c.PhysicalID))
	}
	return ies
}

// NestedIE wraps inner elements under tag.
func NestedIE(tag byte, inner ...IE) IE {
	var v []byte
	for _, ie := range inner {
		v = append(v, EncodeIE(ie)...)
	}
	return IE{Tag: tag, Value: v}
}

// rrcCode returns the RRC log code for rat.
func rrcCode(rat RAT) LogCode {
	switch rat {
	case RATGSM:
		return LogGSMRR
	case RATUMTS:
		return LogUMTSRRC
	default:
		return LogLTERRC
	}
}

// nasCode returns the NAS log code for rat. GSM NAS shares the UMTS log.
func nasCode(rat RAT) LogCode {
	if rat == RATLTE {
		return LogLTENASIncoming
	}
	return LogUMTSNAS
}

func pick(rat RAT, lte, umts, gsm byte) byte {
	switch rat {
	case RATGSM:
		return gsm
	case RATUMTS:
		return umts
	default:
		return lte
	}
}

// BuildCellInfo builds a system information record for the serving cell.
func BuildCellInfo(ts time.Time, c Cell) []byte {
	msg := BuildMessage(pick(c.RAT, LTERRCSystemInformation, UMTSRRCSystemInformation, GSMRRSystemInfoType3), CellIEs(c)...)
	return BuildRecord(rrcCode(c.RAT), ts, msg)
}

// BuildServingCellInfo builds a version 3 LTE serving cell info record.
func BuildServingCellInfo(ts time.Time, info ServingCellInfo) []byte {
	return BuildRecord(LogLTEServingCell, ts, encodeServingCellInfo(info))
}

// BuildNeighborList builds a neighbor advertisement broadcast on rat.
func BuildNeighborList(ts time.Time, rat RAT, neighbors ...Cell) []byte {
	return BuildRecord(rrcCode(rat), ts, BuildMessage(
		pick(rat, LTERRCNeighborInfo, UMTSRRCNeighborInfo, GSMRRSystemInfoType2),
		cellList(neighbors)...))
}

// BuildMeasurementReport builds a measurement report sent on rat.
func BuildMeasurementReport(ts time.Time, rat RAT, cells ...Cell) []byte {
	return BuildRecord(rrcCode(rat), ts, BuildMessage(
		pick(rat, LTERRCMeasurementReport, UMTSRRCMeasurementReport, GSMRRMeasurementReport),
		cellList(cells)...))
}

func cellList(cells []Cell) []IE {
	ies := make([]IE, 0, len(cells))
	for _, c := range cells {
		ies = append(ies, NestedIE(TagNeighbor, CellIEs(c)...))
	}
	return ies
}

// BuildSecurityModeCommand builds an access-stratum security mode command.
// GSM ciphering mode commands carry no integrity algorithm; pass a negative
// integrity to omit it on other RATs.
func BuildSecurityModeCommand(ts time.Time, rat RAT, cipher uint8, integrity int) []byte {
	ies := []IE{ByteIE(TagCipher, cipher)}
	if integrity >= 0 && rat != RATGSM {
		ies = append(ies, ByteIE(TagIntegrity, uint8(integrity)))
	}
	msg := BuildMessage(pick(rat, LTERRCSecurityModeCmd, UMTSRRCSecurityModeCmd, GSMRRCipheringModeCmd), ies...)
	return BuildRecord(rrcCode(rat), ts, msg)
}

// BuildNASSecurityModeCommand builds an LTE NAS security mode command.
func BuildNASSecurityModeCommand(ts time.Time, cipher, integrity uint8) []byte {
	msg := BuildMessage(LTENASSecurityModeCommand, ByteIE(TagCipher, cipher), ByteIE(TagIntegrity, integrity))
	return BuildRecord(LogLTENASIncoming, ts, msg)
}

// BuildSecurityModeComplete builds the access-stratum completion.
func BuildSecurityModeComplete(ts time.Time, rat RAT) []byte {
	msg := BuildMessage(pick(rat, LTERRCSecurityModeDone, UMTSRRCSecurityModeDone, GSMRRCipheringModeDone))
	return BuildRecord(rrcCode(rat), ts, msg)
}

// BuildIdentityRequest builds a NAS identity request on rat.
func BuildIdentityRequest(ts time.Time, rat RAT, id IdentityType) []byte {
	msgType := byte(UMTSNASIdentityRequest)
	if rat == RATLTE {
		msgType = LTENASIdentityRequest
	}
	return BuildRecord(nasCode(rat), ts, BuildMessage(msgType, ByteIE(TagIdentityType, uint8(id))))
}

// BuildConnectionRelease builds an RRC release, optionally redirecting.
func BuildConnectionRelease(ts time.Time, rat RAT, cause uint8, redirect *Redirect) []byte {
	ies := []IE{ByteIE(TagCause, cause)}
	if redirect != nil {
		inner := []IE{ByteIE(TagRAT, uint8(redirect.RAT))}
		if redirect.Channel != 0 {
			inner = append(inner, uint32IE(TagChannel, redirect.Channel))
		}
		ies = append(ies, NestedIE(TagRedirect, inner...))
	}
	msg := BuildMessage(pick(rat, LTERRCConnectionRelease, UMTSRRCConnectionRelease, GSMRRChannelRelease), ies...)
	return BuildRecord(rrcCode(rat), ts, msg)
}

// BuildHandoverCommand builds a handover command sent on rat. A target on
// another RAT uses the inter-RAT mobility message.
func BuildHandoverCommand(ts time.Time, rat RAT, target Cell) []byte {
	msgType := pick(rat, LTERRCReconfiguration, UMTSRRCPhysChannelReconfig, GSMRRHandoverCommand)
	if target.RAT != RATUnknown && target.RAT != rat {
		msgType = pick(rat, LTERRCMobilityFromEUTRA, UMTSRRCHandoverFromUTRAN, GSMRRHandoverCommand)
	}
	msg := BuildMessage(msgType, NestedIE(TagTarget, CellIEs(target)...))
	return BuildRecord(rrcCode(rat), ts, msg)
}

// BuildHandoverComplete builds the handover completion sent on rat.
func BuildHandoverComplete(ts time.Time, rat RAT) []byte {
	msg := BuildMessage(pick(rat, LTERRCReconfigComplete, UMTSRRCPhysReconfigDone, GSMRRHandoverComplete))
	return BuildRecord(rrcCode(rat), ts, msg)
}

// BuildReselection builds an idle-mode reselection indication.
func BuildReselection(ts time.Time, rat RAT, target Cell) []byte {
	msg := BuildMessage(pick(rat, LTERRCReselection, UMTSRRCCellUpdate, GSMRRCellReselectionInd),
		NestedIE(TagTarget, CellIEs(target)...))
	return BuildRecord(rrcCode(rat), ts, msg)
}
