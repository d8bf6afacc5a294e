package protocol

import (
	"encoding/binary"
	"fmt"
)

// LTE serving cell info (log code 0xB0C2) body sizes by version. Version 2
// firmware reports 16-bit EARFCNs, version 3 widened them to 32 bits.
const (
	ServingCellInfoV2Size = 25
	ServingCellInfoV3Size = 29
)

// ServingCellInfo is the fixed-layout serving cell record.
type ServingCellInfo struct {
	Version        uint8
	PhysicalID     uint16
	DownlinkEARFCN uint32
	UplinkEARFCN   uint32
	DownlinkBW     uint8
	UplinkBW       uint8
	CellID         uint32
	TAC            uint16
	Band           uint32
	MCC            uint16
	MNCDigits      uint8
	MNC            uint16
	AllowedAccess  uint8
}

// parseServingCellInfo reads the little-endian fixed layout. Trailing bytes
// beyond the known layout are ignored.
func parseServingCellInfo(meta Meta, body []byte) (*CellInfo, error) {
	if len(body) < 1 {
		return nil, faultf(ReasonTruncatedBody, "serving cell info is empty")
	}

	info := ServingCellInfo{Version: body[0]}
	var want int
	switch info.Version {
	case 2:
		want = ServingCellInfoV2Size
	case 3:
		want = ServingCellInfoV3Size
	default:
		return nil, faultf(ReasonFieldRange, "serving cell info version %d not supported", info.Version)
	}
	if len(body) < want {
		return nil, faultf(ReasonTruncatedBody, "serving cell info v%d too short: %d bytes (minimum %d)", info.Version, len(body), want)
	}

	le := binary.LittleEndian
	off := 1
	info.PhysicalID = le.Uint16(body[off:])
	off += 2
	if info.Version == 2 {
		info.DownlinkEARFCN = uint32(le.Uint16(body[off:]))
		info.UplinkEARFCN = uint32(le.Uint16(body[off+2:]))
		off += 4
	} else {
		info.DownlinkEARFCN = le.Uint32(body[off:])
		info.UplinkEARFCN = le.Uint32(body[off+4:])
		off += 8
	}
	info.DownlinkBW = body[off]
	info.UplinkBW = body[off+1]
	off += 2
	info.CellID = le.Uint32(body[off:])
	off += 4
	info.TAC = le.Uint16(body[off:])
	off += 2
	info.Band = le.Uint32(body[off:])
	off += 4
	info.MCC = le.Uint16(body[off:])
	off += 2
	info.MNCDigits = body[off]
	off++
	info.MNC = le.Uint16(body[off:])
	off += 2
	info.AllowedAccess = body[off]

	if info.PhysicalID > 503 {
		return nil, faultf(ReasonFieldRange, "PCI %d out of range", info.PhysicalID)
	}
	if info.CellID > 0x0fffffff {
		return nil, faultf(ReasonFieldRange, "LTE cell id 0x%x exceeds 28 bits", info.CellID)
	}
	if info.MCC > 999 {
		return nil, faultf(ReasonFieldRange, "MCC %d out of range", info.MCC)
	}
	if info.MNCDigits != 2 && info.MNCDigits != 3 {
		return nil, faultf(ReasonFieldRange, "MNC digit count %d out of range", info.MNCDigits)
	}
	if (info.MNCDigits == 2 && info.MNC > 99) || info.MNC > 999 {
		return nil, faultf(ReasonFieldRange, "MNC %d does not fit %d digits", info.MNC, info.MNCDigits)
	}

	plmn := PLMN{
		MCC: fmt.Sprintf("%03d", info.MCC),
		MNC: fmt.Sprintf("%0*d", int(info.MNCDigits), info.MNC),
	}
	cell := Cell{
		CellIdentity: CellIdentity{RAT: RATLTE, PLMN: plmn, AreaCode: info.TAC, CellID: info.CellID},
		Channel:      info.DownlinkEARFCN,
		PhysicalID:   info.PhysicalID,
	}
	return &CellInfo{Meta: meta, Domain: DomainPS, Cell: cell}, nil
}

// encodeServingCellInfo builds a version 3 body.
func encodeServingCellInfo(info ServingCellInfo) []byte {
	b := make([]byte, ServingCellInfoV3Size)
	le := binary.LittleEndian
	b[0] = 3
	le.PutUint16(b[1:], info.PhysicalID)
	le.PutUint32(b[3:], info.DownlinkEARFCN)
	le.PutUint32(b[7:], info.UplinkEARFCN)
	b[11] = info.DownlinkBW
	b[12] = info.UplinkBW
	le.PutUint32(b[13:], info.CellID)
	le.PutUint16(b[17:], info.TAC)
	le.PutUint32(b[19:], info.Band)
	le.PutUint16(b[23:], info.MCC)
	b[25] = info.MNCDigits
	le.PutUint16(b[26:], info.MNC)
	b[28] = info.AllowedAccess
	return b
}
