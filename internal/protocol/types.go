package protocol

import (
	"fmt"
	"strings"
)

// RAT identifies a radio access technology.
type RAT uint8

const (
	RATUnknown RAT = iota
	RATGSM
	RATUMTS
	RATLTE
)

func (r RAT) String() string {
	switch r {
	case RATGSM:
		return "GSM"
	case RATUMTS:
		return "UMTS"
	case RATLTE:
		return "LTE"
	default:
		return "unknown"
	}
}

// Generation returns the marketing generation (2, 3, 4), or 0 when unknown.
func (r RAT) Generation() int {
	switch r {
	case RATGSM:
		return 2
	case RATUMTS:
		return 3
	case RATLTE:
		return 4
	default:
		return 0
	}
}

// WeakerThan reports whether r offers weaker air-interface security than o.
// Unknown RATs compare as neither weaker nor stronger.
func (r RAT) WeakerThan(o RAT) bool {
	if r == RATUnknown || o == RATUnknown {
		return false
	}
	return r.Generation() < o.Generation()
}

func (r RAT) valid() bool { return r >= RATGSM && r <= RATLTE }

func (r RAT) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Layer is the control-plane protocol layer a record was captured at.
type Layer uint8

const (
	LayerRRC Layer = iota // RRC, or RR on GSM
	LayerNAS
)

func (l Layer) String() string {
	if l == LayerNAS {
		return "NAS"
	}
	return "RRC"
}

// Domain is the core-network domain a serving-cell context belongs to.
type Domain uint8

const (
	DomainCS Domain = iota
	DomainPS
)

func (d Domain) String() string {
	if d == DomainPS {
		return "PS"
	}
	return "CS"
}

func (d Domain) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// PLMN is a public land mobile network identifier.
type PLMN struct {
	MCC string `json:"mcc"`
	MNC string `json:"mnc"`
}

func (p PLMN) String() string {
	if p.MCC == "" {
		return "-"
	}
	return p.MCC + "-" + p.MNC
}

// decodePLMN reads the three-octet BCD encoding of 3GPP TS 24.008 10.5.1.3.
func decodePLMN(b []byte) (PLMN, error) {
	if len(b) != 3 {
		return PLMN{}, faultf(ReasonFieldLength, "PLMN is %d bytes (want 3)", len(b))
	}
	mcc1, mcc2 := b[0]&0x0f, b[0]>>4
	mcc3, mnc3 := b[1]&0x0f, b[1]>>4
	mnc1, mnc2 := b[2]&0x0f, b[2]>>4

	for _, d := range []byte{mcc1, mcc2, mcc3, mnc1, mnc2} {
		if d > 9 {
			return PLMN{}, faultf(ReasonFieldRange, "PLMN digit 0x%x is not BCD", d)
		}
	}
	if mnc3 > 9 && mnc3 != 0x0f {
		return PLMN{}, faultf(ReasonFieldRange, "PLMN digit 0x%x is not BCD", mnc3)
	}

	p := PLMN{
		MCC: fmt.Sprintf("%d%d%d", mcc1, mcc2, mcc3),
		MNC: fmt.Sprintf("%d%d", mnc1, mnc2),
	}
	if mnc3 != 0x0f {
		p.MNC += fmt.Sprintf("%d", mnc3)
	}
	return p, nil
}

// encodePLMN is the inverse of decodePLMN. Non-digit input is encoded as 0.
func encodePLMN(p PLMN) []byte {
	digit := func(s string, i int) byte {
		if i >= len(s) || s[i] < '0' || s[i] > '9' {
			return 0
		}
		return s[i] - '0'
	}
	mnc3 := byte(0x0f)
	if len(p.MNC) == 3 {
		mnc3 = digit(p.MNC, 2)
	}
	return []byte{
		digit(p.MCC, 1)<<4 | digit(p.MCC, 0),
		mnc3<<4 | digit(p.MCC, 2),
		digit(p.MNC, 1)<<4 | digit(p.MNC, 0),
	}
}

// CellIdentity locates a cell in the network topology. It is comparable
// and used as a map key.
type CellIdentity struct {
	RAT      RAT    `json:"rat"`
	PLMN     PLMN   `json:"plmn"`
	AreaCode uint16 `json:"area_code"` // TAC on LTE, LAC on GSM/UMTS
	CellID   uint32 `json:"cell_id"`
}

func (c CellIdentity) String() string {
	return fmt.Sprintf("%s/%s/%d/%d", c.RAT, c.PLMN, c.AreaCode, c.CellID)
}

// Cell is a cell description as carried in cell info, neighbor lists,
// measurement reports and mobility commands. Neighbor entries often carry
// only the channel and physical identity.
type Cell struct {
	CellIdentity
	Channel    uint32 `json:"channel,omitempty"`     // ARFCN, UARFCN or EARFCN
	PhysicalID uint16 `json:"physical_id,omitempty"` // BSIC, PSC or PCI
}

// Identity returns the topology part of the description.
func (c Cell) Identity() CellIdentity { return c.CellIdentity }

// Matches reports whether two descriptions plausibly name the same cell.
func (c Cell) Matches(o Cell) bool {
	if c.RAT != o.RAT {
		return false
	}
	if c.CellID != 0 && o.CellID != 0 {
		return c.CellID == o.CellID
	}
	return c.Channel != 0 && c.Channel == o.Channel && c.PhysicalID == o.PhysicalID
}

func (c Cell) String() string {
	var b strings.Builder
	b.WriteString(c.CellIdentity.String())
	if c.Channel != 0 {
		fmt.Fprintf(&b, " ch=%d", c.Channel)
	}
	if c.PhysicalID != 0 {
		fmt.Fprintf(&b, " pid=%d", c.PhysicalID)
	}
	return b.String()
}

// IdentityType is the "type of identity" of TS 24.008 10.5.5.9 / TS 24.301.
type IdentityType uint8

const (
	IdentityIMSI   IdentityType = 1
	IdentityIMEI   IdentityType = 2
	IdentityIMEISV IdentityType = 3
	IdentityTMSI   IdentityType = 4
)

func (t IdentityType) String() string {
	switch t {
	case IdentityIMSI:
		return "IMSI"
	case IdentityIMEI:
		return "IMEI"
	case IdentityIMEISV:
		return "IMEISV"
	case IdentityTMSI:
		return "TMSI"
	default:
		return fmt.Sprintf("identity(%d)", uint8(t))
	}
}

// Permanent reports whether the identity is a long-lived subscriber or
// equipment identifier.
func (t IdentityType) Permanent() bool {
	return t == IdentityIMSI || t == IdentityIMEI || t == IdentityIMEISV
}

func (t IdentityType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Algorithm numbers are 3-bit values on every RAT; 0 is the null algorithm.
const (
	AlgorithmNull = 0
	maxAlgorithm  = 7
)

// CipherName renders a ciphering algorithm in the RAT's own notation.
func CipherName(rat RAT, alg uint8) string {
	switch rat {
	case RATGSM:
		return fmt.Sprintf("A5/%d", alg)
	case RATUMTS:
		return fmt.Sprintf("UEA%d", alg)
	default:
		return fmt.Sprintf("EEA%d", alg)
	}
}

// IntegrityName renders an integrity algorithm in the RAT's own notation.
func IntegrityName(rat RAT, alg uint8) string {
	if rat == RATUMTS || rat == RATGSM {
		return fmt.Sprintf("UIA%d", alg)
	}
	return fmt.Sprintf("EIA%d", alg)
}
