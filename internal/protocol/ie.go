package protocol

import "encoding/binary"

// Information element tags. Cell description tags are shared by the
// top-level message and the nested neighbor, target and redirect IEs.
const (
	TagPLMN         = 0x01
	TagAreaCode     = 0x02
	TagCellID       = 0x03
	TagChannel      = 0x04
	TagPhysicalID   = 0x05
	TagCipher       = 0x06
	TagIntegrity    = 0x07
	TagIdentityType = 0x08
	TagRAT          = 0x09
	TagNeighbor     = 0x0A // nested cell description, repeatable
	TagCause        = 0x0B
	TagDomain       = 0x0C
	TagRedirect     = 0x0D // nested: RAT + channel
	TagTarget       = 0x0E // nested cell description
)

// IE is a single tag-length-value information element
type IE struct {
	Tag   byte
	Value []byte
}

type ieList []IE

// parseIEs splits b into elements. Unknown tags are kept and simply never
// looked up, which skips them by their declared length.
func parseIEs(b []byte) (ieList, error) {
	var list ieList
	for off := 0; off < len(b); {
		if len(b)-off < 2 {
			return nil, faultf(ReasonTruncatedIE, "IE header at offset %d needs 2 bytes, %d left", off, len(b)-off)
		}
		tag, n := b[off], int(b[off+1])
		off += 2
		if n > len(b)-off {
			return nil, faultf(ReasonTruncatedIE, "IE 0x%02x declares %d bytes, %d left", tag, n, len(b)-off)
		}
		list = append(list, IE{Tag: tag, Value: b[off : off+n]})
		off += n
	}
	return list, nil
}

// first returns the first element with tag; duplicates are ignored.
func (l ieList) first(tag byte) ([]byte, bool) {
	for _, ie := range l {
		if ie.Tag == tag {
			return ie.Value, true
		}
	}
	return nil, false
}

func (l ieList) all(tag byte) [][]byte {
	var out [][]byte
	for _, ie := range l {
		if ie.Tag == tag {
			out = append(out, ie.Value)
		}
	}
	return out
}

func (l ieList) u8(tag byte, name string) (uint8, bool, error) {
	v, ok := l.first(tag)
	if !ok {
		return 0, false, nil
	}
	if len(v) != 1 {
		return 0, true, faultf(ReasonFieldLength, "%s is %d bytes (want 1)", name, len(v))
	}
	return v[0], true, nil
}

func (l ieList) u16(tag byte, name string) (uint16, bool, error) {
	v, ok := l.first(tag)
	if !ok {
		return 0, false, nil
	}
	if len(v) != 2 {
		return 0, true, faultf(ReasonFieldLength, "%s is %d bytes (want 2)", name, len(v))
	}
	return binary.BigEndian.Uint16(v), true, nil
}

// u32 accepts 2- or 4-byte big-endian values; channel numbers come in
// both widths depending on firmware.
func (l ieList) u32(tag byte, name string) (uint32, bool, error) {
	v, ok := l.first(tag)
	if !ok {
		return 0, false, nil
	}
	switch len(v) {
	case 2:
		return uint32(binary.BigEndian.Uint16(v)), true, nil
	case 4:
		return binary.BigEndian.Uint32(v), true, nil
	default:
		return 0, true, faultf(ReasonFieldLength, "%s is %d bytes (want 2 or 4)", name, len(v))
	}
}

func (l ieList) rat(tag byte) (RAT, bool, error) {
	v, ok, err := l.u8(tag, "RAT")
	if err != nil || !ok {
		return RATUnknown, ok, err
	}
	r := RAT(v)
	if !r.valid() {
		return RATUnknown, true, faultf(ReasonFieldRange, "RAT %d out of range", v)
	}
	return r, true, nil
}

func (l ieList) algorithm(tag byte, name string) (uint8, bool, error) {
	v, ok, err := l.u8(tag, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	if v > maxAlgorithm {
		return 0, true, faultf(ReasonFieldRange, "%s algorithm %d out of range", name, v)
	}
	return v, true, nil
}

// cell decodes a cell description. defaultRAT applies when the description
// carries no RAT element of its own.
func (l ieList) cell(defaultRAT RAT) (Cell, error) {
	c := Cell{}
	c.RAT = defaultRAT

	r, ok, err := l.rat(TagRAT)
	if err != nil {
		return Cell{}, err
	}
	if ok {
		c.RAT = r
	}

	if v, ok := l.first(TagPLMN); ok {
		if c.PLMN, err = decodePLMN(v); err != nil {
			return Cell{}, err
		}
	}
	if c.AreaCode, _, err = l.u16(TagAreaCode, "area code"); err != nil {
		return Cell{}, err
	}
	if v, ok := l.first(TagCellID); ok {
		if len(v) != 4 {
			return Cell{}, faultf(ReasonFieldLength, "cell id is %d bytes (want 4)", len(v))
		}
		c.CellID = binary.BigEndian.Uint32(v)
		if c.RAT == RATLTE && c.CellID > 0x0fffffff {
			return Cell{}, faultf(ReasonFieldRange, "LTE cell id 0x%x exceeds 28 bits", c.CellID)
		}
	}
	if c.Channel, _, err = l.u32(TagChannel, "channel"); err != nil {
		return Cell{}, err
	}
	if c.PhysicalID, _, err = l.u16(TagPhysicalID, "physical id"); err != nil {
		return Cell{}, err
	}
	return c, nil
}

// nestedCell decodes the cell description carried in a nested element.
func nestedCell(value []byte, defaultRAT RAT) (Cell, error) {
	inner, err := parseIEs(value)
	if err != nil {
		return Cell{}, err
	}
	return inner.cell(defaultRAT)
}

func (l ieList) cells(tag byte, defaultRAT RAT) ([]Cell, error) {
	values := l.all(tag)
	cells := make([]Cell, 0, len(values))
	for _, v := range values {
		c, err := nestedCell(v, defaultRAT)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, nil
}
