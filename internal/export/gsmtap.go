package export

import (
	"encoding/binary"

	"github.com/muurk/cellwatch/internal/protocol"
)

// GSMTAP constants from osmocom's gsmtap.h.
const (
	GSMTAPPort    = 4729
	GSMTAPVersion = 2
	GSMTAPHdrLen  = 16

	TypeUM      byte = 0x01
	TypeUMTSRRC byte = 0x0c
	TypeLTERRC  byte = 0x0d
	TypeLTENAS  byte = 0x12
)

// Header is a GSMTAP version 2 header.
type Header struct {
	Type        byte
	Timeslot    byte
	ARFCN       uint16
	SignalDBm   int8
	SNRdB       int8
	FrameNumber uint32
	SubType     byte
	Antenna     byte
	SubSlot     byte
}

// Marshal encodes the 16-byte header. The length field counts 32-bit
// words.
func (h Header) Marshal() []byte {
	b := make([]byte, GSMTAPHdrLen)
	b[0] = GSMTAPVersion
	b[1] = GSMTAPHdrLen / 4
	b[2] = h.Type
	b[3] = h.Timeslot
	binary.BigEndian.PutUint16(b[4:6], h.ARFCN&0x3fff)
	b[6] = byte(h.SignalDBm)
	b[7] = byte(h.SNRdB)
	binary.BigEndian.PutUint32(b[8:12], h.FrameNumber)
	b[12] = h.SubType
	b[13] = h.Antenna
	b[14] = h.SubSlot
	return b
}

// TypeFor maps the capture point of an event to a GSMTAP payload type. NAS
// on GSM and UMTS travels inside the Um payload type.
func TypeFor(rat protocol.RAT, layer protocol.Layer) (byte, bool) {
	switch rat {
	case protocol.RATLTE:
		if layer == protocol.LayerNAS {
			return TypeLTENAS, true
		}
		return TypeLTERRC, true
	case protocol.RATUMTS:
		if layer == protocol.LayerNAS {
			return TypeUM, true
		}
		return TypeUMTSRRC, true
	case protocol.RATGSM:
		return TypeUM, true
	default:
		return 0, false
	}
}

// arfcn returns the channel an event names, when it names exactly one.
func arfcn(ev protocol.Event) uint16 {
	var ch uint32
	switch e := ev.(type) {
	case *protocol.CellInfo:
		ch = e.Cell.Channel
	case *protocol.HandoverCommand:
		ch = e.Target.Channel
	case *protocol.Reselection:
		ch = e.Target.Channel
	}
	if ch > 0x3fff {
		return 0
	}
	return uint16(ch)
}
