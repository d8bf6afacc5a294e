package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/diag"
	"github.com/muurk/cellwatch/internal/logging"
	"github.com/muurk/cellwatch/internal/protocol"
)

const snapLen = 65536

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	srcIP  = net.IP{127, 0, 0, 1}
	dstIP  = net.IP{127, 0, 0, 2}
)

// Stats counts what an export wrote.
type Stats struct {
	Frames  uint64 `json:"frames"`
	Packets uint64 `json:"packets"`
	Skipped uint64 `json:"skipped"`
}

// Writer writes decoded control-plane messages as GSMTAP-over-UDP packets
// to a pcap stream.
type Writer struct {
	w    *pcapgo.Writer
	buf  gopacket.SerializeBuffer
	opts gopacket.SerializeOptions
}

// NewWriter writes the pcap file header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{
		w:    pw,
		buf:  gopacket.NewSerializeBuffer(),
		opts: gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
	}, nil
}

// WriteEvent writes one packet for ev. Events that carry no radio message
// (decode errors, unknown records, unmapped RATs) are skipped and reported
// as not written.
func (w *Writer) WriteEvent(ev protocol.Event) (bool, error) {
	switch ev.(type) {
	case *protocol.DecodeError, *protocol.Unknown:
		return false, nil
	}
	meta := ev.Header()
	typ, ok := TypeFor(meta.RAT, meta.Layer)
	if !ok {
		return false, nil
	}
	rec, err := protocol.ParseRecord(meta.Raw)
	if err != nil {
		return false, nil
	}

	hdr := Header{Type: typ, ARFCN: arfcn(ev), SubType: meta.MessageType}
	payload := append(hdr.Marshal(), rec.Body...)

	eth := layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := layers.UDP{SrcPort: layers.UDPPort(GSMTAPPort), DstPort: layers.UDPPort(GSMTAPPort)}
	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		return false, err
	}
	if err := gopacket.SerializeLayers(w.buf, w.opts, &eth, &ip, &udp, gopacket.Payload(payload)); err != nil {
		return false, fmt.Errorf("serialize packet: %w", err)
	}

	data := w.buf.Bytes()
	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Unix(0, 0)
	}
	err = w.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
	if err != nil {
		return false, fmt.Errorf("write packet: %w", err)
	}
	return true, nil
}

// Export decodes every frame of src and writes its messages to out.
func Export(ctx context.Context, src diag.Replayable, out io.Writer) (Stats, error) {
	var st Stats
	w, err := NewWriter(out)
	if err != nil {
		return st, err
	}
	s, err := src.Open()
	if err != nil {
		return st, err
	}
	defer s.Close()

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		f, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, err
		}
		st.Frames++
		ok, err := w.WriteEvent(protocol.Decode(f))
		if err != nil {
			return st, err
		}
		if ok {
			st.Packets++
		} else {
			st.Skipped++
		}
	}

	logging.Debug("GSMTAP export finished",
		zap.Uint64("frames", st.Frames),
		zap.Uint64("packets", st.Packets),
		zap.Uint64("skipped", st.Skipped),
	)
	return st, nil
}
