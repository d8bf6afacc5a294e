package export

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/cellwatch/internal/diag"
	"github.com/muurk/cellwatch/internal/protocol"
)

var t0 = time.Date(2024, time.May, 4, 10, 0, 0, 0, time.UTC)

type stream []byte

func (s stream) Open() (diag.Source, error) {
	return diag.NewReader(bytes.NewReader(s), diag.ZeroClock), nil
}

func TestHeaderMarshal(t *testing.T) {
	b := Header{Type: TypeLTERRC, ARFCN: 0xffff, SignalDBm: -70, FrameNumber: 0x01020304, SubType: 7}.Marshal()
	require.Len(t, b, GSMTAPHdrLen)
	assert.Equal(t, byte(2), b[0])
	assert.Equal(t, byte(4), b[1])
	assert.Equal(t, TypeLTERRC, b[2])
	assert.Equal(t, []byte{0x3f, 0xff}, b[4:6], "ARFCN keeps 14 bits")
	assert.Equal(t, byte(0xba), b[6])
	assert.Equal(t, []byte{1, 2, 3, 4}, b[8:12])
	assert.Equal(t, byte(7), b[12])
}

func TestTypeFor(t *testing.T) {
	tests := []struct {
		rat   protocol.RAT
		layer protocol.Layer
		want  byte
		ok    bool
	}{
		{protocol.RATLTE, protocol.LayerRRC, TypeLTERRC, true},
		{protocol.RATLTE, protocol.LayerNAS, TypeLTENAS, true},
		{protocol.RATUMTS, protocol.LayerRRC, TypeUMTSRRC, true},
		{protocol.RATUMTS, protocol.LayerNAS, TypeUM, true},
		{protocol.RATGSM, protocol.LayerRRC, TypeUM, true},
		{protocol.RATUnknown, protocol.LayerRRC, 0, false},
	}
	for _, tt := range tests {
		got, ok := TypeFor(tt.rat, tt.layer)
		assert.Equal(t, tt.ok, ok, "%s/%s", tt.rat, tt.layer)
		assert.Equal(t, tt.want, got, "%s/%s", tt.rat, tt.layer)
	}
}

func TestExport(t *testing.T) {
	lte := protocol.Cell{
		CellIdentity: protocol.CellIdentity{RAT: protocol.RATLTE, PLMN: protocol.PLMN{MCC: "262", MNC: "01"}, AreaCode: 1, CellID: 10},
		Channel:      1300,
	}
	payloads := [][]byte{
		protocol.BuildCellInfo(t0, lte),
		protocol.BuildNASSecurityModeCommand(t0.Add(time.Second), 0, 2),
		{0x4b, 0x01, 0x02}, // not a log record
	}
	var raw []byte
	for _, p := range payloads {
		raw = append(raw, diag.Encode(p)...)
	}
	raw = append(raw, 0x10, 0x00) // truncated tail

	var out bytes.Buffer
	st, err := Export(context.Background(), stream(raw), &out)
	require.NoError(t, err)
	assert.Equal(t, Stats{Frames: 4, Packets: 2, Skipped: 2}, st)

	r, err := pcapgo.NewReader(&out)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	wantTypes := []byte{TypeLTERRC, TypeLTENAS}
	for i, want := range wantTypes {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)

		pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		require.NotNil(t, udpLayer, "packet %d", i)
		udp := udpLayer.(*layers.UDP)
		assert.Equal(t, layers.UDPPort(GSMTAPPort), udp.DstPort)

		body := udp.Payload
		require.Greater(t, len(body), GSMTAPHdrLen)
		assert.Equal(t, byte(GSMTAPVersion), body[0])
		assert.Equal(t, want, body[2])

		rec, err := protocol.ParseRecord(payloads[i])
		require.NoError(t, err)
		assert.Equal(t, rec.Body, body[GSMTAPHdrLen:])
		assert.True(t, ci.Timestamp.Equal(t0.Add(time.Duration(i)*time.Second)), "packet %d at %s", i, ci.Timestamp)
		if i == 0 {
			assert.Equal(t, []byte{0x05, 0x14}, body[4:6], "ARFCN of the serving cell")
		}
	}
	_, _, err = r.ReadPacketData()
	assert.ErrorIs(t, err, io.EOF)
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	raw := diag.Encode(protocol.BuildCellInfo(t0, protocol.Cell{}))
	_, err := Export(ctx, stream(raw), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}
