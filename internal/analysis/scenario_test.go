package analysis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/cellwatch/internal/diag"
	"github.com/muurk/cellwatch/internal/heuristic"
	"github.com/muurk/cellwatch/internal/protocol"
)

var t0 = time.Date(2024, time.May, 4, 10, 0, 0, 0, time.UTC)

func cell(rat protocol.RAT, area uint16, id uint32) protocol.Cell {
	return protocol.Cell{CellIdentity: protocol.CellIdentity{
		RAT: rat, PLMN: protocol.PLMN{MCC: "310", MNC: "260"}, AreaCode: area, CellID: id,
	}}
}

// stream is an in-memory raw DIAG dump.
type stream []byte

func (s stream) Open() (diag.Source, error) {
	return diag.NewReader(bytes.NewReader(s), diag.ZeroClock), nil
}

func frames(payloads ...[]byte) stream {
	var out []byte
	for _, p := range payloads {
		out = append(out, diag.Encode(p)...)
	}
	return out
}

// corrupt returns the framed payload with its checksum broken.
func corrupt(payload []byte) []byte {
	b := diag.Encode(payload)
	b[0] ^= 0x01
	return b
}

func replay(t *testing.T, s stream) Report {
	t.Helper()
	c := NewCoordinator(Options{SessionID: "test", Analyzers: heuristic.DefaultConfig()})
	r, err := Replay(context.Background(), s, c)
	require.NoError(t, err)
	return r
}

// verdict strips sequence numbers so reports over shifted streams compare.
type verdict struct {
	Analyzer string
	Severity heuristic.Severity
	Message  string
}

func verdicts(ws []heuristic.Warning) []verdict {
	out := make([]verdict, len(ws))
	for i, w := range ws {
		out[i] = verdict{w.Analyzer, w.Severity, w.Message}
	}
	return out
}

func TestScenarioStableLTECells(t *testing.T) {
	c := cell(protocol.RATLTE, 0x1234, 0x0ABCDEF)
	r := replay(t, frames(
		protocol.BuildCellInfo(t0, c),
		protocol.BuildCellInfo(t0.Add(time.Second), c),
		protocol.BuildCellInfo(t0.Add(2*time.Second), c),
	))

	assert.Empty(t, r.Warnings)
	assert.Empty(t, r.Errors)
	assert.Equal(t, uint64(3), r.Summary.Events)
}

func TestScenarioNullCipher(t *testing.T) {
	r := replay(t, frames(
		protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 1)),
		protocol.BuildSecurityModeCommand(t0, protocol.RATLTE, protocol.AlgorithmNull, 2),
		protocol.BuildSecurityModeComplete(t0, protocol.RATLTE),
	))

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "null_cipher", r.Warnings[0].Analyzer)
	assert.Equal(t, heuristic.SeverityHigh, r.Warnings[0].Severity)
}

func TestScenarioDowngrade(t *testing.T) {
	r := replay(t, frames(
		protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 0x1234, 0x0ABCDEF)),
		protocol.BuildCellInfo(t0.Add(time.Second), cell(protocol.RATGSM, 0x0042, 0x1F3)),
	))

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "downgrade", r.Warnings[0].Analyzer)
	assert.Equal(t, heuristic.SeverityHigh, r.Warnings[0].Severity)
	assert.Equal(t, []uint64{1, 2}, r.Warnings[0].Events)
}

func TestScenarioPlaintextIdentity(t *testing.T) {
	r := replay(t, frames(
		protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 1)),
		protocol.BuildIdentityRequest(t0, protocol.RATLTE, protocol.IdentityIMSI),
		protocol.BuildSecurityModeCommand(t0, protocol.RATLTE, 2, 2),
		protocol.BuildSecurityModeComplete(t0, protocol.RATLTE),
	))

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "plaintext_identity", r.Warnings[0].Analyzer)
	assert.Equal(t, heuristic.SeverityHigh, r.Warnings[0].Severity)
}

func TestScenarioChecksumFailureIsolated(t *testing.T) {
	lte := protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 7, 70))
	gsm := protocol.BuildCellInfo(t0, cell(protocol.RATGSM, 8, 80))

	bad := append(corrupt(protocol.BuildIdentityRequest(t0, protocol.RATLTE, protocol.IdentityIMSI)), frames(lte, gsm)...)
	withError := replay(t, bad)
	clean := replay(t, frames(lte, gsm))

	require.Len(t, withError.Errors, 1)
	assert.Equal(t, protocol.ReasonChecksum, withError.Errors[0].Reason)
	assert.Equal(t, uint64(1), withError.Errors[0].Seq)
	assert.Equal(t, uint64(1), withError.Summary.DecodeErrors)

	require.NotEmpty(t, clean.Warnings)
	assert.Equal(t, verdicts(clean.Warnings), verdicts(withError.Warnings))
}

func TestReplayDeterministic(t *testing.T) {
	s := frames(
		protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 1)),
		protocol.BuildNeighborList(t0, protocol.RATLTE, cell(protocol.RATLTE, 1, 2)),
		protocol.BuildIdentityRequest(t0, protocol.RATLTE, protocol.IdentityIMEI),
		protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 2, 3)),
		protocol.BuildConnectionRelease(t0, protocol.RATLTE, 0, &protocol.Redirect{RAT: protocol.RATGSM, Channel: 20}),
		protocol.BuildCellInfo(t0, cell(protocol.RATGSM, 4, 4)),
		protocol.BuildRecord(0x1FFF, t0, []byte{1, 2, 3}),
	)
	s = append(s, corrupt(protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 1)))...)

	r1, r2 := replay(t, s), replay(t, s)
	first, err := r1.MarshalIndent()
	require.NoError(t, err)
	second, err := r2.MarshalIndent()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestReplayEmptyStream(t *testing.T) {
	r := replay(t, stream(nil))
	assert.Empty(t, r.Warnings)
	assert.Empty(t, r.Errors)
	assert.Zero(t, r.Summary.Frames)
	assert.True(t, r.Final)
}

func TestReplayUnknownOnly(t *testing.T) {
	r := replay(t, frames(
		protocol.BuildRecord(0x1FFF, t0, []byte{0x00}),
		protocol.BuildRecord(0x1FFE, t0, nil),
		[]byte{0x4b, 0x12, 0x00},
	))
	assert.Empty(t, r.Warnings)
	assert.Empty(t, r.Errors)
	assert.Equal(t, uint64(3), r.Summary.Unknown)
}

func TestCorruptionAnywhereYieldsOneError(t *testing.T) {
	payloads := [][]byte{
		protocol.BuildCellInfo(t0, cell(protocol.RATLTE, 1, 1)),
		protocol.BuildSecurityModeCommand(t0, protocol.RATLTE, 0, 0),
		protocol.BuildIdentityRequest(t0, protocol.RATLTE, protocol.IdentityIMSI),
		protocol.BuildCellInfo(t0, cell(protocol.RATGSM, 2, 2)),
	}
	baseline := verdicts(replay(t, frames(payloads...)).Warnings)
	filler := protocol.BuildRecord(0x1FFF, t0, []byte{9})

	for pos := 0; pos <= len(payloads); pos++ {
		var s stream
		for i, p := range payloads {
			if i == pos {
				s = append(s, corrupt(filler)...)
			}
			s = append(s, diag.Encode(p)...)
		}
		if pos == len(payloads) {
			s = append(s, corrupt(filler)...)
		}

		r := replay(t, s)
		assert.Len(t, r.Errors, 1, "corruption at %d", pos)
		assert.Equal(t, baseline, verdicts(r.Warnings), "corruption at %d", pos)
	}
}
