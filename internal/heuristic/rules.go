package heuristic

import (
	"fmt"
	"strings"

	"github.com/muurk/cellwatch/internal/protocol"
	"github.com/muurk/cellwatch/internal/session"
)

// Downgrade flags a move to a weaker RAT that the network did not justify
// with a measurement report or handover command since the previous serving
// cell was established.
type Downgrade struct{}

func (Downgrade) ID() string    { return "downgrade" }
func (Downgrade) Name() string  { return "RAT downgrade" }
func (Downgrade) Lookback() int { return 32 }
func (Downgrade) Description() string {
	return "Serving RAT moved to a weaker technology without a measurement-driven handover"
}

func (d Downgrade) Evaluate(ev protocol.Event, st session.View, h *session.History) (Warning, bool) {
	seq := ev.Header().Seq
	tr := st.LastTransition()
	if tr.Seq != seq || tr.Kind != session.TransitionNewCell || !tr.HasFrom {
		return Warning{}, false
	}
	from, to := tr.From.Cell.RAT, tr.To.Cell.RAT
	if !to.WeakerThan(from) {
		return Warning{}, false
	}

	for e := range window(h, tr.From.Since, seq, d.Lookback()) {
		switch e.Kind() {
		case protocol.KindMeasurementReport, protocol.KindHandoverCommand:
			return Warning{}, false
		}
	}

	sev := SeverityMedium
	if to == protocol.RATGSM {
		sev = SeverityHigh
	}
	msg := fmt.Sprintf("serving cell moved from %s to %s (%s) without a measurement report or handover command",
		from, to, tr.To.Cell.Identity())
	return newWarning(d, sev, ev, msg, tr.From.Updated), true
}

// NullCipher flags security mode commands selecting the null ciphering or
// null integrity algorithm. Both being null still yields one warning.
type NullCipher struct{}

func (NullCipher) ID() string    { return "null_cipher" }
func (NullCipher) Name() string  { return "Null cipher" }
func (NullCipher) Lookback() int { return 0 }
func (NullCipher) Description() string {
	return "Security mode command negotiates no encryption or no integrity protection"
}

func (n NullCipher) Evaluate(ev protocol.Event, _ session.View, _ *session.History) (Warning, bool) {
	smc, ok := ev.(*protocol.SecurityModeCommand)
	if !ok || (!smc.NullCipher() && !smc.NullIntegrity()) {
		return Warning{}, false
	}

	var parts []string
	if smc.NullCipher() {
		parts = append(parts, "ciphering "+protocol.CipherName(smc.RAT, smc.Cipher))
	}
	if smc.NullIntegrity() {
		parts = append(parts, "integrity "+protocol.IntegrityName(smc.RAT, smc.Integrity))
	}
	msg := fmt.Sprintf("%s %s security mode command selected %s", smc.RAT, smc.Layer, strings.Join(parts, " and "))
	return newWarning(n, SeverityHigh, ev, msg), true
}

// PlaintextIdentity flags requests for a permanent identity made before
// any security context exists.
type PlaintextIdentity struct{}

func (PlaintextIdentity) ID() string    { return "plaintext_identity" }
func (PlaintextIdentity) Name() string  { return "Plaintext identity request" }
func (PlaintextIdentity) Lookback() int { return 0 }
func (PlaintextIdentity) Description() string {
	return "Network asks for IMSI, IMEI or IMEISV before security is established"
}

func (p PlaintextIdentity) Evaluate(ev protocol.Event, st session.View, _ *session.History) (Warning, bool) {
	req, ok := ev.(*protocol.IdentityRequest)
	if !ok || !req.Identity.Permanent() || st.Security().Established {
		return Warning{}, false
	}
	msg := fmt.Sprintf("%s identity request for %s before security mode complete", req.RAT, req.Identity)
	return newWarning(p, SeverityHigh, ev, msg), true
}

// CellAnomaly flags a same-RAT serving cell change to a cell never seen in
// the session that no neighbor list, measurement report or mobility command
// in the window mentioned. Inter-RAT changes are left to Downgrade.
type CellAnomaly struct{}

func (CellAnomaly) ID() string    { return "cell_anomaly" }
func (CellAnomaly) Name() string  { return "Cell anomaly" }
func (CellAnomaly) Lookback() int { return 64 }
func (CellAnomaly) Description() string {
	return "Serving cell changed to an unadvertised, previously unseen cell"
}

func (c CellAnomaly) Evaluate(ev protocol.Event, st session.View, h *session.History) (Warning, bool) {
	seq := ev.Header().Seq
	tr := st.LastTransition()
	if tr.Seq != seq || tr.Kind != session.TransitionNewCell || !tr.HasFrom || !tr.FirstSeen {
		return Warning{}, false
	}
	if tr.From.Cell.RAT != tr.To.Cell.RAT {
		return Warning{}, false
	}

	target := tr.To.Cell
	for e := range window(h, 0, seq, c.Lookback()) {
		if advertises(e, target) {
			return Warning{}, false
		}
	}

	sev := SeverityLow
	detail := "same area"
	if tr.From.Cell.AreaCode != target.AreaCode {
		sev = SeverityMedium
		detail = fmt.Sprintf("area code %d -> %d", tr.From.Cell.AreaCode, target.AreaCode)
	}
	msg := fmt.Sprintf("serving cell changed to unadvertised %s cell %s (%s)", target.RAT, target.Identity(), detail)
	return newWarning(c, sev, ev, msg, tr.From.Updated), true
}

func advertises(ev protocol.Event, target protocol.Cell) bool {
	var cells []protocol.Cell
	switch e := ev.(type) {
	case *protocol.NeighborList:
		cells = e.Neighbors
	case *protocol.MeasurementReport:
		cells = e.Cells
	case *protocol.HandoverCommand:
		cells = []protocol.Cell{e.Target}
	case *protocol.Reselection:
		cells = []protocol.Cell{e.Target}
	default:
		return false
	}
	for _, c := range cells {
		if c.Matches(target) {
			return true
		}
	}
	return false
}

// ConnectionRedirect flags releases that steer the device to a weaker RAT.
type ConnectionRedirect struct{}

func (ConnectionRedirect) ID() string    { return "connection_redirect" }
func (ConnectionRedirect) Name() string  { return "Connection redirect downgrade" }
func (ConnectionRedirect) Lookback() int { return 0 }
func (ConnectionRedirect) Description() string {
	return "Connection release redirects the device to a weaker RAT"
}

func (r ConnectionRedirect) Evaluate(ev protocol.Event, _ session.View, _ *session.History) (Warning, bool) {
	rel, ok := ev.(*protocol.ConnectionRelease)
	if !ok || rel.Redirect == nil || !rel.Redirect.RAT.WeakerThan(rel.RAT) {
		return Warning{}, false
	}
	sev := SeverityMedium
	if rel.Redirect.RAT == protocol.RATGSM {
		sev = SeverityHigh
	}
	msg := fmt.Sprintf("%s release redirects to %s", rel.RAT, rel.Redirect.RAT)
	if rel.Redirect.Channel != 0 {
		msg += fmt.Sprintf(" channel %d", rel.Redirect.Channel)
	}
	return newWarning(r, sev, ev, msg), true
}
