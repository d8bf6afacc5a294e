package session

import (
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/logging"
	"github.com/muurk/cellwatch/internal/protocol"
)

// DefaultMaxObserved bounds the set of remembered cell identities.
const DefaultMaxObserved = 4096

// Options configures a Tracker.
type Options struct {
	HistorySize int // ring capacity; at least the longest analyzer lookback
	MaxObserved int
}

// Tracker is the single-threaded state machine of one capture session.
type Tracker struct {
	state           *State
	history         *History
	inconsistencies int
}

// NewTracker creates a tracker in the NoService phase.
func NewTracker(opts Options) *Tracker {
	if opts.MaxObserved <= 0 {
		opts.MaxObserved = DefaultMaxObserved
	}
	return &Tracker{
		state:   newState(opts.MaxObserved),
		history: NewHistory(opts.HistorySize),
	}
}

// State returns the read-only view of the session state.
func (t *Tracker) State() *State { return t.state }

// History returns the ring of recent control-plane events.
func (t *Tracker) History() *History { return t.history }

// Inconsistencies counts events that contradicted the tracked state.
func (t *Tracker) Inconsistencies() int { return t.inconsistencies }

// Apply updates the state for ev and appends it to the history. Unknown and
// DecodeError events leave both untouched.
func (t *Tracker) Apply(ev protocol.Event) {
	meta := ev.Header()
	s := t.state
	s.last = Transition{Seq: meta.Seq}

	switch e := ev.(type) {
	case *protocol.CellInfo:
		t.camp(meta, e.Domain, e.Cell, protocol.KindCellInfo)

	case *protocol.HandoverCommand:
		s.pending = &Pending{Kind: protocol.KindHandoverCommand, Target: e.Target, Seq: meta.Seq}
		s.phase = PhaseTransitioning

	case *protocol.Reselection:
		s.pending = &Pending{Kind: protocol.KindReselection, Target: e.Target, Seq: meta.Seq}
		s.phase = PhaseTransitioning

	case *protocol.HandoverComplete:
		t.completeHandover(meta)

	case *protocol.ConnectionRelease:
		t.release()

	case *protocol.SecurityModeCommand:
		s.security = SecurityContext{
			Commanded:    true,
			RAT:          meta.RAT,
			Cipher:       e.Cipher,
			Integrity:    e.Integrity,
			HasIntegrity: e.HasIntegrity,
			CommandSeq:   meta.Seq,
		}

	case *protocol.SecurityModeComplete:
		if !s.security.Commanded {
			t.inconsistent("security mode complete without command", meta)
			s.security.RAT = meta.RAT
		}
		s.security.Commanded = false
		s.security.Established = true

	case *protocol.NeighborList, *protocol.MeasurementReport, *protocol.IdentityRequest:
		// evidence only

	case *protocol.Unknown, *protocol.DecodeError:
		return

	default:
		return
	}

	t.history.push(ev)
}

// camp enters or refreshes Camped on cell.
func (t *Tracker) camp(meta protocol.Meta, domain protocol.Domain, cell protocol.Cell, via protocol.Kind) {
	s := t.state
	if int(domain) >= len(s.serving) {
		domain = protocol.DomainPS
	}

	if cur := s.serving[domain]; cur != nil && cur.Cell.Identity() == cell.Identity() {
		cur.Cell = cell
		cur.Updated = meta.Seq
		cur.At = meta.Timestamp
		s.current = domain
		s.phase = PhaseCamped
		s.pending = nil
		s.rat = cell.RAT
		s.last = Transition{Seq: meta.Seq, Kind: TransitionRefresh, From: *cur, HasFrom: true, To: *cur, Via: via}
		return
	}

	from, hasFrom := t.reference(domain)

	// A device is on one RAT at a time: contexts on another RAT are displaced.
	other := 1 - domain
	if o := s.serving[other]; o != nil && o.Cell.RAT != cell.RAT {
		s.serving[other] = nil
	}
	if hasFrom {
		prev := from
		s.previous = &prev
	}

	next := &CellContext{Cell: cell, Domain: domain, Since: meta.Seq, Updated: meta.Seq, At: meta.Timestamp}
	s.serving[domain] = next
	s.current = domain
	s.phase = PhaseCamped
	s.pending = nil
	s.rat = cell.RAT
	s.last = Transition{
		Seq:       meta.Seq,
		Kind:      TransitionNewCell,
		From:      from,
		HasFrom:   hasFrom,
		To:        *next,
		FirstSeen: s.observe(cell.Identity()),
		Via:       via,
	}
}

// reference picks the context a change on domain is measured against: the
// same domain, then the other domain, then the last displaced context.
func (t *Tracker) reference(domain protocol.Domain) (CellContext, bool) {
	s := t.state
	if c := s.serving[domain]; c != nil {
		return *c, true
	}
	if c := s.serving[1-domain]; c != nil {
		return *c, true
	}
	if s.previous != nil {
		return *s.previous, true
	}
	return CellContext{}, false
}

func (t *Tracker) completeHandover(meta protocol.Meta) {
	s := t.state
	if s.pending == nil || s.pending.Kind != protocol.KindHandoverCommand {
		// Most recent wins: the device says it completed a handover, so it is
		// camped, on whatever cell it already reported.
		t.inconsistent("handover complete without handover command", meta)
		s.phase = PhaseCamped
		if meta.RAT != protocol.RATUnknown {
			s.rat = meta.RAT
		}
		return
	}

	target := s.pending.Target
	t.camp(meta, protocol.CellInfoDomain(target.RAT), target, protocol.KindHandoverComplete)
}

func (t *Tracker) release() {
	s := t.state
	if cur, ok := s.Current(); ok {
		s.previous = &cur
	} else if o := s.serving[1-s.current]; o != nil {
		prev := *o
		s.previous = &prev
	}
	s.serving = [2]*CellContext{}
	s.pending = nil
	s.security = SecurityContext{}
	s.phase = PhaseNoService
}

func (t *Tracker) inconsistent(msg string, meta protocol.Meta) {
	t.inconsistencies++
	logging.Warn("Session state inconsistency",
		zap.String("detail", msg),
		zap.Uint64("seq", meta.Seq),
		zap.String("message", meta.MessageName),
		zap.String("phase", t.state.phase.String()),
	)
}
