package session

import (
	"fmt"
	"time"

	"github.com/muurk/cellwatch/internal/protocol"
)

// Phase is the camping state of the device.
type Phase uint8

const (
	PhaseNoService Phase = iota
	PhaseCamped
	PhaseTransitioning
)

func (p Phase) String() string {
	switch p {
	case PhaseNoService:
		return "no_service"
	case PhaseCamped:
		return "camped"
	case PhaseTransitioning:
		return "transitioning"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// CellContext is a serving cell as seen by the session.
type CellContext struct {
	Cell    protocol.Cell   `json:"cell"`
	Domain  protocol.Domain `json:"domain"`
	Since   uint64          `json:"since"`   // seq that established the context
	Updated uint64          `json:"updated"` // seq of the latest refresh
	At      time.Time       `json:"at"`
}

// SecurityContext is the negotiated air-interface security.
type SecurityContext struct {
	Established  bool         `json:"established"`
	Commanded    bool         `json:"commanded"` // command seen, completion outstanding
	RAT          protocol.RAT `json:"rat"`
	Cipher       uint8        `json:"cipher"`
	Integrity    uint8        `json:"integrity"`
	HasIntegrity bool         `json:"has_integrity"`
	CommandSeq   uint64       `json:"command_seq"`
}

// Pending is a mobility command awaiting completion.
type Pending struct {
	Kind   protocol.Kind `json:"kind"`
	Target protocol.Cell `json:"target"`
	Seq    uint64        `json:"seq"`
}

// TransitionKind describes what an event did to the serving cell.
type TransitionKind uint8

const (
	TransitionNone TransitionKind = iota
	TransitionRefresh
	TransitionNewCell
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionRefresh:
		return "refresh"
	case TransitionNewCell:
		return "new_cell"
	default:
		return "none"
	}
}

// Transition records the serving-cell effect of the latest event.
type Transition struct {
	Seq       uint64
	Kind      TransitionKind
	From      CellContext
	HasFrom   bool
	To        CellContext
	FirstSeen bool          // the new cell was never observed before in the session
	Via       protocol.Kind // event kind that caused the change
}

// View is the read-only state analyzers evaluate against.
type View interface {
	Phase() Phase
	RAT() protocol.RAT
	Serving(d protocol.Domain) (CellContext, bool)
	Current() (CellContext, bool)
	Previous() (CellContext, bool)
	Security() SecurityContext
	Pending() (Pending, bool)
	LastTransition() Transition
	Observed(id protocol.CellIdentity) bool
}

// State is the protocol context of one capture session. It is mutated only
// by its Tracker.
type State struct {
	phase    Phase
	serving  [2]*CellContext // indexed by protocol.Domain
	current  protocol.Domain
	previous *CellContext
	rat      protocol.RAT
	security SecurityContext
	pending  *Pending
	last     Transition

	maxObserved int
	observed    map[protocol.CellIdentity]struct{}
	order       []protocol.CellIdentity
}

func newState(maxObserved int) *State {
	return &State{
		maxObserved: maxObserved,
		observed:    make(map[protocol.CellIdentity]struct{}),
	}
}

func (s *State) Phase() Phase { return s.phase }

func (s *State) RAT() protocol.RAT { return s.rat }

func (s *State) Serving(d protocol.Domain) (CellContext, bool) {
	if int(d) >= len(s.serving) || s.serving[d] == nil {
		return CellContext{}, false
	}
	return *s.serving[d], true
}

// Current returns the most recently established or refreshed serving context.
func (s *State) Current() (CellContext, bool) { return s.Serving(s.current) }

func (s *State) Previous() (CellContext, bool) {
	if s.previous == nil {
		return CellContext{}, false
	}
	return *s.previous, true
}

func (s *State) Security() SecurityContext { return s.security }

func (s *State) Pending() (Pending, bool) {
	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

func (s *State) LastTransition() Transition { return s.last }

func (s *State) Observed(id protocol.CellIdentity) bool {
	_, ok := s.observed[id]
	return ok
}

// ObservedCount returns the number of distinct cells remembered.
func (s *State) ObservedCount() int { return len(s.observed) }

// observe remembers id, evicting the oldest entry past the cap. It returns
// true when id was not known.
func (s *State) observe(id protocol.CellIdentity) bool {
	if _, ok := s.observed[id]; ok {
		return false
	}
	if s.maxObserved > 0 && len(s.order) >= s.maxObserved {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.observed, oldest)
	}
	s.observed[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Snapshot is a serializable copy of the state for status surfaces.
type Snapshot struct {
	Phase    Phase           `json:"phase"`
	RAT      protocol.RAT    `json:"rat"`
	Serving  []CellContext   `json:"serving,omitempty"`
	Previous *CellContext    `json:"previous,omitempty"`
	Security SecurityContext `json:"security"`
	Observed int             `json:"observed_cells"`
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:    s.phase,
		RAT:      s.rat,
		Security: s.security,
		Observed: len(s.observed),
	}
	for _, c := range s.serving {
		if c != nil {
			snap.Serving = append(snap.Serving, *c)
		}
	}
	if s.previous != nil {
		prev := *s.previous
		snap.Previous = &prev
	}
	return snap
}
