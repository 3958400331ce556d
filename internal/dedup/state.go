package dedup

import (
	"fmt"

	"github.com/civiclens/signalgraph/internal/signal"
)

// RunState is the reducer-owned fold over one run's events. It becomes
// the ingest summary returned to callers once the run settles.
type RunState struct {
	Batches         int                     `json:"batches"`
	CandidatesSeen  int                     `json:"candidatesSeen"`
	Accepted        int                     `json:"accepted"`
	CrossSource     int                     `json:"crossSource"`
	SameSource      int                     `json:"sameSource"`
	AcceptedByType  map[signal.NodeType]int `json:"acceptedByType"`
	AcceptedNodeIDs []string                `json:"acceptedNodeIds"`
}

// NewRunState returns an initialized state for one run.
func NewRunState() *RunState {
	return &RunState{AcceptedByType: make(map[signal.NodeType]int)}
}

// Reduce folds one event into the state. Pure: no I/O, deterministic
// given (state, event). An unrecognized variant panics: the event sum
// is closed and a new variant without a reducer arm is a bug.
func Reduce(s *RunState, e Event) {
	switch ev := e.(type) {
	case SignalsExtracted:
		s.Batches++
		s.CandidatesSeen += ev.CandidateCount
	case NewSignalAccepted:
		s.Accepted++
		s.AcceptedByType[ev.NodeType]++
		s.AcceptedNodeIDs = append(s.AcceptedNodeIDs, ev.NodeID)
	case CrossSourceMatchDetected:
		s.CrossSource++
	case SameSourceReencountered:
		s.SameSource++
	default:
		panic(fmt.Sprintf("dedup: reducer has no arm for event type %q", e.EventType()))
	}
}
