package engine

import (
	"errors"
	"slices"
	"strings"
)

var ErrQueueEmpty = errors.New("no targets to sell")
var ErrInvalidIndex = errors.New("invalid order value")
var ErrInvalidBidder = errors.New("invalid bidder")
var ErrEmptyCandidateSet = errors.New("no candidates to queue")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Target is one participant waiting to be auctioned.
type Target struct {
	Name  string `json:"name"`
	Line  string `json:"line"`
	Tier  string `json:"tier"`
	Champ string `json:"champ"`
}

type Bidder struct {
	Name  string `json:"name"`
	Point int    `json:"point"`
}

// State is the whole auction session. Turn points into Queue but is tracked
// separately; Bidder is nil when nobody is leading.
type State struct {
	Queue  []Target
	Turn   int
	Bidder *Bidder
}

type CommandType string

const (
	CmdReplaceQueue CommandType = "ReplaceQueue"
	CmdPopFront     CommandType = "PopFront"
	CmdSetTurn      CommandType = "SetTurn"
	CmdSetBidder    CommandType = "SetBidder"
	CmdClearBidder  CommandType = "ClearBidder"
)

/*
	CmdReplaceQueue -> EvtQueueReplaced -> EvtTurnSet(0)
	CmdPopFront     -> EvtTargetSold [-> EvtQueueReshuffled -> EvtTurnSet(0)]
	CmdSetTurn      -> EvtTurnSet(n) | EvtQueueReshuffled -> EvtTurnSet(0)
	CmdSetBidder    -> EvtBidderSet
	CmdClearBidder  -> EvtBidderCleared
*/

type Command struct {
	Type       CommandType
	Candidates []Target
	Turn       int
	Bidder     Bidder
}

type EventType string

const (
	EvtQueueReplaced   EventType = "QueueReplaced"
	EvtTargetSold      EventType = "TargetSold"
	EvtQueueReshuffled EventType = "QueueReshuffled"
	EvtTurnSet         EventType = "TurnSet"
	EvtBidderSet       EventType = "BidderSet"
	EvtBidderCleared   EventType = "BidderCleared"
)

// Event carries enough to rebuild State with Reduce: queue events hold the
// full resulting order, not a diff.
type Event struct {
	Type    EventType `json:"type" cbor:"1,keyasint"`
	Targets []Target  `json:"targets,omitempty" cbor:"2,keyasint,omitempty"`
	Target  *Target   `json:"target,omitempty" cbor:"3,keyasint,omitempty"`
	Turn    int       `json:"turn" cbor:"4,keyasint"`
	Bidder  *Bidder   `json:"bidder,omitempty" cbor:"5,keyasint,omitempty"`
}

// Apply computes the transition for cmd without touching s. On error the
// returned state is s, with one exception: ErrEmptyCandidateSet comes back
// with a cleared queue and events, because an empty roster is a valid round.
func Apply(s State, cmd Command, rng Rand) ([]Event, State, error) {
	newState := s.Clone()

	switch cmd.Type {
	case CmdReplaceQueue:
		queue := dedupe(cmd.Candidates)
		shuffle(queue, rng)

		newState.Queue = queue
		newState.Turn = 0
		events := []Event{
			{Type: EvtQueueReplaced, Targets: slices.Clone(queue)},
			{Type: EvtTurnSet, Turn: 0},
		}
		if len(queue) == 0 {
			return events, newState, ErrEmptyCandidateSet
		}
		return events, newState, nil

	case CmdPopFront:
		if len(newState.Queue) == 0 {
			return nil, s, ErrQueueEmpty
		}

		sold := newState.Queue[0]
		newState.Queue = newState.Queue[1:]
		events := []Event{{Type: EvtTargetSold, Target: &sold}}

		var reshuffle []Event
		newState, reshuffle = settle(newState, rng)
		return append(events, reshuffle...), newState, nil

	case CmdSetTurn:
		if cmd.Turn < 0 {
			return nil, s, ErrInvalidIndex
		}

		newState.Turn = cmd.Turn
		var reshuffle []Event
		newState, reshuffle = settle(newState, rng)
		if reshuffle != nil {
			return reshuffle, newState, nil
		}
		return []Event{{Type: EvtTurnSet, Turn: cmd.Turn}}, newState, nil

	case CmdSetBidder:
		name := strings.TrimSpace(cmd.Bidder.Name)
		if name == "" || cmd.Bidder.Point < 0 {
			return nil, s, ErrInvalidBidder
		}

		b := Bidder{Name: name, Point: cmd.Bidder.Point}
		newState.Bidder = &b
		return []Event{{Type: EvtBidderSet, Bidder: &b}}, newState, nil

	case CmdClearBidder:
		newState.Bidder = nil
		return []Event{{Type: EvtBidderCleared}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// Reduce replays events from an empty session.
func Reduce(events []Event) State {
	s := NewEmptyState()
	for _, event := range events {
		switch event.Type {
		case EvtQueueReplaced, EvtQueueReshuffled:
			s.Queue = append([]Target{}, event.Targets...)
		case EvtTargetSold:
			if len(s.Queue) > 0 {
				s.Queue = s.Queue[1:]
			}
		case EvtTurnSet:
			s.Turn = event.Turn
		case EvtBidderSet:
			if event.Bidder != nil {
				b := *event.Bidder
				s.Bidder = &b
			}
		case EvtBidderCleared:
			s.Bidder = nil
		}
	}
	return s
}

// dedupe keeps the first position of every name and the last attributes
// seen for it, like writing rows into a map keyed by nickname.
func dedupe(candidates []Target) []Target {
	out := make([]Target, 0, len(candidates))
	pos := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if i, ok := pos[c.Name]; ok {
			out[i] = c
			continue
		}
		pos[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}
