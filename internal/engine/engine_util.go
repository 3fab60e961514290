package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
)

func NewEmptyState() State {
	return State{
		Queue: []Target{},
		Turn:  0,
	}
}

// Clone deep-copies s so the copy can be handed out or mutated freely.
func (s State) Clone() State {
	out := State{Queue: slices.Clone(s.Queue), Turn: s.Turn}
	if out.Queue == nil {
		out.Queue = []Target{}
	}
	if s.Bidder != nil {
		b := *s.Bidder
		out.Bidder = &b
	}
	return out
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// NewRand returns a PCG generator seeded from crypto/rand. It is not safe
// for concurrent use; the session serialises access to it.
func NewRand() (*rand.Rand, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	seed1 := binary.LittleEndian.Uint64(b[:8])
	seed2 := binary.LittleEndian.Uint64(b[8:])
	return rand.New(rand.NewPCG(seed1, seed2)), nil
}
