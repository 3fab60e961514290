package engine

import "slices"

// Rand is the randomness the queue needs. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
}

// shuffle is an in-place Fisher-Yates permutation.
func shuffle(queue []Target, rng Rand) {
	for i := len(queue) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		queue[i], queue[j] = queue[j], queue[i]
	}
}

// exhausted reports whether the turn has run past the remaining targets.
// An empty queue is never exhausted: there is nothing left to reshuffle.
func exhausted(s State) bool {
	return len(s.Queue) > 0 && s.Turn >= len(s.Queue)
}

// settle is the one place the reshuffle-on-exhaustion rule lives. It
// reshuffles at most once and resets the turn straight to 0. The returned
// events are nil when nothing happened.
func settle(s State, rng Rand) (State, []Event) {
	if !exhausted(s) {
		return s, nil
	}

	s.Queue = slices.Clone(s.Queue)
	shuffle(s.Queue, rng)
	s.Turn = 0

	return s, []Event{
		{Type: EvtQueueReshuffled, Targets: slices.Clone(s.Queue)},
		{Type: EvtTurnSet, Turn: 0},
	}
}
