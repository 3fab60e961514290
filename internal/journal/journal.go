// Package journal records the session's state-change events so a run can be
// inspected and replayed with engine.Reduce. Entries are scoped to one
// process run; nothing here restores a session after a restart.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
)

// Entry is one recorded event. Version is assigned by the session under its
// lock, so it orders entries even when they are recorded out of order.
type Entry struct {
	Version int64        `json:"version" cbor:"1,keyasint"`
	At      time.Time    `json:"at" cbor:"2,keyasint"`
	Event   engine.Event `json:"event" cbor:"3,keyasint"`
}

type Journal interface {
	Record(ctx context.Context, entries []Entry) error
	// Replay returns the gap-free run of entries since+1, since+2, ...
	// It stops before the first version not recorded yet, so a caller that
	// resumes from the last version it saw never skips one.
	Replay(ctx context.Context, since int64) ([]Entry, error)
	Close() error
}

// Events strips the journal metadata for engine.Reduce.
func Events(entries []Entry) []engine.Event {
	out := make([]engine.Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Event)
	}
	return out
}

// contiguous trims entries, sorted by version, to the run that starts right
// after since. Versions start at 1 and are assigned without gaps.
func contiguous(entries []Entry, since int64) []Entry {
	next := since + 1
	for i, e := range entries {
		if e.Version != next {
			return entries[:i]
		}
		next++
	}
	return entries
}

// Memory keeps the journal in process. Used when Redis is disabled.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entries...)
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].Version < m.entries[j].Version
	})
	return nil
}

func (m *Memory) Replay(ctx context.Context, since int64) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Version > since
	})
	run := contiguous(m.entries[i:], since)
	out := make([]Entry, len(run))
	copy(out, run)
	return out, nil
}

func (m *Memory) Close() error { return nil }
