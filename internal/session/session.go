package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-auction-backend/internal/apperrors"
	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/internal/journal"
)

const (
	defaultFetchTimeout = 5 * time.Second
	recordTimeout       = 2 * time.Second
)

// Source supplies the participants that can still be auctioned.
type Source interface {
	LoadCandidates(ctx context.Context) ([]engine.Target, error)
}

type Publisher interface {
	Publish(topics ...hub.Topic)
}

type Recorder interface {
	Record(ctx context.Context, entries []journal.Entry) error
}

type Options struct {
	FetchTimeout time.Duration
	Rand         engine.Rand      // defaults to a crypto-seeded PCG
	Now          func() time.Time // defaults to time.Now
}

// Coordinator owns the one auction session of the process. Every operation
// runs engine.Apply under mu and commits the result whole; fetching
// candidates happens before the lock, publishing and recording after it.
type Coordinator struct {
	mu      sync.Mutex
	state   engine.State
	version int64
	rng     engine.Rand

	source       Source
	pub          Publisher
	rec          Recorder
	log          *zap.Logger
	fetchTimeout time.Duration
	now          func() time.Time
}

func New(source Source, pub Publisher, rec Recorder, log *zap.Logger, opts Options) (*Coordinator, error) {
	if source == nil || pub == nil {
		return nil, errors.New("session: source and publisher are required")
	}

	rng := opts.Rand
	if rng == nil {
		r, err := engine.NewRand()
		if err != nil {
			return nil, err
		}
		rng = r
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		state:        engine.NewEmptyState(),
		rng:          rng,
		source:       source,
		pub:          pub,
		rec:          rec,
		log:          log.Named("session"),
		fetchTimeout: timeout,
		now:          now,
	}, nil
}

// Snapshot returns queue, turn and bidder as one consistent copy.
func (c *Coordinator) Snapshot() engine.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Coordinator) Queue() []engine.Target {
	return c.Snapshot().Queue
}

func (c *Coordinator) Turn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Turn
}

func (c *Coordinator) Bidder() (engine.Bidder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Bidder == nil {
		return engine.Bidder{}, false
	}
	return *c.state.Bidder, true
}

// LoadQueue pulls a fresh roster and replaces the queue with a shuffle of
// it. An empty roster still clears the queue and is reported as
// engine.ErrEmptyCandidateSet alongside the (empty) queue.
func (c *Coordinator) LoadQueue(ctx context.Context) ([]engine.Target, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	candidates, err := c.source.LoadCandidates(fetchCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Upstream(apperrors.CodeUpstreamTimeout, "load candidates timed out", err)
		}
		return nil, apperrors.Upstream(apperrors.CodeUpstreamFailed, "failed to fetch targets", err)
	}

	next, _, err := c.apply(ctx, engine.Command{Type: engine.CmdReplaceQueue, Candidates: candidates})
	if err != nil && !errors.Is(err, engine.ErrEmptyCandidateSet) {
		return nil, err
	}
	c.log.Info("queue loaded", zap.Int("targets", len(next.Queue)))
	return next.Queue, err
}

// Sell removes and returns the target at the front of the queue.
func (c *Coordinator) Sell(ctx context.Context) (engine.Target, error) {
	_, events, err := c.apply(ctx, engine.Command{Type: engine.CmdPopFront})
	if err != nil {
		return engine.Target{}, err
	}
	return *events[0].Target, nil
}

// SetTurn returns the index actually stored, which is 0 when the new turn
// ran past the queue and triggered a reshuffle.
func (c *Coordinator) SetTurn(ctx context.Context, turn int) (int, error) {
	next, _, err := c.apply(ctx, engine.Command{Type: engine.CmdSetTurn, Turn: turn})
	if err != nil {
		return 0, err
	}
	return next.Turn, nil
}

func (c *Coordinator) SetBidder(ctx context.Context, name string, point int) (engine.Bidder, error) {
	next, _, err := c.apply(ctx, engine.Command{
		Type:   engine.CmdSetBidder,
		Bidder: engine.Bidder{Name: name, Point: point},
	})
	if err != nil {
		return engine.Bidder{}, err
	}
	return *next.Bidder, nil
}

func (c *Coordinator) ClearBidder(ctx context.Context) error {
	_, _, err := c.apply(ctx, engine.Command{Type: engine.CmdClearBidder})
	return err
}

func (c *Coordinator) apply(ctx context.Context, cmd engine.Command) (engine.State, []engine.Event, error) {
	next, events, entries, err := c.commit(cmd)
	if len(events) > 0 {
		c.notify(ctx, events, entries)
	}
	return next, events, translate(err)
}

// commit is the critical section. The new state is computed in full before
// it replaces the old one, so a failure leaves nothing half applied.
func (c *Coordinator) commit(cmd engine.Command) (next engine.State, events []engine.Event, entries []journal.Entry, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			next, events, entries = c.state.Clone(), nil, nil
			err = apperrors.Internal("session transition failed", fmt.Errorf("%s: %v", cmd.Type, r))
		}
	}()

	events, next, err = engine.Apply(c.state, cmd, c.rng)
	if err != nil && !errors.Is(err, engine.ErrEmptyCandidateSet) {
		return c.state.Clone(), nil, nil, err
	}

	c.state = next
	at := c.now().UTC()
	entries = make([]journal.Entry, 0, len(events))
	for _, e := range events {
		c.version++
		entries = append(entries, journal.Entry{Version: c.version, At: at, Event: e})
	}
	return next.Clone(), events, entries, err
}

func (c *Coordinator) notify(ctx context.Context, events []engine.Event, entries []journal.Entry) {
	c.pub.Publish(topicsFor(events)...)

	if engine.ContainsEvent(events, engine.EvtQueueReshuffled) {
		c.log.Info("turn ran past the queue, reshuffled", zap.Int64("version", entries[len(entries)-1].Version))
	}

	if c.rec == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.rec.Record(recCtx, entries); err != nil {
		c.log.Warn("failed to record events", zap.Int("events", len(entries)), zap.Error(err))
	}
}

// topicsFor maps events to the resources they touched, first mention wins.
func topicsFor(events []engine.Event) []hub.Topic {
	var topics []hub.Topic
	seen := map[hub.Topic]bool{}
	for _, e := range events {
		var t hub.Topic
		switch e.Type {
		case engine.EvtQueueReplaced, engine.EvtTargetSold, engine.EvtQueueReshuffled:
			t = hub.TopicQueue
		case engine.EvtTurnSet:
			t = hub.TopicOrder
		case engine.EvtBidderSet, engine.EvtBidderCleared:
			t = hub.TopicBidder
		default:
			continue
		}
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	return topics
}

func translate(err error) error {
	var appErr *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, engine.ErrQueueEmpty):
		return apperrors.NotFound(apperrors.CodeQueueEmpty, "", err)
	case errors.Is(err, engine.ErrInvalidIndex):
		return apperrors.Validation(apperrors.CodeInvalidIndex, "", err)
	case errors.Is(err, engine.ErrInvalidBidder):
		return apperrors.Validation(apperrors.CodeInvalidBidder, "", err)
	case errors.Is(err, engine.ErrEmptyCandidateSet):
		return apperrors.NotFound(apperrors.CodeEmptyCandidateSet, "", err)
	default:
		return apperrors.Internal("session transition failed", err)
	}
}
