// Package relay republishes hub topics onto NATS so processes other than
// the browser viewers can follow the auction.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/pkg/types"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Registry is the part of the hub the relay needs.
type Registry interface {
	Join(clientID string, outbox chan hub.Topic)
	Leave(clientID string)
	Done() <-chan struct{}
}

type Relay struct {
	pub    Publisher
	reg    Registry
	prefix string
	runID  string
	buffer int
	log    *zap.Logger
}

func New(pub Publisher, reg Registry, prefix, runID string, buffer int, log *zap.Logger) *Relay {
	if buffer <= 0 {
		buffer = 16
	}
	return &Relay{pub: pub, reg: reg, prefix: prefix, runID: runID, buffer: buffer, log: log.Named("relay")}
}

// Subject is where topic t is published, e.g. auction.TARGET_UPDATE.
func Subject(prefix string, t hub.Topic) string {
	return prefix + "." + t.Wire()
}

// Run joins the hub as a viewer and publishes until ctx ends or the hub
// shuts down. The hub drops a relay that falls behind like any other
// viewer; Run then joins again under a fresh ID.
func (r *Relay) Run(ctx context.Context) error {
	for {
		id := "relay-" + uuid.NewString()
		out := make(chan hub.Topic, r.buffer)
		r.reg.Join(id, out)
		r.log.Info("relay joined hub", zap.String("client_id", id))

		if !r.drain(ctx, out) {
			r.reg.Leave(id)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-r.reg.Done():
			return nil
		default:
		}
		r.log.Warn("relay dropped by hub, rejoining", zap.String("client_id", id))
	}
}

// drain reports whether the outbox was closed by the hub.
func (r *Relay) drain(ctx context.Context, out chan hub.Topic) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-r.reg.Done():
			return false
		case t, ok := <-out:
			if !ok {
				return true
			}
			r.publish(t)
		}
	}
}

func (r *Relay) publish(t hub.Topic) {
	payload, err := json.Marshal(types.RelayMessage{Type: t.Wire(), Run: r.runID})
	if err != nil {
		r.log.Error("encode relay message", zap.Stringer("topic", t), zap.Error(err))
		return
	}
	subject := Subject(r.prefix, t)
	if err := r.pub.Publish(subject, payload); err != nil {
		r.log.Warn("nats publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string, log *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	return nats.Connect(url, opts...)
}
