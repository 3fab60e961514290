package hub

import (
	"context"

	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type Join struct {
	ClientID string
	Outbox   chan Topic // where this viewer wants to receive topics
}

type Leave struct {
	ClientID string
}

// Publish is one batch of topics. A batch reaches every viewer contiguously
// and in order.
type Publish struct {
	Topics []Topic
}

// GetState reflects the registry without data races. Used by tests and the
// health endpoint.
type GetState struct {
	Reply chan View
}

type ShutdownHub struct{}

type View struct {
	NumClients int
	Published  int
}

func (Join) isHubMsg()        {}
func (Leave) isHubMsg()       {}
func (Publish) isHubMsg()     {}
func (GetState) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the pool of viewer outboxes. Only the loop goroutine touches
// clients, so joins and leaves can race with publishes freely.
type Hub struct {
	inbox     chan HubMsg
	clients   map[string]chan Topic
	published int
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		clients: make(map[string]chan Topic),
		log:     log.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) Publish(topics ...Topic) {
	if len(topics) == 0 {
		return
	}
	h.send(Publish{Topics: topics})
}

func (h *Hub) Join(clientID string, outbox chan Topic) {
	h.send(Join{ClientID: clientID, Outbox: outbox})
}

func (h *Hub) Leave(clientID string) {
	h.send(Leave{ClientID: clientID})
}

// Stats asks the loop for the current registry view.
func (h *Hub) Stats(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case h.inbox <- GetState{Reply: reply}:
	case <-h.ctx.Done():
		return View{}, context.Canceled
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		return View{}, context.Canceled
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (h *Hub) Shutdown() {
	h.send(ShutdownHub{})
}

// send never waits on a viewer, only on the loop, which itself never blocks.
func (h *Hub) send(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				if old, ok := h.clients[msg.ClientID]; ok {
					close(old)
				}
				h.clients[msg.ClientID] = msg.Outbox
				h.log.Debug("viewer joined", zap.String("client_id", msg.ClientID), zap.Int("viewers", len(h.clients)))

			case Leave:
				if ch, ok := h.clients[msg.ClientID]; ok {
					close(ch)
					delete(h.clients, msg.ClientID)
				}
				h.log.Debug("viewer left", zap.String("client_id", msg.ClientID), zap.Int("viewers", len(h.clients)))

			case Publish:
				h.published += len(msg.Topics)
				h.broadcast(msg.Topics)

			case GetState:
				msg.Reply <- View{NumClients: len(h.clients), Published: h.published}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.clients {
		close(ch) // Tell viewer no more topics
		delete(h.clients, id)
	}
	h.cancel()
}

func (h *Hub) broadcast(topics []Topic) {
	for id, ch := range h.clients {
		for _, t := range topics {
			if !h.deliver(id, ch, t) {
				break
			}
		}
	}
}

func (h *Hub) deliver(id string, ch chan Topic, t Topic) bool {
	select {
	case ch <- t:
		return true
	default:
		// Viewer is slow/full - drop them.
		h.log.Info("dropping slow viewer", zap.String("client_id", id), zap.Stringer("topic", t))
		close(ch)
		delete(h.clients, id)
		return false
	}
}
