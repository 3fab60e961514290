package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/pkg/types"
)

// Registry is the part of the hub a viewer connection needs.
type Registry interface {
	Join(clientID string, outbox chan hub.Topic)
	Leave(clientID string)
}

type Options struct {
	Buffer         int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = 16
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	return o
}

// Handler upgrades to a WebSocket and streams topic notifications until
// either side goes away.
func Handler(h Registry, log *zap.Logger, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		out := make(chan hub.Topic, opts.Buffer)
		h.Join(clientID, out)
		defer h.Leave(clientID)

		ctx, cancel := context.WithCancel(r.Context())
		writerDone := make(chan struct{})
		defer func() {
			cancel()
			<-writerDone
		}()

		// Writer goroutine
		go func() {
			defer close(writerDone)
			defer cancel()
			ticker := time.NewTicker(opts.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-out:
					if !ok {
						// Dropped as too slow, or the hub shut down.
						conn.Close(websocket.StatusGoingAway, "notifications stopped")
						return
					}
					if err := write(ctx, conn, opts.WriteTimeout, types.ServerMessage{Type: t.Wire()}); err != nil {
						log.Debug("write failed", zap.String("client_id", clientID), zap.Error(err))
						return
					}
				case <-ticker.C:
					pingCtx, pingCancel := context.WithTimeout(ctx, opts.WriteTimeout)
					err := conn.Ping(pingCtx)
					pingCancel()
					if err != nil {
						log.Debug("ping failed", zap.String("client_id", clientID), zap.Error(err))
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.String("client_id", clientID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, opts.WriteTimeout, types.ServerMessage{Type: types.TypeError, Error: "bad json"})
				continue
			}
			switch cm.Type {
			case types.TypePing:
				_ = write(ctx, conn, opts.WriteTimeout, types.ServerMessage{Type: types.TypePong})
			default:
				_ = write(ctx, conn, opts.WriteTimeout, types.ServerMessage{Type: types.TypeError, Error: "unknown type"})
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, timeout time.Duration, msg types.ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
