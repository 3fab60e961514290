package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/internal/journal"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
	"github.com/DoyleJ11/lol-auction-backend/internal/ws"
)

// Session is the auction coordinator as the HTTP layer sees it.
type Session interface {
	Queue() []engine.Target
	Turn() int
	Bidder() (engine.Bidder, bool)
	LoadQueue(ctx context.Context) ([]engine.Target, error)
	Sell(ctx context.Context) (engine.Target, error)
	SetTurn(ctx context.Context, turn int) (int, error)
	SetBidder(ctx context.Context, name string, point int) (engine.Bidder, error)
	ClearBidder(ctx context.Context) error
}

type Deps struct {
	Session Session
	Roster  roster.Store
	Journal journal.Journal
	Hub     *hub.Hub
	Log     *zap.Logger
	WS      ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log.Named("http")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz(d.Hub))
	r.Get("/ws", ws.Handler(d.Hub, d.Log, d.WS))

	r.Route("/game", func(r chi.Router) {
		r.Route("/bid", func(r chi.Router) {
			r.Get("/target", GetQueue(d.Session))
			r.Post("/target", LoadQueue(d.Session, log))
			r.Post("/target/sell", Sell(d.Session, log))
			r.Get("/state", GetTurn(d.Session))
			r.Post("/state", SetTurn(d.Session, log))
			r.Get("/bidder", GetBidder(d.Session))
			r.Post("/bidder", SetBidder(d.Session, log))
			r.Post("/bidder/clear", ClearBidder(d.Session, log))
			r.Get("/events", Events(d.Journal, log))
		})

		r.Get("/participant", ListParticipants(d.Roster, log))
		r.Post("/participant/add", AddParticipant(d.Roster, d.Hub, log))
		r.Delete("/participant/delete", DeleteParticipant(d.Roster, d.Hub, log))
		r.Put("/participant/edit/line", AssignLine(d.Roster, d.Hub, log))
		r.Put("/participant/edit/leader", SetLeader(d.Roster, d.Hub, log))
		r.Put("/participant/edit/unleader", UnsetLeader(d.Roster, d.Hub, log))
		r.Put("/participant/edit/point", SetLeaderPoint(d.Roster, d.Hub, log))
		r.Get("/participant/leader", ListLeaders(d.Roster, log))
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", ListPlayers(d.Roster, log))
		r.Post("/add", AddPlayer(d.Roster, d.Hub, log))
		r.Delete("/delete", DeletePlayer(d.Roster, d.Hub, log))
		r.Put("/update", UpdatePlayer(d.Roster, d.Hub, log))
	})
	return r
}
