package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
)

type Publisher interface {
	Publish(topics ...hub.Topic)
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

type lineRequest struct {
	Nickname string `json:"nickname"`
	Line     string `json:"line"`
}

type pointRequest struct {
	Nickname string `json:"nickname"`
	Point    *int   `json:"point"`
}

type lineRecord struct {
	Line  string `json:"line"`
	Tier  string `json:"tier"`
	Champ string `json:"champ"`
}

// playerGroup is every line one player has, in line order.
type playerGroup struct {
	Nickname string       `json:"nickname"`
	Lines    []lineRecord `json:"lines"`
}

func ListParticipants(store roster.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participants, err := store.ListParticipants(r.Context())
		if err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		if participants == nil {
			participants = []roster.Participant{}
		}
		writeJSON(w, http.StatusOK, participants)
	}
}

func AddParticipant(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nicknameRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := store.AddParticipant(r.Context(), req.Nickname); err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		pub.Publish(hub.TopicRoster)
		writeJSON(w, http.StatusOK, messageBody{Message: "participant added"})
	}
}

func DeleteParticipant(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nicknameRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := store.DeleteParticipant(r.Context(), req.Nickname); err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		pub.Publish(hub.TopicRoster)
		writeJSON(w, http.StatusOK, messageBody{Message: "participant deleted"})
	}
}

func AssignLine(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lineRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := store.AssignLine(r.Context(), req.Nickname, req.Line); err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		pub.Publish(hub.TopicRoster)
		writeJSON(w, http.StatusOK, messageBody{Message: "line updated"})
	}
}

func SetLeader(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return leaderFlag(store.SetLeader, "leader set", pub, log)
}

func UnsetLeader(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return leaderFlag(store.UnsetLeader, "leader unset", pub, log)
}

func leaderFlag(apply func(ctx context.Context, nickname string) error, msg string, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nicknameRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := apply(r.Context(), req.Nickname); err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		pub.Publish(hub.TopicRoster, hub.TopicLeader)
		writeJSON(w, http.StatusOK, messageBody{Message: msg})
	}
}

func ListLeaders(store roster.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaders, err := store.ListLeaders(r.Context())
		if err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		if leaders == nil {
			leaders = []roster.Leader{}
		}
		writeJSON(w, http.StatusOK, leaders)
	}
}

func SetLeaderPoint(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pointRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if req.Point == nil {
			writeError(w, log, rosterError(roster.ErrInvalid))
			return
		}
		if err := store.SetLeaderPoint(r.Context(), req.Nickname, *req.Point); err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		pub.Publish(hub.TopicLeader)
		writeJSON(w, http.StatusOK, messageBody{Message: "point updated"})
	}
}

func ListPlayers(store roster.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := store.ListPlayerLines(r.Context())
		if err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		writeJSON(w, http.StatusOK, groupPlayers(lines))
	}
}

// groupPlayers expects lines sorted by nickname, then line order.
func groupPlayers(lines []roster.PlayerLine) []playerGroup {
	groups := []playerGroup{}
	for _, p := range lines {
		if n := len(groups); n == 0 || groups[n-1].Nickname != p.Nickname {
			groups = append(groups, playerGroup{Nickname: p.Nickname})
		}
		g := &groups[len(groups)-1]
		g.Lines = append(g.Lines, lineRecord{Line: p.Line, Tier: p.Tier, Champ: p.Champ})
	}
	return groups
}

func AddPlayer(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return playerWrite(store.AddPlayerLine, "player added", pub, log)
}

func UpdatePlayer(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return playerWrite(store.UpdatePlayerLine, "player updated", pub, log)
}

func playerWrite(apply func(ctx context.Context, p roster.PlayerLine) error, msg string, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roster.PlayerLine
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := apply(r.Context(), req); err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		pub.Publish(hub.TopicRoster)
		writeJSON(w, http.StatusOK, messageBody{Message: msg})
	}
}

func DeletePlayer(store roster.Store, pub Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lineRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := store.DeletePlayerLine(r.Context(), req.Nickname, req.Line); err != nil {
			writeError(w, log, rosterError(err))
			return
		}
		pub.Publish(hub.TopicRoster)
		writeJSON(w, http.StatusOK, messageBody{Message: "player deleted"})
	}
}
