package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-auction-backend/internal/apperrors"
	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/internal/journal"
)

type loadQueueResponse struct {
	Success bool            `json:"success"`
	Empty   bool            `json:"empty"`
	Targets []engine.Target `json:"targets"`
}

type sellResponse struct {
	Message string        `json:"message"`
	Removed engine.Target `json:"removed"`
}

type turnRequest struct {
	Order *int `json:"order"`
}

type turnResponse struct {
	Message      string `json:"message"`
	CurrentOrder int    `json:"currentOrder"`
}

type bidderRequest struct {
	Name  string `json:"name"`
	Point *int   `json:"point"`
}

type bidderResponse struct {
	Message string `json:"message"`
	Bidder  any    `json:"bidder"`
}

func GetQueue(s Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Queue())
	}
}

// LoadQueue answers 200 with empty set when there is nobody left to
// auction; the queue is cleared either way.
func LoadQueue(s Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targets, err := s.LoadQueue(r.Context())
		if err != nil && !errors.Is(err, engine.ErrEmptyCandidateSet) {
			writeError(w, log, err)
			return
		}
		if targets == nil {
			targets = []engine.Target{}
		}
		writeJSON(w, http.StatusOK, loadQueueResponse{Success: true, Empty: len(targets) == 0, Targets: targets})
	}
}

func Sell(s Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := s.Sell(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sellResponse{Message: "Target sold", Removed: removed})
	}
}

func GetTurn(s Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Turn())
	}
}

func SetTurn(s Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req turnRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if req.Order == nil {
			writeError(w, log, apperrors.Validation(apperrors.CodeInvalidIndex, "order is required", nil))
			return
		}
		turn, err := s.SetTurn(r.Context(), *req.Order)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, turnResponse{Message: "currentOrder updated", CurrentOrder: turn})
	}
}

func GetBidder(s Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := s.Bidder()
		if !ok {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func SetBidder(s Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bidderRequest
		if err := decode(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if req.Point == nil {
			writeError(w, log, apperrors.Validation(apperrors.CodeInvalidBidder, "point is required", nil))
			return
		}
		b, err := s.SetBidder(r.Context(), req.Name, *req.Point)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, bidderResponse{Message: "bidder updated", Bidder: b})
	}
}

func ClearBidder(s Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ClearBidder(r.Context()); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, bidderResponse{Message: "bidder cleared", Bidder: struct{}{}})
	}
}

// Events serves this run's journal after ?since=N.
func Events(j journal.Journal, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since int64
		if raw := r.URL.Query().Get("since"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				writeError(w, log, apperrors.Validation(apperrors.CodeInvalidRequest, "since must be a non-negative integer", err))
				return
			}
			since = v
		}
		entries, err := j.Replay(r.Context(), since)
		if err != nil {
			writeError(w, log, apperrors.Upstream(apperrors.CodeUpstreamFailed, "journal unavailable", err))
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func Healthz(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		view, err := h.Stats(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "hub stopped"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "viewers": view.NumClients})
	}
}
