package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-auction-backend/internal/apperrors"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status for err's kind. Internal causes are
// logged, never echoed.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	body := errorBody{Error: err.Error(), Code: apperrors.CodeOf(err)}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
		if apperrors.KindOf(err) == apperrors.KindInternal {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

// decode reads one JSON object from the body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidRequest, "invalid request body", err)
	}
	return nil
}

func rosterError(err error) error {
	switch {
	case errors.Is(err, roster.ErrInvalid):
		return apperrors.Validation(apperrors.CodeInvalidRequest, "missing or empty field", err)
	case errors.Is(err, roster.ErrNotFound):
		return apperrors.NotFound(apperrors.CodeNotFound, "no matching record", err)
	case errors.Is(err, roster.ErrConflict):
		return apperrors.Validation(apperrors.CodeAlreadyExists, "record already exists", err)
	default:
		return apperrors.Upstream(apperrors.CodeUpstreamFailed, "roster store failed", err)
	}
}
