package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies an error by who has to act on it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error codes shared with HTTP clients.
const (
	CodeInvalidIndex      = "INVALID_INDEX"
	CodeInvalidBidder     = "INVALID_BIDDER"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeEmptyCandidateSet = "EMPTY_CANDIDATE_SET"
	CodeQueueEmpty        = "QUEUE_EMPTY"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeUpstreamFailed    = "UPSTREAM_FAILED"
	CodeUpstreamTimeout   = "UPSTREAM_TIMEOUT"
	CodeInternal          = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, msg string, err error) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg, Err: err}
}

func NotFound(code, msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg, Err: err}
}

func Upstream(code, msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		if e.Code == CodeAlreadyExists {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		if e.Code == CodeUpstreamTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
