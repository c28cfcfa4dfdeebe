package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/page-votes/internal/pow"
	"github.com/serroba/page-votes/internal/votes"
)

const msgInternal = "internal server error"

// ErrorResponse is the error envelope every failure is rendered with.
type ErrorResponse struct {
	status  int
	Message string `doc:"Short human readable reason" example:"token expired" json:"error"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *ErrorResponse) GetStatus() int {
	return e.status
}

func init() {
	huma.NewError = NewError
}

// NewError builds the error envelope for huma. Schema validation failures are client
// errors and are reported as 400 rather than 422. Server side details never reach
// the client.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	switch {
	case status == http.StatusInternalServerError:
		msg = msgInternal
	case status < http.StatusInternalServerError && len(errs) > 0 && errs[0] != nil:
		msg += ": " + errs[0].Error()
	}

	return &ErrorResponse{status: status, Message: msg}
}

// rejections are reported to the client verbatim.
var rejections = []error{
	votes.ErrMissingDirection,
	votes.ErrInvalidDelta,
	pow.ErrMalformedToken,
	pow.ErrURLMismatch,
	pow.ErrTokenExpired,
	pow.ErrBadSignature,
	pow.ErrInvalidProofOfWork,
	pow.ErrTokenReused,
}

// statusError maps a domain error to the response the client sees.
func statusError(err error) huma.StatusError {
	if errors.Is(err, pow.ErrInvalidInput) {
		return &ErrorResponse{status: http.StatusBadRequest, Message: "missing or malformed url"}
	}

	for _, target := range rejections {
		if errors.Is(err, target) {
			return &ErrorResponse{status: http.StatusBadRequest, Message: target.Error()}
		}
	}

	if errors.Is(err, votes.ErrStorage) {
		return &ErrorResponse{status: http.StatusServiceUnavailable, Message: "storage unavailable"}
	}

	return &ErrorResponse{status: http.StatusInternalServerError, Message: msgInternal}
}
