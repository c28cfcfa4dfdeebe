package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/page-votes/internal/handlers"
	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		msg        string
		errs       []error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "validation failures become bad requests",
			status:     http.StatusUnprocessableEntity,
			msg:        "validation failed",
			errs:       []error{&huma.ErrorDetail{Message: "expected integer"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "validation failed: expected integer",
		},
		{
			name:       "client errors keep their message",
			status:     http.StatusTooManyRequests,
			msg:        "rate limit exceeded",
			wantStatus: http.StatusTooManyRequests,
			wantMsg:    "rate limit exceeded",
		},
		{
			name:       "server errors are generic",
			status:     http.StatusInternalServerError,
			msg:        "unexpected error occurred",
			errs:       []error{fmt.Errorf("dial tcp: secret")},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := huma.NewError(tt.status, tt.msg, tt.errs...)

			assert.IsType(t, &handlers.ErrorResponse{}, err)
			assert.Equal(t, tt.wantStatus, err.GetStatus())
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}
