package handler

import (
	"net/http"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/gemini"
	"github.com/xenking/dormdash/internal/session"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			name:    "wrapped sentinel hides context",
			err:     errors.Wrapf(vendor.ErrItemNotFound, "get menu item %s", "secret-id"),
			code:    http.StatusNotFound,
			message: vendor.ErrItemNotFound.Error(),
		},
		{
			name:    "expired session",
			err:     errors.Wrap(session.ErrNotFound, "load session"),
			code:    http.StatusUnauthorized,
			message: session.ErrNotFound.Error(),
		},
		{name: "bad request", err: badRequest("malformed JSON body"), code: http.StatusBadRequest, message: "malformed JSON body"},
		{name: "session changed", err: session.ErrConflict, code: http.StatusConflict, message: session.ErrConflict.Error()},
		{name: "profile missing", err: auth.ErrProfileNotFound, code: http.StatusForbidden, message: auth.ErrProfileNotFound.Error()},
		{name: "conflict exhausted", err: errors.Wrap(rating.ErrRetriesExhausted, "submit"), code: http.StatusServiceUnavailable},
		{name: "gemini not configured", err: gemini.ErrNotConfigured, code: http.StatusServiceUnavailable},
		{name: "empty completion", err: gemini.ErrEmptyResponse, code: http.StatusBadGateway},
		{name: "unknown", err: errors.New("pq: relation does not exist"), code: http.StatusInternalServerError, message: "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := statusOf(tt.err)
			assert.Equal(t, tt.code, code)
			if tt.message != "" {
				assert.Equal(t, tt.message, msg)
			}
		})
	}
}
