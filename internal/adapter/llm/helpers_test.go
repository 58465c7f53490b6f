package llm

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
	}
	for _, tt := range tests {
		err := mapHTTPError(tt.status, []byte("body"))
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
	}

	err := mapHTTPError(http.StatusBadRequest, []byte("bad"))
	for _, sentinel := range []error{ErrRateLimited, ErrUnauthorized, ErrServer} {
		if errors.Is(err, sentinel) {
			t.Errorf("400 should not match %v", sentinel)
		}
	}
}
