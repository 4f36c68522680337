package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moneytrail/apiserver/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer   abc  ", want: "abc"},
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer ", wantErr: true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", tt.header)
		got, err := bearerToken(r)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{services.ErrCooldown, http.StatusTooManyRequests, services.ErrCooldown.Error()},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{services.ErrInvalidIdentity, http.StatusBadRequest, "invalid user id"},
		{fmt.Errorf("wrapped: %w", services.ErrNotFound), http.StatusNotFound, "wrapped: not found"},
		{errors.New("mongo: connection refused"), http.StatusInternalServerError, "server error"},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.status, rr.Code, tt.err.Error())
		assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, tt.message), rr.Body.String())
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	request := func(addr string) int {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, r)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, request("10.0.0.1:1000"))
	assert.Equal(t, http.StatusNoContent, request("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:1002"))
	assert.Equal(t, http.StatusNoContent, request("10.0.0.2:1000"))
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.allow("10.0.0.1")

	now = now.Add(visitorIdleTimeout + time.Second)
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}
