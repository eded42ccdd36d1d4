package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDBChecker struct {
	err error
}

func (f *fakeDBChecker) PingContext(ctx context.Context) error { return f.err }

func TestHealthHandler_Healthy(t *testing.T) {
	r := newTestRouter(nil)
	h := NewHealthHandler(&fakeDBChecker{})
	r.GET("/health", h.Health)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), "uptime_seconds")
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	r := newTestRouter(nil)
	h := NewHealthHandler(&fakeDBChecker{err: errors.New("connection refused")})
	r.GET("/health", h.Health)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), `"unavailable"`)
	// Текст ошибки базы не протекает наружу.
	assert.NotContains(t, w.Body.String(), "connection refused")
}
