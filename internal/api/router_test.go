package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/api/handlers"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/storage/mock"
)

func newTestRouter(checks map[string]handlers.Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	store := mock.NewStore()
	return NewRouter(RouterConfig{
		APIKey:   "secret",
		Store:    store,
		Ledger:   attendance.NewLedger(store, nil),
		Cache:    gallery.NewCache(store),
		Policies: attendance.Policies{Routine: attendance.RoutinePolicy, Strict: attendance.StrictPolicy},
		Hub:      ws.NewHub(),
		Checks:   checks,
	})
}

func TestRouter(t *testing.T) {
	r := newTestRouter(map[string]handlers.Pinger{"postgres": mock.NewStore()})

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"healthz open", "/healthz", "", http.StatusOK},
		{"readyz open", "/readyz", "", http.StatusOK},
		{"metrics open", "/metrics", "", http.StatusOK},
		{"v1 missing key", "/v1/students", "", http.StatusUnauthorized},
		{"v1 wrong key", "/v1/students", "nope", http.StatusForbidden},
		{"v1 students", "/v1/students", "secret", http.StatusOK},
		{"v1 attendance", "/v1/attendance?date=2025-01-10", "secret", http.StatusOK},
		{"v1 notifications", "/v1/notifications", "secret", http.StatusOK},
		{"v1 signatures", "/v1/signatures", "secret", http.StatusOK},
		{"unknown route", "/v1/nothing", "secret", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
			}
		})
	}
}

func TestRouterReadyzReportsFailures(t *testing.T) {
	r := newTestRouter(map[string]handlers.Pinger{
		"nats": handlers.PingFunc(func(ctx context.Context) error { return errors.New("no connection") }),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no connection") {
		t.Errorf("body = %s", w.Body)
	}
}
