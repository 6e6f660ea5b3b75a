package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		key    string
		url    string
		header map[string]string
		want   int
	}{
		{name: "disabled", key: "", url: "/", want: http.StatusOK},
		{name: "missing", key: "secret", url: "/", want: http.StatusUnauthorized},
		{name: "header", key: "secret", url: "/", header: map[string]string{"X-API-Key": "secret"}, want: http.StatusOK},
		{name: "wrong header", key: "secret", url: "/", header: map[string]string{"X-API-Key": "nope"}, want: http.StatusForbidden},
		{name: "bearer", key: "secret", url: "/", header: map[string]string{"Authorization": "Bearer secret"}, want: http.StatusOK},
		{name: "query without upgrade", key: "secret", url: "/?api_key=secret", want: http.StatusUnauthorized},
		{name: "query on upgrade", key: "secret", url: "/?api_key=secret", header: map[string]string{"Upgrade": "websocket"}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(APIKeyMiddleware(tt.key))
			r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
