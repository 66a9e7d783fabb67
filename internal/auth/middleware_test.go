package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParseBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"Bearer   abc123  ", "abc123", true},
		{"abc123", "", false},          // bare token, no scheme
		{"Bearerabc123", "", false},    // scheme glued to the token
		{"Basic abc123", "", false},    // wrong scheme
		{"bearer abc123", "", false},   // scheme is case-sensitive
		{"Bearer ", "", false},         // scheme without token
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parseBearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseBearerToken(%q) = %q, %v, want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMiddlewareRejectsMalformedAuthorization(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// The cache is never consulted for malformed headers, so a nil-backed
	// service is enough here.
	svc := NewService(nil)
	router.GET("/ping", svc.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, header := range []string{"", "tok123", "Bearertok123", "Basic tok123"} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}
