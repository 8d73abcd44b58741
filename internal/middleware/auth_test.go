package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		token    string
		path     string
		header   string
		expected int
	}{
		{"no token configured", "", "/api/records", "", http.StatusOK},
		{"missing token", "secret", "/api/records", "", http.StatusUnauthorized},
		{"bearer token", "secret", "/api/records", "Bearer secret", http.StatusOK},
		{"wrong bearer token", "secret", "/api/records", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme rejected", "secret", "/api/records", "Basic secret", http.StatusUnauthorized},
		{"query token", "secret", "/api/view?token=secret", "", http.StatusOK},
		{"wrong query token", "secret", "/api/view?token=nope", "", http.StatusUnauthorized},
		{"health is open", "secret", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(tt.token)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}
