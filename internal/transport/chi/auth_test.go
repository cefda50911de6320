package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	const moviesPath = "/v1/indexes/movies/movies"

	tests := []struct {
		name    string
		keys    []string
		path    string
		headers map[string]string
		want    int
	}{
		{name: "no keys", path: moviesPath, want: http.StatusOK},
		{name: "empty string keys", keys: []string{"", ""}, path: moviesPath, want: http.StatusOK},
		{name: "missing credentials", keys: []string{"secret"}, path: moviesPath, want: http.StatusUnauthorized},
		{
			name: "basic scheme", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, want: http.StatusUnauthorized,
		},
		{
			name: "scheme without token", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{"Authorization": "Bearer"}, want: http.StatusUnauthorized,
		},
		{
			name: "wrong key", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{"Authorization": "Bearer wrong-key"}, want: http.StatusUnauthorized,
		},
		{
			name: "prefix of key", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{"Authorization": "Bearer secre"}, want: http.StatusUnauthorized,
		},
		{
			name: "bearer", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{"Authorization": "Bearer secret"}, want: http.StatusOK,
		},
		{
			name: "lowercase scheme", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{"Authorization": "bearer secret"}, want: http.StatusOK,
		},
		{
			name: "api key header", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{APIKeyHeader: "secret"}, want: http.StatusOK,
		},
		{
			name: "wrong api key header wins over bearer", keys: []string{"secret"}, path: moviesPath,
			headers: map[string]string{APIKeyHeader: "nope", "Authorization": "Bearer secret"}, want: http.StatusUnauthorized,
		},
		{
			name: "second of two keys", keys: []string{"key1", "key2"}, path: moviesPath,
			headers: map[string]string{"Authorization": "Bearer key2"}, want: http.StatusOK,
		},
		{name: "health is public", keys: []string{"secret"}, path: "/health", want: http.StatusOK},
		{name: "metrics is public", keys: []string{"secret"}, path: "/metrics", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyAuth(tt.keys)(okHandler())

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != ErrorCodeUnauthorized {
				t.Errorf("error code: got %s, want %s", errResp.Code, ErrorCodeUnauthorized)
			}
		})
	}
}
