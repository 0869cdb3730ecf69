package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		apiKey        string
		header        string
		wantCode      int
		wantError     string
		wantChallenge string
	}{
		{name: "disabled", apiKey: "", header: "", wantCode: http.StatusOK},
		{name: "missing header", apiKey: "secret", wantCode: http.StatusUnauthorized, wantError: "authorization required", wantChallenge: `Bearer realm="tbrag"`},
		{name: "basic scheme", apiKey: "secret", header: "Basic dXNlcjpwYXNz", wantCode: http.StatusUnauthorized, wantError: "authorization required", wantChallenge: `Bearer realm="tbrag"`},
		{name: "wrong token", apiKey: "secret", header: "Bearer wrong", wantCode: http.StatusUnauthorized, wantError: "invalid token", wantChallenge: "invalid_token"},
		{name: "correct token", apiKey: "secret", header: "Bearer secret", wantCode: http.StatusOK},
		{name: "lowercase scheme", apiKey: "secret", header: "bearer secret", wantCode: http.StatusOK},
		{name: "prefix of key", apiKey: "secret", header: "Bearer sec", wantCode: http.StatusUnauthorized, wantError: "invalid token", wantChallenge: "invalid_token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := authMiddleware(tc.apiKey, okHandler)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if tc.wantCode == http.StatusOK {
				return
			}
			if got := w.Header().Get("WWW-Authenticate"); !strings.Contains(got, tc.wantChallenge) {
				t.Errorf("WWW-Authenticate = %q, want it to contain %q", got, tc.wantChallenge)
			}
			var e errorResponse
			if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if e.Error != tc.wantError {
				t.Errorf("error = %q, want %q", e.Error, tc.wantError)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
		wantOK bool
	}{
		{"Bearer mytoken", "mytoken", true},
		{"BEARER mytoken", "mytoken", true},
		{"Bearer  spaced ", "spaced", true},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, ok := bearerToken(req)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.wantOK)
		}
	}
}
