package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/tbrag-go/internal/logging"
)

// authMiddleware requires "Authorization: Bearer <apiKey>" on the wrapped
// routes. An empty apiKey disables the check; New warns about it once at
// startup. Rejections are JSON 401s with a WWW-Authenticate challenge, and
// the presented token is never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if ok && subtle.ConstantTimeCompare([]byte(token), want) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		challenge, msg := `Bearer realm="tbrag"`, "authorization required"
		if ok {
			challenge, msg = `Bearer realm="tbrag", error="invalid_token"`, "invalid token"
		}
		logging.FromContext(r.Context()).Warn("auth: request rejected",
			slog.String("path", r.URL.Path),
			slog.Bool("token_present", ok),
		)
		w.Header().Set("WWW-Authenticate", challenge)
		writeError(w, http.StatusUnauthorized, msg, "")
	})
}

// bearerToken returns the credential of a Bearer Authorization header. The
// scheme is matched case-insensitively; ok is false when the header is
// missing, uses another scheme or carries an empty token.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
