package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
)

// Claims carried by API bearer tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// auth validates HS256 bearer tokens. An empty secret disables it.
type auth struct {
	secret []byte
	logger *slog.Logger
}

func newAuth(secret string, logger *slog.Logger) *auth {
	return &auth{secret: []byte(secret), logger: logger}
}

func (a *auth) Authenticate(next http.Handler) http.Handler {
	if len(a.secret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeUnauthorized(w, "missing authorization token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			common.LoggerFrom(r.Context(), a.logger).Warn("http.auth.rejected", "error", err)
			writeUnauthorized(w, "invalid token")
			return
		}

		noteSubject(r.Context(), claims.Subject)
		ctx := common.WithSubject(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: msg, Code: "UNAUTHORIZED"})
}
