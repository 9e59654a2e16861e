// Package auth provides bearer-token authentication for API clients.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// clientContextKey is the context key for storing client info
const clientContextKey contextKey = "client"

// ClientInfo holds client information extracted from authentication
type ClientInfo struct {
	ID   uuid.UUID
	Name string
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Middleware rejects requests without a valid bearer token and stores the client in
// the request context.
func Middleware(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Debug("rejected token", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
				if errors.Is(err, ErrExpiredToken) {
					writeUnauthorized(w, "token has expired")
					return
				}
				writeUnauthorized(w, "invalid token")
				return
			}

			clientID, err := claims.GetClientID()
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			ctx := WithClient(r.Context(), &ClientInfo{ID: clientID, Name: claims.ClientName})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the token from the Authorization header
func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("authorization header must use the Bearer scheme")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="kbsearch"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WithClient returns a context carrying the client.
func WithClient(ctx context.Context, client *ClientInfo) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// ClientFromContext extracts client info from context
func ClientFromContext(ctx context.Context) (*ClientInfo, bool) {
	client, ok := ctx.Value(clientContextKey).(*ClientInfo)
	return client, ok
}
