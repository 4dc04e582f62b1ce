// Package middleware provides HTTP middleware for the marketsync service.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexafin/marketsync/pkg/logger"
)

// Claims represents the session token claims issued by the platform's auth
// backend.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	schedulerKey contextKey = "scheduler"
)

// AuthMiddleware authenticates requests with either a user session token or
// the pre-shared sync secret. The dual path exists because the sync trigger
// must serve both interactive dashboard users and a scheduler with no user
// context.
type AuthMiddleware struct {
	jwtSecret  []byte
	syncSecret string
	logger     *logger.Logger
	skipPaths  map[string]bool
}

// NewAuthMiddleware creates an authentication middleware. Paths in skipPaths
// bypass authentication entirely.
func NewAuthMiddleware(jwtSecret []byte, syncSecret string, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{
		jwtSecret:  jwtSecret,
		syncSecret: syncSecret,
		logger:     log,
		skipPaths:  skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, http.StatusUnauthorized, "invalid Authorization header format")
			return
		}
		credential := parts[1]

		// Scheduler path: pre-shared secret, compared in constant time.
		if m.syncSecret != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(m.syncSecret)) == 1 {
			ctx := context.WithValue(r.Context(), schedulerKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Interactive path: session token.
		claims, err := m.validateToken(credential)
		if err != nil {
			m.logger.WithError(err).
				WithField("path", r.URL.Path).
				Warn("token validation failed")
			m.respondError(w, r, http.StatusUnauthorized, "invalid credential")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, fmt.Errorf("missing user_id claim")
	}
	return claims, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GetUserID extracts the authenticated user ID from the context. Empty for
// scheduler-authenticated requests.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(userIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// IsScheduler reports whether the request authenticated via the sync secret.
func IsScheduler(ctx context.Context) bool {
	v, _ := ctx.Value(schedulerKey).(bool)
	return v
}
