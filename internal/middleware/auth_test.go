package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testJWTSecret = []byte("test-jwt-secret")

func signToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestMiddleware() *AuthMiddleware {
	return NewAuthMiddleware(testJWTSecret, "scheduler-secret", nil, []string{"/healthz"})
}

func serveWithAuth(m *AuthMiddleware, r *http.Request) (*httptest.ResponseRecorder, *http.Request) {
	var seen *http.Request
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, r)
	return rec, seen
}

func TestAuthRejectsMissingCredential(t *testing.T) {
	m := newTestMiddleware()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)

	rec, seen := serveWithAuth(m, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if seen != nil {
		t.Fatal("handler must not run without a credential")
	}
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	m := newTestMiddleware()
	for _, header := range []string{"Basic abc", "Bearer", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodPost, "/sync", nil)
		req.Header.Set("Authorization", header)
		rec, _ := serveWithAuth(m, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestAuthAcceptsSyncSecret(t *testing.T) {
	m := newTestMiddleware()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("Authorization", "Bearer scheduler-secret")

	rec, seen := serveWithAuth(m, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !IsScheduler(seen.Context()) {
		t.Error("scheduler flag not set")
	}
	if GetUserID(seen.Context()) != "" {
		t.Error("scheduler requests carry no user")
	}
}

func TestAuthAcceptsValidSessionToken(t *testing.T) {
	m := newTestMiddleware()
	token := signToken(t, testJWTSecret, Claims{
		UserID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/prices", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, seen := serveWithAuth(m, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := GetUserID(seen.Context()); got != "user-42" {
		t.Errorf("user id = %q", got)
	}
	if IsScheduler(seen.Context()) {
		t.Error("session token must not set the scheduler flag")
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	m := newTestMiddleware()

	wrongKey := signToken(t, []byte("other-secret"), Claims{
		UserID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	expired := signToken(t, testJWTSecret, Claims{
		UserID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	noUser := signToken(t, testJWTSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	for name, token := range map[string]string{
		"wrong key":     wrongKey,
		"expired":       expired,
		"missing claim": noUser,
	} {
		req := httptest.NewRequest(http.MethodGet, "/prices", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec, _ := serveWithAuth(m, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestAuthSkipPaths(t *testing.T) {
	m := newTestMiddleware()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	rec, _ := serveWithAuth(m, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without credential", rec.Code)
	}
}

func TestAuthNoSyncSecretConfigured(t *testing.T) {
	m := NewAuthMiddleware(testJWTSecret, "", nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("Authorization", "Bearer ")

	rec, _ := serveWithAuth(m, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("empty credential accepted: status = %d", rec.Code)
	}
}
