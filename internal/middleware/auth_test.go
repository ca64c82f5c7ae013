package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, userID, role string, expiresIn time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func authProtected(handler http.HandlerFunc) http.Handler {
	return AuthMiddleware(testSecret, zap.NewNop())(handler)
}

func TestAuthMiddleware_RejectsBadHeaders(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not a bearer token", "Basic dXNlcjpwYXNz"},
		{"bearer with empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"user_id": "abc", "role": "user",
				"exp": time.Now().Add(time.Hour).Unix(),
			})
			signed, _ := token.SignedString([]byte("other-secret"))
			return signed
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			handler := authProtected(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
			if called {
				t.Error("handler must not run for an unauthenticated request")
			}
		})
	}
}

func TestAuthMiddleware_RejectsExpiredToken(t *testing.T) {
	handler := authProtected(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "abc", "user", -time.Hour))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}
}

func TestAuthMiddleware_RejectsTokenWithoutIdentityClaims(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	handler := authProtected(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token without identity claims, got %d", w.Code)
	}
}

func TestProperty_ValidTokensCarryIdentityIntoContext(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("authenticated requests see the token's user and role", prop.ForAll(
		func(userID string, role string) bool {
			tokenString := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"user_id": userID,
				"role":    role,
				"exp":     time.Now().Add(time.Hour).Unix(),
			})
			signed, err := tokenString.SignedString([]byte(testSecret))
			if err != nil {
				return false
			}

			identityMatches := false
			handler := authProtected(func(w http.ResponseWriter, r *http.Request) {
				ctxUserID, okID := GetUserID(r.Context())
				ctxRole, okRole := GetUserRole(r.Context())
				identityMatches = okID && okRole && ctxUserID == userID && ctxRole == role
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			req.Header.Set("Authorization", "Bearer "+signed)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusOK && identityMatches
		},
		gen.Identifier(),
		gen.OneConstOf("user", "admin"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_TamperedTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("arbitrary bearer values never pass", prop.ForAll(
		func(junk string) bool {
			handler := authProtected(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			req.Header.Set("Authorization", "Bearer "+junk)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
