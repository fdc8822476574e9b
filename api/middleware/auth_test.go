package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgauth "github.com/angelmondragon/openshelf-backend/pkg/auth"
	"github.com/angelmondragon/openshelf-backend/pkg/config"
	"github.com/angelmondragon/openshelf-backend/pkg/enums"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/google/uuid"
)

func authTestConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "middleware-test-secret-32-bytes!!!!",
		Issuer:            "openshelf-test",
		ExpirationMinutes: 60,
	}
}

func authTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

func TestAuth(t *testing.T) {
	cfg := authTestConfig()
	userID := uuid.New()

	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleStaff,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var seenUserID uuid.UUID
	var seenStaff bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
		seenStaff = IsStaffFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Auth(cfg, authTestLogger())(next)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if seenUserID != userID {
			t.Fatal("user id must be seeded into the context")
		}
		if !seenStaff {
			t.Fatal("staff role must be seeded into the context")
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestRequireStaff(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireStaff(authTestLogger())(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", nil)
	req = req.WithContext(WithUser(req.Context(), uuid.New(), enums.UserRoleMember))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/books", nil)
	req = req.WithContext(WithUser(req.Context(), uuid.New(), enums.UserRoleStaff))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for staff, got %d", rec.Code)
	}
}
