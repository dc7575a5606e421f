package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/avelinabooks/bookshop-backend/pkg/auth"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
)

var testJWT = config.JWTConfig{
	Secret:            "middleware-test-secret",
	Issuer:            "bookshop-test",
	ExpirationMinutes: 30,
}

func mintToken(t *testing.T, userID uuid.UUID, tier enums.UserTier) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testJWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   userID,
		Username: "reader",
		Tier:     tier,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func claimsCapturingHandler(userID *uuid.UUID, tier *enums.UserTier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*userID = UserIDFromContext(r.Context())
		*tier = TierFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthSeedsContextFromBearerToken(t *testing.T) {
	wantID := uuid.New()
	var gotID uuid.UUID
	var gotTier enums.UserTier

	handler := Auth(testJWT, nil)(claimsCapturingHandler(&gotID, &gotTier))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, wantID, enums.TierVIP))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotID != wantID {
		t.Fatalf("user id = %s, want %s", gotID, wantID)
	}
	if gotTier != enums.TierVIP {
		t.Fatalf("tier = %q, want vip", gotTier)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsTamperedToken(t *testing.T) {
	otherSecret := testJWT
	otherSecret.Secret = "some-other-secret"
	token, err := pkgauth.MintAccessToken(otherSecret, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Tier:   enums.TierUser,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	var gotID uuid.UUID
	var gotTier enums.UserTier
	handler := OptionalAuth(testJWT, nil)(claimsCapturingHandler(&gotID, &gotTier))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotID != uuid.Nil {
		t.Fatalf("anonymous request carried user id %s", gotID)
	}
}

func TestOptionalAuthStillRejectsGarbageTokens(t *testing.T) {
	handler := OptionalAuth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireTierEnforcesMinimum(t *testing.T) {
	handler := RequireTier(enums.TierModerator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		tier enums.UserTier
		want int
	}{
		{enums.TierUser, http.StatusForbidden},
		{enums.TierVIP, http.StatusForbidden},
		{enums.TierModerator, http.StatusOK},
		{enums.TierAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		req = req.WithContext(WithTier(req.Context(), tc.tier))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("tier %q: status = %d, want %d", tc.tier, rec.Code, tc.want)
		}
	}
}

func TestRequireTierRejectsAnonymousContext(t *testing.T) {
	handler := RequireTier(enums.TierModerator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a tier")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestBearerTokenParsing(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"  Bearer   abc123  ", "abc123"},
		{"abc123", "abc123"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Fatalf("header %q: token = %q, want %q", tc.header, got, tc.want)
		}
	}
}
