package routes

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

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{
		Secret:            "router-test-secret",
		Issuer:            "bookshop-test",
		ExpirationMinutes: 30,
	}
	return cfg
}

func newTestRouter() http.Handler {
	return NewRouter(testConfig(), nil, nil, nil, nil, Services{})
}

func tokenFor(t *testing.T, tier enums.UserTier) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "router-test",
		Tier:     tier,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
		if env := rec.Header().Get("X-Bookshop-Env"); env != "test" {
			t.Fatalf("%s: env header = %q", path, env)
		}
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-abc" {
		t.Fatalf("request id header = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header was not generated")
	}
}

func TestProtectedRoutesRequireAuthentication(t *testing.T) {
	router := newTestRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/me/orders"},
		{http.MethodGet, "/api/v1/me/reviews"},
		{http.MethodPost, "/api/v1/auth/2fa/setup"},
		{http.MethodGet, "/api/admin/v1/users"},
	}
	for _, tc := range paths {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	router := newTestRouter()
	token := tokenFor(t, enums.TierUser)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/v1/users"},
		{http.MethodPost, "/api/v1/books/"},
		{http.MethodPost, "/api/v1/promotions/"},
		{http.MethodPost, "/api/v1/categories/"},
	}
	for _, tc := range paths {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: status = %d, want 403", tc.method, tc.path, rec.Code)
		}
	}
}

func TestPublicCatalogRoutesSkipAuthentication(t *testing.T) {
	router := newTestRouter()

	// Services are absent, so reaching the controller yields a 500.
	// Anything but 401/403/404 proves the route is wired and public.
	paths := []string{
		"/api/v1/books/",
		"/api/v1/books/bestsellers",
		"/api/v1/categories/",
		"/api/v1/promotions/",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code == http.StatusUnauthorized || rec.Code == http.StatusForbidden || rec.Code == http.StatusNotFound {
			t.Fatalf("GET %s: status = %d, route should be public", path, rec.Code)
		}
	}
}

func TestMetricsEndpointOnlyMountedWhenConfigured(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("without handler: status = %d, want 404", rec.Code)
	}

	withMetrics := NewRouter(testConfig(), nil, nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Services{})

	rec = httptest.NewRecorder()
	withMetrics.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with handler: status = %d, want 200", rec.Code)
	}
}

func TestUnknownRoutesReturn404(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wizards", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
