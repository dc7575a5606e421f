package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/internal/users"
	pkgauth "github.com/avelinabooks/bookshop-backend/pkg/auth"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db/dbtest"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/redis"
	"github.com/avelinabooks/bookshop-backend/pkg/security"
)

// Fast argon parameters keep the hashing tests quick.
var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret-test-secret-test-secret",
	Issuer:            "bookshop-test",
	ExpirationMinutes: 30,
}

type fakeLimiter struct {
	counts map[string]int64
	limits map[string]bool
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: make(map[string]int64), limits: make(map[string]bool)}
}

func (l *fakeLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	l.counts[scope]++
	if l.limits[scope] {
		return false, l.counts[scope], nil
	}
	return l.counts[scope] <= limit, l.counts[scope], nil
}

type fakeSessionStore struct {
	values map[string]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{values: make(map[string]string)}
}

func (s *fakeSessionStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.values[key] = value.(string)
	return nil
}

func (s *fakeSessionStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *fakeSessionStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *fakeSessionStore) SessionKey(id string) string {
	return "bookshop:session:" + id
}

type authFixture struct {
	svc      Service
	limiter  *fakeLimiter
	sessions *fakeSessionStore
	conn     *gorm.DB
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	conn := dbtest.Open(t)
	lim := newFakeLimiter()
	sessions := newFakeSessionStore()
	svc, err := NewService(
		users.NewRepository(conn),
		users.NewGuestRepository(conn),
		lim,
		sessions,
		testJWTConfig,
		testPasswordConfig,
		config.RateLimitConfig{
			LoginWindow:       time.Minute,
			LoginAccountLimit: 5,
			LoginIPLimit:      20,
		},
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &authFixture{svc: svc, limiter: lim, sessions: sessions, conn: conn}
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	dto, err := fx.svc.Register(ctx, RegisterInput{
		Email:    "Reader@Example.com",
		Username: "reader",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if dto.Email != "reader@example.com" {
		t.Fatalf("expected lowercased email, got %s", dto.Email)
	}
	if dto.Tier != "user" {
		t.Fatalf("expected standard tier, got %s", dto.Tier)
	}

	result, err := fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.TwoFactorRequired {
		t.Fatalf("two-factor should be off for a fresh account")
	}
	if result.Token == "" {
		t.Fatalf("expected access token")
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig, result.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != dto.ID || claims.Tier != enums.TierUser {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// Email works as the login as well.
	if _, err := fx.svc.Login(ctx, LoginInput{Username: "reader@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Login by email: %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	input := RegisterInput{Email: "dup@example.com", Username: "dup", Password: "long enough"}
	if _, err := fx.svc.Register(ctx, input); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := fx.svc.Register(ctx, input)
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestRegisterValidation(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Register(ctx, RegisterInput{Email: "", Username: "x", Password: "long enough"})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = fx.svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "x", Password: "short"})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "reader", Password: "correct horse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "wrong"})
	expectCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = fx.svc.Login(ctx, LoginInput{Username: "nobody", Password: "whatever"})
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	dto, err := fx.svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "reader", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := users.NewRepository(fx.conn).SetActive(ctx, dto.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	_, err = fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "correct horse"})
	expectCode(t, err, pkgerrors.CodeForbidden)
}

func TestLoginThrottledByAccountScope(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.limiter.limits["login:account:reader"] = true

	_, err := fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "whatever"})
	expectCode(t, err, pkgerrors.CodeRateLimit)
}

func TestLoginThrottledByIPScope(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.limiter.limits["login:ip:10.0.0.9"] = true

	_, err := fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "whatever", IP: "10.0.0.9"})
	expectCode(t, err, pkgerrors.CodeRateLimit)
}

func TestTwoFactorLoginFlow(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	dto, err := fx.svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "reader", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	setup, err := fx.svc.SetupTwoFactor(ctx, dto.ID)
	if err != nil {
		t.Fatalf("SetupTwoFactor: %v", err)
	}
	if setup.Secret == "" || setup.ProvisioningURI == "" {
		t.Fatalf("expected secret and provisioning URI")
	}

	// The secret is inactive until confirmed.
	result, err := fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login before confirm: %v", err)
	}
	if result.TwoFactorRequired {
		t.Fatalf("two-factor must stay off until confirmed")
	}

	code, err := security.TOTPCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("TOTPCode: %v", err)
	}
	if err := fx.svc.ConfirmTwoFactor(ctx, dto.ID, code); err != nil {
		t.Fatalf("ConfirmTwoFactor: %v", err)
	}

	result, err = fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login with 2fa: %v", err)
	}
	if !result.TwoFactorRequired || result.SessionID == "" {
		t.Fatalf("expected pending session, got %+v", result)
	}
	if result.Token != "" {
		t.Fatalf("no token before the code step")
	}

	_, err = fx.svc.CompleteTwoFactor(ctx, result.SessionID, "000000")
	expectCode(t, err, pkgerrors.CodeUnauthorized)

	code, err = security.TOTPCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("TOTPCode: %v", err)
	}
	completed, err := fx.svc.CompleteTwoFactor(ctx, result.SessionID, code)
	if err != nil {
		t.Fatalf("CompleteTwoFactor: %v", err)
	}
	if completed.Token == "" {
		t.Fatalf("expected token after the code step")
	}

	// The pending session is single-use.
	_, err = fx.svc.CompleteTwoFactor(ctx, result.SessionID, code)
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestCompleteTwoFactorExpiredSession(t *testing.T) {
	fx := newAuthFixture(t)
	_, err := fx.svc.CompleteTwoFactor(context.Background(), uuid.NewString(), "123456")
	expectCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestDisableTwoFactor(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	dto, err := fx.svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "reader", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = fx.svc.DisableTwoFactor(ctx, dto.ID, "123456")
	expectCode(t, err, pkgerrors.CodeStateConflict)

	setup, err := fx.svc.SetupTwoFactor(ctx, dto.ID)
	if err != nil {
		t.Fatalf("SetupTwoFactor: %v", err)
	}
	code, err := security.TOTPCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("TOTPCode: %v", err)
	}
	if err := fx.svc.ConfirmTwoFactor(ctx, dto.ID, code); err != nil {
		t.Fatalf("ConfirmTwoFactor: %v", err)
	}

	if err := fx.svc.DisableTwoFactor(ctx, dto.ID, code); err != nil {
		t.Fatalf("DisableTwoFactor: %v", err)
	}

	result, err := fx.svc.Login(ctx, LoginInput{Username: "reader", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login after disable: %v", err)
	}
	if result.TwoFactorRequired {
		t.Fatalf("expected plain login after disable")
	}
}

func TestCreateGuestRequiresPhone(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	_, err := fx.svc.CreateGuest(ctx, CreateGuestInput{Phone: "  "})
	expectCode(t, err, pkgerrors.CodeValidation)

	guest, err := fx.svc.CreateGuest(ctx, CreateGuestInput{Phone: "555-0100"})
	if err != nil {
		t.Fatalf("CreateGuest: %v", err)
	}
	if guest.ID == uuid.Nil || guest.Phone != "555-0100" {
		t.Fatalf("unexpected guest: %+v", guest)
	}
}
