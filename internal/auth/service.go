package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/internal/users"
	pkgauth "github.com/avelinabooks/bookshop-backend/pkg/auth"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/redis"
	"github.com/avelinabooks/bookshop-backend/pkg/security"
)

const pendingSessionTTL = 5 * time.Minute

// Service exposes account registration and authentication operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*users.UserDTO, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	CompleteTwoFactor(ctx context.Context, sessionID, code string) (*LoginResult, error)
	SetupTwoFactor(ctx context.Context, userID uuid.UUID) (*TwoFactorSetup, error)
	ConfirmTwoFactor(ctx context.Context, userID uuid.UUID, code string) error
	DisableTwoFactor(ctx context.Context, userID uuid.UUID, code string) error
	CreateGuest(ctx context.Context, input CreateGuestInput) (*users.GuestDTO, error)
}

// limiter is the redis surface used for login throttling.
type limiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// sessionStore holds pending two-factor logins between the password step and
// the code step.
type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SessionKey(id string) string
}

type service struct {
	userRepo  *users.Repository
	guestRepo *users.GuestRepository
	limiter   limiter
	sessions  sessionStore
	jwtCfg    config.JWTConfig
	pwCfg     config.PasswordConfig
	rlCfg     config.RateLimitConfig
	now       func() time.Time
}

// NewService constructs the auth service.
func NewService(userRepo *users.Repository, guestRepo *users.GuestRepository, rl limiter, sessions sessionStore, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig, rlCfg config.RateLimitConfig) (Service, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if guestRepo == nil {
		return nil, fmt.Errorf("guest repository required")
	}
	if rl == nil {
		return nil, fmt.Errorf("rate limiter required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{
		userRepo:  userRepo,
		guestRepo: guestRepo,
		limiter:   rl,
		sessions:  sessions,
		jwtCfg:    jwtCfg,
		pwCfg:     pwCfg,
		rlCfg:     rlCfg,
		now:       time.Now,
	}, nil
}

// Register creates a standard-tier account.
func (s *service) Register(ctx context.Context, input RegisterInput) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and username are required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.userRepo.Create(ctx, &models.User{
		Email:          email,
		Username:       username,
		HashedPassword: hash,
		Phone:          input.Phone,
		FullName:       input.FullName,
		Tier:           enums.TierUser,
		IsActive:       true,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email or username already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert user")
	}
	return users.NewUserDTO(user), nil
}

// Login verifies credentials behind fixed-window rate limits. Accounts with
// two-factor enabled get a short-lived session instead of a token.
func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}

	if err := s.allow(ctx, "login:account:"+strings.ToLower(username), int64(s.rlCfg.LoginAccountLimit), s.rlCfg.LoginWindow); err != nil {
		return nil, err
	}
	if input.IP != "" {
		if err := s.allow(ctx, "login:ip:"+input.IP, int64(s.rlCfg.LoginIPLimit), s.rlCfg.LoginWindow); err != nil {
			return nil, err
		}
	}

	user, err := s.findByLogin(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is deactivated")
	}

	ok, err := security.VerifyPassword(input.Password, user.HashedPassword)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	if user.TwoFactorEnabled {
		sessionID := uuid.NewString()
		key := s.sessions.SessionKey(sessionID)
		if err := s.sessions.Set(ctx, key, user.ID.String(), pendingSessionTTL); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: store pending login")
		}
		return &LoginResult{TwoFactorRequired: true, SessionID: sessionID}, nil
	}

	return s.mintResult(user)
}

// CompleteTwoFactor exchanges a pending session plus a valid TOTP code for a token.
func (s *service) CompleteTwoFactor(ctx context.Context, sessionID, code string) (*LoginResult, error) {
	key := s.sessions.SessionKey(strings.TrimSpace(sessionID))
	raw, err := s.sessions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login session expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: load pending login")
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login session invalid")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login session invalid")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	if user.TwoFactorSecret == nil || !security.VerifyTOTP(*user.TwoFactorSecret, code, s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid two-factor code")
	}

	if err := s.sessions.Del(ctx, key); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: clear pending login")
	}
	return s.mintResult(user)
}

// SetupTwoFactor generates and stores a secret; it stays inactive until confirmed.
func (s *service) SetupTwoFactor(ctx context.Context, userID uuid.UUID) (*TwoFactorSetup, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "two-factor already enabled")
	}

	secret, err := security.GenerateTOTPSecret()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate totp secret")
	}
	user.TwoFactorSecret = &secret
	if _, err := s.userRepo.Update(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: store totp secret")
	}

	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: security.TOTPProvisioningURI(secret, user.Email, s.jwtCfg.Issuer),
	}, nil
}

// ConfirmTwoFactor activates two-factor after one valid code.
func (s *service) ConfirmTwoFactor(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorSecret == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "two-factor setup has not started")
	}
	if !security.VerifyTOTP(*user.TwoFactorSecret, code, s.now()) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid two-factor code")
	}
	user.TwoFactorEnabled = true
	if _, err := s.userRepo.Update(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: enable two-factor")
	}
	return nil
}

// DisableTwoFactor turns two-factor off after one valid code.
func (s *service) DisableTwoFactor(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "two-factor is not enabled")
	}
	if !security.VerifyTOTP(*user.TwoFactorSecret, code, s.now()) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid two-factor code")
	}
	user.TwoFactorEnabled = false
	user.TwoFactorSecret = nil
	if _, err := s.userRepo.Update(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: disable two-factor")
	}
	return nil
}

// CreateGuest registers a guest checkout identity.
func (s *service) CreateGuest(ctx context.Context, input CreateGuestInput) (*users.GuestDTO, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	guest, err := s.guestRepo.Create(ctx, &models.Guest{
		Email:    input.Email,
		Phone:    phone,
		FullName: input.FullName,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert guest")
	}
	return users.NewGuestDTO(guest), nil
}

func (s *service) allow(ctx context.Context, scope string, limit int64, window time.Duration) error {
	if limit <= 0 {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, scope, limit, window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, slow down")
	}
	return nil
}

// findByLogin accepts either a username or an email.
func (s *service) findByLogin(ctx context.Context, login string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.userRepo.FindByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.userRepo.FindByUsername(ctx, login)
	}
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	return user, nil
}

func (s *service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	return user, nil
}

func (s *service) mintResult(user *models.User) (*LoginResult, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Tier:     user.Tier,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &LoginResult{Token: token, User: users.NewUserDTO(user)}, nil
}
