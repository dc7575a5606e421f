package auth

import (
	"github.com/avelinabooks/bookshop-backend/internal/users"
)

// RegisterInput holds the validated payload to create an account.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Phone    *string
	FullName *string
}

// LoginInput carries the credentials plus the caller's IP for rate limiting.
type LoginInput struct {
	Username string
	Password string
	IP       string
}

// LoginResult is either a minted token or a pending two-factor challenge.
type LoginResult struct {
	Token             string         `json:"token,omitempty"`
	TwoFactorRequired bool           `json:"two_factor_required"`
	SessionID         string         `json:"session_id,omitempty"`
	User              *users.UserDTO `json:"user,omitempty"`
}

// TwoFactorSetup carries the enrollment secret for authenticator apps.
type TwoFactorSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// CreateGuestInput holds the payload for guest checkout identities.
type CreateGuestInput struct {
	Email    *string
	Phone    string
	FullName *string
}
