package security_test

import (
	"strings"
	"testing"
	"time"

	"github.com/avelinabooks/bookshop-backend/pkg/security"
)

// Base32 encoding of the RFC 6238 reference key "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestTOTPCodeReferenceVectors(t *testing.T) {
	cases := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, tc := range cases {
		got, err := security.TOTPCode(rfcSecret, time.Unix(tc.unix, 0).UTC())
		if err != nil {
			t.Fatalf("TOTPCode(%d) returned error: %v", tc.unix, err)
		}
		if got != tc.want {
			t.Fatalf("TOTPCode(%d) = %s, want %s", tc.unix, got, tc.want)
		}
	}
}

func TestVerifyTOTPAcceptsAdjacentStep(t *testing.T) {
	at := time.Unix(1111111111, 0).UTC()
	previous, err := security.TOTPCode(rfcSecret, at.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("TOTPCode returned error: %v", err)
	}
	if !security.VerifyTOTP(rfcSecret, previous, at) {
		t.Fatal("expected previous step code to verify within skew")
	}
	if security.VerifyTOTP(rfcSecret, "000000", at) {
		t.Fatal("expected arbitrary code to fail")
	}
	if security.VerifyTOTP(rfcSecret, "12345", at) {
		t.Fatal("expected short code to fail")
	}
}

func TestGenerateTOTPSecret(t *testing.T) {
	secret, err := security.GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("GenerateTOTPSecret returned error: %v", err)
	}
	if len(secret) != 32 {
		t.Fatalf("expected 32 character secret, got %d", len(secret))
	}
	if _, err := security.TOTPCode(secret, time.Now()); err != nil {
		t.Fatalf("generated secret not usable: %v", err)
	}
}

func TestTOTPProvisioningURI(t *testing.T) {
	uri := security.TOTPProvisioningURI(rfcSecret, "reader@example.com", "Avelina Books")
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected scheme in %s", uri)
	}
	if !strings.Contains(uri, "secret="+rfcSecret) {
		t.Fatalf("secret missing from %s", uri)
	}
}
