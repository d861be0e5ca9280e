package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestTokenService returns a TokenService with a fixed secret so tests
// are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_SecretFloor(t *testing.T) {
	for _, secret := range []string{"", "short", "fifteen-chars!!"} {
		if _, err := NewTokenService(secret); err == nil {
			t.Errorf("NewTokenService(%q) accepted a secret under 16 characters", secret)
		}
	}
	if _, err := NewTokenService("this-is-16-chars"); err != nil {
		t.Fatalf("NewTokenService() rejected a 16-character secret: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	userID := "user-abc-123"

	token, err := ts.Generate(userID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// A JWT is header.payload.signature — exactly two dots.
	if got := strings.Count(token, "."); got != 2 {
		t.Fatalf("Generate() token has %d dots, want 2: %q", got, token)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != userID {
		t.Errorf("Validate() userID = %q, want %q", got, userID)
	}

	// The claims differ per user, so the signed strings must too.
	otherToken, err := ts.Generate("user-xyz-789")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if otherToken == token {
		t.Error("Generate() returned identical tokens for different user IDs")
	}
}

func TestGenerateWithDuration_FutureToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", time.Hour)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	userID, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() on 1h token error = %v", err)
	}
	if userID != "user-123" {
		t.Errorf("userID = %q, want %q", userID, "user-123")
	}
}

// TestValidate_Rejections drives Validate with every class of bad token:
// malformed strings, expiry problems, signature problems, and tokens that
// are cryptographically fine but carry the wrong claims. Each case builds
// its token fresh so the failures stay independent.
func TestValidate_Rejections(t *testing.T) {
	ts := newTestTokenService(t)

	// sign produces a token with our secret but arbitrary claims, for the
	// cases where the signature is valid and the claims are the problem.
	sign := func(t *testing.T, c jwt.RegisteredClaims) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ts.secret)
		if err != nil {
			t.Fatalf("signing test token: %v", err)
		}
		return token
	}

	cases := []struct {
		name string
		build func(t *testing.T) string
	}{
		{"empty string", func(t *testing.T) string {
			return ""
		}},
		{"garbage", func(t *testing.T) string {
			return "not.a.jwt.token"
		}},
		{"expired", func(t *testing.T) string {
			token, err := ts.GenerateWithDuration("user-123", -time.Second)
			if err != nil {
				t.Fatalf("GenerateWithDuration() error = %v", err)
			}
			return token
		}},
		{"tampered signature", func(t *testing.T) string {
			token, err := ts.Generate("user-123")
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			return token[:len(token)-3] + "xxx"
		}},
		{"signed with another secret", func(t *testing.T) string {
			other, err := NewTokenService("a-completely-different-secret!!!")
			if err != nil {
				t.Fatalf("NewTokenService() error = %v", err)
			}
			token, err := other.Generate("user-123")
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			return token
		}},
		{"alg none", func(t *testing.T) string {
			// The classic downgrade: a token whose header claims it needs
			// no signature at all. WithValidMethods must refuse it.
			c := jwt.RegisteredClaims{
				Subject:   "user-123",
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).
				SignedString(jwt.UnsafeAllowNoneSignatureType)
			if err != nil {
				t.Fatalf("signing unsigned token: %v", err)
			}
			return token
		}},
		{"wrong issuer", func(t *testing.T) string {
			return sign(t, jwt.RegisteredClaims{
				Subject:   "user-123",
				Issuer:    "some-other-app",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			})
		}},
		{"no expiry", func(t *testing.T) string {
			return sign(t, jwt.RegisteredClaims{
				Subject: "user-123",
				Issuer:  tokenIssuer,
			})
		}},
		{"no subject", func(t *testing.T) string {
			return sign(t, jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ts.Validate(tc.build(t)); err == nil {
				t.Fatal("Validate() accepted the token")
			}
		})
	}
}
