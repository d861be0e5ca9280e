// Package auth — password hashing for username/password accounts.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, and that slowness is the security property:
// an attacker who steals the users table must pay the same per-guess cost
// we pay per login, times billions of guesses. It also generates a random
// salt per hash and embeds it in the output, so identical passwords produce
// different hashes and no separate salt column is needed.
//
// Never store passwords in plain text or behind a fast hash (MD5, SHA-256).
// Fast hashes fall to GPU rigs in minutes.
//
// The stored string is self-describing:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 → 2^12 key expansion rounds)
//	 version
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for production hashing.
// Tune it so a single hash takes roughly 200-300ms on the hardware that
// serves logins; 12 lands there on current servers. Higher is stronger
// but every login and registration pays the cost in latency.
const defaultCost = 12

// PasswordService hashes and verifies passwords with bcrypt.
// It is a struct rather than free functions so the cost can be injected:
// tests run at the bcrypt minimum (cost 4) and finish in milliseconds.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with an explicit cost.
// Pass 4 (the bcrypt minimum) in tests; never use a low cost in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes a plaintext password.
//
// The output (e.g. "$2a$12$N9qo8uLOickgx2...") contains the salt and cost,
// so it can be stored as-is; Verify knows how to decode it.
//
// bcrypt silently truncates input beyond 72 bytes, which would make
// "correct-password-plus-garbage" verify successfully. We reject long
// passwords outright instead of truncating behind the caller's back.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches a stored bcrypt hash.
// Returns nil on a match and a non-nil error otherwise.
//
// bcrypt.CompareHashAndPassword compares in constant time, so response
// timing leaks nothing about how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
