// Package auth provides JWT issuance and validation plus the HTTP middleware
// that gates the chat API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User registers (username + password) or signs in via GitHub OAuth
//  2. Server issues a JWT and stores it in an HttpOnly "token" cookie
//  3. Every protected request (REST and the websocket upgrade alike) carries
//     the cookie; RequireAuth validates it and puts the userID in the context
//  4. Handlers read the userID with UserIDFromContext and scope all session
//     and artifact access to it
//
// WHY JWT?
// The token is self-contained: the signed payload carries the userID and the
// expiry, so validation needs no database lookup. That matters here because
// the same check runs on every websocket frame's parent connection and on
// every artifact download.
//
// A token is three base64url segments joined by dots:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: the claims, e.g. {"sub":"<userID>","iss":"scratchpad","exp":...}
//	- Signature: HMAC-SHA256 over the first two segments, keyed by the secret
//
// Anyone can READ the payload (it is only base64, not encrypted), but nobody
// without the secret can FORGE or ALTER it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is written into the "iss" claim and checked on validation,
// so tokens minted by other apps sharing a secret are still rejected.
const tokenIssuer = "scratchpad"

// AccessTokenTTL is the default lifetime of an access token.
//
// Chat sessions are long-lived: a user may leave a conversation open for
// hours and come back to it. A short-lived token would kick them out mid
// conversation (the websocket survives, but the next REST call would 401),
// so we issue day-long tokens and accept the weaker revocation story.
const AccessTokenTTL = 24 * time.Hour

// TokenService signs and verifies JWTs with a single HMAC secret.
// The same secret must be used for both operations; rotate it and every
// outstanding token becomes invalid, which is the intended failure mode.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production,
// e.g. JWT_SECRET=$(openssl rand -hex 32). We enforce a lower floor of
// 16 characters so an empty or trivially guessable secret fails fast at
// startup instead of silently signing weak tokens.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. jwt.RegisteredClaims supplies the standard
// fields (Subject, Issuer, IssuedAt, ExpiresAt); the internal user ID goes
// in "sub", which is the claim meant for "who this token belongs to".
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs an access token for the given userID with the
// default lifetime (AccessTokenTTL).
//
// Signing algorithm: HS256 (HMAC-SHA256). Symmetric signing is fine for a
// single-process server where the signer and the verifier are the same
// binary; asymmetric schemes (RS256 and friends) only pay off when other
// services need to verify tokens they cannot mint.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, AccessTokenTTL)
}

// GenerateWithDuration creates a token that expires after d. Tests use it
// to mint already-expired tokens; production code sticks to Generate.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the userID from its
// "sub" claim.
//
// Checks performed (mostly by the jwt library):
//   - the signature matches our secret (token wasn't tampered with)
//   - the token has an expiry and it is in the future
//   - the issuer is "scratchpad"
//   - the signing algorithm is HS256
//
// The algorithm check closes the classic confusion attack: without
// jwt.WithValidMethods an attacker could present a token whose header says
// "none" or swaps HMAC for RSA, and a careless parser might accept it.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	userID := c.Subject
	if userID == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return userID, nil
}
