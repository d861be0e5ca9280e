// Package service — authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT) / PasswordService (bcrypt)
//
// Two ways in, one account model: username/password (Register, Login) and
// GitHub OAuth (LoginOrRegisterGitHub). Both paths end the same way, with
// an AuthResult bundling the user record and a signed JWT so the handler
// can set the cookie and respond in one step.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/scratchpad/internal/apperror"
	"github.com/sakif/scratchpad/internal/auth"
	"github.com/sakif/scratchpad/internal/model"
	"github.com/sakif/scratchpad/internal/repository"
)

// Account validation bounds. The password ceiling is bcrypt's own input
// limit; PasswordService would reject longer input anyway, but checking
// here turns it into a validation error instead of a 500.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Called from server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by every authentication operation: the user record
// plus the JWT issued for it.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a username/password account and signs the new user in.
//
// A taken username surfaces as apperror.ErrConflict, which the handler maps
// to 409. The check-then-insert has a race window (two simultaneous
// registrations of the same name), but the UNIQUE constraint on username
// still catches the loser; that rare insert error is worth not parsing
// driver error strings on every registration.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	if len(username) < MinUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be at least %d characters", MinUsernameLength))
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or less", MaxPasswordLength))
	}

	// Fail fast on a taken name; the DB constraint backs this up.
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil, apperror.Conflict("username", username)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking username %q: %w", username, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issueToken(user)
}

// Login authenticates a username/password account.
//
// Every failure mode (unknown username, OAuth-only account, wrong password)
// collapses into the same apperror.ErrUnauthorized with the same message.
// Distinguishing them would tell an attacker which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid username or password")
		}
		return nil, fmt.Errorf("service/auth: looking up user %q: %w", username, err)
	}

	// GitHub-only accounts have no password hash; they can't password-login.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issueToken(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// After the handler exchanges the GitHub code for a profile, this method
// upserts the user (insert on first login, profile refresh on repeat
// logins, keyed by the stable numeric GitHub ID) and issues a JWT.
//
// Username collisions: the first GitHub login wants to claim the GitHub
// login name as the local username, but a password account may already
// hold it. In that case the account is created as "<login>-<githubID>"
// instead. Repeat logins never touch the username, so the suffix sticks.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Username:  ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	// Only a first login inserts a row, so only then can the username
	// collide with an existing account.
	_, err := s.users.GetByGitHubID(ctx, ghUser.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		if _, nameErr := s.users.GetByUsername(ctx, ghUser.Login); nameErr == nil {
			user.Username = fmt.Sprintf("%s-%d", ghUser.Login, ghUser.ID)
		} else if !errors.Is(nameErr, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: checking username %q: %w", ghUser.Login, nameErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("service/auth: looking up github user %d: %w", ghUser.ID, err)
	}

	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issueToken(user)
}

// GetUserByID returns the user for the given internal ID. Used by the
// /api/me handler after the middleware has validated the JWT.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
// A thin delegation to TokenService.Validate so callers only import the
// service package.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

// issueToken signs a JWT for the user and bundles the pair.
func (s *AuthService) issueToken(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:  user,
		Token: token,
	}, nil
}
