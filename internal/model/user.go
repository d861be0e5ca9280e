// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Two ways to sign in, one account model:
//   - username + password (PasswordHash holds the bcrypt hash)
//   - GitHub OAuth (GitHubID holds GitHub's numeric user ID)
//
// A password account has GitHubID == 0; an OAuth account has an empty
// PasswordHash. The UNIQUE constraints on username and github_id in the DB
// keep both identifier spaces collision-free.
//
// WHY GitHubID int64?
// GitHub user IDs are integers (e.g. 1234567). Using int64 avoids overflow
// for large GitHub account numbers.
//
// WHY json:"-" ON PasswordHash?
// The dash tells encoding/json to NEVER serialize this field. Whatever
// handler returns a User, the hash cannot leak into a response by accident.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"` // may be empty (hidden on GitHub, or not given)
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     int64     `json:"githubId,omitempty" db:"github_id"` // 0 for password-only accounts
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
