// Package model defines the data structures used throughout the application.
package model

import "time"

// Message roles. The assistant API only knows "user" and "assistant";
// we additionally tag persisted tool results as "tool" so transcripts can
// render them differently.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a session transcript.
//
// WHY Content string AND NOT A STRUCT?
// User and assistant rows hold plain text, tool rows hold a small JSON
// record (name, input, result). Storing all three as one string column
// keeps the schema stable no matter what the tool record grows, and lets
// the transcript renderer decide how much structure it needs per role.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`    // RoleUser, RoleAssistant, or RoleTool
	Content   string    `json:"content"` // text, or a JSON tool record for RoleTool
	CreatedAt time.Time `json:"createdAt"`
}
