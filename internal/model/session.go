// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Session represents one chat conversation with the assistant.
// The `json:"..."` tags tell Go's encoding/json package how to serialize/deserialize
// this struct to/from JSON. This is called a "struct tag" — metadata attached to fields.
//
// For example, when we marshal a Session to JSON:
//
//	session := Session{ID: "abc", Title: "plotting help"}
//	json.Marshal(session) → {"id":"abc","title":"plotting help",...}
type Session struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"` // internal ID of the user who owns this session
	Title     string    `json:"title"`
	Model     string    `json:"model"` // Anthropic model the session was started with
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
