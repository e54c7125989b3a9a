package model

import "time"

// User represents an application user record as stored in the
// `users` table.  The password hash never leaves the repository and
// handler layers.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}

// UserRef is the public projection of a user embedded in API
// responses.
type UserRef struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Ref returns the public projection of u.
func (u User) Ref() UserRef { return UserRef{ID: u.ID, Name: u.Name, Email: u.Email} }
