// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Two sign-in paths lead here:
//   - Email + password (the TUI client): Email and PasswordHash are set,
//     GoogleID is zero.
//   - Google OAuth (the browser): GoogleID holds Google's stable "sub"
//     identifier. We still mint our own internal string ID (xid) so primary
//     keys never depend on a third party's numbering scheme.
//
// WHY PasswordHash `json:"-"`?
// The dash tag excludes the field from JSON entirely. A bcrypt hash is not
// a secret in the cryptographic sense, but there is no reason to ever ship
// it to a client, so we make leaking it impossible at the type level.
//
// DisplayName is the only profile field the user can edit in-app (the
// header greeting). Empty means "no name set yet" — the UI falls back to a
// guest label.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-"` // Google's "sub" claim; empty for password accounts
	AvatarURL    string    `json:"avatarUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
