// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Entry represents a single diary entry.
//
// The `json:"..."` tags tell Go's encoding/json package how to serialize this
// struct to/from JSON — both in the HTTP API and in the SSE snapshot stream.
//
// FIELD NOTES:
//   - ID is minted CLIENT-SIDE (an xid) when the user first submits the entry,
//     and never changes afterwards. The server treats it as the document key:
//     PUT /api/entries/{id} is an upsert on this ID.
//   - Date is the calendar date the entry is ABOUT, as an ISO "YYYY-MM-DD"
//     string. It is user-editable and deliberately NOT a creation timestamp —
//     you can write today about last Tuesday. Keeping it a string (not a
//     time.Time) means lexicographic ordering equals chronological ordering,
//     which the grouping code relies on.
//   - UserID scopes the entry to exactly one owner. It never appears in
//     request bodies (the server fills it in from the authenticated user),
//     so it's tagged `json:"-"`.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Date      string    `json:"date"` // ISO calendar date, e.g. "2024-03-10"
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
