package repository

import (
	"context"

	"github.com/mshiraki/hibi/internal/model"
)

type EntryRepository interface {
	// Upsert creates the entry if the (id, userID) document doesn't exist,
	// otherwise replaces its date/title/content wholesale.
	Upsert(ctx context.Context, entry *model.Entry) error
	GetByID(ctx context.Context, userID, id string) (*model.Entry, error)
	// ListByUser returns the user's entries ordered by date descending.
	ListByUser(ctx context.Context, userID string) ([]model.Entry, error)
	// Delete is idempotent: deleting an absent id is not an error.
	Delete(ctx context.Context, userID, id string) error
}

type UserRepository interface {
	CreateWithPassword(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// UpsertGoogle creates or refreshes an account keyed by Google's "sub" id.
	UpsertGoogle(ctx context.Context, user *model.User) error
	UpdateDisplayName(ctx context.Context, id, name string) error
}
