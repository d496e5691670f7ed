// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Handlers never touch SQL; services never touch HTTP. The service receives
// the repository INTERFACE, not the sqlite type, so tests inject an
// in-memory mock (see entry_test.go) and nothing here knows about storage
// details.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/feed"
	"github.com/mshiraki/hibi/internal/model"
	"github.com/mshiraki/hibi/internal/repository"
)

// Validation constants. Named (not magic numbers) so error messages and
// tests can reference them.
const (
	MaxTitleLength   = 200
	MaxContentLength = 50000 // ~50KB of diary text
	dateLayout       = "2006-01-02"
)

// EntryService handles the business logic for diary entries.
//
// Besides validating and persisting, it is the feed's only publisher:
// after every successful mutation it reloads the owner's collection and
// broadcasts the new snapshot. Clients deliberately receive their own
// writes this way — the UI shows an entry only once the server confirms
// it, never from optimistic local state.
type EntryService struct {
	repo   repository.EntryRepository
	feed   *feed.Feed
	logger *slog.Logger
}

// NewEntryService creates an EntryService. The caller decides which
// repository implementation to inject (sqlite in production, a mock in tests).
func NewEntryService(repo repository.EntryRepository, f *feed.Feed, logger *slog.Logger) *EntryService {
	return &EntryService{
		repo:   repo,
		feed:   f,
		logger: logger,
	}
}

// Save upserts a diary entry for userID and broadcasts the resulting
// snapshot to the user's live subscribers.
//
// VALIDATION RULES:
//   - userID required (NotAuthenticated otherwise — the handler normally
//     guarantees this, but the service enforces it for every caller)
//   - id required: entries are documents at a client-minted key
//   - date must be a real ISO calendar date ("2024-03-10"); this is the
//     one invariant the data model promises about stored entries
//   - title and content may be empty, but not absurdly large
func (s *EntryService) Save(ctx context.Context, userID string, entry *model.Entry) error {
	if userID == "" {
		return apperror.NotAuthenticated("sign in to save entries")
	}

	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" {
		return apperror.ValidationFailed("id", "entry id is required")
	}

	// time.Parse both checks the format AND rejects impossible dates like
	// "2024-02-31". Round-tripping through Format catches non-canonical
	// spellings ("2024-3-1") that Parse would otherwise accept.
	entry.Date = strings.TrimSpace(entry.Date)
	parsed, err := time.Parse(dateLayout, entry.Date)
	if err != nil || parsed.Format(dateLayout) != entry.Date {
		return apperror.ValidationFailed("date",
			fmt.Sprintf("date must be a calendar date in %s form", dateLayout))
	}

	if len(entry.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if len(entry.Content) > MaxContentLength {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}

	entry.UserID = userID

	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.logger.Error("failed to save entry",
			slog.String("entryID", entry.ID),
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("saving entry: %w", err)
	}

	s.logger.Info("entry saved",
		slog.String("entryID", entry.ID),
		slog.String("userID", userID),
		slog.String("date", entry.Date),
	)

	s.publishSnapshot(ctx, userID)
	return nil
}

// Delete removes an entry by id and broadcasts the resulting snapshot.
// Idempotent: deleting an id that doesn't exist succeeds (the end state —
// entry absent — is the same either way).
func (s *EntryService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return apperror.NotAuthenticated("sign in to delete entries")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "entry id is required")
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		s.logger.Error("failed to delete entry",
			slog.String("entryID", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting entry: %w", err)
	}

	s.logger.Info("entry deleted",
		slog.String("entryID", id),
		slog.String("userID", userID),
	)

	s.publishSnapshot(ctx, userID)
	return nil
}

// List returns the user's entries, newest date first.
func (s *EntryService) List(ctx context.Context, userID string) ([]model.Entry, error) {
	if userID == "" {
		return nil, apperror.NotAuthenticated("")
	}

	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list entries",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	return entries, nil
}

// Watch opens a live subscription to the user's collection.
//
// It returns the CURRENT collection as the initial snapshot, plus a channel
// of replacement snapshots and a cancel function. The contract mirrors a
// document store's live query: the consumer's view is always the last
// snapshot it received, and cancel deterministically releases the
// subscription (defer it).
func (s *EntryService) Watch(ctx context.Context, userID string) ([]model.Entry, <-chan []model.Entry, func(), error) {
	if userID == "" {
		return nil, nil, nil, apperror.NotAuthenticated("")
	}

	// Subscribe BEFORE the initial load. The other order has a gap: a save
	// landing between load and subscribe would go unseen. This order at
	// worst delivers a snapshot equal to the initial one, which is harmless
	// under whole-replacement semantics.
	ch, cancel := s.feed.Subscribe(userID)

	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("loading initial snapshot: %w", err)
	}

	return entries, ch, cancel, nil
}

// publishSnapshot reloads the user's collection and broadcasts it.
//
// A reload failure here is logged, not returned: the mutation itself
// already succeeded, and subscribers will converge on the next successful
// publish. Return an error instead and the caller would report a "failed"
// save that actually persisted.
func (s *EntryService) publishSnapshot(ctx context.Context, userID string) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load snapshot for feed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.feed.Publish(userID, entries)
}
