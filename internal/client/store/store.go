// Package store tracks the signed-in user's diary collection on the client.
//
// The store never mutates its entry list itself. All changes — its own
// saves and deletes included — arrive as whole-replacement snapshots from
// the live subscription. Save, then wait for the echo. The visible list is
// therefore always server-confirmed state, and "did my save stick?" has
// exactly one answer: it shows up when the server says so.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mshiraki/hibi/internal/model"
)

// Error kinds surfaced to the UI. Wrapped around the transport error with
// %w, so errors.Is finds the kind and the message keeps the cause.
var (
	ErrNotAuthenticated = errors.New("store: not authenticated")
	ErrFetchFailed      = errors.New("store: fetch failed")
	ErrSaveFailed       = errors.New("store: save failed")
	ErrDeleteFailed     = errors.New("store: delete failed")
)

// Collection is the slice of the remote document store the diary store
// needs. The production implementation is api.Client; tests inject a fake.
type Collection interface {
	// SubscribeEntries opens a live subscription to the user's collection,
	// ordered date-descending at the source. onSnapshot receives the
	// initial collection and then a full replacement after every change;
	// onError receives subscription failures. The returned func cancels
	// the subscription.
	SubscribeEntries(userID string, onSnapshot func([]model.Entry), onError func(error)) (cancel func(), err error)
	SaveEntry(ctx context.Context, entry *model.Entry) error
	DeleteEntry(ctx context.Context, id string) error
}

// Store holds the collection state for at most one user at a time.
type Store struct {
	mu         sync.Mutex
	userID     string
	entries    []model.Entry
	loading    bool
	err        error
	editTarget *model.Entry

	collection Collection
	cancel     func()
	onChange   func()
}

// New creates an empty, unsubscribed Store. Call SetUser when the identity
// becomes known.
func New(collection Collection, onChange func()) *Store {
	return &Store{
		collection: collection,
		onChange:   onChange,
	}
}

// SetUser switches the store to a new owner.
//
// Empty userID (signed out): the subscription is released and the state
// resets to an empty, non-loading, non-erroring collection. Sign-out is not
// a failure, so no FetchFailed is recorded.
//
// Non-empty userID: any previous subscription is released and a new one is
// opened. Entries stay loading until the first snapshot lands. A
// subscription failure is captured into state as ErrFetchFailed — there is
// no synchronous caller to hand it to — and the store does NOT retry;
// retrying is the caller's call.
func (s *Store) SetUser(userID string) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.userID = userID
	s.entries = nil
	s.editTarget = nil
	s.err = nil

	if userID == "" {
		s.loading = false
		s.mu.Unlock()
		s.notify()
		return
	}

	s.loading = true
	s.mu.Unlock()
	s.notify()

	cancel, err := s.collection.SubscribeEntries(userID,
		func(snapshot []model.Entry) { s.applySnapshot(userID, snapshot) },
		func(err error) { s.applyError(userID, err) },
	)

	s.mu.Lock()
	if s.userID != userID {
		// The user changed while we were subscribing. This subscription
		// belongs to nobody; drop it.
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	if err != nil {
		s.loading = false
		s.err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		s.mu.Unlock()
		s.notify()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()
}

// applySnapshot replaces the collection wholesale and clears any error.
func (s *Store) applySnapshot(userID string, snapshot []model.Entry) {
	s.mu.Lock()
	if s.userID != userID {
		// Stale delivery from a subscription being torn down.
		s.mu.Unlock()
		return
	}
	s.entries = snapshot
	s.loading = false
	s.err = nil

	// The edit target tracks the live collection: if the targeted entry
	// changed remotely we point at the fresh copy, and if it vanished the
	// slot clears.
	if s.editTarget != nil {
		s.editTarget = findEntry(s.entries, s.editTarget.ID)
	}
	s.mu.Unlock()
	s.notify()
}

// applyError captures a subscription failure into state.
func (s *Store) applyError(userID string, err error) {
	s.mu.Lock()
	if s.userID != userID {
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
	s.mu.Unlock()
	s.notify()
}

// Save upserts an entry by id. Requires a signed-in user; the remote store
// is never contacted without one. The local list is untouched — the saved
// entry appears via the next snapshot.
func (s *Store) Save(ctx context.Context, entry *model.Entry) error {
	s.mu.Lock()
	signedIn := s.userID != ""
	s.mu.Unlock()
	if !signedIn {
		return ErrNotAuthenticated
	}

	if err := s.collection.SaveEntry(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return nil
}

// Delete removes an entry by id. Idempotent — deleting an id that is
// already gone succeeds. Same precondition and echo semantics as Save.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	signedIn := s.userID != ""
	s.mu.Unlock()
	if !signedIn {
		return ErrNotAuthenticated
	}

	if err := s.collection.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	return nil
}

// SelectForEdit sets the edit-target slot to the entry with the given id,
// or clears it when id is empty or matches nothing in the current
// collection. An unknown id is not an error: the entry may simply have been
// deleted under us, and clearing the slot is the safe reading.
func (s *Store) SelectForEdit(id string) {
	s.mu.Lock()
	if id == "" {
		s.editTarget = nil
	} else {
		s.editTarget = findEntry(s.entries, id)
	}
	s.mu.Unlock()
	s.notify()
}

// EditTarget returns a copy of the entry currently selected for editing,
// or nil when composing fresh.
func (s *Store) EditTarget() *model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editTarget == nil {
		return nil
	}
	copied := *s.editTarget
	return &copied
}

// Entries returns a copy of the current collection snapshot. The copy keeps
// callers from mutating the store's view between snapshots.
func (s *Store) Entries() []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Loading reports whether the first snapshot is still outstanding.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the captured subscription error, or nil.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the live subscription, if any.
func (s *Store) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func findEntry(entries []model.Entry, id string) *model.Entry {
	for i := range entries {
		if entries[i].ID == id {
			copied := entries[i]
			return &copied
		}
	}
	return nil
}
