package store

import (
	"context"
	"errors"
	"testing"

	"github.com/mshiraki/hibi/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeCollection is a scriptable remote store. Tests push snapshots and
// errors through the captured callbacks, the way the real transport would.
type fakeCollection struct {
	onSnapshot func([]model.Entry)
	onError    func(error)
	cancelled  int
	subscribed []string // userIDs, in order

	subscribeErr error
	saveErr      error
	deleteErr    error

	savedEntries []model.Entry
	deletedIDs   []string
}

func (f *fakeCollection) SubscribeEntries(userID string, onSnapshot func([]model.Entry), onError func(error)) (func(), error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribed = append(f.subscribed, userID)
	f.onSnapshot = onSnapshot
	f.onError = onError
	return func() { f.cancelled++ }, nil
}

func (f *fakeCollection) SaveEntry(ctx context.Context, entry *model.Entry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedEntries = append(f.savedEntries, *entry)
	return nil
}

func (f *fakeCollection) DeleteEntry(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func entry(id, date, title string) model.Entry {
	return model.Entry{ID: id, Date: date, Title: title}
}

// =========================================================================
// SetUser / subscription TESTS
// =========================================================================

func TestSetUser_SubscribesAndLoadsFirstSnapshot(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	if !s.Loading() {
		t.Error("Loading() = false before the first snapshot, want true")
	}

	coll.onSnapshot([]model.Entry{entry("a", "2024-03-10", "T")})

	if s.Loading() {
		t.Error("Loading() = true after the first snapshot, want false")
	}
	got := s.Entries()
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Entries() = %+v, want the snapshot", got)
	}
}

func TestSnapshot_WhollyReplacesAndClearsError(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	coll.onSnapshot([]model.Entry{entry("a", "2024-03-10", "old")})
	coll.onError(errors.New("blip"))
	if s.Err() == nil {
		t.Fatal("setup: expected a captured error")
	}

	coll.onSnapshot([]model.Entry{entry("b", "2024-03-11", "new")})

	got := s.Entries()
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("Entries() = %+v, want only the new snapshot", got)
	}
	if s.Err() != nil {
		t.Error("a successful snapshot must clear the captured error")
	}
}

func TestSetUser_EmptyReleasesSubscriptionWithoutError(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	coll.onSnapshot([]model.Entry{entry("a", "2024-03-10", "T")})

	// Sign-out
	s.SetUser("")

	if coll.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1 (subscription released)", coll.cancelled)
	}
	if got := s.Entries(); len(got) != 0 {
		t.Errorf("Entries() = %+v after sign-out, want empty", got)
	}
	if s.Loading() {
		t.Error("Loading() = true after sign-out, want false")
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after sign-out, want nil — sign-out is not a fetch failure", s.Err())
	}
}

func TestSetUser_SwitchReleasesOldSubscription(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	s.SetUser("u2")

	if coll.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", coll.cancelled)
	}
	if len(coll.subscribed) != 2 || coll.subscribed[1] != "u2" {
		t.Errorf("subscribed = %v, want [u1 u2]", coll.subscribed)
	}
}

func TestSubscriptionFailure_CapturedNotThrown(t *testing.T) {
	coll := &fakeCollection{subscribeErr: errors.New("network down")}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")

	if !errors.Is(s.Err(), ErrFetchFailed) {
		t.Fatalf("Err() = %v, want ErrFetchFailed", s.Err())
	}
	if s.Loading() {
		t.Error("Loading() = true after a subscription failure, want false")
	}
	// No retry: exactly one subscribe attempt happened
	if len(coll.subscribed) != 0 {
		t.Errorf("subscribed = %v, want none recorded for the failed attempt", coll.subscribed)
	}
}

func TestStreamError_CapturedIntoState(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	coll.onError(errors.New("stream dropped"))

	if !errors.Is(s.Err(), ErrFetchFailed) {
		t.Fatalf("Err() = %v, want ErrFetchFailed", s.Err())
	}
}

// =========================================================================
// Save / Delete TESTS
// =========================================================================

func TestSave_RequiresIdentityWithoutContactingRemote(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	e := entry("a", "2024-03-10", "T")
	err := s.Save(context.Background(), &e)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Save() error = %v, want ErrNotAuthenticated", err)
	}
	if len(coll.savedEntries) != 0 {
		t.Error("unauthenticated Save must not reach the remote store")
	}
}

func TestSave_DoesNotMutateLocalEntries(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	coll.onSnapshot(nil)

	e := entry("a", "2024-03-10", "T")
	if err := s.Save(context.Background(), &e); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Wait for the echo: the entry is visible only after the snapshot
	if got := s.Entries(); len(got) != 0 {
		t.Fatalf("Entries() = %+v right after Save, want unchanged (empty)", got)
	}

	coll.onSnapshot([]model.Entry{e})
	if got := s.Entries(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Entries() = %+v after the echo snapshot, want the saved entry", got)
	}
}

func TestSave_FailureWrapsSaveFailed(t *testing.T) {
	coll := &fakeCollection{saveErr: errors.New("500")}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")

	e := entry("a", "2024-03-10", "T")
	err := s.Save(context.Background(), &e)
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Save() error = %v, want ErrSaveFailed", err)
	}
}

func TestSave_FailureKeepsTransportErrorInChain(t *testing.T) {
	// The transport distinguishes auth failures from other rejections; the
	// store's wrapping must not erase that, so the UI can route an expired
	// session back to the login form.
	authErr := errors.New("not authenticated")
	coll := &fakeCollection{saveErr: authErr}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")

	e := entry("a", "2024-03-10", "T")
	err := s.Save(context.Background(), &e)
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Save() error = %v, want ErrSaveFailed", err)
	}
	if !errors.Is(err, authErr) {
		t.Fatalf("Save() error = %v, want the transport error still matchable", err)
	}
}

func TestDelete_RequiresIdentityWithoutContactingRemote(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	err := s.Delete(context.Background(), "a")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Delete() error = %v, want ErrNotAuthenticated", err)
	}
	if len(coll.deletedIDs) != 0 {
		t.Error("unauthenticated Delete must not reach the remote store")
	}
}

func TestDelete_TwiceSucceedsBothTimes(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")

	if err := s.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	if err := s.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("second Delete() error = %v, want nil (idempotent)", err)
	}
}

func TestDelete_FailureWrapsDeleteFailed(t *testing.T) {
	coll := &fakeCollection{deleteErr: errors.New("500")}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")

	if err := s.Delete(context.Background(), "a"); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("Delete() error = %v, want ErrDeleteFailed", err)
	}
}

// =========================================================================
// SelectForEdit TESTS
// =========================================================================

func TestSelectForEdit_SetsAndClears(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	coll.onSnapshot([]model.Entry{entry("a", "2024-03-10", "T")})

	s.SelectForEdit("a")
	if target := s.EditTarget(); target == nil || target.ID != "a" {
		t.Fatalf("EditTarget() = %+v, want entry a", target)
	}

	s.SelectForEdit("")
	if s.EditTarget() != nil {
		t.Error("SelectForEdit(\"\") should clear the slot")
	}
}

func TestSelectForEdit_UnknownIDClearsSlot(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	coll.onSnapshot([]model.Entry{entry("a", "2024-03-10", "T")})

	s.SelectForEdit("a")
	s.SelectForEdit("no-such-entry")

	if s.EditTarget() != nil {
		t.Error("an unknown id should clear the slot, not error")
	}
}

func TestEditTarget_ClearedWhenEntryVanishesFromSnapshot(t *testing.T) {
	coll := &fakeCollection{}
	s := New(coll, nil)
	defer s.Close()

	s.SetUser("u1")
	coll.onSnapshot([]model.Entry{entry("a", "2024-03-10", "T")})
	s.SelectForEdit("a")

	// The entry is deleted remotely; the next snapshot no longer has it.
	coll.onSnapshot(nil)

	if s.EditTarget() != nil {
		t.Error("edit target should clear when the entry leaves the collection")
	}
}
