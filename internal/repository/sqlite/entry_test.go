package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only during the test —
// fast, isolated, destroyed when the connection closes.
//
// newTestDB is a test helper; t.Helper() makes failures report at the
// CALLER's line, and t.Cleanup closes the DB even if a subtest fails.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a password account and returns it.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, DisplayName: "Tester", PasswordHash: "x"}
	if err := db.CreateWithPassword(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func upsertTestEntry(t *testing.T, db *DB, userID, id, date, title string) *model.Entry {
	t.Helper()
	entry := &model.Entry{ID: id, UserID: userID, Date: date, Title: title, Content: "body"}
	if err := db.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("failed to upsert test entry: %v", err)
	}
	return entry
}

func TestUpsert_Create(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	entry := upsertTestEntry(t, db, user.ID, "e1", "2024-03-10", "first")

	if entry.CreatedAt.IsZero() || entry.UpdatedAt.IsZero() {
		t.Error("Upsert() did not populate timestamps")
	}

	got, err := db.GetByID(context.Background(), user.ID, "e1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "first" || got.Date != "2024-03-10" || got.Content != "body" {
		t.Errorf("stored entry = %+v, want the saved fields back", got)
	}
}

func TestUpsert_ReplacesWholesale(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	upsertTestEntry(t, db, user.ID, "e1", "2024-03-10", "old")

	// Same id again: date/title/content must all be replaced, id unchanged,
	// and no second row created.
	edited := &model.Entry{ID: "e1", UserID: user.ID, Date: "2024-01-01", Title: "new", Content: "rewritten"}
	if err := db.Upsert(context.Background(), edited); err != nil {
		t.Fatalf("Upsert() on existing id error = %v", err)
	}

	entries, err := db.ListByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("after re-upsert, user has %d entries, want 1", len(entries))
	}
	if entries[0].Title != "new" || entries[0].Date != "2024-01-01" || entries[0].Content != "rewritten" {
		t.Errorf("re-upserted entry = %+v, want fully replaced fields", entries[0])
	}
}

func TestUpsert_ForeignOwnerConflict(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	upsertTestEntry(t, db, alice.ID, "e1", "2024-03-10", "alice's")

	// Bob reusing Alice's id must not overwrite her entry.
	err := db.Upsert(context.Background(), &model.Entry{
		ID: "e1", UserID: bob.ID, Date: "2024-03-11", Title: "bob's",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Upsert() with foreign id = %v, want ErrConflict", err)
	}

	got, err := db.GetByID(context.Background(), alice.ID, "e1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "alice's" {
		t.Errorf("alice's entry was overwritten: %+v", got)
	}
}

func TestListByUser_OrderedByDateDesc(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	upsertTestEntry(t, db, user.ID, "e1", "2024-01-05", "middle")
	upsertTestEntry(t, db, user.ID, "e2", "2024-03-10", "newest")
	upsertTestEntry(t, db, user.ID, "e3", "2023-12-31", "oldest")

	entries, err := db.ListByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ListByUser() returned %d entries, want 3", len(entries))
	}

	wantOrder := []string{"2024-03-10", "2024-01-05", "2023-12-31"}
	for i, want := range wantOrder {
		if entries[i].Date != want {
			t.Errorf("entries[%d].Date = %s, want %s (date descending)", i, entries[i].Date, want)
		}
	}
}

func TestListByUser_ScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	upsertTestEntry(t, db, alice.ID, "a1", "2024-03-10", "alice")
	upsertTestEntry(t, db, bob.ID, "b1", "2024-03-10", "bob")

	entries, err := db.ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "a1" {
		t.Errorf("alice sees %v, want only her own entry", entries)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	upsertTestEntry(t, db, user.ID, "e1", "2024-03-10", "doomed")

	ctx := context.Background()

	// First delete removes the row.
	if err := db.Delete(ctx, user.ID, "e1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.GetByID(ctx, user.ID, "e1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete = %v, want ErrNotFound", err)
	}

	// Second delete of the same id is a success, not an error.
	if err := db.Delete(ctx, user.ID, "e1"); err != nil {
		t.Errorf("second Delete() = %v, want nil (idempotent)", err)
	}

	// Deleting an id that never existed is also fine.
	if err := db.Delete(ctx, user.ID, "never-existed"); err != nil {
		t.Errorf("Delete() of unknown id = %v, want nil", err)
	}
}

func TestDelete_ScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	upsertTestEntry(t, db, alice.ID, "a1", "2024-03-10", "alice")

	// Bob "deleting" Alice's entry succeeds (idempotent no-op) but touches nothing.
	if err := db.Delete(context.Background(), bob.ID, "a1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.GetByID(context.Background(), alice.ID, "a1"); err != nil {
		t.Errorf("alice's entry disappeared: %v", err)
	}
}
