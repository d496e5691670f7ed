package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/model"
	"github.com/mshiraki/hibi/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` assigns a nil *Y to a variable of interface type X.
// If *Y doesn't implement X, the compiler errors immediately instead of at
// some distant call site. Standard Go practice for interface implementations.
var _ repository.EntryRepository = (*DB)(nil)

// Upsert inserts the entry, or — if a row with this id already belongs to the
// same user — replaces its date, title and content wholesale.
//
// WHY UPSERT AND NOT SEPARATE CREATE/UPDATE?
// The entry id is minted on the CLIENT when the user first submits the form,
// so the server can't tell "new" from "edited" — and doesn't need to. A
// single `INSERT ... ON CONFLICT DO UPDATE` gives document-store semantics:
// PUT the document at its key, whatever was there before.
//
// The WHERE clause on the conflict arm pins ownership: if some other user
// already owns this id, zero rows are updated and we report a conflict
// instead of silently hijacking the row. With client-minted xids that should
// never happen honestly, but the check costs one comparison.
func (db *DB) Upsert(ctx context.Context, entry *model.Entry) error {
	now := time.Now()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO entries (id, user_id, date, title, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     date = excluded.date,
		     title = excluded.title,
		     content = excluded.content,
		     updated_at = excluded.updated_at
		 WHERE entries.user_id = excluded.user_id`,
		entry.ID,
		entry.UserID,
		entry.Date,
		entry.Title,
		entry.Content,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting entry %s: %w", entry.ID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Conflicting id owned by a different user — the WHERE arm rejected it.
		return apperror.Conflict("entry", entry.ID)
	}

	// Read canonical timestamps back so the caller holds the stored record.
	// created_at keeps its original value on the update path.
	err = db.conn.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM entries WHERE id = ?`, entry.ID,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: reading back entry %s: %w", entry.ID, err)
	}

	return nil
}

// GetByID retrieves a single entry, scoped to its owner.
// An entry that exists but belongs to someone else is NotFound from this
// user's point of view — we don't leak that the id is taken.
func (db *DB) GetByID(ctx context.Context, userID, id string) (*model.Entry, error) {
	var e model.Entry

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, date, title, content, created_at, updated_at
		 FROM entries
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&e.ID, &e.UserID, &e.Date, &e.Title, &e.Content, &e.CreatedAt, &e.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("entry", id)
		}
		return nil, fmt.Errorf("sqlite: getting entry %s: %w", id, err)
	}

	return &e, nil
}

// ListByUser returns every entry owned by userID, newest date first.
//
// ORDER BY date DESC is the source ordering the live feed promises its
// subscribers; created_at DESC breaks ties so multiple entries on the same
// day list newest-written first, deterministically.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Entry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, date, title, content, created_at, updated_at
		 FROM entries
		 WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing entries for user %s: %w", userID, err)
	}
	// CRITICAL: always close rows — they hold a pool connection.
	defer rows.Close()

	entries := make([]model.Entry, 0, 16)

	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Date, &e.Title, &e.Content,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning entry row: %w", err)
		}
		entries = append(entries, e)
	}

	// rows.Err() catches errors that happened DURING iteration.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating entries: %w", err)
	}

	return entries, nil
}

// Delete removes an entry by id, scoped to its owner.
//
// WHY NO NOT-FOUND CHECK?
// Deleting an id that doesn't exist (or was already deleted) is a success,
// not an error. The client retries freely and a double-tap on the delete
// button can't surface a spurious failure. This is the one place we do NOT
// follow the rows-affected-means-not-found pattern used elsewhere.
func (db *DB) Delete(ctx context.Context, userID, id string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting entry %s: %w", id, err)
	}
	return nil
}
