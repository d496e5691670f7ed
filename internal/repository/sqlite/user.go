package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/model"
	"github.com/mshiraki/hibi/internal/repository"
	"github.com/rs/xid"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// nullIfEmpty maps "" to SQL NULL. The email column is UNIQUE, and Google
// accounts can arrive without a usable email — two of those must not collide
// on the empty string. NULLs never conflict with each other in SQLite.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateWithPassword inserts a new password-based account.
//
// The UNIQUE constraint on email is our duplicate detection: we attempt the
// INSERT and translate the constraint violation into a Conflict error, rather
// than SELECT-then-INSERT (which would race with a concurrent registration).
func (db *DB) CreateWithPassword(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// modernc.org/sqlite reports constraint failures as plain errors with
		// "UNIQUE constraint failed" in the message — no typed error to match.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByEmail looks up a password account for login.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	var googleID sql.NullString
	var emailCol sql.NullString

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, google_id, avatar_url, created_at, updated_at
		 FROM users WHERE email = ?`,
		email,
	).Scan(&u.ID, &emailCol, &u.DisplayName, &u.PasswordHash, &googleID,
		&u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}

	u.Email = emailCol.String
	u.GoogleID = googleID.String
	return &u, nil
}

// GetUserByID retrieves a user record by internal id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var googleID sql.NullString
	var emailCol sql.NullString

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, google_id, avatar_url, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &emailCol, &u.DisplayName, &u.PasswordHash, &googleID,
		&u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	u.Email = emailCol.String
	u.GoogleID = googleID.String
	return &u, nil
}

// UpsertGoogle inserts or refreshes an account keyed by Google's "sub" id.
//
// First OAuth login → INSERT with a fresh internal id. Subsequent logins →
// UPDATE email/avatar in case the user changed them on the Google side, but
// KEEP the existing internal id (entries reference it) and keep whatever
// display name the user chose in-app — Google doesn't own that field.
func (db *DB) UpsertGoogle(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE google_id = ?`, user.GoogleID,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by google_id: %w", err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET email = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			nullIfEmpty(user.Email),
			user.AvatarURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}

		// Preserve the in-app display name chosen before this login.
		var name string
		if err := db.conn.QueryRowContext(ctx,
			`SELECT display_name FROM users WHERE id = ?`, user.ID,
		).Scan(&name); err != nil {
			return fmt.Errorf("sqlite: reading back user %s: %w", user.ID, err)
		}
		user.DisplayName = name
		return nil
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, google_id, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullIfEmpty(user.Email),
		user.DisplayName,
		user.GoogleID,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting google user: %w", err)
	}

	return nil
}

// UpdateDisplayName sets the user's display name.
// Rows-affected tells us whether the user actually exists.
func (db *DB) UpdateDisplayName(ctx context.Context, id, name string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating display name for %s: %w", id, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}
