package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/mattn/go-sqlite3"
)

const userColumns = `id, username, email, password_hash, full_name, active, admin,
	must_reset, reset_token, reset_token_at, created_at, updated_at, last_login_at`

// CreateUser inserts a new user, reporting Conflict on duplicate
// username or email.
func (s *Store) CreateUser(ctx context.Context, u *entities.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName,
		boolToInt(u.Active), boolToInt(u.Admin), boolToInt(u.MustReset),
		u.ResetToken, timeToInt(u.ResetTokenAt),
		timeToInt(u.CreatedAt), timeToInt(u.UpdatedAt), timeToInt(u.LastLoginAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			field := "username"
			if strings.Contains(err.Error(), "email") {
				field = "email"
			}
			return entities.NewError(entities.KindConflict, "%s already exists", field)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// UserByID fetches a user or returns nil without error when absent.
func (s *Store) UserByID(ctx context.Context, id string) (*entities.User, error) {
	return s.userBy(ctx, "id = ?", id)
}

// UserByUsername fetches a user by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*entities.User, error) {
	return s.userBy(ctx, "username = ?", username)
}

// UserByEmail fetches a user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return s.userBy(ctx, "email = ?", email)
}

// UserByResetToken finds the user whose persisted reset token matches.
func (s *Store) UserByResetToken(ctx context.Context, token string) (*entities.User, error) {
	if token == "" {
		return nil, nil
	}
	return s.userBy(ctx, "reset_token = ?", token)
}

func (s *Store) userBy(ctx context.Context, where string, arg interface{}) (*entities.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// UpdateUser writes every mutable field back.
func (s *Store) UpdateUser(ctx context.Context, u *entities.User) error {
	u.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = ?, password_hash = ?, full_name = ?, active = ?,
			admin = ?, must_reset = ?, reset_token = ?, reset_token_at = ?,
			updated_at = ?, last_login_at = ?
		WHERE id = ?`,
		u.Email, u.PasswordHash, u.FullName, boolToInt(u.Active),
		boolToInt(u.Admin), boolToInt(u.MustReset), u.ResetToken,
		timeToInt(u.ResetTokenAt), timeToInt(u.UpdatedAt), timeToInt(u.LastLoginAt),
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return entities.NewError(entities.KindNotFound, "user %s not found", u.ID)
	}
	return nil
}

// ListUsers pages through users with optional search and active filters.
func (s *Store) ListUsers(ctx context.Context, filter ports.UserFilter) ([]entities.User, int, error) {
	where := "1=1"
	args := []interface{}{}
	if filter.Search != "" {
		where += " AND (username LIKE ? OR email LIKE ?)"
		pat := "%" + filter.Search + "%"
		args = append(args, pat, pat)
	}
	if filter.Active != nil {
		where += " AND active = ?"
		args = append(args, boolToInt(*filter.Active))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE `+where+`
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []entities.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(r rowScanner) (*entities.User, error) {
	var u entities.User
	var active, admin, mustReset int
	var resetAt, createdAt, updatedAt, lastLogin int64
	err := r.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName,
		&active, &admin, &mustReset, &u.ResetToken, &resetAt,
		&createdAt, &updatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	u.Active = active != 0
	u.Admin = admin != 0
	u.MustReset = mustReset != 0
	u.ResetTokenAt = intToTime(resetAt)
	u.CreatedAt = intToTime(createdAt)
	u.UpdatedAt = intToTime(updatedAt)
	u.LastLoginAt = intToTime(lastLogin)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToInt(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func intToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 10 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
