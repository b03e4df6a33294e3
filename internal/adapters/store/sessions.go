package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/google/uuid"
)

// CreateSession opens a new conversation thread for a user.
func (s *Store) CreateSession(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, created_at, last_activity)
		VALUES (?, ?, ?, ?)`,
		id, userID, timeToInt(now), timeToInt(now))
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

// Session fetches a session or returns nil when absent.
func (s *Store) Session(ctx context.Context, sessionID string) (*entities.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, last_activity FROM sessions WHERE id = ?`, sessionID)
	var sess entities.Session
	var created, activity int64
	err := row.Scan(&sess.ID, &sess.UserID, &created, &activity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	sess.CreatedAt = intToTime(created)
	sess.LastActivity = intToTime(activity)
	return &sess, nil
}

// AppendPair writes the user message at ts and the assistant message at a
// strictly later timestamp. Timestamps stay monotonic per session even when
// the wall clock does not: both inserts are bumped past the session's
// current maximum inside one transaction, and the whole operation is
// serialized across the process.
func (s *Store) AppendPair(ctx context.Context, sessionID, userText, assistantText string, ts time.Time) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var maxTS sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(timestamp) FROM messages WHERE session_id = ?", sessionID).Scan(&maxTS); err != nil {
		return fmt.Errorf("reading max timestamp: %w", err)
	}

	userTS := timeToInt(ts)
	if maxTS.Valid && userTS <= maxTS.Int64 {
		userTS = maxTS.Int64 + 1
	}
	assistantTS := userTS + 1

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, sessionID, entities.RoleUser, userText, userTS); err != nil {
		return fmt.Errorf("inserting user message: %w", err)
	}
	if _, err := stmt.ExecContext(ctx, sessionID, entities.RoleAssistant, assistantText, assistantTS); err != nil {
		return fmt.Errorf("inserting assistant message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ? WHERE id = ?", assistantTS, sessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return tx.Commit()
}

// History returns the most recent limit messages, oldest first. Older
// messages are retained but not returned.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]entities.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, timestamp FROM messages
		WHERE session_id = ? ORDER BY timestamp DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var msgs []entities.Message
	for rows.Next() {
		var m entities.Message
		var ts int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Timestamp = intToTime(ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Touch refreshes a session's last-activity marker.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ? WHERE id = ?", timeToInt(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// DeleteSession removes a session; its messages cascade.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// EvictInactive deletes sessions whose last activity predates the cutoff.
// Messages go with their session in the same transaction.
func (s *Store) EvictInactive(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE last_activity < ?", timeToInt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("evicting sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// SessionsByUser lists a user's sessions, most recent activity first.
func (s *Store) SessionsByUser(ctx context.Context, userID string, limit int) ([]entities.Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, created_at, last_activity FROM sessions
		WHERE user_id = ? ORDER BY last_activity DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []entities.Session
	for rows.Next() {
		var sess entities.Session
		var created, activity int64
		if err := rows.Scan(&sess.ID, &sess.UserID, &created, &activity); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.CreatedAt = intToTime(created)
		sess.LastActivity = intToTime(activity)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CountSessions counts sessions created since the cutoff (all when zero).
func (s *Store) CountSessions(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE created_at >= ?", timeToInt(since)).Scan(&n)
	return n, err
}

// CountMessages counts messages written since the cutoff (all when zero).
func (s *Store) CountMessages(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE timestamp >= ?", timeToInt(since)).Scan(&n)
	return n, err
}
