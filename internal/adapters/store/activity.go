package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// AppendActivity writes one audit entry. The trail is append-only; there is
// no update or delete path.
func (s *Store) AppendActivity(ctx context.Context, e *entities.ActivityEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	details := "{}"
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encoding activity details: %w", err)
		}
		details = string(b)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (admin_id, admin_username, action_type,
			resource_type, resource_id, details, ip_address, timestamp, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AdminID, e.AdminUsername, e.Action, e.ResourceType, e.ResourceID,
		details, e.ClientAddr, timeToInt(e.Timestamp), e.Result)
	if err != nil {
		return fmt.Errorf("appending activity: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// ListActivity pages through the audit trail, newest first.
func (s *Store) ListActivity(ctx context.Context, filter ports.ActivityFilter) ([]entities.ActivityEntry, int, error) {
	where := "1=1"
	args := []interface{}{}
	if filter.AdminID != "" {
		where += " AND admin_id = ?"
		args = append(args, filter.AdminID)
	}
	if filter.Action != "" {
		where += " AND action_type = ?"
		args = append(args, filter.Action)
	}
	if filter.ResourceType != "" {
		where += " AND resource_type = ?"
		args = append(args, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		where += " AND resource_id = ?"
		args = append(args, filter.ResourceID)
	}
	if !filter.From.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, timeToInt(filter.From))
	}
	if !filter.To.IsZero() {
		where += " AND timestamp <= ?"
		args = append(args, timeToInt(filter.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_logs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting activity: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, admin_username, action_type, resource_type,
			resource_id, details, ip_address, timestamp, result
		FROM activity_logs WHERE `+where+`
		ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var entries []entities.ActivityEntry
	for rows.Next() {
		var e entities.ActivityEntry
		var details string
		var ts int64
		if err := rows.Scan(&e.ID, &e.AdminID, &e.AdminUsername, &e.Action,
			&e.ResourceType, &e.ResourceID, &details, &e.ClientAddr, &ts, &e.Result); err != nil {
			return nil, 0, fmt.Errorf("scanning activity: %w", err)
		}
		e.Timestamp = intToTime(ts)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, 0, fmt.Errorf("decoding activity details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
