package store

import (
	"context"
	"fmt"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// RecordSample appends one API request measurement.
func (s *Store) RecordSample(ctx context.Context, m *entities.MetricSample) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_metrics (endpoint, method, status, elapsed_ms, timestamp, user_id, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Endpoint, m.Method, m.Status, m.ElapsedMS, timeToInt(m.Timestamp), m.UserID, m.ErrorMsg)
	if err != nil {
		return fmt.Errorf("recording metric: %w", err)
	}
	return nil
}

// UsageSince aggregates per-endpoint request counts, error counts, and
// average latency for samples recorded after the cutoff.
func (s *Store) UsageSince(ctx context.Context, cutoff time.Time) (ports.UsageReport, error) {
	var report ports.UsageReport
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint,
			COUNT(*) AS requests,
			SUM(CASE WHEN status >= 400 THEN 1 ELSE 0 END) AS errors,
			AVG(elapsed_ms) AS avg_ms
		FROM api_metrics WHERE timestamp >= ?
		GROUP BY endpoint ORDER BY requests DESC`, timeToInt(cutoff))
	if err != nil {
		return report, fmt.Errorf("aggregating usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u ports.EndpointUsage
		if err := rows.Scan(&u.Endpoint, &u.Requests, &u.Errors, &u.AvgElapsedMS); err != nil {
			return report, fmt.Errorf("scanning usage row: %w", err)
		}
		report.ByEndpoint = append(report.ByEndpoint, u)
		report.TotalRequests += u.Requests
		report.TotalErrors += u.Errors
	}
	return report, rows.Err()
}

// ErrorsSince lists failed samples after the cutoff, newest first.
func (s *Store) ErrorsSince(ctx context.Context, cutoff time.Time, limit int) ([]entities.MetricSample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint, method, status, elapsed_ms, timestamp, user_id, error_msg
		FROM api_metrics
		WHERE timestamp >= ? AND error_msg != ''
		ORDER BY timestamp DESC LIMIT ?`, timeToInt(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("listing error samples: %w", err)
	}
	defer rows.Close()

	var samples []entities.MetricSample
	for rows.Next() {
		var m entities.MetricSample
		var ts int64
		if err := rows.Scan(&m.Endpoint, &m.Method, &m.Status, &m.ElapsedMS, &ts, &m.UserID, &m.ErrorMsg); err != nil {
			return nil, fmt.Errorf("scanning error sample: %w", err)
		}
		m.Timestamp = intToTime(ts)
		samples = append(samples, m)
	}
	return samples, rows.Err()
}
