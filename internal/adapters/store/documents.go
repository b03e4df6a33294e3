package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// CreateDocument records an ingested document.
func (s *Store) CreateDocument(ctx context.Context, d *entities.DocumentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, uploader_id, uploader_username,
			uploaded_at, file_type, chunk_count, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.UploaderID, d.UploaderUsername,
		timeToInt(d.UploadedAt), d.FileType, d.ChunkCount, d.SizeBytes)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// Document fetches a record or returns nil when absent.
func (s *Store) Document(ctx context.Context, id string) (*entities.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, uploader_id, uploader_username, uploaded_at,
			file_type, chunk_count, size_bytes
		FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return d, nil
}

// DeleteDocument removes the record; chunk deletion is the vector index's job.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments pages through document records, newest first.
func (s *Store) ListDocuments(ctx context.Context, filter ports.DocumentFilter) ([]entities.DocumentRecord, int, error) {
	where := "1=1"
	args := []interface{}{}
	if filter.UploaderID != "" {
		where += " AND uploader_id = ?"
		args = append(args, filter.UploaderID)
	}
	if filter.FileType != "" {
		where += " AND file_type = ?"
		args = append(args, filter.FileType)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, uploader_id, uploader_username, uploaded_at,
			file_type, chunk_count, size_bytes
		FROM documents WHERE `+where+`
		ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []entities.DocumentRecord
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, total, rows.Err()
}

func scanDocument(r rowScanner) (*entities.DocumentRecord, error) {
	var d entities.DocumentRecord
	var uploaded int64
	err := r.Scan(&d.ID, &d.Filename, &d.UploaderID, &d.UploaderUsername,
		&uploaded, &d.FileType, &d.ChunkCount, &d.SizeBytes)
	if err != nil {
		return nil, err
	}
	d.UploadedAt = intToTime(uploaded)
	return &d, nil
}
