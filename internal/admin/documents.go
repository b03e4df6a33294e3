package admin

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finassist/finassist-go/internal/audit"
	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/domain/usecases"
)

// DocumentService gives admins oversight of the ingested corpus.
type DocumentService struct {
	docs   ports.DocumentStore
	index  ports.VectorIndex
	ingest *usecases.IngestUseCase
	audit  *audit.Logger
	log    zerolog.Logger
}

// NewDocumentService creates the admin document service.
func NewDocumentService(docs ports.DocumentStore, index ports.VectorIndex, ingest *usecases.IngestUseCase, auditLog *audit.Logger, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		docs:   docs,
		index:  index,
		ingest: ingest,
		audit:  auditLog,
		log:    log.With().Str("component", "admin_documents").Logger(),
	}
}

// List pages through document records.
func (s *DocumentService) List(ctx context.Context, filter ports.DocumentFilter) ([]entities.DocumentRecord, int, error) {
	return s.docs.ListDocuments(ctx, filter)
}

// Delete removes a document's chunks and record, then records the action.
// Chunk deletion is not reversible, so the audit entry is written even if
// it must report the partial failure.
func (s *DocumentService) Delete(ctx context.Context, admin *entities.User, documentID, clientAddr string) (int, error) {
	doc, err := s.docs.Document(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, entities.NewError(entities.KindNotFound, "document %s not found", documentID)
	}

	removed, err := s.ingest.Delete(ctx, documentID)
	details := map[string]interface{}{
		"filename":       doc.Filename,
		"chunks_removed": removed,
	}
	result := entities.ResultSuccess
	if err != nil {
		result = entities.ResultFailure
		details["error"] = err.Error()
	}
	if auditErr := s.audit.Record(ctx, admin, audit.ActionDeleteDocument, "document", documentID, details, clientAddr, result); auditErr != nil {
		if err == nil {
			return removed, entities.WrapError(entities.KindInternal, auditErr, "recording activity")
		}
	}
	return removed, err
}

// Stats summarizes the vector index.
func (s *DocumentService) Stats(ctx context.Context) (entities.IndexStats, error) {
	return s.index.Stats(ctx)
}
