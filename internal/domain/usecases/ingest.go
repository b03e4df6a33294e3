// Package usecases contains application business rules.
// Usecases orchestrate entities through port interfaces; they hold no
// framework code and no provider specifics.
package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/settings"
)

// embedBatchSize bounds one embedding call; batches run concurrently.
const (
	embedBatchSize   = 100
	embedConcurrency = 4
)

// IngestUseCase turns an uploaded file into indexed chunks plus a document
// record. The vector write is a single batch: a failure anywhere rolls the
// document's chunks back so the index never holds a partial document.
type IngestUseCase struct {
	extractor ports.Extractor
	embedder  ports.EmbeddingService
	index     ports.VectorIndex
	docs      ports.DocumentStore
	snapshot  func() settings.Snapshot
	split     func(chunkSize, chunkOverlap int) ports.Splitter
	log       zerolog.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// split builds a splitter for the chunking parameters active at call time.
func NewIngestUseCase(
	extractor ports.Extractor,
	embedder ports.EmbeddingService,
	index ports.VectorIndex,
	docs ports.DocumentStore,
	snapshot func() settings.Snapshot,
	split func(chunkSize, chunkOverlap int) ports.Splitter,
	log zerolog.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		docs:      docs,
		snapshot:  snapshot,
		split:     split,
		log:       log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest validates, extracts, chunks, embeds, and indexes one file.
func (uc *IngestUseCase) Ingest(ctx context.Context, filename string, data []byte, fileType string, uploader *entities.User) (*entities.IngestResult, error) {
	snap := uc.snapshot()

	fileType = strings.ToLower(fileType)
	if !uc.typeSupported(fileType) {
		return nil, entities.NewError(entities.KindValidation,
			"unsupported file type %q; supported: %s", fileType, strings.Join(uc.extractor.SupportedTypes(), ", "))
	}
	if int64(len(data)) > snap.MaxFileSizeBytes() {
		return nil, entities.NewError(entities.KindPayloadTooLarge,
			"file exceeds the %d MB limit", snap.MaxFileSizeMB)
	}
	if len(data) == 0 {
		return nil, entities.NewError(entities.KindValidation, "file is empty")
	}

	text, err := uc.extractor.Extract(data, fileType)
	if err != nil {
		if entities.IsKind(err, entities.KindValidation) {
			return nil, err
		}
		return nil, entities.WrapError(entities.KindValidation, err, "could not extract text from %s", filename)
	}

	texts, err := uc.split(snap.ChunkSize, snap.ChunkOverlap).Split(text)
	if err != nil {
		return nil, entities.WrapError(entities.KindInternal, err, "splitting %s", filename)
	}
	if len(texts) == 0 {
		return nil, entities.NewError(entities.KindValidation, "no chunks produced from %s", filename)
	}

	embeddings, err := uc.embedAll(ctx, texts)
	if err != nil {
		return nil, entities.WrapError(entities.KindUpstream, err, "embedding %s", filename)
	}

	docID := newDocumentID()
	now := time.Now()
	meta := entities.ChunkMetadata{
		DocumentID: docID,
		Filename:   filename,
		UploadedAt: now,
		FileType:   fileType,
		SizeBytes:  int64(len(data)),
	}
	if uploader != nil {
		meta.UploaderID = uploader.ID
		meta.UploaderUsername = uploader.Username
	}

	chunks := make([]entities.Chunk, len(texts))
	for i, t := range texts {
		m := meta
		m.ChunkIndex = i
		chunks[i] = entities.Chunk{
			ID:         chunkID(docID, i),
			DocumentID: docID,
			Index:      i,
			Text:       t,
			Embedding:  embeddings[i],
			Metadata:   m,
		}
	}

	if err := uc.index.Upsert(ctx, chunks); err != nil {
		// The batch is transactional, but roll back defensively in case a
		// partial write slipped through.
		uc.rollback(ctx, docID)
		return nil, entities.WrapError(entities.KindInternal, err, "indexing %s", filename)
	}

	record := &entities.DocumentRecord{
		ID:         docID,
		Filename:   filename,
		UploadedAt: now,
		FileType:   fileType,
		ChunkCount: len(chunks),
		SizeBytes:  int64(len(data)),
	}
	if uploader != nil {
		record.UploaderID = uploader.ID
		record.UploaderUsername = uploader.Username
	}
	if err := uc.docs.CreateDocument(ctx, record); err != nil {
		uc.rollback(ctx, docID)
		return nil, entities.WrapError(entities.KindInternal, err, "recording %s", filename)
	}

	uc.log.Info().
		Str("document_id", docID).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Msg("document ingested")

	return &entities.IngestResult{
		DocumentID: docID,
		Filename:   filename,
		ChunkCount: len(chunks),
		UploadedAt: now,
	}, nil
}

// Delete removes a document's chunks and its record.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) (int, error) {
	removed, err := uc.index.DeleteByDocument(ctx, documentID)
	if err != nil {
		return 0, entities.WrapError(entities.KindInternal, err, "deleting chunks of %s", documentID)
	}
	if err := uc.docs.DeleteDocument(ctx, documentID); err != nil {
		return removed, entities.WrapError(entities.KindInternal, err, "deleting record of %s", documentID)
	}
	return removed, nil
}

// embedAll embeds texts in bounded concurrent batches, preserving order.
func (uc *IngestUseCase) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(texts); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := uc.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(embeddings[start:], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (uc *IngestUseCase) rollback(ctx context.Context, docID string) {
	if _, err := uc.index.DeleteByDocument(ctx, docID); err != nil {
		uc.log.Error().Err(err).Str("document_id", docID).Msg("rollback failed; index may hold orphaned chunks")
	}
}

func (uc *IngestUseCase) typeSupported(fileType string) bool {
	for _, t := range uc.extractor.SupportedTypes() {
		if t == fileType {
			return true
		}
	}
	return false
}

// newDocumentID mints a doc_-prefixed identifier with a 12-hex-char suffix.
func newDocumentID() string {
	return "doc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// chunkID is deterministic given the document and position.
func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, index)
}
