package http

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// multipartOverhead leaves room for boundary lines and part headers on top
// of the file payload. The exact per-file limit is enforced downstream.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	snap := s.settings.Current()
	r.Body = http.MaxBytesReader(w, r.Body, snap.MaxFileSizeBytes()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondValidation(w, r, "missing file field: %v", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, entities.NewError(entities.KindPayloadTooLarge,
			"file exceeds the %d MB limit", snap.MaxFileSizeMB))
		return
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	result, err := s.ingest.Ingest(r.Context(), header.Filename, data, fileType, userFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

type documentView struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Uploader   string `json:"uploaded_by"`
	UploadedAt string `json:"upload_date"`
	FileType   string `json:"file_type"`
	ChunkCount int    `json:"chunk_count"`
	SizeBytes  int64  `json:"file_size_bytes"`
}

func documentViews(docs []entities.DocumentRecord) []documentView {
	views := make([]documentView, len(docs))
	for i, d := range docs {
		views[i] = documentView{
			DocumentID: d.ID,
			Filename:   d.Filename,
			Uploader:   d.UploaderUsername,
			UploadedAt: d.UploadedAt.UTC().Format("2006-01-02T15:04:05Z"),
			FileType:   d.FileType,
			ChunkCount: d.ChunkCount,
			SizeBytes:  d.SizeBytes,
		}
	}
	return views
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter := documentFilterFrom(r)
	docs, total, err := s.docs.ListDocuments(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documentViews(docs),
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.index.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	docID := chi.URLParam(r, "id")

	// Non-admins may only remove their own uploads.
	if !user.Admin {
		doc, err := s.docs.Document(r.Context(), docID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if doc == nil {
			respondError(w, r, entities.NewError(entities.KindNotFound, "document %s not found", docID))
			return
		}
		if doc.UploaderID != user.ID {
			respondError(w, r, entities.NewError(entities.KindAuthorization, "document belongs to another user"))
			return
		}
	}

	removed, err := s.adminDocs.Delete(r.Context(), user, docID, clientAddr(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"chunks_deleted": removed,
	})
}

func documentFilterFrom(r *http.Request) ports.DocumentFilter {
	q := r.URL.Query()
	return ports.DocumentFilter{
		UploaderID: q.Get("uploader_id"),
		FileType:   q.Get("file_type"),
		Page:       intQuery(q.Get("page"), 1),
		PageSize:   intQuery(q.Get("page_size"), 20),
	}
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
