// Package extractor turns uploaded files into plain text for chunking.
// Supported types: pdf, docx, txt.
package extractor

import (
	"fmt"
	"strings"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

// Extractor dispatches on file type. It implements ports.Extractor.
type Extractor struct{}

// New creates the extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedTypes lists accepted file types.
func (e *Extractor) SupportedTypes() []string {
	return []string{"pdf", "docx", "txt"}
}

// Extract returns the text content of data interpreted as fileType. An
// unrecognized type is a validation error; a file of a known type that
// yields no text is reported so callers can reject the upload.
func (e *Extractor) Extract(data []byte, fileType string) (string, error) {
	var text string
	var err error
	switch strings.ToLower(fileType) {
	case "pdf":
		text, err = extractPDF(data)
	case "docx":
		text, err = extractDOCX(data)
	case "txt":
		text, err = extractTXT(data)
	default:
		return "", entities.NewError(entities.KindValidation, "unsupported file type %q", fileType)
	}
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", fileType, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", entities.NewError(entities.KindValidation, "no extractable text in %s file", fileType)
	}
	return text, nil
}
