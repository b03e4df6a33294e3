// Package splitter cuts document text into overlapping windows for
// embedding. It wraps the langchaingo recursive character splitter.
package splitter

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// Recursive implements ports.Splitter with recursive character splitting:
// paragraph boundaries first, then sentences, then words.
type Recursive struct {
	chunkSize    int
	chunkOverlap int
}

// NewRecursive creates a splitter with the given window size and overlap,
// both in characters.
func NewRecursive(chunkSize, chunkOverlap int) *Recursive {
	return &Recursive{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split cuts text into chunks. Text shorter than the window comes back as
// a single chunk.
func (r *Recursive) Split(text string) ([]string, error) {
	s := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(r.chunkSize),
		textsplitter.WithChunkOverlap(r.chunkOverlap),
	)
	chunks, err := s.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}
	return chunks, nil
}
