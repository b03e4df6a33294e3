package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

type recordingIngestor struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingIngestor) Ingest(ctx context.Context, filename string, data []byte, fileType string, uploader *entities.User) (*entities.IngestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, filename)
	return &entities.IngestResult{DocumentID: "doc_abc", Filename: filename, ChunkCount: 1}, nil
}

func (r *recordingIngestor) filenames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestDropFolderIngestsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q2-report.txt"), []byte("revenue up"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xyz"), []byte("ignored"), 0o644))

	ingestor := &recordingIngestor{}
	system := &entities.User{ID: "system", Username: "system"}
	df, err := NewDropFolder(ingestor, system, zerolog.Nop())
	require.NoError(t, err)
	defer df.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = df.Watch(ctx, dir)
	}()

	require.Eventually(t, func() bool {
		return len(ingestor.filenames()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"q2-report.txt"}, ingestor.filenames())

	// Ingested files are cleared from the folder; unsupported ones stay.
	_, err = os.Stat(filepath.Join(dir, "q2-report.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "notes.xyz"))
	assert.NoError(t, err)

	cancel()
	<-done
}

func TestDropFolderIngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	ingestor := &recordingIngestor{}
	system := &entities.User{ID: "system", Username: "system"}
	df, err := NewDropFolder(ingestor, system, zerolog.Nop())
	require.NoError(t, err)
	defer df.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = df.Watch(ctx, dir) }()

	// Give the watcher a beat to register before dropping the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "balance.txt"), []byte("assets"), 0o644))

	require.Eventually(t, func() bool {
		return len(ingestor.filenames()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"balance.txt"}, ingestor.filenames())
}
