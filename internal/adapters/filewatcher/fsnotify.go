// Package filewatcher ingests documents dropped into a watched folder,
// so a shared corpus can be fed without going through the upload API.
package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

// settleDelay is how long a file must stay quiet before it is picked up;
// it keeps half-written copies from being ingested.
const settleDelay = 500 * time.Millisecond

// Ingestor is the slice of the ingestion pipeline the watcher needs.
type Ingestor interface {
	Ingest(ctx context.Context, filename string, data []byte, fileType string, uploader *entities.User) (*entities.IngestResult, error)
}

// DropFolder watches a directory and ingests every supported file that
// lands in it on behalf of a designated system account. Files are removed
// after successful ingestion; failures leave the file in place for retry.
type DropFolder struct {
	watcher  *fsnotify.Watcher
	ingestor Ingestor
	uploader *entities.User
	log      zerolog.Logger

	mu       sync.Mutex
	settling map[string]*time.Timer
}

// NewDropFolder creates the watcher. uploader is the account ingested
// documents are attributed to.
func NewDropFolder(ingestor Ingestor, uploader *entities.User, log zerolog.Logger) (*DropFolder, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DropFolder{
		watcher:  w,
		ingestor: ingestor,
		uploader: uploader,
		log:      log.With().Str("component", "drop_folder").Logger(),
		settling: map[string]*time.Timer{},
	}, nil
}

// Watch processes the directory until the context is cancelled. Files
// already present at startup are picked up first.
func (d *DropFolder) Watch(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := d.watcher.Add(dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			d.process(ctx, filepath.Join(dir, e.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !supportedExt(event.Name) {
				continue
			}
			d.scheduleProcess(ctx, event.Name)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Stop closes the underlying watcher.
func (d *DropFolder) Stop() error {
	return d.watcher.Close()
}

// scheduleProcess (re)arms the settle timer for path; the file is
// processed once writes stop arriving.
func (d *DropFolder) scheduleProcess(ctx context.Context, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.settling[path]; ok {
		timer.Reset(settleDelay)
		return
	}
	d.settling[path] = time.AfterFunc(settleDelay, func() {
		d.mu.Lock()
		delete(d.settling, path)
		d.mu.Unlock()
		d.process(ctx, path)
	})
}

func (d *DropFolder) process(ctx context.Context, path string) {
	if !supportedExt(path) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		d.log.Warn().Err(err).Str("path", path).Msg("reading dropped file")
		return
	}

	filename := filepath.Base(path)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	result, err := d.ingestor.Ingest(ctx, filename, data, fileType, d.uploader)
	if err != nil {
		d.log.Error().Err(err).Str("path", path).Msg("ingesting dropped file")
		return
	}

	d.log.Info().
		Str("document_id", result.DocumentID).
		Str("filename", filename).
		Int("chunks", result.ChunkCount).
		Msg("ingested dropped file")

	if err := os.Remove(path); err != nil {
		d.log.Warn().Err(err).Str("path", path).Msg("removing ingested file")
	}
}

func supportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".txt":
		return true
	}
	return false
}
