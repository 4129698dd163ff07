package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
	"github.com/fsnotify/fsnotify"
)

// Watcher re-runs the importer when photo files appear in a category directory
type Watcher struct {
	importer *Importer
	debounce time.Duration
	logger   *slog.Logger
	onImport func(*ImportResult)
}

// NewWatcher creates a watcher. onImport, if set, is called after each import.
func NewWatcher(importer *Importer, debounce time.Duration, logger *slog.Logger, onImport func(*ImportResult)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{importer: importer, debounce: debounce, logger: logger, onImport: onImport}
}

// Run watches until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	watched := 0
	for _, category := range types.Categories {
		dir := filepath.Join(w.importer.PhotosDir(), string(category))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched++
	}
	w.logger.Info("Watching photos directory", "dir", w.importer.PhotosDir(), "directories", watched)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !IsPhotoFile(event.Name) {
				continue
			}
			w.logger.Debug("Photo file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)

		case <-timer.C:
			result, err := w.importer.Import(ctx)
			if err != nil {
				w.logger.Error("Import after file change failed", "error", err)
				continue
			}
			if w.onImport != nil {
				w.onImport(result)
			}
		}
	}
}
