// Package archive copies sealed artifacts and their completeness markers
// from a run directory into a blobstore.
//
// Only artifacts whose markers verify are uploaded: publishing a partial
// output would defeat the point of sealing. Markers travel with their
// artifacts so the remote copy stays verifiable.
package archive

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tkral/annomine/blobstore"
	"github.com/tkral/annomine/seal"
)

// Push uploads every sealed artifact under dir to store, keyed by its path
// relative to dir. Returns the uploaded artifact names.
func Push(ctx context.Context, store blobstore.Store, dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var uploaded []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == seal.HashDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".tmp") || isSidecar(path) {
			return nil
		}
		ok, err := seal.Verify(path)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("skipping unsealed artifact", "path", path)
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if err := putFile(ctx, store, name, path); err != nil {
			return fmt.Errorf("archive: upload %s: %w", name, err)
		}
		markerRel, err := filepath.Rel(dir, seal.MarkerPath(path))
		if err != nil {
			return err
		}
		if err := putFile(ctx, store, filepath.ToSlash(markerRel), seal.MarkerPath(path)); err != nil {
			return fmt.Errorf("archive: upload marker for %s: %w", name, err)
		}
		logger.Info("archived", "name", name)
		uploaded = append(uploaded, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uploaded, nil
}

func putFile(ctx context.Context, store blobstore.Store, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}

// isSidecar reports whether path is run metadata that travels with an
// artifact but is never sealed itself.
func isSidecar(path string) bool {
	return strings.HasSuffix(path, ".metadata.json") ||
		strings.HasSuffix(path, ".stats.json") ||
		strings.HasSuffix(path, ".progress.json")
}
