package index

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/checksum"
)

// maxBody caps how much of an artifact is stored for search.
const maxBody = 1 << 20

// Sync walks the results root and brings the catalog up to date:
//   - new/changed artifacts are decoded and upserted
//   - artifacts removed from disk are deleted from the catalog
func Sync(db *DB, root string, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	err = walkArtifacts(root, func(rel, abs string) {
		disk[rel] = struct{}{}
		data, err := os.ReadFile(abs)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		if checksums[rel] == checksum.Sum(data) {
			return
		}
		if err := indexFile(db, rel, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		indexedTotal.Inc()
		logger.Debug("sync: indexed", slog.String("path", rel))
	})
	if err != nil {
		return err
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteArtifact(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removedTotal.Inc()
		logger.Debug("sync: removed stale", slog.String("path", p))
	}
	refreshGauge(db)
	return nil
}

// walkArtifacts calls fn for every file under dir that decodes as an
// artifact address relative to root. A missing root is treated as empty.
func walkArtifacts(root string, fn func(rel, abs string)) error {
	return walkArtifactsFrom(root, root, fn)
}

func walkArtifactsFrom(root, dir string, fn func(rel, abs string)) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if rel, ok := relArtifact(root, path); ok {
			fn(rel, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index: walk %s: %w", dir, err)
	}
	return nil
}

// relArtifact returns the slash-separated path of abs relative to root when
// it names an artifact. Hidden files, including in-flight temp files, are
// ignored.
func relArtifact(root, abs string) (string, bool) {
	if strings.HasPrefix(filepath.Base(abs), ".") {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	a, err := address.Decode(rel)
	if err != nil || a.Root != "" {
		return "", false
	}
	return rel, true
}

// indexFile decodes the address of rel and upserts data into the DB.
func indexFile(db *DB, rel string, data []byte) error {
	a, err := address.Decode(rel)
	if err != nil {
		return err
	}
	body := data
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	row := ArtifactRow{
		Path:      rel,
		Idx:       a.Idx,
		Model:     a.Model,
		Prompt:    a.Prompt,
		Timestamp: a.Timestamp,
		Filename:  a.Filename,
		Checksum:  checksum.Sum(data),
		Size:      int64(len(data)),
		UpdatedAt: time.Now().UTC(),
	}
	return db.UpsertArtifact(row, string(body))
}
