package library

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
)

// Top-level library directories that determine asset kind.
const (
	loraDir      = "loras"
	embeddingDir = "embeddings"
)

// Scanner rebuilds an Index from a library root.
type Scanner struct {
	store  storage.Provider
	exts   []string
	logger *slog.Logger
}

// NewScanner creates a scanner over store for files with the given
// extensions (lowercase, with leading dot).
func NewScanner(store storage.Provider, exts []string, logger *slog.Logger) *Scanner {
	return &Scanner{store: store, exts: exts, logger: logger}
}

// Rebuild performs a full scan of the library root and replaces the index
// contents. Fingerprints are reused from the previous generation when a
// file's size and mtime are unchanged; otherwise the file is rehashed.
// Cancellation is honored between files, never mid-file.
func (s *Scanner) Rebuild(ctx context.Context, ix *Index) error {
	metas, err := s.store.List("", s.exts)
	if err != nil {
		return err
	}

	hints := ix.hints()
	assets := make([]models.Asset, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}

		fp := ""
		if h, ok := hints[m.Path]; ok && h.size == m.Size && h.unixNano == m.UpdatedAt.UnixNano() {
			fp = h.fingerprint
		} else {
			abs, absErr := s.store.Abs(m.Path)
			if absErr != nil {
				s.logger.Warn("scan: resolve failed", slog.String("path", m.Path), slog.String("error", absErr.Error()))
				continue
			}
			fp, err = checksum.SumFile(ctx, abs)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("scan: fingerprint failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				continue
			}
		}

		name := strings.TrimSuffix(filepath.Base(m.Path), filepath.Ext(m.Path))
		assets = append(assets, models.Asset{
			Fingerprint: fp,
			Path:        m.Path,
			Name:        name,
			Kind:        kindForPath(m.Path),
			Size:        m.Size,
			UpdatedAt:   m.UpdatedAt,
		})
		s.logger.Debug("scan: indexed", slog.String("path", m.Path))
	}

	ix.replace(assets)
	s.logger.Info("scan: rebuilt",
		slog.Int("assets", len(assets)),
		slog.Uint64("generation", ix.Generation()))
	return nil
}

// kindForPath derives the asset kind from the top-level directory.
func kindForPath(rel string) models.AssetKind {
	rel = filepath.ToSlash(rel)
	top := rel
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		top = rel[:i]
	} else {
		return models.KindOther
	}
	switch top {
	case loraDir:
		return models.KindLora
	case embeddingDir:
		return models.KindEmbedding
	default:
		return models.KindOther
	}
}
