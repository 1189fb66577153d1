package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/brain/internal/checksum"
	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/storage"
)

// SyncStats counts what one Sync pass did.
type SyncStats struct {
	Scanned   int           `json:"scanned"`
	Indexed   int           `json:"indexed"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Sync walks the knowledge base and brings the catalog up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the catalog
//
// Files with malformed metadata are skipped and logged.
func Sync(ctx context.Context, db Catalog, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	start := time.Now()
	var stats SyncStats

	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++
		disk[m.Path] = struct{}{}

		if cs, ok := checksums[m.Path]; ok && cs == m.Checksum {
			stats.Unchanged++
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Skipped++
			continue
		}
		if err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Skipped++
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		stats.Indexed++
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteDocument(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", p))
		stats.Removed++
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// indexFile parses data and upserts it into the catalog. References are the
// frontmatter references plus the documents the body links to.
func indexFile(db Catalog, path string, data []byte) error {
	d, err := document.Parse(data)
	if err != nil {
		return err
	}
	d.Path = path
	refs := append(append([]string{}, d.Meta.References...), document.Links(d.Body, path)...)
	return db.UpsertDocument(rowFor(d, checksum.Sum(data)), d.Body, refs)
}

func rowFor(d document.Document, sum string) Row {
	r := Row{
		Path:       d.Path,
		Title:      d.DisplayTitle(),
		Category:   document.TopLevel(d.Path),
		Tags:       d.Meta.Tags,
		ShipFactor: d.Meta.ShipFactorValue(),
		Deprecated: d.Meta.IsDeprecated(),
		Checksum:   sum,
	}
	if d.Meta.Type != nil {
		r.Type = string(*d.Meta.Type)
	}
	if d.Meta.Subtype != nil {
		r.Subtype = *d.Meta.Subtype
	}
	if d.Meta.Category != nil {
		r.Category = *d.Meta.Category
	}
	if d.Meta.Modified != nil {
		r.Modified = *d.Meta.Modified
	}
	return r
}
