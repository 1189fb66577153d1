// Package regen rebuilds derived documents from the live document set and
// writes them through the storage provider.
package regen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/brain/internal/apperr"
	"github.com/starford/brain/internal/changes"
	"github.com/starford/brain/internal/docstore"
	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/storage"
	"github.com/starford/brain/internal/views"
)

// Paths are the root-relative locations of the derived documents.
type Paths struct {
	Index          string `yaml:"index"`
	System         string `yaml:"system"`
	Infrastructure string `yaml:"infrastructure"`
	InfraOverview  string `yaml:"infrastructure_overview"`
	Changelog      string `yaml:"changelog"`
	Summary        string `yaml:"summary"`
	AnalysisReport string `yaml:"analysis_report"`
}

// DefaultPaths returns the well-known derived document locations.
func DefaultPaths() Paths {
	return Paths{
		Index:          "INDEX.md",
		System:         "SYSTEM.md",
		Infrastructure: "infrastructure",
		InfraOverview:  "infrastructure/INFRASTRUCTURE-OVERVIEW.md",
		Changelog:      "CHANGELOG.md",
		Summary:        "CONTEXT-UPDATE-SUMMARY.md",
		AnalysisReport: "codebase-analysis-report.md",
	}
}

// Derived lists every derived document path, for exclusion from scans.
func (p Paths) Derived() []string {
	return []string{p.Index, p.System, p.InfraOverview, p.Changelog, p.Summary, p.AnalysisReport}
}

// Regenerator computes views from a fresh scan on every call.
type Regenerator struct {
	store    *docstore.Store
	fs       storage.Provider
	detector *changes.Detector
	paths    Paths
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Regenerator.
type Option func(*Regenerator)

// WithPaths overrides the derived document locations.
func WithPaths(p Paths) Option {
	return func(r *Regenerator) { r.paths = p }
}

// WithDetector enables staleness checks in Refresh.
func WithDetector(d *changes.Detector) Option {
	return func(r *Regenerator) { r.detector = d }
}

// WithClock overrides the time source used for generated-at lines.
func WithClock(now func() time.Time) Option {
	return func(r *Regenerator) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Regenerator) { r.log = l }
}

// New creates a Regenerator reading through store.
func New(store *docstore.Store, opts ...Option) *Regenerator {
	r := &Regenerator{
		store: store,
		fs:    store.Provider(),
		paths: DefaultPaths(),
		now:   store.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Paths returns the derived document locations.
func (r *Regenerator) Paths() Paths {
	return r.paths
}

func (r *Regenerator) scan(ctx context.Context) ([]document.Document, error) {
	docs, _, err := r.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("regen: %w", err)
	}
	return docs, nil
}

// Statistics scans the store and counts documents.
func (r *Regenerator) Statistics(ctx context.Context) (views.Stats, error) {
	docs, err := r.scan(ctx)
	if err != nil {
		return views.Stats{}, err
	}
	return views.Statistics(docs), nil
}

// HighPriority scans the store for non-deprecated documents with a ship
// factor of at least min.
func (r *Regenerator) HighPriority(ctx context.Context, min int) ([]document.Document, error) {
	docs, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	return views.HighPriority(docs, min), nil
}

// ByTag scans the store for documents carrying any of tags.
func (r *Regenerator) ByTag(ctx context.Context, tags []string) ([]document.Document, error) {
	docs, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	return views.ByTag(docs, tags), nil
}

// ByCategory scans the store for documents under prefix.
func (r *Regenerator) ByCategory(ctx context.Context, prefix string) ([]document.Document, error) {
	docs, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	return views.ByCategory(docs, prefix), nil
}

// RebuildIndex regenerates the index. It satisfies docstore.IndexRebuilder.
func (r *Regenerator) RebuildIndex(ctx context.Context) error {
	_, err := r.rebuildIndex(ctx)
	return err
}

func (r *Regenerator) rebuildIndex(ctx context.Context) (bool, error) {
	docs, err := r.scan(ctx)
	if err != nil {
		return false, err
	}
	return r.writeDerived(r.paths.Index, views.BuildIndex(docs, r.now()))
}

// RebuildSystem regenerates the system overview.
func (r *Regenerator) RebuildSystem(ctx context.Context) (bool, error) {
	in, err := r.systemInput(ctx)
	if err != nil {
		return false, err
	}
	return r.writeDerived(r.paths.System, views.BuildSystemOverview(in, r.now()))
}

// WriteAnalysisReport renders the analysis report to the configured path, or
// to name when it is not empty, and returns the path written.
func (r *Regenerator) WriteAnalysisReport(ctx context.Context, name string) (string, error) {
	in, err := r.systemInput(ctx)
	if err != nil {
		return "", err
	}
	p := r.paths.AnalysisReport
	if name != "" {
		p = name
	}
	if _, err := r.writeDerived(p, views.BuildAnalysisReport(in, r.now())); err != nil {
		return "", err
	}
	return p, nil
}

// RebuildInfrastructure regenerates the infrastructure overview. A missing
// infrastructure directory is reported as apperr.ErrNotFound.
func (r *Regenerator) RebuildInfrastructure(ctx context.Context) (bool, error) {
	in, err := r.infraInput(ctx)
	if err != nil {
		return false, err
	}
	return r.writeDerived(r.paths.InfraOverview, views.BuildInfrastructureOverview(in, r.now()))
}

// writeDerived replaces p with content unless the current file differs only
// in its generated-at line, so unchanged views stay byte-identical on disk.
func (r *Regenerator) writeDerived(p, content string) (bool, error) {
	existing, err := r.fs.Read(p)
	switch {
	case err == nil:
		if views.EquivalentIgnoringTimestamp(string(existing), content) {
			r.log.Debug("regen: unchanged", slog.String("path", p))
			return false, nil
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return false, fmt.Errorf("regen: %w", err)
	}
	if err := r.fs.Write(p, []byte(content)); err != nil {
		return false, fmt.Errorf("regen: %w", err)
	}
	r.log.Info("regen: written", slog.String("path", p))
	return true, nil
}

// skipDirs are never described in the system overview.
var skipDirs = map[string]bool{"venv": true, "__pycache__": true, "node_modules": true, "vendor": true}

var configNames = map[string]bool{"Makefile": true, "Dockerfile": true, "requirements.txt": true, "Pipfile": true}

var configExts = map[string]bool{".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true}

func (r *Regenerator) systemInput(ctx context.Context) (views.SystemInput, error) {
	docs, err := r.scan(ctx)
	if err != nil {
		return views.SystemInput{}, err
	}
	entries, err := r.fs.Entries("")
	if err != nil {
		return views.SystemInput{}, fmt.Errorf("regen: %w", err)
	}

	in := views.SystemInput{Documents: docs}
	for _, e := range entries {
		if !e.IsDir {
			if configNames[e.Name] || configExts[strings.ToLower(path.Ext(e.Name))] {
				in.ConfigFiles = append(in.ConfigFiles, e.Name)
			}
			continue
		}
		if skipDirs[e.Name] {
			continue
		}
		info, err := r.dirInfo(e.Name)
		if err != nil {
			return views.SystemInput{}, err
		}
		in.Directories = append(in.Directories, info)
	}

	if raw, err := r.fs.Read("Makefile"); err == nil {
		in.MaintenanceCommands = makeTargets(string(raw))
	}
	return in, nil
}

func (r *Regenerator) dirInfo(p string) (views.DirInfo, error) {
	info := views.DirInfo{Name: path.Base(p), Path: p}
	subs, err := r.fs.Entries(p)
	if err != nil {
		return info, fmt.Errorf("regen: %w", err)
	}
	for _, s := range subs {
		if s.IsDir {
			info.Subdirs = append(info.Subdirs, s.Name)
		}
	}
	files, err := r.fs.List(p)
	if err != nil {
		return info, fmt.Errorf("regen: %w", err)
	}
	info.MarkdownFiles = len(files)
	for _, name := range []string{"README.md", "readme.md"} {
		raw, err := r.fs.Read(path.Join(p, name))
		if err != nil {
			continue
		}
		if d, err := document.Parse(raw); err == nil {
			info.Readme = d.Body
		} else {
			info.Readme = string(raw)
		}
		break
	}
	return info, nil
}

// makeTargets extracts "target: description" pairs from Makefile lines
// documented with a "##" comment.
func makeTargets(makefile string) []string {
	var out []string
	for _, line := range strings.Split(makefile, "\n") {
		if strings.HasPrefix(line, "\t") || !strings.Contains(line, ":") || !strings.Contains(line, "##") {
			continue
		}
		target := strings.TrimSpace(line[:strings.Index(line, ":")])
		desc := strings.TrimSpace(line[strings.Index(line, "##")+2:])
		out = append(out, target+": "+desc)
	}
	return out
}

func (r *Regenerator) infraInput(ctx context.Context) (views.InfraInput, error) {
	base := strings.Trim(r.paths.Infrastructure, "/")
	ok, err := r.fs.Exists(base)
	if err != nil {
		return views.InfraInput{}, fmt.Errorf("regen: %w", err)
	}
	if !ok {
		return views.InfraInput{}, fmt.Errorf("regen: %s: %w", base, apperr.ErrNotFound)
	}

	docs, err := r.scan(ctx)
	if err != nil {
		return views.InfraInput{}, err
	}
	in := views.InfraInput{Base: base}
	for _, d := range views.ByCategory(docs, base) {
		if d.Path != r.paths.InfraOverview {
			in.Documents = append(in.Documents, d)
		}
	}

	entries, err := r.fs.Entries(base)
	if err != nil {
		return views.InfraInput{}, fmt.Errorf("regen: %w", err)
	}
	for _, e := range entries {
		p := path.Join(base, e.Name)
		if p == r.paths.InfraOverview {
			continue
		}
		if !e.IsDir {
			in.Files = append(in.Files, views.FileInfo{Name: e.Name, Size: e.Size})
			continue
		}
		info, err := r.dirInfo(p)
		if err != nil {
			return views.InfraInput{}, err
		}
		in.Directories = append(in.Directories, info)
	}
	return in, nil
}
