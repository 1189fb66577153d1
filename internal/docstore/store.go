// Package docstore is the sole reader and writer of knowledge base documents.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/brain/internal/apperr"
	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/storage"
)

// IndexRebuilder regenerates the index view after a mutation.
type IndexRebuilder interface {
	RebuildIndex(ctx context.Context) error
}

// NewDocument holds the inputs of Create. Zero values take the defaults:
// type general, subtype general, ship factor 5.
type NewDocument struct {
	Title      string
	Content    string
	Type       document.Type
	Subtype    string
	Tags       []string
	ShipFactor int
	References []string
	Category   string
}

// ScanIssue records a document that Scan had to skip.
type ScanIssue struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (i ScanIssue) Error() string {
	return fmt.Sprintf("%s: %v", i.Path, i.Err)
}

// Store coordinates document parsing with the storage provider.
type Store struct {
	fs        storage.Provider
	now       func() time.Time
	log       *slog.Logger
	rebuilder IndexRebuilder
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and collision suffixes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a Store over fs.
func New(fs storage.Provider, opts ...Option) *Store {
	s := &Store{fs: fs, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetIndexRebuilder sets the hook run after every mutation. The regenerator reads
// through the store, so it can only be attached after both exist.
func (s *Store) SetIndexRebuilder(r IndexRebuilder) {
	s.rebuilder = r
}

// Provider returns the underlying storage provider.
func (s *Store) Provider() storage.Provider {
	return s.fs
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Create writes a new document and returns its root-relative path. The path
// is (category or type)/subtype/slug.md; an existing file is never replaced.
func (s *Store) Create(ctx context.Context, in NewDocument) (string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", fmt.Errorf("store: create: %w: title is required", apperr.ErrInvalidDocument)
	}
	slug := document.Slugify(title)
	if slug == "" {
		return "", fmt.Errorf("store: create: %w: title %q has no alphanumeric characters", apperr.ErrInvalidDocument, title)
	}
	shipFactor := in.ShipFactor
	if shipFactor == 0 {
		shipFactor = document.DefaultShipFactor
	}
	if err := document.ValidateShipFactor(shipFactor); err != nil {
		return "", fmt.Errorf("store: create: %w: ship_factor %v", apperr.ErrInvalidDocument, err)
	}
	typ := in.Type
	if typ == "" {
		typ = document.TypeGeneral
	}
	subtype := strings.TrimSpace(in.Subtype)
	if subtype == "" {
		subtype = string(document.TypeGeneral)
	}
	top := string(typ)
	if in.Category != "" {
		top = in.Category
	}

	now := s.now()
	p, err := s.freePath(path.Join(top, subtype), slug, now)
	if err != nil {
		return "", err
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	meta := document.Metadata{
		Title:      document.Ptr(title),
		Type:       document.Ptr(typ),
		Subtype:    document.Ptr(subtype),
		Tags:       append([]string{}, tags...),
		Created:    document.Ptr(now),
		Modified:   document.Ptr(now),
		Version:    document.Ptr(document.DefaultVersion),
		ShipFactor: document.Ptr(shipFactor),
		Deprecated: document.Ptr(false),
	}
	if in.Category != "" {
		meta.Category = document.Ptr(in.Category)
	}
	if len(in.References) > 0 {
		meta.References = append([]string{}, in.References...)
	}

	if err := s.write(document.Document{Path: p, Meta: meta, Body: in.Content}); err != nil {
		return "", err
	}
	s.log.Info("store: document created", slog.String("path", p))
	if err := s.rebuild(ctx); err != nil {
		return p, err
	}
	return p, nil
}

// freePath returns dir/slug.md, or the first free timestamp-suffixed variant.
func (s *Store) freePath(dir, slug string, now time.Time) (string, error) {
	candidates := []string{slug, slug + "-" + now.Format("20060102-150405")}
	for _, name := range candidates {
		p := path.Join(dir, name+".md")
		ok, err := s.fs.Exists(p)
		if err != nil {
			return "", fmt.Errorf("store: create: %w", err)
		}
		if !ok {
			return p, nil
		}
	}
	stamped := candidates[1]
	for n := 2; ; n++ {
		p := path.Join(dir, fmt.Sprintf("%s-%d.md", stamped, n))
		ok, err := s.fs.Exists(p)
		if err != nil {
			return "", fmt.Errorf("store: create: %w", err)
		}
		if !ok {
			return p, nil
		}
	}
}

// Read loads and parses the document at p.
func (s *Store) Read(_ context.Context, p string) (document.Document, error) {
	data, err := s.fs.Read(p)
	if err != nil {
		return document.Document{}, fmt.Errorf("store: read: %w", err)
	}
	d, err := document.Parse(data)
	if err != nil {
		return document.Document{}, fmt.Errorf("store: read %s: %w", p, err)
	}
	d.Path = p
	return d, nil
}

// Update replaces the body when content is non-nil and shallow-merges patch
// into the metadata. The version is always incremented and modified set to
// now; created is never changed once present. Only a ship factor carried by
// the patch is range-checked; a bad stored value is left for the validator.
func (s *Store) Update(ctx context.Context, p string, content *string, patch *document.Metadata) (document.Document, error) {
	d, err := s.Read(ctx, p)
	if err != nil {
		return document.Document{}, err
	}

	created := d.Meta.Created
	version := d.Meta.VersionValue() + 1
	if content != nil {
		d.Body = *content
	}
	if patch != nil {
		d.Meta.Merge(*patch)
	}
	if created != nil {
		d.Meta.Created = created
	}
	if patch != nil && patch.ShipFactor != nil {
		if err := document.ValidateShipFactor(*patch.ShipFactor); err != nil {
			return document.Document{}, fmt.Errorf("store: update %s: %w: ship_factor %v", p, apperr.ErrInvalidDocument, err)
		}
	}

	// The version always follows the stored value, whatever the patch says.
	d.Meta.Version = document.Ptr(version)
	d.Meta.Modified = document.Ptr(s.now())

	if err := s.write(d); err != nil {
		return document.Document{}, err
	}
	s.log.Info("store: document updated", slog.String("path", p), slog.Int("version", *d.Meta.Version))
	if err := s.rebuild(ctx); err != nil {
		return d, err
	}
	return d, nil
}

// Deprecate marks the document as superseded. The content is kept.
func (s *Store) Deprecate(ctx context.Context, p, reason string) (document.Document, error) {
	now := s.now()
	return s.Update(ctx, p, nil, &document.Metadata{
		Deprecated:       document.Ptr(true),
		DeprecatedDate:   document.Ptr(now),
		DeprecatedReason: document.Ptr(reason),
	})
}

// Scan reads every document fresh in lexical path order. Documents with
// malformed metadata are logged, reported as issues and skipped.
func (s *Store) Scan(ctx context.Context) ([]document.Document, []ScanIssue, error) {
	files, err := s.fs.List("")
	if err != nil {
		return nil, nil, fmt.Errorf("store: scan: %w", err)
	}
	docs := make([]document.Document, 0, len(files))
	var issues []ScanIssue
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		d, err := s.Read(ctx, f.Path)
		if err != nil {
			if errors.Is(err, apperr.ErrMalformedMetadata) {
				s.log.Warn("store: skipping document", slog.String("path", f.Path), slog.String("error", err.Error()))
				issues = append(issues, ScanIssue{Path: f.Path, Err: err})
				continue
			}
			return nil, nil, err
		}
		docs = append(docs, d)
	}
	return docs, issues, nil
}

func (s *Store) write(d document.Document) error {
	raw, err := document.Serialize(d)
	if err != nil {
		return fmt.Errorf("store: serialize %s: %w", d.Path, err)
	}
	if err := s.fs.Write(d.Path, raw); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func (s *Store) rebuild(ctx context.Context) error {
	if s.rebuilder == nil {
		return nil
	}
	if err := s.rebuilder.RebuildIndex(ctx); err != nil {
		return fmt.Errorf("store: rebuild index: %w", err)
	}
	return nil
}
