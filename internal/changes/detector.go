// Package changes decides whether a watched resource has changed since it was
// last processed, by comparing content hashes against a persisted state file.
package changes

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/starford/brain/internal/apperr"
	"github.com/starford/brain/internal/checksum"
	"github.com/starford/brain/internal/document"
)

// Kind says how a resource is hashed.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Resource is a named file or directory, relative to the root.
type Resource struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
	Kind Kind   `yaml:"kind" json:"kind"`
}

// Detector tracks resources against the state file. It is not safe for
// concurrent use; a single writer is assumed.
type Detector struct {
	root      string
	statePath string
	state     State
	resources map[string]Resource
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source for LastChecked.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// NewDetector loads the state file at statePath and returns a Detector for
// resources under root.
func NewDetector(root, statePath string, opts ...Option) (*Detector, error) {
	st, err := LoadState(statePath)
	if err != nil {
		return nil, err
	}
	d := &Detector{
		root:      root,
		statePath: statePath,
		state:     st,
		resources: make(map[string]Resource),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Register adds or replaces a watched resource.
func (d *Detector) Register(r Resource) error {
	if r.Name == "" {
		return errors.New("changes: resource name is required")
	}
	switch r.Kind {
	case KindFile, KindDirectory:
	case "":
		r.Kind = KindFile
	default:
		return fmt.Errorf("changes: resource %s: unknown kind %q", r.Name, r.Kind)
	}
	d.resources[r.Name] = r
	return nil
}

// Resources returns the registered resources sorted by name.
func (d *Detector) Resources() []Resource {
	out := make([]Resource, 0, len(d.resources))
	for _, r := range d.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Detector) resource(name string) (Resource, error) {
	r, ok := d.resources[name]
	if !ok {
		return Resource{}, fmt.Errorf("changes: resource %s: %w", name, apperr.ErrNotFound)
	}
	return r, nil
}

func (d *Detector) abs(r Resource) string {
	return filepath.Join(d.root, filepath.FromSlash(r.Path))
}

// Current hashes the resource as it is now. An absent file hashes to "".
func (d *Detector) Current(name string) (string, error) {
	r, err := d.resource(name)
	if err != nil {
		return "", err
	}
	if r.Kind == KindDirectory {
		return checksum.Directory(d.abs(r))
	}
	digest, _, err := checksum.File(d.abs(r))
	return digest, err
}

// HasChanged reports whether the current hash differs from the last recorded
// one. A resource with no record has always changed.
func (d *Detector) HasChanged(name string) (bool, error) {
	current, err := d.Current(name)
	if err != nil {
		return false, err
	}
	prev, ok := d.state[name]
	if !ok {
		return true, nil
	}
	return prev.Hash != current, nil
}

// Previous returns the last recorded state for name.
func (d *Detector) Previous(name string) (Record, bool) {
	rec, ok := d.state[name]
	return rec, ok
}

// RecordSeen stores hash and snapshot as the last-seen state for name and
// saves the state file.
func (d *Detector) RecordSeen(name, hash string, snap Snapshot) error {
	if _, err := d.resource(name); err != nil {
		return err
	}
	d.state[name] = Record{Hash: hash, Snapshot: snap, LastChecked: d.now()}
	if err := d.state.Save(d.statePath); err != nil {
		return err
	}
	d.log.Debug("changes: recorded", slog.String("resource", name), slog.String("hash", hash))
	return nil
}

// Snapshot summarises the resource as it is now. Files that are documents
// contribute their title, version, ship factor and modified time.
func (d *Detector) Snapshot(name string) (Snapshot, error) {
	r, err := d.resource(name)
	if err != nil {
		return Snapshot{}, err
	}
	if r.Kind == KindDirectory {
		return directorySnapshot(d.abs(r))
	}

	data, err := os.ReadFile(d.abs(r))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("changes: snapshot %s: %w", name, err)
	}
	snap := Snapshot{Size: int64(len(data)), Lines: countLines(data)}
	doc, err := document.Parse(data)
	if err != nil {
		d.log.Warn("changes: snapshot without metadata", slog.String("resource", name), slog.String("error", err.Error()))
		return snap, nil
	}
	if doc.Meta.Title != nil {
		snap.Title = *doc.Meta.Title
	}
	if doc.Meta.Modified != nil {
		snap.Modified = doc.Meta.Modified.Format(time.RFC3339)
	}
	if doc.Meta.Version != nil {
		snap.Version = *doc.Meta.Version
	}
	if doc.Meta.ShipFactor != nil {
		snap.ShipFactor = *doc.Meta.ShipFactor
	}
	return snap, nil
}

func directorySnapshot(root string) (Snapshot, error) {
	var snap Snapshot
	err := filepath.WalkDir(root, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root && errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return walkErr
		}
		hidden := len(e.Name()) > 0 && e.Name()[0] == '.'
		if e.IsDir() {
			if hidden && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !e.Type().IsRegular() {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		snap.Files++
		snap.Size += info.Size()
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("changes: snapshot %s: %w", root, err)
	}
	return snap, nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
