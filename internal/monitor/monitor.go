// Package monitor watches a fixed set of context resources and, when one
// changes, records the change in the changelog and an update summary and
// notifies the configured transports.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/brain/internal/apperr"
	"github.com/starford/brain/internal/changes"
	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/notify"
	"github.com/starford/brain/internal/storage"
	"github.com/starford/brain/internal/views"
)

// DefaultInterval is the polling interval used by Watch when none is given.
const DefaultInterval = 5 * time.Second

// DefaultResources are the context files watched out of the box.
func DefaultResources() []changes.Resource {
	return []changes.Resource{
		{Name: "infrastructure", Path: "ai/context/infrastructure.md", Kind: changes.KindFile},
		{Name: "tech-stack", Path: "ai/context/tech-stack.md", Kind: changes.KindFile},
	}
}

// Sender delivers a change set. *notify.Dispatcher implements it.
type Sender interface {
	Send(ctx context.Context, cs notify.ChangeSet)
}

// Monitor compares watched resources against the change detector's state.
type Monitor struct {
	fs        storage.Provider
	detector  *changes.Detector
	resources []changes.Resource
	sender    Sender
	changelog string
	summary   string
	onTick    func(context.Context) error
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithResources replaces the watched resources.
func WithResources(rs []changes.Resource) Option {
	return func(m *Monitor) { m.resources = rs }
}

// WithSender sets where change notifications go.
func WithSender(s Sender) Option {
	return func(m *Monitor) { m.sender = s }
}

// WithOutputs overrides the changelog and summary document paths.
func WithOutputs(changelog, summary string) Option {
	return func(m *Monitor) {
		m.changelog = changelog
		m.summary = summary
	}
}

// WithOnTick runs fn after every Watch iteration, on the same goroutine as
// the monitor run, so both may share the change detector.
func WithOnTick(fn func(context.Context) error) Option {
	return func(m *Monitor) { m.onTick = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// New registers the watched resources with detector and returns a Monitor
// writing its reports through fs.
func New(fs storage.Provider, detector *changes.Detector, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		fs:        fs,
		detector:  detector,
		resources: DefaultResources(),
		changelog: "CHANGELOG.md",
		summary:   "CONTEXT-UPDATE-SUMMARY.md",
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, r := range m.resources {
		if err := detector.Register(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Check reports which watched resources changed since they were last
// recorded, without recording or writing anything. A resource that has
// never existed is not a change.
func (m *Monitor) Check(ctx context.Context) (notify.ChangeSet, error) {
	var cs notify.ChangeSet
	now := m.now()
	for _, r := range m.resources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed, err := m.detector.HasChanged(r.Name)
		if err != nil {
			return nil, fmt.Errorf("monitor: check %s: %w", r.Name, err)
		}
		if !changed {
			continue
		}
		current, err := m.detector.Current(r.Name)
		if err != nil {
			return nil, fmt.Errorf("monitor: check %s: %w", r.Name, err)
		}
		prev, seen := m.detector.Previous(r.Name)
		if !seen && current == "" {
			continue
		}
		snap, err := m.detector.Snapshot(r.Name)
		if err != nil {
			return nil, fmt.Errorf("monitor: check %s: %w", r.Name, err)
		}
		cs = append(cs, notify.Change{
			Name:         r.Name,
			Path:         r.Path,
			PreviousHash: prev.Hash,
			CurrentHash:  current,
			Previous:     prev.Snapshot,
			Current:      snap,
			At:           now,
		})
	}
	return cs, nil
}

// Run checks for changes and, if there are any, prepends a changelog entry,
// rewrites the update summary, sends notifications and records the new
// state. The returned change set is empty when nothing changed.
func (m *Monitor) Run(ctx context.Context) (notify.ChangeSet, error) {
	cs, err := m.Check(ctx)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		m.log.Debug("monitor: no changes")
		return nil, nil
	}
	now := m.now()

	existing, err := m.fs.Read(m.changelog)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("monitor: read changelog: %w", err)
	}
	if err := m.fs.Write(m.changelog, []byte(views.PrependChangelog(string(existing), ChangelogEntry(cs, now)))); err != nil {
		return nil, fmt.Errorf("monitor: write changelog: %w", err)
	}
	if err := m.fs.Write(m.summary, []byte(Summary(cs, now))); err != nil {
		return nil, fmt.Errorf("monitor: write summary: %w", err)
	}

	if m.sender != nil {
		m.sender.Send(ctx, cs)
	}

	for _, c := range cs {
		if err := m.detector.RecordSeen(c.Name, c.CurrentHash, c.Current); err != nil {
			return nil, fmt.Errorf("monitor: record %s: %w", c.Name, err)
		}
	}
	m.log.Info("monitor: recorded changes", slog.Int("count", len(cs)))
	return cs, nil
}

// ForceUpdate records the current state of every existing resource without
// reporting anything. It returns the names it recorded.
func (m *Monitor) ForceUpdate(ctx context.Context) ([]string, error) {
	var updated []string
	for _, r := range m.resources {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		ok, err := m.fs.Exists(r.Path)
		if err != nil {
			return updated, fmt.Errorf("monitor: force update %s: %w", r.Name, err)
		}
		if !ok {
			m.log.Warn("monitor: resource not found", slog.String("resource", r.Name), slog.String("path", r.Path))
			continue
		}
		hash, err := m.detector.Current(r.Name)
		if err != nil {
			return updated, fmt.Errorf("monitor: force update %s: %w", r.Name, err)
		}
		snap, err := m.detector.Snapshot(r.Name)
		if err != nil {
			return updated, fmt.Errorf("monitor: force update %s: %w", r.Name, err)
		}
		if err := m.detector.RecordSeen(r.Name, hash, snap); err != nil {
			return updated, err
		}
		updated = append(updated, r.Name)
	}
	return updated, nil
}

// Watch runs once and then again every interval until ctx is cancelled,
// calling the tick hook after each run. A failed run is logged and the loop
// keeps going.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.log.Info("monitor: watching", slog.String("interval", interval.String()), slog.Int("resources", len(m.resources)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := m.Run(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("monitor: run failed", slog.String("error", err.Error()))
		}
		if m.onTick != nil {
			if err := m.onTick(ctx); err != nil && ctx.Err() == nil {
				m.log.Error("monitor: tick failed", slog.String("error", err.Error()))
			}
		}
		select {
		case <-ctx.Done():
			m.log.Info("monitor: stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func titleOf(s changes.Snapshot) string {
	if s.Title == "" {
		return "N/A"
	}
	return s.Title
}

func versionOf(s changes.Snapshot) int {
	if s.Version == 0 {
		return document.DefaultVersion
	}
	return s.Version
}

func shipFactorOf(s changes.Snapshot) int {
	if s.ShipFactor == 0 {
		return document.DefaultShipFactor
	}
	return s.ShipFactor
}
