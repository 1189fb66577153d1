// Package notify tells people that watched resources changed. Each transport
// is best effort: a failing transport is logged and never fails the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/brain/internal/changes"
	"github.com/starford/brain/internal/document"
)

// Change describes one resource whose hash moved.
type Change struct {
	Name         string           `json:"name"`
	Path         string           `json:"path"`
	PreviousHash string           `json:"previous_hash"`
	CurrentHash  string           `json:"current_hash"`
	Previous     changes.Snapshot `json:"previous"`
	Current      changes.Snapshot `json:"current"`
	At           time.Time        `json:"timestamp"`
}

// ChangeSet is the changes found by one monitor run, in resource name order.
type ChangeSet []Change

// Notifier delivers a formatted message about a change set.
type Notifier interface {
	Notify(ctx context.Context, cs ChangeSet, message string) error
}

// Dispatcher fans a notification out to every enabled transport.
type Dispatcher struct {
	transports []namedTransport
	now        func() time.Time
	log        *slog.Logger
}

type namedTransport struct {
	name string
	n    Notifier
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTransport adds a transport under name.
func WithTransport(name string, n Notifier) Option {
	return func(d *Dispatcher) {
		d.transports = append(d.transports, namedTransport{name: name, n: n})
	}
}

// WithClock overrides the time source for message headers.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher builds a Dispatcher from explicit transports.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromConfig builds a Dispatcher with the transports cfg enables. Relative
// file paths are resolved against root.
func FromConfig(cfg Config, root string, opts ...Option) *Dispatcher {
	var ts []Option
	if cfg.Notifications.Console {
		ts = append(ts, WithTransport("console", NewConsole(nil)))
	}
	if cfg.Notifications.File {
		p := cfg.File.LogFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		ts = append(ts, WithTransport("file", NewFile(p, int64(cfg.File.MaxSizeMB)*1024*1024)))
	}
	if cfg.Notifications.Webhook {
		ts = append(ts, WithTransport("webhook", NewWebhook(cfg.Webhook)))
	}
	return NewDispatcher(append(ts, opts...)...)
}

// Len returns the number of transports.
func (d *Dispatcher) Len() int { return len(d.transports) }

// Send formats cs and notifies every transport. An empty change set sends
// nothing.
func (d *Dispatcher) Send(ctx context.Context, cs ChangeSet) {
	if len(cs) == 0 {
		return
	}
	d.Notify(ctx, cs, Format(cs, d.now()))
}

// Notify delivers message to every transport. Failures are logged and
// swallowed, so it always returns nil.
func (d *Dispatcher) Notify(ctx context.Context, cs ChangeSet, message string) error {
	for _, t := range d.transports {
		if err := t.n.Notify(ctx, cs, message); err != nil {
			d.log.Warn("notify: transport failed",
				slog.String("transport", t.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.log.Debug("notify: sent", slog.String("transport", t.name), slog.Int("changes", len(cs)))
	}
	return nil
}

// Format renders the plain-text notification body.
func Format(cs ChangeSet, now time.Time) string {
	if len(cs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Context Files Updated\n")
	fmt.Fprintf(&b, "%s\n\n", now.Format("2006-01-02 15:04:05"))
	for _, c := range cs {
		title := c.Current.Title
		if title == "" {
			title = "N/A"
		}
		fmt.Fprintf(&b, "**%s**\n", document.Humanize(c.Name))
		fmt.Fprintf(&b, "   File: `%s`\n", c.Path)
		fmt.Fprintf(&b, "   Title: %s\n", title)
		fmt.Fprintf(&b, "   Version: %d\n", orDefault(c.Current.Version, document.DefaultVersion))
		fmt.Fprintf(&b, "   Ship Factor: %d\n", orDefault(c.Current.ShipFactor, document.DefaultShipFactor))
		fmt.Fprintf(&b, "   Size: %d bytes\n\n", c.Current.Size)
	}
	return b.String()
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
