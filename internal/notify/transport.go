package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var rule = strings.Repeat("=", 50)

// Console writes notifications to a writer, stdout by default.
type Console struct {
	w io.Writer
}

// NewConsole returns a console transport writing to w, or os.Stdout if w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

// Notify implements Notifier.
func (c *Console) Notify(_ context.Context, _ ChangeSet, message string) error {
	_, err := fmt.Fprintf(c.w, "\n%s\n%s\n%s\n\n", rule, strings.TrimRight(message, "\n"), rule)
	return err
}

// File appends notifications to a log file. Once the file grows past
// maxSize bytes it is moved to a ".backup" sibling before the next append.
type File struct {
	path    string
	maxSize int64
	now     func() time.Time
}

// NewFile returns a file transport. A maxSize of 0 disables rotation.
func NewFile(path string, maxSize int64) *File {
	return &File{path: path, maxSize: maxSize, now: time.Now}
}

// BackupPath is where the rotated log is kept.
func (f *File) BackupPath() string { return f.path + ".backup" }

// Notify implements Notifier.
func (f *File) Notify(_ context.Context, _ ChangeSet, message string) error {
	if err := f.rotate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("notify: mkdir: %w", err)
	}
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("notify: open log: %w", err)
	}
	_, err = fmt.Fprintf(fh, "\n%s\n%s\n%s\n", f.now().Format(time.RFC3339), message, strings.Repeat("-", 50))
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("notify: append log: %w", err)
	}
	return nil
}

func (f *File) rotate() error {
	if f.maxSize <= 0 {
		return nil
	}
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: stat log: %w", err)
	}
	if info.Size() <= f.maxSize {
		return nil
	}
	if err := os.Remove(f.BackupPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("notify: remove backup: %w", err)
	}
	if err := os.Rename(f.path, f.BackupPath()); err != nil {
		return fmt.Errorf("notify: rotate log: %w", err)
	}
	return nil
}

// Payload is the JSON body the webhook transport posts.
type Payload struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Changes   ChangeSet `json:"changes"`
}

// Webhook posts notifications as JSON.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
	now     func() time.Time
}

// NewWebhook returns a webhook transport. A timeout of 0 means 30 seconds.
func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Notify implements Notifier. Any non-2xx response is an error.
func (w *Webhook) Notify(ctx context.Context, cs ChangeSet, message string) error {
	if w.url == "" {
		return errors.New("notify: webhook url is not configured")
	}
	body, err := json.Marshal(Payload{Text: message, Timestamp: w.now(), Source: "brain", Changes: cs})
	if err != nil {
		return fmt.Errorf("notify: encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
