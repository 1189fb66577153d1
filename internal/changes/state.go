package changes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Snapshot is the metadata summary kept alongside a resource's hash so a
// later run can describe what changed.
type Snapshot struct {
	Title      string `json:"title,omitempty"`
	Modified   string `json:"modified,omitempty"`
	Version    int    `json:"version,omitempty"`
	ShipFactor int    `json:"ship_factor,omitempty"`
	Size       int64  `json:"size"`
	Lines      int    `json:"lines,omitempty"`
	Files      int    `json:"files,omitempty"`
}

// Record is the last-seen state of one resource.
type Record struct {
	Hash        string    `json:"hash"`
	Snapshot    Snapshot  `json:"snapshot"`
	LastChecked time.Time `json:"last_checked"`
}

// State maps resource names to their last-seen record.
type State map[string]Record

// LoadState reads the state file. A missing file is an empty state. The file
// may carry comments or trailing commas.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return nil, fmt.Errorf("changes: read state: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return State{}, nil
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("changes: parse state %s: %w", path, err)
	}
	st := State{}
	if err := json.Unmarshal(standardized, &st); err != nil {
		return nil, fmt.Errorf("changes: decode state %s: %w", path, err)
	}
	// A literal null decodes to a nil map.
	if st == nil {
		st = State{}
	}
	return st, nil
}

// Save replaces the state file wholesale.
func (s State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("changes: encode state: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("changes: mkdir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("changes: write state: %w", err)
	}
	return nil
}
