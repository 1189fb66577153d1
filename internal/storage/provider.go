// Package storage defines the file-system abstraction the knowledge base is
// read from and written to.
package storage

import "time"

// FileMeta describes one markdown file found by List.
type FileMeta struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Entry is one item of a single-level directory listing.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Provider is the interface for root-relative file operations. Every path is
// slash-separated and relative to Root; paths that escape the root are
// rejected.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns metadata for every .md file under dir in lexical path
	// order, skipping hidden directories and excluded paths.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path. A missing file yields
	// an error wrapping apperr.ErrNotFound.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)
	// Entries lists the direct, non-hidden children of dir sorted by name.
	// A missing directory yields no entries.
	Entries(dir string) ([]Entry, error)
}
