// Package checksum provides the content hashing primitives used for change
// detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Empty is the digest of a directory with no hashable files, and of a
// directory that does not exist.
var Empty = Sum(nil)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// File returns the digest of a single file. ok is false when the file does
// not exist.
func File(path string) (digest string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("checksum: read %s: %w", path, err)
	}
	return Sum(data), true, nil
}

// Directory hashes every regular, non-hidden file below root and combines
// the per-file digests in sorted order, so the result does not depend on
// enumeration order. Hidden directories are not descended into.
func Directory(root string) (string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Empty, nil
		}
		return "", fmt.Errorf("checksum: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("checksum: not a directory: %s", root)
	}

	var digests []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		digests = append(digests, Sum(data))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("checksum: walk %s: %w", root, err)
	}

	sort.Strings(digests)
	return Sum([]byte(strings.Join(digests, ""))), nil
}
