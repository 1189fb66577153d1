package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSum_Stable(t *testing.T) {
	if Sum([]byte("a")) != Sum([]byte("a")) {
		t.Error("same input should hash identically")
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different input should hash differently")
	}
}

func TestFile_Absent(t *testing.T) {
	digest, ok, err := File(filepath.Join(t.TempDir(), "missing.md"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || digest != "" {
		t.Errorf("got (%q, %v), want absent", digest, ok)
	}
}

func TestFile_Present(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.md")
	_ = os.WriteFile(p, []byte("hello"), 0o644)
	digest, ok, err := File(p)
	if err != nil || !ok {
		t.Fatalf("File: %v ok=%v", err, ok)
	}
	if digest != Sum([]byte("hello")) {
		t.Errorf("digest = %q", digest)
	}
}

func TestDirectory_EmptyAndAbsent(t *testing.T) {
	dir := t.TempDir()
	got, err := Directory(dir)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if got != Empty {
		t.Errorf("empty dir = %q, want Empty", got)
	}
	got, err = Directory(filepath.Join(dir, "nope"))
	if err != nil {
		t.Fatalf("Directory absent: %v", err)
	}
	if got != Empty {
		t.Errorf("absent dir = %q, want Empty", got)
	}
}

func TestDirectory_AddingFileChangesHash(t *testing.T) {
	dir := t.TempDir()
	before, _ := Directory(dir)
	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644)
	after, err := Directory(dir)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if before == after {
		t.Error("adding a file should change the directory hash")
	}
}

func TestDirectory_OrderIndependent(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	_ = os.WriteFile(filepath.Join(a, "one.md"), []byte("1"), 0o644)
	_ = os.WriteFile(filepath.Join(a, "two.md"), []byte("2"), 0o644)
	// Same contents under names that enumerate in the opposite order.
	_ = os.WriteFile(filepath.Join(b, "z.md"), []byte("1"), 0o644)
	_ = os.WriteFile(filepath.Join(b, "a.md"), []byte("2"), 0o644)

	ha, _ := Directory(a)
	hb, _ := Directory(b)
	if ha != hb {
		t.Errorf("hash depends on enumeration order: %q vs %q", ha, hb)
	}
}

func TestDirectory_HiddenExcluded(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644)
	before, _ := Directory(dir)

	_ = os.WriteFile(filepath.Join(dir, ".state.json"), []byte("{}"), 0o644)
	_ = os.MkdirAll(filepath.Join(dir, ".cache"), 0o755)
	_ = os.WriteFile(filepath.Join(dir, ".cache", "x"), []byte("x"), 0o644)

	after, _ := Directory(dir)
	if before != after {
		t.Error("hidden files must not affect the directory hash")
	}
}

func TestDirectory_ByteChangeDetected(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "a.md")
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	_ = os.WriteFile(p, []byte("abc"), 0o644)
	before, _ := Directory(dir)
	_ = os.WriteFile(p, []byte("abd"), 0o644)
	after, _ := Directory(dir)
	if before == after {
		t.Error("modifying a nested file should change the hash")
	}
}
