package docstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/brain/internal/apperr"
	"github.com/starford/brain/internal/docstore"
	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/testutil"
)

var start = time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)

type countingRebuilder struct {
	calls int
	err   error
}

func (r *countingRebuilder) RebuildIndex(context.Context) error {
	r.calls++
	return r.err
}

func newStore(t *testing.T) (*docstore.Store, string, *testutil.Clock, *countingRebuilder) {
	t.Helper()
	root, fs := testutil.TestRoot(t)
	clock := testutil.NewClock(start)
	rb := &countingRebuilder{}
	s := docstore.New(fs, docstore.WithClock(clock.Now))
	s.SetIndexRebuilder(rb)
	return s, root, clock, rb
}

func TestCreate_DirectoryBlockedByFile(t *testing.T) {
	s, root, _, rb := newStore(t)
	if err := os.WriteFile(filepath.Join(root, "knowledge"), []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Create(context.Background(), redisDoc())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if rb.calls != 0 {
		t.Errorf("rebuilder ran %d times after a failed create", rb.calls)
	}
}

func redisDoc() docstore.NewDocument {
	return docstore.NewDocument{
		Title:      "Use Redis for caching",
		Content:    "We chose Redis because...",
		Type:       document.TypeKnowledge,
		Subtype:    "decisions",
		Tags:       []string{"redis", "cache"},
		ShipFactor: 8,
	}
}

func TestCreateThenRead(t *testing.T) {
	s, _, _, rb := newStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, redisDoc())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p != "knowledge/decisions/use-redis-for-caching.md" {
		t.Errorf("path = %q", p)
	}
	if rb.calls != 1 {
		t.Errorf("rebuild calls = %d, want 1", rb.calls)
	}

	d, err := s.Read(ctx, p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if *d.Meta.Title != "Use Redis for caching" {
		t.Errorf("title = %q", *d.Meta.Title)
	}
	if diff := cmp.Diff([]string{"redis", "cache"}, d.Meta.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if d.Meta.VersionValue() != 1 || d.Meta.ShipFactorValue() != 8 || d.Meta.IsDeprecated() {
		t.Errorf("unexpected meta: version=%d ship=%d", d.Meta.VersionValue(), d.Meta.ShipFactorValue())
	}
	if !d.Meta.Created.Equal(start) || !d.Meta.Modified.Equal(start) {
		t.Errorf("timestamps = %v / %v", d.Meta.Created, d.Meta.Modified)
	}
	if d.Body != "We chose Redis because..." {
		t.Errorf("body = %q", d.Body)
	}
	if len(d.Meta.Missing()) != 0 {
		t.Errorf("created document lacks %v", d.Meta.Missing())
	}
}

func TestCreate_CategoryOverridesType(t *testing.T) {
	s, _, _, _ := newStore(t)
	in := redisDoc()
	in.Category = "infrastructure"
	p, err := s.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p != "infrastructure/decisions/use-redis-for-caching.md" {
		t.Errorf("path = %q", p)
	}
}

func TestCreate_SlugCollision(t *testing.T) {
	s, root, clock, _ := newStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, redisDoc())
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(90 * time.Second)
	second, err := s.Create(ctx, redisDoc())
	if err != nil {
		t.Fatal(err)
	}
	third, err := s.Create(ctx, redisDoc())
	if err != nil {
		t.Fatal(err)
	}

	if second != "knowledge/decisions/use-redis-for-caching-20260115-090130.md" {
		t.Errorf("second = %q", second)
	}
	if third != "knowledge/decisions/use-redis-for-caching-20260115-090130-2.md" {
		t.Errorf("third = %q", third)
	}
	got := testutil.ReadFile(t, root, first)
	if !strings.Contains(got, "created: 2026-01-15T09:00:00Z") {
		t.Errorf("first document was overwritten:\n%s", got)
	}
}

func TestCreate_Invalid(t *testing.T) {
	s, _, _, rb := newStore(t)
	ctx := context.Background()

	cases := []docstore.NewDocument{
		{Title: "   "},
		{Title: "???"},
		{Title: "Fine", ShipFactor: 11},
		{Title: "Fine", ShipFactor: -1},
	}
	for _, in := range cases {
		if _, err := s.Create(ctx, in); !errors.Is(err, apperr.ErrInvalidDocument) {
			t.Errorf("Create(%+v) err = %v, want ErrInvalidDocument", in, err)
		}
	}
	if rb.calls != 0 {
		t.Errorf("rebuild ran for rejected documents")
	}
}

func TestCreate_Defaults(t *testing.T) {
	s, _, _, _ := newStore(t)
	p, err := s.Create(context.Background(), docstore.NewDocument{Title: "Loose note"})
	if err != nil {
		t.Fatal(err)
	}
	if p != "general/general/loose-note.md" {
		t.Errorf("path = %q", p)
	}
	d, _ := s.Read(context.Background(), p)
	if d.Meta.ShipFactorValue() != document.DefaultShipFactor || d.Meta.Tags == nil {
		t.Errorf("unexpected defaults: %+v", d.Meta)
	}
}

func TestRead_NotFound(t *testing.T) {
	s, _, _, _ := newStore(t)
	_, err := s.Read(context.Background(), "knowledge/nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_VersionMonotonic(t *testing.T) {
	s, _, clock, rb := newStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, redisDoc())

	const n = 4
	for i := 0; i < n; i++ {
		clock.Advance(time.Minute)
		body := strings.Repeat("x", i)
		if _, err := s.Update(ctx, p, &body, nil); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	d, _ := s.Read(ctx, p)
	if d.Meta.VersionValue() != 1+n {
		t.Errorf("version = %d, want %d", d.Meta.VersionValue(), 1+n)
	}
	if !d.Meta.Created.Equal(start) {
		t.Errorf("created changed to %v", d.Meta.Created)
	}
	if !d.Meta.Modified.Equal(start.Add(n * time.Minute)) {
		t.Errorf("modified = %v", d.Meta.Modified)
	}
	if rb.calls != 1+n {
		t.Errorf("rebuild calls = %d", rb.calls)
	}
}

func TestUpdate_PatchCannotRewriteHistory(t *testing.T) {
	s, _, _, _ := newStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, redisDoc())

	d, err := s.Update(ctx, p, nil, &document.Metadata{
		Version:    document.Ptr(40),
		Created:    document.Ptr(start.Add(-48 * time.Hour)),
		Tags:       []string{"redis"},
		Supersedes: document.Ptr("knowledge/decisions/old.md"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Meta.VersionValue() != 2 || !d.Meta.Created.Equal(start) {
		t.Errorf("version=%d created=%v", d.Meta.VersionValue(), d.Meta.Created)
	}
	if len(d.Meta.Tags) != 1 || *d.Meta.Supersedes != "knowledge/decisions/old.md" {
		t.Errorf("patch not applied: %+v", d.Meta)
	}
	if d.Body != "We chose Redis because..." {
		t.Errorf("body changed without content: %q", d.Body)
	}
}

func TestUpdate_AbsentVersionCountsAsOne(t *testing.T) {
	s, root, _, _ := newStore(t)
	testutil.WriteFile(t, root, "knowledge/lessons/legacy.md", "---\ntitle: Legacy\n---\n\nold body\n")

	d, err := s.Update(context.Background(), "knowledge/lessons/legacy.md", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Meta.VersionValue() != 2 {
		t.Errorf("version = %d, want 2", d.Meta.VersionValue())
	}
}

func TestUpdate_Errors(t *testing.T) {
	s, root, _, rb := newStore(t)
	ctx := context.Background()

	if _, err := s.Update(ctx, "missing.md", nil, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}

	p, _ := s.Create(ctx, redisDoc())
	calls := rb.calls
	if _, err := s.Update(ctx, p, nil, &document.Metadata{ShipFactor: document.Ptr(15)}); !errors.Is(err, apperr.ErrInvalidDocument) {
		t.Errorf("ship_factor=15: err = %v", err)
	}
	if rb.calls != calls {
		t.Error("rejected update triggered a rebuild")
	}

	testutil.WriteFile(t, root, "bad.md", "---\ntitle: [oops\n---\nbody")
	if _, err := s.Update(ctx, "bad.md", nil, nil); !errors.Is(err, apperr.ErrMalformedMetadata) {
		t.Errorf("malformed: err = %v", err)
	}
}

func TestUpdate_RebuildFailurePropagates(t *testing.T) {
	s, _, _, rb := newStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, redisDoc())

	rb.err = errors.New("disk full")
	if _, err := s.Update(ctx, p, nil, nil); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v", err)
	}
}

func TestDeprecate(t *testing.T) {
	s, _, clock, _ := newStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, redisDoc())
	clock.Advance(time.Hour)

	d, err := s.Deprecate(ctx, p, "superseded by Memcached")
	if err != nil {
		t.Fatalf("Deprecate: %v", err)
	}
	if !d.Meta.IsDeprecated() || *d.Meta.DeprecatedReason != "superseded by Memcached" {
		t.Errorf("not deprecated: %+v", d.Meta)
	}
	if d.Meta.VersionValue() != 2 {
		t.Errorf("version = %d", d.Meta.VersionValue())
	}
	if !d.Meta.DeprecatedDate.Equal(start.Add(time.Hour)) {
		t.Errorf("deprecated_date = %v", d.Meta.DeprecatedDate)
	}
	if d.Body != "We chose Redis because..." {
		t.Error("deprecation must keep the content")
	}
}

func TestUpdate_StoredOutOfRangeShipFactor(t *testing.T) {
	s, root, _, _ := newStore(t)
	ctx := context.Background()
	const p = "knowledge/decisions/urgent.md"
	testutil.WriteFile(t, root, p, "---\ntitle: Urgent\nship_factor: 15\n---\n\nold\n")

	d, err := s.Update(ctx, p, document.Ptr("new\n"), nil)
	if err != nil {
		t.Fatalf("body edit: %v", err)
	}
	if d.Body != "new\n" || d.Meta.ShipFactorValue() != 15 {
		t.Errorf("update = %+v", d)
	}

	d, err = s.Deprecate(ctx, p, "obsolete")
	if err != nil {
		t.Fatalf("Deprecate: %v", err)
	}
	if !d.Meta.IsDeprecated() || d.Meta.VersionValue() != 3 {
		t.Errorf("deprecate = %+v", d.Meta)
	}

	if _, err := s.Update(ctx, p, nil, &document.Metadata{ShipFactor: document.Ptr(7)}); err != nil {
		t.Errorf("patching a valid ship factor: %v", err)
	}
}

func TestScan(t *testing.T) {
	s, root, _, _ := newStore(t)
	ctx := context.Background()
	_, _ = s.Create(ctx, redisDoc())
	testutil.WriteFile(t, root, "tools/integrations/broken.md", "---\nship_factor: [\n---\nbody")
	testutil.WriteFile(t, root, "a-plain.md", "no frontmatter at all")

	docs, issues, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var paths []string
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	want := []string{"a-plain.md", "knowledge/decisions/use-redis-for-caching.md"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
	if len(issues) != 1 || issues[0].Path != "tools/integrations/broken.md" {
		t.Errorf("issues = %v", issues)
	}
	if !errors.Is(issues[0].Err, apperr.ErrMalformedMetadata) {
		t.Errorf("issue err = %v", issues[0].Err)
	}
}

func TestScan_Cancelled(t *testing.T) {
	s, _, _, _ := newStore(t)
	_, _ = s.Create(context.Background(), redisDoc())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
