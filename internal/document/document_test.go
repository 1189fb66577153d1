package document

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/brain/internal/apperr"
)

var fixedNow = time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)

func fullDocument() Document {
	return Document{
		Meta: Metadata{
			Title:            Ptr("Use Redis for caching"),
			Type:             Ptr(TypeKnowledge),
			Subtype:          Ptr("decisions"),
			Category:         Ptr("knowledge"),
			Tags:             []string{"redis", "cache"},
			Created:          Ptr(fixedNow),
			Modified:         Ptr(fixedNow.Add(time.Hour)),
			Version:          Ptr(3),
			ShipFactor:       Ptr(8),
			Deprecated:       Ptr(true),
			DeprecatedDate:   Ptr(fixedNow.Add(2 * time.Hour)),
			DeprecatedReason: Ptr("superseded by Memcached"),
			Supersedes:       Ptr("knowledge/decisions/old.md"),
			References:       []string{"knowledge/lessons/a.md", "tools/integrations/b.md"},
			Extra:            map[string]any{"owner": "platform", "priority": 2},
		},
		Body: "We chose Redis because...\n\n## Trade-offs\n- memory\n",
	}
}

func TestRoundTrip_FullDocument(t *testing.T) {
	want := fullDocument()
	raw, err := Serialize(want)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_Sparse(t *testing.T) {
	cases := []Document{
		{Body: ""},
		{Body: "\nleading newline body"},
		{Meta: Metadata{Tags: []string{}}, Body: "empty tags stay present"},
		{Meta: Metadata{Title: Ptr("123"), Subtype: Ptr("true")}, Body: "numeric-looking strings"},
		{Meta: Metadata{Title: Ptr("multi\nline")}, Body: "x"},
	}
	for _, want := range cases {
		raw, err := Serialize(want)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		got, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch for %q (-want +got):\n%s", raw, diff)
		}
	}
}

func TestSerialize_KeyOrder(t *testing.T) {
	raw, err := Serialize(Document{Meta: Metadata{
		ShipFactor: Ptr(5),
		Title:      Ptr("T"),
		Extra:      map[string]any{"zeta": 1, "alpha": 2},
	}})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := "---\ntitle: T\nship_factor: 5\nalpha: 2\nzeta: 1\n---\n\n"
	if string(raw) != want {
		t.Errorf("got %q, want %q", raw, want)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	d, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Body != "# Just a heading\nSome text.\n" {
		t.Errorf("body = %q", d.Body)
	}
	if len(d.Meta.Missing()) != len(RequiredFields) {
		t.Errorf("missing = %v, want all required fields", d.Meta.Missing())
	}
}

func TestParse_LegacyFormat(t *testing.T) {
	raw := "---\ntitle: Deploy flow\ntype: system\nsubtype: workflows\ntags:\n- deploy\n" +
		"created: '2024-05-01T09:15:30.123456'\nmodified: 2024-05-02 08:00:00\nversion: 2\n" +
		"ship_factor: 7\ndeprecated: false\n---\n\nSteps here.\n"
	d, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Body != "Steps here.\n" {
		t.Errorf("body = %q", d.Body)
	}
	if d.Meta.Created == nil || d.Meta.Created.Year() != 2024 || d.Meta.Created.Nanosecond() != 123456000 {
		t.Errorf("created = %v", d.Meta.Created)
	}
	if d.Meta.Modified == nil || d.Meta.Modified.Day() != 2 {
		t.Errorf("modified = %v", d.Meta.Modified)
	}
	if d.Meta.ShipFactorValue() != 7 || d.Meta.VersionValue() != 2 {
		t.Errorf("ship_factor=%d version=%d", d.Meta.ShipFactorValue(), d.Meta.VersionValue())
	}
	if len(d.Meta.Missing()) != 0 {
		t.Errorf("unexpected missing fields: %v", d.Meta.Missing())
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"invalid yaml":    "---\ntitle: [unclosed\n---\nBody\n",
		"unterminated":    "---\ntitle: x\nBody without closing\n",
		"not a mapping":   "---\n- a\n- b\n---\nBody\n",
		"bad ship factor": "---\nship_factor: high\n---\nBody\n",
		"bad timestamp":   "---\ncreated: yesterday\n---\nBody\n",
		"nested title":    "---\ntitle:\n  a: b\n---\nBody\n",
		"lone delimiter":  "---",
	}
	for name, raw := range cases {
		_, err := Parse([]byte(raw))
		if !errors.Is(err, apperr.ErrMalformedMetadata) {
			t.Errorf("%s: err = %v, want ErrMalformedMetadata", name, err)
		}
	}
}

func TestParse_NullValuesAreAbsent(t *testing.T) {
	d, err := Parse([]byte("---\ntitle:\ntags:\nowner: ~\n---\nx"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Meta.Has(FieldTitle) || d.Meta.Has(FieldTags) {
		t.Error("null schema values should be treated as absent")
	}
	if _, ok := d.Meta.Extra["owner"]; !ok {
		t.Error("null extra keys should be preserved")
	}
}

func TestParse_ScalarTagsBecomeList(t *testing.T) {
	d, err := Parse([]byte("---\ntags: solo\n---\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Meta.Tags) != 1 || d.Meta.Tags[0] != "solo" {
		t.Errorf("tags = %v", d.Meta.Tags)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Use Redis for caching":   "use-redis-for-caching",
		"  --Hello,   World!!-- ": "hello-world",
		"C++ & Go: 2024 edition":  "c-go-2024-edition",
		"already-slugged":         "already-slugged",
		"!!!":                     "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHumanize(t *testing.T) {
	cases := map[string]string{
		"use-redis_cache.md": "Use Redis Cache",
		"decisions":          "Decisions",
		"README.md":          "README",
	}
	for in, want := range cases {
		if got := Humanize(in); got != want {
			t.Errorf("Humanize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	d := Document{Path: "knowledge/lessons/cache-stampede.md"}
	if got := d.DisplayTitle(); got != "Cache Stampede" {
		t.Errorf("DisplayTitle = %q", got)
	}
	d.Meta.Title = Ptr("Thundering herd")
	if got := d.DisplayTitle(); got != "Thundering herd" {
		t.Errorf("DisplayTitle = %q", got)
	}
}

func TestDefaults(t *testing.T) {
	m := Defaults("knowledge/lessons/cache-stampede.md", fixedNow)
	if *m.Title != "Cache Stampede" || *m.Subtype != "lessons" || *m.Type != TypeGeneral {
		t.Errorf("unexpected defaults: title=%q subtype=%q type=%q", *m.Title, *m.Subtype, *m.Type)
	}
	if *m.ShipFactor != DefaultShipFactor || *m.Version != 1 || *m.Deprecated {
		t.Error("unexpected numeric defaults")
	}
	if m.Tags == nil || len(m.Tags) != 0 {
		t.Errorf("tags = %#v, want empty non-nil", m.Tags)
	}
	if !m.Created.Equal(fixedNow) || !m.Modified.Equal(fixedNow) {
		t.Error("timestamps should default to now")
	}
	if len(m.Missing()) != 0 {
		t.Errorf("defaults leave fields missing: %v", m.Missing())
	}

	if got := *Defaults("notes.md", fixedNow).Subtype; got != "general" {
		t.Errorf("root-level subtype = %q, want general", got)
	}
}

func TestFillMissing(t *testing.T) {
	m := Metadata{Title: Ptr("Kept"), ShipFactor: Ptr(9)}
	filled := m.FillMissing(Defaults("tools/integrations/x.md", fixedNow))
	want := []Field{FieldType, FieldSubtype, FieldTags, FieldCreated, FieldModified, FieldVersion, FieldDeprecated}
	if diff := cmp.Diff(want, filled); diff != "" {
		t.Errorf("filled fields (-want +got):\n%s", diff)
	}
	if *m.Title != "Kept" || *m.ShipFactor != 9 {
		t.Error("present fields must not be overwritten")
	}
	if *m.Subtype != "integrations" {
		t.Errorf("subtype = %q", *m.Subtype)
	}
	if again := m.FillMissing(Defaults("tools/integrations/x.md", fixedNow)); len(again) != 0 {
		t.Errorf("second fill should be a no-op, filled %v", again)
	}
}

func TestMerge(t *testing.T) {
	m := Metadata{Title: Ptr("A"), Tags: []string{"x"}, Extra: map[string]any{"k": 1}}
	m.Merge(Metadata{Tags: []string{"y", "z"}, ShipFactor: Ptr(2), Extra: map[string]any{"j": 2}})
	if *m.Title != "A" {
		t.Error("absent patch fields must not clear existing values")
	}
	if strings.Join(m.Tags, ",") != "y,z" || *m.ShipFactor != 2 {
		t.Errorf("patch not applied: %+v", m)
	}
	if m.Extra["k"] != 1 || m.Extra["j"] != 2 {
		t.Errorf("extra = %v", m.Extra)
	}
}

func TestCheck(t *testing.T) {
	full := Defaults("knowledge/decisions/a.md", fixedNow)

	if v := Check(full); len(v) != 0 {
		t.Errorf("complete metadata produced violations: %+v", v)
	}

	bad := full
	bad.ShipFactor = Ptr(15)
	v := Check(bad)
	if len(v) != 1 || v[0].Severity != SeverityError || v[0].Field != FieldShipFactor {
		t.Errorf("ship_factor=15: %+v", v)
	}

	zero := full
	zero.ShipFactor = Ptr(0)
	if v := Check(zero); len(v) != 1 || v[0].Severity != SeverityError {
		t.Errorf("ship_factor=0: %+v", v)
	}

	badVersion := full
	badVersion.Version = Ptr(0)
	if v := Check(badVersion); len(v) != 1 || v[0].Field != FieldVersion {
		t.Errorf("version=0: %+v", v)
	}

	odd := full
	odd.Type = Ptr(Type("playbook"))
	odd.Deprecated = Ptr(true)
	for _, viol := range Check(odd) {
		if viol.Severity != SeverityWarning {
			t.Errorf("expected only warnings, got %+v", viol)
		}
	}
	if got := len(Check(odd)); got != 3 {
		t.Errorf("violations = %d, want 3 (type, deprecated_date, deprecated_reason)", got)
	}

	noTags := full
	noTags.Tags = nil
	v = Check(noTags)
	if len(v) != 1 || v[0].Severity != SeverityWarning || v[0].Field != FieldTags {
		t.Errorf("missing tags: %+v", v)
	}
}

func TestPathHelpers(t *testing.T) {
	if TopLevel("knowledge/decisions/a.md") != "knowledge" || Subcategory("knowledge/decisions/a.md") != "decisions" {
		t.Error("three-segment path")
	}
	if TopLevel("knowledge/a.md") != "knowledge" || Subcategory("knowledge/a.md") != "" {
		t.Error("two-segment path")
	}
	if TopLevel("a.md") != "" {
		t.Error("root-level path")
	}
}

func TestIsZero(t *testing.T) {
	if !(Metadata{}).IsZero() {
		t.Error("empty metadata should be zero")
	}
	if (Metadata{Extra: map[string]any{"x": 1}}).IsZero() {
		t.Error("extra keys count as metadata")
	}
	if (Metadata{References: []string{}}).IsZero() {
		t.Error("explicit empty list counts as metadata")
	}
}
