package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLinks_MarkdownAndWikilinks(t *testing.T) {
	body := "See [cache](../../systems/cache.md) and [[redis-ops|Redis runbook]].\n" +
		"Also [the cache](../../systems/cache.md#eviction \"Eviction\") again,\n" +
		"[root doc](/INDEX.md) and [[ ]] and [site](https://example.com/a.md)."
	got := Links(body, "knowledge/decisions/use-redis.md")
	want := []string{
		"systems/cache.md",
		"INDEX.md",
		"knowledge/decisions/redis-ops.md",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Links mismatch (-want +got):\n%s", diff)
	}
}

func TestLinks_DropsNonDocumentsAndEscapes(t *testing.T) {
	body := "[img](diagram.png) [up](../../../outside.md) [anchor](#section) [mail](mailto:a@b.md)"
	if got := Links(body, "a/b/c.md"); len(got) != 0 {
		t.Errorf("Links = %v, want none", got)
	}
}

func TestLinks_NoLinks(t *testing.T) {
	if got := Links("Plain text.\n", "notes.md"); got != nil {
		t.Errorf("Links = %v, want nil", got)
	}
}
