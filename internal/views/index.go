package views

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/brain/internal/document"
)

const defaultSubcategory = "General"

// BuildIndex renders the index of all documents grouped by top-level
// directory and subcategory. Apart from the timestamp line the output is a
// pure function of docs.
func BuildIndex(docs []document.Document, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Knowledge Base Index\n\n")
	b.WriteString(lastUpdated(now) + "\n\n")

	st := Statistics(docs)
	b.WriteString("## Statistics\n\n")
	fmt.Fprintf(&b, "- **Total documents**: %d\n", st.Total)
	for _, c := range sortedKeys(st.ByCategory) {
		fmt.Fprintf(&b, "- **%s**: %d\n", document.Humanize(c), st.ByCategory[c])
	}
	fmt.Fprintf(&b, "- **Deprecated**: %d\n", st.Deprecated)
	fmt.Fprintf(&b, "- **High priority (ship factor %d+)**: %d\n\n", HighPriorityThreshold, st.HighPriority)

	groups := make(map[string]map[string][]document.Document)
	for _, d := range docs {
		top := category(d.Path)
		sub := document.Subcategory(d.Path)
		if sub == "" {
			sub = defaultSubcategory
		} else {
			sub = document.Humanize(sub)
		}
		if groups[top] == nil {
			groups[top] = make(map[string][]document.Document)
		}
		groups[top][sub] = append(groups[top][sub], d)
	}

	for _, top := range sortedKeys(groups) {
		fmt.Fprintf(&b, "## %s\n\n", document.Humanize(top))
		subs := groups[top]
		for _, sub := range sortedKeys(subs) {
			fmt.Fprintf(&b, "### %s\n\n", sub)
			entries := subs[sub]
			sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
			for _, d := range entries {
				b.WriteString(indexLine(d, ""))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## High Priority\n\n")
	hp := HighPriority(docs, HighPriorityThreshold)
	if len(hp) == 0 {
		b.WriteString("_No high-priority documents._\n")
	}
	for _, d := range hp {
		fmt.Fprintf(&b, "- [%d] [%s](%s)\n", d.Meta.ShipFactorValue(), d.DisplayTitle(), d.Path)
	}
	return b.String()
}

// indexLine renders one link line; links are made relative by trimming base.
func indexLine(d document.Document, base string) string {
	link := strings.TrimPrefix(d.Path, base)
	line := fmt.Sprintf("- [%s](%s)", d.DisplayTitle(), link)
	if d.Meta.ShipFactor != nil {
		line += fmt.Sprintf(" (ship factor %d)", *d.Meta.ShipFactor)
	}
	if d.Meta.IsDeprecated() {
		line += " *(deprecated)*"
	}
	return line + "\n"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
