package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/notify"
	"github.com/starford/brain/internal/views"
)

// significantSizeDelta is the byte difference above which a change is
// called out as a significant content change.
const significantSizeDelta = 100

// ChangelogEntry renders one "## Context Updates" section for cs.
func ChangelogEntry(cs notify.ChangeSet, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Context Updates - %s\n\n", now.Format(views.TimeFormat))
	for _, c := range cs {
		prev, cur := c.Previous, c.Current
		fmt.Fprintf(&b, "### %s Context\n", document.Humanize(c.Name))
		fmt.Fprintf(&b, "- **File**: `%s`\n", c.Path)
		fmt.Fprintf(&b, "- **Title**: %s\n", titleOf(cur))
		fmt.Fprintf(&b, "- **Version**: %d → %d\n", versionOf(prev), versionOf(cur))
		fmt.Fprintf(&b, "- **Ship Factor**: %d → %d\n", shipFactorOf(prev), shipFactorOf(cur))
		fmt.Fprintf(&b, "- **Size**: %d → %d bytes\n", prev.Size, cur.Size)
		fmt.Fprintf(&b, "- **Lines**: %d → %d\n", prev.Lines, cur.Lines)
		if prev.Files != 0 || cur.Files != 0 {
			fmt.Fprintf(&b, "- **Files**: %d → %d\n", prev.Files, cur.Files)
		}
		if notes := Significant(c); len(notes) > 0 {
			fmt.Fprintf(&b, "- **Significant Changes**: %s\n", strings.Join(notes, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Significant lists the notable differences between the previous and the
// current snapshot of c.
func Significant(c notify.Change) []string {
	var notes []string
	if versionOf(c.Current) > versionOf(c.Previous) {
		notes = append(notes, "version bump")
	}
	if shipFactorOf(c.Current) != shipFactorOf(c.Previous) {
		notes = append(notes, "ship factor change")
	}
	delta := c.Current.Size - c.Previous.Size
	if delta < 0 {
		delta = -delta
	}
	if delta > significantSizeDelta {
		notes = append(notes, "significant content change")
	}
	return notes
}

// Summary renders the update summary document for cs.
func Summary(cs notify.ChangeSet, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Context Files Update Summary\n")
	fmt.Fprintf(&b, "*Generated: %s*\n\n", now.Format(views.TimeFormat))
	for _, c := range cs {
		cur := c.Current
		fmt.Fprintf(&b, "## %s\n", document.Humanize(c.Name))
		fmt.Fprintf(&b, "- **File**: `%s`\n", c.Path)
		fmt.Fprintf(&b, "- **Title**: %s\n", titleOf(cur))
		fmt.Fprintf(&b, "- **Version**: %d\n", versionOf(cur))
		fmt.Fprintf(&b, "- **Ship Factor**: %d\n", shipFactorOf(cur))
		fmt.Fprintf(&b, "- **Size**: %d bytes\n", cur.Size)
		fmt.Fprintf(&b, "- **Lines**: %d\n\n", cur.Lines)
	}
	return b.String()
}
