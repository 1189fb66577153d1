package views

import (
	"strings"
	"time"
)

// TimeFormat is the wall-clock format used in generated documents.
const TimeFormat = "2006-01-02 15:04:05"

var timestampPrefixes = []string{"*Last updated:", "*Generated:"}

func lastUpdated(now time.Time) string {
	return "*Last updated: " + now.Format(TimeFormat) + "*"
}

func generated(now time.Time) string {
	return "*Generated: " + now.Format(TimeFormat) + "*"
}

// StripTimestamps removes the generated-at lines from a rendered document.
func StripTimestamps(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if isTimestampLine(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isTimestampLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range timestampPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// EquivalentIgnoringTimestamp reports whether a and b differ at most in their
// generated-at lines.
func EquivalentIgnoringTimestamp(a, b string) bool {
	return StripTimestamps(a) == StripTimestamps(b)
}

// ChangelogHeader starts a changelog that does not exist yet.
const ChangelogHeader = "# Changelog\n"

// PrependChangelog inserts entry right after the changelog's top-level
// header, before the first existing "## " section, so the newest entry is
// always first. Existing entries are never modified.
func PrependChangelog(existing, entry string) string {
	entry = strings.Trim(entry, "\n") + "\n"
	if strings.TrimSpace(existing) == "" {
		return ChangelogHeader + "\n" + entry
	}

	lines := strings.SplitAfter(existing, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "## ") {
			head := strings.Join(lines[:i], "")
			tail := strings.Join(lines[i:], "")
			return head + entry + "\n" + tail
		}
	}

	if !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	return existing + "\n" + entry
}
