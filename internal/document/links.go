package document

import (
	"path"
	"regexp"
	"strings"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	wikilinkRe     = regexp.MustCompile(`\[\[(.*?)\]\]`)
)

// Links returns the root-relative paths of the Markdown documents that body,
// stored at p, links to. Both [text](target.md) and [[target|alias]] forms are
// recognised; targets resolve against the directory of p, and a leading
// slash makes them root-relative. External URLs, anchors and targets outside
// the root are dropped. The result is deduplicated in order of appearance.
func Links(body, p string) []string {
	var targets []string
	for _, m := range markdownLinkRe.FindAllStringSubmatch(body, -1) {
		targets = append(targets, m[1])
	}
	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		// [[Target|Alias]] -> Target.
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target != "" && !strings.HasSuffix(target, ".md") {
			target += ".md"
		}
		targets = append(targets, target)
	}

	seen := make(map[string]struct{}, len(targets))
	var out []string
	for _, t := range targets {
		resolved, ok := resolveLink(t, p)
		if !ok {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}
	return out
}

func resolveLink(target, from string) (string, bool) {
	target, _, _ = strings.Cut(target, "#")
	if target == "" || strings.Contains(target, ":") {
		return "", false
	}
	if !strings.HasSuffix(target, ".md") {
		return "", false
	}
	var resolved string
	if strings.HasPrefix(target, "/") {
		resolved = path.Clean(strings.TrimLeft(target, "/"))
	} else {
		resolved = path.Join(path.Dir(from), target)
	}
	if resolved == "." || resolved == ".." || strings.HasPrefix(resolved, "../") {
		return "", false
	}
	return resolved, true
}
