package document

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Slugify lowercases title, collapses every run of characters outside
// [a-z0-9] into a single '-', and trims leading and trailing separators.
func Slugify(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Humanize turns a file or directory name such as "use-redis_cache.md" into
// "Use Redis Cache".
func Humanize(name string) string {
	name = strings.TrimSuffix(name, ".md")
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
