package views

import (
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/starford/brain/internal/document"
)

// ContentPattern classifies documents whose body mentions any of Keywords.
type ContentPattern struct {
	Name     string
	Keywords []string
}

// ContentPatterns drive the quick-lookup hints of the system overview.
var ContentPatterns = []ContentPattern{
	{Name: "decision", Keywords: []string{"decision", "chose", "selected", "adopted"}},
	{Name: "workflow", Keywords: []string{"workflow", "process", "steps", "procedure"}},
	{Name: "reference", Keywords: []string{"reference", "cheat sheet", "quick start"}},
	{Name: "configuration", Keywords: []string{"config", "setup", "install", "configure"}},
	{Name: "tutorial", Keywords: []string{"tutorial", "guide", "how to", "walkthrough"}},
}

// Analysis summarises the frontmatter and naming of a document set.
type Analysis struct {
	TotalFiles      int
	WithFrontmatter int
	Types           map[string]int
	Subtypes        map[string]int
	Tags            map[string]int
	ShipFactors     map[int]int
	MissingFields   map[document.Field]int
	NamingPatterns  map[string]int
	ContentPatterns map[string]int
}

// Analyze inspects every document's metadata, file name and body.
func Analyze(docs []document.Document) Analysis {
	a := Analysis{
		Types:           make(map[string]int),
		Subtypes:        make(map[string]int),
		Tags:            make(map[string]int),
		ShipFactors:     make(map[int]int),
		MissingFields:   make(map[document.Field]int),
		NamingPatterns:  make(map[string]int),
		ContentPatterns: make(map[string]int),
	}
	for _, d := range docs {
		a.TotalFiles++
		if pattern := namingPattern(d.Path); pattern != "" {
			a.NamingPatterns[pattern]++
		}
		body := strings.ToLower(d.Body)
		if strings.Contains(body, "## ") && strings.Contains(body, "### ") {
			a.NamingPatterns["structured"]++
		}
		if strings.Contains(body, "```") {
			a.NamingPatterns["code blocks"]++
		}
		for _, cp := range ContentPatterns {
			for _, kw := range cp.Keywords {
				if strings.Contains(body, kw) {
					a.ContentPatterns[cp.Name]++
					break
				}
			}
		}

		m := d.Meta
		if m.IsZero() {
			continue
		}
		a.WithFrontmatter++
		if m.Type != nil {
			a.Types[string(*m.Type)]++
		}
		if m.Subtype != nil {
			a.Subtypes[*m.Subtype]++
		}
		for _, t := range m.Tags {
			a.Tags[t]++
		}
		if m.ShipFactor != nil {
			a.ShipFactors[*m.ShipFactor]++
		}
		for _, f := range m.Missing() {
			a.MissingFields[f]++
		}
	}
	return a
}

func namingPattern(p string) string {
	stem := strings.TrimSuffix(path.Base(p), path.Ext(p))
	switch {
	case strings.Contains(stem, "-"):
		return "kebab-case"
	case strings.Contains(stem, "_"):
		return "snake_case"
	case stem == strings.ToLower(stem) && hasLetter(stem):
		return "lowercase"
	case stem == strings.ToUpper(stem) && hasLetter(stem):
		return "UPPERCASE"
	}
	return ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Count is one entry of a frequency table.
type Count struct {
	Key   string
	Count int
}

// Ranked orders a frequency table by descending count, then key.
func Ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
