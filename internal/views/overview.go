package views

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/starford/brain/internal/document"
)

// DirInfo describes one directory found in a live listing.
type DirInfo struct {
	Name          string
	Path          string
	Subdirs       []string
	MarkdownFiles int
	// Readme is the body of the directory's README, if it has one.
	Readme string
}

// FileInfo describes one file found in a live listing.
type FileInfo struct {
	Name string
	Size int64
}

// SystemInput is the live state the system overview and the analysis
// report are rendered from.
type SystemInput struct {
	Directories         []DirInfo
	Documents           []document.Document
	ConfigFiles         []string
	MaintenanceCommands []string
}

// InfraInput is the live state of the infrastructure directory.
type InfraInput struct {
	Base        string
	Directories []DirInfo
	Files       []FileInfo
	Documents   []document.Document
}

func (d DirInfo) purpose(fallback func(string) string) string {
	if p := ReadmePurpose(d.Readme); p != "" {
		return p
	}
	return fallback(d.Name)
}

const maxListed = 10

// BuildSystemOverview renders the navigation guide for the knowledge base.
func BuildSystemOverview(in SystemInput, now time.Time) string {
	a := Analyze(in.Documents)
	var b strings.Builder

	b.WriteString("# Knowledge Base Navigation System\n\n")
	b.WriteString("You have access to a knowledge base organized as markdown files. This document defines how to navigate and use this system.\n\n")
	b.WriteString(lastUpdated(now) + "\n\n")

	b.WriteString("## Structure Convention\n\n")
	b.WriteString("- All files are markdown with YAML frontmatter\n")
	b.WriteString("- Paths indicate type and purpose:\n")
	for _, d := range in.Directories {
		fmt.Fprintf(&b, "  - `%s/` = %s\n", d.Path, d.purpose(DirectoryPurpose))
	}
	b.WriteString("- Newer files override older ones (check `modified` date in frontmatter)\n")
	b.WriteString("- References use relative paths: `[link text](knowledge/decisions/example.md)`\n\n")

	b.WriteString(systemStatic)

	b.WriteString("## Quick Lookup Patterns\n\n")
	if a.ContentPatterns["decision"] > 0 {
		b.WriteString("- **Recent decisions**: Sort by `modified` in `knowledge/decisions/`\n")
	}
	if a.ContentPatterns["workflow"] > 0 {
		b.WriteString("- **Active workflows**: `systems/workflows/` where `deprecated: false`\n")
	}
	if a.ContentPatterns["reference"] > 0 {
		b.WriteString("- **Quick references**: `knowledge/references/` with tag `reference`\n")
	}
	fmt.Fprintf(&b, "- **High-priority items**: Search for `ship_factor: [%d-%d]`\n", HighPriorityThreshold, document.MaxShipFactor)
	b.WriteString("- **Anti-patterns**: Check `knowledge/lessons/` with tag `anti-pattern`\n")
	b.WriteString("- **Current tech stack**: `tools/integrations/` with tag `active`\n\n")

	b.WriteString("## Naming Conventions\n\n")
	b.WriteString("- Use kebab-case file names: `why-we-chose-redis.md`\n")
	b.WriteString("- Keep hierarchy shallow (max 3 levels) and use plural folder names\n")
	b.WriteString("- Group by function, not by project\n\n")
	if len(a.NamingPatterns) > 0 {
		b.WriteString("### Current Patterns\n\n")
		for _, c := range Ranked(a.NamingPatterns) {
			fmt.Fprintf(&b, "- **%s**: %d files\n", c.Key, c.Count)
		}
		b.WriteString("\n")
	}

	if len(in.MaintenanceCommands) > 0 || len(in.ConfigFiles) > 0 {
		b.WriteString("## Automation\n\n")
		if len(in.MaintenanceCommands) > 0 {
			b.WriteString("### Maintenance Commands\n\n")
			for _, c := range limit(in.MaintenanceCommands, maxListed) {
				fmt.Fprintf(&b, "- `%s`\n", c)
			}
			b.WriteString("\n")
		}
		if len(in.ConfigFiles) > 0 {
			b.WriteString("### Configuration Files\n\n")
			for _, c := range limit(in.ConfigFiles, maxListed) {
				fmt.Fprintf(&b, "- `%s`\n", c)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(maintenanceStatic)
	return b.String()
}

const systemStatic = `## Reading Files

1. **Check INDEX.md first** for quick lookups and navigation
2. **Navigate by path**: ` + "`category/subcategory/filename.md`" + `
3. **Parse frontmatter** for metadata (YAML between ` + "`---`" + ` markers)
4. **Use tags** for cross-references and semantic search
5. **Check deprecated status** before using any content

## CRUD Operations

### CREATE
- Add to the folder matching the content type
- Include complete frontmatter (see schema below)
- Use descriptive, kebab-case filenames

### READ
- Access directly by path
- Search by tags in frontmatter
- Check ` + "`ship_factor`" + ` for implementation priority

### UPDATE
- Increment ` + "`version`" + ` and refresh ` + "`modified`" + `
- Keep change history in content if significant

### DELETE
- Set ` + "`deprecated: true`" + ` with ` + "`deprecated_date`" + ` and ` + "`deprecated_reason`" + `
- Never remove files

## Frontmatter Schema

` + "```yaml" + `
title: Human-readable title (required)
type: knowledge|behavior|system|tool|general (required)
subtype: specific subcategory (required)
tags: [searchable, tags, here] (required)
created: ISO-8601 date (required)
modified: ISO-8601 date (required)
version: integer starting at 1 (required)
ship_factor: 1-10 scale (10 = ship immediately)
deprecated: boolean (default: false)
deprecated_date: ISO-8601 date (if deprecated)
deprecated_reason: explanation (if deprecated)
supersedes: path/to/previous/version.md
references:
  - relative/path/to/related.md
` + "```" + `

## Priority Rules

1. **Ship Factor Scale**:
   - 9-10: Implement immediately, blocking issue
   - 7-8: High priority, implement this week
   - 5-6: Normal priority, implement this sprint
   - 3-4: Low priority, nice to have
   - 1-2: Future consideration, research only
2. **Deprecated Content**: ignore files with ` + "`deprecated: true`" + `; check ` + "`supersedes`" + ` for the replacement
3. **Version Conflicts**: use the highest version, then the latest ` + "`modified`" + ` date

`

const maintenanceStatic = `## Maintenance Tasks

### Daily
- Regenerate INDEX.md after new additions
- Review context file changes in CHANGELOG.md

### Weekly
- Review high ship factor items
- Run validation and repair missing frontmatter

### Monthly
- Consolidate duplicate knowledge
- Update deprecated references
- Review and clean up tags
`

// BuildAnalysisReport renders the detailed directory and frontmatter report.
func BuildAnalysisReport(in SystemInput, now time.Time) string {
	a := Analyze(in.Documents)
	var b strings.Builder

	b.WriteString("# Codebase Analysis Report\n")
	b.WriteString(generated(now) + "\n\n")

	b.WriteString("## Directory Structure\n\n")
	for _, d := range in.Directories {
		fmt.Fprintf(&b, "### %s\n", d.Name)
		fmt.Fprintf(&b, "- **Path**: `%s`\n", d.Path)
		fmt.Fprintf(&b, "- **Purpose**: %s\n", d.purpose(DirectoryPurpose))
		fmt.Fprintf(&b, "- **Files**: %d markdown files\n", d.MarkdownFiles)
		if len(d.Subdirs) > 0 {
			fmt.Fprintf(&b, "- **Subdirectories**: %s\n", strings.Join(d.Subdirs, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## File Statistics\n\n")
	fmt.Fprintf(&b, "- **Total files analyzed**: %d\n", a.TotalFiles)
	fmt.Fprintf(&b, "- **Files with frontmatter**: %d\n\n", a.WithFrontmatter)

	writeCounts(&b, "Common Types", Ranked(a.Types), 0)
	writeCounts(&b, "Common Subtypes", Ranked(a.Subtypes), maxListed)
	writeCounts(&b, "Common Tags", Ranked(a.Tags), maxListed)

	b.WriteString("### Ship Factor Distribution\n\n")
	factors := make([]int, 0, len(a.ShipFactors))
	for f := range a.ShipFactors {
		factors = append(factors, f)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(factors)))
	for _, f := range factors {
		fmt.Fprintf(&b, "- **%d**: %d files\n", f, a.ShipFactors[f])
	}
	b.WriteString("\n")

	missing := make(map[string]int, len(a.MissingFields))
	for f, n := range a.MissingFields {
		missing[string(f)] = n
	}
	writeCounts(&b, "Missing Fields", Ranked(missing), 0)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeCounts(b *strings.Builder, title string, counts []Count, max int) {
	fmt.Fprintf(b, "### %s\n\n", title)
	if len(counts) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	if max > 0 && len(counts) > max {
		counts = counts[:max]
	}
	for _, c := range counts {
		fmt.Fprintf(b, "- **%s**: %d files\n", c.Key, c.Count)
	}
	b.WriteString("\n")
}

// BuildInfrastructureOverview renders the overview of the infrastructure
// directory from its live listing. Links are relative to in.Base.
func BuildInfrastructureOverview(in InfraInput, now time.Time) string {
	var b strings.Builder
	base := strings.Trim(in.Base, "/")

	b.WriteString("# Infrastructure Overview\n\n")
	fmt.Fprintf(&b, "This file provides a high-level overview of the infrastructure setup. Detailed configurations are stored in the `%s/` directory.\n\n", base)
	b.WriteString(lastUpdated(now) + "\n\n")

	configFiles := 0
	for _, f := range in.Files {
		if FilePurpose(f.Name) != FilePurposes[".md"] {
			configFiles++
		}
	}
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Components**: %d\n", len(in.Directories))
	fmt.Fprintf(&b, "- **Documents**: %d\n", len(in.Documents))
	fmt.Fprintf(&b, "- **Configuration Files**: %d\n", configFiles)
	fmt.Fprintf(&b, "- **High Priority**: %d\n\n", len(HighPriority(in.Documents, HighPriorityThreshold)))

	b.WriteString("## Structure\n\n```\n")
	b.WriteString(base + "/\n")
	for _, d := range in.Directories {
		fmt.Fprintf(&b, "├── %s/    # %s\n", d.Name, d.purpose(InfrastructurePurpose))
	}
	for _, f := range in.Files {
		fmt.Fprintf(&b, "├── %s    # %s\n", f.Name, FilePurpose(f.Name))
	}
	b.WriteString("```\n\n")

	byComponent := make(map[string][]document.Document)
	prefix := base + "/"
	for _, d := range in.Documents {
		rest := strings.TrimPrefix(d.Path, prefix)
		comp := ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			comp = rest[:i]
		}
		byComponent[comp] = append(byComponent[comp], d)
	}

	b.WriteString("## Components\n\n")
	for _, comp := range sortedKeys(byComponent) {
		title := "General"
		if comp != "" {
			title = document.Humanize(comp)
		}
		fmt.Fprintf(&b, "### %s\n\n", title)
		docs := byComponent[comp]
		SortByPriority(docs)
		for _, d := range docs {
			b.WriteString(indexLine(d, prefix))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "*Note: This overview is regenerated from the `%s/` directory; edits here are overwritten.*\n", base)
	return b.String()
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// FormatShipFactor renders an optional ship factor for listings.
func FormatShipFactor(m document.Metadata) string {
	if m.ShipFactor == nil {
		return "-"
	}
	return strconv.Itoa(*m.ShipFactor)
}
