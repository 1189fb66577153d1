package mcpserver

// SchemaURI identifies the frontmatter schema resource.
const SchemaURI = "brain://frontmatter-schema"

// FrontmatterSchema describes the metadata every knowledge base document
// carries. LLM consumers should read it before creating or updating documents.
const FrontmatterSchema = `# Frontmatter Schema

Every document is a Markdown file that starts with a YAML frontmatter block.

## Structure

` + "```" + `markdown
---
title: Use Redis for caching        # REQUIRED - display name
type: knowledge                     # REQUIRED - knowledge | behavior | system | tool | general
subtype: decisions                  # REQUIRED - free-form, usually the parent directory
tags: [cache, redis]                # REQUIRED - may be empty
created: 2026-01-15T09:01:30Z       # REQUIRED - RFC 3339
modified: 2026-01-15T09:01:30Z      # REQUIRED - RFC 3339, bumped on every update
version: 1                          # REQUIRED - starts at 1, +1 on every update
ship_factor: 7                      # REQUIRED - priority from 1 (low) to 10 (critical)
deprecated: false                   # REQUIRED
deprecated_date: 2026-02-01T00:00:00Z  # when deprecated
deprecated_reason: Replaced by X       # when deprecated
supersedes: knowledge/decisions/old.md # optional
references: [systems/cache.md]         # optional, root-relative paths
category: knowledge                    # optional, overrides the top-level directory
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. The ` + "`---`" + ` fences must be the first line of the file.
2. ` + "`ship_factor`" + ` outside 1..10 and ` + "`version`" + ` below 1 are errors.
3. Documents with ` + "`ship_factor`" + ` 8 or higher are high priority.
4. Deprecated documents are kept. They stay readable and are marked in the index.
5. Never edit ` + "`version`" + `, ` + "`created`" + ` or ` + "`modified`" + ` by hand; the update tool maintains them.
6. New documents are stored at ` + "`<category or type>/<subtype>/<slug>.md`" + `.
7. Keys outside the schema are preserved as-is.
`
