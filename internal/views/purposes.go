package views

import (
	"path"
	"strings"
)

// DirectoryPurposes describes well-known top-level directories. Extend the
// table to describe new directories.
var DirectoryPurposes = map[string]string{
	"ai":             "AI system components, prompts, and configurations",
	"behaviors":      "Personas and interaction modes",
	"knowledge":      "Knowledge base with decisions, lessons, and references",
	"systems":        "System definitions, workflows, and rules",
	"tools":          "Tool configurations and integrations",
	"infrastructure": "Infrastructure definitions and server configurations",
	"commands":       "Command definitions and shortcuts",
	"docs":           "Documentation and guides",
	"scripts":        "Automation and utility scripts",
	"utils":          "Utility functions and helpers",
}

// InfrastructurePurposes describes well-known infrastructure subdirectories.
var InfrastructurePurposes = map[string]string{
	"servers":    "Server configurations",
	"databases":  "Database configurations",
	"local":      "Local development tools",
	"docker":     "Docker configurations",
	"networking": "Network configurations",
}

// FilePurposes describes files by extension.
var FilePurposes = map[string]string{
	".md":   "Documentation",
	".yml":  "Configuration",
	".yaml": "Configuration",
	".json": "Configuration",
	".toml": "Configuration",
	".sh":   "Script",
	".py":   "Script",
}

// DirectoryPurpose returns the table entry for a top-level directory, or a
// generic description.
func DirectoryPurpose(name string) string {
	if p, ok := DirectoryPurposes[strings.ToLower(name)]; ok {
		return p
	}
	return "Contains " + name + "-related files"
}

// InfrastructurePurpose returns the table entry for an infrastructure
// subdirectory, or a generic description.
func InfrastructurePurpose(name string) string {
	if p, ok := InfrastructurePurposes[strings.ToLower(name)]; ok {
		return p
	}
	return name + " configurations"
}

// FilePurpose describes a file by its extension.
func FilePurpose(name string) string {
	if p, ok := FilePurposes[strings.ToLower(path.Ext(name))]; ok {
		return p
	}
	return "Configuration file"
}

// ReadmePurpose extracts a one-line description from the first lines of a
// README: the first line that is not a heading and is longer than ten
// characters. It returns "" when nothing qualifies.
func ReadmePurpose(readme string) string {
	lines := strings.Split(readme, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || line == "---" {
			continue
		}
		if len(line) > 10 {
			return line
		}
	}
	return ""
}
