// Package document defines the knowledge base record: a markdown body with a
// YAML frontmatter block of typed metadata.
package document

import (
	"path"
	"strings"
	"time"
)

// Type classifies a document. Unknown values are tolerated and reported as
// warnings by the validator.
type Type string

const (
	TypeKnowledge Type = "knowledge"
	TypeBehavior  Type = "behavior"
	TypeSystem    Type = "system"
	TypeTool      Type = "tool"
	TypeGeneral   Type = "general"
)

// Types lists every known document type.
var Types = []Type{TypeKnowledge, TypeBehavior, TypeSystem, TypeTool, TypeGeneral}

// Known reports whether t is one of Types.
func (t Type) Known() bool {
	for _, k := range Types {
		if t == k {
			return true
		}
	}
	return false
}

// Field names a frontmatter key.
type Field string

const (
	FieldTitle            Field = "title"
	FieldType             Field = "type"
	FieldSubtype          Field = "subtype"
	FieldCategory         Field = "category"
	FieldTags             Field = "tags"
	FieldCreated          Field = "created"
	FieldModified         Field = "modified"
	FieldVersion          Field = "version"
	FieldShipFactor       Field = "ship_factor"
	FieldDeprecated       Field = "deprecated"
	FieldDeprecatedDate   Field = "deprecated_date"
	FieldDeprecatedReason Field = "deprecated_reason"
	FieldSupersedes       Field = "supersedes"
	FieldReferences       Field = "references"
)

// RequiredFields are the keys every document is expected to carry.
var RequiredFields = []Field{
	FieldTitle,
	FieldType,
	FieldSubtype,
	FieldTags,
	FieldCreated,
	FieldModified,
	FieldVersion,
	FieldShipFactor,
	FieldDeprecated,
}

// schemaFields lists every key the typed record knows, in serialization order.
var schemaFields = []Field{
	FieldTitle,
	FieldType,
	FieldSubtype,
	FieldCategory,
	FieldTags,
	FieldCreated,
	FieldModified,
	FieldVersion,
	FieldShipFactor,
	FieldDeprecated,
	FieldDeprecatedDate,
	FieldDeprecatedReason,
	FieldSupersedes,
	FieldReferences,
}

const (
	DefaultShipFactor = 5
	DefaultVersion    = 1
	MinShipFactor     = 1
	MaxShipFactor     = 10
)

// Metadata is the typed frontmatter record. A nil pointer or nil slice means
// the key is absent from the file; an empty, non-nil slice is an explicit
// empty list. Keys outside the schema are kept in Extra.
type Metadata struct {
	Title            *string        `json:"title,omitempty"`
	Type             *Type          `json:"type,omitempty"`
	Subtype          *string        `json:"subtype,omitempty"`
	Category         *string        `json:"category,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Created          *time.Time     `json:"created,omitempty"`
	Modified         *time.Time     `json:"modified,omitempty"`
	Version          *int           `json:"version,omitempty"`
	ShipFactor       *int           `json:"ship_factor,omitempty"`
	Deprecated       *bool          `json:"deprecated,omitempty"`
	DeprecatedDate   *time.Time     `json:"deprecated_date,omitempty"`
	DeprecatedReason *string        `json:"deprecated_reason,omitempty"`
	Supersedes       *string        `json:"supersedes,omitempty"`
	References       []string       `json:"references,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Document is a file in the store: its root-relative path, metadata and body.
type Document struct {
	Path string   `json:"path"`
	Meta Metadata `json:"metadata"`
	Body string   `json:"body"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// Has reports whether the field is present.
func (m Metadata) Has(f Field) bool {
	switch f {
	case FieldTitle:
		return m.Title != nil
	case FieldType:
		return m.Type != nil
	case FieldSubtype:
		return m.Subtype != nil
	case FieldCategory:
		return m.Category != nil
	case FieldTags:
		return m.Tags != nil
	case FieldCreated:
		return m.Created != nil
	case FieldModified:
		return m.Modified != nil
	case FieldVersion:
		return m.Version != nil
	case FieldShipFactor:
		return m.ShipFactor != nil
	case FieldDeprecated:
		return m.Deprecated != nil
	case FieldDeprecatedDate:
		return m.DeprecatedDate != nil
	case FieldDeprecatedReason:
		return m.DeprecatedReason != nil
	case FieldSupersedes:
		return m.Supersedes != nil
	case FieldReferences:
		return m.References != nil
	}
	_, ok := m.Extra[string(f)]
	return ok
}

// IsZero reports whether no frontmatter key at all is present.
func (m Metadata) IsZero() bool {
	for _, f := range schemaFields {
		if m.Has(f) {
			return false
		}
	}
	return len(m.Extra) == 0
}

// Missing returns the required fields that are absent, in RequiredFields order.
func (m Metadata) Missing() []Field {
	var out []Field
	for _, f := range RequiredFields {
		if !m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// FillMissing copies every absent required field from defaults and returns
// the fields it filled.
func (m *Metadata) FillMissing(defaults Metadata) []Field {
	missing := m.Missing()
	for _, f := range missing {
		switch f {
		case FieldTitle:
			m.Title = clonePtr(defaults.Title)
		case FieldType:
			m.Type = clonePtr(defaults.Type)
		case FieldSubtype:
			m.Subtype = clonePtr(defaults.Subtype)
		case FieldTags:
			m.Tags = cloneSlice(defaults.Tags)
		case FieldCreated:
			m.Created = clonePtr(defaults.Created)
		case FieldModified:
			m.Modified = clonePtr(defaults.Modified)
		case FieldVersion:
			m.Version = clonePtr(defaults.Version)
		case FieldShipFactor:
			m.ShipFactor = clonePtr(defaults.ShipFactor)
		case FieldDeprecated:
			m.Deprecated = clonePtr(defaults.Deprecated)
		}
	}
	return missing
}

// Only returns a copy of m that keeps just the given required fields.
func (m Metadata) Only(fields []Field) Metadata {
	var out Metadata
	for _, f := range fields {
		switch f {
		case FieldTitle:
			out.Title = clonePtr(m.Title)
		case FieldType:
			out.Type = clonePtr(m.Type)
		case FieldSubtype:
			out.Subtype = clonePtr(m.Subtype)
		case FieldTags:
			out.Tags = cloneSlice(m.Tags)
		case FieldCreated:
			out.Created = clonePtr(m.Created)
		case FieldModified:
			out.Modified = clonePtr(m.Modified)
		case FieldVersion:
			out.Version = clonePtr(m.Version)
		case FieldShipFactor:
			out.ShipFactor = clonePtr(m.ShipFactor)
		case FieldDeprecated:
			out.Deprecated = clonePtr(m.Deprecated)
		}
	}
	return out
}

// Merge applies patch on top of m. Every field present in patch replaces
// the corresponding field of m; extra keys are merged key by key.
func (m *Metadata) Merge(patch Metadata) {
	if patch.Title != nil {
		m.Title = clonePtr(patch.Title)
	}
	if patch.Type != nil {
		m.Type = clonePtr(patch.Type)
	}
	if patch.Subtype != nil {
		m.Subtype = clonePtr(patch.Subtype)
	}
	if patch.Category != nil {
		m.Category = clonePtr(patch.Category)
	}
	if patch.Tags != nil {
		m.Tags = cloneSlice(patch.Tags)
	}
	if patch.Created != nil {
		m.Created = clonePtr(patch.Created)
	}
	if patch.Modified != nil {
		m.Modified = clonePtr(patch.Modified)
	}
	if patch.Version != nil {
		m.Version = clonePtr(patch.Version)
	}
	if patch.ShipFactor != nil {
		m.ShipFactor = clonePtr(patch.ShipFactor)
	}
	if patch.Deprecated != nil {
		m.Deprecated = clonePtr(patch.Deprecated)
	}
	if patch.DeprecatedDate != nil {
		m.DeprecatedDate = clonePtr(patch.DeprecatedDate)
	}
	if patch.DeprecatedReason != nil {
		m.DeprecatedReason = clonePtr(patch.DeprecatedReason)
	}
	if patch.Supersedes != nil {
		m.Supersedes = clonePtr(patch.Supersedes)
	}
	if patch.References != nil {
		m.References = cloneSlice(patch.References)
	}
	for k, v := range patch.Extra {
		if m.Extra == nil {
			m.Extra = make(map[string]any, len(patch.Extra))
		}
		m.Extra[k] = v
	}
}

// IsDeprecated reports whether the deprecated flag is set.
func (m Metadata) IsDeprecated() bool {
	return m.Deprecated != nil && *m.Deprecated
}

// ShipFactorValue returns the ship factor, or DefaultShipFactor when absent.
func (m Metadata) ShipFactorValue() int {
	if m.ShipFactor == nil {
		return DefaultShipFactor
	}
	return *m.ShipFactor
}

// VersionValue returns the version, or DefaultVersion when absent.
func (m Metadata) VersionValue() int {
	if m.Version == nil {
		return DefaultVersion
	}
	return *m.Version
}

// HasTag reports whether the document carries tag.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DisplayTitle returns the frontmatter title, or the humanized file name when
// the title is absent or blank.
func (d Document) DisplayTitle() string {
	if d.Meta.Title != nil && strings.TrimSpace(*d.Meta.Title) != "" {
		return *d.Meta.Title
	}
	return Humanize(path.Base(d.Path))
}

// TopLevel returns the first path segment, or "" for files at the root.
func TopLevel(p string) string {
	segs := strings.Split(p, "/")
	if len(segs) < 2 {
		return ""
	}
	return segs[0]
}

// Subcategory returns the second path segment, or "" when the file sits
// directly in a top-level directory or at the root.
func Subcategory(p string) string {
	segs := strings.Split(p, "/")
	if len(segs) < 3 {
		return ""
	}
	return segs[1]
}
