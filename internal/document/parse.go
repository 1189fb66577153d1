package document

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/brain/internal/apperr"
)

const delimiter = "---"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Parse splits raw file content into metadata and body. A file that does not
// start with a "---" line has no metadata and is all body. An unterminated
// block, invalid YAML, or a schema key with the wrong type yields an error
// wrapping apperr.ErrMalformedMetadata.
func Parse(raw []byte) (Document, error) {
	block, body, found, err := splitFrontmatter(string(raw))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", apperr.ErrMalformedMetadata, err)
	}
	if !found {
		return Document{Body: string(raw)}, nil
	}

	var meta Metadata
	if err := meta.decode(block); err != nil {
		return Document{}, fmt.Errorf("%w: %v", apperr.ErrMalformedMetadata, err)
	}
	return Document{Meta: meta, Body: body}, nil
}

// splitFrontmatter returns the YAML block between the opening and closing
// delimiter lines and the body after it. One blank separator line after the
// closing delimiter is consumed.
func splitFrontmatter(text string) (block, body string, found bool, err error) {
	text = strings.TrimPrefix(text, "\ufeff")

	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		if strings.TrimRight(text, "\r") == delimiter {
			return "", "", false, errors.New("unterminated frontmatter")
		}
		return "", "", false, nil
	}
	if strings.TrimRight(text[:nl], "\r") != delimiter {
		return "", "", false, nil
	}

	start := nl + 1
	pos := start
	for pos <= len(text) {
		end := strings.IndexByte(text[pos:], '\n')
		var line, rest string
		if end < 0 {
			line = text[pos:]
			rest = ""
		} else {
			line = text[pos : pos+end]
			rest = text[pos+end+1:]
		}
		if strings.TrimRight(line, "\r") == delimiter {
			block = text[start:pos]
			switch {
			case strings.HasPrefix(rest, "\r\n"):
				rest = rest[2:]
			case strings.HasPrefix(rest, "\n"):
				rest = rest[1:]
			}
			return block, rest, true, nil
		}
		if end < 0 {
			break
		}
		pos += end + 1
	}
	return "", "", false, errors.New("unterminated frontmatter: missing closing ---")
}

func (m *Metadata) decode(block string) error {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(block), &root); err != nil {
		return fmt.Errorf("invalid frontmatter YAML: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil
	}
	node := root.Content[0]
	if isNull(node) {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return errors.New("frontmatter is not a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if err := m.set(key, node.Content[i+1]); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}

func (m *Metadata) set(key string, val *yaml.Node) error {
	if isNull(val) && isSchemaKey(key) {
		return nil
	}

	var err error
	switch Field(key) {
	case FieldTitle:
		m.Title, err = decodeString(val)
	case FieldType:
		var s *string
		s, err = decodeString(val)
		if s != nil {
			m.Type = Ptr(Type(*s))
		}
	case FieldSubtype:
		m.Subtype, err = decodeString(val)
	case FieldCategory:
		m.Category, err = decodeString(val)
	case FieldTags:
		m.Tags, err = decodeStrings(val)
	case FieldCreated:
		m.Created, err = decodeTime(val)
	case FieldModified:
		m.Modified, err = decodeTime(val)
	case FieldVersion:
		m.Version, err = decodeScalar[int](val)
	case FieldShipFactor:
		m.ShipFactor, err = decodeScalar[int](val)
	case FieldDeprecated:
		m.Deprecated, err = decodeScalar[bool](val)
	case FieldDeprecatedDate:
		m.DeprecatedDate, err = decodeTime(val)
	case FieldDeprecatedReason:
		m.DeprecatedReason, err = decodeString(val)
	case FieldSupersedes:
		m.Supersedes, err = decodeString(val)
	case FieldReferences:
		m.References, err = decodeStrings(val)
	default:
		var v any
		if err = val.Decode(&v); err == nil {
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[key] = v
		}
	}
	return err
}

func isSchemaKey(key string) bool {
	for _, f := range schemaFields {
		if Field(key) == f {
			return true
		}
	}
	return false
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func decodeString(n *yaml.Node) (*string, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, errors.New("expected a string")
	}
	return Ptr(n.Value), nil
}

func decodeScalar[T any](n *yaml.Node) (*T, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, errors.New("expected a scalar")
	}
	var v T
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeStrings(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, errors.New("expected a list of strings")
			}
			out = append(out, item.Value)
		}
		return out, nil
	}
	return nil, errors.New("expected a list of strings")
}

func decodeTime(n *yaml.Node) (*time.Time, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, errors.New("expected a timestamp")
	}
	t, err := ParseTime(n.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseTime accepts RFC 3339 timestamps as well as the zone-less ISO-8601
// forms older tooling wrote. Zone-less values are read as local time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Serialize renders d as a frontmatter block followed by the body. Keys are
// written in a fixed order with extra keys sorted after the schema keys, so
// output is stable and diff-friendly.
func Serialize(d Document) ([]byte, error) {
	node, err := d.Meta.node()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	if len(node.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(node); err != nil {
			return nil, fmt.Errorf("document: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("document: encode frontmatter: %w", err)
		}
	}
	buf.WriteString(delimiter + "\n\n")
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

func (m Metadata) node() (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(key string, v any) error {
		var vn yaml.Node
		if err := vn.Encode(v); err != nil {
			return fmt.Errorf("document: encode %s: %w", key, err)
		}
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&vn,
		)
		return nil
	}

	type entry struct {
		field Field
		set   bool
		value func() any
	}
	entries := []entry{
		{FieldTitle, m.Title != nil, func() any { return *m.Title }},
		{FieldType, m.Type != nil, func() any { return string(*m.Type) }},
		{FieldSubtype, m.Subtype != nil, func() any { return *m.Subtype }},
		{FieldCategory, m.Category != nil, func() any { return *m.Category }},
		{FieldTags, m.Tags != nil, func() any { return m.Tags }},
		{FieldCreated, m.Created != nil, func() any { return *m.Created }},
		{FieldModified, m.Modified != nil, func() any { return *m.Modified }},
		{FieldVersion, m.Version != nil, func() any { return *m.Version }},
		{FieldShipFactor, m.ShipFactor != nil, func() any { return *m.ShipFactor }},
		{FieldDeprecated, m.Deprecated != nil, func() any { return *m.Deprecated }},
		{FieldDeprecatedDate, m.DeprecatedDate != nil, func() any { return *m.DeprecatedDate }},
		{FieldDeprecatedReason, m.DeprecatedReason != nil, func() any { return *m.DeprecatedReason }},
		{FieldSupersedes, m.Supersedes != nil, func() any { return *m.Supersedes }},
		{FieldReferences, m.References != nil, func() any { return m.References }},
	}
	for _, e := range entries {
		if !e.set {
			continue
		}
		if err := add(string(e.field), e.value()); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := add(k, m.Extra[k]); err != nil {
			return nil, err
		}
	}
	return n, nil
}
