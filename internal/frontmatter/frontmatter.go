// Package frontmatter parses and serializes the YAML frontmatter block of a
// markdown document.
//
// The value model is a tagged union (scalar, list, nested mapping) with an
// ordered Mapping, so the round-trip law — Parse(Stringify(fm, body))
// reproduces fm exactly and body up to leading-blank trim — holds for every
// well-formed input. Parsing goes through the yaml.v3 node API to preserve
// key order; serialization is a deterministic block-style writer.
package frontmatter

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind discriminates the Value union.
type Kind uint8

// Value kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNull
	KindList
	KindMapping
)

// Value is a single frontmatter value: a scalar, a list, or a nested mapping.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	List  []Value
	Map   *Mapping

	// literal marks strings parsed from a block scalar (|) so they render
	// back in the same style.
	literal bool
}

// String creates a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int creates an integer Value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float creates a float Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Null creates a null Value.
func Null() Value { return Value{Kind: KindNull} }

// List creates a list Value.
func List(items ...Value) Value { return Value{Kind: KindList, List: items} }

// Map creates a nested-mapping Value.
func Map(m *Mapping) Value { return Value{Kind: KindMapping, Map: m} }

// AsString renders a scalar Value as its string form. Lists and mappings
// return the empty string.
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNull:
		return "null"
	}
	return ""
}

// Equal reports deep equality of two values. Rendering style (block vs
// plain string) is ignored.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindBool:
		return v.Bool == o.Bool
	case KindNull:
		return true
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return v.Map.Equal(o.Map)
	}
	return false
}

// Mapping is an ordered key → Value map. Keys keep insertion order so that
// serialization never reorders a file a human laid out.
type Mapping struct {
	keys []string
	vals map[string]Value
}

// NewMapping creates an empty ordered mapping.
func NewMapping() *Mapping {
	return &Mapping{vals: make(map[string]Value)}
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value for key.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set adds or replaces key. New keys append to the order.
func (m *Mapping) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// GetString returns the string scalar for key.
func (m *Mapping) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// GetStringList returns the value for key rendered as a string slice.
// A scalar value is returned as a one-element slice; this keeps the
// list-vs-scalar coercion in one visible place.
func (m *Mapping) GetStringList(key string) ([]string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	switch v.Kind {
	case KindList:
		out := make([]string, 0, len(v.List))
		for _, item := range v.List {
			out = append(out, item.AsString())
		}
		return out, true
	case KindMapping:
		return nil, false
	default:
		return []string{v.AsString()}, true
	}
}

// AppendUnique appends item to the string list at key, creating the list if
// absent and promoting an existing scalar to a one-element list first.
// Returns false when item is already present (idempotent add).
func (m *Mapping) AppendUnique(key, item string) bool {
	v, ok := m.Get(key)
	switch {
	case !ok:
		m.Set(key, List(String(item)))
		return true
	case v.Kind == KindList:
		for _, existing := range v.List {
			if existing.AsString() == item {
				return false
			}
		}
		v.List = append(v.List, String(item))
		m.Set(key, v)
		return true
	default:
		if v.AsString() == item {
			return false
		}
		m.Set(key, List(v, String(item)))
		return true
	}
}

// Equal reports deep equality including key order.
func (m *Mapping) Equal(o *Mapping) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, k := range m.keys {
		if o.keys[i] != k {
			return false
		}
		if !m.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// Doc is a markdown document split into frontmatter and body.
type Doc struct {
	Frontmatter *Mapping
	Body        string
}

// Parse splits text into frontmatter and body. The frontmatter block is
// delimited by the first two lines consisting solely of "---"; later "---"
// lines in the body are never treated as delimiters. Both \n and \r\n line
// endings are accepted.
//
// A malformed YAML block is non-fatal: the returned Doc has an empty
// mapping and the correctly-located body (recovered from the delimiter
// positions), alongside the parse error.
func Parse(text string) (*Doc, error) {
	block, body, found := split(text)
	if !found {
		return &Doc{Frontmatter: NewMapping(), Body: text}, nil
	}

	body = strings.TrimLeft(body, "\r\n")

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(block), &node); err != nil {
		return &Doc{Frontmatter: NewMapping(), Body: body}, fmt.Errorf("frontmatter: %w", err)
	}

	fm, err := mappingFromNode(&node)
	if err != nil {
		return &Doc{Frontmatter: NewMapping(), Body: body}, fmt.Errorf("frontmatter: %w", err)
	}
	return &Doc{Frontmatter: fm, Body: body}, nil
}

// split locates the frontmatter delimiters. It returns the raw YAML block,
// the body text after the closing delimiter line, and whether a complete
// block was found.
func split(text string) (block, body string, found bool) {
	first, rest, ok := nextLine(text)
	if !ok || strings.TrimSuffix(first, "\r") != "---" {
		return "", "", false
	}

	blockStart := rest
	for rest != "" {
		var line string
		line, next, _ := nextLine(rest)
		if strings.TrimSuffix(line, "\r") == "---" {
			return blockStart[:len(blockStart)-len(rest)], next, true
		}
		rest = next
	}
	return "", "", false
}

// nextLine cuts text at the first newline. The returned line excludes the
// terminator; rest is everything after it.
func nextLine(text string) (line, rest string, ok bool) {
	if text == "" {
		return "", "", false
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i], text[i+1:], true
	}
	return text, "", true
}

func mappingFromNode(node *yaml.Node) (*Mapping, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return NewMapping(), nil
		}
		node = node.Content[0]
	}
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return NewMapping(), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping, got %s", nodeKindName(node.Kind))
	}

	m := NewMapping()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: non-scalar key", keyNode.Line)
		}
		v, err := valueFromNode(valNode)
		if err != nil {
			return nil, err
		}
		m.Set(keyNode.Value, v)
	}
	return m, nil
}

func valueFromNode(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarFromNode(node), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := valueFromNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{Kind: KindList, List: items}, nil
	case yaml.MappingNode:
		m, err := mappingFromNode(node)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindMapping, Map: m}, nil
	case yaml.AliasNode:
		return Value{}, fmt.Errorf("line %d: aliases are not supported", node.Line)
	}
	return Value{}, fmt.Errorf("line %d: unsupported node", node.Line)
}

func scalarFromNode(node *yaml.Node) Value {
	switch node.Tag {
	case "!!null":
		return Null()
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err == nil {
			return Bool(b)
		}
	case "!!int":
		if i, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
			return Int(i)
		}
	case "!!float":
		if f, err := strconv.ParseFloat(node.Value, 64); err == nil {
			return Float(f)
		}
	}
	v := String(node.Value)
	v.literal = node.Style == yaml.LiteralStyle
	return v
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	}
	return "document"
}

// Stringify is the inverse of Parse. An empty mapping produces a body-only
// file with no "---" markers.
func Stringify(fm *Mapping, body string) string {
	if fm.Len() == 0 {
		return body
	}

	var b strings.Builder
	b.WriteString("---\n")
	writeMapping(&b, fm, 0)
	b.WriteString("---\n")
	b.WriteString(body)
	return b.String()
}

func writeMapping(b *strings.Builder, m *Mapping, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, key := range m.keys {
		v := m.vals[key]
		b.WriteString(pad)
		b.WriteString(renderKey(key))
		b.WriteString(":")
		writeValue(b, v, indent)
	}
}

// writeValue writes the value for a "key:" already emitted at indent.
func writeValue(b *strings.Builder, v Value, indent int) {
	switch v.Kind {
	case KindList:
		if len(v.List) == 0 {
			b.WriteString(" []\n")
			return
		}
		b.WriteString("\n")
		pad := strings.Repeat(" ", indent+2)
		for _, item := range v.List {
			b.WriteString(pad)
			b.WriteString("-")
			writeListItem(b, item, indent+2)
		}
	case KindMapping:
		if v.Map.Len() == 0 {
			b.WriteString(" {}\n")
			return
		}
		b.WriteString("\n")
		writeMapping(b, v.Map, indent+2)
	case KindString:
		if strings.Contains(v.Str, "\n") || v.literal {
			writeLiteralBlock(b, v.Str, indent+2)
			return
		}
		b.WriteString(" ")
		b.WriteString(renderScalar(v))
		b.WriteString("\n")
	default:
		b.WriteString(" ")
		b.WriteString(renderScalar(v))
		b.WriteString("\n")
	}
}

// writeListItem writes one list entry whose "-" was already emitted.
func writeListItem(b *strings.Builder, item Value, indent int) {
	switch item.Kind {
	case KindList, KindMapping:
		b.WriteString("\n")
		if item.Kind == KindMapping {
			writeMapping(b, item.Map, indent+2)
		} else {
			nested := strings.Repeat(" ", indent+2)
			for _, sub := range item.List {
				b.WriteString(nested)
				b.WriteString("-")
				writeListItem(b, sub, indent+2)
			}
		}
	case KindString:
		if strings.Contains(item.Str, "\n") || item.literal {
			writeLiteralBlock(b, item.Str, indent+2)
			return
		}
		b.WriteString(" ")
		b.WriteString(renderScalar(item))
		b.WriteString("\n")
	default:
		b.WriteString(" ")
		b.WriteString(renderScalar(item))
		b.WriteString("\n")
	}
}

// writeLiteralBlock renders a multi-line string as a YAML block scalar with
// the chomp indicator matching its trailing newlines.
func writeLiteralBlock(b *strings.Builder, s string, indent int) {
	trimmed := strings.TrimRight(s, "\n")
	switch strings.Count(s[len(trimmed):], "\n") {
	case 0:
		b.WriteString(" |-\n")
	case 1:
		b.WriteString(" |\n")
	default:
		b.WriteString(" |+\n")
	}
	pad := strings.Repeat(" ", indent)
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for _, line := range lines {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(pad)
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func renderScalar(v Value) string {
	if v.Kind == KindString {
		if needsQuote(v.Str) {
			return strconv.Quote(v.Str)
		}
		return v.Str
	}
	return v.AsString()
}

func renderKey(key string) string {
	if needsQuote(key) {
		return strconv.Quote(key)
	}
	return key
}

// needsQuote reports whether a plain-style string would re-parse as a
// different type or break the YAML grammar.
func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no", "on", "off", "null", "~":
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	if s != strings.TrimSpace(s) {
		return true
	}
	switch s[0] {
	case '-', '?', ':', ',', '[', ']', '{', '}', '#', '&', '*', '!', '|', '>', '\'', '"', '%', '@', '`':
		return true
	}
	if strings.Contains(s, ": ") || strings.HasSuffix(s, ":") {
		return true
	}
	if strings.Contains(s, " #") || strings.Contains(s, "\n") || strings.Contains(s, "\t") {
		return true
	}
	return false
}
