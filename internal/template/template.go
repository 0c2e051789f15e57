// Package template splits secret name templates into literal and placeholder
// segments and substitutes caller supplied values into them.
//
// A placeholder is a '$' followed by the longest run of characters from
// [A-Za-z0-9._-]. A '$' that is not followed by such a character is kept as a
// literal dollar sign.
package template

import (
	"fmt"
	"strings"
)

// SegmentKind distinguishes literal text from placeholders.
type SegmentKind int

const (
	Literal SegmentKind = iota
	Placeholder
)

// Segment is one piece of a template. For Literal segments Value holds the
// text; for Placeholder segments it holds the placeholder name.
type Segment struct {
	Kind  SegmentKind
	Value string
}

// Template is a pre-split secret name template.
type Template struct {
	Segments []Segment
}

// UnresolvedError reports a placeholder with no supplied value.
type UnresolvedError struct {
	Name string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholder $%s", e.Name)
}

// IsNameChar reports whether c may appear in a placeholder name.
func IsNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '.' || c == '_' || c == '-'
}

// Parse splits raw into segments. Adjacent literal text is merged into a
// single segment.
func Parse(raw string) Template {
	var t Template
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.Segments = append(t.Segments, Segment{Kind: Literal, Value: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); {
		if raw[i] != '$' {
			lit.WriteByte(raw[i])
			i++
			continue
		}
		j := i + 1
		for j < len(raw) && IsNameChar(raw[j]) {
			j++
		}
		if j == i+1 {
			lit.WriteByte('$')
			i++
			continue
		}
		flush()
		t.Segments = append(t.Segments, Segment{Kind: Placeholder, Value: raw[i+1 : j]})
		i = j
	}
	flush()
	return t
}

// Substitute replaces every placeholder with its value. The first placeholder
// missing from values yields an *UnresolvedError.
func (t Template) Substitute(values map[string]string) (string, error) {
	var b strings.Builder
	for _, s := range t.Segments {
		if s.Kind == Literal {
			b.WriteString(s.Value)
			continue
		}
		v, ok := values[s.Value]
		if !ok {
			return "", &UnresolvedError{Name: s.Value}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Names returns the placeholder names in order of first appearance.
func (t Template) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, s := range t.Segments {
		if s.Kind == Placeholder && !seen[s.Value] {
			seen[s.Value] = true
			names = append(names, s.Value)
		}
	}
	return names
}

// HasPlaceholders reports whether the template needs substitution.
func (t Template) HasPlaceholders() bool {
	for _, s := range t.Segments {
		if s.Kind == Placeholder {
			return true
		}
	}
	return false
}

// String reproduces the raw template text.
func (t Template) String() string {
	var b strings.Builder
	for _, s := range t.Segments {
		if s.Kind == Placeholder {
			b.WriteByte('$')
		}
		b.WriteString(s.Value)
	}
	return b.String()
}
