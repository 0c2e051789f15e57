package dotenv

import (
	"strings"

	"github.com/systmms/awsmenv/internal/template"
	"github.com/systmms/awsmenv/pkg/provider"
)

const optionalMarker = "@optional"

type parser struct {
	lines []string
}

// cursor walks a single line.
type cursor struct {
	text string
	pos  int
	line int
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (p *parser) parse() (*Document, error) {
	doc := &Document{}
	index := make(map[string]int)

	var pending *Directive
	for i, text := range p.lines {
		c := &cursor{text: text, line: i + 1}
		c.skipSpace()

		if c.eof() {
			continue
		}

		if c.peek() == '#' {
			c.pos++
			c.skipSpace()
			if c.eof() || c.peek() != '@' {
				continue
			}
			if pending != nil {
				return nil, &ParseError{
					Line:   pending.Line,
					Column: 1,
					Reason: "directive not followed by a key/value pair",
				}
			}
			d, err := c.directive()
			if err != nil {
				return nil, err
			}
			pending = d
			continue
		}

		decl, err := c.pair()
		if err != nil {
			return nil, err
		}
		decl.Directive = pending
		pending = nil

		if at, ok := index[decl.Key]; ok {
			doc.Duplicates = append(doc.Duplicates, Duplicate{
				Key:       decl.Key,
				FirstLine: doc.Declarations[at].Line,
				Line:      decl.Line,
			})
			doc.Declarations[at] = decl
			continue
		}
		index[decl.Key] = len(doc.Declarations)
		doc.Declarations = append(doc.Declarations, decl)
	}

	if pending != nil {
		return nil, &ParseError{
			Line:   pending.Line,
			Column: 1,
			Reason: "directive not followed by a key/value pair",
		}
	}
	return doc, nil
}

func (c *cursor) eof() bool { return c.pos >= len(c.text) }

func (c *cursor) peek() byte { return c.text[c.pos] }

func (c *cursor) skipSpace() int {
	start := c.pos
	for !c.eof() && isSpace(c.peek()) {
		c.pos++
	}
	return c.pos - start
}

func (c *cursor) errorf(reason string) *ParseError {
	return &ParseError{Line: c.line, Column: c.pos + 1, Reason: reason}
}

// directive parses '@tag WS* template (WS+ @optional)? WS*' starting at '@'.
func (c *cursor) directive() (*Directive, error) {
	c.pos++ // '@'
	start := c.pos
	for !c.eof() && isTagChar(c.peek()) {
		c.pos++
	}
	tag := c.text[start:c.pos]
	if tag == "" {
		return nil, c.errorf("malformed directive tag")
	}
	kind, err := provider.ParseKind(tag)
	if err != nil {
		return nil, &ParseError{Line: c.line, Column: start, Reason: err.Error()}
	}

	// The tag run stops at the first non-tag character, so whitespace before
	// the name is optional.
	c.skipSpace()
	if c.eof() {
		return nil, c.errorf("missing secret name after @" + tag)
	}

	start = c.pos
	for !c.eof() && isTemplateChar(c.peek()) {
		c.pos++
	}
	name := c.text[start:c.pos]
	if name == "" {
		return nil, c.errorf("illegal character in secret name")
	}

	d := &Directive{Kind: kind, Name: template.Parse(name), Line: c.line}

	if c.eof() {
		return d, nil
	}
	if c.skipSpace() == 0 {
		return nil, c.errorf("illegal character in secret name")
	}
	if strings.HasPrefix(c.text[c.pos:], optionalMarker) {
		c.pos += len(optionalMarker)
		if !c.eof() && !isSpace(c.peek()) {
			return nil, c.errorf("unexpected text after directive")
		}
		d.Optional = true
		c.skipSpace()
	}
	if !c.eof() {
		return nil, c.errorf("unexpected text after directive")
	}
	return d, nil
}

// pair parses 'export? key (=|:) value'.
func (c *cursor) pair() (Declaration, error) {
	if strings.HasPrefix(c.text[c.pos:], "export") {
		save := c.pos
		c.pos += len("export")
		if c.skipSpace() == 0 || c.eof() || !isKeyChar(c.peek()) {
			c.pos = save
		}
	}

	start := c.pos
	for !c.eof() && isKeyChar(c.peek()) {
		c.pos++
	}
	key := c.text[start:c.pos]
	if key == "" {
		return Declaration{}, c.errorf("invalid character in key")
	}

	c.skipSpace()
	if c.eof() {
		return Declaration{}, c.errorf("expected '=' or ':' after key " + key)
	}
	if ch := c.peek(); ch != '=' && ch != ':' {
		if isSpace(c.text[c.pos-1]) {
			return Declaration{}, c.errorf("expected '=' or ':' after key " + key)
		}
		return Declaration{}, c.errorf("invalid character in key")
	}
	c.pos++
	c.skipSpace()

	value, err := c.value()
	if err != nil {
		return Declaration{}, err
	}
	return Declaration{Key: key, RawValue: value, Line: c.line}, nil
}

func (c *cursor) value() (string, error) {
	if c.eof() {
		return "", nil
	}
	switch q := c.peek(); q {
	case '"', '\'', '`':
		return c.quoted(q)
	default:
		return c.raw(), nil
	}
}

// raw returns everything up to an inline comment or the end of the line.
// Trailing whitespace is kept.
func (c *cursor) raw() string {
	rest := c.text[c.pos:]
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	c.pos += len(rest)
	return rest
}

// quoted reads a value enclosed in q. Only an escaped q is unescaped.
func (c *cursor) quoted(q byte) (string, error) {
	open := c.pos
	c.pos++

	var b strings.Builder
	for {
		if c.eof() {
			return "", &ParseError{Line: c.line, Column: open + 1, Reason: "unterminated quoted value"}
		}
		ch := c.peek()
		if ch == '\\' && c.pos+1 < len(c.text) && c.text[c.pos+1] == q {
			b.WriteByte(q)
			c.pos += 2
			continue
		}
		c.pos++
		if ch == q {
			break
		}
		b.WriteByte(ch)
	}

	c.skipSpace()
	if !c.eof() && c.peek() != '#' {
		return "", c.errorf("unexpected text after quoted value")
	}
	return b.String(), nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isKeyChar(c byte) bool {
	return isAlnum(c) || c == '.' || c == '_' || c == '-'
}

func isTagChar(c byte) bool {
	return isAlnum(c) || c == '-'
}

func isTemplateChar(c byte) bool {
	switch c {
	case '/', '_', '+', '=', '.', '@', '-', '$':
		return true
	}
	return isAlnum(c)
}
