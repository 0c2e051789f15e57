// Package dotenv parses annotated env files.
//
// An annotated env file is a dotenv style file in which a key/value pair may be
// preceded by a directive comment naming a secret to fetch for that key:
//
//	# @aws-sm $environment/db-url
//	DATABASE_URL=postgres://localhost/dev
//
//	# @aws-ps /app/$environment/token @optional
//	export API_TOKEN='local-token'
//
// Comments whose first non-blank character after '#' is not '@' are ignored.
package dotenv

import (
	"fmt"
	"os"

	"github.com/systmms/awsmenv/internal/template"
	"github.com/systmms/awsmenv/pkg/provider"
)

// DefaultFile is the conventional name of the annotated env file.
const DefaultFile = ".env.example"

// Directive is a parsed '#@tag name [@optional]' line.
type Directive struct {
	Kind     provider.Kind
	Name     template.Template
	Optional bool
	Line     int
}

// Declaration is an optional directive plus exactly one key/value pair.
// RawValue is already unescaped according to its quoting form.
type Declaration struct {
	Directive *Directive
	Key       string
	RawValue  string
	Line      int
}

// Duplicate records a key declared more than once.
type Duplicate struct {
	Key       string
	FirstLine int
	Line      int
}

// Document is the result of parsing one file. Declarations are unique by key:
// a repeated key keeps the position of its first declaration and takes the
// content of its last one.
type Document struct {
	Declarations []Declaration
	Duplicates   []Duplicate
}

// ParseError reports malformed input with a 1-based position.
type ParseError struct {
	Line   int
	Column int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Reason)
}

// ParseFile reads and parses the file at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// Parse parses an annotated env file.
func Parse(input []byte) (*Document, error) {
	p := &parser{lines: splitLines(string(input))}
	return p.parse()
}
