// Package testutil provides testing utilities for awsm-env.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/systmms/awsmenv/internal/config"
)

// WriteSpec writes an annotated env file to a temporary directory and
// returns its path. Leading newlines are trimmed so specs can be written as
// indented raw strings.
//
// Example:
//
//	path := WriteSpec(t, `
//	# @aws-sm $environment/db-url
//	DATABASE_URL=postgres://localhost/dev
//	`)
func WriteSpec(t *testing.T, content string) string {
	t.Helper()
	return writeFile(t, ".env.example", dedent(content))
}

// WriteConfig writes a configuration file and returns its path.
func WriteConfig(t *testing.T, yamlContent string) string {
	t.Helper()
	return writeFile(t, config.DefaultPath, dedent(yamlContent))
}

// LoadConfig parses the configuration at path or fails the test.
func LoadConfig(t *testing.T, path string) *config.Definition {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	def, err := config.Parse(data)
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	return def
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// dedent strips the common leading tab indentation of raw string fixtures.
func dedent(s string) string {
	s = strings.TrimLeft(s, "\n")
	lines := strings.Split(s, "\n")

	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, "\t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return s
	}

	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, "\t")
		}
	}
	return strings.Join(lines, "\n")
}
