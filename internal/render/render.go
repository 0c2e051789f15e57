// Package render serializes resolved entries into env, shell, json or yaml
// text. Every value is rendered as a string; order is preserved.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/systmms/awsmenv/internal/envmap"
)

// Format is an output encoding.
type Format string

const (
	FormatEnv   Format = "env"
	FormatShell Format = "shell"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatEnv, FormatShell, FormatJSON, FormatYAML}
}

// ParseFormat validates a format name. The empty string selects env.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatEnv, nil
	case "dotenv":
		return FormatEnv, nil
	case "sh", "export":
		return FormatShell, nil
	case FormatEnv, FormatShell, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q (use %s)", s, FormatList())
}

// FormatList returns the supported format names for help and error text.
func FormatList() string {
	names := make([]string, 0, len(Formats()))
	for _, f := range Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// Render serializes entries in the given format. Unknown formats render as
// env.
func Render(entries *envmap.Map, format Format) string {
	switch format {
	case FormatShell:
		return lines(entries, "export ", shellQuote)
	case FormatJSON:
		return renderJSON(entries)
	case FormatYAML:
		return renderYAML(entries)
	default:
		return lines(entries, "", Quote)
	}
}

func lines(entries *envmap.Map, prefix string, quote func(string) string) string {
	var b strings.Builder
	entries.Each(func(k, v string) {
		b.WriteString(prefix)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quote(v))
		b.WriteByte('\n')
	})
	return b.String()
}

func renderJSON(entries *envmap.Map) string {
	var b strings.Builder
	b.WriteByte('{')
	i := 0
	entries.Each(func(k, v string) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Quote(k))
		b.WriteByte(':')
		b.WriteString(Quote(v))
		i++
	})
	b.WriteString("}\n")
	return b.String()
}

func renderYAML(entries *envmap.Map) string {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	entries.Each(func(k, v string) {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle},
		)
	})
	if len(doc.Content) == 0 {
		return "{}\n"
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		// JSON is valid YAML.
		return renderJSON(entries)
	}
	_ = enc.Close()
	return buf.String()
}

// shellQuote is Quote with '$' and '`' also escaped, so a shell evaluating
// the output never expands or executes anything inside a value.
func shellQuote(s string) string {
	return shellEscaper.Replace(Quote(s))
}

var shellEscaper = strings.NewReplacer("$", `\$`, "`", "\\`")

// Quote returns s as a double quoted JSON string. '"' and '\' are escaped,
// as are control characters; HTML characters are left alone.
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
