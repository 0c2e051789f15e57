package resolve

import (
	"fmt"

	"github.com/systmms/awsmenv/internal/template"
	"github.com/systmms/awsmenv/pkg/provider"
)

// PlaceholderError reports a directive whose secret name references a
// placeholder that was not supplied. It is detected before any fetch.
type PlaceholderError struct {
	Key  string
	Line int
	Err  *template.UnresolvedError
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("%s (line %d): %v", e.Key, e.Line, e.Err)
}

func (e *PlaceholderError) Unwrap() error { return e.Err }

// MissingSecretError reports a required secret that does not exist.
type MissingSecretError struct {
	Key      string
	Kind     provider.Kind
	Resource string
	Err      error
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("required secret %q for %s not found in %s", e.Resource, e.Key, e.Kind)
}

func (e *MissingSecretError) Unwrap() error { return e.Err }

// ProviderError reports any provider failure other than a missing secret.
// It is fatal even for optional directives.
type ProviderError struct {
	Key      string
	Kind     provider.Kind
	Resource string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("failed to fetch %q for %s from %s: %v", e.Resource, e.Key, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
