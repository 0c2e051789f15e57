package resolve

import (
	"errors"

	"github.com/systmms/awsmenv/internal/dotenv"
	"github.com/systmms/awsmenv/internal/template"
	"github.com/systmms/awsmenv/pkg/provider"
)

// PlannedEntry describes how one key would be resolved, without fetching.
type PlannedEntry struct {
	Key        string
	Line       int
	Kind       provider.Kind // zero for plain declarations
	Resource   string        // substituted secret name
	Optional   bool
	HasDefault bool
	Override   bool
	Error      error
}

// Source returns the expected value source ignoring fetch outcomes.
func (p PlannedEntry) Source() Source {
	switch {
	case p.Override:
		return SourceOverride
	case p.Kind != 0:
		return SourceSecret
	default:
		return SourceDefault
	}
}

// PlanResult lists every key with its planned source. Errors collects every
// unresolved placeholder rather than only the first.
type PlanResult struct {
	Entries []PlannedEntry
	Errors  []error
}

// Err joins all plan errors.
func (p *PlanResult) Err() error {
	return errors.Join(p.Errors...)
}

// Plan shows what would be fetched without calling any provider.
func (r *Resolver) Plan(decls []dotenv.Declaration, params Params) *PlanResult {
	decls = unique(decls)
	result := &PlanResult{Entries: make([]PlannedEntry, 0, len(decls))}

	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.Key] = true

		planned := PlannedEntry{
			Key:        d.Key,
			Line:       d.Line,
			HasDefault: params.UseDefaults && hasDefault(d),
			Override:   params.Overrides.Has(d.Key),
		}

		if d.Directive != nil {
			planned.Kind = d.Directive.Kind
			planned.Optional = d.Directive.Optional
			planned.HasDefault = params.UseDefaults && d.Directive.Optional && hasDefault(d)
			resource, err := substituteName(d, params.Placeholders)
			if err != nil {
				planned.Error = err
				result.Errors = append(result.Errors, err)
			}
			planned.Resource = resource
		}

		if planned.Kind == 0 && !planned.HasDefault && !planned.Override {
			continue
		}
		result.Entries = append(result.Entries, planned)
	}

	params.Overrides.Each(func(key, _ string) {
		if !declared[key] {
			result.Entries = append(result.Entries, PlannedEntry{Key: key, Override: true})
		}
	})

	r.logger.Debug("Planned %d entries", len(result.Entries))
	return result
}

func substituteName(d dotenv.Declaration, placeholders map[string]string) (string, error) {
	if !d.Directive.Name.HasPlaceholders() {
		return d.Directive.Name.String(), nil
	}
	resource, err := d.Directive.Name.Substitute(placeholders)
	if err != nil {
		var unresolved *template.UnresolvedError
		if errors.As(err, &unresolved) {
			return "", &PlaceholderError{Key: d.Key, Line: d.Directive.Line, Err: unresolved}
		}
		return "", err
	}
	return resource, nil
}
