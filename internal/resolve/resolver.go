// Package resolve turns parsed declarations, fetched secrets, placeholders and
// overrides into one ordered result.
package resolve

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/systmms/awsmenv/internal/dotenv"
	"github.com/systmms/awsmenv/internal/envmap"
	"github.com/systmms/awsmenv/internal/logging"
	"github.com/systmms/awsmenv/internal/metrics"
	"github.com/systmms/awsmenv/internal/secure"
	"github.com/systmms/awsmenv/pkg/provider"
)

// DefaultConcurrency caps the number of in-flight fetches.
const DefaultConcurrency = 10

// Params are the caller supplied inputs of one run. They are read, never
// modified.
type Params struct {
	// Placeholders fill $name markers in secret names.
	Placeholders map[string]string
	// Overrides always win, in the order supplied.
	Overrides *envmap.Map
	// UseDefaults emits file values for keys without a fetched secret.
	UseDefaults bool
}

// Resolver runs the resolution pipeline. It holds no per-run state and may be
// reused.
type Resolver struct {
	logger      *logging.Logger
	concurrency int
	timeout     time.Duration
	metrics     *metrics.Recorder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency sets the maximum number of concurrent fetches.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimeout sets the per-fetch timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithMetrics records fetch outcomes and result sources.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New creates a new resolver instance
func New(logger *logging.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Resolver{
		logger:      logger,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// job is one directive to fetch, tied to its declaration slot.
type job struct {
	slot     int
	decl     dotenv.Declaration
	resource string
}

// candidate is the declaration derived value of one slot.
type candidate struct {
	present bool
	source  Source
	plain   string
	sealed  *secure.Sealed
}

// Resolve computes the ordered result for decls. It returns either a complete
// result or the first fatal error.
//
// All secret names are substituted before any fetch, so a missing placeholder
// never reaches a provider. Overridden keys are not fetched. Fetches run
// concurrently; the first fatal error cancels the rest.
func (r *Resolver) Resolve(ctx context.Context, decls []dotenv.Declaration, fetcher provider.Fetcher, params Params) (*Result, error) {
	decls = unique(decls)

	jobs, err := r.substitute(decls, params.Placeholders)
	if err != nil {
		return nil, err
	}
	jobs = r.skipOverridden(jobs, params.Overrides)

	slots := make([]candidate, len(decls))
	for i, d := range decls {
		if d.Directive == nil && params.UseDefaults && hasDefault(d) {
			slots[i] = candidate{present: true, source: SourceDefault, plain: d.RawValue}
		}
	}

	defer func() {
		for _, c := range slots {
			if c.sealed != nil {
				c.sealed.Destroy()
			}
		}
	}()

	if len(jobs) > 0 {
		r.logger.Debug("Fetching %d secrets (concurrency %d)", len(jobs), r.concurrency)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := r.fetch(gctx, fetcher, j, params.UseDefaults)
			if err != nil {
				return err
			}
			slots[j.slot] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return r.assemble(decls, slots, params.Overrides)
}

// substitute builds the fetch jobs, failing on the first unresolved
// placeholder in declaration order.
func (r *Resolver) substitute(decls []dotenv.Declaration, placeholders map[string]string) ([]job, error) {
	var jobs []job
	for i, d := range decls {
		if d.Directive == nil {
			continue
		}
		resource, err := substituteName(d, placeholders)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job{slot: i, decl: d, resource: resource})
	}
	return jobs, nil
}

// skipOverridden drops jobs whose key is overridden; their value is already
// known.
func (r *Resolver) skipOverridden(jobs []job, overrides *envmap.Map) []job {
	if overrides.Len() == 0 {
		return jobs
	}
	kept := jobs[:0]
	for _, j := range jobs {
		if overrides.Has(j.decl.Key) {
			r.logger.Debug("Skipping fetch of %s for %s: overridden", j.resource, j.decl.Key)
			continue
		}
		kept = append(kept, j)
	}
	return kept
}

func (r *Resolver) fetch(ctx context.Context, fetcher provider.Fetcher, j job, useDefaults bool) (candidate, error) {
	d := j.decl.Directive
	kind := d.Kind

	fetchCtx, cancel := withFetchTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Debug("Fetching %s from %s for %s", j.resource, kind, j.decl.Key)
	start := time.Now()
	value, err := fetcher.Fetch(fetchCtx, kind, j.resource)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		r.metrics.RecordFetch(kind.String(), metrics.OutcomeSuccess, elapsed)
		r.logger.Debug("Fetched %s for %s: %s", j.resource, j.decl.Key, logging.Secret(value))
		return candidate{present: true, source: SourceSecret, sealed: secure.Seal(value)}, nil

	case provider.IsNotFound(err):
		r.metrics.RecordFetch(kind.String(), metrics.OutcomeNotFound, elapsed)
		if !d.Optional {
			return candidate{}, &MissingSecretError{Key: j.decl.Key, Kind: kind, Resource: j.resource, Err: err}
		}
		r.metrics.RecordOptionalMissing()
		if useDefaults && hasDefault(j.decl) {
			r.logger.Warn("Optional secret %s for %s not found in %s, using default", j.resource, j.decl.Key, kind)
			return candidate{present: true, source: SourceDefault, plain: j.decl.RawValue}, nil
		}
		r.logger.Warn("Optional secret %s for %s not found in %s, omitting key", j.resource, j.decl.Key, kind)
		return candidate{}, nil

	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return candidate{}, err

	default:
		r.metrics.RecordFetch(kind.String(), metrics.OutcomeError, elapsed)
		return candidate{}, &ProviderError{
			Key:      j.decl.Key,
			Kind:     kind,
			Resource: j.resource,
			Err:      timeoutError(ctx, err, kind, r.timeout),
		}
	}
}

// assemble lays out the result in declaration order and applies overrides.
func (r *Resolver) assemble(decls []dotenv.Declaration, slots []candidate, overrides *envmap.Map) (*Result, error) {
	result := newResult(len(decls) + overrides.Len())

	for i, d := range decls {
		if v, ok := overrides.Get(d.Key); ok {
			result.add(Entry{Key: d.Key, Value: v, Source: SourceOverride})
			continue
		}
		c := slots[i]
		if !c.present {
			continue
		}
		value := c.plain
		if c.sealed != nil {
			revealed, err := c.sealed.Reveal()
			if err != nil {
				return nil, err
			}
			value = revealed
		}
		result.add(Entry{Key: d.Key, Value: value, Source: c.source})
	}

	overrides.Each(func(key, value string) {
		if _, declared := result.index[key]; declared {
			return
		}
		result.add(Entry{Key: key, Value: value, Source: SourceOverride})
	})

	for _, e := range result.entries {
		r.metrics.RecordEntry(e.Source.String())
	}
	return result, nil
}

// unique applies stable-slot upsert: each key keeps its first position and
// the content of its last declaration.
func unique(decls []dotenv.Declaration) []dotenv.Declaration {
	index := make(map[string]int, len(decls))
	out := make([]dotenv.Declaration, 0, len(decls))
	for _, d := range decls {
		if i, ok := index[d.Key]; ok {
			out[i] = d
			continue
		}
		index[d.Key] = len(out)
		out = append(out, d)
	}
	return out
}

// hasDefault reports whether d carries a usable file value. An empty value,
// quoted or not, means no default.
func hasDefault(d dotenv.Declaration) bool {
	return d.RawValue != ""
}
