package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/systmms/awsmenv/internal/config"
	"github.com/systmms/awsmenv/internal/logging"
	"github.com/systmms/awsmenv/pkg/provider"
	"golang.org/x/time/rate"
)

const (
	// DefaultRequestsPerSecond is the per-provider request rate when none is configured.
	DefaultRequestsPerSecond = 20
	// DefaultBurst is the per-provider burst size when none is configured.
	DefaultBurst = 10
)

// ProviderFactory creates the provider for one kind from configuration
type ProviderFactory func(ctx context.Context, def *config.Definition) (provider.Provider, error)

// Registry creates providers on first use and serves as the provider.Fetcher
// of the resolution pipeline. A file that only uses @aws-sm never needs
// Google or Azure credentials.
type Registry struct {
	def       *config.Definition
	logger    *logging.Logger
	rps       float64
	burst     int
	factories map[provider.Kind]ProviderFactory

	mu    sync.Mutex
	slots map[provider.Kind]*slot
}

type slot struct {
	once    sync.Once
	p       provider.Provider
	err     error
	limiter *rate.Limiter
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithFactory replaces the factory for kind
func WithFactory(kind provider.Kind, factory ProviderFactory) RegistryOption {
	return func(r *Registry) {
		r.factories[kind] = factory
	}
}

// WithProvider serves p for its kind instead of building one
func WithProvider(p provider.Provider) RegistryOption {
	return WithFactory(p.Kind(), func(context.Context, *config.Definition) (provider.Provider, error) {
		return p, nil
	})
}

// WithRateLimit overrides the per-provider request rate and burst
func WithRateLimit(rps float64, burst int) RegistryOption {
	return func(r *Registry) {
		r.rps = rps
		r.burst = burst
	}
}

// NewRegistry creates a registry with the built-in providers
func NewRegistry(def *config.Definition, logger *logging.Logger, opts ...RegistryOption) *Registry {
	if def == nil {
		def = &config.Definition{}
	}
	r := &Registry{
		def:    def,
		logger: logger,
		rps:    DefaultRequestsPerSecond,
		burst:  DefaultBurst,
		factories: map[provider.Kind]ProviderFactory{
			provider.SecretsManager:   newSecretsManagerFromConfig,
			provider.ParameterStore:   newSSMFromConfig,
			provider.GCPSecretManager: newGCPFromConfig,
			provider.AzureKeyVault:    newAzureFromConfig,
		},
		slots: make(map[provider.Kind]*slot),
	}
	if def.RequestsPerSecond > 0 {
		r.rps = def.RequestsPerSecond
	}
	if def.Burst > 0 {
		r.burst = def.Burst
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newSecretsManagerFromConfig(ctx context.Context, def *config.Definition) (provider.Provider, error) {
	return NewAWSSecretsManagerProvider(ctx, def.AWS)
}

func newSSMFromConfig(ctx context.Context, def *config.Definition) (provider.Provider, error) {
	return NewAWSSSMProvider(ctx, def.AWS, def.SSM)
}

func newGCPFromConfig(ctx context.Context, def *config.Definition) (provider.Provider, error) {
	return NewGCPSecretManagerProvider(ctx, def.GCP)
}

func newAzureFromConfig(_ context.Context, def *config.Definition) (provider.Provider, error) {
	return NewAzureKeyVaultProvider(def.Azure)
}

// IsSupported reports whether a factory exists for kind
func (r *Registry) IsSupported(kind provider.Kind) bool {
	_, ok := r.factories[kind]
	return ok
}

func (r *Registry) slot(kind provider.Kind) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[kind]
	if !ok {
		limit := rate.Limit(r.rps)
		if r.rps <= 0 {
			limit = rate.Inf
		}
		s = &slot{limiter: rate.NewLimiter(limit, r.burst)}
		r.slots[kind] = s
	}
	return s
}

// Provider returns the provider for kind, creating it on first use.
// A construction failure is remembered and returned to every later caller.
func (r *Registry) Provider(ctx context.Context, kind provider.Kind) (provider.Provider, error) {
	if !r.IsSupported(kind) {
		return nil, fmt.Errorf("unsupported provider kind: %s", kind)
	}
	factory := r.factories[kind]

	s := r.slot(kind)
	s.once.Do(func() {
		r.logger.Debug("Initializing provider %s", kind)
		// Clients outlive the fetch that created them.
		p, err := factory(context.WithoutCancel(ctx), r.def)
		if err != nil {
			s.err = fmt.Errorf("failed to initialize %s provider: %w", kind, err)
			return
		}
		s.p = p
	})
	return s.p, s.err
}

// Fetch implements provider.Fetcher. Requests to each provider are rate limited.
func (r *Registry) Fetch(ctx context.Context, kind provider.Kind, name string) (string, error) {
	p, err := r.Provider(ctx, kind)
	if err != nil {
		return "", err
	}

	if err := r.slot(kind).limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// The limiter refuses to wait past the context deadline.
		return "", fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}

	return p.Fetch(ctx, name)
}

// Close releases providers that hold connections
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, s := range r.slots {
		if c, ok := s.p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
