package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/systmms/awsmenv/internal/config"
	"github.com/systmms/awsmenv/internal/dotenv"
	"github.com/systmms/awsmenv/internal/envmap"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/logging"
	"github.com/systmms/awsmenv/internal/metrics"
	"github.com/systmms/awsmenv/internal/providers"
	"github.com/systmms/awsmenv/internal/resolve"
)

// Runtime is shared by every command: the configuration plus the global flags
// that take precedence over it.
type Runtime struct {
	Config *config.Config

	Region      string
	Profile     string
	Concurrency int
	TimeoutMs   int // negative when the flag was not given

	// RegistryOptions are applied to every provider registry.
	RegistryOptions []providers.RegistryOption

	// NewSTSClient builds the client doctor uses to report the AWS identity.
	NewSTSClient func(ctx context.Context, cfg config.AWSConfig) (providers.STSClientAPI, error)
}

// NewRuntime creates a Runtime reading the default configuration path.
func NewRuntime() *Runtime {
	return &Runtime{
		Config:       &config.Config{Path: config.DefaultPath, Logger: logging.Discard()},
		TimeoutMs:    -1,
		NewSTSClient: providers.NewSTSClient,
	}
}

func (rt *Runtime) logger() *logging.Logger {
	if rt.Config.Logger == nil {
		return logging.Discard()
	}
	return rt.Config.Logger
}

// session is one loaded configuration plus one parsed annotated env file.
type session struct {
	rt       *Runtime
	def      *config.Definition
	doc      *dotenv.Document
	specPath string
}

// inputFlags are the pipeline knobs shared by render, plan and exec.
type inputFlags struct {
	vars         []string
	placeholders []string
	noDefaults   bool
}

// open loads configuration, applies global flags and parses the spec file
// named by args, the config file or the built-in default, in that order.
func (rt *Runtime) open(args []string) (*session, error) {
	if err := rt.Config.Load(); err != nil {
		return nil, err
	}
	def := rt.Config.Definition
	rt.applyFlags(def)

	specPath := dotenv.DefaultFile
	switch {
	case len(args) > 0 && args[0] != "":
		specPath = args[0]
	case def.Spec != "":
		specPath = def.Spec
	}

	doc, err := dotenv.ParseFile(specPath)
	if err != nil {
		return nil, explainParse(specPath, err)
	}

	logger := rt.logger()
	for _, dup := range doc.Duplicates {
		logger.Warn("%s: %s declared on line %d and again on line %d, keeping the last value", specPath, dup.Key, dup.FirstLine, dup.Line)
	}
	logger.Debug("Parsed %d declarations from %s", len(doc.Declarations), specPath)

	return &session{rt: rt, def: def, doc: doc, specPath: specPath}, nil
}

// applyFlags copies global flag values over the loaded definition.
func (rt *Runtime) applyFlags(def *config.Definition) {
	if rt.Region != "" {
		def.AWS.Region = rt.Region
	}
	if rt.Profile != "" {
		def.AWS.Profile = rt.Profile
	}
	if rt.Concurrency > 0 {
		def.Concurrency = rt.Concurrency
	}
	if rt.TimeoutMs >= 0 {
		ms := rt.TimeoutMs
		def.TimeoutMs = &ms
	}
}

func (s *session) registry() *providers.Registry {
	return providers.NewRegistry(s.def, s.rt.logger(), s.rt.RegistryOptions...)
}

func (s *session) resolver(rec *metrics.Recorder) *resolve.Resolver {
	return resolve.New(s.rt.logger(),
		resolve.WithConcurrency(s.def.Concurrency),
		resolve.WithTimeout(s.def.Timeout(resolve.DefaultTimeout)),
		resolve.WithMetrics(rec),
	)
}

// params builds the pipeline parameters. CLI placeholders are merged over
// configured ones; overrides keep the order they were given in.
func (s *session) params(in inputFlags) (resolve.Params, error) {
	placeholders := make(map[string]string, len(s.def.Placeholders)+len(in.placeholders))
	for name, value := range s.def.Placeholders {
		placeholders[name] = value
	}
	for _, pair := range in.placeholders {
		name, value, err := splitAssignment("--placeholder", pair)
		if err != nil {
			return resolve.Params{}, err
		}
		placeholders[name] = value
	}

	overrides := envmap.New()
	for _, pair := range in.vars {
		key, value, err := splitAssignment("--var", pair)
		if err != nil {
			return resolve.Params{}, err
		}
		overrides.Set(key, value)
	}

	return resolve.Params{
		Placeholders: placeholders,
		Overrides:    overrides,
		UseDefaults:  !in.noDefaults && s.def.UsesDefaults(),
	}, nil
}

// resolve runs the full pipeline against the provider registry.
func (s *session) resolve(ctx context.Context, in inputFlags, rec *metrics.Recorder) (*resolve.Result, error) {
	params, err := s.params(in)
	if err != nil {
		return nil, err
	}

	reg := s.registry()
	defer func() {
		if err := reg.Close(); err != nil {
			s.rt.logger().Debug("Closing providers: %v", err)
		}
	}()

	start := time.Now()
	result, err := s.resolver(rec).Resolve(ctx, s.doc.Declarations, reg, params)
	if err != nil {
		return nil, explain(err)
	}
	s.rt.logger().Debug("Resolved %d entries in %s", result.Len(), time.Since(start).Round(time.Millisecond))
	return result, nil
}

// splitAssignment parses name=value. The value may itself contain '='.
func splitAssignment(flag, pair string) (string, string, error) {
	name, value, ok := strings.Cut(pair, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", dserrors.UserError{
			Message:    fmt.Sprintf("Invalid %s value %q", flag, pair),
			Suggestion: fmt.Sprintf("Use the form %s name=value", flag),
		}
	}
	return name, value, nil
}

func explainParse(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Annotated env file %s not found", path),
			Suggestion: "Pass the file as an argument or set 'spec' in the config file",
			Err:        err,
		}
	}
	var parseErr *dotenv.ParseError
	if errors.As(err, &parseErr) {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Invalid annotated env file %s", path),
			Details:    parseErr.Error(),
			Suggestion: "Directives look like '# @aws-sm name/of/secret [@optional]' followed by KEY=value",
			Err:        err,
		}
	}
	return err
}

// explain maps pipeline failures to user facing errors.
func explain(err error) error {
	var placeholderErr *resolve.PlaceholderError
	var missingErr *resolve.MissingSecretError
	var providerErr *resolve.ProviderError

	switch {
	case errors.As(err, &placeholderErr):
		return dserrors.UserError{
			Message:    fmt.Sprintf("Cannot build secret name for %s (line %d)", placeholderErr.Key, placeholderErr.Line),
			Details:    placeholderErr.Err.Error(),
			Suggestion: fmt.Sprintf("Supply it with --placeholder %s=<value> or under 'placeholders' in the config file", placeholderErr.Err.Name),
			Err:        err,
		}
	case errors.As(err, &missingErr):
		return dserrors.UserError{
			Message:    missingErr.Error(),
			Suggestion: "Create the secret or mark the directive @optional to fall back to the file value",
			Err:        err,
		}
	case errors.As(err, &providerErr):
		suggestion := dserrors.ProviderSuggestion(providerErr.Kind.String(), providerErr.Err)
		switch {
		case suggestion != "":
		case dserrors.IsRetryable(providerErr.Err):
			suggestion = "The failure looks transient, run the command again"
		default:
			suggestion = "Run 'awsm-env doctor' to check provider configuration"
		}
		return dserrors.UserError{
			Message:    fmt.Sprintf("Failed to fetch %q for %s from %s", providerErr.Resource, providerErr.Key, providerErr.Kind),
			Details:    providerErr.Err.Error(),
			Suggestion: suggestion,
			Err:        err,
		}
	}
	return err
}
