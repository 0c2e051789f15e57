package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/awsmenv/internal/config"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/providers"
	"github.com/systmms/awsmenv/pkg/provider"
)

const doctorTimeout = 10 * time.Second

func NewDoctorCommand(rt *Runtime) *cobra.Command {
	var (
		verbose bool
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [spec]",
		Short: "Check provider connectivity and configuration",
		Long: `Verify that every secret store used by the annotated env file is configured
and reachable. No secret values are read.

This command checks:
- Configuration file and annotated env file validity
- Provider construction (credentials, region, project, vault)
- Provider connectivity
- The AWS identity in use, when an AWS store is referenced

Use --all to check every supported store regardless of the file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := rt.logger()
			logger.Info("Checking awsm-env configuration...")

			var kinds []provider.Kind
			if all {
				if err := rt.Config.Load(); err != nil {
					logger.Error("Configuration error: %v", err)
					return err
				}
				rt.applyFlags(rt.Config.Definition)
				kinds = provider.Kinds()
			} else {
				s, err := rt.open(args)
				if err != nil {
					logger.Error("Configuration error: %v", err)
					return err
				}
				logger.Info("✓ %s parsed successfully", s.specPath)
				kinds = usedKinds(s)
			}

			if len(kinds) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No directives found, nothing to check")
				return nil
			}

			def := rt.Config.Definition
			reg := providers.NewRegistry(def, logger, rt.RegistryOptions...)
			defer func() { _ = reg.Close() }()

			ctx := cmd.Context()
			results := make([]ProviderHealth, 0, len(kinds))
			for _, kind := range kinds {
				results = append(results, checkProvider(ctx, reg, kind))
			}

			out := cmd.OutOrStdout()
			displayHealthResults(out, results, verbose)

			if usesAWS(kinds) {
				reportIdentity(ctx, out, rt, def.AWS)
			}

			healthy := 0
			for _, result := range results {
				if result.Status == "healthy" {
					healthy++
				}
			}

			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d providers healthy\n", healthy, len(results))
			if healthy < len(results) {
				return dserrors.UserError{
					Message:    "some providers are not healthy",
					Suggestion: "Run 'awsm-env doctor --verbose' for suggestions",
				}
			}

			logger.Info("✓ All systems operational!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failing providers")
	cmd.Flags().BoolVar(&all, "all", false, "Check every supported provider, not only those used by the file")

	return cmd
}

// ProviderHealth represents the health status of a provider
type ProviderHealth struct {
	Name        string
	Tag         string
	Status      string // healthy, error
	Error       string
	Message     string
	Suggestions []string
}

func checkProvider(ctx context.Context, reg *providers.Registry, kind provider.Kind) ProviderHealth {
	health := ProviderHealth{Name: kind.String(), Tag: "@" + kind.Tag()}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	p, err := reg.Provider(ctx, kind)
	if err == nil {
		err = p.Validate(ctx)
	}
	if err != nil {
		health.Status = "error"
		health.Error = err.Error()
		if suggestion := dserrors.ProviderSuggestion(kind.String(), err); suggestion != "" {
			health.Suggestions = append(health.Suggestions, suggestion)
		}
		return health
	}

	health.Status = "healthy"
	health.Message = "Provider is ready"
	return health
}

// usedKinds lists the provider kinds referenced by the file, in first-use order.
func usedKinds(s *session) []provider.Kind {
	seen := make(map[provider.Kind]bool)
	var kinds []provider.Kind
	for _, d := range s.doc.Declarations {
		if d.Directive == nil || seen[d.Directive.Kind] {
			continue
		}
		seen[d.Directive.Kind] = true
		kinds = append(kinds, d.Directive.Kind)
	}
	return kinds
}

func usesAWS(kinds []provider.Kind) bool {
	for _, k := range kinds {
		if k == provider.SecretsManager || k == provider.ParameterStore {
			return true
		}
	}
	return false
}

func reportIdentity(ctx context.Context, out io.Writer, rt *Runtime, cfg config.AWSConfig) {
	if rt.NewSTSClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	client, err := rt.NewSTSClient(ctx, cfg)
	if err == nil {
		var id providers.Identity
		id, err = providers.CallerIdentity(ctx, client)
		if err == nil {
			_, _ = fmt.Fprintf(out, "\nAWS identity:\n  Account: %s\n  ARN:     %s\n", id.Account, id.ARN)
			return
		}
	}
	_, _ = fmt.Fprintf(out, "\nAWS identity: unavailable (%v)\n", err)
}

// displayHealthResults shows provider health in a formatted table
func displayHealthResults(out io.Writer, results []ProviderHealth, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "PROVIDER\tDIRECTIVE\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "--------\t---------\t------\t-------\n")

	for _, result := range results {
		message := result.Message
		if result.Error != "" {
			message = result.Error
		}

		status := "✓ " + result.Status
		if result.Status != "healthy" {
			status = "✗ " + result.Status
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", result.Name, result.Tag, status, message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, result := range results {
		if result.Status == "error" && len(result.Suggestions) > 0 {
			_, _ = fmt.Fprintf(out, "\n%s suggestions:\n", result.Name)
			for _, suggestion := range result.Suggestions {
				_, _ = fmt.Fprintf(out, "  • %s\n", suggestion)
			}
		}
	}
}
