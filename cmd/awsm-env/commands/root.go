package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/awsmenv/internal/config"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/logging"
	"github.com/systmms/awsmenv/internal/metrics"
	"github.com/systmms/awsmenv/internal/render"
	"github.com/systmms/awsmenv/pkg/provider"
)

// NewRootCommand builds the awsm-env command tree. The root command itself
// renders the annotated env file.
func NewRootCommand(rt *Runtime) *cobra.Command {
	var (
		configFile string
		noColor    bool
		debug      bool

		in          inputFlags
		format      string
		outputPath  string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "awsm-env [spec]",
		Short: "Resolve an annotated env file against cloud secret stores",
		Long: `awsm-env reads an annotated env file (default .env.example), fetches the
secrets named by its directives and prints the resulting variables.

A directive is a comment placed directly above a KEY=value line:

  # @aws-sm $environment/db-url
  DATABASE_URL=postgres://localhost/dev

Supported directives: ` + provider.Tags() + `. Append @optional to fall back to
the file value when the secret does not exist.

Examples:
  awsm-env -p environment=staging
  awsm-env .env.example -f json -o env.json
  awsm-env -v DEBUG=1 --no-defaults -f shell
  eval "$(awsm-env -f shell)"

Shell output escapes '$' and '` + "`" + `' so eval never expands text inside a value.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			rt.Config.Logger = logging.NewWithWriter(cmd.ErrOrStderr(), debug, noColor)
			rt.Config.Path = configFile
			rt.Config.Explicit = cmd.Flags().Changed("config")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.open(args)
			if err != nil {
				return err
			}

			if format == "" {
				format = s.def.Format
			}
			f, err := render.ParseFormat(format)
			if err != nil {
				return dserrors.UserError{
					Message:    err.Error(),
					Suggestion: "Choose one of " + render.FormatList(),
				}
			}

			rec := metrics.New()
			result, err := s.resolve(cmd.Context(), in, rec)
			if err != nil {
				return err
			}

			output := render.Render(result.Values(), f)
			if outputPath == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), output)
			} else {
				err = writeOutput(outputPath, output)
				if err == nil {
					rt.logger().Info("Wrote %d variables to %s", result.Len(), outputPath)
				}
			}
			if err != nil {
				return err
			}

			if metricsFile != "" {
				return rec.WriteTextfile(metricsFile)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")
	pf.StringVar(&rt.Region, "region", "", "AWS region (overrides config and AWS_REGION)")
	pf.StringVar(&rt.Profile, "profile", "", "AWS shared config profile")
	pf.IntVar(&rt.Concurrency, "concurrency", 0, "Maximum concurrent secret fetches (default 10)")
	pf.IntVar(&rt.TimeoutMs, "timeout-ms", -1, "Per-fetch timeout in milliseconds, 0 disables (default 30000)")

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format ("+render.FormatList()+")")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write output to a file (mode 0600) instead of stdout")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics after the run")
	addInputFlags(cmd, &in)

	cmd.AddCommand(
		NewPlanCommand(rt),
		NewExecCommand(rt),
		NewDoctorCommand(rt),
	)

	return cmd
}

func addInputFlags(cmd *cobra.Command, in *inputFlags) {
	cmd.Flags().StringArrayVarP(&in.vars, "var", "v", nil, "Add or override a variable (KEY=value, repeatable)")
	cmd.Flags().StringArrayVarP(&in.placeholders, "placeholder", "p", nil, "Placeholder used in secret names (name=value, repeatable)")
	cmd.Flags().BoolVar(&in.noDefaults, "no-defaults", false, "Do not emit file values for keys without a fetched secret")
}

// writeOutput writes rendered secrets owner-readable only, tightening the
// mode of an existing file.
func writeOutput(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Failed to open output file %s", path),
			Details:    err.Error(),
			Suggestion: "Check that the directory exists and is writable",
			Err:        err,
		}
	}
	if err := f.Chmod(0600); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
