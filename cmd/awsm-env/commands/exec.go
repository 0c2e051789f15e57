package commands

import (
	"github.com/spf13/cobra"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/execenv"
)

func NewExecCommand(rt *Runtime) *cobra.Command {
	var (
		in            inputFlags
		printVars     bool
		allowOverride bool
		workingDir    string
	)

	cmd := &cobra.Command{
		Use:   "exec [spec] -- <command> [args...]",
		Short: "Execute a command with the resolved variables",
		Long: `Execute a command with the variables resolved from the annotated env file
added to its environment. Nothing is written to disk. The command's exit
status becomes the exit status of awsm-env.

The command must be separated from awsm-env arguments with '--'.

Examples:
  awsm-env exec -- npm start
  awsm-env exec .env.example -p environment=prod -- docker compose up
  awsm-env exec --print-vars -- python app.py`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specArgs, command := args, []string(nil)
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				specArgs, command = args[:dash], args[dash:]
			}
			if len(specArgs) > 1 {
				return dserrors.UserError{
					Message:    "Too many arguments before '--'",
					Suggestion: "Use: awsm-env exec [spec] -- <command> [args...]",
				}
			}
			if len(command) == 0 {
				return dserrors.UserError{
					Message:    "No command specified",
					Suggestion: "Use: awsm-env exec [spec] -- <command> [args...]",
				}
			}

			s, err := rt.open(specArgs)
			if err != nil {
				return err
			}

			result, err := s.resolve(cmd.Context(), in, nil)
			if err != nil {
				return err
			}
			rt.logger().Debug("Resolved %d environment variables", result.Len())

			executor := execenv.New(rt.logger())
			return executor.Exec(cmd.Context(), execenv.ExecOptions{
				Command:       command,
				Environment:   result.Values(),
				AllowOverride: allowOverride,
				PrintVars:     printVars,
				WorkingDir:    workingDir,
				Stdin:         cmd.InOrStdin(),
				Stdout:        cmd.OutOrStdout(),
				Stderr:        cmd.ErrOrStderr(),
			})
		},
	}

	addInputFlags(cmd, &in)
	cmd.Flags().BoolVar(&printVars, "print-vars", false, "Print resolved variables (values masked) before running")
	cmd.Flags().BoolVar(&allowOverride, "allow-override", false, "Keep existing environment values for keys already set")
	cmd.Flags().StringVar(&workingDir, "working-dir", "", "Working directory for the command")

	return cmd
}
