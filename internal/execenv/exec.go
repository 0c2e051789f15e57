// Package execenv runs a child command with resolved variables in its environment.
package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/systmms/awsmenv/internal/envmap"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/logging"
)

// Executor handles running commands with ephemeral environment variables
type Executor struct {
	logger *logging.Logger
}

// New creates a new executor
func New(logger *logging.Logger) *Executor {
	return &Executor{
		logger: logger,
	}
}

// ExecOptions configures command execution
type ExecOptions struct {
	Command       []string    // Command and arguments to run
	Environment   *envmap.Map // Resolved variables to set
	AllowOverride bool        // Existing env vars win over resolved values
	PrintVars     bool        // Print resolved variable names with masked values to Stderr
	WorkingDir    string      // Working directory for the command
	BaseEnv       []string    // Environment to merge into; os.Environ() when nil

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ExitError carries a non-zero exit status of the child process.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// Exec runs a command with the provided environment variables.
// A child that exits non-zero yields ExitError with its status.
func (e *Executor) Exec(ctx context.Context, options ExecOptions) error {
	if len(options.Command) == 0 {
		return dserrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., awsm-env exec -- npm start)",
		}
	}

	cmdName := options.Command[0]
	if _, err := exec.LookPath(cmdName); err != nil {
		return dserrors.WrapCommandNotFound(cmdName, err)
	}

	base := options.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	env := MergeEnvironment(base, options.Environment, options.AllowOverride)

	stdout, stderr, stdin := options.Stdout, options.Stderr, options.Stdin
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if stdin == nil {
		stdin = os.Stdin
	}

	if options.PrintVars {
		printEnvironment(stderr, options.Environment)
	}

	cmd := exec.CommandContext(ctx, cmdName, options.Command[1:]...)
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = stdin
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	e.logger.Debug("Executing command: %s", strings.Join(options.Command, " "))
	e.logger.Debug("Environment variables set: %d", options.Environment.Len())

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				// killed by a signal
				code = 1
			}
			return ExitError{Code: code}
		}
		return dserrors.CommandError{
			Command:    strings.Join(options.Command, " "),
			Message:    err.Error(),
			Suggestion: "Check the command output above for details",
		}
	}

	return nil
}

// MergeEnvironment overlays vars on base (KEY=VALUE entries) and returns a
// sorted environment. With allowOverride, keys already in base keep their value.
func MergeEnvironment(base []string, vars *envmap.Map, allowOverride bool) []string {
	merged := make(map[string]string, len(base)+vars.Len())
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}

	vars.Each(func(key, value string) {
		if allowOverride {
			if _, exists := merged[key]; exists {
				return
			}
		}
		merged[key] = value
	})

	result := make([]string, 0, len(merged))
	for key, value := range merged {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)
	return result
}

// printEnvironment displays the resolved variables (values masked for security)
func printEnvironment(w io.Writer, environment *envmap.Map) {
	if environment.Len() == 0 {
		fmt.Fprintln(w, "No environment variables resolved")
		return
	}

	fmt.Fprintf(w, "Resolved %d environment variables:\n", environment.Len())
	environment.Each(func(key, value string) {
		fmt.Fprintf(w, "  %s=%s\n", key, MaskValue(value))
	})
	fmt.Fprintln(w)
}

// MaskValue masks a secret value for display
func MaskValue(value string) string {
	if len(value) == 0 {
		return "(empty)"
	}

	if len(value) <= 3 {
		return strings.Repeat("*", len(value))
	}

	if len(value) <= 8 {
		return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
	}

	return value[:3] + strings.Repeat("*", 8) + value[len(value)-2:]
}
