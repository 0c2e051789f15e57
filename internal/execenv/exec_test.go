package execenv_test

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/awsmenv/internal/envmap"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/execenv"
	"github.com/systmms/awsmenv/internal/logging"
)

func TestMaskValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "(empty)"},
		{"single_char", "a", "*"},
		{"three_chars", "abc", "***"},
		{"four_chars", "abcd", "a**d"},
		{"eight_chars", "abcdefgh", "a******h"},
		{"nine_chars", "abcdefghi", "abc********hi"},
		{"long_value", "mysupersecretpassword", "mys********rd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, execenv.MaskValue(tt.input))
		})
	}
}

func TestMergeEnvironment(t *testing.T) {
	t.Parallel()

	base := []string{"PATH=/usr/bin", "DATABASE_URL=from-shell", "EMPTY=", "BROKEN"}
	vars := envmap.FromPairs("DATABASE_URL", "postgres://resolved", "API_KEY", "k=v")

	t.Run("resolved values win", func(t *testing.T) {
		t.Parallel()
		env := execenv.MergeEnvironment(base, vars, false)
		assert.Equal(t, []string{
			"API_KEY=k=v",
			"DATABASE_URL=postgres://resolved",
			"EMPTY=",
			"PATH=/usr/bin",
		}, env)
	})

	t.Run("allow override keeps existing", func(t *testing.T) {
		t.Parallel()
		env := execenv.MergeEnvironment(base, vars, true)
		assert.Contains(t, env, "DATABASE_URL=from-shell")
		assert.Contains(t, env, "API_KEY=k=v")
	})

	t.Run("nil vars", func(t *testing.T) {
		t.Parallel()
		env := execenv.MergeEnvironment([]string{"B=2", "A=1"}, nil, false)
		assert.Equal(t, []string{"A=1", "B=2"}, env)
	})
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExec_PassesEnvironment(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var stdout, stderr bytes.Buffer
	e := execenv.New(logging.Discard())
	err := e.Exec(context.Background(), execenv.ExecOptions{
		Command:     []string{"sh", "-c", `printf '%s|%s' "$GREETING" "$KEEP"`},
		Environment: envmap.FromPairs("GREETING", "hello world", "KEEP", "resolved"),
		BaseEnv:     []string{"PATH=/usr/bin:/bin", "KEEP=shell"},
		PrintVars:   true,
		Stdin:       strings.NewReader(""),
		Stdout:      &stdout,
		Stderr:      &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world|resolved", stdout.String())
	assert.Contains(t, stderr.String(), "Resolved 2 environment variables")
	assert.Contains(t, stderr.String(), "GREETING=hel********ld")
	assert.NotContains(t, stderr.String(), "hello world")
}

func TestExec_AllowOverride(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var stdout bytes.Buffer
	err := execenv.New(logging.Discard()).Exec(context.Background(), execenv.ExecOptions{
		Command:       []string{"sh", "-c", `printf '%s' "$KEEP"`},
		Environment:   envmap.FromPairs("KEEP", "resolved"),
		BaseEnv:       []string{"PATH=/usr/bin:/bin", "KEEP=shell"},
		AllowOverride: true,
		Stdin:         strings.NewReader(""),
		Stdout:        &stdout,
		Stderr:        &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, "shell", stdout.String())
}

func TestExec_ExitCode(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	err := execenv.New(logging.Discard()).Exec(context.Background(), execenv.ExecOptions{
		Command: []string{"sh", "-c", "exit 7"},
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})
	require.Error(t, err)

	var exitErr execenv.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.Code)
	assert.Equal(t, "command exited with status 7", err.Error())
}

func TestExec_Errors(t *testing.T) {
	t.Parallel()

	e := execenv.New(logging.Discard())

	err := e.Exec(context.Background(), execenv.ExecOptions{})
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "No command specified", userErr.Message)

	err = e.Exec(context.Background(), execenv.ExecOptions{Command: []string{"awsm-env-no-such-command-xyz"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "awsm-env-no-such-command-xyz")
}
