package commands

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/awsmenv/internal/config"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/pkg/provider"
	"github.com/systmms/awsmenv/tests/fakes"
	"github.com/systmms/awsmenv/tests/testutil"
	"gopkg.in/yaml.v3"
)

const basicSpec = `
	# @aws-sm $environment/db-url
	DATABASE_URL=postgres://localhost/dev

	# @aws-ps /app/$environment/token @optional
	export API_TOKEN='local-token'

	LOG_LEVEL=info
`

func stagingProviders() (*fakes.FakeProvider, *fakes.FakeProvider) {
	sm := fakes.NewFakeProvider("aws-secretsmanager", provider.SecretsManager).
		WithSecret("staging/db-url", "postgres://db.internal/app")
	ps := fakes.NewFakeProvider("aws-ssm", provider.ParameterStore).
		WithSecret("/app/staging/token", "tok-123")
	return sm, ps
}

func TestRenderCommand_EnvFormat(t *testing.T) {
	t.Parallel()

	sm, ps := stagingProviders()
	spec := testutil.WriteSpec(t, basicSpec)

	stdout, stderr, err := executeCommand(t, newTestRuntime(sm, ps), spec, "-p", "environment=staging")
	require.NoError(t, err, stderr)

	assert.Equal(t, ""+
		"DATABASE_URL=\"postgres://db.internal/app\"\n"+
		"API_TOKEN=\"tok-123\"\n"+
		"LOG_LEVEL=\"info\"\n", stdout)
	testutil.AssertNoSecretLeak(t, stderr, []string{"postgres://db.internal/app", "tok-123"})
}

func TestRenderCommand_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: "shell",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "export DATABASE_URL=\"postgres://db.internal/app\"\n")
				assert.Contains(t, out, "export LOG_LEVEL=\"info\"\n")
			},
		},
		{
			format: "json",
			check: func(t *testing.T, out string) {
				var got map[string]string
				require.NoError(t, json.Unmarshal([]byte(out), &got))
				assert.Equal(t, "tok-123", got["API_TOKEN"])
				assert.Len(t, got, 3)
			},
		},
		{
			format: "yaml",
			check: func(t *testing.T, out string) {
				var got map[string]string
				require.NoError(t, yaml.Unmarshal([]byte(out), &got))
				assert.Equal(t, "info", got["LOG_LEVEL"])
				assert.Len(t, got, 3)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			sm, ps := stagingProviders()
			spec := testutil.WriteSpec(t, basicSpec)
			stdout, stderr, err := executeCommand(t, newTestRuntime(sm, ps), spec, "-p", "environment=staging", "-f", tt.format)
			require.NoError(t, err, stderr)
			tt.check(t, stdout)
		})
	}
}

func TestRenderCommand_OverridesAndDefaults(t *testing.T) {
	t.Parallel()

	t.Run("overrides win and are not fetched", func(t *testing.T) {
		t.Parallel()

		sm, ps := stagingProviders()
		spec := testutil.WriteSpec(t, basicSpec)
		stdout, stderr, err := executeCommand(t, newTestRuntime(sm, ps), spec,
			"-p", "environment=staging",
			"-v", "DATABASE_URL=sqlite://memory",
			"-v", "EXTRA=a=b",
		)
		require.NoError(t, err, stderr)

		assert.Equal(t, ""+
			"DATABASE_URL=\"sqlite://memory\"\n"+
			"API_TOKEN=\"tok-123\"\n"+
			"LOG_LEVEL=\"info\"\n"+
			"EXTRA=\"a=b\"\n", stdout)
		assert.Equal(t, 0, sm.CallCount("staging/db-url"))
	})

	t.Run("no defaults omits plain keys", func(t *testing.T) {
		t.Parallel()

		sm, ps := stagingProviders()
		spec := testutil.WriteSpec(t, basicSpec)
		stdout, stderr, err := executeCommand(t, newTestRuntime(sm, ps), spec, "-p", "environment=staging", "--no-defaults")
		require.NoError(t, err, stderr)

		assert.Equal(t, ""+
			"DATABASE_URL=\"postgres://db.internal/app\"\n"+
			"API_TOKEN=\"tok-123\"\n", stdout)
	})

	t.Run("optional missing falls back with a warning", func(t *testing.T) {
		t.Parallel()

		sm := fakes.NewFakeProvider("aws-secretsmanager", provider.SecretsManager).
			WithSecret("staging/db-url", "postgres://db.internal/app")
		ps := fakes.NewFakeProvider("aws-ssm", provider.ParameterStore)
		spec := testutil.WriteSpec(t, basicSpec)

		stdout, stderr, err := executeCommand(t, newTestRuntime(sm, ps), spec, "-p", "environment=staging")
		require.NoError(t, err)

		assert.Contains(t, stdout, "API_TOKEN=\"local-token\"\n")
		assert.Contains(t, stderr, "⚠")
		assert.Contains(t, stderr, "/app/staging/token")
	})
}

func TestRenderCommand_OutputFile(t *testing.T) {
	t.Parallel()

	sm, ps := stagingProviders()
	spec := testutil.WriteSpec(t, basicSpec)
	out := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0644))

	stdout, stderr, err := executeCommand(t, newTestRuntime(sm, ps), spec, "-p", "environment=staging", "-o", out)
	require.NoError(t, err, stderr)

	assert.Empty(t, stdout)
	testutil.AssertFileContents(t, out, ""+
		"DATABASE_URL=\"postgres://db.internal/app\"\n"+
		"API_TOKEN=\"tok-123\"\n"+
		"LOG_LEVEL=\"info\"\n")
	testutil.AssertFileMode(t, out, 0600)
	assert.Contains(t, stderr, "Wrote 3 variables")
}

func TestRenderCommand_MetricsFile(t *testing.T) {
	t.Parallel()

	sm, ps := stagingProviders()
	spec := testutil.WriteSpec(t, basicSpec)
	metricsPath := filepath.Join(t.TempDir(), "awsm-env.prom")

	_, stderr, err := executeCommand(t, newTestRuntime(sm, ps), spec, "-p", "environment=staging", "--metrics-file", metricsPath)
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	testutil.AssertLinesContain(t, string(data), []string{
		`awsm_env_fetch_total{outcome="success",provider="aws-secretsmanager"} 1`,
		`awsm_env_entries_total{source="default"} 1`,
	})
}

func TestRenderCommand_ConfigFile(t *testing.T) {
	t.Parallel()

	sm, ps := stagingProviders()
	prod := fakes.NewFakeProvider("aws-secretsmanager", provider.SecretsManager).
		WithSecret("prod/db-url", "postgres://db.prod/app")
	spec := testutil.WriteSpec(t, basicSpec)

	cfgPath := testutil.WriteConfig(t, `
		spec: `+spec+`
		format: json
		use_defaults: false
		placeholders:
		  environment: staging
	`)

	t.Run("config supplies spec format and placeholders", func(t *testing.T) {
		t.Parallel()

		stdout, stderr, err := executeCommand(t, newTestRuntime(sm, ps), "--config", cfgPath)
		require.NoError(t, err, stderr)

		var got map[string]string
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, map[string]string{
			"DATABASE_URL": "postgres://db.internal/app",
			"API_TOKEN":    "tok-123",
		}, got)
	})

	t.Run("flags take precedence", func(t *testing.T) {
		t.Parallel()

		ps := fakes.NewFakeProvider("aws-ssm", provider.ParameterStore)
		stdout, stderr, err := executeCommand(t, newTestRuntime(prod, ps), "--config", cfgPath,
			"-p", "environment=prod", "-f", "env")
		require.NoError(t, err, stderr)
		assert.Equal(t, "DATABASE_URL=\"postgres://db.prod/app\"\n", stdout)
	})

	t.Run("explicit missing config is an error", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCommand(t, newTestRuntime(sm, ps), "--config", filepath.Join(t.TempDir(), "absent.yaml"), spec)
		var cfgErr dserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Message, "not found")
	})
}

func TestRenderCommand_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    string
		setup   func(sm *fakes.FakeProvider)
		args    []string
		wantErr string
	}{
		{
			name:    "missing placeholder",
			spec:    basicSpec,
			wantErr: "--placeholder environment=<value>",
		},
		{
			name:    "required secret missing",
			spec:    basicSpec,
			args:    []string{"-p", "environment=qa"},
			wantErr: "mark the directive @optional",
		},
		{
			name: "provider failure",
			spec: basicSpec,
			setup: func(sm *fakes.FakeProvider) {
				sm.WithError("staging/db-url", provider.AuthError{Provider: "aws-secretsmanager", Message: "AccessDeniedException: not authorized"})
			},
			args:    []string{"-p", "environment=staging"},
			wantErr: "secretsmanager:GetSecretValue",
		},
		{
			name:    "malformed file",
			spec:    "# @vault some/secret\nKEY=value\n",
			wantErr: "Invalid annotated env file",
		},
		{
			name:    "bad format",
			spec:    "KEY=value\n",
			args:    []string{"-f", "xml"},
			wantErr: "unsupported format",
		},
		{
			name:    "bad assignment",
			spec:    "KEY=value\n",
			args:    []string{"-v", "NOVALUE"},
			wantErr: "Invalid --var value",
		},
		{
			name:    "unconfigured provider kind",
			spec:    "# @gcp-sm api-key\nAPI_KEY=\n",
			wantErr: "no fake configured for gcp-secretmanager",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sm, ps := stagingProviders()
			if tt.setup != nil {
				tt.setup(sm)
			}
			spec := testutil.WriteSpec(t, tt.spec)

			stdout, _, err := executeCommand(t, newTestRuntime(sm, ps), append([]string{spec}, tt.args...)...)
			testutil.AssertErrorContains(t, err, tt.wantErr)
			assert.Empty(t, stdout, "no partial output on failure")
		})
	}
}

func TestRenderCommand_MissingSpecFile(t *testing.T) {
	t.Parallel()

	_, _, err := executeCommand(t, newTestRuntime(), filepath.Join(t.TempDir(), ".env.example"))
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "not found")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRenderCommand_DuplicateKeysWarn(t *testing.T) {
	t.Parallel()

	spec := testutil.WriteSpec(t, "A=1\nB=2\nA=3\n")
	stdout, stderr, err := executeCommand(t, newTestRuntime(), spec)
	require.NoError(t, err)

	assert.Equal(t, "A=\"3\"\nB=\"2\"\n", stdout)
	assert.Contains(t, stderr, "A declared on line 1 and again on line 3")
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	rt := NewRuntime()
	rt.Region = "eu-west-1"
	rt.Profile = "dev"
	rt.Concurrency = 4
	rt.TimeoutMs = 0

	ten := 10000
	def := &config.Definition{
		AWS:         config.AWSConfig{Region: "us-east-1", Profile: "prod"},
		Concurrency: 20,
		TimeoutMs:   &ten,
	}
	rt.applyFlags(def)

	assert.Equal(t, "eu-west-1", def.AWS.Region)
	assert.Equal(t, "dev", def.AWS.Profile)
	assert.Equal(t, 4, def.Concurrency)
	require.NotNil(t, def.TimeoutMs)
	assert.Equal(t, 0, *def.TimeoutMs)

	untouched := &config.Definition{Concurrency: 20, TimeoutMs: &ten}
	NewRuntime().applyFlags(untouched)
	assert.Equal(t, 20, untouched.Concurrency)
	assert.Equal(t, 10000, *untouched.TimeoutMs)
}

func TestSplitAssignment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		wantName  string
		wantValue string
		wantErr   bool
	}{
		{in: "environment=staging", wantName: "environment", wantValue: "staging"},
		{in: "URL=https://x/?a=b", wantName: "URL", wantValue: "https://x/?a=b"},
		{in: "EMPTY=", wantName: "EMPTY", wantValue: ""},
		{in: "novalue", wantErr: true},
		{in: "=value", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			name, value, err := splitAssignment("--var", tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}
