// Package e2e provides end-to-end workflow tests for awsm-env.
//
// These tests run the complete pipeline from configuration loading through
// parsing, resolution against the real provider implementations (backed by
// in-memory SDK clients) and rendering.
package e2e

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/awsmenv/internal/config"
	"github.com/systmms/awsmenv/internal/dotenv"
	"github.com/systmms/awsmenv/internal/envmap"
	"github.com/systmms/awsmenv/internal/metrics"
	"github.com/systmms/awsmenv/internal/providers"
	"github.com/systmms/awsmenv/internal/render"
	"github.com/systmms/awsmenv/internal/resolve"
	"github.com/systmms/awsmenv/pkg/provider"
	"github.com/systmms/awsmenv/tests/fakes"
	"github.com/systmms/awsmenv/tests/testutil"
)

type clients struct {
	sm    *fakes.FakeSecretsManagerClient
	ssm   *fakes.FakeSSMClient
	gcp   *fakes.FakeGCPSecretManagerClient
	azure *fakes.FakeAzureKeyVaultClient
}

func newClients() *clients {
	return &clients{
		sm:    fakes.NewFakeSecretsManagerClient(),
		ssm:   fakes.NewFakeSSMClient(),
		gcp:   fakes.NewFakeGCPSecretManagerClient(),
		azure: fakes.NewFakeAzureKeyVaultClient(),
	}
}

// registry builds the real providers from def, with SDK clients replaced by fakes.
func (c *clients) registry(def *config.Definition, logger *testutil.TestLogger) *providers.Registry {
	return providers.NewRegistry(def, logger.Logger,
		providers.WithFactory(provider.SecretsManager, func(ctx context.Context, d *config.Definition) (provider.Provider, error) {
			return providers.NewAWSSecretsManagerProvider(ctx, d.AWS, providers.WithSecretsManagerClient(c.sm))
		}),
		providers.WithFactory(provider.ParameterStore, func(ctx context.Context, d *config.Definition) (provider.Provider, error) {
			return providers.NewAWSSSMProvider(ctx, d.AWS, d.SSM, providers.WithSSMClient(c.ssm))
		}),
		providers.WithFactory(provider.GCPSecretManager, func(ctx context.Context, d *config.Definition) (provider.Provider, error) {
			return providers.NewGCPSecretManagerProvider(ctx, d.GCP, providers.WithGCPSecretManagerClient(c.gcp))
		}),
		providers.WithFactory(provider.AzureKeyVault, func(_ context.Context, d *config.Definition) (provider.Provider, error) {
			return providers.NewAzureKeyVaultProvider(d.Azure, providers.WithAzureClientFactory(
				func(string) (providers.AzureKeyVaultClientAPI, error) { return c.azure, nil },
			))
		}),
	)
}

const multiProviderSpec = `
	# Database connection
	# @aws-sm $environment/db-url
	DATABASE_URL=postgres://localhost/dev

	# @aws-ps $environment/api-token
	export API_TOKEN='local-token'

	# @gcp-sm analytics-key@3 @optional
	ANALYTICS_KEY=

	# @azure-kv signing-key
	SIGNING_KEY="dev \"signing\" key"

	LOG_LEVEL=debug
`

func TestWorkflowConfigParseResolveRender(t *testing.T) {
	t.Parallel()

	configPath := testutil.WriteConfig(t, `
		placeholders:
		  environment: staging
		ssm:
		  parameter_prefix: /app
		gcp:
		  project_id: acme
		azure:
		  vault_url: https://acme.vault.azure.net/
	`)
	def := testutil.LoadConfig(t, configPath)
	require.Equal(t, "/app", def.SSM.ParameterPrefix)

	doc, err := dotenv.ParseFile(testutil.WriteSpec(t, multiProviderSpec))
	require.NoError(t, err)
	require.Len(t, doc.Declarations, 5)

	c := newClients()
	c.sm.AddSecretString("staging/db-url", "postgres://db.internal/app")
	c.ssm.AddParameter("/app/staging/api-token", "tok-123")
	c.gcp.AddSecretVersion("acme", "analytics-key", "3", "ak-3")
	c.azure.AddSecretString("signing-key", "sk-azure")

	logger := testutil.NewTestLogger(t)
	reg := c.registry(def, logger)
	defer func() { _ = reg.Close() }()

	rec := metrics.New()
	result, err := resolve.New(logger.Logger, resolve.WithMetrics(rec)).Resolve(context.Background(), doc.Declarations, reg, resolve.Params{
		Placeholders: def.Placeholders,
		Overrides:    envmap.FromPairs("EXTRA", "1"),
		UseDefaults:  def.UsesDefaults(),
	})
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"DATABASE_URL", "API_TOKEN", "ANALYTICS_KEY", "SIGNING_KEY", "LOG_LEVEL", "EXTRA"},
		result.Values().Keys())

	var rendered map[string]string
	require.NoError(t, json.Unmarshal([]byte(render.Render(result.Values(), render.FormatJSON)), &rendered))
	assert.Equal(t, map[string]string{
		"DATABASE_URL":  "postgres://db.internal/app",
		"API_TOKEN":     "tok-123",
		"ANALYTICS_KEY": "ak-3",
		"SIGNING_KEY":   "sk-azure",
		"LOG_LEVEL":     "debug",
		"EXTRA":         "1",
	}, rendered)

	assert.True(t, c.ssm.Decrypted("/app/staging/api-token"))
	assert.Contains(t, c.gcp.Requested(), "projects/acme/secrets/analytics-key/versions/3")

	require.NoError(t, reg.Close())
	assert.True(t, c.gcp.Closed())

	testutil.AssertNoSecretLeak(t, logger.GetOutput(), []string{"postgres://db.internal/app", "tok-123", "sk-azure"})
}

func TestWorkflowOptionalMissingAcrossProviders(t *testing.T) {
	t.Parallel()

	def := &config.Definition{
		GCP:   config.GCPConfig{ProjectID: "acme"},
		Azure: config.AzureConfig{VaultURL: "https://acme.vault.azure.net/"},
	}
	doc, err := dotenv.Parse([]byte("" +
		"# @gcp-sm missing-one @optional\n" +
		"GCP_VALUE=gcp-default\n" +
		"# @azure-kv other-vault/missing-two @optional\n" +
		"AZURE_VALUE=azure-default\n"))
	require.NoError(t, err)

	c := newClients()
	logger := testutil.NewTestLogger(t)
	reg := c.registry(def, logger)

	t.Run("defaults used", func(t *testing.T) {
		result, err := resolve.New(logger.Logger).Resolve(context.Background(), doc.Declarations, reg, resolve.Params{UseDefaults: true})
		require.NoError(t, err)
		assert.Equal(t, "GCP_VALUE=\"gcp-default\"\nAZURE_VALUE=\"azure-default\"\n", render.Render(result.Values(), render.FormatEnv))
		logger.AssertLogCount(t, "warn", 2)
		logger.AssertContains(t, "using default")
	})

	t.Run("omitted without defaults", func(t *testing.T) {
		logger.Clear()
		result, err := resolve.New(logger.Logger).Resolve(context.Background(), doc.Declarations, reg, resolve.Params{})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Len())
		assert.Equal(t, "{}\n", render.Render(result.Values(), render.FormatJSON))

		lines := logger.Lines()
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "omitting key")
		logger.AssertNotContains(t, "using default")
	})
}

func TestWorkflowProviderFailureIsFatal(t *testing.T) {
	t.Parallel()

	doc, err := dotenv.Parse([]byte("# @aws-sm prod/db @optional\nDB=local\nPLAIN=1\n"))
	require.NoError(t, err)

	c := newClients()
	c.sm.AddError("prod/db", fakes.AWSAPIError("AccessDeniedException", "not authorized"))

	reg := c.registry(&config.Definition{}, testutil.NewTestLogger(t))
	result, err := resolve.New(nil).Resolve(context.Background(), doc.Declarations, reg, resolve.Params{UseDefaults: true})
	require.Error(t, err)
	assert.Nil(t, result)

	var providerErr *resolve.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "DB", providerErr.Key)
	assert.True(t, provider.IsAuth(err))
}
