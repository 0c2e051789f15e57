package providers_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/awsmenv/internal/config"
	"github.com/systmms/awsmenv/internal/providers"
	"github.com/systmms/awsmenv/pkg/provider"
	"github.com/systmms/awsmenv/tests/fakes"
)

func newSecretsManager(t *testing.T, client providers.SecretsManagerClientAPI) *providers.AWSSecretsManagerProvider {
	t.Helper()
	p, err := providers.NewAWSSecretsManagerProvider(context.Background(), config.AWSConfig{},
		providers.WithSecretsManagerClient(client))
	require.NoError(t, err)
	return p
}

func TestAWSSecretsManagerProvider_Fetch(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	client.AddSecretString("prod/db-url", "postgres://prod")
	client.AddSecretString("prod/empty", "")
	client.AddSecretBinary("prod/cert", []byte("-----BEGIN CERT-----"))
	client.AddError("prod/denied", fakes.AWSAPIError("AccessDeniedException", "not authorized"))
	client.AddError("prod/throttled", fakes.AWSAPIError("ThrottlingException", "rate exceeded"))

	p := newSecretsManager(t, client)
	assert.Equal(t, "aws-secretsmanager", p.Name())
	assert.Equal(t, provider.SecretsManager, p.Kind())

	tests := []struct {
		name     string
		secret   string
		want     string
		checkErr func(t *testing.T, err error)
	}{
		{name: "string secret", secret: "prod/db-url", want: "postgres://prod"},
		{name: "empty string secret", secret: "prod/empty", want: ""},
		{name: "binary secret as text", secret: "prod/cert", want: "-----BEGIN CERT-----"},
		{
			name:   "missing secret",
			secret: "prod/missing",
			checkErr: func(t *testing.T, err error) {
				assert.True(t, provider.IsNotFound(err))
				assert.Equal(t, "secret not found: prod/missing in aws-secretsmanager", err.Error())
			},
		},
		{
			name:   "access denied",
			secret: "prod/denied",
			checkErr: func(t *testing.T, err error) {
				assert.True(t, provider.IsAuth(err))
				assert.False(t, provider.IsNotFound(err))
			},
		},
		{
			name:   "other API error",
			secret: "prod/throttled",
			checkErr: func(t *testing.T, err error) {
				assert.False(t, provider.IsNotFound(err))
				assert.False(t, provider.IsAuth(err))
				assert.Contains(t, err.Error(), "AWS Secrets Manager error")
				assert.Contains(t, err.Error(), "ThrottlingException")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.Fetch(context.Background(), tt.secret)
			if tt.checkErr != nil {
				require.Error(t, err)
				tt.checkErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAWSSecretsManagerProvider_CancelledContext(t *testing.T) {
	t.Parallel()

	p := newSecretsManager(t, fakes.NewFakeSecretsManagerClient())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Fetch(ctx, "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, provider.IsNotFound(err))
}

func TestAWSSecretsManagerProvider_Validate(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	p := newSecretsManager(t, client)
	require.NoError(t, p.Validate(context.Background()))

	client.ListErr = errors.New("no credentials")
	err := p.Validate(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsAuth(err))
}

// TestAWSSecretsManagerProviderLive reads a real secret.
//
// Requires AWS credentials and AWSM_ENV_TEST_AWS=1 plus
// AWSM_ENV_TEST_SECRET=<name> and AWSM_ENV_TEST_SECRET_VALUE=<value>.
func TestAWSSecretsManagerProviderLive(t *testing.T) {
	if os.Getenv("AWSM_ENV_TEST_AWS") != "1" {
		t.Skip("Skipping AWS Secrets Manager integration test. Set AWSM_ENV_TEST_AWS=1 to run.")
	}
	name, want := os.Getenv("AWSM_ENV_TEST_SECRET"), os.Getenv("AWSM_ENV_TEST_SECRET_VALUE")
	if name == "" {
		t.Skip("AWSM_ENV_TEST_SECRET not set")
	}

	p, err := providers.NewAWSSecretsManagerProvider(context.Background(), config.AWSConfig{
		Region:   os.Getenv("AWS_REGION"),
		Endpoint: os.Getenv("AWSM_ENV_TEST_ENDPOINT"),
	})
	require.NoError(t, err)

	got, err := p.Fetch(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
