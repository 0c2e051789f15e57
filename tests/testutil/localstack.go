package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/systmms/awsmenv/internal/config"
)

// LocalStackEndpointEnv names the variable holding a running LocalStack
// endpoint, e.g. http://localhost:4566.
const LocalStackEndpointEnv = "AWSM_ENV_LOCALSTACK_ENDPOINT"

// LocalStack seeds Secrets Manager and Parameter Store in a LocalStack
// instance for integration tests.
type LocalStack struct {
	Endpoint string

	secretsManager *secretsmanager.Client
	ssm            *ssm.Client
}

// RequireLocalStack returns a LocalStack client, skipping the test when no
// endpoint is configured.
func RequireLocalStack(t *testing.T) *LocalStack {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping LocalStack test in short mode")
	}
	endpoint := os.Getenv(LocalStackEndpointEnv)
	if endpoint == "" {
		t.Skipf("%s not set", LocalStackEndpointEnv)
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	return &LocalStack{
		Endpoint: endpoint,
		secretsManager: secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}),
		ssm: ssm.NewFromConfig(cfg, func(o *ssm.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}),
	}
}

// AWSConfig returns provider settings pointing at this LocalStack instance.
func (l *LocalStack) AWSConfig() config.AWSConfig {
	return config.AWSConfig{
		Region:          "us-east-1",
		Endpoint:        l.Endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
}

// CreateSecret creates a Secrets Manager secret and deletes it when the test ends.
func (l *LocalStack) CreateSecret(t *testing.T, name, value string) {
	t.Helper()

	ctx := context.Background()
	_, err := l.secretsManager.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		t.Fatalf("failed to create secret %s: %v", name, err)
	}

	t.Cleanup(func() {
		_, _ = l.secretsManager.DeleteSecret(context.Background(), &secretsmanager.DeleteSecretInput{
			SecretId:                   aws.String(name),
			ForceDeleteWithoutRecovery: aws.Bool(true),
		})
	})
}

// PutParameter stores a SecureString parameter and deletes it when the test ends.
func (l *LocalStack) PutParameter(t *testing.T, name, value string) {
	t.Helper()

	_, err := l.ssm.PutParameter(context.Background(), &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to put parameter %s: %v", name, err)
	}

	t.Cleanup(func() {
		_, _ = l.ssm.DeleteParameter(context.Background(), &ssm.DeleteParameterInput{Name: aws.String(name)})
	})
}

// UniqueName returns a resource name unique to the running test.
func UniqueName(t *testing.T, prefix string) string {
	t.Helper()
	return fmt.Sprintf("%s-%d", prefix, os.Getpid()) + "/" + sanitizeTestName(t.Name())
}

func sanitizeTestName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
