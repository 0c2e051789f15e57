package providers

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/systmms/awsmenv/internal/config"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/pkg/provider"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretManagerClientAPI defines the Secret Manager operations used by the provider.
// *secretmanager.Client satisfies it.
type GCPSecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// GCPSecretManagerProvider serves @gcp-sm directives.
type GCPSecretManagerProvider struct {
	name      string
	client    GCPSecretManagerClientAPI
	projectID string
}

// GCPProviderOption is a functional option for configuring the GCP provider
type GCPProviderOption func(*GCPSecretManagerProvider)

// WithGCPSecretManagerClient sets a custom Secret Manager client (for testing)
func WithGCPSecretManagerClient(client GCPSecretManagerClientAPI) GCPProviderOption {
	return func(p *GCPSecretManagerProvider) {
		p.client = client
	}
}

// NewGCPSecretManagerProvider creates a Secret Manager provider.
// The project falls back to GOOGLE_CLOUD_PROJECT, GCLOUD_PROJECT or GCP_PROJECT.
func NewGCPSecretManagerProvider(ctx context.Context, cfg config.GCPConfig, opts ...GCPProviderOption) (*GCPSecretManagerProvider, error) {
	p := &GCPSecretManagerProvider{
		name:      provider.GCPSecretManager.String(),
		projectID: cfg.ProjectID,
	}
	if p.projectID == "" {
		p.projectID = gcpProjectFromEnv()
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		var clientOptions []option.ClientOption
		if cfg.CredentialsFile != "" {
			path, err := expandHome(cfg.CredentialsFile)
			if err != nil {
				return nil, err
			}
			clientOptions = append(clientOptions, option.WithCredentialsFile(path))
		}
		if cfg.Endpoint != "" {
			clientOptions = append(clientOptions, option.WithEndpoint(cfg.Endpoint))
		}

		client, err := secretmanager.NewClient(ctx, clientOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		p.client = client
	}

	return p, nil
}

func gcpProjectFromEnv() string {
	for _, key := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Name returns the provider name
func (p *GCPSecretManagerProvider) Name() string {
	return p.name
}

// Kind returns provider.GCPSecretManager
func (p *GCPSecretManagerProvider) Kind() provider.Kind {
	return provider.GCPSecretManager
}

// ResourceName expands a directive name into a secret version resource name:
//
//	projects/p/secrets/s                -> projects/p/secrets/s/versions/latest
//	projects/p/secrets/s/versions/3     -> unchanged
//	db-password                         -> projects/<project>/secrets/db-password/versions/latest
//	db-password@7                       -> projects/<project>/secrets/db-password/versions/7
func (p *GCPSecretManagerProvider) ResourceName(name string) (string, error) {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name, nil
		}
		return name + "/versions/latest", nil
	}

	secret, version := name, "latest"
	if i := strings.LastIndex(name, "@"); i > 0 && i < len(name)-1 {
		secret, version = name[:i], name[i+1:]
	}

	if p.projectID == "" {
		return "", dserrors.ConfigError{
			Field:      "gcp.project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set gcp.project_id in the config file or GOOGLE_CLOUD_PROJECT, or use a full projects/... name",
		}
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", p.projectID, secret, version), nil
}

// Fetch accesses the secret version and verifies its payload checksum
func (p *GCPSecretManagerProvider) Fetch(ctx context.Context, name string) (string, error) {
	resource, err := p.ResourceName(name)
	if err != nil {
		return "", err
	}

	result, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", p.handleError(ctx, err, name)
	}

	payload := result.GetPayload()
	if payload == nil {
		return "", fmt.Errorf("secret %q has no payload", resource)
	}
	if sum := payload.DataCrc32C; sum != nil {
		if crc32.Checksum(payload.GetData(), crc32.MakeTable(crc32.Castagnoli)) != uint32(*sum) {
			return "", fmt.Errorf("secret %q failed checksum verification", resource)
		}
	}
	return string(payload.GetData()), nil
}

// Validate probes a secret that should not exist. NotFound proves the
// credentials and project are usable without reading any real secret.
func (p *GCPSecretManagerProvider) Validate(ctx context.Context) error {
	resource, err := p.ResourceName("awsm-env-doctor-probe")
	if err != nil {
		return err
	}
	_, err = p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err == nil || status.Code(err) == codes.NotFound {
		return nil
	}
	return dserrors.UserError{
		Message:    "Failed to connect to GCP Secret Manager",
		Details:    err.Error(),
		Suggestion: gcpErrorSuggestion(err),
		Err:        err,
	}
}

// Close releases the underlying gRPC connection
func (p *GCPSecretManagerProvider) Close() error {
	return p.client.Close()
}

func (p *GCPSecretManagerProvider) handleError(ctx context.Context, err error, name string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return provider.NotFoundError{Provider: p.name, Key: name}
	case codes.PermissionDenied, codes.Unauthenticated:
		return provider.AuthError{
			Provider: p.name,
			Message:  fmt.Sprintf("%v. %s", err, gcpErrorSuggestion(err)),
		}
	}
	return contextError(ctx, fmt.Errorf("GCP Secret Manager error: %w", err))
}

// gcpErrorSuggestion provides helpful suggestions based on GCP errors
func gcpErrorSuggestion(err error) string {
	switch status.Code(err) {
	case codes.PermissionDenied:
		return "Check IAM permissions: secretmanager.versions.access"
	case codes.Unauthenticated:
		return "Check authentication: set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'"
	case codes.InvalidArgument:
		return "Check the secret name and the @version suffix"
	case codes.ResourceExhausted:
		return "Request was throttled. Lower --concurrency or requests_per_second"
	default:
		return "Check GCP credentials, project ID, and IAM permissions for Secret Manager"
	}
}
