package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/systmms/awsmenv/internal/config"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/pkg/provider"
)

const keyVaultScope = "https://vault.azure.net/.default"

// AzureKeyVaultClientAPI defines the Key Vault operation used by the provider.
// This allows for mocking in tests
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureClientFactory creates a client for one vault URL.
type AzureClientFactory func(vaultURL string) (AzureKeyVaultClientAPI, error)

// AzureKeyVaultProvider serves @azure-kv directives. Names are either a bare
// secret name, read from the configured vault_url, or <vault>/<secret>.
type AzureKeyVaultProvider struct {
	name       string
	vaultURL   string
	credential azcore.TokenCredential
	newClient  AzureClientFactory

	mu      sync.Mutex
	clients map[string]AzureKeyVaultClientAPI
}

// AzureProviderOption is a functional option for configuring Azure providers
type AzureProviderOption func(*AzureKeyVaultProvider)

// WithAzureClientFactory sets a custom client factory (for testing)
func WithAzureClientFactory(factory AzureClientFactory) AzureProviderOption {
	return func(p *AzureKeyVaultProvider) {
		p.newClient = factory
	}
}

// NewAzureKeyVaultProvider creates a Key Vault provider authenticated with
// DefaultAzureCredential (environment, workload identity, managed identity, Azure CLI).
func NewAzureKeyVaultProvider(cfg config.AzureConfig, opts ...AzureProviderOption) (*AzureKeyVaultProvider, error) {
	p := &AzureKeyVaultProvider{
		name:     provider.AzureKeyVault.String(),
		vaultURL: cfg.VaultURL,
		clients:  make(map[string]AzureKeyVaultClientAPI),
	}

	if p.vaultURL != "" {
		if u, err := url.Parse(p.vaultURL); err != nil || u.Scheme != "https" || u.Host == "" {
			return nil, dserrors.ConfigError{
				Field:      "azure.vault_url",
				Value:      p.vaultURL,
				Message:    "invalid vault_url format",
				Suggestion: "Use format: https://vault-name.vault.azure.net/",
			}
		}
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.newClient == nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		p.credential = cred
		p.newClient = func(vaultURL string) (AzureKeyVaultClientAPI, error) {
			return azsecrets.NewClient(vaultURL, cred, nil)
		}
	}

	return p, nil
}

// Name returns the provider name
func (p *AzureKeyVaultProvider) Name() string {
	return p.name
}

// Kind returns provider.AzureKeyVault
func (p *AzureKeyVaultProvider) Kind() provider.Kind {
	return provider.AzureKeyVault
}

// Locate splits a directive name into a vault URL and secret name.
func (p *AzureKeyVaultProvider) Locate(name string) (vaultURL, secret string, err error) {
	parts := strings.Split(name, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		if p.vaultURL == "" {
			return "", "", dserrors.ConfigError{
				Field:      "azure.vault_url",
				Message:    fmt.Sprintf("no vault for secret %q", name),
				Suggestion: "Set azure.vault_url in the config file or write the name as <vault>/<secret>",
			}
		}
		return p.vaultURL, parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return fmt.Sprintf("https://%s.vault.azure.net/", parts[0]), parts[1], nil
	}
	return "", "", fmt.Errorf("invalid Azure Key Vault secret name %q (use <secret> or <vault>/<secret>)", name)
}

func (p *AzureKeyVaultProvider) client(vaultURL string) (AzureKeyVaultClientAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[vaultURL]; ok {
		return c, nil
	}
	c, err := p.newClient(vaultURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client for %s: %w", vaultURL, err)
	}
	p.clients[vaultURL] = c
	return c, nil
}

// Fetch returns the latest version of the secret
func (p *AzureKeyVaultProvider) Fetch(ctx context.Context, name string) (string, error) {
	vaultURL, secret, err := p.Locate(name)
	if err != nil {
		return "", err
	}
	c, err := p.client(vaultURL)
	if err != nil {
		return "", err
	}

	resp, err := c.GetSecret(ctx, secret, "", nil)
	if err != nil {
		return "", p.handleError(ctx, err, name)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %q has no value", name)
	}
	return *resp.Value, nil
}

// Validate probes a secret that should not exist in the configured vault;
// a 404 proves access. Without a default vault only a token is requested.
func (p *AzureKeyVaultProvider) Validate(ctx context.Context) error {
	if p.vaultURL == "" {
		if p.credential == nil {
			return nil
		}
		if _, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{keyVaultScope}}); err != nil {
			return provider.AuthError{Provider: p.name, Message: err.Error()}
		}
		return nil
	}

	c, err := p.client(p.vaultURL)
	if err != nil {
		return err
	}
	_, err = c.GetSecret(ctx, "awsm-env-doctor-probe", "", nil)
	if err == nil || azureStatus(err) == http.StatusNotFound {
		return nil
	}
	return dserrors.UserError{
		Message:    "Failed to connect to Azure Key Vault",
		Details:    azureErrorSummary(err),
		Suggestion: azureErrorSuggestion(err),
		Err:        err,
	}
}

func (p *AzureKeyVaultProvider) handleError(ctx context.Context, err error, name string) error {
	switch azureStatus(err) {
	case http.StatusNotFound:
		return provider.NotFoundError{Provider: p.name, Key: name}
	case http.StatusUnauthorized, http.StatusForbidden:
		return provider.AuthError{
			Provider: p.name,
			Message:  fmt.Sprintf("%s. %s", azureErrorSummary(err), azureErrorSuggestion(err)),
		}
	}
	return contextError(ctx, fmt.Errorf("Azure Key Vault error: %w", err))
}

// azureStatus returns the HTTP status of an azcore.ResponseError, or 0.
func azureStatus(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func azureErrorSummary(err error) string {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return fmt.Sprintf("%d %s", respErr.StatusCode, respErr.ErrorCode)
	}
	return err.Error()
}

// azureErrorSuggestion provides helpful suggestions based on Azure errors
func azureErrorSuggestion(err error) string {
	switch azureStatus(err) {
	case http.StatusForbidden:
		return "Check Key Vault access policies or RBAC: 'Get' permission is required for secrets"
	case http.StatusUnauthorized:
		return "Check authentication: verify managed identity, service principal, or Azure CLI login"
	case http.StatusTooManyRequests:
		return "Request was throttled. Lower --concurrency or requests_per_second"
	default:
		return "Check Azure credentials, Key Vault URL, and access policies"
	}
}
