package fakes

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient is an in-memory client for a single vault.
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex
	// Secrets maps secret names to values
	Secrets map[string]string
	// Errors maps secret names to errors to return
	Errors map[string]error

	calls int
}

// NewFakeAzureKeyVaultClient creates an empty fake.
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// AddSecretString adds a secret.
func (f *FakeAzureKeyVaultClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddError makes reads of name fail with err.
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Calls returns the number of GetSecret calls.
func (f *FakeAzureKeyVaultClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// GetSecret mocks the GetSecret operation.
func (f *FakeAzureKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if err := ctx.Err(); err != nil {
		return azsecrets.GetSecretResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	v, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError(name)
	}
	id := azsecrets.ID("https://test-vault.vault.azure.net/secrets/" + name + "/v1")
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{ID: &id, Value: to.Ptr(v)},
	}, nil
}

func azureResponseError(status int, code, path string) error {
	u := &url.URL{Scheme: "https", Host: "test-vault.vault.azure.net", Path: path}
	return &azcore.ResponseError{
		StatusCode: status,
		ErrorCode:  code,
		RawResponse: &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     http.Header{},
			Request:    &http.Request{Method: http.MethodGet, URL: u},
		},
	}
}

// AzureNotFoundError creates a 404 response error.
func AzureNotFoundError(secretName string) error {
	return azureResponseError(http.StatusNotFound, "SecretNotFound", "/secrets/"+secretName)
}

// AzureForbiddenError creates a 403 response error.
func AzureForbiddenError(secretName string) error {
	return azureResponseError(http.StatusForbidden, "Forbidden", "/secrets/"+secretName)
}

// AzureUnauthorizedError creates a 401 response error.
func AzureUnauthorizedError(secretName string) error {
	return azureResponseError(http.StatusUnauthorized, "Unauthorized", "/secrets/"+secretName)
}

// AzureThrottledError creates a 429 response error.
func AzureThrottledError() error {
	return azureResponseError(http.StatusTooManyRequests, "TooManyRequests", "/secrets")
}
