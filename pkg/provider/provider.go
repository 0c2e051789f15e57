// Package provider defines the secret store abstraction used by awsm-env.
//
// A directive in an annotated env file names a provider kind (Secrets Manager,
// Parameter Store, ...) and a resource name. The resolution pipeline never talks
// to a cloud SDK directly: it asks a Fetcher for the value of a (kind, name) pair
// and interprets the returned error.
//
// # Error Handling
//
// Providers should use the standard error types defined in this package:
//   - NotFoundError for missing secrets (the only non-fatal failure)
//   - AuthError for authentication failures
//   - Standard Go errors for everything else
//
// A missing secret must be reported as NotFoundError so that directives marked
// @optional can fall back to their default. Any other error is treated as an
// infrastructure failure and aborts the run.
//
// # Threading and Concurrency
//
// Fetchers are called from many goroutines at once and must be safe for
// concurrent use.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the secret store a directive refers to.
type Kind int

const (
	// SecretsManager is AWS Secrets Manager (@aws-sm, @aws).
	SecretsManager Kind = iota + 1
	// ParameterStore is AWS Systems Manager Parameter Store (@aws-ps).
	ParameterStore
	// GCPSecretManager is Google Cloud Secret Manager (@gcp-sm).
	GCPSecretManager
	// AzureKeyVault is Azure Key Vault (@azure-kv).
	AzureKeyVault
)

var kindTags = map[Kind]string{
	SecretsManager:   "aws-sm",
	ParameterStore:   "aws-ps",
	GCPSecretManager: "gcp-sm",
	AzureKeyVault:    "azure-kv",
}

var kindNames = map[Kind]string{
	SecretsManager:   "aws-secretsmanager",
	ParameterStore:   "aws-ssm",
	GCPSecretManager: "gcp-secretmanager",
	AzureKeyVault:    "azure-keyvault",
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{SecretsManager, ParameterStore, GCPSecretManager, AzureKeyVault}
}

// ParseKind maps a directive tag (without the leading '@') to a Kind.
// The single-provider tag "aws" is an alias for Secrets Manager.
func ParseKind(tag string) (Kind, error) {
	if tag == "aws" {
		return SecretsManager, nil
	}
	for k, t := range kindTags {
		if t == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown directive tag %q", "@"+tag)
}

// Tag returns the canonical directive tag for the kind.
func (k Kind) Tag() string {
	if t, ok := kindTags[k]; ok {
		return t
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// String returns the provider name used in logs, metrics and error messages.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return k.Tag()
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTags[k]
	return ok
}

// Fetcher retrieves the current value of a named secret from the store
// identified by kind.
//
// Implementations must return NotFoundError (or an error wrapping it) when the
// named secret does not exist.
type Fetcher interface {
	Fetch(ctx context.Context, kind Kind, name string) (string, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, kind Kind, name string) (string, error)

// Fetch calls f(ctx, kind, name).
func (f FetcherFunc) Fetch(ctx context.Context, kind Kind, name string) (string, error) {
	return f(ctx, kind, name)
}

// Provider is a client for a single secret store.
type Provider interface {
	// Name returns a human readable identifier for logs and diagnostics.
	Name() string

	// Kind returns the directive kind served by this provider.
	Kind() Kind

	// Fetch retrieves the current value of the named secret.
	//
	// Implementations should:
	//   - Return NotFoundError for missing secrets
	//   - Return AuthError for authentication failures
	//   - Support context cancellation
	//   - Never log the secret value
	Fetch(ctx context.Context, name string) (string, error)

	// Validate checks that the provider is configured and reachable without
	// reading any secret. Used by the doctor command.
	Validate(ctx context.Context) error
}

// NotFoundError indicates that the requested secret does not exist.
//
// Example:
//
//	if errors.As(err, &notFound) {
//	    return "", provider.NotFoundError{
//	        Provider: p.Name(),
//	        Key:      name,
//	    }
//	}
type NotFoundError struct {
	// Provider is the name of the provider where the secret was not found.
	Provider string

	// Key is the secret identifier that could not be found.
	Key string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "secret not found: " + e.Key + " in " + e.Provider
}

// AuthError indicates that authentication to the provider failed.
type AuthError struct {
	// Provider is the name of the provider that failed authentication.
	Provider string

	// Message provides details about the authentication failure.
	Message string
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for " + e.Provider + ": " + e.Message
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var nfp *NotFoundError
	return errors.As(err, &nfp)
}

// IsAuth reports whether err is, or wraps, an AuthError.
func IsAuth(err error) bool {
	var ae AuthError
	if errors.As(err, &ae) {
		return true
	}
	var aep *AuthError
	return errors.As(err, &aep)
}

// Tags returns the accepted directive tags, for help text.
func Tags() string {
	tags := []string{"@aws"}
	for _, k := range Kinds() {
		tags = append(tags, "@"+k.Tag())
	}
	return strings.Join(tags, ", ")
}
