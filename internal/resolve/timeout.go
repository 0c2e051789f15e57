package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/pkg/provider"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// withFetchTimeout creates a context with timeout for one provider call
func withFetchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError wraps err with a suggestion when the fetch ran out of time.
// Cancellation of the parent context is returned unchanged.
func timeoutError(parent context.Context, err error, kind provider.Kind, timeout time.Duration) error {
	if !errors.Is(err, context.DeadlineExceeded) || parent.Err() != nil {
		return err
	}
	return dserrors.UserError{
		Message:    "Provider operation timed out",
		Details:    fmt.Sprintf("Operation exceeded %dms timeout", timeout.Milliseconds()),
		Suggestion: timeoutSuggestion(kind, timeout),
		Err:        err,
	}
}

// timeoutSuggestion provides helpful suggestions for timeout errors
func timeoutSuggestion(kind provider.Kind, timeout time.Duration) string {
	short := timeout < 5*time.Second

	switch kind {
	case provider.SecretsManager, provider.ParameterStore:
		if short {
			return "AWS API can be slow. Try --timeout-ms 10000"
		}
		return "Check AWS connectivity and credentials. Verify the region is correct"
	case provider.GCPSecretManager:
		if short {
			return "Google Cloud API can be slow. Try --timeout-ms 10000"
		}
		return "Check Google Cloud connectivity and authentication"
	case provider.AzureKeyVault:
		if short {
			return "Azure API can be slow. Try --timeout-ms 10000"
		}
		return "Check Azure connectivity and the vault URL"
	}
	return "Check network connectivity and provider authentication. Consider raising --timeout-ms"
}
