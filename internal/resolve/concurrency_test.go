package resolve_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/resolve"
	"github.com/systmms/awsmenv/pkg/provider"
	"github.com/systmms/awsmenv/tests/fakes"
)

// TestOrderStableUnderReverseLatency checks that the last declaration
// finishing first does not change the output order.
func TestOrderStableUnderReverseLatency(t *testing.T) {
	t.Parallel()

	const n = 8
	var b strings.Builder
	f := fakes.NewFakeFetcher()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("svc/secret-%d", i)
		fmt.Fprintf(&b, "# @aws-sm %s\nKEY_%d=\n", name, i)
		f.WithSecret(provider.SecretsManager, name, fmt.Sprintf("value-%d", i))
		f.WithDelay(provider.SecretsManager, name, time.Duration(n-i)*15*time.Millisecond)
	}

	result, err := newResolver().Resolve(context.Background(), declarations(t, b.String()), f, defaults())
	require.NoError(t, err)

	got := result.Entries()
	require.Len(t, got, n)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("KEY_%d", i), e.Key)
		assert.Equal(t, fmt.Sprintf("value-%d", i), e.Value)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}
	t.Parallel()

	const n = 12
	var b strings.Builder
	f := fakes.NewFakeFetcher()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("p/%d", i)
		fmt.Fprintf(&b, "# @aws-ps %s\nK%d=\n", name, i)
		f.WithSecret(provider.ParameterStore, name, "v")
		f.WithDelay(provider.ParameterStore, name, 20*time.Millisecond)
	}

	r := newResolver(resolve.WithConcurrency(3))
	_, err := r.Resolve(context.Background(), declarations(t, b.String()), f, defaults())
	require.NoError(t, err)

	assert.Equal(t, n, f.TotalCalls())
	assert.LessOrEqual(t, f.MaxConcurrent(), 3)
	assert.Greater(t, f.MaxConcurrent(), 1)
}

func TestFetchesRunConcurrently(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}
	t.Parallel()

	const n = 10
	var b strings.Builder
	f := fakes.NewFakeFetcher()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("s/%d", i)
		fmt.Fprintf(&b, "# @aws-sm %s\nK%d=\n", name, i)
		f.WithSecret(provider.SecretsManager, name, "v")
		f.WithDelay(provider.SecretsManager, name, 100*time.Millisecond)
	}

	start := time.Now()
	_, err := newResolver().Resolve(context.Background(), declarations(t, b.String()), f, defaults())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 600*time.Millisecond)
}

// TestFatalErrorStopsNewFetches checks that after the first fatal error no
// queued fetch starts.
func TestFatalErrorStopsNewFetches(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	f := fakes.NewFakeFetcher()
	b.WriteString("# @aws-sm bad\nBAD=\n")
	f.WithError(provider.SecretsManager, "bad", errors.New("connection refused"))
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("slow/%d", i)
		fmt.Fprintf(&b, "# @aws-sm %s\nK%d=\n", name, i)
		f.WithSecret(provider.SecretsManager, name, "v")
		f.WithDelay(provider.SecretsManager, name, 200*time.Millisecond)
	}

	r := newResolver(resolve.WithConcurrency(2))
	start := time.Now()
	result, err := r.Resolve(context.Background(), declarations(t, b.String()), f, defaults())
	require.Error(t, err)
	assert.Nil(t, result)

	var perr *resolve.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "BAD", perr.Key)

	assert.Less(t, f.TotalCalls(), 21)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestParentCancellation(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeFetcher().
		WithSecret(provider.SecretsManager, "slow", "v").
		WithDelay(provider.SecretsManager, "slow", 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := newResolver().Resolve(ctx, declarations(t, "# @aws-sm slow\nK=\n"), f, defaults())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeFetcher().
		WithSecret(provider.ParameterStore, "slow", "v").
		WithDelay(provider.ParameterStore, "slow", 2*time.Second)

	r := newResolver(resolve.WithTimeout(30 * time.Millisecond))
	_, err := r.Resolve(context.Background(), declarations(t, "# @aws-ps slow @optional\nK=d\n"), f, defaults())
	require.Error(t, err)

	var perr *resolve.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Provider operation timed out", userErr.Message)
	assert.Contains(t, userErr.Details, "30ms")
	assert.Contains(t, userErr.Suggestion, "--timeout-ms")
}

func TestZeroTimeoutDisablesDeadline(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeFetcher().
		WithSecret(provider.SecretsManager, "s", "v").
		WithDelay(provider.SecretsManager, "s", 20*time.Millisecond)

	r := newResolver(resolve.WithTimeout(0), resolve.WithConcurrency(0))
	result, err := r.Resolve(context.Background(), declarations(t, "# @aws-sm s\nK=\n"), f, defaults())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Len())
}
