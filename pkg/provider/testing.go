package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ContractTest defines a standard test suite that all providers must pass
type ContractTest struct {
	// CreateProvider creates a new instance of the provider to test
	CreateProvider func(t *testing.T) Provider

	// SetupTestSecret creates a test secret in the provider and returns the
	// name to fetch, the value it should resolve to and a cleanup function
	SetupTestSecret func(t *testing.T, p Provider) (name, value string, cleanup func())

	// MissingName is a name that is guaranteed not to exist. When empty a
	// timestamped name is used.
	MissingName string

	// SkipValidation skips the Validate check for providers that need live
	// credentials to validate.
	SkipValidation bool
}

// RunContractTests runs the standard provider contract test suite
func RunContractTests(t *testing.T, contract ContractTest) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Name", func(t *testing.T) {
			testProviderName(t, contract)
		})

		t.Run("Kind", func(t *testing.T) {
			testProviderKind(t, contract)
		})

		if !contract.SkipValidation {
			t.Run("Validate", func(t *testing.T) {
				testProviderValidate(t, contract)
			})
		}

		t.Run("Fetch", func(t *testing.T) {
			testProviderFetch(t, contract)
		})

		t.Run("FetchNotFound", func(t *testing.T) {
			testProviderFetchNotFound(t, contract)
		})

		t.Run("ContextCancellation", func(t *testing.T) {
			testProviderContextCancellation(t, contract)
		})
	})
}

func testProviderName(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)

	name := p.Name()
	if name == "" {
		t.Error("Provider.Name() returned empty string")
	}
	if name2 := p.Name(); name != name2 {
		t.Errorf("Provider.Name() not consistent: %q != %q", name, name2)
	}
}

func testProviderKind(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	if !p.Kind().Valid() {
		t.Errorf("Provider.Kind() returned unknown kind %d", int(p.Kind()))
	}
}

func testProviderValidate(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)

	done := make(chan error, 1)
	go func() {
		done <- p.Validate(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Provider.Validate() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Provider.Validate() timed out after 5 seconds")
	}
}

func testProviderFetch(t *testing.T, contract ContractTest) {
	if contract.SetupTestSecret == nil {
		t.Skip("SetupTestSecret not provided, skipping fetch test")
		return
	}

	p := contract.CreateProvider(t)
	name, want, cleanup := contract.SetupTestSecret(t, p)
	defer cleanup()

	got, err := p.Fetch(context.Background(), name)
	if err != nil {
		t.Fatalf("Provider.Fetch() failed: %v", err)
	}
	if got != want {
		t.Errorf("Provider.Fetch() = %q, want %q", got, want)
	}
}

func testProviderFetchNotFound(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)

	name := contract.MissingName
	if name == "" {
		name = "this-secret-definitely-does-not-exist-" + time.Now().Format("20060102150405")
	}

	value, err := p.Fetch(context.Background(), name)
	if err == nil {
		t.Fatalf("Provider.Fetch() should fail for non-existent name, got value of length %d", len(value))
	}
	if !IsNotFound(err) {
		t.Errorf("Provider.Fetch() returned %T (%v), want NotFoundError", err, err)
	}
}

func testProviderContextCancellation(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Fetch(ctx, "any-key")
	if err == nil {
		t.Error("Provider.Fetch() should fail with cancelled context")
		return
	}
	if !errors.Is(err, context.Canceled) {
		t.Logf("Provider returned error with cancelled context: %v", err)
	}
}
