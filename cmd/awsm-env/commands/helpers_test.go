package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/systmms/awsmenv/internal/config"
	"github.com/systmms/awsmenv/internal/providers"
	"github.com/systmms/awsmenv/pkg/provider"
	"github.com/systmms/awsmenv/tests/fakes"
)

const testAccount = "123456789012"

// newTestRuntime returns a runtime whose registry serves only the given fake
// providers. Kinds without a fake fail to initialize.
func newTestRuntime(fakeProviders ...provider.Provider) *Runtime {
	rt := NewRuntime()
	for _, k := range provider.Kinds() {
		kind := k
		rt.RegistryOptions = append(rt.RegistryOptions, providers.WithFactory(kind,
			func(context.Context, *config.Definition) (provider.Provider, error) {
				return nil, errNoFake{kind: kind}
			}))
	}
	for _, p := range fakeProviders {
		rt.RegistryOptions = append(rt.RegistryOptions, providers.WithProvider(p))
	}
	rt.NewSTSClient = func(context.Context, config.AWSConfig) (providers.STSClientAPI, error) {
		return &fakes.FakeSTSClient{
			Account: testAccount,
			ARN:     "arn:aws:iam::" + testAccount + ":user/dev",
			UserID:  "AIDAEXAMPLE",
		}, nil
	}
	return rt
}

type errNoFake struct{ kind provider.Kind }

func (e errNoFake) Error() string { return "no fake configured for " + e.kind.String() }

// executeCommand runs the root command with args and returns stdout and stderr.
func executeCommand(t *testing.T, rt *Runtime, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand(rt)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--no-color"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
