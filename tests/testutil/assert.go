package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertNoSecretLeak verifies that none of the secret values appear in output.
//
// Example usage:
//
//	AssertNoSecretLeak(t, stderr, []string{"db-password", "api-token"})
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should not appear in output", secret)
	}
}

// AssertFileContents verifies that a file exists and contains exactly expected.
func AssertFileContents(t *testing.T, path string, expected string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if !assert.NoError(t, err, "Failed to read file %s", path) {
		return
	}
	assert.Equal(t, expected, string(data), "File contents mismatch for %s", path)
}

// AssertFileMode verifies the permission bits of a file.
func AssertFileMode(t *testing.T, path string, mode os.FileMode) {
	t.Helper()

	info, err := os.Stat(path)
	if !assert.NoError(t, err, "Failed to stat %s", path) {
		return
	}
	assert.Equal(t, mode, info.Mode().Perm(), "Unexpected permissions for %s", path)
}

// AssertErrorContains verifies that an error occurred and contains a substring.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	if assert.Error(t, err, "Expected an error to occur") {
		assert.Contains(t, err.Error(), substr,
			"Error message should contain %q", substr)
	}
}

// AssertLinesContain verifies that each expected fragment appears on some line of output.
//
// Example usage:
//
//	AssertLinesContain(t, planOutput, []string{"DATABASE_URL", "aws-secretsmanager"})
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	for _, expected := range expectedLines {
		found := false
		for _, line := range lines {
			if strings.Contains(line, expected) {
				found = true
				break
			}
		}
		assert.True(t, found, "Expected to find line containing %q in output", expected)
	}
}
