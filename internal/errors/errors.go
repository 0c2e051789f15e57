package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderSuggestion returns a hint for a provider failure, or "" when none applies
func ProviderSuggestion(provider string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch provider {
	case "aws-secretsmanager", "aws-ssm", "aws":
		if strings.Contains(errStr, "AccessDenied") {
			if provider == "aws-ssm" {
				return "Check IAM permissions for ssm:GetParameter (and kms:Decrypt for SecureString parameters)"
			}
			return "Check IAM permissions for secretsmanager:GetSecretValue"
		}
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") ||
			strings.Contains(errStr, "ExpiredToken") {
			return "Configure AWS credentials: 'aws configure', 'aws sso login' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}
		if strings.Contains(errStr, "ParameterNotFound") {
			return "Verify the parameter name and region. List parameters with: 'aws ssm describe-parameters'"
		}
		if strings.Contains(errStr, "ThrottlingException") || strings.Contains(errStr, "Rate exceeded") {
			return "AWS rate limit exceeded. Lower --concurrency or requests_per_second and try again"
		}

	case "gcp-secretmanager", "gcp":
		if strings.Contains(errStr, "PermissionDenied") {
			return "Grant roles/secretmanager.secretAccessor to the active identity"
		}
		if strings.Contains(errStr, "Unauthenticated") || strings.Contains(errStr, "credentials") {
			return "Run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS"
		}
		if strings.Contains(errStr, "project") {
			return "Set gcp.project_id in the config file or GOOGLE_CLOUD_PROJECT"
		}

	case "azure-keyvault", "azure":
		if strings.Contains(errStr, "Forbidden") || strings.Contains(errStr, "403") {
			return "Grant the 'Key Vault Secrets User' role or a Get secret access policy"
		}
		if strings.Contains(errStr, "DefaultAzureCredential") || strings.Contains(errStr, "authentication") {
			return "Run 'az login' or set AZURE_CLIENT_ID, AZURE_TENANT_ID and AZURE_CLIENT_SECRET"
		}
		if strings.Contains(errStr, "vault") {
			return "Set azure.vault_url in the config file or use the vault/secret name form"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection or raise --timeout-ms"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and provider endpoint configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"npm":    "Install Node.js from https://nodejs.org/",
		"yarn":   "Install Yarn from https://yarnpkg.com/",
		"python": "Install Python from https://python.org/",
		"go":     "Install Go from https://golang.org/",
		"docker": "Install Docker from https://docker.com/",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	msg := "command not found"
	if err != nil && !strings.Contains(err.Error(), msg) {
		msg = err.Error()
	}

	return CommandError{
		Command:    command,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"rate exceeded",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var configErr ConfigError
	if errors.As(err, &configErr) {
		return err
	}
	var cmdErr CommandError
	if errors.As(err, &cmdErr) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Details:    err.Error(),
			Suggestion: "Verify the path exists or pass the env file as an argument: awsm-env path/to/.env.example",
			Err:        err,
		}
	}

	return err
}
