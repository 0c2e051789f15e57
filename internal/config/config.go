// Package config loads the optional awsm-env YAML configuration file.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/internal/logging"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when --config is not given. It may be absent.
const DefaultPath = ".awsm-env.yaml"

//go:embed schema.json
var schemaJSON []byte

// Config holds the runtime configuration
type Config struct {
	Path string
	// Explicit marks a path the user asked for; a missing explicit file is an error.
	Explicit   bool
	Logger     *logging.Logger
	Definition *Definition
}

// Definition is the structure of .awsm-env.yaml
type Definition struct {
	Spec              string            `yaml:"spec,omitempty"`
	Format            string            `yaml:"format,omitempty"`
	UseDefaults       *bool             `yaml:"use_defaults,omitempty"`
	Concurrency       int               `yaml:"concurrency,omitempty"`
	TimeoutMs         *int              `yaml:"timeout_ms,omitempty"`
	RequestsPerSecond float64           `yaml:"requests_per_second,omitempty"`
	Burst             int               `yaml:"burst,omitempty"`
	Placeholders      map[string]string `yaml:"placeholders,omitempty"`
	AWS               AWSConfig         `yaml:"aws,omitempty"`
	SSM               SSMConfig         `yaml:"ssm,omitempty"`
	GCP               GCPConfig         `yaml:"gcp,omitempty"`
	Azure             AzureConfig       `yaml:"azure,omitempty"`
}

// AWSConfig is shared by the Secrets Manager and Parameter Store providers.
type AWSConfig struct {
	Region          string `yaml:"region,omitempty"`
	Profile         string `yaml:"profile,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AssumeRole      string `yaml:"assume_role,omitempty"`
	RoleSessionName string `yaml:"role_session_name,omitempty"`
	ExternalID      string `yaml:"external_id,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// SSMConfig holds Parameter Store settings.
type SSMConfig struct {
	WithDecryption  *bool  `yaml:"with_decryption,omitempty"`
	ParameterPrefix string `yaml:"parameter_prefix,omitempty"`
}

// Decrypt reports whether SecureString parameters are decrypted (default true).
func (c SSMConfig) Decrypt() bool {
	return c.WithDecryption == nil || *c.WithDecryption
}

// GCPConfig holds Google Cloud Secret Manager settings.
type GCPConfig struct {
	ProjectID       string `yaml:"project_id,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
}

// AzureConfig holds Azure Key Vault settings.
type AzureConfig struct {
	VaultURL string `yaml:"vault_url,omitempty"`
}

// Load reads, validates and parses the configuration file.
// A missing file at the default path yields an empty Definition.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if !c.Explicit {
				c.Logger.Debug("No configuration file at %s, using built-in defaults", c.Path)
				c.Definition = &Definition{}
				return nil
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path or remove the flag to use built-in defaults",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	c.Logger.Debug("Loaded configuration from %s", c.Path)
	c.Definition = def
	return nil
}

// Parse validates data against the configuration schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("failed to decode configuration: %v", err),
			Suggestion: "Check value types against the documented configuration keys",
		}
	}
	return &def, nil
}

func validate(raw map[string]interface{}) error {
	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return dserrors.ConfigError{
		Message:    "configuration does not match schema:\n  - " + strings.Join(problems, "\n  - "),
		Suggestion: "Remove unknown keys and check value types",
	}
}

// UsesDefaults reports whether plain declarations contribute their defaults (default true).
func (d *Definition) UsesDefaults() bool {
	return d == nil || d.UseDefaults == nil || *d.UseDefaults
}

// Timeout returns the per-call provider timeout, or fallback when unset.
func (d *Definition) Timeout(fallback time.Duration) time.Duration {
	if d == nil || d.TimeoutMs == nil {
		return fallback
	}
	return time.Duration(*d.TimeoutMs) * time.Millisecond
}
