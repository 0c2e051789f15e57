package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager client.
type FakeSecretsManagerClient struct {
	mu sync.Mutex
	// Secrets maps secret ids to string values
	Secrets map[string]string
	// Binary maps secret ids to binary values
	Binary map[string][]byte
	// Errors maps secret ids to errors to return
	Errors map[string]error
	// ListErr is returned by ListSecrets
	ListErr error
	// GetSecretValueFunc overrides GetSecretValue when set
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)

	calls map[string]int
}

// NewFakeSecretsManagerClient creates an empty fake.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Binary:  make(map[string][]byte),
		Errors:  make(map[string]error),
		calls:   make(map[string]int),
	}
}

// AddSecretString adds a string secret.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddSecretBinary adds a binary secret.
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Binary[name] = value
}

// AddError makes reads of name fail with err.
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// CallCount returns how many times name was read.
func (f *FakeSecretsManagerClient) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// GetSecretValue mocks the GetSecretValue operation.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.GetSecretValueFunc != nil {
		return f.GetSecretValueFunc(ctx, params)
	}

	name := aws.ToString(params.SecretId)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++

	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	out := &secretsmanager.GetSecretValueOutput{
		ARN:       aws.String("arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name),
		Name:      aws.String(name),
		VersionId: aws.String("v1-abc123"),
	}
	if v, ok := f.Secrets[name]; ok {
		out.SecretString = aws.String(v)
		return out, nil
	}
	if b, ok := f.Binary[name]; ok {
		out.SecretBinary = b
		return out, nil
	}
	return nil, &smtypes.ResourceNotFoundException{
		Message: aws.String("Secrets Manager can't find the specified secret."),
	}
}

// ListSecrets mocks the ListSecrets operation.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var list []smtypes.SecretListEntry
	for name := range f.Secrets {
		list = append(list, smtypes.SecretListEntry{Name: aws.String(name)})
		if params.MaxResults != nil && int32(len(list)) >= *params.MaxResults {
			break
		}
	}
	return &secretsmanager.ListSecretsOutput{SecretList: list}, nil
}

// FakeSSMClient is an in-memory Parameter Store client.
type FakeSSMClient struct {
	mu sync.Mutex
	// Parameters maps parameter names to values
	Parameters map[string]string
	// Errors maps parameter names to errors to return
	Errors map[string]error
	// DescribeErr is returned by DescribeParameters
	DescribeErr error

	decrypted map[string]bool
}

// NewFakeSSMClient creates an empty fake.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]string),
		Errors:     make(map[string]error),
		decrypted:  make(map[string]bool),
	}
}

// AddParameter adds a parameter.
func (f *FakeSSMClient) AddParameter(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Parameters[name] = value
}

// AddError makes reads of name fail with err.
func (f *FakeSSMClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Decrypted reports whether the last read of name requested decryption.
func (f *FakeSSMClient) Decrypted(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decrypted[name]
}

// GetParameter mocks the GetParameter operation.
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := aws.ToString(params.Name)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrypted[name] = aws.ToBool(params.WithDecryption)

	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	v, ok := f.Parameters[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String(fmt.Sprintf("Parameter %s not found", name))}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:    aws.String(name),
			Type:    ssmtypes.ParameterTypeSecureString,
			Value:   aws.String(v),
			Version: 1,
		},
	}, nil
}

// DescribeParameters mocks the DescribeParameters operation.
func (f *FakeSSMClient) DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DescribeErr != nil {
		return nil, f.DescribeErr
	}
	return &ssm.DescribeParametersOutput{}, nil
}

// FakeSTSClient returns a fixed caller identity.
type FakeSTSClient struct {
	Account string
	ARN     string
	UserID  string
	Err     error
}

// GetCallerIdentity mocks the GetCallerIdentity operation.
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(f.ARN),
		UserId:  aws.String(f.UserID),
	}, nil
}

// AWSAPIError builds a generic smithy API error such as AccessDeniedException.
func AWSAPIError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message, Fault: smithy.FaultClient}
}
