package providers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/systmms/awsmenv/internal/config"
)

// STSClientAPI defines the STS operation used to report the caller identity.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the AWS principal the providers act as.
type Identity struct {
	Account string
	ARN     string
	UserID  string
}

// NewSTSClient creates an STS client from the shared AWS settings, honouring assume_role.
func NewSTSClient(ctx context.Context, cfg config.AWSConfig) (STSClientAPI, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sts.NewFromConfig(awsCfg, stsEndpoint(cfg.Endpoint)), nil
}

// CallerIdentity reports the principal behind the configured credentials.
func CallerIdentity(ctx context.Context, client STSClientAPI) (Identity, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}
	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}
