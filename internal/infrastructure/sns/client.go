package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-auth-nosql/internal/config"
	awsinfra "github.com/go-auth-nosql/internal/infrastructure/aws"
)

// NewClient creates an SNS client in cfg.SNSRegion, pointed at
// cfg.AWSEndpointURL when running against LocalStack.
func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	awsCfg, err := awsinfra.LoadConfig(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.BaseEndpoint = awsinfra.EndpointOverride(cfg)
	}), nil
}
