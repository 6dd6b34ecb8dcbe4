// Package cloud builds the AWS service clients from the service settings.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// EndpointURL points every client at an emulator such as localstack.
	EndpointURL string
}

type Clients struct {
	S3     *s3.Client
	SQS    *sqs.Client
	SNS    *sns.Client
	Lambda *lambda.Client
	IMDS   *imds.Client
}

// LoadConfig resolves the shared AWS configuration. Static keys are used when both are
// set, the default credential chain otherwise.
func LoadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if opts.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(opts.EndpointURL)
	}
	return cfg, nil
}

// NewClients creates one client per service. Emulators need path-style bucket
// addressing, so it is switched on whenever an endpoint override is set.
func NewClients(cfg aws.Config) *Clients {
	pathStyle := cfg.BaseEndpoint != nil
	return &Clients{
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = pathStyle
		}),
		SQS:    sqs.NewFromConfig(cfg),
		SNS:    sns.NewFromConfig(cfg),
		Lambda: lambda.NewFromConfig(cfg),
		IMDS:   imds.NewFromConfig(cfg),
	}
}
