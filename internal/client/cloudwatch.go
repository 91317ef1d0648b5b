package client

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
)

// AuthOptions selects how AWS credentials and region are resolved.
type AuthOptions struct {
	Region  string
	Profile string
}

// NewAWSConfigOptions returns the config.LoadDefaultConfig options for o.
// A profile (flag, then AWS_PROFILE) takes precedence over static keys from
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY; with neither the default chain
// (including the Lambda execution role) applies.
func NewAWSConfigOptions(o AuthOptions) []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}
	profile := o.Profile
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile != "" {
		return append(opts, config.WithSharedConfigProfile(profile))
	}
	key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if key != "" && secret != "" {
		provider := credentials.NewStaticCredentialsProvider(key, secret, os.Getenv("AWS_SESSION_TOKEN"))
		opts = append(opts, config.WithCredentialsProvider(provider))
	}
	return opts
}

// LoadAWSConfig loads the shared AWS configuration for o.
func LoadAWSConfig(ctx context.Context, o AuthOptions) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, NewAWSConfigOptions(o)...)
}

// LogsAPI is the subset of the CloudWatch Logs API used for replays.
type LogsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// CloudWatchClient reads historical events from CloudWatch Logs.
type CloudWatchClient struct {
	client LogsAPI
}

// NewCloudWatchClient builds a CloudWatchClient from an AWS configuration.
func NewCloudWatchClient(cfg aws.Config) *CloudWatchClient {
	return &CloudWatchClient{client: cloudwatchlogs.NewFromConfig(cfg)}
}

// NewCloudWatchClientWithAPI wraps an existing LogsAPI implementation.
func NewCloudWatchClientWithAPI(api LogsAPI) *CloudWatchClient {
	return &CloudWatchClient{client: api}
}

// SearchGroup returns every event of group between startMs and endMs that
// matches filterPattern. An empty filterPattern matches everything.
func (c *CloudWatchClient) SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error) {
	var records []model.LogRecord
	var next *string
	for {
		in := &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName: aws.String(group),
			StartTime:    aws.Int64(startMs),
			EndTime:      aws.Int64(endMs),
			NextToken:    next,
		}
		if filterPattern != "" {
			in.FilterPattern = aws.String(filterPattern)
		}
		out, err := c.client.FilterLogEvents(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, e := range out.Events {
			records = append(records, model.LogRecord{
				ID:        aws.ToString(e.EventId),
				Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)),
				LogGroup:  group,
				LogStream: aws.ToString(e.LogStreamName),
				Message:   aws.ToString(e.Message),
			})
		}
		if out.NextToken == nil || (next != nil && aws.ToString(out.NextToken) == aws.ToString(next)) {
			break
		}
		next = out.NextToken
	}
	return records, nil
}
