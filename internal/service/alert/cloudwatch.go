package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"sentinelvision/internal/logger"
)

// Default CloudWatch destination.
const (
	DefaultLogGroup  = "SentinelVisionLogs"
	DefaultLogStream = "MotionDetectionStream"
)

const cloudWatchTimeout = 10 * time.Second

type cloudWatchClient interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchSink ships alerts to a CloudWatch Logs group/stream pair.
type CloudWatchSink struct {
	client cloudWatchClient
	group  string
	stream string
	logger *logger.Logger
	now    func() time.Time
}

// NewCloudWatchSink builds a sink from the default AWS credential chain.
func NewCloudWatchSink(ctx context.Context, group, stream string, logger *logger.Logger) (*CloudWatchSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newCloudWatchSink(cloudwatchlogs.NewFromConfig(cfg), group, stream, logger), nil
}

func newCloudWatchSink(client cloudWatchClient, group, stream string, logger *logger.Logger) *CloudWatchSink {
	if group == "" {
		group = DefaultLogGroup
	}
	if stream == "" {
		stream = DefaultLogStream
	}
	return &CloudWatchSink{client: client, group: group, stream: stream, logger: logger, now: time.Now}
}

// EnsureStream creates the log group and stream, tolerating ones that already exist.
func (s *CloudWatchSink) EnsureStream(ctx context.Context) error {
	var exists *types.ResourceAlreadyExistsException

	_, err := s.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(s.group),
	})
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create log group %s: %w", s.group, err)
	}

	_, err = s.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
	})
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create log stream %s: %w", s.stream, err)
	}
	return nil
}

func (s *CloudWatchSink) Notify(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), cloudWatchTimeout)
	defer cancel()

	_, err := s.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
		LogEvents: []types.InputLogEvent{{
			Message:   aws.String(message),
			Timestamp: aws.Int64(s.now().UnixMilli()),
		}},
	})
	if err != nil {
		s.logger.Error("%v", &SinkDeliveryError{Sink: "cloudwatch", Err: err})
	}
}
