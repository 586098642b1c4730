package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parkwise/internal/pkg/config"
	"parkwise/internal/usecase/commands"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/cenkalti/backoff/v4"
)

const (
	sqsBatchSize         = 10
	sqsVisibilityTimeout = 60
)

// SQSAPI is the part of the SQS client the consumer needs.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// NewSQSClient builds a client from the default AWS credential chain.
func NewSQSClient(ctx context.Context, cfg config.SensorConfig) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SQSRegion))
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg), nil
}

// SQSSource long-polls a queue. Messages are deleted once handled; a failed reading is
// left for redelivery after the visibility timeout.
type SQSSource struct {
	client    SQSAPI
	queueURL  string
	waitTime  time.Duration
	occupancy commands.OccupancyCommands
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSQSSource(client SQSAPI, cfg config.SensorConfig, occupancy commands.OccupancyCommands, logger *slog.Logger) *SQSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSSource{
		client:    client,
		queueURL:  cfg.SQSQueueURL,
		waitTime:  cfg.SQSWaitTime,
		occupancy: occupancy,
		logger:    logger,
	}
}

func (s *SQSSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	s.logger.Info("consuming sensor queue", "queue_url", s.queueURL)
	return nil
}

func (s *SQSSource) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *SQSSource) run(ctx context.Context) {
	defer close(s.done)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	policy.MaxInterval = time.Minute

	for {
		err := s.poll(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			policy.Reset()
			continue
		}

		wait := policy.NextBackOff()
		s.logger.Warn("failed to receive sensor messages", "error", err.Error(), "retry_in", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// poll receives one batch and handles it.
func (s *SQSSource) poll(ctx context.Context) error {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: sqsBatchSize,
		WaitTimeSeconds:     int32(s.waitTime / time.Second),
		VisibilityTimeout:   sqsVisibilityTimeout,
	})
	if err != nil {
		return err
	}

	for _, msg := range out.Messages {
		done := true
		if msg.Body != nil {
			done = deliver(ctx, s.occupancy, []byte(*msg.Body), s.logger.With("message_id", aws.ToString(msg.MessageId)))
		}
		if done {
			s.delete(ctx, msg.ReceiptHandle)
		}
	}
	return nil
}

func (s *SQSSource) delete(ctx context.Context, receipt *string) {
	if receipt == nil {
		return
	}
	if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: receipt,
	}); err != nil {
		s.logger.Warn("failed to delete sensor message", "error", err.Error())
	}
}
