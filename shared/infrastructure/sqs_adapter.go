package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/pkg/errors"
)

// SQSSubscriberAdapter adapts SQSEventSubscriber to the events.Subscriber interface
type SQSSubscriberAdapter struct {
	sqsSubscriber *SQSEventSubscriber
	isRunning     bool
	queueURL      string
	opts          []SQSSubscriberOption
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter
func NewSQSSubscriberAdapter(queueURL string, opts ...SQSSubscriberOption) (*SQSSubscriberAdapter, error) {
	return &SQSSubscriberAdapter{
		queueURL: queueURL,
		opts:     opts,
	}, nil
}

// Subscribe implements events.Subscriber. It starts the consumer goroutines
// and returns; the handler runs until Close or context cancellation.
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, handler events.EventHandler) error {
	if s.isRunning {
		return errors.New("subscriber is already running")
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}

	sqsClient := sqs.NewFromConfig(cfg)

	s.sqsSubscriber = NewSQSEventSubscriber(sqsClient, s.queueURL, handler, s.opts...)

	if err := s.sqsSubscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.isRunning = true
	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close() error {
	if !s.isRunning || s.sqsSubscriber == nil {
		return nil
	}

	if err := s.sqsSubscriber.Stop(context.Background()); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.isRunning = false
	return nil
}
