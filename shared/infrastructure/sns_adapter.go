package infrastructure

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/pkg/errors"
)

// SNSPublisherAdapter adapts SNSEventPublisher to the events.Publisher interface
type SNSPublisherAdapter struct {
	snsPublisher *SNSEventPublisher
}

// NewSNSPublisherAdapter creates a new SNS publisher adapter. FIFO semantics
// are derived from the topic ARN suffix.
func NewSNSPublisherAdapter(topicArn string) (*SNSPublisherAdapter, error) {
	// Works with LocalStack when AWS_ENDPOINT_URL is set
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	snsClient := sns.NewFromConfig(cfg)

	fifo := strings.HasSuffix(topicArn, ".fifo")
	snsPublisher := NewSNSEventPublisher(snsClient, topicArn, fifo)

	return &SNSPublisherAdapter{
		snsPublisher: snsPublisher,
	}, nil
}

// Publish implements events.Publisher
func (p *SNSPublisherAdapter) Publish(ctx context.Context, events ...*events.Event) error {
	return p.snsPublisher.Publish(ctx, events...)
}

// Close closes the publisher
func (p *SNSPublisherAdapter) Close() error {
	return nil
}
