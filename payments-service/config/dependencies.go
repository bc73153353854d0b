package config

import (
	"context"
	"fmt"
	"log"

	"github.com/draftea/payment-hub/payments-service/application"
	"github.com/draftea/payment-hub/payments-service/handlers"
	"github.com/draftea/payment-hub/payments-service/infrastructure"
	sharedinfra "github.com/draftea/payment-hub/shared/infrastructure"
	"github.com/draftea/payment-hub/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	PaymentRepository *infrastructure.PostgresPaymentRepository
	EventStore        *sharedinfra.PostgresEventStore

	// Use Cases
	InitiatePayment *application.InitiatePayment
	GetPayment      *application.GetPayment
	AdvancePayment  *application.AdvancePayment
	FinalizePayment *application.FinalizePayment

	// HTTP Handlers
	PaymentHandlers *handlers.PaymentHandlers

	// Event Handlers
	PaymentEventHandlers *handlers.PaymentEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.PaymentsServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			log.Printf("Failed to initialize telemetry: %v", err)
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Initialize repositories
	deps.PaymentRepository = infrastructure.NewPostgresPaymentRepository(db)
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)

	// Initialize use cases
	deps.InitiatePayment = application.NewInitiatePayment(deps.PaymentRepository, deps.EventStore, eventPublisher)
	deps.GetPayment = application.NewGetPayment(deps.PaymentRepository)
	deps.AdvancePayment = application.NewAdvancePayment(deps.PaymentRepository, deps.EventStore, eventPublisher)
	deps.FinalizePayment = application.NewFinalizePayment(deps.PaymentRepository, deps.EventStore, eventPublisher)

	// Initialize handlers
	deps.PaymentHandlers = handlers.NewPaymentHandlers(deps.InitiatePayment, deps.GetPayment)
	deps.PaymentEventHandlers = handlers.NewPaymentEventHandlers(deps.AdvancePayment, deps.FinalizePayment)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
