package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/application"
	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/orchestrator-service/handlers"
	"github.com/draftea/payment-hub/orchestrator-service/infrastructure"
	sharedinfra "github.com/draftea/payment-hub/shared/infrastructure"
	"github.com/draftea/payment-hub/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Stores
	SagaStore  *infrastructure.PostgresSagaStore
	EventStore *sharedinfra.PostgresEventStore

	// Definitions
	Registry *domain.StaticDefinitionRegistry

	// Use Cases
	StartSaga                    *application.StartSaga
	GetSaga                      *application.GetSaga
	CompensateSaga               *application.CompensateSaga
	ProcessStepCompleted         *application.ProcessStepCompleted
	ProcessStepFailed            *application.ProcessStepFailed
	ProcessCompensationCompleted *application.ProcessCompensationCompleted
	ProcessCompensationFailed    *application.ProcessCompensationFailed

	// Workers
	TimeoutSweep *application.TimeoutSweep

	// HTTP Handlers
	SagaHandlers *handlers.SagaHandlers

	// Event Handlers
	SagaEventHandlers *handlers.SagaEventHandlers

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
		telConfig := telemetry.OrchestratorServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
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

	// Initialize stores
	deps.SagaStore = infrastructure.NewPostgresSagaStore(db)
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)

	// Initialize saga definitions
	deps.Registry = domain.NewStaticDefinitionRegistry()
	definitions := config.Definitions
	if len(definitions) == 0 {
		definitions = defaultDefinitions()
	}
	for _, def := range definitions {
		if err := deps.Registry.Register(def.ToDomain()); err != nil {
			return nil, fmt.Errorf("failed to register saga definition %s: %w", def.SagaType, err)
		}
	}

	// Initialize use cases
	dispatcher := application.NewDispatcher(eventPublisher)
	deps.StartSaga = application.NewStartSaga(deps.SagaStore, deps.Registry, deps.EventStore, eventPublisher, dispatcher)
	deps.GetSaga = application.NewGetSaga(deps.SagaStore)
	deps.CompensateSaga = application.NewCompensateSaga(deps.SagaStore, deps.EventStore, eventPublisher, dispatcher)
	deps.ProcessStepCompleted = application.NewProcessStepCompleted(deps.SagaStore, deps.EventStore, eventPublisher, dispatcher)
	deps.ProcessStepFailed = application.NewProcessStepFailed(deps.SagaStore, deps.EventStore, eventPublisher, dispatcher)
	deps.ProcessCompensationCompleted = application.NewProcessCompensationCompleted(deps.SagaStore, deps.EventStore, eventPublisher, dispatcher)
	deps.ProcessCompensationFailed = application.NewProcessCompensationFailed(deps.SagaStore, deps.EventStore, eventPublisher, dispatcher)

	// Initialize workers
	deps.TimeoutSweep = application.NewTimeoutSweep(deps.SagaStore, deps.ProcessStepFailed, deps.ProcessCompensationFailed).
		WithInterval(time.Duration(config.Sweep.IntervalSeconds) * time.Second)

	// Initialize handlers
	deps.SagaHandlers = handlers.NewSagaHandlers(deps.StartSaga, deps.GetSaga, deps.CompensateSaga)
	deps.SagaEventHandlers = handlers.NewSagaEventHandlers(
		deps.StartSaga,
		deps.ProcessStepCompleted,
		deps.ProcessStepFailed,
		deps.ProcessCompensationCompleted,
		deps.ProcessCompensationFailed,
	)

	return deps, nil
}

// defaultDefinitions covers local development when no definitions are
// configured. Production tenants configure theirs explicitly.
func defaultDefinitions() []Definition {
	return []Definition{
		{
			SagaType:    "standard_transfer",
			TenantID:    "default",
			PaymentType: "bank_transfer",
			Steps: []Step{
				{Name: "validate", Command: "payment.validate", Compensation: "payment.validate.reverse"},
				{Name: "clear", Command: "payment.clear", Compensation: "payment.clear.reverse"},
				{Name: "settle", Command: "payment.settle"},
			},
		},
	}
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
