package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var _ events.EventStore = (*PostgresEventStore)(nil)

// PostgresEventStore keeps the append-only domain-event audit stream
type PostgresEventStore struct {
	db *sqlx.DB
}

// NewPostgresEventStore creates a new PostgresEventStore
func NewPostgresEventStore(db *sqlx.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

type postgresEvent struct {
	ID            string    `db:"id"`
	AggregateID   string    `db:"aggregate_id"`
	Topic         string    `db:"topic"`
	Version       string    `db:"version"`
	Data          []byte    `db:"data"`
	Metadata      []byte    `db:"metadata"`
	Timestamp     time.Time `db:"timestamp"`
	CorrelationID string    `db:"correlation_id"`
	StreamVersion int       `db:"stream_version"`
}

// SaveEvents appends events to the aggregate's stream, rejecting writes made
// against a stale stream version.
func (es *PostgresEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event, expectedVersion int) error {
	if len(evts) == 0 {
		return nil
	}

	tx, err := es.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.GetContext(ctx, &currentVersion,
		"SELECT COALESCE(MAX(stream_version), 0) FROM event_stream WHERE aggregate_id = $1",
		aggregateID.String())
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, "failed to get current version")
	}

	if currentVersion != expectedVersion {
		return errors.Wrapf(faults.ErrOptimisticLockConflict,
			"event stream for %s at version %d, expected %d", aggregateID, currentVersion, expectedVersion)
	}

	for i, event := range evts {
		pgEvent, err := es.toPostgres(event, currentVersion+i+1)
		if err != nil {
			return errors.Wrap(err, "failed to convert event")
		}

		query := `
			INSERT INTO event_stream (
				id, aggregate_id, topic, version, data, metadata,
				timestamp, correlation_id, stream_version
			) VALUES (
				:id, :aggregate_id, :topic, :version, :data, :metadata,
				:timestamp, :correlation_id, :stream_version
			)`

		if _, err = tx.NamedExecContext(ctx, query, pgEvent); err != nil {
			return errors.Wrap(err, "failed to insert event")
		}
	}

	return tx.Commit()
}

// GetEvents retrieves all events for an aggregate in stream order
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	query := `
		SELECT id, aggregate_id, topic, version, data, metadata,
			   timestamp, correlation_id, stream_version
		FROM event_stream
		WHERE aggregate_id = $1
		ORDER BY stream_version ASC`

	var pgEvents []postgresEvent
	if err := es.db.SelectContext(ctx, &pgEvents, query, aggregateID.String()); err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}

	return es.toDomainList(pgEvents)
}

// GetEventsByTopic retrieves a page of events for a topic
func (es *PostgresEventStore) GetEventsByTopic(ctx context.Context, topic events.Topic, offset, limit int) ([]*events.Event, error) {
	query := `
		SELECT id, aggregate_id, topic, version, data, metadata,
			   timestamp, correlation_id, stream_version
		FROM event_stream
		WHERE topic = $1
		ORDER BY timestamp ASC
		OFFSET $2 LIMIT $3`

	var pgEvents []postgresEvent
	if err := es.db.SelectContext(ctx, &pgEvents, query, topic.String(), offset, limit); err != nil {
		return nil, errors.Wrap(err, "failed to get events by topic")
	}

	return es.toDomainList(pgEvents)
}

func (es *PostgresEventStore) toPostgres(event *events.Event, streamVersion int) (*postgresEvent, error) {
	data, err := event.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event data")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event metadata")
	}

	return &postgresEvent{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		Topic:         event.Topic.String(),
		Version:       event.Version,
		Data:          data,
		Metadata:      metadata,
		Timestamp:     event.Timestamp,
		CorrelationID: event.CorrelationID.String(),
		StreamVersion: streamVersion,
	}, nil
}

func (es *PostgresEventStore) toDomainList(pgEvents []postgresEvent) ([]*events.Event, error) {
	result := make([]*events.Event, len(pgEvents))
	for i, pgEvent := range pgEvents {
		var metadata events.Metadata
		if len(pgEvent.Metadata) > 0 {
			if err := json.Unmarshal(pgEvent.Metadata, &metadata); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal event metadata")
			}
		}

		result[i] = &events.Event{
			ID:            models.ID(pgEvent.ID),
			AggregateID:   models.ID(pgEvent.AggregateID),
			Topic:         events.Topic(pgEvent.Topic),
			Version:       pgEvent.Version,
			Data:          json.RawMessage(pgEvent.Data),
			Metadata:      metadata,
			Timestamp:     pgEvent.Timestamp,
			CorrelationID: models.ID(pgEvent.CorrelationID),
		}
	}
	return result, nil
}
