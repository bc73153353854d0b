package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ domain.SagaStore = (*PostgresSagaStore)(nil)

// PostgresSagaStore implements SagaStore using PostgreSQL
type PostgresSagaStore struct {
	db *sqlx.DB
}

// NewPostgresSagaStore creates a new PostgresSagaStore
func NewPostgresSagaStore(db *sqlx.DB) *PostgresSagaStore {
	return &PostgresSagaStore{db: db}
}

// postgresSaga represents a saga instance in the database. Steps are stored
// as a JSONB snapshot; step_deadline is denormalized so the timeout sweep can
// query expirations with an index instead of unpacking JSON.
type postgresSaga struct {
	ID            string     `db:"id"`
	SagaType      string     `db:"saga_type"`
	PaymentID     string     `db:"payment_id"`
	TenantID      string     `db:"tenant_id"`
	BusinessUnit  string     `db:"business_unit"`
	CorrelationID string     `db:"correlation_id"`
	Status        string     `db:"status"`
	Steps         []byte     `db:"steps"`
	Stuck         bool       `db:"stuck"`
	LastError     string     `db:"last_error"`
	StepDeadline  *time.Time `db:"step_deadline"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	Version       int        `db:"version"`
	StreamVersion int        `db:"stream_version"`
}

const sagaColumns = `id, saga_type, payment_id, tenant_id, business_unit, correlation_id,
		   status, steps, stuck, last_error, step_deadline, created_at, updated_at, version, stream_version`

// Save inserts a new saga or updates an existing one guarded by its version.
// A lost race surfaces as faults.ErrOptimisticLockConflict on both paths: the
// version guard on update, the unique (payment_id, saga_type) index on insert.
func (r *PostgresSagaStore) Save(ctx context.Context, instance *domain.Saga) error {
	pgSaga, err := r.toPostgres(instance)
	if err != nil {
		return err
	}

	if instance.Version.Value == 1 {
		return r.insert(ctx, pgSaga)
	}
	return r.update(ctx, pgSaga)
}

func (r *PostgresSagaStore) insert(ctx context.Context, pgSaga *postgresSaga) error {
	query := `
		INSERT INTO sagas (
			id, saga_type, payment_id, tenant_id, business_unit, correlation_id,
			status, steps, stuck, last_error, step_deadline, created_at, updated_at, version, stream_version
		) VALUES (
			:id, :saga_type, :payment_id, :tenant_id, :business_unit, :correlation_id,
			:status, :steps, :stuck, :last_error, :step_deadline, :created_at, :updated_at, :version, :stream_version
		)`

	if _, err := r.db.NamedExecContext(ctx, query, pgSaga); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errors.Wrapf(faults.ErrOptimisticLockConflict,
				"saga for payment %s already exists", pgSaga.PaymentID)
		}
		return errors.Wrap(err, "failed to insert saga")
	}

	return nil
}

func (r *PostgresSagaStore) update(ctx context.Context, pgSaga *postgresSaga) error {
	query := `
		UPDATE sagas
		SET status = :status, steps = :steps, stuck = :stuck, last_error = :last_error,
			step_deadline = :step_deadline, updated_at = :updated_at, version = :version,
			stream_version = :stream_version
		WHERE id = :id AND version = :old_version`

	res, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             pgSaga.ID,
		"status":         pgSaga.Status,
		"steps":          pgSaga.Steps,
		"stuck":          pgSaga.Stuck,
		"last_error":     pgSaga.LastError,
		"step_deadline":  pgSaga.StepDeadline,
		"updated_at":     pgSaga.UpdatedAt,
		"version":        pgSaga.Version,
		"stream_version": pgSaga.StreamVersion,
		"old_version":    pgSaga.Version - 1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to update saga")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if affected == 0 {
		return errors.Wrapf(faults.ErrOptimisticLockConflict,
			"saga %s moved past version %d", pgSaga.ID, pgSaga.Version-1)
	}

	return nil
}

// FindByID finds a saga by ID
func (r *PostgresSagaStore) FindByID(ctx context.Context, id models.ID) (*domain.Saga, error) {
	query := `SELECT ` + sagaColumns + ` FROM sagas WHERE id = $1`

	var pgSaga postgresSaga
	if err := r.db.GetContext(ctx, &pgSaga, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(faults.ErrNotFound, "saga %s", id)
		}
		return nil, errors.Wrap(err, "failed to find saga")
	}

	return r.toDomain(&pgSaga)
}

// FindByPaymentAndType finds the saga instance for a (payment, saga type) pair
func (r *PostgresSagaStore) FindByPaymentAndType(ctx context.Context, paymentID models.ID, sagaType string) (*domain.Saga, error) {
	query := `SELECT ` + sagaColumns + ` FROM sagas WHERE payment_id = $1 AND saga_type = $2`

	var pgSaga postgresSaga
	if err := r.db.GetContext(ctx, &pgSaga, query, paymentID.String(), sagaType); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(faults.ErrNotFound, "saga for payment %s type %s", paymentID, sagaType)
		}
		return nil, errors.Wrap(err, "failed to find saga by payment")
	}

	return r.toDomain(&pgSaga)
}

// FindExpired returns active sagas whose in-flight step passed its deadline.
// Stuck sagas are excluded; they wait for an operator, not for the sweep.
func (r *PostgresSagaStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Saga, error) {
	query := `
		SELECT ` + sagaColumns + `
		FROM sagas
		WHERE step_deadline IS NOT NULL
		  AND step_deadline <= $1
		  AND status IN ('running', 'compensating')
		  AND NOT stuck
		ORDER BY step_deadline ASC
		LIMIT $2`

	var pgSagas []postgresSaga
	if err := r.db.SelectContext(ctx, &pgSagas, query, now, limit); err != nil {
		return nil, errors.Wrap(err, "failed to find expired sagas")
	}

	result := make([]*domain.Saga, len(pgSagas))
	for i, pgSaga := range pgSagas {
		instance, err := r.toDomain(&pgSaga)
		if err != nil {
			return nil, err
		}
		result[i] = instance
	}

	return result, nil
}

func (r *PostgresSagaStore) toPostgres(instance *domain.Saga) (*postgresSaga, error) {
	steps, err := json.Marshal(instance.Steps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal saga steps")
	}

	return &postgresSaga{
		ID:            instance.ID.String(),
		SagaType:      instance.SagaType,
		PaymentID:     instance.PaymentID.String(),
		TenantID:      instance.TenantID,
		BusinessUnit:  instance.BusinessUnit,
		CorrelationID: instance.CorrelationID.String(),
		Status:        string(instance.Status),
		Steps:         steps,
		Stuck:         instance.Stuck,
		LastError:     instance.LastError,
		StepDeadline:  instance.StepDeadline(),
		CreatedAt:     instance.Timestamps.CreatedAt,
		UpdatedAt:     instance.Timestamps.UpdatedAt,
		Version:       instance.Version.Value,
		StreamVersion: instance.StreamVersion,
	}, nil
}

func (r *PostgresSagaStore) toDomain(pgSaga *postgresSaga) (*domain.Saga, error) {
	var steps []*domain.SagaStep
	if err := json.Unmarshal(pgSaga.Steps, &steps); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal saga steps")
	}

	return &domain.Saga{
		ID:            models.ID(pgSaga.ID),
		SagaType:      pgSaga.SagaType,
		PaymentID:     models.ID(pgSaga.PaymentID),
		TenantID:      pgSaga.TenantID,
		BusinessUnit:  pgSaga.BusinessUnit,
		CorrelationID: models.ID(pgSaga.CorrelationID),
		Status:        domain.SagaStatus(pgSaga.Status),
		Steps:         steps,
		Stuck:         pgSaga.Stuck,
		LastError:     pgSaga.LastError,
		Timestamps: models.Timestamps{
			CreatedAt: pgSaga.CreatedAt,
			UpdatedAt: pgSaga.UpdatedAt,
		},
		Version:       models.Version{Value: pgSaga.Version},
		StreamVersion: pgSaga.StreamVersion,
	}, nil
}
