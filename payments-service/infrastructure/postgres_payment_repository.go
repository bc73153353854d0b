package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ domain.PaymentRepository = (*PostgresPaymentRepository)(nil)

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	db *sqlx.DB
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository
func NewPostgresPaymentRepository(db *sqlx.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

// postgresPayment represents a payment in the database
type postgresPayment struct {
	ID                 string     `db:"id"`
	TenantID           string     `db:"tenant_id"`
	BusinessUnit       string     `db:"business_unit"`
	Amount             int64      `db:"amount"`
	Currency           string     `db:"currency"`
	SourceAccount      string     `db:"source_account"`
	DestinationAccount string     `db:"destination_account"`
	Reference          string     `db:"reference"`
	PaymentType        string     `db:"payment_type"`
	Priority           string     `db:"priority"`
	Initiator          string     `db:"initiator"`
	IdempotencyKey     string     `db:"idempotency_key"`
	ClearingReference  string     `db:"clearing_reference"`
	FailureReason      string     `db:"failure_reason"`
	Status             string     `db:"status"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at"`
	Version            int        `db:"version"`
}

const paymentColumns = `id, tenant_id, business_unit, amount, currency, source_account,
		   destination_account, reference, payment_type, priority, initiator,
		   idempotency_key, clearing_reference, failure_reason, status,
		   created_at, updated_at, deleted_at, version`

// Save inserts a freshly created payment or updates an existing one guarded
// by its version. Stale writes and duplicate idempotency keys both surface as
// faults.ErrOptimisticLockConflict.
func (r *PostgresPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	if payment.Version.Value == 1 {
		return r.insertPayment(ctx, payment)
	}
	return r.updatePayment(ctx, payment)
}

func (r *PostgresPaymentRepository) insertPayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, tenant_id, business_unit, amount, currency, source_account,
			destination_account, reference, payment_type, priority, initiator,
			idempotency_key, clearing_reference, failure_reason, status,
			created_at, updated_at, version
		) VALUES (
			:id, :tenant_id, :business_unit, :amount, :currency, :source_account,
			:destination_account, :reference, :payment_type, :priority, :initiator,
			:idempotency_key, :clearing_reference, :failure_reason, :status,
			:created_at, :updated_at, :version
		)`

	if _, err := r.db.NamedExecContext(ctx, query, r.toPostgres(payment)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errors.Wrapf(faults.ErrOptimisticLockConflict,
				"payment with idempotency key %s already exists", payment.IdempotencyKey)
		}
		return errors.Wrap(err, "failed to insert payment")
	}

	return nil
}

func (r *PostgresPaymentRepository) updatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = :status, clearing_reference = :clearing_reference,
			failure_reason = :failure_reason, updated_at = :updated_at, version = :version
		WHERE id = :id AND version = :old_version`

	res, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 payment.ID.String(),
		"status":             string(payment.Status),
		"clearing_reference": payment.ClearingReference,
		"failure_reason":     payment.FailureReason,
		"updated_at":         payment.Timestamps.UpdatedAt,
		"version":            payment.Version.Value,
		"old_version":        payment.Version.Value - 1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to update payment")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if affected == 0 {
		return errors.Wrapf(faults.ErrOptimisticLockConflict,
			"payment %s moved past version %d", payment.ID, payment.Version.Value-1)
	}

	return nil
}

// FindByID finds a payment by ID
func (r *PostgresPaymentRepository) FindByID(ctx context.Context, id models.ID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND deleted_at IS NULL`

	var pgPayment postgresPayment
	if err := r.db.GetContext(ctx, &pgPayment, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(faults.ErrNotFound, "payment %s", id)
		}
		return nil, errors.Wrap(err, "failed to find payment")
	}

	return r.toDomain(&pgPayment), nil
}

// FindByIdempotencyKey finds a payment by its tenant-scoped idempotency key
func (r *PostgresPaymentRepository) FindByIdempotencyKey(ctx context.Context, tenantID, idempotencyKey string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE tenant_id = $1 AND idempotency_key = $2 AND deleted_at IS NULL`

	var pgPayment postgresPayment
	if err := r.db.GetContext(ctx, &pgPayment, query, tenantID, idempotencyKey); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(faults.ErrNotFound, "payment for idempotency key %s", idempotencyKey)
		}
		return nil, errors.Wrap(err, "failed to find payment by idempotency key")
	}

	return r.toDomain(&pgPayment), nil
}

func (r *PostgresPaymentRepository) toPostgres(payment *domain.Payment) *postgresPayment {
	return &postgresPayment{
		ID:                 payment.ID.String(),
		TenantID:           payment.TenantID,
		BusinessUnit:       payment.BusinessUnit,
		Amount:             payment.Amount.Amount,
		Currency:           payment.Amount.Currency,
		SourceAccount:      payment.SourceAccount.String(),
		DestinationAccount: payment.DestinationAccount.String(),
		Reference:          payment.Reference,
		PaymentType:        payment.PaymentType,
		Priority:           string(payment.Priority),
		Initiator:          payment.Initiator,
		IdempotencyKey:     payment.IdempotencyKey,
		ClearingReference:  payment.ClearingReference,
		FailureReason:      payment.FailureReason,
		Status:             string(payment.Status),
		CreatedAt:          payment.Timestamps.CreatedAt,
		UpdatedAt:          payment.Timestamps.UpdatedAt,
		Version:            payment.Version.Value,
	}
}

func (r *PostgresPaymentRepository) toDomain(pgPayment *postgresPayment) *domain.Payment {
	return &domain.Payment{
		ID:                 models.ID(pgPayment.ID),
		TenantID:           pgPayment.TenantID,
		BusinessUnit:       pgPayment.BusinessUnit,
		Amount:             models.NewMoney(pgPayment.Amount, pgPayment.Currency),
		SourceAccount:      models.AccountRef(pgPayment.SourceAccount),
		DestinationAccount: models.AccountRef(pgPayment.DestinationAccount),
		Reference:          pgPayment.Reference,
		PaymentType:        pgPayment.PaymentType,
		Priority:           domain.PaymentPriority(pgPayment.Priority),
		Initiator:          pgPayment.Initiator,
		IdempotencyKey:     pgPayment.IdempotencyKey,
		ClearingReference:  pgPayment.ClearingReference,
		FailureReason:      pgPayment.FailureReason,
		Status:             domain.PaymentStatus(pgPayment.Status),
		Timestamps: models.Timestamps{
			CreatedAt: pgPayment.CreatedAt,
			UpdatedAt: pgPayment.UpdatedAt,
			DeletedAt: pgPayment.DeletedAt,
		},
		Version: models.Version{Value: pgPayment.Version},
	}
}
