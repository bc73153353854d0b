package application

import (
	"context"
	"fmt"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/draftea/payment-hub/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultSweepInterval  = 10 * time.Second
	defaultSweepBatchSize = 50
)

// TimeoutSweep periodically scans for sagas whose in-flight step passed its
// deadline and feeds them through the regular failure path. A timeout counts
// against the same attempt budget as an explicit failure, so lost executors
// and lost result messages converge to the same behavior.
type TimeoutSweep struct {
	sagaStore          domain.SagaStore
	stepFailed         *ProcessStepFailed
	compensationFailed *ProcessCompensationFailed
	interval           time.Duration
	batchSize          int
}

// NewTimeoutSweep creates a new TimeoutSweep worker
func NewTimeoutSweep(
	sagaStore domain.SagaStore,
	stepFailed *ProcessStepFailed,
	compensationFailed *ProcessCompensationFailed,
) *TimeoutSweep {
	return &TimeoutSweep{
		sagaStore:          sagaStore,
		stepFailed:         stepFailed,
		compensationFailed: compensationFailed,
		interval:           defaultSweepInterval,
		batchSize:          defaultSweepBatchSize,
	}
}

// WithInterval overrides the sweep interval
func (w *TimeoutSweep) WithInterval(interval time.Duration) *TimeoutSweep {
	w.interval = interval
	return w
}

// Run blocks sweeping until the context is cancelled
func (w *TimeoutSweep) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				fmt.Printf("Timeout sweep failed: %v\n", err)
			}
		}
	}
}

// Sweep runs a single pass over expired sagas
func (w *TimeoutSweep) Sweep(ctx context.Context) error {
	expired, err := w.sagaStore.FindExpired(ctx, time.Now(), w.batchSize)
	if err != nil {
		return err
	}

	for _, instance := range expired {
		if err := w.expire(ctx, instance); err != nil {
			// Keep going; the saga stays expired and the next pass retries it
			fmt.Printf("Failed to expire saga %s: %v\n", instance.ID, err)
		}
	}

	return nil
}

func (w *TimeoutSweep) expire(ctx context.Context, instance *domain.Saga) error {
	result := &saga.StepResult{
		SagaID:    instance.ID,
		PaymentID: instance.PaymentID,
		ErrorCode: "step_timeout",
	}

	var step *domain.SagaStep
	process := w.stepFailed.Execute
	switch instance.Status {
	case domain.SagaStatusRunning:
		step = instance.RunningStep()
	case domain.SagaStatusCompensating:
		step = instance.CompensatingStep()
		process = w.compensationFailed.Execute
	}
	if step == nil {
		// Raced with a concurrent transition; nothing is in flight anymore
		return nil
	}

	result.StepName = step.Name
	result.ErrorMessage = fmt.Sprintf("step %s timed out after %ds", step.Name, step.TimeoutSeconds)

	telemetry.RecordCounter(ctx, "saga_step_timeouts_total", "Saga steps expired by the timeout sweep", 1,
		attribute.String("saga_type", instance.SagaType),
		attribute.String("step", step.Name),
	)

	return process(ctx, result)
}
