package application

import (
	"context"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/pkg/errors"
)

// appendAuditEvents appends recorded lifecycle events to the saga's audit
// stream. Most transitions record none; the stream tracks lifecycle
// boundaries, so the expected version counts recorded events, not aggregate
// version bumps.
func appendAuditEvents(ctx context.Context, store events.EventStore, instance *domain.Saga) error {
	evts := instance.Events()
	if len(evts) == 0 {
		return nil
	}

	if err := store.SaveEvents(ctx, instance.ID, evts, instance.StreamVersion-len(evts)); err != nil {
		return errors.Wrap(err, "failed to append saga events")
	}

	return nil
}
