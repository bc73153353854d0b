package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/pkg/errors"
)

const defaultMaxTries = 5

// OnConflict runs op, reloading and reapplying on optimistic lock conflicts
// with exponential backoff. Any other error aborts immediately. Conflicts are
// an internal coordination signal between concurrent orchestrator instances
// and must never leak to callers as-is; after the retry budget the last
// conflict is returned so the message is redelivered.
func OnConflict(ctx context.Context, op func(ctx context.Context) error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 25 * time.Millisecond
	expBackoff.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op(ctx)
		if err != nil && !errors.Is(err, faults.ErrOptimisticLockConflict) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(defaultMaxTries),
	)

	return err
}
