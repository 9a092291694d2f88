package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// linearBackOff waits attempt × step before each retry
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// retry calls op at most attempts times, sleeping according to b between
// failures. The last error is returned once the attempts are used up.
func retry(ctx context.Context, attempts int, b backoff.BackOff, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
	return err
}
