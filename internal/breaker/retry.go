package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oppradar/internal/source"
)

// ErrOpen is returned by Execute when the breaker refuses the call.
var ErrOpen = errors.New("circuit open")

// RetryPolicy bounds the attempts inside one Execute call. Zero values
// fall back to the defaults.
type RetryPolicy struct {
	MaxAttempts int
	// BaseDelay seeds the exponential backoff: attempt n waits
	// BaseDelay * 2^(n-1), capped at MaxDelay. Rate-limited responses
	// wait twice that.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy returns the standard three-attempt policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// Attempt records one failed try inside Execute, for the run log.
type Attempt struct {
	Number int
	Err    error
}

// Execute runs op behind the breaker with bounded retries. The breaker is
// consulted once before the first attempt and fed only after the outcome
// is final: one success, or one failure per failed attempt once the retry
// budget is exhausted. Non-retryable errors stop the attempt loop at once,
// and backoff sleeps that would outlive the context deadline are skipped
// along with their attempts.
func Execute(ctx context.Context, b *Breaker, p RetryPolicy, op func(context.Context) error) ([]Attempt, error) {
	p = p.withDefaults()

	if !b.CanExecute() {
		return nil, fmt.Errorf("%s: %w", b.Name(), ErrOpen)
	}

	var attempts []Attempt
	for n := 1; n <= p.MaxAttempts; n++ {
		err := op(ctx)
		if err == nil {
			b.RecordSuccess()
			return attempts, nil
		}
		attempts = append(attempts, Attempt{Number: n, Err: err})

		kind := source.KindOf(err)
		if !source.IsRetryable(err) || n == p.MaxAttempts {
			break
		}

		delay := p.backoff(n, kind)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			break
		}
		if !sleep(ctx, delay) {
			break
		}
	}

	for _, a := range attempts {
		b.RecordFailure(source.KindOf(a.Err))
	}
	last := attempts[len(attempts)-1].Err
	return attempts, fmt.Errorf("%s: %d attempts: %w", b.Name(), len(attempts), last)
}

func (p RetryPolicy) backoff(attempt int, kind source.Kind) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if kind == source.KindRateLimited {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// sleep waits for d or until ctx is done; the return says whether the
// full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
