package retry

import (
	"context"
	stdErrors "errors"
	"net"
	"time"

	xerrors "IntentChain/internal/errors"
)

// Policy bounds a retried external call. The same policy shape is shared by
// all three service integrations so their failure behaviour stays uniform.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Timeout applies to every individual attempt.
	Timeout time.Duration
	// Backoff is the delay before the second attempt; it doubles after
	// each failure.
	Backoff time.Duration
}

// DefaultPolicy matches the builder defaults: 3 attempts, 10s per attempt,
// 500ms initial backoff.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Timeout: 10 * time.Second, Backoff: 500 * time.Millisecond}
}

func (p Policy) normalised() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	return p
}

// Transient reports whether err is worth retrying: explicit retryable codes,
// deadline expiry, and transport-level network failures. Validation
// rejections and mismatches are never transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := xerrors.From(err); ok {
		return e.Retryable()
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stdErrors.As(err, &netErr)
}

// Do runs fn under the policy, retrying only transient failures. The last
// error is wrapped as TRANSIENT_SERVICE when the attempts are exhausted.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	policy = policy.normalised()

	var lastErr error
	backoff := policy.Backoff
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !Transient(err) {
			return err
		}
		if attempt == policy.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return xerrors.Wrap(xerrors.CodeTransientService, lastErr, "retries exhausted")
}
