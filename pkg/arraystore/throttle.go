package arraystore

import (
	"context"

	"golang.org/x/time/rate"
)

// IOLimiter throttles chunk writes to a byte rate. A nil *IOLimiter does
// not limit.
type IOLimiter struct {
	lim   *rate.Limiter
	burst int
}

// NewIOLimiter returns a limiter allowing bytesPerSec bytes per second, or
// nil when bytesPerSec is not positive.
func NewIOLimiter(bytesPerSec int) *IOLimiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return &IOLimiter{
		lim:   rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec),
		burst: bytesPerSec,
	}
}

// Wait blocks until n bytes may be written. Requests larger than one
// second's budget are split so they never exceed the burst.
func (l *IOLimiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	for n > 0 {
		k := min(n, l.burst)
		if err := l.lim.WaitN(ctx, k); err != nil {
			return err
		}
		n -= k
	}
	return nil
}
