package rotator

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound requests and adds jitter so request intervals do
// not form a detectable pattern. Shared by all dispatches going through
// one dispatcher.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
	jitter   float64 // fraction of interval, e.g. 0.2 for ±0 to +20%
}

// NewPacer allows one request per interval with up to jitter*interval of
// extra random delay. jitter outside [0,1] is clamped.
func NewPacer(interval time.Duration, jitter float64) *Pacer {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Pacer{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		jitter:   jitter,
	}
}

// Wait blocks until the next request slot, plus jitter. Interruptible by
// ctx; returns its error on cancellation.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitter == 0 {
		return nil
	}

	d := time.Duration(rand.Float64() * p.jitter * float64(p.interval)) //nolint:gosec // non-cryptographic use
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
