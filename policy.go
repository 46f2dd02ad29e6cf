package rotator

import "time"

// Strategy selects how the next proxy is chosen from the eligible set.
type Strategy int

const (
	// StrategyRoundRobin cycles through eligible proxies in stable
	// identifier order, resuming after the last returned one.
	StrategyRoundRobin Strategy = iota
	// StrategyRandom samples uniformly from the eligible set.
	StrategyRandom
	// StrategyLeastRecentlyFailed prefers proxies with the fewest
	// consecutive failures, oldest last-used first.
	StrategyLeastRecentlyFailed
)

func (s Strategy) String() string {
	switch s {
	case StrategyRoundRobin:
		return "round-robin"
	case StrategyRandom:
		return "random"
	case StrategyLeastRecentlyFailed:
		return "least-recently-failed"
	}
	return "unknown"
}

// Policy controls rotation, health bookkeeping, and retry behavior.
// The zero value is usable: NewPool fills unset fields from DefaultPolicy.
type Policy struct {
	Strategy Strategy

	// Cooldown is how long a suspect proxy stays out of rotation after a
	// failure report.
	Cooldown time.Duration

	// BanThreshold is the consecutive-failure count at which a proxy is
	// permanently removed from rotation for the pool's lifetime.
	BanThreshold int

	// AllowDirect permits dispatching without a proxy when the pool has
	// no eligible entry. When false, an empty eligible set is terminal.
	AllowDirect bool

	// MaxAttempts is the total number of dispatch attempts per fetch,
	// overridable per request.
	MaxAttempts int

	// InitialWait and MaxWait bound the exponential backoff between
	// attempts.
	InitialWait time.Duration
	MaxWait     time.Duration

	// HonorRetryAfter raises the backoff wait to a rate-limit response's
	// Retry-After hint, capped at RetryAfterCap.
	HonorRetryAfter bool
	RetryAfterCap   time.Duration
}

// DefaultPolicy is suitable for scraping rate-limited public endpoints.
func DefaultPolicy() Policy {
	return Policy{
		Strategy:        StrategyRoundRobin,
		Cooldown:        30 * time.Second,
		BanThreshold:    5,
		AllowDirect:     false,
		MaxAttempts:     3,
		InitialWait:     500 * time.Millisecond,
		MaxWait:         10 * time.Second,
		HonorRetryAfter: true,
		RetryAfterCap:   2 * time.Minute,
	}
}

// withDefaults fills zero-valued tunables so a partially specified Policy
// behaves sanely. AllowDirect and HonorRetryAfter keep their literal value.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Cooldown == 0 {
		p.Cooldown = d.Cooldown
	}
	if p.BanThreshold == 0 {
		p.BanThreshold = d.BanThreshold
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialWait == 0 {
		p.InitialWait = d.InitialWait
	}
	if p.MaxWait == 0 {
		p.MaxWait = d.MaxWait
	}
	if p.RetryAfterCap == 0 {
		p.RetryAfterCap = d.RetryAfterCap
	}
	return p
}
