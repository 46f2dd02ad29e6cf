package rotator

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
)

// ErrNoProxyAvailable is returned by Selector.Next when the eligible set
// is empty. Transient: proxies may come back once cooldowns elapse.
var ErrNoProxyAvailable = errors.New("rotator: no eligible proxy available")

// Selector chooses the next proxy for an outbound request, applying the
// pool policy's rotation strategy. Safe for concurrent use.
type Selector struct {
	pool *Pool

	mu     sync.Mutex
	cursor string // last returned identifier, round-robin resume point
}

// NewSelector builds a selector over pool, using the pool's policy.
func NewSelector(pool *Pool) *Selector {
	return &Selector{pool: pool}
}

// Next returns the next proxy identifier per the rotation strategy, or
// ErrNoProxyAvailable when nothing is eligible. The caller decides whether
// that is fatal or falls through to a direct connection. Selection stamps
// the proxy's last-used time.
func (s *Selector) Next() (string, error) {
	infos := s.pool.eligibleInfos()
	if len(infos) == 0 {
		return "", ErrNoProxyAvailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	switch s.pool.policy.Strategy {
	case StrategyRandom:
		id = infos[rand.Intn(len(infos))].ID //nolint:gosec // non-cryptographic use
	case StrategyLeastRecentlyFailed:
		id = leastRecentlyFailed(infos)
	default:
		id = s.nextAfterCursor(infos)
	}

	s.cursor = id
	s.pool.markUsed(id)
	return id, nil
}

// nextAfterCursor resumes stable-order cycling after the last returned
// identifier, wrapping to the front. infos is already in identifier order.
func (s *Selector) nextAfterCursor(infos []ProxyInfo) string {
	if s.cursor == "" {
		return infos[0].ID
	}
	for _, info := range infos {
		if info.ID > s.cursor {
			return info.ID
		}
	}
	return infos[0].ID
}

// leastRecentlyFailed orders by ascending failure counter, then oldest
// last-used, then identifier for determinism.
func leastRecentlyFailed(infos []ProxyInfo) string {
	sorted := make([]ProxyInfo, len(infos))
	copy(sorted, infos)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Failures != b.Failures {
			return a.Failures < b.Failures
		}
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.Before(b.LastUsed)
		}
		return a.ID < b.ID
	})
	return sorted[0].ID
}
