package rotator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProxies = []string{"10.0.0.1:8001", "10.0.0.2:8002", "10.0.0.3:8003"}

// newTestPool returns a loaded pool with a controllable clock.
func newTestPool(t *testing.T, policy Policy, proxies []string) (*Pool, *time.Time) {
	t.Helper()
	now := time.Unix(1700000000, 0)
	p := NewPool(policy)
	p.now = func() time.Time { return now }
	require.NoError(t, p.Load(proxies))
	return p, &now
}

func failure() Outcome { return Outcome{Kind: OutcomeNetworkError} }
func success() Outcome { return Outcome{Kind: OutcomeSuccess} }

func TestPoolLoadEmptyNoDirect(t *testing.T) {
	p := NewPool(Policy{AllowDirect: false})
	err := p.Load(nil)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestPoolLoadEmptyWithDirect(t *testing.T) {
	p := NewPool(Policy{AllowDirect: true})
	require.NoError(t, p.Load(nil))
	assert.Equal(t, 0, p.Len())
}

func TestPoolLoadRejectsMalformed(t *testing.T) {
	p := NewPool(DefaultPolicy())
	err := p.Load([]string{"10.0.0.1:8001", "not a proxy"})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestPoolLoadCanonicalizesAndDedupes(t *testing.T) {
	p := NewPool(DefaultPolicy())
	require.NoError(t, p.Load([]string{"10.0.0.1:8001", "http://10.0.0.1:8001"}))
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, []string{"http://10.0.0.1:8001"}, p.Eligible())
}

func TestPoolBanThreshold(t *testing.T) {
	p, _ := newTestPool(t, Policy{BanThreshold: 3}, testProxies)
	id := "http://10.0.0.1:8001"

	for range 3 {
		p.Report(id, failure())
	}

	for _, info := range p.Snapshot() {
		if info.ID == id {
			assert.Equal(t, StatusBanned, info.Status)
		}
	}
	assert.NotContains(t, p.Eligible(), id)
}

func TestPoolSuccessResetsFailures(t *testing.T) {
	p, _ := newTestPool(t, Policy{BanThreshold: 5}, testProxies)
	id := "http://10.0.0.2:8002"

	p.Report(id, failure())
	p.Report(id, failure())
	p.Report(id, success())

	for _, info := range p.Snapshot() {
		if info.ID == id {
			assert.Equal(t, StatusHealthy, info.Status)
			assert.Equal(t, 0, info.Failures)
		}
	}
}

func TestPoolBanIsPermanent(t *testing.T) {
	p, _ := newTestPool(t, Policy{BanThreshold: 1}, testProxies)
	id := "http://10.0.0.3:8003"

	p.Report(id, failure())
	p.Report(id, success()) // must not resurrect

	for _, info := range p.Snapshot() {
		if info.ID == id {
			assert.Equal(t, StatusBanned, info.Status)
		}
	}
	assert.NotContains(t, p.Eligible(), id)
}

func TestPoolCooldown(t *testing.T) {
	p, now := newTestPool(t, Policy{BanThreshold: 5, Cooldown: time.Minute}, testProxies)
	id := "http://10.0.0.1:8001"

	p.Report(id, failure())
	assert.NotContains(t, p.Eligible(), id, "suspect proxy inside cooldown must be excluded")

	*now = now.Add(61 * time.Second)
	assert.Contains(t, p.Eligible(), id, "suspect proxy must return after cooldown")
}

func TestPoolConcurrentReports(t *testing.T) {
	const reports = 100
	p, _ := newTestPool(t, Policy{BanThreshold: reports + 1}, testProxies)
	id := "http://10.0.0.1:8001"

	var wg sync.WaitGroup
	for range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Report(id, failure())
		}()
	}
	wg.Wait()

	for _, info := range p.Snapshot() {
		if info.ID == id {
			assert.Equal(t, reports, info.Failures, "no failure report may be lost")
		}
	}
}

func TestPoolReportUnknownProxy(t *testing.T) {
	p, _ := newTestPool(t, DefaultPolicy(), testProxies)
	p.Report("http://unknown:1", failure()) // must not panic
	p.Report("", failure())                 // direct dispatches report no proxy
	assert.Equal(t, 3, p.Len())
}
