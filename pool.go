package rotator

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ConfigError reports invalid pool or proxy-list configuration.
// It is fatal and surfaced at load time, before any fetch runs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "rotator: config: " + e.Reason }

// Pool holds the candidate proxies and their health state. It is the one
// shared mutable resource between concurrent fetches; all access is
// serialized through its mutex. Health is mutated only via Report.
type Pool struct {
	mu     sync.Mutex
	policy Policy
	states map[string]*proxyState
	order  []string // sorted identifiers, stable iteration order

	now func() time.Time // injected in tests
}

type proxyState struct {
	proxy         Proxy
	status        Status
	failures      int
	lastUsed      time.Time
	cooldownUntil time.Time
}

// NewPool creates an empty pool governed by policy.
func NewPool(policy Policy) *Pool {
	return &Pool{
		policy: policy.withDefaults(),
		states: make(map[string]*proxyState),
		now:    time.Now,
	}
}

// Policy returns the pool's rotation policy.
func (p *Pool) Policy() Policy { return p.policy }

// Load initializes the pool from raw proxy identifiers, all healthy.
// Malformed entries and an empty list without direct fallback are rejected
// with ConfigError so misconfiguration fails here rather than at dispatch.
func (p *Pool) Load(raw []string) error {
	parsed := make([]Proxy, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		px, err := ParseProxy(r)
		if err != nil {
			return &ConfigError{Reason: fmt.Sprintf("invalid proxy entry: %v", err)}
		}
		if seen[px.ID] {
			continue
		}
		seen[px.ID] = true
		parsed = append(parsed, px)
	}

	if len(parsed) == 0 && !p.policy.AllowDirect {
		return &ConfigError{Reason: "empty proxy list and direct fallback disabled"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = make(map[string]*proxyState, len(parsed))
	p.order = p.order[:0]
	for _, px := range parsed {
		p.states[px.ID] = &proxyState{proxy: px, status: StatusHealthy}
		p.order = append(p.order, px.ID)
	}
	sort.Strings(p.order)

	slog.Debug("proxy pool loaded", slog.Int("proxies", len(parsed)))
	return nil
}

// Report updates a proxy's health from a dispatch outcome. A success resets
// the failure counter and restores healthy; any failure increments it and
// puts the proxy in cooldown, or bans it once the threshold is reached.
// Banned is permanent for the pool's lifetime. Unknown identifiers (and ""
// for direct dispatches) are ignored.
func (p *Pool) Report(id string, outcome Outcome) {
	if id == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[id]
	if !ok || st.status == StatusBanned {
		return
	}

	if outcome.Kind == OutcomeSuccess {
		st.failures = 0
		st.status = StatusHealthy
		return
	}

	st.failures++
	if st.failures >= p.policy.BanThreshold {
		st.status = StatusBanned
		metrics.Banned.Add(1)
		slog.Info("proxy banned",
			slog.String("proxy", id),
			slog.Int("failures", st.failures),
			slog.String("last_outcome", outcome.Kind.String()),
		)
		return
	}
	st.status = StatusSuspect
	st.cooldownUntil = p.now().Add(p.policy.Cooldown)
}

// Eligible returns the identifiers currently in rotation: not banned and
// not within an active cooldown. Stable order, no side effects.
func (p *Pool) Eligible() []string {
	infos := p.eligibleInfos()
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return ids
}

// eligibleInfos snapshots the eligible entries with the health fields the
// selector strategies order by.
func (p *Pool) eligibleInfos() []ProxyInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	infos := make([]ProxyInfo, 0, len(p.order))
	for _, id := range p.order {
		st := p.states[id]
		if st.status == StatusBanned {
			continue
		}
		if st.status == StatusSuspect && now.Before(st.cooldownUntil) {
			continue
		}
		infos = append(infos, ProxyInfo{
			ID:       id,
			Status:   st.status,
			Failures: st.failures,
			LastUsed: st.lastUsed,
		})
	}
	return infos
}

// markUsed stamps a proxy's last-used time on selection.
func (p *Pool) markUsed(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.states[id]; ok {
		st.lastUsed = p.now()
	}
}

// Len returns the total number of proxies in the pool, banned included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Snapshot returns a point-in-time view of every pool entry, for
// diagnostics and persistence by the caller.
func (p *Pool) Snapshot() []ProxyInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]ProxyInfo, 0, len(p.order))
	for _, id := range p.order {
		st := p.states[id]
		infos = append(infos, ProxyInfo{
			ID:       id,
			Status:   st.status,
			Failures: st.failures,
			LastUsed: st.lastUsed,
		})
	}
	return infos
}
