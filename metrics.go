package rotator

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across all fetches in the process.
var metrics struct {
	Dispatches      atomic.Int64
	Successes       atomic.Int64
	RateLimited     atomic.Int64
	Blocked         atomic.Int64
	NetworkErrors   atomic.Int64
	Timeouts        atomic.Int64
	Retries         atomic.Int64
	DirectFallbacks atomic.Int64
	Banned          atomic.Int64
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"dispatches":       metrics.Dispatches.Load(),
		"successes":        metrics.Successes.Load(),
		"rate_limited":     metrics.RateLimited.Load(),
		"blocked":          metrics.Blocked.Load(),
		"network_errors":   metrics.NetworkErrors.Load(),
		"timeouts":         metrics.Timeouts.Load(),
		"retries":          metrics.Retries.Load(),
		"direct_fallbacks": metrics.DirectFallbacks.Load(),
		"proxies_banned":   metrics.Banned.Load(),
	}
}

// FormatMetrics returns counters as a simple text format for status
// endpoints and end-of-run summaries.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"dispatches", "successes",
		"rate_limited", "blocked", "network_errors", "timeouts",
		"retries", "direct_fallbacks", "proxies_banned",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}
