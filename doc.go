// Package rotator selects, rotates, and retires HTTP proxies for outbound
// scraping requests, with randomized browser headers and bounded retries.
//
// The package is split by responsibility:
//
//	pool.go        proxy health state: failure counters, cooldowns, bans
//	selector.go    rotation strategies over the eligible set
//	dispatcher.go  one outbound call per Dispatch, per-proxy clients
//	classify.go    the outcome classification table
//	fetcher.go     the retry state machine tying the above together
//
// Subpackages: sources fetches public proxy lists to seed the pool,
// browser provides a Chrome TLS-fingerprint dispatcher, cache adds an
// optional tiered response cache in front of a Fetcher.
//
// Typical wiring:
//
//	pool := rotator.NewPool(rotator.DefaultPolicy())
//	if err := pool.Load(proxies); err != nil { ... }
//	f := rotator.NewFetcher(pool, rotator.NewHTTPDispatcher())
//	res, err := f.Fetch(ctx, &rotator.FetchRequest{URL: target})
package rotator
