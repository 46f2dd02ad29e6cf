// Package sources fetches public proxy lists and turns them into
// validated identifiers for rotator.Pool.Load. Endpoint failures are
// tolerated as long as at least one list yields proxies.
package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	rotator "github.com/anatolykoptev/go-rotator"
)

// DefaultEndpoints are well-known public HTTP proxy lists, one
// host:port per line.
var DefaultEndpoints = []string{
	"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
	"https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/http.txt",
	"https://raw.githubusercontent.com/monosans/proxy-list/main/proxies/http.txt",
}

// maxListBytes caps how much of one list response is read.
const maxListBytes = 2 * 1024 * 1024

// Client fetches and merges proxy lists.
type Client struct {
	http      *http.Client
	endpoints []string
	scheme    string
	ua        rotator.UserAgentProvider
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the HTTP client used to fetch lists.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithEndpoints replaces the list endpoints.
func WithEndpoints(endpoints ...string) Option {
	return func(cl *Client) { cl.endpoints = endpoints }
}

// WithScheme sets the scheme assumed for bare host:port lines, e.g.
// "socks5" for SOCKS lists. Default "http".
func WithScheme(scheme string) Option {
	return func(cl *Client) { cl.scheme = scheme }
}

// WithUserAgentProvider swaps the User-Agent source.
func WithUserAgentProvider(p rotator.UserAgentProvider) Option {
	return func(cl *Client) { cl.ua = p }
}

// New creates a list client over DefaultEndpoints.
func New(opts ...Option) *Client {
	cl := &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		endpoints: DefaultEndpoints,
		scheme:    "http",
		ua:        rotator.StealthUserAgents{},
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Fetch downloads all endpoints concurrently and returns the merged,
// deduplicated, validated proxy identifiers. Fails only when every
// endpoint fails or yields nothing usable.
func (cl *Client) Fetch(ctx context.Context) ([]string, error) {
	var mu sync.Mutex
	var lines []string

	g, ctx := errgroup.WithContext(ctx)
	for _, endpoint := range cl.endpoints {
		g.Go(func() error {
			fetched, err := cl.fetchOne(ctx, endpoint)
			if err != nil {
				slog.Warn("proxy list fetch failed",
					slog.String("endpoint", endpoint),
					slog.Any("error", err),
				)
				return nil // other endpoints may still succeed
			}
			mu.Lock()
			lines = append(lines, fetched...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	skipped := 0
	for _, line := range lines {
		px, err := rotator.ParseProxy(cl.scheme + "://" + line)
		if err != nil {
			skipped++
			continue
		}
		if seen[px.ID] {
			continue
		}
		seen[px.ID] = true
		ids = append(ids, px.ID)
	}
	if skipped > 0 {
		slog.Debug("skipped malformed proxy entries", slog.Int("count", skipped))
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("sources: no usable proxies from %d endpoints", len(cl.endpoints))
	}
	slog.Info("proxy lists fetched",
		slog.Int("endpoints", len(cl.endpoints)),
		slog.Int("proxies", len(ids)),
	)
	return ids, nil
}

// fetchOne downloads one list and splits it into trimmed non-empty lines.
func (cl *Client) fetchOne(ctx context.Context, endpoint string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", cl.ua.Next())
	req.Header.Set("Accept", "text/plain,*/*;q=0.9")

	resp, err := cl.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Some lists ship scheme-prefixed entries; normalize to host:port.
		line = strings.TrimPrefix(line, "http://")
		line = strings.TrimPrefix(line, "https://")
		lines = append(lines, line)
	}
	return lines, nil
}
