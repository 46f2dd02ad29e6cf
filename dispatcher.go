package rotator

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// Dispatcher issues one HTTP request through a chosen proxy (or directly
// for proxyID "") and classifies the result. No retries here; that is the
// Fetcher's job.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *FetchRequest, proxyID string) Outcome
}

// defaultMaxBodyBytes caps how much of a response body is read.
const defaultMaxBodyBytes = 3 * 1024 * 1024

// HTTPDispatcher is the net/http Dispatcher. It keeps one *http.Client
// per proxy so connection pools are reused across attempts, and sends
// randomized browser-shaped headers on every request.
type HTTPDispatcher struct {
	timeout time.Duration
	maxBody int64
	ua      UserAgentProvider
	pacer   *Pacer
	jar     http.CookieJar

	mu      sync.Mutex
	clients map[string]*http.Client
}

// DispatcherOption configures an HTTPDispatcher.
type DispatcherOption func(*HTTPDispatcher)

// WithTimeout bounds each dispatch attempt end to end.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(h *HTTPDispatcher) { h.timeout = d }
}

// WithUserAgentProvider swaps the User-Agent source, e.g. for a
// deterministic test double.
func WithUserAgentProvider(p UserAgentProvider) DispatcherOption {
	return func(h *HTTPDispatcher) { h.ua = p }
}

// WithPacer spaces dispatches through the given pacer.
func WithPacer(p *Pacer) DispatcherOption {
	return func(h *HTTPDispatcher) { h.pacer = p }
}

// WithMaxBodyBytes caps response body reads.
func WithMaxBodyBytes(n int64) DispatcherOption {
	return func(h *HTTPDispatcher) { h.maxBody = n }
}

// WithCookieJar attaches a cookie jar shared by all per-proxy clients.
func WithCookieJar(jar http.CookieJar) DispatcherOption {
	return func(h *HTTPDispatcher) { h.jar = jar }
}

// NewHTTPDispatcher creates a dispatcher with scraping-appropriate
// transport settings.
func NewHTTPDispatcher(opts ...DispatcherOption) *HTTPDispatcher {
	h := &HTTPDispatcher{
		timeout: 30 * time.Second,
		maxBody: defaultMaxBodyBytes,
		ua:      StealthUserAgents{},
		clients: make(map[string]*http.Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dispatch performs one outbound call and classifies it. The response body
// is fully read and closed on every exit path so no connection leaks,
// including on cancellation.
func (h *HTTPDispatcher) Dispatch(ctx context.Context, req *FetchRequest, proxyID string) Outcome {
	metrics.Dispatches.Add(1)

	if h.pacer != nil {
		if err := h.pacer.Wait(ctx); err != nil {
			return countOutcome(ClassifyError(err))
		}
	}

	client, err := h.clientFor(proxyID)
	if err != nil {
		return countOutcome(Outcome{Kind: OutcomeNetworkError, Err: err})
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return countOutcome(Outcome{Kind: OutcomeNetworkError, Err: err})
	}

	httpReq.Header = profileHeaders(randomProfile(), h.ua.Next())
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return countOutcome(ClassifyError(err))
	}
	defer resp.Body.Close()

	payload, err := h.readBody(resp)
	if err != nil {
		return countOutcome(ClassifyError(err))
	}

	return countOutcome(Classify(resp.StatusCode, resp.Header, payload))
}

// Warmup issues a throwaway priming request (e.g. a site's landing page)
// so later requests do not arrive cold. The outcome is discarded.
func (h *HTTPDispatcher) Warmup(ctx context.Context, rawURL, proxyID string) {
	h.Dispatch(ctx, &FetchRequest{URL: rawURL}, proxyID)
}

// clientFor returns the cached client for a proxy, building it on first
// use. proxyID "" is the direct client.
func (h *HTTPDispatcher) clientFor(proxyID string) (*http.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[proxyID]; ok {
		return c, nil
	}

	tr := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}

	if proxyID != "" {
		u, err := url.Parse(proxyID)
		if err != nil {
			return nil, fmt.Errorf("proxy %q: %w", proxyID, err)
		}
		if u.Scheme == "socks5" {
			dialer, err := xproxy.SOCKS5("tcp", u.Host, socksAuth(u), xproxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("socks5 dialer %q: %w", proxyID, err)
			}
			cd, ok := dialer.(xproxy.ContextDialer)
			if !ok {
				return nil, errors.New("socks5 dialer does not support context")
			}
			tr.DialContext = cd.DialContext
		} else {
			tr.Proxy = http.ProxyURL(u)
		}
	}

	c := &http.Client{
		Timeout:   h.timeout,
		Transport: tr,
		Jar:       h.jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
	h.clients[proxyID] = c
	return c, nil
}

func socksAuth(u *url.URL) *xproxy.Auth {
	if u.User == nil {
		return nil
	}
	pw, _ := u.User.Password()
	return &xproxy.Auth{User: u.User.Username(), Password: pw}
}

// readBody reads the capped response body, decompressing gzip if needed.
func (h *HTTPDispatcher) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, h.maxBody)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

// countOutcome bumps the per-kind metric and passes the outcome through.
func countOutcome(out Outcome) Outcome {
	switch out.Kind {
	case OutcomeSuccess:
		metrics.Successes.Add(1)
	case OutcomeRateLimited:
		metrics.RateLimited.Add(1)
	case OutcomeBlocked:
		metrics.Blocked.Add(1)
	case OutcomeNetworkError:
		metrics.NetworkErrors.Add(1)
	case OutcomeTimeout:
		metrics.Timeouts.Add(1)
	}
	return out
}
