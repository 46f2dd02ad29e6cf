// Package browser is a rotator.Dispatcher backed by tls-client with a
// Chrome TLS fingerprint, so requests survive JA3-based bot detection
// that plain net/http does not. One client is kept per proxy.
package browser

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	rotator "github.com/anatolykoptev/go-rotator"
)

const defaultMaxBodyBytes = 3 * 1024 * 1024

// Dispatcher implements rotator.Dispatcher over tls-client.
type Dispatcher struct {
	timeoutSeconds int
	maxBody        int64
	ua             rotator.UserAgentProvider

	mu      sync.Mutex
	clients map[string]tls_client.HttpClient
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeoutSeconds bounds each request.
func WithTimeoutSeconds(s int) Option {
	return func(d *Dispatcher) { d.timeoutSeconds = s }
}

// WithUserAgentProvider swaps the User-Agent source.
func WithUserAgentProvider(p rotator.UserAgentProvider) Option {
	return func(d *Dispatcher) { d.ua = p }
}

// WithMaxBodyBytes caps response body reads.
func WithMaxBodyBytes(n int64) Option {
	return func(d *Dispatcher) { d.maxBody = n }
}

// New creates a Chrome-fingerprint dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		timeoutSeconds: 30,
		maxBody:        defaultMaxBodyBytes,
		ua:             rotator.StealthUserAgents{},
		clients:        make(map[string]tls_client.HttpClient),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch performs one outbound call with a Chrome TLS fingerprint and
// classifies the result.
func (d *Dispatcher) Dispatch(ctx context.Context, req *rotator.FetchRequest, proxyID string) rotator.Outcome {
	client, err := d.clientFor(proxyID)
	if err != nil {
		return rotator.Outcome{Kind: rotator.OutcomeNetworkError, Err: err}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := fhttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return rotator.Outcome{Kind: rotator.OutcomeNetworkError, Err: err}
	}

	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	httpReq.Header.Set("User-Agent", d.ua.Next())
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	// Chrome-like header order matters for fingerprinting.
	httpReq.Header[fhttp.HeaderOrderKey] = []string{
		"accept",
		"accept-language",
		"accept-encoding",
		"referer",
		"cookie",
		"user-agent",
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return rotator.ClassifyError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody))
	if err != nil {
		return rotator.ClassifyError(err)
	}

	return rotator.Classify(resp.StatusCode, http.Header(resp.Header), payload)
}

// clientFor returns the cached tls-client for a proxy, building it on
// first use. proxyID "" is the direct client.
func (d *Dispatcher) clientFor(proxyID string) (tls_client.HttpClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[proxyID]; ok {
		return c, nil
	}

	opts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(d.timeoutSeconds),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithNotFollowRedirects(),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
		tls_client.WithInsecureSkipVerify(),
	}
	if proxyID != "" {
		opts = append(opts, tls_client.WithProxyUrl(proxyID))
	}

	client, err := tls_client.NewHttpClient(nil, opts...)
	if err != nil {
		return nil, err
	}
	d.clients[proxyID] = client
	return client, nil
}
