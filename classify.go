package rotator

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Classification table for HTTP responses:
//
//	429                      rate-limited (Retry-After parsed as hint)
//	403                      blocked
//	408                      timeout
//	500, 502, 503, 504       network-error (transient server side)
//	HTML captcha challenge   blocked, regardless of status
//	anything else            success; the payload goes back to the caller
//
// Transport errors map to timeout when the error is a deadline/timeout,
// network-error otherwise.

// captchaMarkers are substrings of known bot-challenge pages. Matched
// case-insensitively against the start of HTML bodies.
var captchaMarkers = [][]byte{
	[]byte("g-recaptcha"),
	[]byte("recaptcha/api.js"),
	[]byte("unusual traffic from your computer network"),
	[]byte("/das_captcha"),
	[]byte("captcha-form"),
}

// captchaSniffLimit bounds how much of the body the marker scan reads.
const captchaSniffLimit = 64 * 1024

// Classify maps an HTTP response to a dispatch outcome. body is the fully
// read (already size-capped) payload; it is carried on the outcome.
func Classify(statusCode int, header http.Header, body []byte) Outcome {
	out := Outcome{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		out.Kind = OutcomeRateLimited
		out.RetryAfter = parseRetryAfter(header)
		return out
	case http.StatusForbidden:
		out.Kind = OutcomeBlocked
		return out
	case http.StatusRequestTimeout:
		out.Kind = OutcomeTimeout
		return out
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		out.Kind = OutcomeNetworkError
		return out
	}

	if isCaptchaPage(header, body) {
		out.Kind = OutcomeBlocked
		return out
	}

	out.Kind = OutcomeSuccess
	return out
}

// ClassifyError maps a transport-level failure to an outcome.
func ClassifyError(err error) Outcome {
	out := Outcome{Err: err, Kind: OutcomeNetworkError}

	if errors.Is(err, context.DeadlineExceeded) {
		out.Kind = OutcomeTimeout
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		out.Kind = OutcomeTimeout
		return out
	}
	return out
}

// isCaptchaPage checks an HTML body for known bot-challenge markers.
func isCaptchaPage(header http.Header, body []byte) bool {
	if !strings.Contains(header.Get("Content-Type"), "text/html") {
		return false
	}
	if len(body) > captchaSniffLimit {
		body = body[:captchaSniffLimit]
	}
	lower := bytes.ToLower(body)
	for _, marker := range captchaMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseRetryAfter reads a Retry-After header as delay seconds or an HTTP
// date. Returns 0 when absent or unparseable.
func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
