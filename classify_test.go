package rotator

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestClassifyStatusTable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   OutcomeKind
	}{
		{"200 ok", 200, OutcomeSuccess},
		{"404 handed to caller", 404, OutcomeSuccess},
		{"429 rate limit", 429, OutcomeRateLimited},
		{"403 blocked", 403, OutcomeBlocked},
		{"408 timeout", 408, OutcomeTimeout},
		{"500 transient", 500, OutcomeNetworkError},
		{"502 transient", 502, OutcomeNetworkError},
		{"503 transient", 503, OutcomeNetworkError},
		{"504 transient", 504, OutcomeNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.status, http.Header{}, nil)
			if out.Kind != tt.want {
				t.Errorf("Classify(%d) = %s, want %s", tt.status, out.Kind, tt.want)
			}
			if out.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", out.StatusCode, tt.status)
			}
		})
	}
}

func TestClassifyCarriesBody(t *testing.T) {
	body := []byte("payload")
	out := Classify(200, http.Header{}, body)
	if string(out.Body) != "payload" {
		t.Errorf("Body = %q, want %q", out.Body, body)
	}
}

func TestClassifyCaptchaPage(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")

	tests := []struct {
		name string
		body string
		want OutcomeKind
	}{
		{"recaptcha widget", `<div class="g-recaptcha"></div>`, OutcomeBlocked},
		{"unusual traffic page", "Our systems have detected unusual traffic from your computer network", OutcomeBlocked},
		{"plain html", "<html><body>ok</body></html>", OutcomeSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(200, h, []byte(tt.body))
			if out.Kind != tt.want {
				t.Errorf("Classify() = %s, want %s", out.Kind, tt.want)
			}
		})
	}
}

func TestClassifyCaptchaIgnoresNonHTML(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	out := Classify(200, h, []byte(`{"note":"g-recaptcha"}`))
	if out.Kind != OutcomeSuccess {
		t.Errorf("Classify() = %s, want success for non-HTML body", out.Kind)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
		loose bool // date-based values depend on the wall clock
	}{
		{"seconds", "7", 7 * time.Second, false},
		{"zero", "0", 0, false},
		{"negative", "-5", 0, false},
		{"garbage", "soon", 0, false},
		{"absent", "", 0, false},
		{"http date", time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat), 30 * time.Second, true},
		{"past date", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			got := parseRetryAfter(h)
			if tt.loose {
				if got <= 0 || got > tt.want {
					t.Errorf("parseRetryAfter() = %v, want (0, %v]", got, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("parseRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, OutcomeTimeout},
		{"dns timeout", &net.DNSError{IsTimeout: true}, OutcomeTimeout},
		{"dns failure", &net.DNSError{Err: "no such host"}, OutcomeNetworkError},
		{"dial refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, OutcomeNetworkError},
		{"plain error", errors.New("broken pipe"), OutcomeNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ClassifyError(tt.err)
			if out.Kind != tt.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, out.Kind, tt.want)
			}
			if out.Err == nil {
				t.Error("ClassifyError() must carry the cause")
			}
		})
	}
}
