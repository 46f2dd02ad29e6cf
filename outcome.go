package rotator

import (
	"net/http"
	"time"
)

// OutcomeKind classifies the result of one dispatch attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRateLimited
	OutcomeBlocked
	OutcomeNetworkError
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate-limited"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeNetworkError:
		return "network-error"
	case OutcomeTimeout:
		return "timeout"
	}
	return "unknown"
}

// Outcome is the transient result of one dispatch attempt. On success the
// payload is carried in Body; parsing it is the caller's job.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Header     http.Header
	Body       []byte

	// RetryAfter is the server's rate-limit hint, 0 when absent.
	RetryAfter time.Duration

	// Err is the transport error for network-error and timeout outcomes.
	Err error
}

// Failed reports whether the outcome is any of the failure kinds.
func (o Outcome) Failed() bool { return o.Kind != OutcomeSuccess }
