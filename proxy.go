package rotator

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Status is the health state of a proxy in the pool.
type Status int

const (
	StatusHealthy Status = iota
	StatusSuspect
	StatusBanned
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusSuspect:
		return "suspect"
	case StatusBanned:
		return "banned"
	}
	return "unknown"
}

// Proxy is one validated upstream identifier.
// ID is the canonical scheme://host:port form used as the pool key.
type Proxy struct {
	ID  string
	URL *url.URL
}

// ParseProxy validates a raw proxy identifier and canonicalizes it.
// Schemeless "host:port" entries are assumed to be plain HTTP proxies,
// matching the format of public proxy lists.
func ParseProxy(raw string) (Proxy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Proxy{}, fmt.Errorf("empty proxy identifier")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Proxy{}, fmt.Errorf("parse %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return Proxy{}, fmt.Errorf("unsupported proxy scheme %q in %q", u.Scheme, raw)
	}

	host := u.Hostname()
	if host == "" {
		return Proxy{}, fmt.Errorf("missing host in %q", raw)
	}
	port := u.Port()
	if port == "" {
		return Proxy{}, fmt.Errorf("missing port in %q", raw)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return Proxy{}, fmt.Errorf("invalid port %q in %q", port, raw)
	}

	canonical := &url.URL{Scheme: u.Scheme, User: u.User, Host: net.JoinHostPort(host, port)}
	return Proxy{ID: canonical.String(), URL: canonical}, nil
}

// ProxyInfo is a read-only snapshot of one pool entry.
type ProxyInfo struct {
	ID       string
	Status   Status
	Failures int
	LastUsed time.Time
}
