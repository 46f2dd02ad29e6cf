package rotator

import (
	"math/rand"
	"net/http"
	"strconv"
	"sync"

	stealth "github.com/anatolykoptev/go-stealth"
)

// UserAgentProvider yields a User-Agent string per outbound request.
type UserAgentProvider interface {
	Next() string
}

// userAgentChromeLinux is the offline fallback when no provider is set
// and go-stealth is unavailable at runtime.
const userAgentChromeLinux = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// StealthUserAgents draws from go-stealth's rotating browser UA set.
type StealthUserAgents struct{}

func (StealthUserAgents) Next() string { return stealth.RandomUserAgent() }

// StaticUserAgents cycles deterministically through a fixed list. Useful
// as a test double and for callers that pin their own agents.
type StaticUserAgents struct {
	mu     sync.Mutex
	agents []string
	i      int
}

// NewStaticUserAgents builds a cycling provider. With no arguments it
// serves a single Chrome/Linux agent.
func NewStaticUserAgents(agents ...string) *StaticUserAgents {
	if len(agents) == 0 {
		agents = []string{userAgentChromeLinux}
	}
	return &StaticUserAgents{agents: agents}
}

func (s *StaticUserAgents) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ua := s.agents[s.i%len(s.agents)]
	s.i++
	return ua
}

// browserProfile carries the client-hint fields that must stay consistent
// with each other across a request's headers.
type browserProfile struct {
	platform      string // Sec-CH-UA-Platform value
	viewportWidth int
	pixelRatio    int
}

var browserProfiles = []browserProfile{
	{platform: "Windows", viewportWidth: 1920, pixelRatio: 1},
	{platform: "macOS", viewportWidth: 1440, pixelRatio: 2},
	{platform: "Windows", viewportWidth: 1366, pixelRatio: 1},
}

func randomProfile() browserProfile {
	return browserProfiles[rand.Intn(len(browserProfiles))] //nolint:gosec // non-cryptographic use
}

// profileHeaders builds browser-shaped request headers for one profile.
// The caller's own headers are overlaid afterwards and win on conflict.
func profileHeaders(p browserProfile, userAgent string) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Sec-CH-UA-Mobile", "?0")
	h.Set("Sec-CH-UA-Platform", `"`+p.platform+`"`)
	h.Set("Viewport-Width", strconv.Itoa(p.viewportWidth))
	h.Set("DPR", strconv.Itoa(p.pixelRatio))
	return h
}
