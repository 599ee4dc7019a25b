package browser

import (
	"math/rand"
	"strings"
	"sync"
)

// ProxyPool hands out proxy URLs for new sessions. Round-robin by
// default; sticky mode pins every session to the first proxy.
type ProxyPool struct {
	mu      sync.Mutex
	proxies []string
	next    int
	sticky  bool
}

// NewProxyPool builds a pool from a comma-separated list. Empty entries
// are dropped; an empty list yields a pool that always returns "".
func NewProxyPool(list string, sticky bool) *ProxyPool {
	var proxies []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return &ProxyPool{proxies: proxies, sticky: sticky}
}

// Next returns the proxy URL for the next session, or "" when the pool
// is empty.
func (p *ProxyPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return ""
	}
	if p.sticky {
		return p.proxies[0]
	}
	proxy := p.proxies[p.next%len(p.proxies)]
	p.next++
	return proxy
}

// Size reports the number of configured proxies.
func (p *ProxyPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Fingerprint is the per-session browser identity.
type Fingerprint struct {
	UserAgent   string
	Width       int
	Height      int
	Scale       float64
	Locale      string
	Timezone    string
	ColorScheme string
}

var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	}
	viewports = [][2]int{{1920, 1080}, {1680, 1050}, {1536, 864}, {1440, 900}, {1366, 768}}
	locales   = []string{"en-US", "en-GB", "en-CA"}
	timezones = []string{"America/New_York", "America/Chicago", "America/Los_Angeles", "Europe/London"}
	scales    = []float64{1.0, 1.25, 1.5}
	schemes   = []string{"light", "dark"}
)

// RandomFingerprint draws a session identity from the pools above.
func RandomFingerprint(r *rand.Rand) Fingerprint {
	vp := viewports[r.Intn(len(viewports))]
	return Fingerprint{
		UserAgent:   userAgents[r.Intn(len(userAgents))],
		Width:       vp[0],
		Height:      vp[1],
		Scale:       scales[r.Intn(len(scales))],
		Locale:      locales[r.Intn(len(locales))],
		Timezone:    timezones[r.Intn(len(timezones))],
		ColorScheme: schemes[r.Intn(len(schemes))],
	}
}
