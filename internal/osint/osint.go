// Package osint provides the passive reconnaissance adapters. Every
// adapter implements the same Lookup contract and is independently
// cancellable; failures are soft and become warnings on the record.
package osint

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// DefaultTimeout bounds a single adapter call unless the caller's context
// is tighter.
const DefaultTimeout = 15 * time.Second

// Adapter is the uniform interface over one OSINT signal.
type Adapter interface {
	Name() string
	Lookup(ctx context.Context, target string) (*models.OSINTResult, error)
}

// Client bundles the shared HTTP transport and per-provider rate limits.
// One Client is shared across concurrent investigations.
type Client struct {
	httpClient *http.Client
	limiters   map[string]*rate.Limiter
}

// Config carries the API keys and provider QPS settings.
type Config struct {
	VirusTotalAPIKey string
	URLScanAPIKey    string
	GeoIPEndpoint    string  // defaults to ip-api.com
	ProviderQPS      float64 // per-provider request rate, default 1
}

// NewClient builds the shared OSINT client.
func NewClient(cfg Config) *Client {
	qps := cfg.ProviderQPS
	if qps <= 0 {
		qps = 1
	}

	limiters := make(map[string]*rate.Limiter)
	for _, provider := range []string{"rdap", "dns", "tls", "geoip", "virustotal", "urlscan"} {
		limiters[provider] = rate.NewLimiter(rate.Limit(qps), 1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiters:   limiters,
	}
}

// wait blocks on the provider's rate limiter, honouring cancellation.
func (c *Client) wait(ctx context.Context, provider string) error {
	lim, ok := c.limiters[provider]
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// Adapters returns the adapter set for the given configuration. Keyed
// providers are omitted when unconfigured.
func Adapters(client *Client, cfg Config) []Adapter {
	out := []Adapter{
		&RDAPAdapter{client: client},
		&DNSAdapter{client: client},
		&TLSAdapter{client: client},
		&GeoIPAdapter{client: client, endpoint: cfg.GeoIPEndpoint},
	}
	if cfg.VirusTotalAPIKey != "" {
		out = append(out, &VirusTotalAdapter{client: client, apiKey: cfg.VirusTotalAPIKey})
	}
	if cfg.URLScanAPIKey != "" {
		out = append(out, &URLScanAdapter{client: client, apiKey: cfg.URLScanAPIKey})
	}
	return out
}

// DomainOf extracts the bare hostname from a URL or host string.
func DomainOf(target string) string {
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(target))
	}
	return strings.ToLower(u.Hostname())
}

func newResult(source, summary string, raw map[string]interface{}) *models.OSINTResult {
	return &models.OSINTResult{
		Source:    source,
		Summary:   summary,
		Raw:       raw,
		FetchedAt: time.Now().UTC(),
	}
}
