package db

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// DomainOf extracts the bare hostname from a target URL for the
// queryable domain column. Falls back to the raw input when parsing
// fails.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// Bare domains arrive without a scheme.
		u, err = url.Parse("https://" + rawURL)
		if err != nil || u.Host == "" {
			return strings.ToLower(strings.TrimSpace(rawURL))
		}
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// marshalInvestigation encodes the full record for the JSON column.
func marshalInvestigation(inv *models.Investigation) (interface{}, error) {
	if inv == nil {
		return nil, nil
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode investigation: %w", err)
	}
	return string(data), nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
