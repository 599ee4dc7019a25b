package osint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rawblock/scam-investigator/pkg/models"
)

const urlscanSearch = "https://urlscan.io/api/v1/search/"

// URLScanAdapter queries existing urlscan.io verdicts for the domain.
// Read-only search; we never submit the target for a fresh public scan,
// which would tip off the operator.
type URLScanAdapter struct {
	client *Client
	apiKey string
}

func (a *URLScanAdapter) Name() string { return "urlscan" }

func (a *URLScanAdapter) Lookup(ctx context.Context, target string) (*models.OSINTResult, error) {
	domain := DomainOf(target)
	if err := a.client.wait(ctx, "urlscan"); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", "domain:"+domain)
	q.Set("size", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlscanSearch+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("API-Key", a.apiKey)

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("urlscan %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("urlscan %s: quota exhausted", domain)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("urlscan %s: status %d", domain, resp.StatusCode)
	}

	var payload struct {
		Total   int `json:"total"`
		Results []struct {
			Task struct {
				URL  string `json:"url"`
				Time string `json:"time"`
			} `json:"task"`
			Verdicts struct {
				Overall struct {
					Score     int  `json:"score"`
					Malicious bool `json:"malicious"`
				} `json:"overall"`
			} `json:"verdicts"`
			Result string `json:"result"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("urlscan %s: decode: %w", domain, err)
	}

	malicious := 0
	var scans []map[string]interface{}
	for _, r := range payload.Results {
		if r.Verdicts.Overall.Malicious {
			malicious++
		}
		scans = append(scans, map[string]interface{}{
			"url":       r.Task.URL,
			"time":      r.Task.Time,
			"score":     r.Verdicts.Overall.Score,
			"malicious": r.Verdicts.Overall.Malicious,
			"result":    r.Result,
		})
	}

	raw := map[string]interface{}{
		"total": payload.Total,
		"scans": scans,
	}
	summary := fmt.Sprintf("%d historical scans, %d flagged malicious", payload.Total, malicious)
	return newResult("urlscan", summary, raw), nil
}
