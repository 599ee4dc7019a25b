package osint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rawblock/scam-investigator/pkg/models"
)

const vtBaseURL = "https://www.virustotal.com/api/v3"

// VirusTotalAdapter fetches the VT URL report for the target. The same
// client also serves file-hash lookups for captured downloads.
type VirusTotalAdapter struct {
	client *Client
	apiKey string
}

func (a *VirusTotalAdapter) Name() string { return "virustotal" }

func (a *VirusTotalAdapter) Lookup(ctx context.Context, target string) (*models.OSINTResult, error) {
	if err := a.client.wait(ctx, "virustotal"); err != nil {
		return nil, err
	}

	// VT v3 URL identifiers are the unpadded base64url of the URL.
	id := strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(target)), "=")

	stats, err := a.fetchStats(ctx, vtBaseURL+"/urls/"+id)
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("%d malicious, %d suspicious of %d engines",
		stats.Malicious, stats.Suspicious,
		stats.Malicious+stats.Suspicious+stats.Harmless+stats.Undetected)
	raw := map[string]interface{}{
		"malicious":  stats.Malicious,
		"suspicious": stats.Suspicious,
		"harmless":   stats.Harmless,
		"undetected": stats.Undetected,
	}
	return newResult("virustotal", summary, raw), nil
}

// FileHashReport looks up a captured download by SHA-256.
func (a *VirusTotalAdapter) FileHashReport(ctx context.Context, sha256 string) (*models.VirusTotalVerdict, error) {
	if err := a.client.wait(ctx, "virustotal"); err != nil {
		return nil, err
	}

	stats, err := a.fetchStats(ctx, vtBaseURL+"/files/"+sha256)
	if err != nil {
		if strings.Contains(err.Error(), "status 404") {
			return &models.VirusTotalVerdict{Found: false}, nil
		}
		return nil, err
	}

	return &models.VirusTotalVerdict{
		Found:      true,
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Harmless:   stats.Harmless,
		Undetected: stats.Undetected,
		Permalink:  "https://www.virustotal.com/gui/file/" + sha256,
	}, nil
}

type vtStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

func (a *VirusTotalAdapter) fetchStats(ctx context.Context, url string) (*vtStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-apikey", a.apiKey)

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("virustotal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("virustotal: status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Attributes struct {
				LastAnalysisStats vtStats `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("virustotal: decode: %w", err)
	}
	return &payload.Data.Attributes.LastAnalysisStats, nil
}
