package patterns

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rawblock/scam-investigator/internal/wallet"
)

// maxScannedBodyBytes caps how much of each response body is scanned for
// crypto addresses and exfil keywords.
const maxScannedBodyBytes = 50 * 1024

// HARFindings is the pure-function output of AnalyzeHAR.
type HARFindings struct {
	TotalRequests      int      `json:"totalRequests"`
	ThirdPartyDomains  []string `json:"thirdPartyDomains,omitempty"`
	SuspiciousTypes    []string `json:"suspiciousTypes,omitempty"`
	PhishingIndicators []string `json:"phishingIndicators,omitempty"`
	ExfilIndicators    []string `json:"exfilIndicators,omitempty"`
	CryptoAddresses    []string `json:"cryptoAddresses,omitempty"`
}

// Minimal HAR 1.2 shape; only the fields the scanners consume.
type harFile struct {
	Log struct {
		Entries []harEntry `json:"entries"`
	} `json:"log"`
}

type harEntry struct {
	Request struct {
		Method   string `json:"method"`
		URL      string `json:"url"`
		PostData *struct {
			Text string `json:"text"`
		} `json:"postData"`
	} `json:"request"`
	Response struct {
		Content struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"content"`
	} `json:"response"`
}

// AnalyzeHAR scans a HAR capture for third-party traffic, phishing-kit
// paths, exfiltration POSTs, dropper content types and crypto addresses.
// Pure function: same bytes and target domain yield the same findings.
func AnalyzeHAR(harJSON []byte, targetDomain string) (HARFindings, error) {
	var har harFile
	if err := json.Unmarshal(harJSON, &har); err != nil {
		return HARFindings{}, fmt.Errorf("parse HAR: %w", err)
	}

	targetDomain = strings.ToLower(targetDomain)
	validator := wallet.NewValidator()

	findings := HARFindings{TotalRequests: len(har.Log.Entries)}
	thirdParty := make(map[string]bool)
	seenAddr := make(map[string]bool)

	for _, entry := range har.Log.Entries {
		reqURL := entry.Request.URL

		if u, err := url.Parse(reqURL); err == nil && u.Hostname() != "" {
			host := strings.ToLower(u.Hostname())
			if host != targetDomain && !strings.HasSuffix(host, "."+targetDomain) && !thirdParty[host] {
				thirdParty[host] = true
				findings.ThirdPartyDomains = append(findings.ThirdPartyDomains, host)
			}
		}

		for _, p := range PhishingKitURLPatterns {
			if p.MatchString(reqURL) {
				findings.PhishingIndicators = append(findings.PhishingIndicators,
					fmt.Sprintf("%s matched %s", reqURL, p.String()))
				break
			}
		}

		if entry.Request.PostData != nil && strings.EqualFold(entry.Request.Method, "POST") {
			body := entry.Request.PostData.Text
			for _, p := range ExfilKeywordPatterns {
				if p.MatchString(body) {
					findings.ExfilIndicators = append(findings.ExfilIndicators,
						fmt.Sprintf("POST %s body matched %s", reqURL, p.String()))
				}
			}
		}

		mime := strings.ToLower(entry.Response.Content.MimeType)
		for _, sus := range SuspiciousContentTypes {
			if strings.HasPrefix(mime, sus) {
				findings.SuspiciousTypes = append(findings.SuspiciousTypes,
					fmt.Sprintf("%s served %s", reqURL, mime))
				break
			}
		}

		if !isTextLike(mime) {
			continue
		}
		body := entry.Response.Content.Text
		if len(body) > maxScannedBodyBytes {
			body = body[:maxScannedBodyBytes]
		}
		for _, m := range validator.ScanText(body) {
			if !seenAddr[m.Address] {
				seenAddr[m.Address] = true
				findings.CryptoAddresses = append(findings.CryptoAddresses, m.Address)
			}
		}
	}

	return findings, nil
}

func isTextLike(mime string) bool {
	for _, t := range textLikeContentTypes {
		if strings.HasPrefix(mime, t) {
			return true
		}
	}
	return false
}
