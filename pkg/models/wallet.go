package models

import (
	"errors"
	"strings"
	"time"
)

// CaptureSource identifies how a wallet address was harvested.
type CaptureSource string

const (
	CaptureJS            CaptureSource = "js"
	CaptureLLM           CaptureSource = "llm"
	CaptureRegex         CaptureSource = "regex"
	CaptureOpportunistic CaptureSource = "opportunistic"
)

// WalletEntry is a single harvested cryptocurrency address.
// The (TokenSymbol, NetworkShort) pair is the allowlist lookup key.
type WalletEntry struct {
	SiteURL       string        `json:"site_url"`
	TokenName     string        `json:"token_name,omitempty"`
	TokenSymbol   string        `json:"token_symbol"`
	NetworkName   string        `json:"network_name,omitempty"`
	NetworkShort  string        `json:"network_short"`
	WalletAddress string        `json:"wallet_address"`
	Source        CaptureSource `json:"source"`
	Confidence    float64       `json:"confidence"`
	CapturedAt    time.Time     `json:"captured_at"`
	RunID         string        `json:"run_id,omitempty"`
}

// ErrEmptyWalletAddress is returned when a wallet entry is constructed
// without an address.
var ErrEmptyWalletAddress = errors.New("wallet address must not be empty")

// NewWalletEntry builds a normalized wallet entry. The address is
// whitespace-stripped and must be non-empty; the token symbol is
// uppercased and the network short code lowercased on ingest.
func NewWalletEntry(siteURL, symbol, networkShort, address string, source CaptureSource, confidence float64) (WalletEntry, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return WalletEntry{}, ErrEmptyWalletAddress
	}

	return WalletEntry{
		SiteURL:       siteURL,
		TokenSymbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		NetworkShort:  strings.ToLower(strings.TrimSpace(networkShort)),
		WalletAddress: address,
		Source:        source,
		Confidence:    confidence,
		CapturedAt:    time.Now().UTC(),
	}, nil
}

// Normalize re-applies the ingest casing rules. Used when entries arrive
// pre-built from LLM JSON instead of through NewWalletEntry.
func (w *WalletEntry) Normalize() error {
	w.WalletAddress = strings.TrimSpace(w.WalletAddress)
	if w.WalletAddress == "" {
		return ErrEmptyWalletAddress
	}
	w.TokenSymbol = strings.ToUpper(strings.TrimSpace(w.TokenSymbol))
	w.NetworkShort = strings.ToLower(strings.TrimSpace(w.NetworkShort))
	if w.CapturedAt.IsZero() {
		w.CapturedAt = time.Now().UTC()
	}
	return nil
}

// MetadataScore counts the populated descriptive fields. Deduplication
// keeps the entry with the higher score (non-empty network preferred).
func (w WalletEntry) MetadataScore() int {
	score := 0
	if w.TokenSymbol != "" {
		score++
	}
	if w.NetworkShort != "" {
		score += 2
	}
	if w.TokenName != "" {
		score++
	}
	if w.NetworkName != "" {
		score++
	}
	return score
}
