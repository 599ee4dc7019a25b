package wallet

import (
	"encoding/json"
	"log"
	"os"
	"strings"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// AllowedPair is one curated (token, network) quadruple.
type AllowedPair struct {
	TokenName    string `json:"token_name"`
	TokenSymbol  string `json:"token_symbol"`
	Network      string `json:"network"`
	NetworkShort string `json:"network_short"`
}

// defaultAllowlist covers the native tokens of the supported chains plus
// USDT/USDC on the eight networks they commonly ride on.
var defaultAllowlist = []AllowedPair{
	{"Bitcoin", "BTC", "Bitcoin", "btc"},
	{"Ethereum", "ETH", "Ethereum", "eth"},
	{"Tron", "TRX", "Tron", "trx"},
	{"Litecoin", "LTC", "Litecoin", "ltc"},
	{"Dogecoin", "DOGE", "Dogecoin", "doge"},
	{"Bitcoin Cash", "BCH", "Bitcoin Cash", "bch"},
	{"Dash", "DASH", "Dash", "dash"},
	{"XRP", "XRP", "XRP Ledger", "xrp"},
	{"Cardano", "ADA", "Cardano", "ada"},
	{"Solana", "SOL", "Solana", "sol"},
	{"Tether", "USDT", "Tron", "trx"},
	{"Tether", "USDT", "Ethereum", "eth"},
	{"Tether", "USDT", "BNB Smart Chain", "bsc"},
	{"Tether", "USDT", "Polygon", "polygon"},
	{"Tether", "USDT", "Arbitrum", "arb"},
	{"Tether", "USDT", "Optimism", "op"},
	{"Tether", "USDT", "Avalanche", "avax"},
	{"Tether", "USDT", "Solana", "sol"},
	{"USD Coin", "USDC", "Ethereum", "eth"},
	{"USD Coin", "USDC", "Tron", "trx"},
	{"USD Coin", "USDC", "BNB Smart Chain", "bsc"},
	{"USD Coin", "USDC", "Polygon", "polygon"},
	{"USD Coin", "USDC", "Arbitrum", "arb"},
	{"USD Coin", "USDC", "Optimism", "op"},
	{"USD Coin", "USDC", "Avalanche", "avax"},
	{"USD Coin", "USDC", "Solana", "sol"},
}

// Allowlist filters harvested wallet entries down to the curated
// (symbol, network_short) pairs approved for export.
type Allowlist struct {
	pairs []AllowedPair
	index map[string]bool // "SYMBOL|short"
}

// NewAllowlist returns the built-in default list.
func NewAllowlist() *Allowlist {
	return newAllowlist(defaultAllowlist)
}

// LoadAllowlist reads a JSON pair list from path. A missing or malformed
// file falls back to the built-in default with a warning; the filter must
// never be empty.
func LoadAllowlist(path string) *Allowlist {
	if path == "" {
		return NewAllowlist()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Allowlist: cannot read %s, using built-in default: %v", path, err)
		return NewAllowlist()
	}

	var pairs []AllowedPair
	if err := json.Unmarshal(raw, &pairs); err != nil || len(pairs) == 0 {
		log.Printf("Allowlist: malformed %s, using built-in default", path)
		return NewAllowlist()
	}
	return newAllowlist(pairs)
}

func newAllowlist(pairs []AllowedPair) *Allowlist {
	al := &Allowlist{index: make(map[string]bool, len(pairs))}
	for _, p := range pairs {
		p.TokenSymbol = strings.ToUpper(strings.TrimSpace(p.TokenSymbol))
		p.NetworkShort = strings.ToLower(strings.TrimSpace(p.NetworkShort))
		al.pairs = append(al.pairs, p)
		al.index[p.TokenSymbol+"|"+p.NetworkShort] = true
	}
	return al
}

// Pairs returns the configured quadruples.
func (al *Allowlist) Pairs() []AllowedPair {
	return al.pairs
}

// IsAllowed checks a wallet entry by exact (symbol, network_short) match.
func (al *Allowlist) IsAllowed(entry models.WalletEntry) bool {
	if entry.TokenSymbol == "" || entry.NetworkShort == "" {
		return false
	}
	return al.index[strings.ToUpper(entry.TokenSymbol)+"|"+strings.ToLower(entry.NetworkShort)]
}

// NetworksForSymbol lists every allowed network short code for a token.
func (al *Allowlist) NetworksForSymbol(symbol string) []string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var nets []string
	for _, p := range al.pairs {
		if p.TokenSymbol == symbol {
			nets = append(nets, p.NetworkShort)
		}
	}
	return nets
}

// Filter splits entries into (accepted, discarded). Entries with an
// empty symbol or network short are always discarded: they need LLM
// enrichment before they can be matched against the list.
func (al *Allowlist) Filter(entries []models.WalletEntry) (accepted, discarded []models.WalletEntry) {
	for _, e := range entries {
		if al.IsAllowed(e) {
			accepted = append(accepted, e)
		} else {
			discarded = append(discarded, e)
		}
	}
	return accepted, discarded
}
