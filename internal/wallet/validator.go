package wallet

import (
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ChainPattern describes one recognisable address family.
// The regex carries exactly one capturing group holding the address.
type ChainPattern struct {
	Name    string
	Symbol  string
	Regex   *regexp.Regexp
	MinLen  int
	MaxLen  int
	Example string
}

// Match is one classified address found in free text.
type Match struct {
	Address string
	Symbol  string
	Pattern string
}

// chainPatterns is ordered most-specific first so ambiguous strings are
// classified correctly (ETH hex before generic base58, cashaddr before
// plain base58, bech32 before legacy).
var chainPatterns = []ChainPattern{
	{
		Name:    "Ethereum / ERC-20",
		Symbol:  "ETH",
		Regex:   regexp.MustCompile(`\b(0x[a-fA-F0-9]{40})\b`),
		MinLen:  42,
		MaxLen:  42,
		Example: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
	},
	{
		Name:    "Tron / TRC-20",
		Symbol:  "TRX",
		Regex:   regexp.MustCompile(`\b(T[A-HJ-NP-Za-km-z1-9]{33})\b`),
		MinLen:  34,
		MaxLen:  34,
		Example: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
	},
	{
		Name:    "Bitcoin Cash",
		Symbol:  "BCH",
		Regex:   regexp.MustCompile(`\b(?:bitcoincash:)?((?:q|p)[a-z0-9]{41})\b`),
		MinLen:  42,
		MaxLen:  42,
		Example: "qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a",
	},
	{
		Name:    "Bitcoin (bech32)",
		Symbol:  "BTC",
		Regex:   regexp.MustCompile(`\b(bc1[a-z0-9]{39,59})\b`),
		MinLen:  42,
		MaxLen:  62,
		Example: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
	},
	{
		Name:    "Litecoin",
		Symbol:  "LTC",
		Regex:   regexp.MustCompile(`\b((?:ltc1|[LM])[a-km-zA-HJ-NP-Z1-9]{26,40})\b`),
		MinLen:  27,
		MaxLen:  44,
		Example: "LcHKx9JHzSM5Jy3bCEMkFcCJcCR3nH1Wmj",
	},
	{
		Name:    "Dogecoin",
		Symbol:  "DOGE",
		Regex:   regexp.MustCompile(`\b(D[5-9A-HJ-NP-U][1-9A-HJ-NP-Za-km-z]{32})\b`),
		MinLen:  34,
		MaxLen:  34,
		Example: "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L",
	},
	{
		Name:    "Dash",
		Symbol:  "DASH",
		Regex:   regexp.MustCompile(`\b(X[1-9A-HJ-NP-Za-km-z]{33})\b`),
		MinLen:  34,
		MaxLen:  34,
		Example: "XpESxaUmonkq8RaLLp46Brx2K39ggQe226",
	},
	{
		Name:    "XRP",
		Symbol:  "XRP",
		Regex:   regexp.MustCompile(`\b(r[0-9a-zA-Z]{24,34})\b`),
		MinLen:  25,
		MaxLen:  35,
		Example: "rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh",
	},
	{
		Name:    "Cardano",
		Symbol:  "ADA",
		Regex:   regexp.MustCompile(`\b(addr1[a-z0-9]{50,100})\b`),
		MinLen:  55,
		MaxLen:  110,
		Example: "addr1qx2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzer3n0d3vllmyqwsx5wktcd8cc3sq835lu7drv2xwl2wywfgse35a3x",
	},
	{
		Name:    "Bitcoin (legacy)",
		Symbol:  "BTC",
		Regex:   regexp.MustCompile(`\b([13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`),
		MinLen:  26,
		MaxLen:  35,
		Example: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	},
	{
		Name:    "Solana / base58",
		Symbol:  "SOL",
		Regex:   regexp.MustCompile(`\b([1-9A-HJ-NP-Za-km-z]{32,44})\b`),
		MinLen:  32,
		MaxLen:  44,
		Example: "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
	},
}

// Validator classifies candidate wallet addresses against the chain
// pattern registry.
type Validator struct {
	patterns []ChainPattern
}

// NewValidator returns a validator over the built-in registry.
func NewValidator() *Validator {
	return &Validator{patterns: chainPatterns}
}

// Patterns exposes the registry for listing commands.
func (v *Validator) Patterns() []ChainPattern {
	return v.patterns
}

// Validate classifies a single candidate string. The first (most
// specific) matching pattern wins. Returns nil when nothing matches.
func (v *Validator) Validate(candidate string) *Match {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil
	}

	for _, p := range v.patterns {
		loc := p.Regex.FindStringSubmatch(candidate)
		if loc == nil {
			continue
		}
		addr := loc[1]
		// The whole candidate must be the address, not a substring hit.
		if addr != strings.TrimPrefix(candidate, "bitcoincash:") {
			continue
		}
		if len(addr) < p.MinLen || len(addr) > p.MaxLen {
			continue
		}
		if p.Symbol == "BTC" && !validBitcoinChecksum(addr) {
			continue
		}
		return &Match{Address: addr, Symbol: p.Symbol, Pattern: p.Name}
	}
	return nil
}

// ScanText extracts every wallet address from free text, in discovery
// order, de-duplicated by literal address.
func (v *Validator) ScanText(text string) []Match {
	type hit struct {
		match Match
		pos   int
	}

	var hits []hit
	seen := make(map[string]bool)

	for _, p := range v.patterns {
		for _, loc := range p.Regex.FindAllStringSubmatchIndex(text, -1) {
			// Index 2,3 bound the first capturing group.
			addr := text[loc[2]:loc[3]]
			if len(addr) < p.MinLen || len(addr) > p.MaxLen {
				continue
			}
			if seen[addr] {
				continue
			}
			if p.Symbol == "BTC" && !validBitcoinChecksum(addr) {
				continue
			}
			seen[addr] = true
			hits = append(hits, hit{
				match: Match{Address: addr, Symbol: p.Symbol, Pattern: p.Name},
				pos:   loc[2],
			})
		}
	}

	// Restore discovery order across patterns.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	out := make([]Match, len(hits))
	for i, h := range hits {
		out[i] = h.match
	}
	return out
}

// IsValidForSymbol reports whether an address classifies as the expected
// token symbol.
func (v *Validator) IsValidForSymbol(address, expectedSymbol string) bool {
	m := v.Validate(address)
	if m == nil {
		return false
	}
	return strings.EqualFold(m.Symbol, expectedSymbol)
}

// validBitcoinChecksum confirms a regex hit against the real base58check
// or bech32 decoder so lookalike strings are rejected.
func validBitcoinChecksum(addr string) bool {
	_, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams)
	return err == nil
}
