package evidence

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// WalletManifest is the standalone wallet listing written whenever an
// investigation harvested any addresses.
type WalletManifest struct {
	InvestigationID string                `json:"investigation_id"`
	TargetURL       string                `json:"target_url"`
	GeneratedAt     time.Time             `json:"generated_at"`
	WalletCount     int                   `json:"wallet_count"`
	UniqueNetworks  []string              `json:"unique_networks"`
	UniqueTokens    []string              `json:"unique_tokens"`
	Wallets         []models.WalletEntry  `json:"wallets"`
}

// BuildWalletManifest summarises the harvested wallets.
func BuildWalletManifest(inv *models.Investigation) *WalletManifest {
	networks := map[string]bool{}
	tokens := map[string]bool{}
	for _, w := range inv.Wallets {
		if w.NetworkShort != "" {
			networks[w.NetworkShort] = true
		}
		if w.TokenSymbol != "" {
			tokens[w.TokenSymbol] = true
		}
	}
	return &WalletManifest{
		InvestigationID: inv.ID,
		TargetURL:       inv.TargetURL,
		GeneratedAt:     time.Now().UTC(),
		WalletCount:     len(inv.Wallets),
		UniqueNetworks:  sortedKeys(networks),
		UniqueTokens:    sortedKeys(tokens),
		Wallets:         inv.Wallets,
	}
}

// JSON renders the manifest.
func (m *WalletManifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
