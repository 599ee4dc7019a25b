package wallet

import "github.com/rawblock/scam-investigator/pkg/models"

// Harvest accumulates wallet entries for one investigation, de-duplicated
// by literal address.
type Harvest struct {
	entries []models.WalletEntry
	byAddr  map[string]int
}

// NewHarvest returns an empty harvest.
func NewHarvest() *Harvest {
	return &Harvest{byAddr: make(map[string]int)}
}

// Add inserts an entry. At most one entry per literal address is kept;
// on a duplicate the metadata-richer entry wins (higher confidence breaks
// ties), and empty symbol/network fields are backfilled from the loser.
func (h *Harvest) Add(entry models.WalletEntry) error {
	if err := entry.Normalize(); err != nil {
		return err
	}

	idx, ok := h.byAddr[entry.WalletAddress]
	if !ok {
		h.byAddr[entry.WalletAddress] = len(h.entries)
		h.entries = append(h.entries, entry)
		return nil
	}

	existing := h.entries[idx]
	if entry.MetadataScore() > existing.MetadataScore() ||
		(entry.MetadataScore() == existing.MetadataScore() && entry.Confidence > existing.Confidence) {
		if entry.TokenSymbol == "" {
			entry.TokenSymbol = existing.TokenSymbol
		}
		if entry.NetworkShort == "" {
			entry.NetworkShort = existing.NetworkShort
		}
		h.entries[idx] = entry
	}
	return nil
}

// Merge adds every entry from a slice, ignoring empty-address failures.
func (h *Harvest) Merge(entries []models.WalletEntry) {
	for _, e := range entries {
		_ = h.Add(e)
	}
}

// Entries returns the accumulated list in insertion order.
func (h *Harvest) Entries() []models.WalletEntry {
	return h.entries
}

// Len reports the number of unique addresses held.
func (h *Harvest) Len() int {
	return len(h.entries)
}
