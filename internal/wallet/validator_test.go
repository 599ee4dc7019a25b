package wallet

import (
	"reflect"
	"testing"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestValidate_CanonicalExamples(t *testing.T) {
	v := NewValidator()

	for _, p := range v.Patterns() {
		m := v.Validate(p.Example)
		if m == nil {
			t.Fatalf("%s: example %q did not validate", p.Name, p.Example)
		}
		if m.Symbol != p.Symbol {
			t.Fatalf("%s: expected symbol %s, got %s", p.Name, p.Symbol, m.Symbol)
		}
	}
}

func TestValidate_OrderingPrefersSpecificChains(t *testing.T) {
	v := NewValidator()

	// An ETH address is hex and must never classify as generic base58.
	m := v.Validate("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	if m == nil || m.Symbol != "ETH" {
		t.Fatalf("expected ETH, got %+v", m)
	}

	// A Tron address is valid base58 of SOL-compatible length but must
	// classify as TRX because the Tron pattern is checked first.
	m = v.Validate("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	if m == nil || m.Symbol != "TRX" {
		t.Fatalf("expected TRX, got %+v", m)
	}
}

func TestValidate_RejectsGarbage(t *testing.T) {
	v := NewValidator()

	for _, bad := range []string{
		"",
		"   ",
		"hello world",
		"0x742d35",                            // too short for ETH
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7",         // BTC legacy with broken checksum
		"bc1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq", // bech32 with broken checksum
	} {
		if m := v.Validate(bad); m != nil {
			t.Fatalf("expected rejection for %q, got %+v", bad, m)
		}
	}
}

func TestScanText_OrderAndDedup(t *testing.T) {
	v := NewValidator()

	text := "Send USDT to TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t or ETH to " +
		"0x742d35Cc6634C0532925a3b844Bc454e4438f44e. Again: " +
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

	got := v.ScanText(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 unique matches, got %d: %+v", len(got), got)
	}
	if got[0].Symbol != "TRX" || got[1].Symbol != "ETH" {
		t.Fatalf("discovery order broken: %+v", got)
	}

	// Determinism: equal input yields an equal list.
	again := v.ScanText(text)
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("scan not deterministic: %+v vs %+v", got, again)
	}
}

func TestIsValidForSymbol(t *testing.T) {
	v := NewValidator()

	if !v.IsValidForSymbol("0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "eth") {
		t.Fatal("expected ETH address to validate for symbol eth")
	}
	if v.IsValidForSymbol("0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "BTC") {
		t.Fatal("ETH address must not validate for BTC")
	}
}

func TestNewWalletEntry_Invariants(t *testing.T) {
	if _, err := models.NewWalletEntry("https://x.test", "usdt", "TRX", "   ", models.CaptureLLM, 0.9); err == nil {
		t.Fatal("expected error for whitespace-only address")
	}

	e, err := models.NewWalletEntry("https://x.test", "usdt", "TRX", " T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb ", models.CaptureLLM, 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.TokenSymbol != "USDT" {
		t.Fatalf("symbol not uppercased: %q", e.TokenSymbol)
	}
	if e.NetworkShort != "trx" {
		t.Fatalf("network not lowercased: %q", e.NetworkShort)
	}
	if e.WalletAddress != "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb" {
		t.Fatalf("address not stripped: %q", e.WalletAddress)
	}
	if e.CapturedAt.IsZero() {
		t.Fatal("timestamp not defaulted")
	}
}

func TestHarvest_DedupPrefersMetadata(t *testing.T) {
	h := NewHarvest()

	bare, _ := models.NewWalletEntry("https://x.test", "", "", "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb", models.CaptureOpportunistic, 0.5)
	rich, _ := models.NewWalletEntry("https://x.test", "USDT", "trx", "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb", models.CaptureLLM, 0.9)

	if err := h.Add(bare); err != nil {
		t.Fatalf("add bare: %v", err)
	}
	if err := h.Add(rich); err != nil {
		t.Fatalf("add rich: %v", err)
	}

	if h.Len() != 1 {
		t.Fatalf("expected 1 unique entry, got %d", h.Len())
	}
	kept := h.Entries()[0]
	if kept.NetworkShort != "trx" || kept.Source != models.CaptureLLM {
		t.Fatalf("metadata-richer entry did not win: %+v", kept)
	}
}

func TestAllowlist_FilterBijection(t *testing.T) {
	al := NewAllowlist()

	mk := func(sym, net, addr string) models.WalletEntry {
		e, err := models.NewWalletEntry("https://x.test", sym, net, addr, models.CaptureLLM, 1)
		if err != nil {
			t.Fatalf("entry: %v", err)
		}
		return e
	}

	in := []models.WalletEntry{
		mk("USDT", "trx", "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"),
		mk("USDT", "", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"), // missing network
		mk("SHIB", "eth", "0x95aD61b0a150d79219dCF64E1E6Cc01f0B64C4cE"),
	}

	acc, disc := al.Filter(in)
	if len(acc)+len(disc) != len(in) {
		t.Fatalf("filter lost entries: %d + %d != %d", len(acc), len(disc), len(in))
	}
	if len(acc) != 1 || acc[0].TokenSymbol != "USDT" {
		t.Fatalf("expected only USDT/trx accepted: %+v", acc)
	}
	for _, d := range disc {
		if al.IsAllowed(d) {
			t.Fatalf("discarded entry is allowed: %+v", d)
		}
	}
}

func TestAllowlist_NetworksForSymbol(t *testing.T) {
	al := NewAllowlist()
	nets := al.NetworksForSymbol("usdt")
	if len(nets) != 8 {
		t.Fatalf("expected USDT on 8 networks, got %d: %v", len(nets), nets)
	}
}
