package investigator

import (
	"strings"
	"testing"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestCostTracker(t *testing.T) {
	tracker := NewCostTracker(1.0)
	tracker.Add("api", "virustotal", 0.30)
	if tracker.Exceeded() {
		t.Fatal("under budget must not be exceeded")
	}
	tracker.Add("llm", "classification", 0.80)
	if !tracker.Exceeded() {
		t.Fatal("over budget must flag exceeded")
	}

	sum := tracker.Summary()
	if sum.TotalUSD != 1.10 || !sum.BudgetExceeded || len(sum.Lines) != 2 {
		t.Fatalf("summary wrong: %+v", sum)
	}
}

func TestCostTrackerTokens(t *testing.T) {
	tracker := NewCostTracker(0) // no ceiling
	tracker.AddTokens("agent session", 1_000_000, 100_000)
	sum := tracker.Summary()
	want := 3.0 + 1.5
	if sum.TotalUSD != want {
		t.Fatalf("token pricing wrong: %f, want %f", sum.TotalUSD, want)
	}
	if sum.BudgetExceeded {
		t.Fatal("zero budget disables the exceeded flag")
	}
}

func TestOutputSlug(t *testing.T) {
	got := outputSlug("https://www.fake-exchange.example/promo", "a1b2c3d4e5f6")
	if got != "fake-exchange-example-a1b2c3d4" {
		t.Fatalf("slug wrong: %s", got)
	}
	// Short ids are kept whole.
	if got := outputSlug("scam.io", "xy"); got != "scam-io-xy" {
		t.Fatalf("short id slug wrong: %s", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	if got := normalizeURL("scam.example"); got != "https://scam.example" {
		t.Fatalf("bare domain not defaulted: %s", got)
	}
	if got := normalizeURL("http://scam.example"); got != "http://scam.example" {
		t.Fatalf("scheme must be preserved: %s", got)
	}
}

func TestParseBatchFile_Text(t *testing.T) {
	input := `# targets for tonight
https://one.example

two.example
# trailing comment
https://three.example`
	items, err := ParseBatchFile([]byte(input), "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[1].URL != "two.example" {
		t.Fatalf("whitespace not trimmed: %q", items[1].URL)
	}
}

func TestParseBatchFile_JSON(t *testing.T) {
	input := `[
		{"url": "https://one.example", "mode": "passive"},
		{"url": "https://two.example", "skip_virustotal": true}
	]`
	items, err := ParseBatchFile([]byte(input), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Mode != models.ModePassive || !items[1].SkipVirusTotal {
		t.Fatalf("per-URL options lost: %+v", items)
	}

	if _, err := ParseBatchFile([]byte(`[{"mode": "full"}]`), "json"); err == nil {
		t.Fatal("entry without url must fail")
	}
	if _, err := ParseBatchFile([]byte("x"), "yaml"); err == nil {
		t.Fatal("unknown format must fail")
	}
}

func reportFixture() *models.Investigation {
	return &models.Investigation{
		ID:        "inv-9",
		TargetURL: "https://scam.example",
		Mode:      models.ModeFull,
		Status:    models.StatusCompleted,
		StartedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Wallets: []models.WalletEntry{
			{WalletAddress: "Taddr1", TokenSymbol: "USDT", NetworkShort: "trx", Source: models.CaptureLLM, Confidence: 0.9},
			{WalletAddress: "0xaddr2", TokenSymbol: "USDT", NetworkShort: "eth", Source: models.CaptureJS, Confidence: 0.95},
		},
		Indicators: []models.ThreatIndicator{
			{Type: models.IndicatorDomain, Value: "scam.example"},
		},
		Taxonomy: &models.TaxonomyResult{
			RiskScore: 91.5,
			Intent:    []models.AxisLabel{{Label: "FAKE_INVESTMENT", Confidence: 0.9}},
		},
		Custody:  &models.ChainOfCustody{ArtifactCount: 4, HashAlgorithm: "SHA-256", PackageSHA256: "deadbeef"},
		Warnings: []string{"urlscan lookup failed: quota"},
	}
}

func TestRenderReport(t *testing.T) {
	out := RenderReport(reportFixture())
	for _, want := range []string{
		"# Investigation Report: https://scam.example",
		"91.5/100",
		"| `Taddr1` | USDT | trx |",
		"FAKE_INVESTMENT (0.90)",
		"urlscan lookup failed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderLEOReport(t *testing.T) {
	out := RenderLEOReport(reportFixture())
	if !strings.Contains(out, "### Network: eth") || !strings.Contains(out, "### Network: trx") {
		t.Fatalf("wallets not grouped by network:\n%s", out)
	}
	if !strings.Contains(out, "`deadbeef`") {
		t.Fatal("package hash missing from custody section")
	}
	// Networks are listed deterministically.
	if strings.Index(out, "Network: eth") > strings.Index(out, "Network: trx") {
		t.Fatal("network sections must be sorted")
	}
}
