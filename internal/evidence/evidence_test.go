package evidence

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func testInvestigation() *models.Investigation {
	return &models.Investigation{
		ID:        "inv-test-1",
		TargetURL: "https://scam.example",
		Wallets: []models.WalletEntry{
			{WalletAddress: "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb", TokenSymbol: "USDT", NetworkShort: "trx", Source: models.CaptureLLM, Confidence: 0.9},
			{WalletAddress: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", TokenSymbol: "USDT", NetworkShort: "eth", Source: models.CaptureLLM, Confidence: 0.9},
			{WalletAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", TokenSymbol: "BTC", NetworkShort: "btc", Source: models.CaptureOpportunistic, Confidence: 0.7},
		},
		Indicators: []models.ThreatIndicator{
			{Type: models.IndicatorDomain, Value: "scam.example"},
			{Type: models.IndicatorIPv4, Value: "93.184.216.34"},
		},
		Downloads: []models.DownloadArtifact{
			{Filename: "wallet.apk", SHA256: "ab12", SizeBytes: 1024, Malicious: true},
		},
	}
}

func TestSTIX_DeterministicIDs(t *testing.T) {
	inv := testInvestigation()
	b1, err := BuildSTIXBundle(inv)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := BuildSTIXBundle(inv)
	if err != nil {
		t.Fatal(err)
	}

	ids := func(data []byte) []string {
		var bundle struct {
			Objects []struct {
				ID string `json:"id"`
			} `json:"objects"`
		}
		if err := json.Unmarshal(data, &bundle); err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, o := range bundle.Objects {
			out = append(out, o.ID)
		}
		return out
	}

	a, b := ids(b1), ids(b2)
	if len(a) != len(b) {
		t.Fatalf("object counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic id at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestSTIX_Contents(t *testing.T) {
	data, err := BuildSTIXBundle(testInvestigation())
	if err != nil {
		t.Fatal(err)
	}

	var bundle struct {
		Type    string `json:"type"`
		Objects []struct {
			Type        string `json:"type"`
			SpecVersion string `json:"spec_version"`
			Pattern     string `json:"pattern"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatal(err)
	}
	if bundle.Type != "bundle" {
		t.Fatalf("not a bundle: %s", bundle.Type)
	}

	counts := map[string]int{}
	walletPatterns := 0
	for _, o := range bundle.Objects {
		counts[o.Type]++
		if o.Type != "bundle" && o.SpecVersion != "2.1" {
			t.Fatalf("object %s missing spec_version 2.1", o.Type)
		}
		if strings.Contains(o.Pattern, "cryptocurrency-wallet:address") {
			walletPatterns++
		}
	}

	// 2 threat indicators + 3 wallets, no overlap.
	if counts["indicator"] != 5 {
		t.Fatalf("expected 5 indicators, got %d", counts["indicator"])
	}
	if counts["relationship"] != 5 {
		t.Fatalf("each indicator needs a relationship, got %d", counts["relationship"])
	}
	if counts["identity"] != 1 || counts["infrastructure"] != 1 {
		t.Fatalf("identity/infrastructure wrong: %v", counts)
	}
	if counts["malware"] != 1 {
		t.Fatalf("malicious download should yield one malware SDO, got %d", counts["malware"])
	}
	if walletPatterns != 3 {
		t.Fatalf("wallets must use cryptocurrency-wallet patterns, got %d", walletPatterns)
	}
}

func TestSTIX_DedupAcrossInputs(t *testing.T) {
	inv := testInvestigation()
	// Same address both as threat indicator and wallet entry.
	inv.Indicators = append(inv.Indicators, models.ThreatIndicator{
		Type: models.IndicatorCryptoWallet, Value: "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb",
	})

	data, err := BuildSTIXBundle(inv)
	if err != nil {
		t.Fatal(err)
	}
	var bundle struct {
		Objects []struct {
			Type string `json:"type"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatal(err)
	}
	indicators := 0
	for _, o := range bundle.Objects {
		if o.Type == "indicator" {
			indicators++
		}
	}
	// Still 5: the duplicated wallet collapses to one indicator.
	if indicators != 5 {
		t.Fatalf("duplicate wallet not de-duplicated: %d indicators", indicators)
	}
}

func TestWalletManifest(t *testing.T) {
	m := BuildWalletManifest(testInvestigation())
	if m.WalletCount != 3 {
		t.Fatalf("wallet count wrong: %d", m.WalletCount)
	}
	if len(m.UniqueNetworks) != 3 || len(m.UniqueTokens) != 2 {
		t.Fatalf("uniques wrong: networks=%v tokens=%v", m.UniqueNetworks, m.UniqueTokens)
	}
	data, err := m.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var round WalletManifest
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatal(err)
	}
	if len(round.Wallets) != 3 {
		t.Fatal("wallet records lost in serialisation")
	}
}

func TestEvidenceZip_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	inv := testInvestigation()

	artifacts := map[string][]byte{
		"investigation.json":      []byte(`{"id": "inv-test-1"}`),
		"screenshot.png":          bytes.Repeat([]byte{0x89, 0x50}, 512),
		"downloads/wallet.apk":    []byte("not really an apk"),
		"wallet_manifest.json":    []byte(`{"wallet_count": 3}`),
	}
	for rel, data := range artifacts {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	custody, err := BuildEvidenceZip(dir, inv)
	if err != nil {
		t.Fatal(err)
	}
	if custody.ArtifactCount != len(artifacts) {
		t.Fatalf("expected %d artifacts, got %d", len(artifacts), custody.ArtifactCount)
	}
	if custody.PackageSHA256 == "" {
		t.Fatal("package hash missing")
	}

	// The recorded package hash matches the ZIP bytes.
	zipPath := filepath.Join(dir, "evidence.zip")
	zipBytes, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(zipBytes)
	if custody.PackageSHA256 != hex.EncodeToString(sum[:]) {
		t.Fatal("package_sha256 does not match the archive")
	}

	// Extract and compare every entry hash against the in-ZIP manifest.
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var manifest zipManifest
	extracted := map[string][]byte{}
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if f.Name == "manifest.json" {
			if err := json.Unmarshal(data, &manifest); err != nil {
				t.Fatal(err)
			}
			continue
		}
		extracted[f.Name] = data
	}

	if len(manifest.Artifacts) != len(artifacts) {
		t.Fatalf("manifest lists %d artifacts, want %d", len(manifest.Artifacts), len(artifacts))
	}
	for _, a := range manifest.Artifacts {
		data, ok := extracted[a.File]
		if !ok {
			t.Fatalf("manifest names %s but the archive lacks it", a.File)
		}
		sum := sha256.Sum256(data)
		if a.SHA256 != hex.EncodeToString(sum[:]) {
			t.Fatalf("hash mismatch for %s", a.File)
		}
		if a.SizeBytes != int64(len(data)) {
			t.Fatalf("size mismatch for %s", a.File)
		}
	}
}

func TestEvidenceZip_EmptyDirFails(t *testing.T) {
	if _, err := BuildEvidenceZip(t.TempDir(), testInvestigation()); err == nil {
		t.Fatal("empty evidence dir must fail")
	}
}

func TestLEAPackage(t *testing.T) {
	dir := t.TempDir()
	// Only some handoff files exist.
	for _, name := range []string{"stix_bundle.json", "wallet_manifest.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	custody := &models.ChainOfCustody{InvestigationID: "inv-test-1", PackageSHA256: "abc"}
	var buf bytes.Buffer
	if err := StreamLEAPackage(&buf, dir, custody); err != nil {
		t.Fatal(err)
	}

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
	}
	for _, want := range []string{"stix_bundle.json", "wallet_manifest.json", "chain_of_custody.json"} {
		if !names[want] {
			t.Fatalf("LEA package missing %s (has %v)", want, names)
		}
	}
}

func TestLEAPackage_NothingToShip(t *testing.T) {
	var buf bytes.Buffer
	err := StreamLEAPackage(&buf, t.TempDir(), nil)
	if !errors.Is(err, ErrNoLEAArtifacts) {
		t.Fatalf("expected ErrNoLEAArtifacts, got %v", err)
	}
}

func TestLocalStorage(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "evidence.zip")
	if err := os.WriteFile(src, []byte("zip bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	ref, err := store.Put(context.Background(), "inv-1/evidence.zip", src)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ref, root) {
		t.Fatalf("local ref should live under root: %s", ref)
	}

	rc, err := store.Open(context.Background(), "inv-1/evidence.zip")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "zip bytes" {
		t.Fatalf("round-trip corrupted: %q", data)
	}

	url, err := store.SignedURL(context.Background(), "inv-1/evidence.zip", 0)
	if err != nil || url != "" {
		t.Fatalf("local backend has no signed urls: %q %v", url, err)
	}
}
