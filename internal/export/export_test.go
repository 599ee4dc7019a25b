package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func sampleWallets() []models.WalletEntry {
	return []models.WalletEntry{
		{
			SiteURL:       "https://scam.example",
			TokenName:     "Tether",
			TokenSymbol:   "USDT",
			NetworkName:   "Tron",
			NetworkShort:  "trx",
			WalletAddress: "TXYZa1b2c3d4e5f6g7h8i9j0k1l2m3n4o5",
			Source:        models.CaptureLLM,
			Confidence:    0.9,
			CapturedAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			SiteURL:       "https://scam.example",
			TokenSymbol:   "ETH",
			NetworkShort:  "eth",
			WalletAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
			Source:        models.CaptureJS,
			Confidence:    0.95,
		},
	}
}

func TestWalletsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Wallets(&buf, sampleWallets(), FormatCSV); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[0][5] != "wallet_address" {
		t.Fatalf("header wrong: %v", records[0])
	}
	if records[1][5] != "TXYZa1b2c3d4e5f6g7h8i9j0k1l2m3n4o5" || records[1][7] != "0.90" {
		t.Fatalf("row wrong: %v", records[1])
	}
	// Zero capture time renders empty, not the epoch.
	if records[2][8] != "" {
		t.Fatalf("zero time must be empty: %q", records[2][8])
	}
}

func TestWalletsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Wallets(&buf, sampleWallets(), FormatJSON); err != nil {
		t.Fatal(err)
	}
	var out []models.WalletEntry
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].WalletAddress != "TXYZa1b2c3d4e5f6g7h8i9j0k1l2m3n4o5" {
		t.Fatalf("json round trip wrong: %+v", out)
	}

	// Nil slice still encodes an array.
	buf.Reset()
	if err := Wallets(&buf, nil, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "[") {
		t.Fatalf("nil entries must encode as an array: %s", buf.String())
	}
}

func TestWalletsXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Wallets(&buf, sampleWallets(), FormatXLSX); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("Wallets")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "site_url" {
		t.Fatalf("header wrong: %v", rows[0])
	}
	if rows[1][5] != "TXYZa1b2c3d4e5f6g7h8i9j0k1l2m3n4o5" {
		t.Fatalf("address wrong: %v", rows[1])
	}
}

func TestWalletsUnknownFormat(t *testing.T) {
	if err := Wallets(&bytes.Buffer{}, nil, Format("pdf")); err == nil {
		t.Fatal("unknown format must fail")
	}
}

func TestParseFormat(t *testing.T) {
	if got, err := ParseFormat(""); err != nil || got != FormatJSON {
		t.Fatalf("empty format must default to json: %v %v", got, err)
	}
	if got, err := ParseFormat("xlsx"); err != nil || got != FormatXLSX {
		t.Fatalf("xlsx parse wrong: %v %v", got, err)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("unknown format must fail")
	}
}

func TestContentType(t *testing.T) {
	if got := FormatCSV.ContentType(); got != "text/csv" {
		t.Fatalf("csv content type wrong: %s", got)
	}
	if !strings.Contains(FormatXLSX.ContentType(), "spreadsheetml") {
		t.Fatal("xlsx content type wrong")
	}
}
