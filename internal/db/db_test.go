package db

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return store
}

func seedScan(t *testing.T, store *SQLiteStore, id, target string) {
	t.Helper()
	err := store.CreateScan(context.Background(), &ScanRecord{
		ID:        id,
		TargetURL: target,
		Domain:    DomainOf(target),
		Mode:      models.ModeFull,
		Status:    models.StatusRunning,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed scan %s: %v", id, err)
	}
}

func TestScanLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedScan(t, store, "scan-abc-1", "https://scam.example/promo")

	rec, err := store.GetScan(ctx, "scan-abc-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Domain != "scam.example" || rec.Status != models.StatusRunning {
		t.Fatalf("round-trip wrong: %+v", rec)
	}

	if err := store.UpdateScanStatus(ctx, "scan-abc-1", models.StatusCompleted); err != nil {
		t.Fatal(err)
	}
	rec, err = store.GetScan(ctx, "scan-abc-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != models.StatusCompleted {
		t.Fatalf("status not updated: %s", rec.Status)
	}

	if err := store.UpdateScanStatus(ctx, "no-such-scan", models.StatusFailed); err == nil {
		t.Fatal("updating a missing scan must fail")
	}
}

func TestGetScanByPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedScan(t, store, "aaa111", "https://one.example")
	seedScan(t, store, "aaa222", "https://two.example")
	seedScan(t, store, "bbb333", "https://three.example")

	rec, err := store.GetScanByPrefix(ctx, "bbb")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "bbb333" {
		t.Fatalf("wrong scan resolved: %s", rec.ID)
	}

	if _, err := store.GetScanByPrefix(ctx, "aaa"); err == nil {
		t.Fatal("ambiguous prefix must fail")
	}
	if _, err := store.GetScanByPrefix(ctx, "zzz"); err == nil {
		t.Fatal("unmatched prefix must fail")
	}
}

func TestListScansFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedScan(t, store, "s1", "https://alpha.example")
	seedScan(t, store, "s2", "https://alpha.example")
	seedScan(t, store, "s3", "https://beta.example")
	if err := store.UpdateScanStatus(ctx, "s2", models.StatusCompleted); err != nil {
		t.Fatal(err)
	}

	byDomain, err := store.ListScans(ctx, ScanFilter{Domain: "alpha.example"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byDomain) != 2 {
		t.Fatalf("domain filter returned %d scans", len(byDomain))
	}

	byStatus, err := store.ListScans(ctx, ScanFilter{Status: models.StatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "s2" {
		t.Fatalf("status filter wrong: %+v", byStatus)
	}
}

func wallet(scanSite, symbol, network, address string, source models.CaptureSource, conf float64, at time.Time) models.WalletEntry {
	return models.WalletEntry{
		SiteURL:       scanSite,
		TokenSymbol:   symbol,
		NetworkShort:  network,
		WalletAddress: address,
		Source:        source,
		Confidence:    conf,
		CapturedAt:    at,
	}
}

func TestWalletUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedScan(t, store, "scan-1", "https://scam.example")

	addr := "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"
	t0 := time.Now().UTC().Truncate(time.Second)

	// Opportunistic capture first, LLM re-harvest of the same key after.
	if err := store.InsertWallet(ctx, "scan-1", wallet("https://scam.example", "USDT", "trx", addr, models.CaptureOpportunistic, 0.7, t0)); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertWallet(ctx, "scan-1", wallet("https://scam.example", "USDT", "trx", addr, models.CaptureLLM, 0.9, t0.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	rows, err := store.SearchWallets(ctx, WalletQuery{Address: addr})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("upsert must keep one row per key, got %d", len(rows))
	}
	if rows[0].Source != string(models.CaptureLLM) || rows[0].Confidence != 0.9 {
		t.Fatalf("re-harvest must replace source and confidence: %+v", rows[0])
	}

	// Same address on a different network is a distinct row.
	if err := store.InsertWallet(ctx, "scan-1", wallet("https://scam.example", "USDT", "eth", addr, models.CaptureLLM, 0.9, t0)); err != nil {
		t.Fatal(err)
	}
	rows, err = store.SearchWallets(ctx, WalletQuery{Address: addr})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("distinct network must not collapse, got %d rows", len(rows))
	}
}

func TestSearchWalletsDeduplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	addr := "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, scanID := range []string{"scan-a", "scan-b", "scan-c"} {
		seedScan(t, store, scanID, "https://site"+scanID+".example")
		conf := 0.5 + 0.2*float64(i) // 0.5, 0.7, 0.9
		w := wallet("https://site"+scanID+".example", "USDT", "eth", addr,
			models.CaptureRegex, conf, base.Add(time.Duration(i)*24*time.Hour))
		if err := store.InsertWallet(ctx, scanID, w); err != nil {
			t.Fatal(err)
		}
	}

	// Raw search sees every sighting.
	raw, err := store.SearchWallets(ctx, WalletQuery{Address: addr})
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected 3 raw rows, got %d", len(raw))
	}

	// Deduplicated search collapses to one aggregate row.
	dedup, err := store.SearchWallets(ctx, WalletQuery{Address: addr, Deduplicate: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(dedup) != 1 {
		t.Fatalf("expected 1 aggregate row, got %d", len(dedup))
	}
	agg := dedup[0]
	if agg.SeenCount != 3 {
		t.Fatalf("seen_count = %d, want 3", agg.SeenCount)
	}
	if agg.Confidence != 0.9 {
		t.Fatalf("aggregate confidence must be the max, got %f", agg.Confidence)
	}
	if !agg.FirstSeenAt.Equal(base) {
		t.Fatalf("first_seen_at wrong: %v", agg.FirstSeenAt)
	}
	if !agg.LastSeenAt.Equal(base.Add(48 * time.Hour)) {
		t.Fatalf("last_seen_at wrong: %v", agg.LastSeenAt)
	}
	// Representative fields come from the highest-confidence sighting.
	if agg.SiteURL != "https://sitescan-c.example" {
		t.Fatalf("representative site_url wrong: %s", agg.SiteURL)
	}
}

func TestSearchWalletsTokenFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedScan(t, store, "scan-1", "https://scam.example")

	now := time.Now().UTC()
	if err := store.InsertWallet(ctx, "scan-1", wallet("https://scam.example", "USDT", "trx", "Taddr1", models.CaptureLLM, 0.9, now)); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertWallet(ctx, "scan-1", wallet("https://scam.example", "BTC", "btc", "bc1addr", models.CaptureLLM, 0.9, now)); err != nil {
		t.Fatal(err)
	}

	// Lowercase filter input still matches the uppercased symbol column.
	rows, err := store.SearchWallets(ctx, WalletQuery{Token: "usdt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].TokenSymbol != "USDT" {
		t.Fatalf("token filter wrong: %+v", rows)
	}
}

func TestPersistInvestigation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	inv := &models.Investigation{
		ID:              "inv-77",
		TargetURL:       "https://fake-exchange.example/register",
		Mode:            models.ModeFull,
		Status:          models.StatusCompleted,
		StartedAt:       started,
		FinishedAt:      started.Add(3 * time.Minute),
		DurationSeconds: 180,
		Taxonomy:        &models.TaxonomyResult{RiskScore: 87.5},
		Wallets: []models.WalletEntry{
			wallet("https://fake-exchange.example", "USDT", "trx", "Taddr1", models.CaptureLLM, 0.9, started),
			wallet("https://fake-exchange.example", "ETH", "eth", "0xaddr2", models.CaptureJS, 0.95, started),
		},
		AgentSteps: []models.AgentStep{
			{Step: 0, State: "LOAD_SITE", Action: models.AgentAction{Action: models.ActionNavigate}},
			{Step: 1, State: "FIND_REGISTER", Action: models.AgentAction{Action: models.ActionClick, Selector: "a.register"}},
			{Step: 2, State: "FILL_REGISTER", Action: models.AgentAction{Action: models.ActionTypeText, Selector: "#email"}},
		},
		PII: []models.PIIExposure{
			{Category: models.PIIEmail, FieldLabel: "Email", PageURL: "https://fake-exchange.example/register", Required: true, Submitted: true},
		},
	}
	session := &models.AgentSession{RunID: "run-42"}

	if err := store.PersistInvestigation(ctx, "inv-77", inv, &models.SiteResult{Session: session}); err != nil {
		t.Fatal(err)
	}

	rec, err := store.GetScan(ctx, "inv-77")
	if err != nil {
		t.Fatal(err)
	}
	if rec.RiskScore != 87.5 || rec.Status != models.StatusCompleted {
		t.Fatalf("scan row wrong: %+v", rec)
	}
	if rec.Investigation == nil || len(rec.Investigation.Wallets) != 2 {
		t.Fatal("embedded investigation JSON lost")
	}

	steps, err := store.ListAgentSteps(ctx, "inv-77")
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 agent steps, got %d", len(steps))
	}
	for i, s := range steps {
		if s.Sequence != i {
			t.Fatalf("steps out of order: %d at position %d", s.Sequence, i)
		}
		if s.RunID != "run-42" {
			t.Fatalf("run id lost: %q", s.RunID)
		}
	}
	if steps[1].ActionType != string(models.ActionClick) {
		t.Fatalf("action type wrong: %s", steps[1].ActionType)
	}

	pii, err := store.ListPIIExposures(ctx, "inv-77")
	if err != nil {
		t.Fatal(err)
	}
	if len(pii) != 1 || pii[0].Category != models.PIIEmail || !pii[0].Submitted {
		t.Fatalf("pii round-trip wrong: %+v", pii)
	}

	// Persisting again must not duplicate wallets.
	if err := store.PersistInvestigation(ctx, "inv-77", inv, &models.SiteResult{Session: session}); err != nil {
		t.Fatal(err)
	}
	rows, err := store.SearchWallets(ctx, WalletQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("re-persist duplicated wallets: %d rows", len(rows))
	}
}

func TestClassifyPIIField(t *testing.T) {
	tests := []struct {
		inputType, name, label string
		want                   models.PIICategory
	}{
		{"password", "anything", "", models.PIIPassword},
		{"email", "contact", "", models.PIIEmail},
		{"tel", "x", "", models.PIIPhone},
		{"text", "ssn", "", models.PIISSN},
		{"text", "card_number", "Card Number", models.PIIFinancial},
		{"text", "", "Passport number", models.PIIIDNumber},
		{"text", "user_email", "", models.PIIEmail},
		{"text", "firstname", "", models.PIIName},
		{"text", "addr1", "Street address", models.PIIAddress},
		{"text", "promo_code", "Promo code", models.PIIOther},
		// Type wins over conflicting name.
		{"email", "password_hint", "", models.PIIEmail},
		// "card" outranks "id number" style keywords.
		{"text", "id_card_number", "", models.PIIFinancial},
	}
	for _, tt := range tests {
		got := ClassifyPIIField(tt.inputType, tt.name, tt.label)
		if got != tt.want {
			t.Errorf("ClassifyPIIField(%q, %q, %q) = %s, want %s",
				tt.inputType, tt.name, tt.label, got, tt.want)
		}
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.scam.example/promo?ref=1", "scam.example"},
		{"http://scam.example:8443/", "scam.example"},
		{"scam.example", "scam.example"},
		{"https://sub.scam.example", "sub.scam.example"},
	}
	for _, tt := range tests {
		if got := DomainOf(tt.in); got != tt.want {
			t.Errorf("DomainOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
