// Package investigator is the per-URL orchestrator: it drives the
// pipeline from pre-flight through passive recon, active interaction,
// classification, evidence packaging and persistence.
package investigator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/scam-investigator/internal/agent"
	"github.com/rawblock/scam-investigator/internal/browser"
	"github.com/rawblock/scam-investigator/internal/config"
	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/internal/dominspect"
	"github.com/rawblock/scam-investigator/internal/events"
	"github.com/rawblock/scam-investigator/internal/evidence"
	"github.com/rawblock/scam-investigator/internal/llm"
	"github.com/rawblock/scam-investigator/internal/osint"
	"github.com/rawblock/scam-investigator/internal/patterns"
	"github.com/rawblock/scam-investigator/internal/taxonomy"
	"github.com/rawblock/scam-investigator/internal/wallet"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// Request carries everything needed to investigate one URL.
type Request struct {
	URL             string
	OutputDir       string // defaults to the configured evidence dir
	Mode            models.ScanMode
	SkipWHOIS       bool
	SkipScreenshot  bool
	SkipVirusTotal  bool
	SkipURLScan     bool
	Format          string // "json", "markdown" or "both"
	InvestigationID string

	// Sinks receive this investigation's events in addition to the
	// default logger and JSONL file.
	Sinks []events.Sink
	// Guidance answers agent escalations; AutoSkip when nil.
	Guidance events.GuidanceHandler
}

// Orchestrator runs investigations. Safe for concurrent use; every
// investigation gets its own event bus and browser session.
type Orchestrator struct {
	Settings *config.Settings
	Store    db.Store
	Factory  *llm.Factory
	Storage  evidence.Storage

	OSINT    *osint.Client
	OSINTCfg osint.Config
}

// New wires an orchestrator from resolved settings.
func New(settings *config.Settings, store db.Store, factory *llm.Factory, storage evidence.Storage) *Orchestrator {
	osintCfg := osint.Config{
		VirusTotalAPIKey: settings.OSINT.VirusTotalAPIKey,
		URLScanAPIKey:    settings.OSINT.URLScanAPIKey,
		ProviderQPS:      settings.OSINT.ProviderQPS,
	}
	return &Orchestrator{
		Settings: settings,
		Store:    store,
		Factory:  factory,
		Storage:  storage,
		OSINT:    osint.NewClient(osintCfg),
		OSINTCfg: osintCfg,
	}
}

// outputSlug names the per-investigation directory: the domain with
// dots dashed, plus a short id suffix for uniqueness.
func outputSlug(targetURL, id string) string {
	domain := db.DomainOf(targetURL)
	slug := strings.ReplaceAll(domain, ".", "-")
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return slug + "-" + short
}

// normalizeURL defaults bare domains to https.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

// Investigate runs the full pipeline for one URL. The returned record
// is always non-nil; a non-nil error means the pipeline itself failed,
// not that the site resisted investigation.
func (o *Orchestrator) Investigate(ctx context.Context, req Request) (*models.Investigation, error) {
	id := req.InvestigationID
	if id == "" {
		id = uuid.NewString()
	}
	mode := req.Mode
	if mode == "" {
		mode = o.Settings.Mode
	}

	baseDir := req.OutputDir
	if baseDir == "" {
		baseDir = o.Settings.Evidence.OutputDir
	}
	dir := filepath.Join(baseDir, outputSlug(req.URL, id))
	if err := os.MkdirAll(filepath.Join(dir, "downloads"), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	inv := &models.Investigation{
		ID:        id,
		TargetURL: normalizeURL(req.URL),
		Mode:      mode,
		Status:    models.StatusRunning,
		StartedAt: time.Now().UTC(),
		OutputDir: dir,
	}

	budget := 0.0
	if o.Settings.Cost.Enabled {
		budget = o.Settings.Cost.BudgetUSD
	}
	cost := NewCostTracker(budget)

	bus := events.NewBus(id)
	defer bus.Close()
	bus.AddSink(events.LoggerSink{})
	if jsonl, err := events.NewJSONLSink(filepath.Join(dir, "events.jsonl")); err == nil {
		bus.AddSink(jsonl)
		defer jsonl.Close()
	}
	for _, s := range req.Sinks {
		bus.AddSink(s)
	}
	guidance := req.Guidance
	if guidance == nil {
		guidance = events.AutoSkip{}
	}
	bus.SetAutoGuidance(guidance)
	track(bus, id, inv)

	if err := o.Store.CreateScan(ctx, &db.ScanRecord{
		ID:        id,
		TargetURL: inv.TargetURL,
		Domain:    db.DomainOf(inv.TargetURL),
		Mode:      mode,
		Status:    models.StatusRunning,
		StartedAt: inv.StartedAt,
	}); err != nil {
		inv.AddWarning(fmt.Sprintf("scan row not created: %v", err))
	}

	bus.Emit(events.EventSiteStarted, map[string]interface{}{"url": inv.TargetURL, "mode": string(mode)})

	// Phase 1: pre-flight DNS gate. NXDOMAIN skips recon and
	// interaction; classification still runs on whatever exists.
	bus.Emit(events.EventProgress, map[string]interface{}{"phase": "preflight"})
	dnsOK := true
	dnsCtx, dnsCancel := context.WithTimeout(ctx, o.Settings.OSINT.Timeout)
	if err := osint.ResolvesOrErr(dnsCtx, inv.TargetURL); err != nil {
		inv.AddWarning(err.Error())
		dnsOK = false
	}
	dnsCancel()

	// Phase 2: passive recon.
	if dnsOK && ctx.Err() == nil {
		bus.Emit(events.EventProgress, map[string]interface{}{"phase": "passive_recon"})
		o.passiveRecon(ctx, inv, req)
		if !req.SkipScreenshot {
			o.browserCapture(ctx, inv, dir)
		}
	}

	// Phase 3: active interaction.
	if dnsOK && mode != models.ModePassive && ctx.Err() == nil {
		bus.Emit(events.EventProgress, map[string]interface{}{"phase": "active_interaction"})
		o.activePhase(ctx, inv, bus, dir, cost)
	}

	// Phase 4: classification. Runs even after DNS failure or
	// cancellation so partial evidence still gets a verdict.
	bus.Emit(events.EventProgress, map[string]interface{}{"phase": "classification"})
	o.classify(ctx, inv, cost)

	// Phase 5: evidence packaging.
	bus.Emit(events.EventProgress, map[string]interface{}{"phase": "evidence"})
	o.writeEvidence(ctx, inv, req, dir)

	// Phase 6 + 7: persistence and finalisation.
	inv.FinishedAt = time.Now().UTC()
	inv.DurationSeconds = inv.FinishedAt.Sub(inv.StartedAt).Seconds()
	inv.Cost = cost.Summary()
	if inv.Cost.BudgetExceeded {
		inv.AddWarning(fmt.Sprintf("cost budget exceeded: $%.2f of $%.2f",
			inv.Cost.TotalUSD, inv.Cost.BudgetUSD))
	}

	switch {
	case ctx.Err() != nil:
		inv.Status = models.StatusCancelled
	default:
		inv.Status = models.StatusCompleted
	}

	// The on-disk record is rewritten after finalisation so it carries
	// custody, cost and status.
	writeJSONFile(filepath.Join(dir, "investigation.json"), inv)

	persistCtx := ctx
	if ctx.Err() != nil {
		// Persist partial results even when the caller cancelled.
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := o.Store.PersistInvestigation(persistCtx, id, inv, nil); err != nil {
		inv.AddWarning(fmt.Sprintf("persistence failed: %v", err))
		log.Printf("Investigation %s not persisted: %v", id, err)
	}

	bus.Emit(events.EventSiteCompleted, map[string]interface{}{
		"url":      inv.TargetURL,
		"status":   string(inv.Status),
		"duration": inv.DurationSeconds,
		"wallets":  len(inv.Wallets),
	})
	return inv, nil
}

// track publishes live snapshot fields so the running-investigations
// API can report progress.
func track(bus *events.Bus, id string, inv *models.Investigation) {
	bus.Emit(events.EventLog, map[string]interface{}{
		"investigation_id": id,
		"target_url":       inv.TargetURL,
	})
}

func (o *Orchestrator) skipAdapter(name string, req Request) bool {
	switch name {
	case "whois":
		return req.SkipWHOIS
	case "virustotal":
		return req.SkipVirusTotal
	case "urlscan":
		return req.SkipURLScan
	}
	return false
}

// passiveRecon runs every configured OSINT adapter. Each failure is a
// warning, never fatal.
func (o *Orchestrator) passiveRecon(ctx context.Context, inv *models.Investigation, req Request) {
	domain := db.DomainOf(inv.TargetURL)
	inv.Indicators = append(inv.Indicators,
		models.ThreatIndicator{Type: models.IndicatorDomain, Value: domain, Source: "target"},
		models.ThreatIndicator{Type: models.IndicatorURL, Value: inv.TargetURL, Source: "target"},
	)

	for _, adapter := range osint.Adapters(o.OSINT, o.OSINTCfg) {
		if o.skipAdapter(adapter.Name(), req) {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		cctx, cancel := context.WithTimeout(ctx, o.Settings.OSINT.Timeout)
		res, err := adapter.Lookup(cctx, inv.TargetURL)
		cancel()
		if err != nil {
			inv.AddWarning(fmt.Sprintf("%s lookup failed: %v", adapter.Name(), err))
			continue
		}
		inv.OSINT = append(inv.OSINT, *res)

		if adapter.Name() == "dns" {
			for _, ip := range stringSlice(res.Raw["a"]) {
				inv.Indicators = append(inv.Indicators,
					models.ThreatIndicator{Type: models.IndicatorIPv4, Value: ip, Source: "dns"})
			}
			for _, ip := range stringSlice(res.Raw["aaaa"]) {
				inv.Indicators = append(inv.Indicators,
					models.ThreatIndicator{Type: models.IndicatorIPv6, Value: ip, Source: "dns"})
			}
		}
	}
}

func stringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// browserCapture takes the passive page snapshot: screenshot, DOM and
// network HAR, plus a pattern scan over the captured traffic.
func (o *Orchestrator) browserCapture(ctx context.Context, inv *models.Investigation, dir string) {
	cfg := browser.DefaultConfig()
	cfg.Headless = o.Settings.Browser.Headless
	cfg.Stealth = o.Settings.Stealth.ApplyStealthScripts
	cfg.NavTimeout = o.Settings.Browser.NavTimeout
	cfg.RecordHAR = o.Settings.Browser.HAREnabled
	if o.Settings.Stealth.ProxyURLs != "" {
		cfg.ProxyPool = browser.NewProxyPool(o.Settings.Stealth.ProxyURLs, false)
	}

	drv, err := browser.NewDriver(ctx, cfg)
	if err != nil {
		inv.AddWarning(fmt.Sprintf("browser capture unavailable: %v", err))
		return
	}
	defer drv.Close()

	if err := drv.Navigate(ctx, inv.TargetURL); err != nil {
		inv.AddWarning(fmt.Sprintf("page load failed: %v", err))
		return
	}

	snapshot := &models.PageSnapshot{URL: inv.TargetURL}
	if url, err := drv.PageURL(ctx); err == nil && url != "" {
		snapshot.URL = url
	}
	if title, err := drv.PageTitle(ctx); err == nil {
		snapshot.Title = title
	}
	if text, err := drv.PageText(ctx); err == nil {
		snapshot.VisibleText = text
	}

	if shot, err := drv.MilestoneScreenshot(ctx); err == nil && len(shot) > 0 {
		path := filepath.Join(dir, "screenshot.png")
		if os.WriteFile(path, shot, 0o644) == nil {
			snapshot.ScreenshotPath = path
		}
	}
	if html, err := drv.PageHTML(ctx); err == nil && html != "" {
		path := filepath.Join(dir, "dom.html")
		if os.WriteFile(path, []byte(html), 0o644) == nil {
			snapshot.DOMPath = path
		}
		o.scanStaticHTML(inv, html, snapshot.URL)
	}

	if harData, err := drv.ExportHAR(); err == nil && len(harData) > 0 {
		path := filepath.Join(dir, "network.har")
		if os.WriteFile(path, harData, 0o644) == nil {
			snapshot.HARPath = path
		}
		o.scanHAR(inv, harData)
	}

	inv.Snapshot = snapshot
}

// scanStaticHTML runs the offline DOM pass: forms that would harvest
// PII, and addresses stashed in text or copy-button attributes.
func (o *Orchestrator) scanStaticHTML(inv *models.Investigation, html, pageURL string) {
	analysis, err := dominspect.AnalyzeHTML(html, pageURL)
	if err != nil {
		inv.AddWarning(fmt.Sprintf("static dom analysis failed: %v", err))
		return
	}

	inv.PII = append(inv.PII, analysis.PIIExposures()...)

	for _, m := range analysis.Wallets {
		entry, err := models.NewWalletEntry(inv.TargetURL, m.Symbol, "", m.Address, models.CaptureRegex, 0.6)
		if err != nil {
			continue
		}
		inv.AddWallet(entry)
	}
}

// scanHAR feeds the capture through the pattern scanners and folds the
// findings into the record.
func (o *Orchestrator) scanHAR(inv *models.Investigation, harData []byte) {
	findings, err := patterns.AnalyzeHAR(harData, db.DomainOf(inv.TargetURL))
	if err != nil {
		inv.AddWarning(fmt.Sprintf("har analysis failed: %v", err))
		return
	}

	validator := wallet.NewValidator()
	for _, addr := range findings.CryptoAddresses {
		m := validator.Validate(addr)
		if m == nil {
			continue
		}
		entry, err := models.NewWalletEntry(inv.TargetURL, m.Symbol, "", m.Address, models.CaptureRegex, 0.5)
		if err != nil {
			continue
		}
		inv.AddWallet(entry)
	}

	summary := fmt.Sprintf("%d requests, %d third-party domains", findings.TotalRequests, len(findings.ThirdPartyDomains))
	raw := map[string]interface{}{"findings": findings}
	inv.OSINT = append(inv.OSINT, models.OSINTResult{
		Source: "har", Summary: summary, Raw: raw, FetchedAt: time.Now().UTC(),
	})
	for _, p := range findings.PhishingIndicators {
		inv.AddWarning("phishing kit signal: " + p)
	}
	for _, e := range findings.ExfilIndicators {
		inv.AddWarning("exfiltration signal: " + e)
	}
}

// activePhase runs the browser-driving agent and merges its results.
func (o *Orchestrator) activePhase(ctx context.Context, inv *models.Investigation, bus *events.Bus, dir string, cost *CostTracker) {
	bcfg := browser.DefaultConfig()
	bcfg.Headless = o.Settings.Browser.Headless
	bcfg.Stealth = o.Settings.Stealth.ApplyStealthScripts
	bcfg.NavTimeout = o.Settings.Browser.NavTimeout
	bcfg.StepTimeout = o.Settings.Browser.StepTimeout
	bcfg.DownloadDir = filepath.Join(dir, "downloads")
	bcfg.DownloadLimit = o.Settings.Browser.DownloadLimit
	if o.Settings.Stealth.ProxyURLs != "" {
		bcfg.ProxyPool = browser.NewProxyPool(o.Settings.Stealth.ProxyURLs, false)
	}

	acfg := agent.DefaultConfig()
	acfg.MaxActionsPerSite = o.Settings.Agent.MaxActionsPerSite
	acfg.StuckThreshold = o.Settings.Agent.StuckThreshold
	acfg.MaxRepeatedActions = o.Settings.Agent.MaxRepeatedActions
	acfg.BlankPageMaxRetries = o.Settings.Agent.BlankPageMaxRetries
	acfg.TokenBudget = o.Settings.LLM.TokenBudget
	acfg.DOMInspectionEnabled = o.Settings.Agent.DOMInspectionEnabled
	acfg.OverlayDismissEnabled = o.Settings.Agent.OverlayDismissEnabled
	acfg.ShotDir = dir
	acfg.Browser = bcfg
	for state, threshold := range o.Settings.Agent.StuckThresholdPer {
		if acfg.StuckThresholdPer == nil {
			acfg.StuckThresholdPer = map[models.AgentState]int{}
		}
		acfg.StuckThresholdPer[models.AgentState(state)] = threshold
	}

	analyzer := agent.NewAnalyzer(o.Factory, llm.Options{
		Temperature: o.Settings.LLM.Temperature,
		MaxTokens:   o.Settings.LLM.MaxTokens,
	})
	identity := agent.NewVault(time.Now().UnixNano()).Draw()
	ctrl := agent.NewController(acfg, analyzer, bus, identity)

	site := ctrl.ProcessSite(ctx, inv.TargetURL)

	for _, w := range site.Wallets {
		inv.AddWallet(w)
	}
	inv.PII = append(inv.PII, site.PII...)
	inv.Downloads = append(inv.Downloads, site.Downloads...)
	if site.Session != nil {
		inv.AgentSteps = append(inv.AgentSteps, site.Session.Steps...)
		m := site.Session.Metrics
		cost.AddTokens(fmt.Sprintf("agent session (%d steps)", m.TotalSteps),
			m.TotalInputTokens, m.TotalOutputTokens)
	}
	if site.Status != agent.SiteStatusComplete {
		inv.AddWarning(fmt.Sprintf("agent session ended with status %s", site.Status))
	}
	if site.Error != "" {
		inv.AddWarning("agent error: " + site.Error)
	}
}

// classify runs the taxonomy LLM pass. The classifier itself degrades
// to a minimal result on failure, so this never errors.
func (o *Orchestrator) classify(ctx context.Context, inv *models.Investigation, cost *CostTracker) {
	cctx, cancel := context.WithTimeout(ctx, o.Settings.LLM.RequestTimeout)
	defer cancel()
	if ctx.Err() != nil {
		// Cancellation still deserves a verdict on partial data.
		cctx, cancel = context.WithTimeout(context.Background(), o.Settings.LLM.RequestTimeout)
		defer cancel()
	}

	classifier := taxonomy.NewClassifier(o.Factory, llm.Options{
		Temperature: o.Settings.LLM.Temperature,
		MaxTokens:   o.Settings.LLM.MaxTokens,
		JSONMode:    true,
	})
	inv.Taxonomy = classifier.Classify(cctx, inv)
	cost.Add("llm", "taxonomy classification", 0.01)
}

// writeEvidence renders reports, the STIX bundle, the wallet manifest
// and the evidence ZIP. Each artifact failure is a warning.
func (o *Orchestrator) writeEvidence(ctx context.Context, inv *models.Investigation, req Request, dir string) {
	writeJSONFile(filepath.Join(dir, "investigation.json"), inv)

	format := req.Format
	if format == "" {
		format = "both"
	}
	if format == "markdown" || format == "both" {
		if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(RenderReport(inv)), 0o644); err != nil {
			inv.AddWarning(fmt.Sprintf("report not written: %v", err))
		}
		if err := os.WriteFile(filepath.Join(dir, "leo_evidence_report.md"), []byte(RenderLEOReport(inv)), 0o644); err != nil {
			inv.AddWarning(fmt.Sprintf("leo report not written: %v", err))
		}
	}

	if len(inv.Wallets) > 0 {
		manifest := evidence.BuildWalletManifest(inv)
		if data, err := manifest.JSON(); err == nil {
			if err := os.WriteFile(filepath.Join(dir, "wallet_manifest.json"), data, 0o644); err != nil {
				inv.AddWarning(fmt.Sprintf("wallet manifest not written: %v", err))
			}
		}
	}

	if stix, err := evidence.BuildSTIXBundle(inv); err == nil {
		if err := os.WriteFile(filepath.Join(dir, "stix_bundle.json"), stix, 0o644); err != nil {
			inv.AddWarning(fmt.Sprintf("stix bundle not written: %v", err))
		}
	} else {
		inv.AddWarning(fmt.Sprintf("stix bundle failed: %v", err))
	}

	custody, err := evidence.BuildEvidenceZip(dir, inv)
	if err != nil {
		inv.AddWarning(fmt.Sprintf("evidence zip failed: %v", err))
		return
	}
	inv.Custody = custody
	inv.EvidenceZipPath = filepath.Join(dir, "evidence.zip")

	if o.Storage != nil && o.Settings.Evidence.StorageBackend == "gcs" {
		key := inv.ID + "/evidence.zip"
		if ref, err := o.Storage.Put(ctx, key, inv.EvidenceZipPath); err != nil {
			inv.AddWarning(fmt.Sprintf("evidence upload failed: %v", err))
		} else {
			log.Printf("Evidence package uploaded: %s", ref)
		}
	}
}

func writeJSONFile(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Encode %s: %v", filepath.Base(path), err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("Write %s: %v", filepath.Base(path), err)
	}
}
