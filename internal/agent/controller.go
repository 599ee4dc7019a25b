package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/scam-investigator/internal/browser"
	"github.com/rawblock/scam-investigator/internal/cascade"
	"github.com/rawblock/scam-investigator/internal/dominspect"
	"github.com/rawblock/scam-investigator/internal/events"
	"github.com/rawblock/scam-investigator/internal/llm"
	"github.com/rawblock/scam-investigator/internal/wallet"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// Site-level terminal statuses reported on the SiteResult.
const (
	SiteStatusComplete          = "COMPLETE"
	SiteStatusSkipped           = "SKIPPED"
	SiteStatusError             = "ERROR"
	SiteStatusNeedsReview       = "NEEDS_MANUAL_REVIEW"
	SiteStatusEmailVerification = "EMAIL_VERIFICATION_REQUIRED"
	SiteStatusBrokenDeposit     = "BROKEN_DEPOSIT_PAGE"
	SiteStatusCancelled         = "CANCELLED"
)

// Config tunes the controller's budgets and thresholds.
type Config struct {
	MaxActionsPerSite   int
	StuckThreshold      int
	StuckThresholdPer   map[models.AgentState]int
	MaxRepeatedActions  int
	BlankPageMaxRetries int
	ActionWindow        int
	TokenBudget         int

	DOMInspectionEnabled  bool
	OverlayDismissEnabled bool

	// ShotDir receives milestone screenshots when set.
	ShotDir string

	Browser browser.Config
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		MaxActionsPerSite:     40,
		StuckThreshold:        15,
		MaxRepeatedActions:    3,
		BlankPageMaxRetries:   3,
		ActionWindow:          5,
		TokenBudget:           200000,
		DOMInspectionEnabled:  true,
		OverlayDismissEnabled: true,
		Browser:               browser.DefaultConfig(),
	}
}

func (c Config) stuckThresholdFor(state models.AgentState) int {
	if t, ok := c.StuckThresholdPer[state]; ok {
		return t
	}
	return c.StuckThreshold
}

// stateCounters track progress and pathology within one state.
type stateCounters struct {
	actions          int
	blankRetries     int
	consecutiveDupes int
	noopScrolls      int
	recentActions    []string
	skipDOMDirect    bool
}

// Controller drives one site through the investigation state machine.
type Controller struct {
	cfg       Config
	analyzer  *Analyzer
	inspector *dominspect.Inspector
	validator *wallet.Validator
	bus       *events.Bus
	identity  *Identity

	driver *browser.Driver

	state    models.AgentState
	counters stateCounters
	// typeMismatches carries forward across states until cleared by a
	// clean type.
	typeMismatches []string

	session      *models.AgentSession
	harvest      *wallet.Harvest
	preExtracted []models.WalletEntry
	milestones   []string

	lastShotHash string
	lastScrollY  int
	totalActions int
	wasted       int
}

// NewController wires the controller. The browser session is created
// lazily in ProcessSite so a construction failure surfaces as a site
// error, not a panic.
func NewController(cfg Config, analyzer *Analyzer, bus *events.Bus, identity *Identity) *Controller {
	return &Controller{
		cfg:       cfg,
		analyzer:  analyzer,
		inspector: dominspect.NewInspector(),
		validator: wallet.NewValidator(),
		bus:       bus,
		identity:  identity,
		harvest:   wallet.NewHarvest(),
	}
}

// ProcessSite runs the full state machine for one URL. Finalisation
// always runs: the browser closes, metrics are rolled up, and a
// site-completed event is emitted even on error or cancellation.
func (c *Controller) ProcessSite(ctx context.Context, url string) *models.SiteResult {
	c.state = models.StateLoadSite
	c.session = &models.AgentSession{
		RunID:     uuid.NewString(),
		TargetURL: url,
		StartedAt: time.Now().UTC(),
	}
	result := &models.SiteResult{URL: url, Status: SiteStatusError}

	c.bus.Emit(events.EventSiteStarted, map[string]interface{}{"url": url})
	defer c.finalize(result)

	driver, err := browser.NewDriver(ctx, c.cfg.Browser)
	if err != nil {
		result.Error = err.Error()
		c.session.Metrics.TerminationReason = "browser start failed"
		return result
	}
	c.driver = driver

	for !c.state.IsTerminal() {
		if ctx.Err() != nil {
			result.Status = SiteStatusCancelled
			c.session.Metrics.TerminationReason = "cancelled"
			return result
		}
		status, stop := c.step(ctx, url)
		if stop {
			result.Status = status
			return result
		}
	}

	result.Status = SiteStatusComplete
	return result
}

// step runs one observe-decide-act iteration. It returns a terminal
// status and stop=true when the run should end.
func (c *Controller) step(ctx context.Context, url string) (string, bool) {
	// Total action budget.
	if c.totalActions >= c.cfg.MaxActionsPerSite {
		c.session.Metrics.TerminationReason = "action budget exhausted"
		return SiteStatusNeedsReview, true
	}
	// Token budget.
	if usage := c.analyzer.Usage(); c.cfg.TokenBudget > 0 && usage.InputTokens+usage.OutputTokens > c.cfg.TokenBudget {
		c.session.Metrics.TerminationReason = "token budget exhausted"
		return SiteStatusNeedsReview, true
	}

	// Stuck escalation.
	if c.counters.actions >= c.cfg.stuckThresholdFor(c.state) {
		if status, stop := c.escalate(ctx, "stuck threshold exceeded"); stop {
			return status, true
		}
	}

	if c.state == models.StateLoadSite {
		return c.loadSite(ctx, url)
	}

	// Observe.
	shot, err := c.driver.Screenshot(ctx)
	if err != nil {
		log.Printf("Agent: screenshot failed: %v", err)
	}
	pageText, _ := c.driver.PageText(ctx)
	pageURL, _ := c.driver.PageURL(ctx)
	c.trackURL(pageURL)

	// Pre-filters.
	verdict, hash := cascade.PreFilter(pageText, shot, c.lastShotHash)
	switch verdict {
	case cascade.VerdictBlankPage:
		c.wasted++
		c.counters.blankRetries++
		// The deposit page gets a shorter leash: two blank retries and
		// the site is skipped as broken.
		if c.state == models.StateNavigateDeposit && c.counters.blankRetries > 2 {
			c.session.Metrics.TerminationReason = "deposit page never rendered"
			return SiteStatusBrokenDeposit, true
		}
		if c.counters.blankRetries > c.cfg.BlankPageMaxRetries {
			c.session.Metrics.TerminationReason = "page never rendered"
			return SiteStatusSkipped, true
		}
		// Progressive back-off while the page paints.
		sleepCtx(ctx, time.Duration(c.counters.blankRetries)*2*time.Second)
		return "", false
	case cascade.VerdictDuplicateShot:
		c.wasted++
		c.counters.consecutiveDupes++
		if c.counters.consecutiveDupes >= 5 {
			c.counters.actions = c.cfg.stuckThresholdFor(c.state) // force the stuck path
			c.counters.consecutiveDupes = 0
			return "", false
		}
		sleepCtx(ctx, 2*time.Second)
		return "", false
	}
	c.counters.consecutiveDupes = 0
	c.lastShotHash = hash

	// Mid-run operator interjection.
	if cmd, ok := c.bus.CheckInterject(); ok {
		c.applyGuidance(ctx, cmd)
	}

	extra := c.buildExtraContext(ctx)

	// DOM inspection.
	domOutcome := cascade.DOMNone
	var domSummary string
	var domAction models.AgentAction
	if c.cfg.DOMInspectionEnabled && !c.counters.skipDOMDirect {
		if insp, ok := c.runInspection(ctx); ok {
			domOutcome = cascade.DOMOutcome(insp.Outcome)
			domSummary = insp.Summary
			domAction = insp.Action
			c.bus.Emit(events.EventLog, map[string]interface{}{
				"msg": fmt.Sprintf("dom inspection %s confidence=%d", insp.Outcome, insp.Confidence),
			})
		}
	}

	decision := cascade.Decide(cascade.Input{
		State:               c.state,
		IsStuck:             false,
		DOMEnabled:          c.cfg.DOMInspectionEnabled && !c.counters.skipDOMDirect,
		DOMOutcome:          domOutcome,
		DOMSummary:          domSummary,
		ActionsInState:      c.counters.actions,
		WalletsPreExtracted: len(c.preExtracted) > 0,
	})

	// Opportunistic extraction on first entry to EXTRACT_WALLETS.
	if c.state == models.StateExtractWallets && c.counters.actions == 0 {
		extra += c.opportunisticExtraction(ctx)
	}

	// Batch fill on first entry to FILL_REGISTER.
	if c.state == models.StateFillRegister && c.counters.actions == 0 {
		if handled := c.batchFill(ctx, shot, pageText, pageURL, extra); handled {
			return "", false
		}
	}

	var action models.AgentAction
	var res *llm.ChatResult
	if decision.Tier == cascade.TierDOMDirect {
		action = domAction
	} else {
		obs := Observation{
			State:        c.state,
			PageText:     pageText,
			PageURL:      pageURL,
			ExtraContext: strings.TrimSpace(extra + "\n" + decision.ExtraContext),
		}
		if decision.IncludeScreenshot {
			obs.Screenshot = shot
		}
		action, res = c.analyzer.Analyze(ctx, obs)
	}

	c.recordStep(action, res, pageURL)

	// Repeated-action loop breaker.
	if c.isRepeated(action) {
		log.Printf("Agent: action repeated %d times, forcing stuck", c.cfg.MaxRepeatedActions)
		action = models.AgentAction{Action: models.ActionStuck, Reasoning: "repeating the same action without progress"}
	}

	c.totalActions++
	c.counters.actions++

	switch action.Action {
	case models.ActionDone:
		return c.handleDone(ctx, action)
	case models.ActionStuck:
		return c.handleStuck(ctx, action)
	default:
		c.execute(ctx, action)
		return "", false
	}
}

func (c *Controller) loadSite(ctx context.Context, url string) (string, bool) {
	if err := c.driver.Navigate(ctx, url); err != nil {
		c.session.Metrics.TerminationReason = "navigation failed"
		c.appendErrorStep(err)
		return SiteStatusError, true
	}
	if c.cfg.OverlayDismissEnabled {
		c.driver.DismissOverlays(ctx)
	}
	c.captureMilestone(ctx, "load_site")
	c.transition(models.StateFindRegister)
	return "", false
}

// runInspection executes the state's DOM scan and inspector.
func (c *Controller) runInspection(ctx context.Context) (dominspect.Inspection, bool) {
	var kind browser.ScanKind
	switch c.state {
	case models.StateFindRegister:
		kind = browser.ScanFindRegister
	case models.StateNavigateDeposit:
		kind = browser.ScanNavigateDeposit
	case models.StateCheckEmail:
		kind = browser.ScanCheckEmail
	default:
		return dominspect.Inspection{}, false
	}
	scan, dur, err := c.driver.RunDOMScan(ctx, kind)
	if err != nil {
		log.Printf("Agent: dom scan failed: %v", err)
		return dominspect.Inspection{}, false
	}
	return c.inspector.Inspect(c.state, scan, dur), true
}

// buildExtraContext assembles the state-specific prompt additions.
func (c *Controller) buildExtraContext(ctx context.Context) string {
	var parts []string

	switch c.state {
	case models.StateFillRegister:
		parts = append(parts, "IDENTITY:\n"+c.identity.PromptJSON())
	case models.StateSubmitRegister:
		parts = append(parts, "IDENTITY:\n"+c.identity.PromptJSON())
		if c.session.PasswordUsed != "" {
			parts = append(parts, fmt.Sprintf("PASSWORD ALREADY USED: %q. Reuse this exact password, do not switch variants.", c.session.PasswordUsed))
		}
		if fields := c.driver.FormFieldValues(ctx); len(fields) > 0 {
			var b strings.Builder
			b.WriteString("CURRENT FIELD VALUES:\n")
			for k, v := range fields {
				fmt.Fprintf(&b, "  %s = %q\n", k, v)
			}
			parts = append(parts, strings.TrimRight(b.String(), "\n"))
		}
	}

	if len(c.typeMismatches) > 0 {
		parts = append(parts, "WARNING: these fields did not accept the typed value exactly: "+strings.Join(c.typeMismatches, ", "))
	}
	if c.counters.noopScrolls >= 2 {
		parts = append(parts, "NOTE: scrolling no longer moves the page; you are at the bottom.")
	}
	if errs := c.driver.VisibleErrors(ctx); len(errs) > 0 {
		parts = append(parts, "VISIBLE PAGE ERRORS:\n  - "+strings.Join(errs, "\n  - "))
	}
	return strings.Join(parts, "\n\n")
}

// opportunisticExtraction runs the JS wallet probe and coin-tab
// discovery, seeding the harvest and the LLM context.
func (c *Controller) opportunisticExtraction(ctx context.Context) string {
	candidates := c.driver.ExtractWalletCandidates(ctx)
	var found []string
	for _, cand := range candidates {
		if m := c.validator.Validate(cand); m != nil {
			entry, err := models.NewWalletEntry(c.session.TargetURL, m.Symbol, "", m.Address, models.CaptureOpportunistic, 0.7)
			if err != nil {
				continue
			}
			entry.RunID = c.session.RunID
			c.preExtracted = append(c.preExtracted, entry)
			found = append(found, fmt.Sprintf("%s (%s)", m.Address, m.Symbol))
			c.bus.Emit(events.EventWalletFound, map[string]interface{}{
				"address": m.Address, "symbol": m.Symbol, "source": "opportunistic",
			})
		}
	}

	var b strings.Builder
	if len(found) > 0 {
		b.WriteString("\nPRE-EXTRACTED ADDRESSES (verify and complete the listing):\n  - ")
		b.WriteString(strings.Join(found, "\n  - "))
	}
	if tabs := c.driver.DiscoverCoinTabs(ctx); len(tabs) > 0 {
		b.WriteString("\nCOIN TABS ON PAGE:")
		for _, t := range tabs {
			fmt.Fprintf(&b, " %q", t.Text)
		}
	}
	return b.String()
}

// batchFill attempts the one-shot fill path. Returns true when the
// batch executed (successfully or not); false degrades to single-action
// mode for this step.
func (c *Controller) batchFill(ctx context.Context, shot []byte, pageText, pageURL, extra string) bool {
	obs := Observation{
		State:        c.state,
		Screenshot:   shot,
		PageText:     pageText,
		PageURL:      pageURL,
		ExtraContext: extra,
	}
	actions, res, err := c.analyzer.AnalyzeBatch(ctx, obs, c.identity.PromptJSON())
	if err != nil {
		log.Printf("Agent: batch fill unavailable, degrading to single actions: %v", err)
		return false
	}
	if res != nil {
		c.recordStep(models.AgentAction{Action: "batch_fill", Reasoning: fmt.Sprintf("%d fill actions", len(actions))}, res, pageURL)
	}

	for _, act := range actions {
		c.execute(ctx, act)
		c.totalActions++
	}
	c.counters.actions++

	// Verification pass from the top of the page.
	_ = c.driver.ScrollToTop(ctx)
	return true
}

// execute dispatches a non-terminal action to the browser.
func (c *Controller) execute(ctx context.Context, action models.AgentAction) {
	switch action.Action {
	case models.ActionClick:
		res := c.driver.Click(ctx, action.Selector, action.Value)
		c.bus.Emit(events.EventActionExecuted, map[string]interface{}{
			"action": "click", "selector": action.Selector, "ok": res.OK, "strategy": res.Strategy,
		})
	case models.ActionTypeText:
		res := c.driver.Type(ctx, action.Selector, action.Value)
		if res.Mismatch {
			c.typeMismatches = append(c.typeMismatches, action.Selector)
		} else if res.OK {
			c.typeMismatches = nil
			c.trackSubmittedPII(action.Value)
		}
		c.bus.Emit(events.EventActionExecuted, map[string]interface{}{
			"action": "type", "selector": action.Selector, "ok": res.OK, "strategy": res.Strategy, "mismatch": res.Mismatch,
		})
	case models.ActionSelect:
		if err := c.driver.Select(ctx, action.Selector, action.Value); err != nil {
			log.Printf("Agent: select failed: %v", err)
		}
	case models.ActionKey:
		if err := c.driver.PressKey(ctx, action.Value); err != nil {
			log.Printf("Agent: key press failed: %v", err)
		}
	case models.ActionNavigate:
		if err := c.driver.Navigate(ctx, action.Value); err != nil {
			log.Printf("Agent: navigate failed: %v", err)
		}
	case models.ActionScroll:
		offset, err := c.driver.Scroll(ctx, 600)
		if err == nil && offset == c.lastScrollY {
			c.counters.noopScrolls++
			c.wasted++
		} else {
			c.counters.noopScrolls = 0
		}
		c.lastScrollY = offset
	case models.ActionWait:
		c.wasted++
		sleepCtx(ctx, 3*time.Second)
	}
}

// trackSubmittedPII maps a typed value back to the identity field it
// came from.
func (c *Controller) trackSubmittedPII(typed string) {
	for field, value := range c.identity.FieldValues() {
		if value != "" && typed == value {
			if strings.HasPrefix(field, "password_") {
				c.session.PasswordUsed = typed
				field = "password"
			}
			for _, seen := range c.session.SubmittedPII {
				if seen == field {
					return
				}
			}
			c.session.SubmittedPII = append(c.session.SubmittedPII, field)
			return
		}
	}
}

// handleDone performs per-state done handling and advances the machine.
func (c *Controller) handleDone(ctx context.Context, action models.AgentAction) (string, bool) {
	if c.state == models.StateExtractWallets {
		c.mergeWallets(action.Value)
		c.captureMilestone(ctx, "extract_wallets")
		c.transition(models.StateComplete)
		return "", false
	}

	// Opportunistic wallet probe on every other state boundary.
	for _, cand := range c.driver.ExtractWalletCandidates(ctx) {
		if m := c.validator.Validate(cand); m != nil {
			if entry, err := models.NewWalletEntry(c.session.TargetURL, m.Symbol, "", m.Address, models.CaptureOpportunistic, 0.6); err == nil {
				entry.RunID = c.session.RunID
				_ = c.harvest.Add(entry)
			}
		}
	}

	c.captureMilestone(ctx, strings.ToLower(string(c.state)))
	c.transition(c.state.NextState())
	return "", false
}

// mergeWallets combines LLM-listed wallets with pre-extracted ones.
// An LLM entry supersedes any pre-extracted entry with the same
// address; pre-extracted entries with unique addresses survive.
func (c *Controller) mergeWallets(value string) {
	llmEntries, err := ParseWalletList(value, c.session.TargetURL)
	if err != nil {
		log.Printf("Agent: wallet list unparseable: %v", err)
	}

	byAddr := map[string]models.WalletEntry{}
	order := []string{}
	for _, e := range c.preExtracted {
		if _, ok := byAddr[e.WalletAddress]; !ok {
			order = append(order, e.WalletAddress)
		}
		byAddr[e.WalletAddress] = e
	}
	for _, e := range llmEntries {
		e.RunID = c.session.RunID
		if _, ok := byAddr[e.WalletAddress]; !ok {
			order = append(order, e.WalletAddress)
		}
		byAddr[e.WalletAddress] = e
	}

	for _, addr := range order {
		entry := byAddr[addr]
		_ = c.harvest.Add(entry)
		c.bus.Emit(events.EventWalletFound, map[string]interface{}{
			"address": entry.WalletAddress, "symbol": entry.TokenSymbol, "network": entry.NetworkShort, "source": string(entry.Source),
		})
	}
}

// handleStuck classifies the stuck reason and either terminates or
// escalates.
func (c *Controller) handleStuck(ctx context.Context, action models.AgentAction) (string, bool) {
	reason := strings.ToLower(action.Reasoning)
	switch {
	case strings.Contains(reason, "email verification") || strings.Contains(reason, "verification email") || strings.Contains(reason, "verify your email"):
		c.session.Metrics.TerminationReason = "email verification required"
		return SiteStatusEmailVerification, true
	case strings.Contains(reason, "referral") || strings.Contains(reason, "invitation code") || strings.Contains(reason, "invite code"):
		return c.escalate(ctx, "REFERRAL_CODE_REQUIRED: "+action.Reasoning)
	default:
		return c.escalate(ctx, action.Reasoning)
	}
}

// escalate requests human guidance and applies the response.
func (c *Controller) escalate(ctx context.Context, reason string) (string, bool) {
	c.wasted++
	cmd, err := c.bus.RequestGuidance(map[string]interface{}{
		"state":  string(c.state),
		"reason": reason,
		"url":    c.session.TargetURL,
	})
	if err != nil {
		c.session.Metrics.TerminationReason = "guidance unavailable: " + err.Error()
		return SiteStatusSkipped, true
	}

	c.counters = stateCounters{skipDOMDirect: true} // cooldown after guidance
	return c.applyGuidance(ctx, cmd)
}

// applyGuidance executes one operator command.
func (c *Controller) applyGuidance(ctx context.Context, cmd events.GuidanceCommand) (string, bool) {
	switch cmd.Action {
	case events.GuidanceSkip:
		c.session.Metrics.TerminationReason = "skipped by guidance"
		return SiteStatusSkipped, true
	case events.GuidanceClick:
		c.execute(ctx, models.AgentAction{Action: models.ActionClick, Selector: cmd.Value})
	case events.GuidanceType:
		sel, text, _ := strings.Cut(cmd.Value, "|")
		c.execute(ctx, models.AgentAction{Action: models.ActionTypeText, Selector: sel, Value: text})
	case events.GuidanceGoto:
		c.execute(ctx, models.AgentAction{Action: models.ActionNavigate, Value: cmd.Value})
	case events.GuidanceContinue:
		if cmd.Reason != "" {
			c.analyzer.NoteHuman(cmd.Reason)
		}
	}
	return "", false
}

// isRepeated detects the same action signature recurring in the window.
func (c *Controller) isRepeated(action models.AgentAction) bool {
	if action.Action.IsTerminal() {
		return false
	}
	sig := fmt.Sprintf("%s:%s:%s", action.Action, action.Selector, action.Value)
	c.counters.recentActions = append(c.counters.recentActions, sig)
	if len(c.counters.recentActions) > c.cfg.ActionWindow {
		c.counters.recentActions = c.counters.recentActions[1:]
	}
	count := 0
	for _, s := range c.counters.recentActions {
		if s == sig {
			count++
		}
	}
	return count >= c.cfg.MaxRepeatedActions
}

func (c *Controller) transition(next models.AgentState) {
	log.Printf("Agent: %s -> %s", c.state, next)
	c.state = next
	c.counters = stateCounters{}
	c.bus.Emit(events.EventStateChanged, map[string]interface{}{
		"state": string(next), "url": c.session.TargetURL,
	})
}

func (c *Controller) trackURL(url string) {
	if url == "" {
		return
	}
	n := len(c.session.VisitedURLs)
	if n == 0 || c.session.VisitedURLs[n-1] != url {
		c.session.VisitedURLs = append(c.session.VisitedURLs, url)
	}
}

func (c *Controller) captureMilestone(ctx context.Context, label string) {
	shot, err := c.driver.MilestoneScreenshot(ctx)
	if err != nil || len(shot) == 0 {
		return
	}
	name := fmt.Sprintf("%s_%02d.png", label, len(c.milestones))
	if c.cfg.ShotDir != "" {
		if err := os.WriteFile(filepath.Join(c.cfg.ShotDir, name), shot, 0o644); err != nil {
			log.Printf("milestone screenshot %s not saved: %v", name, err)
		}
	}
	c.milestones = append(c.milestones, name)
	c.bus.Emit(events.EventScreenshot, map[string]interface{}{"milestone": name})
	c.session.LastScreenshot = name
}

func (c *Controller) recordStep(action models.AgentAction, res *llm.ChatResult, pageURL string) {
	step := models.AgentStep{
		Step:   len(c.session.Steps) + 1,
		State:  string(c.state),
		Action: action,
	}
	if res != nil {
		step.InputTokens = res.InputTokens
		step.OutputTokens = res.OutputTokens
		step.DurationMs = res.LatencyMs
	}
	step.Observation = pageURL
	c.session.Steps = append(c.session.Steps, step)
}

func (c *Controller) appendErrorStep(err error) {
	c.session.Steps = append(c.session.Steps, models.AgentStep{
		Step:  len(c.session.Steps) + 1,
		State: string(c.state),
		Error: err.Error(),
	})
}

// finalize closes the browser, rolls up metrics and emits the terminal
// event. Runs on every exit path.
func (c *Controller) finalize(result *models.SiteResult) {
	if c.driver != nil {
		result.Downloads = c.driver.Downloads()
		c.driver.Close()
	}

	usage := c.analyzer.Usage()
	c.session.Metrics.TotalSteps = len(c.session.Steps)
	c.session.Metrics.TotalInputTokens = usage.InputTokens
	c.session.Metrics.TotalOutputTokens = usage.OutputTokens
	c.session.Metrics.TotalLatencyMs = usage.LatencyMs
	c.session.Metrics.WastedActions = c.wasted
	c.session.FinishedAt = time.Now().UTC()
	c.session.FinalState = string(c.state)
	if c.session.Metrics.TerminationReason == "" && result.Status != SiteStatusComplete {
		c.session.Metrics.TerminationReason = result.Status
	}

	c.harvest.Merge(c.preExtractedUnmerged())
	result.Wallets = c.harvest.Entries()
	result.Screenshots = c.milestones
	result.Session = c.session

	c.bus.Emit(events.EventSiteCompleted, map[string]interface{}{
		"url": result.URL, "status": result.Status, "wallets": len(result.Wallets),
	})
}

// preExtractedUnmerged returns pre-extracted entries when extraction
// never reached its merge (early termination paths).
func (c *Controller) preExtractedUnmerged() []models.WalletEntry {
	if c.state == models.StateComplete {
		return nil // already merged in handleDone
	}
	return c.preExtracted
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
