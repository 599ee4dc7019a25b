// Package browser drives a stealth-hardened headless Chromium session
// through the Chrome DevTools Protocol. One Driver is one browser
// session; sessions are never shared across investigations.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/rawblock/scam-investigator/internal/dominspect"
)

// ScanKind selects which in-page scan routine to run.
type ScanKind string

const (
	ScanFindRegister    ScanKind = "find_register"
	ScanNavigateDeposit ScanKind = "navigate_deposit"
	ScanCheckEmail      ScanKind = "check_email"
)

// Config controls session creation.
type Config struct {
	Headless      bool
	Stealth       bool
	ProxyPool     *ProxyPool
	DownloadDir   string
	DownloadLimit int64
	NavTimeout    time.Duration
	StepTimeout   time.Duration
	// RecordHAR captures network traffic for the evidence package.
	RecordHAR bool
	// LLMScreenshotQuality is the JPEG quality for downscaled agent
	// screenshots. Milestone screenshots are always full quality PNG.
	LLMScreenshotQuality int
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Headless:             true,
		Stealth:              true,
		DownloadLimit:        25 << 20,
		NavTimeout:           45 * time.Second,
		StepTimeout:          15 * time.Second,
		LLMScreenshotQuality: 60,
	}
}

// Driver is one live browser session.
type Driver struct {
	cfg         Config
	fingerprint Fingerprint
	proxy       string

	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	ctx         context.Context

	downloads *downloadTracker
	har       *harRecorder
}

// NewDriver starts a Chromium session with a randomised fingerprint and
// the next proxy from the pool.
func NewDriver(parent context.Context, cfg Config) (*Driver, error) {
	fp := RandomFingerprint(rand.New(rand.NewSource(time.Now().UnixNano())))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", fp.Locale),
		chromedp.UserAgent(fp.UserAgent),
		chromedp.WindowSize(fp.Width, fp.Height),
		chromedp.IgnoreCertErrors,
	)

	var proxy string
	if cfg.ProxyPool != nil {
		if proxy = cfg.ProxyPool.Next(); proxy != "" {
			opts = append(opts, chromedp.ProxyServer(proxy))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	d := &Driver{
		cfg:         cfg,
		fingerprint: fp,
		proxy:       proxy,
		allocCancel: allocCancel,
		ctxCancel:   ctxCancel,
		ctx:         ctx,
	}

	if cfg.RecordHAR {
		// Listener must attach before the first navigation.
		d.har = newHARRecorder(ctx)
	}

	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetTimezoneOverride(fp.Timezone),
		emulation.SetDeviceMetricsOverride(int64(fp.Width), int64(fp.Height), fp.Scale, false),
		emulation.SetUserAgentOverride(fp.UserAgent).WithAcceptLanguage(fp.Locale),
	}
	if cfg.Stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		ctxCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser session: %w", err)
	}

	if cfg.DownloadDir != "" {
		tracker, err := newDownloadTracker(ctx, cfg.DownloadDir, cfg.DownloadLimit)
		if err != nil {
			ctxCancel()
			allocCancel()
			return nil, err
		}
		d.downloads = tracker
	}

	log.Printf("Browser session started: %dx%d proxy=%q tz=%s", fp.Width, fp.Height, proxy, fp.Timezone)
	return d, nil
}

// Close tears the session down.
func (d *Driver) Close() {
	d.ctxCancel()
	d.allocCancel()
}

// Proxy reports the proxy this session was pinned to, if any.
func (d *Driver) Proxy() string { return d.proxy }

// Navigate loads a URL and waits for the body to be ready.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	tctx, cancel := d.tab(ctx, d.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Screenshot captures a compressed viewport shot for LLM prompts.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	tctx, cancel := d.tab(ctx, d.cfg.StepTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.FullScreenshot(&buf, d.cfg.LLMScreenshotQuality)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// MilestoneScreenshot captures a full-quality shot for the evidence
// package.
func (d *Driver) MilestoneScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	tctx, cancel := d.tab(ctx, d.cfg.StepTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("milestone screenshot: %w", err)
	}
	return buf, nil
}

// PageText returns the rendered body text.
func (d *Driver) PageText(ctx context.Context) (string, error) {
	var text string
	if err := d.eval(ctx, pageTextScript, &text); err != nil {
		return "", fmt.Errorf("page text: %w", err)
	}
	return text, nil
}

// PageURL returns the current location.
func (d *Driver) PageURL(ctx context.Context) (string, error) {
	var url string
	if err := d.eval(ctx, `location.href`, &url); err != nil {
		return "", fmt.Errorf("page url: %w", err)
	}
	return url, nil
}

// PageTitle returns the document title.
func (d *Driver) PageTitle(ctx context.Context) (string, error) {
	var title string
	if err := d.eval(ctx, `document.title`, &title); err != nil {
		return "", fmt.Errorf("page title: %w", err)
	}
	return title, nil
}

// PageHTML returns the serialized document.
func (d *Driver) PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := d.eval(ctx, `document.documentElement.outerHTML`, &html); err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

// DismissOverlays removes cookie banners, chat widgets and consent
// overlays. Never fails the step.
func (d *Driver) DismissOverlays(ctx context.Context) int {
	var removed int
	if err := d.eval(ctx, dismissOverlaysScript, &removed); err != nil {
		log.Printf("Overlay dismissal failed: %v", err)
		return 0
	}
	if removed > 0 {
		log.Printf("Dismissed %d overlay element(s)", removed)
	}
	return removed
}

// VisibleErrors collects on-page validation error text.
func (d *Driver) VisibleErrors(ctx context.Context) []string {
	var errs []string
	if err := d.eval(ctx, visibleErrorsScript, &errs); err != nil {
		return nil
	}
	return errs
}

// FormFieldValues reads current values of visible form fields.
func (d *Driver) FormFieldValues(ctx context.Context) map[string]string {
	out := map[string]string{}
	if err := d.eval(ctx, formFieldValuesScript, &out); err != nil {
		return nil
	}
	return out
}

// ExtractWalletCandidates pulls address-shaped strings from readonly
// inputs, clipboard attributes and address-styled elements.
func (d *Driver) ExtractWalletCandidates(ctx context.Context) []string {
	var out []string
	if err := d.eval(ctx, extractWalletsScript, &out); err != nil {
		return nil
	}
	return out
}

// CoinTab is one currency switcher on a deposit page.
type CoinTab struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DiscoverCoinTabs lists currency tabs on the current page.
func (d *Driver) DiscoverCoinTabs(ctx context.Context) []CoinTab {
	var tabs []CoinTab
	if err := d.eval(ctx, coinTabsScript, &tabs); err != nil {
		return nil
	}
	return tabs
}

// RunDOMScan executes the kind-specific scan routine and decodes its
// result for the inspector.
func (d *Driver) RunDOMScan(ctx context.Context, kind ScanKind) (dominspect.ScanData, time.Duration, error) {
	var script string
	switch kind {
	case ScanFindRegister:
		script = scanFindRegisterScript
	case ScanNavigateDeposit:
		script = scanNavigateDepositScript
	case ScanCheckEmail:
		script = scanCheckEmailScript
	default:
		return dominspect.ScanData{}, 0, fmt.Errorf("unknown scan kind %q", kind)
	}

	start := time.Now()
	var raw json.RawMessage
	if err := d.eval(ctx, script, &raw); err != nil {
		return dominspect.ScanData{}, time.Since(start), fmt.Errorf("dom scan %s: %w", kind, err)
	}
	var scan dominspect.ScanData
	if err := json.Unmarshal(raw, &scan); err != nil {
		return dominspect.ScanData{}, time.Since(start), fmt.Errorf("decode dom scan %s: %w", kind, err)
	}
	return scan, time.Since(start), nil
}

// tab derives a deadline-bounded context from the session, cancelled
// early if the caller's context is cancelled first.
func (d *Driver) tab(caller context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(d.ctx, timeout)
	stop := context.AfterFunc(caller, cancel)
	return tctx, func() { stop(); cancel() }
}

func (d *Driver) eval(ctx context.Context, js string, out interface{}) error {
	tctx, cancel := d.tab(ctx, d.cfg.StepTimeout)
	defer cancel()
	return chromedp.Run(tctx, chromedp.Evaluate(js, out))
}

func truncateForLog(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
