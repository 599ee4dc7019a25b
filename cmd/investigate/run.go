package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rawblock/scam-investigator/internal/investigator"
	"github.com/rawblock/scam-investigator/pkg/models"
)

type runFlags struct {
	mode           string
	output         string
	format         string
	skipWHOIS      bool
	skipScreenshot bool
	skipVirusTotal bool
	skipURLScan    bool
}

func (rf *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&rf.mode, "mode", "", "scan mode: passive, active or full (default from config)")
	fs.StringVar(&rf.output, "output", "", "evidence output directory (default from config)")
	fs.StringVar(&rf.format, "format", "both", "report format: json, markdown or both")
	fs.BoolVar(&rf.skipWHOIS, "skip-whois", false, "skip the WHOIS lookup")
	fs.BoolVar(&rf.skipScreenshot, "skip-screenshot", false, "skip the browser capture")
	fs.BoolVar(&rf.skipVirusTotal, "skip-virustotal", false, "skip the VirusTotal lookup")
	fs.BoolVar(&rf.skipURLScan, "skip-urlscan", false, "skip the urlscan.io lookup")
}

func (rf *runFlags) request() (investigator.Request, error) {
	mode := models.ScanMode(rf.mode)
	switch mode {
	case "", models.ModePassive, models.ModeActive, models.ModeFull:
	default:
		return investigator.Request{}, fmt.Errorf("mode must be passive, active or full, got %q", rf.mode)
	}
	return investigator.Request{
		Mode:           mode,
		OutputDir:      rf.output,
		Format:         rf.format,
		SkipWHOIS:      rf.skipWHOIS,
		SkipScreenshot: rf.skipScreenshot,
		SkipVirusTotal: rf.skipVirusTotal,
		SkipURLScan:    rf.skipURLScan,
	}, nil
}

func cmdURL(args []string) error {
	fs := flag.NewFlagSet("url", flag.ContinueOnError)
	var rf runFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: investigate url [flags] <url>")
		return errUsage
	}

	req, err := rf.request()
	if err != nil {
		return err
	}
	req.URL = fs.Arg(0)

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	// Ctrl-C cancels the run; partial results are still persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, store, err := newOrchestrator(ctx, settings)
	if err != nil {
		return err
	}
	defer store.Close()

	inv, err := orch.Investigate(ctx, req)
	if err != nil {
		return err
	}
	printSummary(inv)

	if inv.Status != models.StatusCompleted {
		return fmt.Errorf("investigation finished with status %s", inv.Status)
	}
	return nil
}

func printSummary(inv *models.Investigation) {
	fmt.Printf("\nInvestigation %s\n", inv.ID)
	fmt.Printf("  Target:   %s\n", inv.TargetURL)
	fmt.Printf("  Status:   %s (%.1fs)\n", inv.Status, inv.DurationSeconds)
	if inv.Taxonomy != nil {
		fmt.Printf("  Risk:     %.1f/100\n", inv.Taxonomy.RiskScore)
	}
	fmt.Printf("  Wallets:  %d harvested\n", len(inv.Wallets))
	for _, w := range inv.Wallets {
		fmt.Printf("    %s %s/%s (%.2f via %s)\n", w.WalletAddress, w.TokenSymbol, w.NetworkShort, w.Confidence, w.Source)
	}
	if inv.EvidenceZipPath != "" {
		fmt.Printf("  Evidence: %s\n", inv.EvidenceZipPath)
	}
	for _, warn := range inv.Warnings {
		fmt.Printf("  Warning:  %s\n", warn)
	}
}

func cmdBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	var rf runFlags
	rf.register(fs)
	fileFormat := fs.String("file-format", "", "batch file format: text or json (default: sniff)")
	concurrency := fs.Int("concurrency", 2, "URLs investigated in parallel")
	resume := fs.Bool("resume", false, "skip URLs that already have a completed scan")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: investigate batch [flags] <file>")
		return errUsage
	}

	base, err := rf.request()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	items, err := investigator.ParseBatchFile(data, *fileFormat)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("batch file %s contains no URLs", fs.Arg(0))
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, store, err := newOrchestrator(ctx, settings)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Printf("Investigating %d URLs (concurrency %d)", len(items), *concurrency)
	results, err := orch.RunBatch(ctx, items, base, *concurrency, *resume)
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Printf("SKIP  %s (already completed)\n", r.URL)
		case r.Error != "":
			fmt.Printf("FAIL  %s: %s\n", r.URL, r.Error)
		default:
			fmt.Printf("%-5s %s (%s)\n", r.Status, r.URL, r.InvestigationID)
		}
	}
	return err
}
