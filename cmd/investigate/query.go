package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/pkg/models"
)

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	domain := fs.String("domain", "", "filter by domain")
	status := fs.String("status", "", "filter by status")
	limit := fs.Int("limit", 50, "maximum rows")
	asJSON := fs.Bool("json", false, "emit JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer store.Close()

	scans, err := store.ListScans(ctx, db.ScanFilter{
		Domain: *domain,
		Status: models.InvestigationStatus(*status),
		Limit:  *limit,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scans)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tSTATUS\tRISK\tDURATION\tSTARTED")
	for _, s := range scans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.1fs\t%s\n",
			shortID(s.ID), s.Domain, s.Status, s.RiskScore, s.DurationSeconds,
			s.StartedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func cmdShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	withWallets := fs.Bool("wallets", false, "include harvested wallets")
	withSteps := fs.Bool("steps", false, "include the agent action log")
	asJSON := fs.Bool("json", false, "emit the stored record as JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: investigate show [flags] <id>")
		return errUsage
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.GetScanByPrefix(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Printf("Investigation %s\n", rec.ID)
	fmt.Printf("  Target:   %s\n", rec.TargetURL)
	fmt.Printf("  Domain:   %s\n", rec.Domain)
	fmt.Printf("  Mode:     %s\n", rec.Mode)
	fmt.Printf("  Status:   %s\n", rec.Status)
	fmt.Printf("  Risk:     %.1f/100\n", rec.RiskScore)
	fmt.Printf("  Started:  %s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	fmt.Printf("  Duration: %.1fs\n", rec.DurationSeconds)
	if rec.EvidenceZipPath != "" {
		fmt.Printf("  Evidence: %s\n", rec.EvidenceZipPath)
	}

	if *withWallets {
		fmt.Println("\n  Wallets:")
		if rec.Investigation == nil || len(rec.Investigation.Wallets) == 0 {
			fmt.Println("    (none)")
		}
		if rec.Investigation != nil {
			for _, w := range rec.Investigation.Wallets {
				fmt.Printf("    %s %s/%s (%.2f via %s)\n",
					w.WalletAddress, w.TokenSymbol, w.NetworkShort, w.Confidence, w.Source)
			}
		}
	}

	if *withSteps {
		steps, err := store.ListAgentSteps(ctx, rec.ID)
		if err != nil {
			return err
		}
		fmt.Println("\n  Agent steps:")
		for _, s := range steps {
			line := fmt.Sprintf("    %3d [%s] %s", s.Sequence, s.State, s.ActionType)
			if s.Error != "" {
				line += " ERROR: " + s.Error
			}
			fmt.Println(line)
		}
		if len(steps) == 0 {
			fmt.Println("    (none)")
		}
	}
	return nil
}
