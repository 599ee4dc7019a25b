package investigator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// RenderReport produces the markdown investigation report. Deliberately
// plain: the record itself is the source of truth, the report is the
// human-readable view.
func RenderReport(inv *models.Investigation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Investigation Report: %s\n\n", inv.TargetURL)
	fmt.Fprintf(&b, "- **ID**: %s\n", inv.ID)
	fmt.Fprintf(&b, "- **Status**: %s\n", inv.Status)
	fmt.Fprintf(&b, "- **Mode**: %s\n", inv.Mode)
	fmt.Fprintf(&b, "- **Started**: %s\n", inv.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration**: %.1fs\n", inv.DurationSeconds)
	if inv.Taxonomy != nil {
		fmt.Fprintf(&b, "- **Risk score**: %.1f/100\n", inv.Taxonomy.RiskScore)
	}
	b.WriteString("\n")

	if inv.Snapshot != nil {
		b.WriteString("## Page\n\n")
		fmt.Fprintf(&b, "- **Final URL**: %s\n", inv.Snapshot.URL)
		if inv.Snapshot.Title != "" {
			fmt.Fprintf(&b, "- **Title**: %s\n", inv.Snapshot.Title)
		}
		b.WriteString("\n")
	}

	if len(inv.OSINT) > 0 {
		b.WriteString("## Passive Recon\n\n")
		for _, r := range inv.OSINT {
			line := r.Summary
			if r.Error != "" {
				line = "error: " + r.Error
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", r.Source, line)
		}
		b.WriteString("\n")
	}

	if len(inv.Wallets) > 0 {
		b.WriteString("## Harvested Wallets\n\n")
		b.WriteString("| Address | Token | Network | Source | Confidence |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, w := range inv.Wallets {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %.2f |\n",
				w.WalletAddress, w.TokenSymbol, w.NetworkShort, w.Source, w.Confidence)
		}
		b.WriteString("\n")
	}

	if len(inv.Indicators) > 0 {
		b.WriteString("## Indicators\n\n")
		for _, ind := range inv.Indicators {
			fmt.Fprintf(&b, "- %s: `%s`\n", ind.Type, ind.Value)
		}
		b.WriteString("\n")
	}

	if len(inv.PII) > 0 {
		b.WriteString("## PII Harvesting\n\n")
		for _, p := range inv.PII {
			submitted := ""
			if p.Submitted {
				submitted = " (synthetic data submitted)"
			}
			fmt.Fprintf(&b, "- %s field %q on %s%s\n", p.Category, p.FieldLabel, p.PageURL, submitted)
		}
		b.WriteString("\n")
	}

	if len(inv.Downloads) > 0 {
		b.WriteString("## Downloads\n\n")
		for _, d := range inv.Downloads {
			flag := ""
			if d.Malicious {
				flag = " **MALICIOUS**"
			}
			fmt.Fprintf(&b, "- %s (%d bytes, sha256 %s)%s\n", d.Filename, d.SizeBytes, d.SHA256, flag)
		}
		b.WriteString("\n")
	}

	if inv.Taxonomy != nil {
		b.WriteString("## Classification\n\n")
		writeAxis(&b, "Intent", inv.Taxonomy.Intent)
		writeAxis(&b, "Channel", inv.Taxonomy.Channel)
		writeAxis(&b, "Technique", inv.Taxonomy.Technique)
		writeAxis(&b, "Action", inv.Taxonomy.Action)
		writeAxis(&b, "Persona", inv.Taxonomy.Persona)
		b.WriteString("\n")
	}

	if len(inv.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range inv.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeAxis(b *strings.Builder, name string, labels []models.AxisLabel) {
	if len(labels) == 0 {
		return
	}
	fmt.Fprintf(b, "- **%s**: ", name)
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", l.Label, l.Confidence))
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString("\n")
}

// RenderLEOReport produces the law-enforcement evidence summary. It
// leads with the artifacts an analyst needs to subpoena or trace.
func RenderLEOReport(inv *models.Investigation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Law Enforcement Evidence Summary\n\n")
	fmt.Fprintf(&b, "Target: %s\nInvestigation: %s\nCollected: %s (UTC)\nCollection method: automated browser investigation\n\n",
		inv.TargetURL, inv.ID, inv.StartedAt.UTC().Format(time.RFC3339))

	if len(inv.Wallets) > 0 {
		b.WriteString("## Cryptocurrency Addresses for Tracing\n\n")
		networks := map[string][]models.WalletEntry{}
		for _, w := range inv.Wallets {
			networks[w.NetworkShort] = append(networks[w.NetworkShort], w)
		}
		keys := make([]string, 0, len(networks))
		for k := range networks {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, net := range keys {
			fmt.Fprintf(&b, "### Network: %s\n\n", net)
			for _, w := range networks[net] {
				fmt.Fprintf(&b, "- `%s` (%s, confidence %.2f, captured %s)\n",
					w.WalletAddress, w.TokenSymbol, w.Confidence,
					w.CapturedAt.UTC().Format(time.RFC3339))
			}
			b.WriteString("\n")
		}
	}

	if len(inv.Indicators) > 0 {
		b.WriteString("## Infrastructure Indicators\n\n")
		for _, ind := range inv.Indicators {
			fmt.Fprintf(&b, "- %s: %s", ind.Type, ind.Value)
			if ind.Source != "" {
				fmt.Fprintf(&b, " (source: %s)", ind.Source)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if inv.Custody != nil {
		b.WriteString("## Chain of Custody\n\n")
		fmt.Fprintf(&b, "- Artifacts: %d (%d bytes)\n", inv.Custody.ArtifactCount, inv.Custody.TotalBytes)
		fmt.Fprintf(&b, "- Hash algorithm: %s\n", inv.Custody.HashAlgorithm)
		if inv.Custody.PackageSHA256 != "" {
			fmt.Fprintf(&b, "- Evidence package SHA-256: `%s`\n", inv.Custody.PackageSHA256)
		}
		b.WriteString("\n")
	}

	b.WriteString("All artifacts referenced here are contained in the accompanying evidence package.\n")
	return b.String()
}
