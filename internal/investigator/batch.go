package investigator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// BatchItem is one URL with optional per-URL overrides.
type BatchItem struct {
	URL            string          `json:"url"`
	Mode           models.ScanMode `json:"mode,omitempty"`
	SkipWHOIS      bool            `json:"skip_whois,omitempty"`
	SkipScreenshot bool            `json:"skip_screenshot,omitempty"`
	SkipVirusTotal bool            `json:"skip_virustotal,omitempty"`
	SkipURLScan    bool            `json:"skip_urlscan,omitempty"`
}

// ParseBatchFile reads batch input. Text format is one URL per line
// with '#' comments; JSON format is an array of items. An empty format
// sniffs: content starting with '[' is JSON.
func ParseBatchFile(data []byte, format string) ([]BatchItem, error) {
	if format == "" {
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
			format = "json"
		} else {
			format = "text"
		}
	}

	switch format {
	case "json":
		var items []BatchItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse batch json: %w", err)
		}
		for i, item := range items {
			if strings.TrimSpace(item.URL) == "" {
				return nil, fmt.Errorf("batch entry %d has no url", i)
			}
		}
		return items, nil

	case "text":
		var items []BatchItem
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			items = append(items, BatchItem{URL: line})
		}
		return items, scanner.Err()

	default:
		return nil, fmt.Errorf("unknown batch format %q", format)
	}
}

// BatchResult reports one URL's outcome.
type BatchResult struct {
	URL             string                     `json:"url"`
	InvestigationID string                     `json:"investigation_id,omitempty"`
	Status          models.InvestigationStatus `json:"status"`
	Skipped         bool                       `json:"skipped,omitempty"`
	Error           string                     `json:"error,omitempty"`
}

// RunBatch investigates every item with bounded concurrency. With
// resume set, URLs that already have a completed scan are skipped.
// The returned error is non-nil when any URL failed.
func (o *Orchestrator) RunBatch(ctx context.Context, items []BatchItem, base Request, concurrency int, resume bool) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 2
	}

	completed := map[string]bool{}
	if resume {
		scans, err := o.Store.ListScans(ctx, db.ScanFilter{Status: models.StatusCompleted, Limit: 10000})
		if err != nil {
			log.Printf("Resume lookup failed, running all URLs: %v", err)
		}
		for _, s := range scans {
			completed[s.TargetURL] = true
		}
	}

	results := make([]BatchResult, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, item := range items {
		i, item := i, item
		target := normalizeURL(item.URL)
		if completed[target] {
			results[i] = BatchResult{URL: item.URL, Status: models.StatusCompleted, Skipped: true}
			continue
		}

		g.Go(func() error {
			req := base
			req.URL = item.URL
			req.InvestigationID = "" // one id per URL
			if item.Mode != "" {
				req.Mode = item.Mode
			}
			req.SkipWHOIS = req.SkipWHOIS || item.SkipWHOIS
			req.SkipScreenshot = req.SkipScreenshot || item.SkipScreenshot
			req.SkipVirusTotal = req.SkipVirusTotal || item.SkipVirusTotal
			req.SkipURLScan = req.SkipURLScan || item.SkipURLScan

			inv, err := o.Investigate(gctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = BatchResult{URL: item.URL, Status: models.StatusFailed, Error: err.Error()}
				return nil // keep going; the summary reports failures
			}
			results[i] = BatchResult{URL: item.URL, InvestigationID: inv.ID, Status: inv.Status}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var failed int
	for _, r := range results {
		if r.Status == models.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d URLs failed", failed, len(items))
	}
	return results, nil
}
