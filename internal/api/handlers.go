package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/internal/events"
	"github.com/rawblock/scam-investigator/internal/evidence"
	"github.com/rawblock/scam-investigator/internal/export"
	"github.com/rawblock/scam-investigator/internal/investigator"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// shortID clamps an id to the 8-char prefix used in filenames.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// POST /api/v1/investigate
// Launches an investigation in the background and returns immediately.
func (h *APIHandler) handleStartInvestigation(c *gin.Context) {
	var req struct {
		URL            string `json:"url" binding:"required"`
		Mode           string `json:"mode"`
		Format         string `json:"format"`
		SkipWHOIS      bool   `json:"skipWhois"`
		SkipScreenshot bool   `json:"skipScreenshot"`
		SkipVirusTotal bool   `json:"skipVirustotal"`
		SkipURLScan    bool   `json:"skipUrlscan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	mode := models.ScanMode(req.Mode)
	switch mode {
	case "", models.ModePassive, models.ModeActive, models.ModeFull:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be passive, active or full"})
		return
	}
	if mode == "" {
		mode = h.settings.Mode
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:        id,
		URL:       req.URL,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
		guidance:  NewOperatorGuidance(),
	}
	h.runner.add(run)

	ireq := investigator.Request{
		URL:             req.URL,
		Mode:            mode,
		Format:          req.Format,
		SkipWHOIS:       req.SkipWHOIS,
		SkipScreenshot:  req.SkipScreenshot,
		SkipVirusTotal:  req.SkipVirusTotal,
		SkipURLScan:     req.SkipURLScan,
		InvestigationID: id,
		Sinks:           []events.Sink{runSink{run: run}, h.hub},
		Guidance:        run.guidance,
	}

	go func() {
		defer h.runner.remove(id)
		defer cancel()
		if _, err := h.orch.Investigate(ctx, ireq); err != nil {
			log.Printf("Investigation %s failed: %v", id, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":          "started",
		"investigationId": id,
		"url":             req.URL,
		"mode":            mode,
	})
}

// GET /api/v1/investigations/running
func (h *APIHandler) handleRunning(c *gin.Context) {
	withShots := c.Query("screenshots") == "true"
	runs := h.runner.List()
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, run.view(withShots))
	}
	c.JSON(http.StatusOK, gin.H{"running": views, "total": len(views)})
}

// GET /api/v1/investigations
func (h *APIHandler) handleListInvestigations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter := db.ScanFilter{
		Domain: c.Query("domain"),
		Status: models.InvestigationStatus(c.Query("status")),
		Limit:  limit,
	}

	scans, err := h.store.ListScans(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list scans", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": scans, "total": len(scans)})
}

// resolveScan looks up a scan by full id or unique prefix and writes
// the error response itself on failure.
func (h *APIHandler) resolveScan(c *gin.Context) *db.ScanRecord {
	rec, err := h.store.GetScanByPrefix(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case strings.Contains(err.Error(), "not found"):
			status = http.StatusNotFound
		case strings.Contains(err.Error(), "ambiguous"):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return nil
	}
	return rec
}

// GET /api/v1/investigations/:id
func (h *APIHandler) handleGetInvestigation(c *gin.Context) {
	rec := h.resolveScan(c)
	if rec == nil {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GET /api/v1/investigations/:id/steps
func (h *APIHandler) handleGetSteps(c *gin.Context) {
	rec := h.resolveScan(c)
	if rec == nil {
		return
	}
	steps, err := h.store.ListAgentSteps(c.Request.Context(), rec.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list agent steps", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigationId": rec.ID, "steps": steps, "total": len(steps)})
}

// GET /api/v1/investigations/:id/pii
func (h *APIHandler) handleGetPII(c *gin.Context) {
	rec := h.resolveScan(c)
	if rec == nil {
		return
	}
	exposures, err := h.store.ListPIIExposures(c.Request.Context(), rec.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list PII exposures", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigationId": rec.ID, "exposures": exposures, "total": len(exposures)})
}

// GET /api/v1/investigations/:id/evidence
// Local backend streams the ZIP; GCS redirects to a signed URL.
func (h *APIHandler) handleDownloadEvidence(c *gin.Context) {
	rec := h.resolveScan(c)
	if rec == nil {
		return
	}
	if rec.EvidenceZipPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No evidence package for this investigation"})
		return
	}

	if h.settings.Evidence.StorageBackend == "gcs" && h.storage != nil {
		key := rec.ID + "/evidence.zip"
		url, err := h.storage.SignedURL(c.Request.Context(), key, 15*time.Minute)
		if err == nil {
			c.Redirect(http.StatusFound, url)
			return
		}
		log.Printf("Signed URL for %s failed, serving local copy: %v", key, err)
	}

	c.FileAttachment(rec.EvidenceZipPath, fmt.Sprintf("evidence-%s.zip", shortID(rec.ID)))
}

// GET /api/v1/investigations/:id/lea
// Streams the law-enforcement handoff package.
func (h *APIHandler) handleDownloadLEA(c *gin.Context) {
	rec := h.resolveScan(c)
	if rec == nil {
		return
	}
	if rec.EvidenceZipPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No evidence package for this investigation"})
		return
	}

	var custody *models.ChainOfCustody
	if rec.Investigation != nil {
		custody = rec.Investigation.Custody
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=lea-package-%s.zip", shortID(rec.ID)))
	dir := filepath.Dir(rec.EvidenceZipPath)
	if err := evidence.StreamLEAPackage(c.Writer, dir, custody); err != nil {
		if err == evidence.ErrNoLEAArtifacts {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		// Headers are already sent; all we can do is log.
		log.Printf("LEA package stream for %s failed: %v", rec.ID, err)
	}
}

// POST /api/v1/investigations/:id/guidance
// Answers a pending agent escalation.
func (h *APIHandler) handleGuidance(c *gin.Context) {
	run := h.runner.Get(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No running investigation with that id"})
		return
	}

	var cmd events.GuidanceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	switch cmd.Action {
	case events.GuidanceSkip, events.GuidanceClick, events.GuidanceType,
		events.GuidanceGoto, events.GuidanceContinue:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be skip, click, type, goto or continue"})
		return
	}

	if !run.guidance.Answer(cmd) {
		c.JSON(http.StatusConflict, gin.H{"error": "Guidance queue is full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "action": cmd.Action})
}

// POST /api/v1/investigations/:id/cancel
func (h *APIHandler) handleCancel(c *gin.Context) {
	run := h.runner.Get(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No running investigation with that id"})
		return
	}
	run.cancel()
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling", "investigationId": run.ID})
}

func walletQueryFromRequest(c *gin.Context) db.WalletQuery {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	dedup := c.DefaultQuery("dedup", "true") != "false"
	return db.WalletQuery{
		Address:     c.Query("address"),
		Token:       c.Query("token"),
		Deduplicate: dedup,
		Limit:       limit,
	}
}

// GET /api/v1/wallets
func (h *APIHandler) handleSearchWallets(c *gin.Context) {
	query := walletQueryFromRequest(c)
	rows, err := h.store.SearchWallets(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Wallet search failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows), "deduplicated": query.Deduplicate})
}

// GET /api/v1/wallets/export?format=xlsx|csv|json
func (h *APIHandler) handleExportWallets(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.store.SearchWallets(c.Request.Context(), walletQueryFromRequest(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Wallet search failed", "details": err.Error()})
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=wallets.%s", format))
	if err := export.SearchResults(c.Writer, rows, format); err != nil {
		log.Printf("Wallet export failed: %v", err)
	}
}

// GET /api/v1/health
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "Scam Site Investigator v1.0",
		"mode":   h.settings.Mode,
		"capabilities": gin.H{
			"passive_recon":      true,
			"active_interaction": true,
			"wallet_harvesting":  true,
			"stix_export":        true,
			"lea_packages":       true,
			"live_stream":        true,
		},
		"storeBackend":    h.settings.Store.Backend,
		"evidenceBackend": h.settings.Evidence.StorageBackend,
		"wsClients":       h.hub.ClientCount(),
	})
}

// GET /api/v1/stream
func (h *APIHandler) handleStream(c *gin.Context) {
	h.hub.Subscribe(c.Writer, c.Request, nil)
}
