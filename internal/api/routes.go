// Package api is the HTTP surface: investigation launch and lookup,
// cross-scan wallet search, evidence download and the live event stream.
package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/scam-investigator/internal/config"
	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/internal/events"
	"github.com/rawblock/scam-investigator/internal/evidence"
	"github.com/rawblock/scam-investigator/internal/investigator"
)

type APIHandler struct {
	settings *config.Settings
	store    db.Store
	orch     *investigator.Orchestrator
	hub      *events.Hub
	storage  evidence.Storage
	runner   *Runner
}

func SetupRouter(settings *config.Settings, store db.Store, orch *investigator.Orchestrator, hub *events.Hub, storage evidence.Storage) *gin.Engine {
	r := gin.Default()

	// CORS: SSI_API_ALLOWED_ORIGINS is a comma-separated list; empty or
	// "*" allows everything (development).
	allowedOrigins := settings.API.AllowedOrigins
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		settings: settings,
		store:    store,
		orch:     orch,
		hub:      hub,
		storage:  storage,
		runner:   NewRunner(),
	}

	api := r.Group("/api/v1")
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", handler.handleStream)
	}

	limiter := NewRateLimiter(settings.API.RatePerMin, settings.API.RateBurst)
	protected := api.Group("", AuthMiddleware(settings.API.AuthToken), limiter.Middleware())
	{
		protected.POST("/investigate", handler.handleStartInvestigation)
		protected.GET("/investigations", handler.handleListInvestigations)
		protected.GET("/investigations/running", handler.handleRunning)
		protected.GET("/investigations/:id", handler.handleGetInvestigation)
		protected.GET("/investigations/:id/steps", handler.handleGetSteps)
		protected.GET("/investigations/:id/pii", handler.handleGetPII)
		protected.GET("/investigations/:id/evidence", handler.handleDownloadEvidence)
		protected.GET("/investigations/:id/lea", handler.handleDownloadLEA)
		protected.POST("/investigations/:id/guidance", handler.handleGuidance)
		protected.POST("/investigations/:id/cancel", handler.handleCancel)
		protected.GET("/wallets", handler.handleSearchWallets)
		protected.GET("/wallets/export", handler.handleExportWallets)
	}

	// Serve the operator dashboard when present.
	r.Static("/dashboard", "./public")

	return r
}
