// Package db is the scan store: relational persistence for scans,
// harvested wallets, agent action logs and PII exposures, with a
// Postgres backend for production and a SQLite backend for local use.
package db

import (
	"context"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// ScanRecord is one row of the scans table. The full investigation
// record is stored as JSON alongside the queryable columns.
type ScanRecord struct {
	ID              string                     `json:"id"`
	TargetURL       string                     `json:"target_url"`
	Domain          string                     `json:"domain"`
	Mode            models.ScanMode            `json:"mode"`
	Status          models.InvestigationStatus `json:"status"`
	RiskScore       float64                    `json:"risk_score"`
	StartedAt       time.Time                  `json:"started_at"`
	FinishedAt      time.Time                  `json:"finished_at,omitempty"`
	DurationSeconds float64                    `json:"duration_seconds"`
	EvidenceZipPath string                     `json:"evidence_zip_path,omitempty"`
	Investigation   *models.Investigation      `json:"investigation,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// ScanFilter narrows ListScans.
type ScanFilter struct {
	Domain string
	Status models.InvestigationStatus
	Limit  int
}

// WalletQuery drives SearchWallets. With Deduplicate set, rows are
// grouped by (address, symbol, network) and aggregated.
type WalletQuery struct {
	Address     string
	Token       string
	Deduplicate bool
	Limit       int
}

// WalletRow is one search result. For deduplicated queries SeenCount
// reports how many scans harvested the address and the confidence is
// the maximum observed; the source and site URL come from the
// highest-confidence row.
type WalletRow struct {
	WalletAddress string    `json:"wallet_address"`
	TokenSymbol   string    `json:"token_symbol"`
	NetworkShort  string    `json:"network_short"`
	Source        string    `json:"source"`
	SiteURL       string    `json:"site_url"`
	Confidence    float64   `json:"confidence"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	SeenCount     int       `json:"seen_count"`
	ScanID        string    `json:"scan_id,omitempty"`
}

// AgentStepRow is one row of the agent action log, ordered by Sequence.
type AgentStepRow struct {
	ScanID        string  `json:"scan_id"`
	RunID         string  `json:"run_id"`
	Sequence      int     `json:"sequence"`
	State         string  `json:"state"`
	ActionType    string  `json:"action_type"`
	ActionDetail  string  `json:"action_detail"` // JSON
	PageURL       string  `json:"page_url,omitempty"`
	DOMConfidence int     `json:"dom_confidence"`
	LLMModel      string  `json:"llm_model,omitempty"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	CostUSD       float64 `json:"cost_usd"`
	DurationMs    int64   `json:"duration_ms"`
	Error         string  `json:"error,omitempty"`
}

// Store is the persistence contract shared by the Postgres and SQLite
// backends. All mutations run in short transactions.
type Store interface {
	InitSchema(ctx context.Context) error
	Close()

	CreateScan(ctx context.Context, rec *ScanRecord) error
	UpdateScanStatus(ctx context.Context, id string, status models.InvestigationStatus) error
	GetScan(ctx context.Context, id string) (*ScanRecord, error)
	// GetScanByPrefix resolves a scan by id prefix, erroring on
	// ambiguity.
	GetScanByPrefix(ctx context.Context, prefix string) (*ScanRecord, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]ScanRecord, error)

	// PersistInvestigation writes the finished investigation and its
	// wallets, agent steps and PII exposures in one unit of work.
	PersistInvestigation(ctx context.Context, scanID string, inv *models.Investigation, site *models.SiteResult) error

	InsertWallet(ctx context.Context, scanID string, w models.WalletEntry) error
	SearchWallets(ctx context.Context, q WalletQuery) ([]WalletRow, error)

	InsertAgentStep(ctx context.Context, row AgentStepRow) error
	ListAgentSteps(ctx context.Context, scanID string) ([]AgentStepRow, error)

	InsertPIIExposure(ctx context.Context, scanID string, p models.PIIExposure) error
	ListPIIExposures(ctx context.Context, scanID string) ([]models.PIIExposure, error)
}
