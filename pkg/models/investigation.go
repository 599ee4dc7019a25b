package models

import "time"

// ScanMode selects which pipeline phases run.
type ScanMode string

const (
	ModePassive ScanMode = "passive"
	ModeActive  ScanMode = "active"
	ModeFull    ScanMode = "full"
)

// InvestigationStatus is the top-level lifecycle.
type InvestigationStatus string

const (
	StatusPending   InvestigationStatus = "pending"
	StatusRunning   InvestigationStatus = "running"
	StatusCompleted InvestigationStatus = "completed"
	StatusFailed    InvestigationStatus = "failed"
	StatusSkipped   InvestigationStatus = "skipped"
	StatusCancelled InvestigationStatus = "cancelled"
)

// OSINTResult holds the passive recon output for one signal. Raw carries
// the provider payload; Summary is the line shown in reports.
type OSINTResult struct {
	Source    string                 `json:"source"`
	Summary   string                 `json:"summary,omitempty"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
	FetchedAt time.Time              `json:"fetchedAt"`
	Error     string                 `json:"error,omitempty"`
}

// CostLine is one tracked spend item.
type CostLine struct {
	Kind        string  `json:"kind"` // "llm" / "api" / "compute"
	Description string  `json:"description,omitempty"`
	USD         float64 `json:"usd"`
}

// CostSummary rolls up investigation spend against the configured budget.
type CostSummary struct {
	Lines          []CostLine `json:"lines,omitempty"`
	TotalUSD       float64    `json:"totalUsd"`
	BudgetUSD      float64    `json:"budgetUsd"`
	BudgetExceeded bool       `json:"budgetExceeded"`
}

// ArtifactRecord is one chain-of-custody entry for an evidence file.
type ArtifactRecord struct {
	File        string `json:"file"`
	SizeBytes   int64  `json:"size_bytes"`
	SHA256      string `json:"sha256"`
	Description string `json:"description,omitempty"`
}

// ChainOfCustody documents the evidence package for legal handoff.
type ChainOfCustody struct {
	InvestigationID string           `json:"investigation_id"`
	TargetURL       string           `json:"target_url"`
	CollectedAt     time.Time        `json:"collected_at"`
	Collector       string           `json:"collector"`
	Method          string           `json:"method"`         // always "automated"
	HashAlgorithm   string           `json:"hash_algorithm"` // always "SHA-256"
	Artifacts       []ArtifactRecord `json:"artifacts"`
	PackageSHA256   string           `json:"package_sha256,omitempty"`
	ArtifactCount   int              `json:"artifact_count"`
	TotalBytes      int64            `json:"total_bytes"`
	LegalNotice     string           `json:"legal_notice"`
}

// Investigation is the top-level record. It is created and mutated
// exclusively by the orchestrator during the pipeline, committed to the
// scan store and evidence pipeline on completion, and immutable after.
type Investigation struct {
	ID        string              `json:"id"`
	TargetURL string              `json:"targetUrl"`
	Mode      ScanMode            `json:"mode"`
	Status    InvestigationStatus `json:"status"`

	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt,omitempty"`
	DurationSeconds float64   `json:"durationSeconds"`

	OSINT      []OSINTResult      `json:"osint,omitempty"`
	Snapshot   *PageSnapshot      `json:"snapshot,omitempty"`
	Wallets    []WalletEntry      `json:"wallets,omitempty"`
	PII        []PIIExposure      `json:"pii,omitempty"`
	Indicators []ThreatIndicator  `json:"indicators,omitempty"`
	Downloads  []DownloadArtifact `json:"downloads,omitempty"`
	AgentSteps []AgentStep        `json:"agentSteps,omitempty"`
	Taxonomy   *TaxonomyResult    `json:"taxonomy,omitempty"`

	Cost            CostSummary     `json:"cost"`
	Custody         *ChainOfCustody `json:"custody,omitempty"`
	OutputDir       string          `json:"outputDir,omitempty"`
	EvidenceZipPath string          `json:"evidenceZipPath,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// AddWarning appends a soft-failure note to the record.
func (inv *Investigation) AddWarning(msg string) {
	inv.Warnings = append(inv.Warnings, msg)
}

// AddWallet appends a wallet entry, deduplicating by literal address.
// On a duplicate the entry with higher confidence wins and metadata-richer
// fields are preserved.
func (inv *Investigation) AddWallet(entry WalletEntry) {
	for i, existing := range inv.Wallets {
		if existing.WalletAddress != entry.WalletAddress {
			continue
		}
		if entry.Confidence > existing.Confidence || entry.MetadataScore() > existing.MetadataScore() {
			if entry.TokenSymbol == "" {
				entry.TokenSymbol = existing.TokenSymbol
			}
			if entry.NetworkShort == "" {
				entry.NetworkShort = existing.NetworkShort
			}
			inv.Wallets[i] = entry
		}
		return
	}
	inv.Wallets = append(inv.Wallets, entry)
}
