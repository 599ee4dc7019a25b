package investigator

import (
	"sync"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// Approximate per-million-token prices used for LLM spend accounting.
// Exact billing varies per provider; these keep the budget meaningful.
const (
	inputTokenUSDPerM  = 3.0
	outputTokenUSDPerM = 15.0
)

// CostTracker accumulates spend line items against a USD budget.
// Exceeding the budget never aborts work; it only flags the summary.
type CostTracker struct {
	mu       sync.Mutex
	budget   float64
	lines    []models.CostLine
	total    float64
	exceeded bool
}

// NewCostTracker opens a tracker with the given ceiling. A zero or
// negative budget disables the exceeded flag.
func NewCostTracker(budgetUSD float64) *CostTracker {
	return &CostTracker{budget: budgetUSD}
}

// Add records one spend item.
func (t *CostTracker) Add(kind, description string, usd float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, models.CostLine{Kind: kind, Description: description, USD: usd})
	t.total += usd
	if t.budget > 0 && t.total > t.budget {
		t.exceeded = true
	}
}

// AddTokens records an LLM line item from token counts.
func (t *CostTracker) AddTokens(description string, inputTokens, outputTokens int) {
	usd := float64(inputTokens)*inputTokenUSDPerM/1e6 +
		float64(outputTokens)*outputTokenUSDPerM/1e6
	t.Add("llm", description, usd)
}

// Exceeded reports whether the ceiling has been passed.
func (t *CostTracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exceeded
}

// Summary renders the roll-up for the investigation record.
func (t *CostTracker) Summary() models.CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := make([]models.CostLine, len(t.lines))
	copy(lines, t.lines)
	return models.CostSummary{
		Lines:          lines,
		TotalUSD:       t.total,
		BudgetUSD:      t.budget,
		BudgetExceeded: t.exceeded,
	}
}
