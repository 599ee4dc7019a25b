package models

import "time"

// InteractiveElement is one entry of the page's element inventory sent to
// the LLM. Selector is a stable CSS path resolved at scan time.
type InteractiveElement struct {
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Text        string `json:"text,omitempty"`
	Href        string `json:"href,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Selector    string `json:"selector"`
	Index       int    `json:"index"`
}

// PageSnapshot is a single observation of the target page.
type PageSnapshot struct {
	URL            string               `json:"url"`
	Title          string               `json:"title,omitempty"`
	VisibleText    string               `json:"visibleText,omitempty"`
	Elements       []InteractiveElement `json:"elements,omitempty"`
	RedirectChain  []string             `json:"redirectChain,omitempty"`
	ScreenshotPath string               `json:"screenshotPath,omitempty"`
	DOMPath        string               `json:"domPath,omitempty"`
	HARPath        string               `json:"harPath,omitempty"`
	Technologies   []string             `json:"technologies,omitempty"`
}

// ActionType enumerates what the agent can do in one step.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionSelect   ActionType = "select"
	ActionKey      ActionType = "key"
	ActionNavigate ActionType = "navigate"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
	ActionDone     ActionType = "done"
	ActionStuck    ActionType = "stuck"
)

// IsTerminal reports whether the action ends the current state instead of
// executing against the browser.
func (a ActionType) IsTerminal() bool {
	return a == ActionDone || a == ActionStuck
}

// AgentAction is one decision produced by the page analyzer.
type AgentAction struct {
	Action     ActionType `json:"action"`
	Selector   string     `json:"selector,omitempty"`
	Value      string     `json:"value,omitempty"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
}

// AgentStep records one observe-decide-act iteration.
type AgentStep struct {
	Step           int         `json:"step"`
	State          string      `json:"state"`
	Observation    string      `json:"observation,omitempty"`
	Action         AgentAction `json:"action"`
	ScreenshotPre  string      `json:"screenshotPre,omitempty"`
	ScreenshotPost string      `json:"screenshotPost,omitempty"`
	InputTokens    int         `json:"inputTokens"`
	OutputTokens   int         `json:"outputTokens"`
	DurationMs     int64       `json:"durationMs"`
	Error          string      `json:"error,omitempty"`
}

// SessionMetrics is the per-session roll-up computed at finalisation.
type SessionMetrics struct {
	TotalSteps        int    `json:"totalSteps"`
	TotalInputTokens  int    `json:"totalInputTokens"`
	TotalOutputTokens int    `json:"totalOutputTokens"`
	TotalLatencyMs    int64  `json:"totalLatencyMs"`
	WastedActions     int    `json:"wastedActions"`
	TerminationReason string `json:"terminationReason,omitempty"`
}

// AgentSession is the per-URL state owned by one agent controller run.
type AgentSession struct {
	RunID          string             `json:"runId"`
	TargetURL      string             `json:"targetUrl"`
	Steps          []AgentStep        `json:"steps"`
	VisitedURLs    []string           `json:"visitedUrls,omitempty"`
	SubmittedPII   []string           `json:"submittedPii,omitempty"`
	Downloads      []DownloadArtifact `json:"downloads,omitempty"`
	Metrics        SessionMetrics     `json:"metrics"`
	StartedAt      time.Time          `json:"startedAt"`
	FinishedAt     time.Time          `json:"finishedAt,omitempty"`
	FinalState     string             `json:"finalState,omitempty"`
	PasswordUsed   string             `json:"-"`
	LastScreenshot string             `json:"-"`
}

// SiteResult is what the agent controller hands back to the orchestrator.
type SiteResult struct {
	URL         string             `json:"url"`
	Status      string             `json:"status"`
	Wallets     []WalletEntry      `json:"wallets,omitempty"`
	PII         []PIIExposure      `json:"pii,omitempty"`
	Downloads   []DownloadArtifact `json:"downloads,omitempty"`
	Screenshots []string           `json:"screenshots,omitempty"`
	Session     *AgentSession      `json:"session,omitempty"`
	Error       string             `json:"error,omitempty"`
}
