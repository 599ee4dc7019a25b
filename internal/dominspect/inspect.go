// Package dominspect turns raw DOM scan data into a cheap, deterministic
// verdict before any LLM is consulted. Each inspectable state has a
// detector that emits weighted signals; summed weights classify the
// outcome as direct (act without an LLM), assisted (prime the LLM with
// a signal summary) or fallback.
package dominspect

import (
	"fmt"
	"strings"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// LinkCandidate is one clickable element the page scan surfaced.
type LinkCandidate struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// ScanData is the raw result of the in-page JS scan for the current
// state. Unused fields are zero for states that do not collect them.
type ScanData struct {
	// FIND_REGISTER signals.
	HasRegistrationForm bool            `json:"has_registration_form"`
	RegisterLinks       []LinkCandidate `json:"register_links,omitempty"`
	URLIsRegisterPage   bool            `json:"url_is_register_page"`
	ModalWithFormInputs bool            `json:"modal_with_form_inputs"`

	// NAVIGATE_DEPOSIT signals.
	DepositLinks      []LinkCandidate `json:"deposit_links,omitempty"`
	URLIsDepositPage  bool            `json:"url_is_deposit_page"`
	DepositCSSElement string          `json:"deposit_css_element,omitempty"`

	// CHECK_EMAIL_VERIFICATION signals.
	EmailVerifyTextFound bool   `json:"email_verify_text_found"`
	EmailVerifySnippet   string `json:"email_verify_snippet,omitempty"`
	DashboardTextFound   bool   `json:"dashboard_text_found"`
	DashboardSnippet     string `json:"dashboard_snippet,omitempty"`
	URLIsVerifyPage      bool   `json:"url_is_verify_page"`
}

// Signal is one weighted observation contributing to the verdict.
type Signal struct {
	Source   string `json:"source"`
	Weight   int    `json:"weight"`
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Outcome classifies the inspection.
type Outcome string

const (
	OutcomeDirect   Outcome = "direct"
	OutcomeAssisted Outcome = "assisted"
	OutcomeFallback Outcome = "fallback"
)

// Inspection is the inspector result for one state and scan.
type Inspection struct {
	State      models.AgentState  `json:"state"`
	Outcome    Outcome            `json:"outcome"`
	Confidence int                `json:"confidence"`
	Action     models.AgentAction `json:"action"`
	Signals    []Signal           `json:"signals,omitempty"`
	Summary    string             `json:"summary,omitempty"`
	ScanMs     int64              `json:"scan_ms"`
}

// Signal weights per detector.
const (
	weightRegistrationForm = 60
	weightRegisterLink     = 40
	weightRegisterURL      = 25
	weightRegisterModal    = 20

	weightDepositLink = 40
	weightDepositURL  = 35
	weightDepositCSS  = 20

	weightEmailVerifyText = 80
	weightDashboardText   = 60
	weightVerifyURL       = 40
)

// Inspector applies the per-state detectors with configurable
// thresholds.
type Inspector struct {
	DirectThreshold   int
	AssistedThreshold int
}

// NewInspector returns an inspector with the default thresholds.
func NewInspector() *Inspector {
	return &Inspector{DirectThreshold: 75, AssistedThreshold: 40}
}

// Inspect runs the detector for the given state. States without a
// detector return a fallback with zero confidence.
func (i *Inspector) Inspect(state models.AgentState, scan ScanData, scanDuration time.Duration) Inspection {
	insp := Inspection{State: state, Outcome: OutcomeFallback, ScanMs: scanDuration.Milliseconds()}

	var signals []Signal
	var action models.AgentAction
	var direct bool

	switch state {
	case models.StateFindRegister:
		signals, action = detectRegister(scan)
	case models.StateNavigateDeposit:
		signals, action = detectDeposit(scan)
	case models.StateCheckEmail:
		signals, action = detectEmailVerification(scan)
		direct = true // this detector always returns a definitive action
	default:
		return insp
	}

	confidence := 0
	for _, s := range signals {
		confidence += s.Weight
	}
	if confidence > 100 {
		confidence = 100
	}

	insp.Signals = signals
	insp.Confidence = confidence

	switch {
	case direct || confidence >= i.DirectThreshold:
		insp.Outcome = OutcomeDirect
		insp.Action = action
	case confidence >= i.AssistedThreshold:
		insp.Outcome = OutcomeAssisted
		insp.Summary = buildSummary(state, confidence, signals)
	default:
		insp.Confidence = 0
	}
	return insp
}

func detectRegister(scan ScanData) ([]Signal, models.AgentAction) {
	var signals []Signal

	if scan.HasRegistrationForm {
		signals = append(signals, Signal{Source: "has_registration_form", Weight: weightRegistrationForm})
	}
	if len(scan.RegisterLinks) > 0 {
		best := scan.RegisterLinks[0]
		signals = append(signals, Signal{Source: "register_link_found", Weight: weightRegisterLink, Selector: best.Selector, Value: best.Text})
	}
	if scan.URLIsRegisterPage {
		signals = append(signals, Signal{Source: "url_is_register_page", Weight: weightRegisterURL})
	}
	if scan.ModalWithFormInputs {
		signals = append(signals, Signal{Source: "modal_with_form_inputs", Weight: weightRegisterModal})
	}

	if scan.HasRegistrationForm {
		return signals, models.AgentAction{
			Action:     models.ActionDone,
			Reasoning:  "registration form visible, proceed to FILL_REGISTER",
			Confidence: 1.0,
		}
	}
	if len(scan.RegisterLinks) > 0 {
		best := scan.RegisterLinks[0]
		action := models.AgentAction{
			Action:     models.ActionClick,
			Selector:   best.Selector,
			Reasoning:  fmt.Sprintf("clicking register link %q", best.Text),
			Confidence: 0.9,
		}
		if best.Selector == "" {
			action.Selector = ""
			action.Value = best.Text
			action.Reasoning = fmt.Sprintf("clicking register link by visible text %q", best.Text)
		}
		return signals, action
	}
	return signals, models.AgentAction{}
}

func detectDeposit(scan ScanData) ([]Signal, models.AgentAction) {
	var signals []Signal

	if len(scan.DepositLinks) > 0 {
		best := scan.DepositLinks[0]
		signals = append(signals, Signal{Source: "deposit_link_found", Weight: weightDepositLink, Selector: best.Selector, Value: best.Text})
	}
	if scan.URLIsDepositPage {
		signals = append(signals, Signal{Source: "url_is_deposit_page", Weight: weightDepositURL})
	}
	if scan.DepositCSSElement != "" {
		signals = append(signals, Signal{Source: "deposit_css_element", Weight: weightDepositCSS, Selector: scan.DepositCSSElement})
	}

	// Already on the deposit page: clicking again would loop.
	if scan.URLIsDepositPage {
		return signals, models.AgentAction{
			Action:     models.ActionDone,
			Reasoning:  "already on deposit page, proceed to wallet extraction",
			Confidence: 1.0,
		}
	}
	if len(scan.DepositLinks) > 0 {
		best := scan.DepositLinks[0]
		return signals, models.AgentAction{
			Action:     models.ActionClick,
			Selector:   best.Selector,
			Reasoning:  fmt.Sprintf("clicking deposit link %q", best.Text),
			Confidence: 0.9,
		}
	}
	if scan.DepositCSSElement != "" {
		return signals, models.AgentAction{
			Action:     models.ActionClick,
			Selector:   scan.DepositCSSElement,
			Reasoning:  "clicking deposit element matched by class",
			Confidence: 0.8,
		}
	}
	return signals, models.AgentAction{}
}

func detectEmailVerification(scan ScanData) ([]Signal, models.AgentAction) {
	var signals []Signal

	if scan.EmailVerifyTextFound {
		signals = append(signals, Signal{Source: "email_verify_text_found", Weight: weightEmailVerifyText, Value: scan.EmailVerifySnippet})
	}
	if scan.DashboardTextFound {
		signals = append(signals, Signal{Source: "dashboard_text_found", Weight: weightDashboardText, Value: scan.DashboardSnippet})
	}
	if scan.URLIsVerifyPage {
		signals = append(signals, Signal{Source: "url_is_verify_page", Weight: weightVerifyURL})
	}

	// Dashboard evidence overrides everything: the account works.
	if scan.DashboardTextFound {
		return signals, models.AgentAction{
			Action:     models.ActionDone,
			Reasoning:  fmt.Sprintf("dashboard visible (%q), account active", scan.DashboardSnippet),
			Confidence: 0.95,
		}
	}
	if scan.EmailVerifyTextFound {
		return signals, models.AgentAction{
			Action:     models.ActionStuck,
			Reasoning:  fmt.Sprintf("email verification required: %q", scan.EmailVerifySnippet),
			Confidence: 0.95,
		}
	}
	if scan.URLIsVerifyPage {
		return signals, models.AgentAction{
			Action:     models.ActionStuck,
			Reasoning:  "on a verification URL with no dashboard evidence",
			Confidence: 0.7,
		}
	}
	// Ambiguous pages move on rather than wedge the run.
	return signals, models.AgentAction{
		Action:     models.ActionDone,
		Reasoning:  "no verification wall detected, assuming registration is usable",
		Confidence: 0.5,
	}
}

// buildSummary renders the assisted-outcome context block injected into
// the LLM prompt.
func buildSummary(state models.AgentState, confidence int, signals []Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DOM PRE-SCAN [%s] confidence=%d/100:\n", state, confidence)
	for _, s := range signals {
		fmt.Fprintf(&b, "  - %s (+%dpts): selector='%s' | value='%s'\n", s.Source, s.Weight, s.Selector, s.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
