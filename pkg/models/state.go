package models

// AgentState is one node of the per-site state machine.
type AgentState string

const (
	StateLoadSite        AgentState = "LOAD_SITE"
	StateFindRegister    AgentState = "FIND_REGISTER"
	StateFillRegister    AgentState = "FILL_REGISTER"
	StateSubmitRegister  AgentState = "SUBMIT_REGISTER"
	StateCheckEmail      AgentState = "CHECK_EMAIL_VERIFICATION"
	StateNavigateDeposit AgentState = "NAVIGATE_DEPOSIT"
	StateExtractWallets  AgentState = "EXTRACT_WALLETS"
	StateComplete        AgentState = "COMPLETE"
	StateSkipped         AgentState = "SKIPPED"
	StateError           AgentState = "ERROR"
	StateNeedsReview     AgentState = "NEEDS_MANUAL_REVIEW"
)

// IsTerminal reports whether the state machine halts here.
func (s AgentState) IsTerminal() bool {
	switch s {
	case StateComplete, StateSkipped, StateError, StateNeedsReview:
		return true
	}
	return false
}

// NextState returns the successor on a done action. Terminal states map
// to themselves.
func (s AgentState) NextState() AgentState {
	switch s {
	case StateLoadSite:
		return StateFindRegister
	case StateFindRegister:
		return StateFillRegister
	case StateFillRegister:
		return StateSubmitRegister
	case StateSubmitRegister:
		return StateCheckEmail
	case StateCheckEmail:
		return StateNavigateDeposit
	case StateNavigateDeposit:
		return StateExtractWallets
	case StateExtractWallets:
		return StateComplete
	}
	return s
}
