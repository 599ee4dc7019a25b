// Package cascade routes each agent step to the cheapest decision path
// able to handle it: DOM heuristics before LLM calls, text-only prompts
// before vision prompts, and human guidance only when the agent is
// stuck. Pure functions, no I/O.
package cascade

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// Tier is the selected decision path for one step.
type Tier string

const (
	TierPlaybook      Tier = "playbook"
	TierDOMDirect     Tier = "dom_direct"
	TierDOMAssisted   Tier = "dom_assisted"
	TierTextOnlyLLM   Tier = "text_only_llm"
	TierVisionLLM     Tier = "vision_llm"
	TierHumanGuidance Tier = "human_guidance"
)

// DOMOutcome is the inspector verdict fed into tier selection.
type DOMOutcome string

const (
	DOMDirect   DOMOutcome = "direct"
	DOMAssisted DOMOutcome = "assisted"
	DOMFallback DOMOutcome = "fallback"
	DOMNone     DOMOutcome = ""
)

// Decision is the routing result for one step.
type Decision struct {
	Tier              Tier   `json:"tier"`
	IncludeScreenshot bool   `json:"include_screenshot"`
	ExtraContext      string `json:"extra_context,omitempty"`
	Reason            string `json:"reason"`
}

// Input collects everything tier selection looks at.
type Input struct {
	State models.AgentState

	// IsStuck is set when the per-state action counter exceeds the
	// configured stuck threshold.
	IsStuck bool

	DOMEnabled bool
	DOMOutcome DOMOutcome
	DOMSummary string

	// ActionsInState counts actions already taken in the current state.
	ActionsInState int

	// WalletsPreExtracted is set once the opportunistic JS extraction
	// pass has found at least one address.
	WalletsPreExtracted bool
}

// PreFilterVerdict classifies the page before any tier is considered.
type PreFilterVerdict string

const (
	VerdictProceed       PreFilterVerdict = "PROCEED"
	VerdictBlankPage     PreFilterVerdict = "BLANK_PAGE"
	VerdictDuplicateShot PreFilterVerdict = "DUPLICATE_SCREENSHOT"
)

const (
	blankTextChars      = 20
	blankScreenshotSize = 5000
)

// ScreenshotHash returns the MD5 hex digest used for duplicate
// detection.
func ScreenshotHash(screenshot []byte) string {
	sum := md5.Sum(screenshot)
	return hex.EncodeToString(sum[:])
}

// PreFilter short-circuits obviously unusable observations. A blank
// page is near-empty text together with a near-empty screenshot; a
// duplicate is a screenshot whose hash equals the previous step's.
// Returns the verdict and the current screenshot hash for the caller
// to carry forward.
func PreFilter(pageText string, screenshot []byte, prevHash string) (PreFilterVerdict, string) {
	hash := ScreenshotHash(screenshot)
	if len(strings.TrimSpace(pageText)) < blankTextChars && len(screenshot) < blankScreenshotSize {
		return VerdictBlankPage, hash
	}
	if prevHash != "" && hash == prevHash {
		return VerdictDuplicateShot, hash
	}
	return VerdictProceed, hash
}

// domInspectable reports the states the DOM inspector has detectors for.
func domInspectable(s models.AgentState) bool {
	switch s {
	case models.StateFindRegister, models.StateNavigateDeposit, models.StateCheckEmail:
		return true
	}
	return false
}

// textOnlyAllowed reports the states where a prompt without a
// screenshot is sufficient.
func textOnlyAllowed(in Input) bool {
	switch in.State {
	case models.StateCheckEmail:
		return true
	case models.StateSubmitRegister:
		return in.ActionsInState > 0
	case models.StateExtractWallets:
		return in.WalletsPreExtracted
	}
	return false
}

// Decide selects the tier for one step. First match wins; stuck always
// escalates to a human regardless of everything else.
func Decide(in Input) Decision {
	if in.IsStuck {
		return Decision{
			Tier:              TierHumanGuidance,
			IncludeScreenshot: true,
			Reason:            fmt.Sprintf("stuck in %s after %d actions", in.State, in.ActionsInState),
		}
	}

	if in.DOMEnabled && domInspectable(in.State) {
		switch in.DOMOutcome {
		case DOMDirect:
			return Decision{
				Tier:   TierDOMDirect,
				Reason: "dom inspector returned a deterministic action",
			}
		case DOMAssisted:
			return Decision{
				Tier:              TierDOMAssisted,
				IncludeScreenshot: true,
				ExtraContext:      in.DOMSummary,
				Reason:            "dom inspector produced a partial signal summary",
			}
		}
	}

	if textOnlyAllowed(in) {
		return Decision{
			Tier:   TierTextOnlyLLM,
			Reason: fmt.Sprintf("state %s resolvable from page text", in.State),
		}
	}

	return Decision{
		Tier:              TierVisionLLM,
		IncludeScreenshot: true,
		Reason:            "no cheaper path available",
	}
}
