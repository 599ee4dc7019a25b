package dominspect

import (
	"strings"
	"testing"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestInspect_RegisterFormDirect(t *testing.T) {
	insp := NewInspector().Inspect(models.StateFindRegister, ScanData{
		HasRegistrationForm: true,
		URLIsRegisterPage:   true,
	}, 12*time.Millisecond)

	if insp.Confidence < 75 {
		t.Fatalf("form + register URL should clear the direct threshold, got %d", insp.Confidence)
	}
	if insp.Outcome != OutcomeDirect {
		t.Fatalf("expected direct, got %s", insp.Outcome)
	}
	if insp.Action.Action != models.ActionDone {
		t.Fatalf("expected done action, got %s", insp.Action.Action)
	}
	if !strings.Contains(insp.Action.Reasoning, "FILL_REGISTER") {
		t.Fatalf("reasoning should name the next state: %q", insp.Action.Reasoning)
	}
}

func TestInspect_RegisterLinkAssisted(t *testing.T) {
	insp := NewInspector().Inspect(models.StateFindRegister, ScanData{
		RegisterLinks: []LinkCandidate{{Selector: "a.signup", Text: "Sign Up"}},
	}, time.Millisecond)

	if insp.Confidence != 40 {
		t.Fatalf("single link signal should score 40, got %d", insp.Confidence)
	}
	if insp.Outcome != OutcomeAssisted {
		t.Fatalf("expected assisted, got %s", insp.Outcome)
	}
	if !strings.HasPrefix(insp.Summary, "DOM PRE-SCAN [FIND_REGISTER] confidence=40/100:") {
		t.Fatalf("summary header malformed: %q", insp.Summary)
	}
	if !strings.Contains(insp.Summary, "register_link_found (+40pts): selector='a.signup'") {
		t.Fatalf("summary missing signal line: %q", insp.Summary)
	}
}

func TestInspect_EmptyScanFallsBack(t *testing.T) {
	insp := NewInspector().Inspect(models.StateFindRegister, ScanData{}, time.Millisecond)
	if insp.Outcome != OutcomeFallback {
		t.Fatalf("expected fallback, got %s", insp.Outcome)
	}
	if insp.Confidence != 0 {
		t.Fatalf("fallback must report zero confidence, got %d", insp.Confidence)
	}
}

func TestInspect_DepositAlreadyOnPage(t *testing.T) {
	insp := NewInspector().Inspect(models.StateNavigateDeposit, ScanData{
		URLIsDepositPage: true,
		DepositLinks:     []LinkCandidate{{Selector: "a.active", Text: "Deposit"}},
	}, time.Millisecond)

	if insp.Outcome != OutcomeDirect {
		t.Fatalf("link + URL should be direct, got %s (confidence %d)", insp.Outcome, insp.Confidence)
	}
	if insp.Action.Action != models.ActionDone {
		t.Fatalf("on-page deposit must not click, got %s", insp.Action.Action)
	}
	if !strings.Contains(insp.Action.Reasoning, "already on deposit page") {
		t.Fatalf("reasoning should state the loop guard: %q", insp.Action.Reasoning)
	}
}

func TestInspect_DepositLinkClick(t *testing.T) {
	insp := NewInspector().Inspect(models.StateNavigateDeposit, ScanData{
		DepositLinks:      []LinkCandidate{{Selector: "a[href='/deposit']", Text: "Recharge"}},
		DepositCSSElement: "div.deposit-btn",
	}, time.Millisecond)

	if insp.Confidence != 60 {
		t.Fatalf("link + css signals should score 60, got %d", insp.Confidence)
	}
	if insp.Outcome != OutcomeAssisted {
		t.Fatalf("60 is below the direct threshold, expected assisted, got %s", insp.Outcome)
	}
}

func TestInspect_EmailVerificationWall(t *testing.T) {
	insp := NewInspector().Inspect(models.StateCheckEmail, ScanData{
		EmailVerifyTextFound: true,
		EmailVerifySnippet:   "verify your email",
	}, time.Millisecond)

	if insp.Outcome != OutcomeDirect {
		t.Fatalf("email check is always direct, got %s", insp.Outcome)
	}
	if insp.Action.Action != models.ActionStuck {
		t.Fatalf("verification wall should report stuck, got %s", insp.Action.Action)
	}
	if !strings.Contains(insp.Action.Reasoning, "verify your email") {
		t.Fatalf("reasoning should carry the snippet: %q", insp.Action.Reasoning)
	}
}

func TestInspect_DashboardOverridesVerifyURL(t *testing.T) {
	insp := NewInspector().Inspect(models.StateCheckEmail, ScanData{
		DashboardTextFound: true,
		DashboardSnippet:   "My Assets",
		URLIsVerifyPage:    true,
	}, time.Millisecond)

	if insp.Action.Action != models.ActionDone {
		t.Fatalf("dashboard evidence must win, got %s", insp.Action.Action)
	}
	if insp.Confidence != 100 {
		t.Fatalf("60+40 caps at 100, got %d", insp.Confidence)
	}
}

func TestInspect_EmailCheckTotality(t *testing.T) {
	// Every combination of the three flags yields a definitive action.
	for i := 0; i < 8; i++ {
		scan := ScanData{
			EmailVerifyTextFound: i&1 != 0,
			DashboardTextFound:   i&2 != 0,
			URLIsVerifyPage:      i&4 != 0,
		}
		insp := NewInspector().Inspect(models.StateCheckEmail, scan, time.Millisecond)
		if insp.Outcome != OutcomeDirect {
			t.Fatalf("combination %03b: expected direct, got %s", i, insp.Outcome)
		}
		if insp.Action.Action != models.ActionDone && insp.Action.Action != models.ActionStuck {
			t.Fatalf("combination %03b: non-definitive action %s", i, insp.Action.Action)
		}
	}
}

func TestInspect_UnknownStateFallback(t *testing.T) {
	insp := NewInspector().Inspect(models.StateFillRegister, ScanData{HasRegistrationForm: true}, time.Millisecond)
	if insp.Outcome != OutcomeFallback || insp.Confidence != 0 {
		t.Fatalf("states without detectors must fall back: %+v", insp)
	}
}
