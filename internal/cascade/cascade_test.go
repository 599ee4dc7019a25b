package cascade

import (
	"bytes"
	"testing"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestDecide_StuckAlwaysEscalates(t *testing.T) {
	states := []models.AgentState{
		models.StateFindRegister,
		models.StateFillRegister,
		models.StateCheckEmail,
		models.StateExtractWallets,
	}
	for _, st := range states {
		d := Decide(Input{
			State:               st,
			IsStuck:             true,
			DOMEnabled:          true,
			DOMOutcome:          DOMDirect,
			WalletsPreExtracted: true,
		})
		if d.Tier != TierHumanGuidance {
			t.Fatalf("state %s: expected human_guidance, got %s", st, d.Tier)
		}
		if !d.IncludeScreenshot {
			t.Fatalf("state %s: guidance escalation must carry a screenshot", st)
		}
	}
}

func TestDecide_DOMDirect(t *testing.T) {
	d := Decide(Input{
		State:      models.StateFindRegister,
		DOMEnabled: true,
		DOMOutcome: DOMDirect,
	})
	if d.Tier != TierDOMDirect {
		t.Fatalf("expected dom_direct, got %s", d.Tier)
	}
	if d.IncludeScreenshot || d.ExtraContext != "" {
		t.Fatalf("dom_direct must not carry screenshot or context: %+v", d)
	}
}

func TestDecide_DOMAssistedCarriesSummary(t *testing.T) {
	d := Decide(Input{
		State:      models.StateNavigateDeposit,
		DOMEnabled: true,
		DOMOutcome: DOMAssisted,
		DOMSummary: "DOM PRE-SCAN [NAVIGATE_DEPOSIT] confidence=55/100:",
	})
	if d.Tier != TierDOMAssisted {
		t.Fatalf("expected dom_assisted, got %s", d.Tier)
	}
	if !d.IncludeScreenshot || d.ExtraContext == "" {
		t.Fatalf("dom_assisted must carry screenshot and summary: %+v", d)
	}
}

func TestDecide_DOMIgnoredForUninspectableState(t *testing.T) {
	d := Decide(Input{
		State:      models.StateFillRegister,
		DOMEnabled: true,
		DOMOutcome: DOMDirect,
	})
	if d.Tier != TierVisionLLM {
		t.Fatalf("FILL_REGISTER has no detector; expected vision_llm, got %s", d.Tier)
	}
}

func TestDecide_TextOnlyStates(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want Tier
	}{
		{"check email always text-only", Input{State: models.StateCheckEmail}, TierTextOnlyLLM},
		{"submit first action needs vision", Input{State: models.StateSubmitRegister, ActionsInState: 0}, TierVisionLLM},
		{"submit later actions text-only", Input{State: models.StateSubmitRegister, ActionsInState: 1}, TierTextOnlyLLM},
		{"extract without pre-extraction needs vision", Input{State: models.StateExtractWallets}, TierVisionLLM},
		{"extract with pre-extraction text-only", Input{State: models.StateExtractWallets, WalletsPreExtracted: true}, TierTextOnlyLLM},
		{"find register defaults to vision", Input{State: models.StateFindRegister}, TierVisionLLM},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.in)
			if d.Tier != tc.want {
				t.Fatalf("got %s want %s", d.Tier, tc.want)
			}
		})
	}
}

func TestDecide_CheckEmailNeverVision(t *testing.T) {
	outcomes := []DOMOutcome{DOMNone, DOMDirect, DOMAssisted, DOMFallback}
	for _, o := range outcomes {
		for _, enabled := range []bool{true, false} {
			d := Decide(Input{State: models.StateCheckEmail, DOMEnabled: enabled, DOMOutcome: o})
			if d.Tier == TierVisionLLM {
				t.Fatalf("CHECK_EMAIL_VERIFICATION routed to vision (dom=%v outcome=%q)", enabled, o)
			}
		}
	}
}

func TestPreFilter(t *testing.T) {
	bigShot := bytes.Repeat([]byte{0xAB}, 6000)
	smallShot := []byte("tiny")

	v, h1 := PreFilter("  hi  ", smallShot, "")
	if v != VerdictBlankPage {
		t.Fatalf("short text + small screenshot should be BLANK_PAGE, got %s", v)
	}

	// Long text alone disqualifies blank even with a tiny screenshot.
	longText := "This page has plenty of visible content on it."
	if v, _ := PreFilter(longText, smallShot, ""); v != VerdictProceed {
		t.Fatalf("long text must not be blank, got %s", v)
	}

	// Big screenshot alone disqualifies blank.
	if v, _ := PreFilter("", bigShot, ""); v != VerdictProceed {
		t.Fatalf("large screenshot must not be blank, got %s", v)
	}

	// Same screenshot twice is a duplicate.
	v, h2 := PreFilter(longText, bigShot, "")
	if v != VerdictProceed {
		t.Fatalf("first observation should proceed, got %s", v)
	}
	v, _ = PreFilter(longText, bigShot, h2)
	if v != VerdictDuplicateShot {
		t.Fatalf("identical screenshot should be DUPLICATE_SCREENSHOT, got %s", v)
	}

	// Different screenshot clears the duplicate condition.
	other := bytes.Repeat([]byte{0xCD}, 6000)
	if v, _ = PreFilter(longText, other, h2); v != VerdictProceed {
		t.Fatalf("changed screenshot should proceed, got %s", v)
	}

	if h1 == h2 {
		t.Fatal("distinct screenshots produced equal hashes")
	}
}
