package taxonomy

import (
	"testing"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestRiskScore_Bounds(t *testing.T) {
	// Maximal everything still caps at 100.
	res := &models.TaxonomyResult{
		Intent:    []models.AxisLabel{{Label: "EXTORTION", Confidence: 1.0}},
		Technique: []models.AxisLabel{{Label: "MALWARE_DROPPER", Confidence: 1.0}},
		Action:    []models.AxisLabel{{Label: "SEND_MONEY", Confidence: 1.0}},
		Persona:   []models.AxisLabel{{Label: "FEAR", Confidence: 1.0}},
		Channel:   []models.AxisLabel{{Label: "WEB", Confidence: 1.0}},
	}
	if got := RiskScore(res); got != 100 {
		t.Fatalf("maxed-out result should cap at 100, got %f", got)
	}

	if got := RiskScore(&models.TaxonomyResult{}); got != 0 {
		t.Fatalf("empty result should score 0, got %f", got)
	}
}

func TestRiskScore_WeightsApplied(t *testing.T) {
	// Single label: 2.5 * 0.8 * 10 = 20.
	res := &models.TaxonomyResult{
		Action: []models.AxisLabel{{Label: "SEND_MONEY", Confidence: 0.8}},
	}
	if got := RiskScore(res); got != 20 {
		t.Fatalf("expected 20, got %f", got)
	}

	// Unknown labels use the axis default (intent default 5):
	// 2.5 * 0.4 * 5 = 5.
	res = &models.TaxonomyResult{
		Intent: []models.AxisLabel{{Label: "SOMETHING_NEW", Confidence: 0.4}},
	}
	if got := RiskScore(res); got != 5 {
		t.Fatalf("unknown label should use axis default, got %f", got)
	}
}

func TestParseResult(t *testing.T) {
	content := "```json\n" + `{
	  "intent": [{"label": "INVESTMENT_FRAUD", "confidence": 0.9, "explanation": "fake trading dashboard"}],
	  "channel": [{"label": "WEB", "confidence": 1.0}],
	  "technique": [{"label": "FAKE_EXCHANGE", "confidence": 0.85}],
	  "action": [{"label": "DEPOSIT_CRYPTO", "confidence": 0.9}],
	  "persona": [{"label": "GREED", "confidence": 0.8}],
	  "summary": "A fake crypto exchange."
	}` + "\n```"

	res, err := parseResult(content)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Intent) != 1 || res.Intent[0].Label != "INVESTMENT_FRAUD" {
		t.Fatalf("intent not parsed: %+v", res.Intent)
	}
	if res.Summary == "" {
		t.Fatal("summary lost")
	}

	if _, err := parseResult(`{"summary": "nothing else"}`); err == nil {
		t.Fatal("label-free JSON should be rejected")
	}
	if _, err := parseResult("not json at all"); err == nil {
		t.Fatal("prose should be rejected")
	}
}

func TestFallback(t *testing.T) {
	res := fallback(errContext{})
	if len(res.Channel) != 1 || res.Channel[0].Label != "WEB" || res.Channel[0].Confidence != 1.0 {
		t.Fatalf("fallback must be channel WEB at full confidence: %+v", res)
	}
	if res.RiskScore <= 0 || res.RiskScore > 100 {
		t.Fatalf("fallback score out of bounds: %f", res.RiskScore)
	}
	if res.Version != Version {
		t.Fatal("fallback must carry the taxonomy version")
	}
}

type errContext struct{}

func (errContext) Error() string { return "provider unreachable" }
