// Package taxonomy classifies an investigated site on five axes
// (intent, channel, technique, action, persona) via an LLM call in
// JSON mode, and derives a bounded risk score from static per-label
// weight tables.
package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/rawblock/scam-investigator/internal/llm"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// Version stamps results so stored classifications can be compared
// across weight-table revisions.
const Version = "1.0"

// Static per-label weights. Unknown labels score the axis default.
var (
	intentWeights = map[string]float64{
		"INVESTMENT_FRAUD": 9, "EXTORTION": 10, "CREDENTIAL_THEFT": 8,
		"IDENTITY_THEFT": 8, "ADVANCE_FEE": 7, "ROMANCE": 7,
		"FAKE_GOODS": 5, "TECH_SUPPORT": 6, "UNKNOWN": 3,
	}
	channelWeights = map[string]float64{
		"WEB": 5, "EMAIL": 5, "SOCIAL_MEDIA": 5, "MESSAGING": 5, "SMS": 5, "UNKNOWN": 3,
	}
	techniqueWeights = map[string]float64{
		"PHISHING_KIT": 8, "FAKE_EXCHANGE": 9, "PONZI_DASHBOARD": 9,
		"MALWARE_DROPPER": 10, "CLONE_SITE": 7, "TYPOSQUAT": 6, "UNKNOWN": 3,
	}
	actionWeights = map[string]float64{
		"SEND_MONEY": 10, "DEPOSIT_CRYPTO": 10, "SUBMIT_CREDENTIALS": 8,
		"SUBMIT_PII": 8, "DOWNLOAD_FILE": 9, "CALL_NUMBER": 6, "UNKNOWN": 3,
	}
	personaWeights = map[string]float64{
		"FEAR": 8, "URGENCY": 7, "GREED": 7, "AUTHORITY": 7,
		"TRUST": 6, "ROMANCE": 7, "CURIOSITY": 5, "UNKNOWN": 3,
	}
	axisDefaults = map[models.TaxonomyAxis]float64{
		models.AxisIntent:    5,
		models.AxisChannel:   4,
		models.AxisTechnique: 5,
		models.AxisAction:    5,
		models.AxisPersona:   5,
	}
)

func weightFor(axis models.TaxonomyAxis, label string) float64 {
	var table map[string]float64
	switch axis {
	case models.AxisIntent:
		table = intentWeights
	case models.AxisChannel:
		table = channelWeights
	case models.AxisTechnique:
		table = techniqueWeights
	case models.AxisAction:
		table = actionWeights
	case models.AxisPersona:
		table = personaWeights
	}
	if w, ok := table[strings.ToUpper(label)]; ok {
		return w
	}
	return axisDefaults[axis]
}

// RiskScore computes min(100, 2.5 * sum(confidence * weight)) over all
// labels of all axes.
func RiskScore(res *models.TaxonomyResult) float64 {
	sum := 0.0
	for axis, labels := range map[models.TaxonomyAxis][]models.AxisLabel{
		models.AxisIntent:    res.Intent,
		models.AxisChannel:   res.Channel,
		models.AxisTechnique: res.Technique,
		models.AxisAction:    res.Action,
		models.AxisPersona:   res.Persona,
	} {
		for _, l := range labels {
			sum += l.Confidence * weightFor(axis, l.Label)
		}
	}
	score := 2.5 * sum
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

const classifyPrompt = `You are classifying a suspected fraud website for a threat
intelligence taxonomy. Based on the investigation data below, classify the site on five
axes. For each axis return a ranked list of labels with confidence in [0,1] and a short
explanation.

Axes and allowed labels:
- intent: INVESTMENT_FRAUD, EXTORTION, CREDENTIAL_THEFT, IDENTITY_THEFT, ADVANCE_FEE, ROMANCE, FAKE_GOODS, TECH_SUPPORT, UNKNOWN
- channel: WEB, EMAIL, SOCIAL_MEDIA, MESSAGING, SMS, UNKNOWN
- technique: PHISHING_KIT, FAKE_EXCHANGE, PONZI_DASHBOARD, MALWARE_DROPPER, CLONE_SITE, TYPOSQUAT, UNKNOWN
- action: SEND_MONEY, DEPOSIT_CRYPTO, SUBMIT_CREDENTIALS, SUBMIT_PII, DOWNLOAD_FILE, CALL_NUMBER, UNKNOWN
- persona: FEAR, URGENCY, GREED, AUTHORITY, TRUST, ROMANCE, CURIOSITY, UNKNOWN

Respond with JSON only:
{"intent": [{"label": "...", "confidence": 0.0, "explanation": "..."}],
 "channel": [...], "technique": [...], "action": [...], "persona": [...],
 "summary": "<two sentences describing the scam>"}

INVESTIGATION DATA:
`

// Classifier runs the classification call.
type Classifier struct {
	factory *llm.Factory
	opts    llm.Options
}

// NewClassifier builds a classifier over the provider factory.
func NewClassifier(factory *llm.Factory, opts llm.Options) *Classifier {
	return &Classifier{factory: factory, opts: opts}
}

// buildEvidence renders the investigation into the prompt body.
func buildEvidence(inv *models.Investigation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", inv.TargetURL)
	if inv.Snapshot != nil {
		fmt.Fprintf(&b, "TITLE: %s\n", inv.Snapshot.Title)
		text := inv.Snapshot.VisibleText
		if len(text) > 2500 {
			text = text[:2500]
		}
		fmt.Fprintf(&b, "PAGE TEXT:\n%s\n", text)
	}
	for _, r := range inv.OSINT {
		fmt.Fprintf(&b, "OSINT %s: %s\n", r.Source, r.Summary)
	}
	if n := len(inv.Wallets); n > 0 {
		fmt.Fprintf(&b, "HARVESTED WALLETS: %d (", n)
		for i, w := range inv.Wallets {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s/%s", w.TokenSymbol, w.NetworkShort)
		}
		b.WriteString(")\n")
	}
	for _, ind := range inv.Indicators {
		fmt.Fprintf(&b, "INDICATOR %s: %s\n", ind.Type, ind.Value)
	}
	for _, d := range inv.Downloads {
		fmt.Fprintf(&b, "DOWNLOAD: %s (%d bytes, malicious=%v)\n", d.Filename, d.SizeBytes, d.Malicious)
	}
	for _, p := range inv.PII {
		fmt.Fprintf(&b, "PII FIELD: %s (%s)\n", p.FieldLabel, p.Category)
	}
	return b.String()
}

// Classify produces the five-axis result. On LLM or parse failure it
// returns the minimal fallback (channel WEB at full confidence carrying
// the error) so the pipeline always has a classification.
func (c *Classifier) Classify(ctx context.Context, inv *models.Investigation) *models.TaxonomyResult {
	provider, err := c.factory.ForRole(llm.RolePrimary)
	if err != nil {
		return fallback(err)
	}

	opts := c.opts
	opts.JSONMode = true
	messages := []llm.Message{
		llm.TextMessage(llm.RoleUser, classifyPrompt+buildEvidence(inv)),
	}

	res, err := provider.Chat(ctx, messages, opts)
	if err != nil {
		log.Printf("Taxonomy: classification call failed: %v", err)
		return fallback(err)
	}

	parsed, err := parseResult(res.Content)
	if err != nil {
		log.Printf("Taxonomy: unparseable classification: %v", err)
		return fallback(err)
	}
	parsed.Version = Version
	parsed.RiskScore = RiskScore(parsed)
	return parsed
}

func parseResult(content string) (*models.TaxonomyResult, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i > 0 {
		content = content[i:]
	}
	if j := strings.LastIndex(content, "}"); j >= 0 {
		content = content[:j+1]
	}
	var res models.TaxonomyResult
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return nil, fmt.Errorf("parse taxonomy JSON: %w", err)
	}
	if len(res.Intent)+len(res.Channel)+len(res.Technique)+len(res.Action)+len(res.Persona) == 0 {
		return nil, fmt.Errorf("taxonomy JSON carries no labels")
	}
	return &res, nil
}

// fallback is the degraded result when classification cannot run.
func fallback(err error) *models.TaxonomyResult {
	res := &models.TaxonomyResult{
		Version: Version,
		Channel: []models.AxisLabel{{
			Label:       "WEB",
			Confidence:  1.0,
			Explanation: fmt.Sprintf("classification unavailable: %v", err),
		}},
	}
	res.RiskScore = RiskScore(res)
	return res
}
