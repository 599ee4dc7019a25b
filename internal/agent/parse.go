package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// rawAction mirrors the LLM action schema with a lenient value field:
// models sometimes return arrays or objects where a string belongs
// (wallet lists in particular).
type rawAction struct {
	Action     string          `json:"action"`
	Selector   string          `json:"selector"`
	Value      json.RawMessage `json:"value"`
	Reasoning  string          `json:"reasoning"`
	Confidence float64         `json:"confidence"`
}

func (r rawAction) toAction() (models.AgentAction, error) {
	act := models.AgentAction{
		Action:     models.ActionType(strings.ToLower(strings.TrimSpace(r.Action))),
		Selector:   r.Selector,
		Reasoning:  r.Reasoning,
		Confidence: r.Confidence,
	}
	if act.Action == "" {
		return act, fmt.Errorf("action field missing")
	}
	if len(r.Value) > 0 {
		var s string
		if err := json.Unmarshal(r.Value, &s); err == nil {
			act.Value = s
		} else {
			// Non-string values are re-serialised verbatim.
			act.Value = string(r.Value)
		}
	}
	return act, nil
}

// extractJSON strips markdown fences and returns the first JSON value
// in the text.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)

	// Narrow to the outermost JSON value when prose surrounds it.
	objStart := strings.IndexAny(s, "{[")
	if objStart > 0 {
		s = s[objStart:]
	}
	return strings.TrimSpace(s)
}

// ParseAction decodes a single-action LLM response. Accepts bare JSON
// and fenced blocks.
func ParseAction(content string) (models.AgentAction, error) {
	payload := extractJSON(content)
	var raw rawAction
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return models.AgentAction{}, fmt.Errorf("parse action JSON: %w", err)
	}
	return raw.toAction()
}

// batchWrapper covers the object-wrapped list shapes models produce.
type batchWrapper struct {
	Actions []rawAction `json:"actions"`
	Fills   []rawAction `json:"fills"`
	Fields  []rawAction `json:"fields"`
}

// ErrBatchStuck is returned when the batch call answers [STUCK].
var ErrBatchStuck = fmt.Errorf("batch fill reported stuck")

// ParseBatchActions decodes a batch-fill response: a bare array, a
// fenced array, or an object wrapping the list under a well-known key.
func ParseBatchActions(content string) ([]models.AgentAction, error) {
	if strings.Contains(strings.ToUpper(content), "[STUCK]") {
		return nil, ErrBatchStuck
	}
	payload := extractJSON(content)

	var raws []rawAction
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		var wrapper batchWrapper
		if werr := json.Unmarshal([]byte(payload), &wrapper); werr != nil {
			return nil, fmt.Errorf("parse batch JSON: %w", err)
		}
		switch {
		case len(wrapper.Actions) > 0:
			raws = wrapper.Actions
		case len(wrapper.Fills) > 0:
			raws = wrapper.Fills
		case len(wrapper.Fields) > 0:
			raws = wrapper.Fields
		default:
			return nil, fmt.Errorf("batch JSON has no recognised list key")
		}
	}

	out := make([]models.AgentAction, 0, len(raws))
	for i, r := range raws {
		act, err := r.toAction()
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
		switch act.Action {
		case models.ActionTypeText, models.ActionSelect, models.ActionClick:
		default:
			return nil, fmt.Errorf("batch entry %d: %s is not a fill action", i, act.Action)
		}
		out = append(out, act)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("batch JSON decoded to zero actions")
	}
	return out, nil
}

// walletEntryJSON is the wallet listing shape requested from the LLM in
// the extraction prompt.
type walletEntryJSON struct {
	WalletAddress string `json:"wallet_address"`
	TokenSymbol   string `json:"token_symbol"`
	NetworkShort  string `json:"network_short"`
}

// ParseWalletList decodes the wallet list carried in a done action's
// value during extraction. The value may be a JSON array or an object
// with a wallets key.
func ParseWalletList(value, siteURL string) ([]models.WalletEntry, error) {
	payload := extractJSON(value)
	if payload == "" {
		return nil, nil
	}

	var raws []walletEntryJSON
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		var wrapper struct {
			Wallets []walletEntryJSON `json:"wallets"`
		}
		if werr := json.Unmarshal([]byte(payload), &wrapper); werr != nil || len(wrapper.Wallets) == 0 {
			return nil, fmt.Errorf("parse wallet list: %w", err)
		}
		raws = wrapper.Wallets
	}

	var out []models.WalletEntry
	for _, r := range raws {
		entry, err := models.NewWalletEntry(siteURL, r.TokenSymbol, r.NetworkShort, r.WalletAddress, models.CaptureLLM, 0.9)
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
