package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/rawblock/scam-investigator/internal/llm"
	"github.com/rawblock/scam-investigator/pkg/models"
)

const (
	conversationWindow = 10
	pageTextLimit      = 3000
	// Image parts survive only in this many of the most recent user
	// messages; older ones are replaced with a placeholder.
	recentImageMessages = 2
)

// cheapRoleStates run on the cheap model: the pages are formulaic and
// the decisions small.
var cheapRoleStates = map[models.AgentState]bool{
	models.StateFillRegister:   true,
	models.StateSubmitRegister: true,
	models.StateCheckEmail:     true,
}

// Observation is one browser reading handed to the analyzer.
type Observation struct {
	State        models.AgentState
	Screenshot   []byte // nil when the cascade chose a text-only tier
	PageText     string
	PageURL      string
	ExtraContext string
}

// Usage accumulates token counts across the session.
type Usage struct {
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Calls        int
}

// Analyzer turns observations into actions, keeping a rolling
// conversation so the model sees its own recent history.
type Analyzer struct {
	factory *llm.Factory
	opts    llm.Options

	history []llm.Message
	usage   Usage
}

// NewAnalyzer builds an analyzer over the provider factory.
func NewAnalyzer(factory *llm.Factory, opts llm.Options) *Analyzer {
	return &Analyzer{factory: factory, opts: opts}
}

// Usage reports accumulated token counts.
func (a *Analyzer) Usage() Usage { return a.usage }

// Reset clears the conversation between sites.
func (a *Analyzer) Reset() {
	a.history = nil
	a.usage = Usage{}
}

func roleFor(state models.AgentState) llm.ModelRole {
	if cheapRoleStates[state] {
		return llm.RoleCheap
	}
	return llm.RolePrimary
}

// buildUserMessage renders one observation as a user turn.
func buildUserMessage(obs Observation) llm.Message {
	text := obs.PageText
	if len(text) > pageTextLimit {
		text = text[:pageTextLimit] + "\n[...text truncated...]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "STATE: %s\nURL: %s\n", obs.State, obs.PageURL)
	if objective, ok := stateObjectives[string(obs.State)]; ok {
		b.WriteString(objective)
		b.WriteString("\n")
	}
	if obs.ExtraContext != "" {
		b.WriteString("\n")
		b.WriteString(obs.ExtraContext)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nPAGE TEXT:\n%s", text)

	msg := llm.Message{Role: llm.RoleUser}
	msg.Parts = append(msg.Parts, llm.ContentPart{Type: "text", Text: b.String()})
	if len(obs.Screenshot) > 0 {
		msg.Parts = append(msg.Parts, llm.ContentPart{
			Type:      "image",
			MediaType: "image/png",
			Data:      base64.StdEncoding.EncodeToString(obs.Screenshot),
		})
	}
	return msg
}

// windowedHistory returns the conversation trimmed to the rolling
// window with image parts stripped from all but the most recent user
// messages. Pure transformation; history itself is never mutated.
func windowedHistory(history []llm.Message) []llm.Message {
	if len(history) > conversationWindow {
		history = history[len(history)-conversationWindow:]
	}

	// Find the cut-off: images survive in the last recentImageMessages
	// user turns only.
	keep := map[int]bool{}
	seen := 0
	for i := len(history) - 1; i >= 0 && seen < recentImageMessages; i-- {
		if history[i].Role == llm.RoleUser {
			keep[i] = true
			seen++
		}
	}

	out := make([]llm.Message, len(history))
	for i, m := range history {
		if m.HasImages() && !keep[i] {
			out[i] = llm.StripImages([]llm.Message{m}, screenshotPlaceholder)[0]
		} else {
			out[i] = m
		}
	}
	return out
}

func (a *Analyzer) chat(ctx context.Context, state models.AgentState, messages []llm.Message, hasImages bool) (*llm.ChatResult, error) {
	provider, err := a.factory.ForRole(roleFor(state))
	if err != nil {
		return nil, err
	}

	opts := a.opts
	opts.JSONMode = true

	var res *llm.ChatResult
	if hasImages {
		res, err = provider.ChatWithImages(ctx, messages, opts)
	} else {
		res, err = provider.Chat(ctx, messages, opts)
	}
	if err != nil {
		return nil, err
	}

	a.usage.InputTokens += res.InputTokens
	a.usage.OutputTokens += res.OutputTokens
	a.usage.LatencyMs += res.LatencyMs
	a.usage.Calls++
	return res, nil
}

// Analyze produces one action for the observation. On provider or
// parse failure it returns a stuck action and drops the failed turn
// from the conversation so the next call starts clean.
func (a *Analyzer) Analyze(ctx context.Context, obs Observation) (models.AgentAction, *llm.ChatResult) {
	userMsg := buildUserMessage(obs)
	a.history = append(a.history, userMsg)

	messages := append([]llm.Message{llm.TextMessage(llm.RoleSystem, systemPrompt)}, windowedHistory(a.history)...)

	res, err := a.chat(ctx, obs.State, messages, userMsg.HasImages())
	if err != nil {
		a.history = a.history[:len(a.history)-1]
		log.Printf("Analyzer: LLM call failed in %s: %v", obs.State, err)
		return models.AgentAction{
			Action:    models.ActionStuck,
			Reasoning: fmt.Sprintf("llm call failed: %v", err),
		}, nil
	}

	action, perr := ParseAction(res.Content)
	if perr != nil {
		a.history = a.history[:len(a.history)-1]
		log.Printf("Analyzer: unparseable response in %s: %v", obs.State, perr)
		return models.AgentAction{
			Action:    models.ActionStuck,
			Reasoning: fmt.Sprintf("unparseable llm response: %v", perr),
		}, res
	}

	a.history = append(a.history, llm.TextMessage(llm.RoleAssistant, res.Content))
	return action, res
}

// AnalyzeBatch performs the one-shot batch fill call for FILL_REGISTER.
// Returns ErrBatchStuck when the model answers [STUCK] so the caller
// can degrade to single-action mode.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, obs Observation, identityJSON string) ([]models.AgentAction, *llm.ChatResult, error) {
	obs.ExtraContext = strings.TrimSpace(batchFillPrompt + "\n\nIDENTITY:\n" + identityJSON + "\n\n" + obs.ExtraContext)
	userMsg := buildUserMessage(obs)
	a.history = append(a.history, userMsg)

	messages := append([]llm.Message{llm.TextMessage(llm.RoleSystem, systemPrompt)}, windowedHistory(a.history)...)

	res, err := a.chat(ctx, obs.State, messages, userMsg.HasImages())
	if err != nil {
		a.history = a.history[:len(a.history)-1]
		return nil, nil, fmt.Errorf("batch fill call: %w", err)
	}

	actions, perr := ParseBatchActions(res.Content)
	if perr != nil {
		a.history = a.history[:len(a.history)-1]
		return nil, res, perr
	}

	a.history = append(a.history, llm.TextMessage(llm.RoleAssistant, res.Content))
	return actions, res, nil
}

// NoteHuman appends an operator instruction to the conversation so the
// model sees it on the next turn.
func (a *Analyzer) NoteHuman(instruction string) {
	a.history = append(a.history, llm.TextMessage(llm.RoleUser, "OPERATOR INSTRUCTION: "+instruction))
}
