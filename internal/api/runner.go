package api

import (
	"context"
	"sync"
	"time"

	"github.com/rawblock/scam-investigator/internal/events"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// operatorGuidanceTimeout bounds how long an agent escalation waits for
// a human answer before the auto handler takes over.
const operatorGuidanceTimeout = 60 * time.Second

// OperatorGuidance routes agent escalations to an operator POSTing via
// the API. When nobody answers in time the agent skips and moves on.
type OperatorGuidance struct {
	ch chan events.GuidanceCommand
}

func NewOperatorGuidance() *OperatorGuidance {
	return &OperatorGuidance{ch: make(chan events.GuidanceCommand, 4)}
}

func (g *OperatorGuidance) Handle(map[string]interface{}) events.GuidanceCommand {
	select {
	case cmd := <-g.ch:
		return cmd
	case <-time.After(operatorGuidanceTimeout):
		return events.GuidanceCommand{Action: events.GuidanceSkip, Reason: "operator timeout"}
	}
}

// Answer queues an operator command. Returns false when the queue is
// full, which means earlier answers are still unconsumed.
func (g *OperatorGuidance) Answer(cmd events.GuidanceCommand) bool {
	select {
	case g.ch <- cmd:
		return true
	default:
		return false
	}
}

// Run is one in-flight investigation tracked by the API.
type Run struct {
	ID        string          `json:"investigationId"`
	URL       string          `json:"url"`
	Mode      models.ScanMode `json:"mode"`
	StartedAt time.Time       `json:"startedAt"`

	cancel   context.CancelFunc
	guidance *OperatorGuidance

	mu         sync.Mutex
	state      string
	pageURL    string
	screenshot string
}

// RunView is the JSON shape for the running-investigations endpoint.
type RunView struct {
	ID         string          `json:"investigationId"`
	URL        string          `json:"url"`
	Mode       models.ScanMode `json:"mode"`
	StartedAt  time.Time       `json:"startedAt"`
	State      string          `json:"state,omitempty"`
	PageURL    string          `json:"pageUrl,omitempty"`
	Screenshot string          `json:"screenshot,omitempty"`
}

func (r *Run) view(withScreenshot bool) RunView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := RunView{
		ID:        r.ID,
		URL:       r.URL,
		Mode:      r.Mode,
		StartedAt: r.StartedAt,
		State:     r.state,
		PageURL:   r.pageURL,
	}
	if withScreenshot {
		v.Screenshot = r.screenshot
	}
	return v
}

// runSink mirrors live events into the Run so HTTP polls see progress
// without touching the bus.
type runSink struct{ run *Run }

func (runSink) Name() string { return "api-run" }

func (s runSink) HandleEvent(ev events.Event) {
	s.run.mu.Lock()
	defer s.run.mu.Unlock()
	switch ev.Type {
	case events.EventStateChanged:
		if state, ok := ev.Data["state"].(string); ok {
			s.run.state = state
		}
		if url, ok := ev.Data["url"].(string); ok {
			s.run.pageURL = url
		}
	case events.EventScreenshot:
		if shot, ok := ev.Data["screenshot"].(string); ok {
			s.run.screenshot = shot
		}
	}
}

// Runner is the registry of in-flight investigations.
type Runner struct {
	mu   sync.Mutex
	runs map[string]*Run
}

func NewRunner() *Runner {
	return &Runner{runs: make(map[string]*Run)}
}

func (r *Runner) add(run *Run) {
	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()
}

func (r *Runner) remove(id string) {
	r.mu.Lock()
	delete(r.runs, id)
	r.mu.Unlock()
}

// Get returns the run or nil.
func (r *Runner) Get(id string) *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id]
}

// List returns all in-flight runs, oldest first.
func (r *Runner) List() []*Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartedAt.Before(out[j-1].StartedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
