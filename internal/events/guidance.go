package events

import "time"

// GuidanceAction is what a human (or the AutoSkip default) tells the
// agent to do.
type GuidanceAction string

const (
	GuidanceSkip     GuidanceAction = "skip"
	GuidanceClick    GuidanceAction = "click"
	GuidanceType     GuidanceAction = "type"
	GuidanceGoto     GuidanceAction = "goto"
	GuidanceContinue GuidanceAction = "continue"
)

// GuidanceCommand is one operator response. For GuidanceType the value
// is "selector|text".
type GuidanceCommand struct {
	Action GuidanceAction `json:"action"`
	Value  string         `json:"value,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// GuidanceHandler answers guidance requests when no human is connected.
type GuidanceHandler interface {
	Handle(payload map[string]interface{}) GuidanceCommand
}

// AutoSkip is the default handler: always skip.
type AutoSkip struct{}

func (AutoSkip) Handle(map[string]interface{}) GuidanceCommand {
	return GuidanceCommand{Action: GuidanceSkip, Reason: "no operator connected"}
}

// RequestGuidance emits GUIDANCE_NEEDED and suspends the caller until a
// command arrives via ProvideGuidance, the auto handler answers, or the
// bus closes. Stale responses queued before the request are discarded.
func (b *Bus) RequestGuidance(payload map[string]interface{}) (GuidanceCommand, error) {
	// Drain stale responses from an earlier, abandoned request.
	for {
		select {
		case <-b.guidance:
			continue
		default:
		}
		break
	}

	b.Emit(EventGuidanceNeeded, payload)

	if b.autoHandler != nil {
		cmd := b.autoHandler.Handle(payload)
		b.Emit(EventGuidanceReceived, map[string]interface{}{
			"action": string(cmd.Action), "reason": cmd.Reason, "auto": true,
		})
		return cmd, nil
	}

	select {
	case cmd := <-b.guidance:
		b.Emit(EventGuidanceReceived, map[string]interface{}{
			"action": string(cmd.Action), "reason": cmd.Reason,
		})
		return cmd, nil
	case <-b.done:
		return GuidanceCommand{}, ErrBusClosed
	}
}

// ProvideGuidance delivers an operator command to a suspended
// RequestGuidance call. Non-blocking; false when nothing is waiting and
// the queue is full.
func (b *Bus) ProvideGuidance(cmd GuidanceCommand) bool {
	select {
	case b.guidance <- cmd:
		return true
	default:
		return false
	}
}

// Interject queues a non-blocking mid-run command the controller polls
// between steps.
func (b *Bus) Interject(cmd GuidanceCommand) bool {
	select {
	case b.interject <- cmd:
		return true
	default:
		return false
	}
}

// CheckInterject returns the latest pending interject command, if any.
// Later commands supersede earlier ones.
func (b *Bus) CheckInterject() (GuidanceCommand, bool) {
	var latest GuidanceCommand
	found := false
	for {
		select {
		case cmd := <-b.interject:
			latest = cmd
			found = true
		default:
			return latest, found
		}
	}
}

// WaitClosed blocks until the bus is closed or the timeout expires.
// Test helper for shutdown ordering.
func (b *Bus) WaitClosed(timeout time.Duration) bool {
	select {
	case <-b.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
