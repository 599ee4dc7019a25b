// Package events is the per-investigation event bus: typed events fanned
// out to pluggable sinks, a snapshot cache for late joiners, and the
// guidance request/response channels for human-in-the-loop escalation.
package events

import (
	"errors"
	"log"
	"sync"
	"time"
)

// EventType enumerates the broadcast payload kinds.
type EventType string

const (
	EventSiteStarted      EventType = "site_started"
	EventSiteCompleted    EventType = "site_completed"
	EventStateChanged     EventType = "state_changed"
	EventScreenshot       EventType = "screenshot_updated"
	EventActionExecuted   EventType = "action_executed"
	EventWalletFound      EventType = "wallet_found"
	EventPlaybookMatched  EventType = "playbook_matched"
	EventGuidanceNeeded   EventType = "guidance_needed"
	EventGuidanceReceived EventType = "guidance_received"
	EventLog              EventType = "log"
	EventProgress         EventType = "progress"
	EventError            EventType = "error"
)

// Event is one broadcast payload.
type Event struct {
	Type            EventType              `json:"type"`
	Timestamp       time.Time              `json:"timestamp"`
	InvestigationID string                 `json:"investigationId"`
	Data            map[string]interface{} `json:"data,omitempty"`
}

// Sink consumes events. A sink that panics or errors must not affect
// other sinks or the publisher.
type Sink interface {
	Name() string
	HandleEvent(ev Event)
}

// Snapshot is the cached latest state served to late-joining sinks.
type Snapshot struct {
	ScreenshotB64 string    `json:"screenshot,omitempty"`
	State         string    `json:"state,omitempty"`
	URL           string    `json:"url,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// queueCapacity bounds the internal event channel. Puts never block:
// on saturation the oldest event is dropped.
const queueCapacity = 256

// Bus dispatches events for a single investigation. Not shared across
// investigations.
type Bus struct {
	investigationID string

	mu    sync.RWMutex
	sinks []Sink

	queue  chan Event
	done   chan struct{}
	closed sync.Once

	snapMu   sync.RWMutex
	snapshot Snapshot

	guidance  chan GuidanceCommand
	interject chan GuidanceCommand

	autoHandler GuidanceHandler
}

// NewBus starts the dispatch loop.
func NewBus(investigationID string) *Bus {
	b := &Bus{
		investigationID: investigationID,
		queue:           make(chan Event, queueCapacity),
		done:            make(chan struct{}),
		guidance:        make(chan GuidanceCommand, 4),
		interject:       make(chan GuidanceCommand, 4),
	}
	go b.run()
	return b
}

// AddSink registers a sink and immediately replays the current snapshot
// so late joiners are not blind until the next screenshot.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()

	snap := b.CurrentSnapshot()
	if snap.State != "" {
		b.dispatch(s, Event{
			Type:            EventStateChanged,
			Timestamp:       time.Now().UTC(),
			InvestigationID: b.investigationID,
			Data:            map[string]interface{}{"state": snap.State, "url": snap.URL},
		})
	}
}

// SetAutoGuidance installs the handler consulted when a guidance request
// would otherwise wait forever (no human connected).
func (b *Bus) SetAutoGuidance(h GuidanceHandler) {
	b.autoHandler = h
}

// Emit broadcasts an event. Non-blocking: on a saturated queue the
// oldest pending event is dropped to make room.
func (b *Bus) Emit(t EventType, data map[string]interface{}) {
	ev := Event{
		Type:            t,
		Timestamp:       time.Now().UTC(),
		InvestigationID: b.investigationID,
		Data:            data,
	}

	b.updateSnapshot(ev)

	select {
	case <-b.done:
		return
	default:
	}

	for {
		select {
		case b.queue <- ev:
			return
		default:
			// Drop oldest and retry.
			select {
			case <-b.queue:
			default:
			}
		}
	}
}

func (b *Bus) run() {
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.queue:
			b.mu.RLock()
			sinks := make([]Sink, len(b.sinks))
			copy(sinks, b.sinks)
			b.mu.RUnlock()
			for _, s := range sinks {
				b.dispatch(s, ev)
			}
		}
	}
}

// dispatch isolates sink failures from the bus and other sinks.
func (b *Bus) dispatch(s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("EventBus: sink %s panicked on %s: %v", s.Name(), ev.Type, r)
		}
	}()
	s.HandleEvent(ev)
}

func (b *Bus) updateSnapshot(ev Event) {
	b.snapMu.Lock()
	defer b.snapMu.Unlock()

	switch ev.Type {
	case EventScreenshot:
		if shot, ok := ev.Data["screenshot"].(string); ok {
			b.snapshot.ScreenshotB64 = shot
		}
	case EventStateChanged:
		if state, ok := ev.Data["state"].(string); ok {
			b.snapshot.State = state
		}
		if url, ok := ev.Data["url"].(string); ok {
			b.snapshot.URL = url
		}
	}
	b.snapshot.UpdatedAt = ev.Timestamp
}

// CurrentSnapshot returns the cached latest screenshot/state/URL.
func (b *Bus) CurrentSnapshot() Snapshot {
	b.snapMu.RLock()
	defer b.snapMu.RUnlock()
	return b.snapshot
}

// ErrBusClosed is returned by guidance waits when the bus shuts down.
var ErrBusClosed = errors.New("event bus closed")

// Close stops dispatch and abandons pending guidance waits.
func (b *Bus) Close() {
	b.closed.Do(func() {
		close(b.done)
	})
}
