package events

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// LoggerSink writes events to the process log. Screenshot payloads are
// elided to keep the log readable.
type LoggerSink struct{}

func (LoggerSink) Name() string { return "logger" }

func (LoggerSink) HandleEvent(ev Event) {
	switch ev.Type {
	case EventScreenshot:
		log.Printf("[%s] %s", ev.InvestigationID, ev.Type)
	default:
		data, _ := json.Marshal(ev.Data)
		log.Printf("[%s] %s %s", ev.InvestigationID, ev.Type, data)
	}
}

// JSONLSink appends one JSON line per event to a file.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLSink opens (appending) the stream file.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		log.Printf("JSONL sink: encode failed: %v", err)
	}
}

// Close flushes and closes the stream file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// MemorySink collects events for tests and the API's running-list view.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty collector.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Name() string { return "memory" }

func (s *MemorySink) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of the collected events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType filters collected events.
func (s *MemorySink) ByType(t EventType) []Event {
	var out []Event
	for _, ev := range s.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
