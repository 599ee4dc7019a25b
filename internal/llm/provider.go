// Package llm provides a unified text+vision chat interface over the
// providers the investigator can talk to: a hosted multimodal API, any
// OpenAI-compatible endpoint, and a local ollama instance.
package llm

import (
	"context"
	"time"
)

// Role is a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPart is one piece of a multimodal message.
type ContentPart struct {
	Type      string `json:"type"` // "text" or "image"
	Text      string `json:"text,omitempty"`
	MediaType string `json:"media_type,omitempty"` // e.g. image/png
	Data      string `json:"data,omitempty"`       // base64
}

// Message is the unified chat message shape. Content is plain text;
// Parts, when non-empty, supersedes it and may carry images.
type Message struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}

// HasImages reports whether the message carries any image part.
func (m Message) HasImages() bool {
	for _, p := range m.Parts {
		if p.Type == "image" {
			return true
		}
	}
	return false
}

// FlatText joins the message's textual content.
func (m Message) FlatText() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// Options tune a single chat call.
type Options struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// ChatResult is the uniform return value with token accounting.
type ChatResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Model        string
}

// Provider is the polymorphic LLM capability set. Implementations must be
// safe for concurrent use. A non-vision provider receiving images via
// ChatWithImages strips them and answers text-only rather than failing.
type Provider interface {
	Name() string
	SupportsVision() bool
	Chat(ctx context.Context, messages []Message, opts Options) (*ChatResult, error)
	ChatWithImages(ctx context.Context, messages []Message, opts Options) (*ChatResult, error)
	CheckConnectivity(ctx context.Context) error
}

// StripImages replaces image parts with a text placeholder. Used both by
// non-vision providers and by the conversation window manager.
func StripImages(messages []Message, placeholder string) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		if !m.HasImages() {
			out[i] = m
			continue
		}
		stripped := Message{Role: m.Role}
		for _, p := range m.Parts {
			if p.Type == "text" {
				stripped.Parts = append(stripped.Parts, p)
			}
		}
		stripped.Parts = append(stripped.Parts, ContentPart{Type: "text", Text: placeholder})
		out[i] = stripped
	}
	return out
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
