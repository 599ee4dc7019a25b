package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HostedProvider talks to a hosted multimodal messages API (Anthropic
// wire shape). It is the vision-capable workhorse.
type HostedProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewHostedProvider builds the hosted client. baseURL defaults to the
// public endpoint.
func NewHostedProvider(apiKey, model, baseURL string) *HostedProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1/messages"
	}
	return &HostedProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *HostedProvider) Name() string         { return "hosted" }
func (p *HostedProvider) SupportsVision() bool { return true }

func (p *HostedProvider) Chat(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	return p.send(ctx, StripImages(messages, "(image omitted)"), opts)
}

func (p *HostedProvider) ChatWithImages(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	return p.send(ctx, messages, opts)
}

func (p *HostedProvider) CheckConnectivity(ctx context.Context) error {
	_, err := p.send(ctx, []Message{TextMessage(RoleUser, "ping")}, Options{MaxTokens: 8})
	return err
}

type hostedContent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Source *struct {
		Type      string `json:"type"`
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	} `json:"source,omitempty"`
}

func (p *HostedProvider) send(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	var system string
	var wire []map[string]interface{}

	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.FlatText()
			continue
		}

		var content []hostedContent
		if len(m.Parts) == 0 {
			content = append(content, hostedContent{Type: "text", Text: m.Content})
		} else {
			for _, part := range m.Parts {
				switch part.Type {
				case "text":
					content = append(content, hostedContent{Type: "text", Text: part.Text})
				case "image":
					img := hostedContent{Type: "image"}
					img.Source = &struct {
						Type      string `json:"type"`
						MediaType string `json:"media_type"`
						Data      string `json:"data"`
					}{Type: "base64", MediaType: part.MediaType, Data: part.Data}
					content = append(content, img)
				}
			}
		}
		wire = append(wire, map[string]interface{}{
			"role":    string(m.Role),
			"content": content,
		})
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := map[string]interface{}{
		"model":      p.model,
		"max_tokens": maxTokens,
		"messages":   wire,
	}
	if system != "" {
		body["system"] = system
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}
	if opts.JSONMode {
		// The messages API has no JSON switch; steer via system prompt.
		body["system"] = system + "\nRespond with valid JSON only, no prose."
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hosted llm: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hosted llm: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("hosted llm: decode: %w", err)
	}

	var text string
	for _, c := range out.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	return &ChatResult{
		Content:      text,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		LatencyMs:    elapsedMs(start),
		Model:        out.Model,
	}, nil
}

// HTTPError carries the provider status code so the retry decorator can
// distinguish transient failures from hard ones.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm provider status %d: %.200s", e.Status, e.Body)
}

// Transient reports whether the failure is worth retrying.
func (e *HTTPError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
