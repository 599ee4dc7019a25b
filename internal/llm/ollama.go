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

// OllamaProvider talks to a local ollama daemon. Multimodal models
// (llava, llama3.2-vision) take images; plain models run text-only.
// Used for development and cheap roles.
type OllamaProvider struct {
	baseURL string
	model   string
	vision  bool
	client  *http.Client
}

// NewOllamaProvider builds the local client. baseURL defaults to the
// standard ollama port.
func NewOllamaProvider(baseURL, model string, vision bool) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		vision:  vision,
		client:  &http.Client{Timeout: 300 * time.Second},
	}
}

func (p *OllamaProvider) Name() string         { return "ollama" }
func (p *OllamaProvider) SupportsVision() bool { return p.vision }

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	return p.send(ctx, StripImages(messages, "(image omitted)"), opts)
}

func (p *OllamaProvider) ChatWithImages(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	if !p.vision {
		return p.send(ctx, StripImages(messages, "(image omitted: local model is text-only)"), opts)
	}
	return p.send(ctx, messages, opts)
}

func (p *OllamaProvider) CheckConnectivity(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	return nil
}

func (p *OllamaProvider) send(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	var wire []map[string]interface{}
	for _, m := range messages {
		msg := map[string]interface{}{
			"role":    string(m.Role),
			"content": m.FlatText(),
		}
		var images []string
		for _, part := range m.Parts {
			if part.Type == "image" {
				images = append(images, part.Data)
			}
		}
		if len(images) > 0 {
			msg["images"] = images
		}
		wire = append(wire, msg)
	}

	body := map[string]interface{}{
		"model":    p.model,
		"messages": wire,
		"stream":   false,
	}
	options := map[string]interface{}{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}
	if opts.JSONMode {
		body["format"] = "json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Model           string `json:"model"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ollama: decode: %w", err)
	}

	return &ChatResult{
		Content:      out.Message.Content,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		LatencyMs:    elapsedMs(start),
		Model:        out.Model,
	}, nil
}
