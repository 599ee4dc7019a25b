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

// OpenAICompatProvider talks to any OpenAI-chat-compatible endpoint
// (OpenAI itself, vLLM, LM Studio, gateway proxies). Vision support is
// declared per model by the caller.
type OpenAICompatProvider struct {
	apiKey string
	model  string
	url    string
	vision bool
	client *http.Client
}

// NewOpenAICompatProvider builds the client. url defaults to the public
// OpenAI chat completions endpoint.
func NewOpenAICompatProvider(apiKey, model, url string, vision bool) *OpenAICompatProvider {
	if url == "" {
		url = "https://api.openai.com/v1/chat/completions"
	}
	return &OpenAICompatProvider{
		apiKey: apiKey,
		model:  model,
		url:    url,
		vision: vision,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAICompatProvider) Name() string         { return "openai-compat" }
func (p *OpenAICompatProvider) SupportsVision() bool { return p.vision }

func (p *OpenAICompatProvider) Chat(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	return p.send(ctx, StripImages(messages, "(image omitted)"), opts)
}

func (p *OpenAICompatProvider) ChatWithImages(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	if !p.vision {
		return p.send(ctx, StripImages(messages, "(image omitted: provider is text-only)"), opts)
	}
	return p.send(ctx, messages, opts)
}

func (p *OpenAICompatProvider) CheckConnectivity(ctx context.Context) error {
	_, err := p.send(ctx, []Message{TextMessage(RoleUser, "ping")}, Options{MaxTokens: 8})
	return err
}

func (p *OpenAICompatProvider) send(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	var wire []map[string]interface{}
	for _, m := range messages {
		if len(m.Parts) == 0 {
			wire = append(wire, map[string]interface{}{
				"role":    string(m.Role),
				"content": m.Content,
			})
			continue
		}
		var content []map[string]interface{}
		for _, part := range m.Parts {
			switch part.Type {
			case "text":
				content = append(content, map[string]interface{}{"type": "text", "text": part.Text})
			case "image":
				content = append(content, map[string]interface{}{
					"type": "image_url",
					"image_url": map[string]string{
						"url": fmt.Sprintf("data:%s;base64,%s", part.MediaType, part.Data),
					},
				})
			}
		}
		wire = append(wire, map[string]interface{}{
			"role":    string(m.Role),
			"content": content,
		})
	}

	body := map[string]interface{}{
		"model":    p.model,
		"messages": wire,
	}
	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}
	if opts.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai-compat llm: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai-compat llm: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("openai-compat llm: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai-compat llm: empty choices")
	}

	return &ChatResult{
		Content:      out.Choices[0].Message.Content,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		LatencyMs:    elapsedMs(start),
		Model:        out.Model,
	}, nil
}
