package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeProvider fails a fixed number of times before succeeding.
type fakeProvider struct {
	failures  int
	calls     int
	err       error
	vision    bool
}

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) SupportsVision() bool { return f.vision }

func (f *fakeProvider) Chat(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &ChatResult{Content: "ok", Model: "fake"}, nil
}

func (f *fakeProvider) ChatWithImages(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	return f.Chat(ctx, messages, opts)
}

func (f *fakeProvider) CheckConnectivity(ctx context.Context) error { return nil }

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, InitialWait: time.Millisecond, Factor: 2, MaxWait: 5 * time.Millisecond}
}

func TestRetry_RecoversFromTransient(t *testing.T) {
	fake := &fakeProvider{failures: 2, err: &HTTPError{Status: 429, Body: "rate limited"}}
	p := WithRetry(fake, fastPolicy())

	res, err := p.Chat(context.Background(), []Message{TextMessage(RoleUser, "hi")}, Options{})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if res.Content != "ok" || fake.calls != 3 {
		t.Fatalf("expected success on 3rd call, calls=%d", fake.calls)
	}
}

func TestRetry_HardErrorIsFinal(t *testing.T) {
	fake := &fakeProvider{failures: 10, err: &HTTPError{Status: 401, Body: "bad key"}}
	p := WithRetry(fake, fastPolicy())

	_, err := p.Chat(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 1 {
		t.Fatalf("401 must not retry, calls=%d", fake.calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	fake := &fakeProvider{failures: 10, err: &HTTPError{Status: 503, Body: "down"}}
	p := WithRetry(fake, fastPolicy())

	_, err := p.Chat(context.Background(), nil, Options{})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 503 {
		t.Fatalf("expected final 503, got %v", err)
	}
	if fake.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", fake.calls)
	}
}

func TestStripImages(t *testing.T) {
	msgs := []Message{
		TextMessage(RoleSystem, "sys"),
		{Role: RoleUser, Parts: []ContentPart{
			{Type: "text", Text: "look at this"},
			{Type: "image", MediaType: "image/png", Data: "aGk="},
		}},
	}

	out := StripImages(msgs, "Previous screenshot omitted")
	if out[1].HasImages() {
		t.Fatal("image part survived stripping")
	}
	if out[1].FlatText() != "look at this\nPrevious screenshot omitted" {
		t.Fatalf("placeholder missing: %q", out[1].FlatText())
	}

	// Original slice is untouched: stripping is a pure transformation.
	if !msgs[1].HasImages() {
		t.Fatal("input mutated")
	}
}

func TestProviderVisionCapability(t *testing.T) {
	if NewOpenAICompatProvider("", "m", "", false).SupportsVision() {
		t.Fatal("text-only openai-compat provider must not claim vision")
	}
	if !NewHostedProvider("", "m", "").SupportsVision() {
		t.Fatal("hosted provider must claim vision")
	}
}
