package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type modelCall struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

type fakeModels struct {
	mu    sync.Mutex
	calls []modelCall
	queue []fakeResponse
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prompt := ""
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		prompt = contents[0].Parts[0].Text
	}
	f.calls = append(f.calls, modelCall{model: model, prompt: prompt, config: config})

	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.resp, next.err
}

type fakeCaches struct {
	mu    sync.Mutex
	calls []*genai.CreateCachedContentConfig
	name  string
	err   error
}

func (f *fakeCaches) Create(_ context.Context, _ string, config *genai.CreateCachedContentConfig) (*genai.CachedContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, config)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.CachedContent{Name: f.name}, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestGenerator(m models, c caches) *Generator {
	return &Generator{
		models:     m,
		caches:     c,
		model:      "gemini-pro",
		maxRetries: 2,
		retryDelay: time.Millisecond,
		logger:     zap.NewNop(),
	}
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	fake.enqueue(textResponse("retry ok"), nil)

	g := newTestGenerator(fake, nil)

	output, err := g.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fake.calls))
	}
	if fake.calls[0].prompt != "prompt" || fake.calls[0].model != "gemini-pro" {
		t.Fatalf("unexpected call: %+v", fake.calls[0])
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	fake.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})

	g := newTestGenerator(fake, nil)

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fake.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newTestGenerator(fake, nil)

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for client error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(fake.calls))
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	fake := &fakeModels{}
	g := newTestGenerator(fake, nil)

	if _, err := g.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(fake.calls))
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(&genai.GenerateContentResponse{}, nil)

	g := newTestGenerator(fake, nil)

	_, err := g.GenerateContent(context.Background(), "prompt")
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestGenerateContentWithCache(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(textResponse("ok"), nil)

	g := newTestGenerator(fake, nil)

	if _, err := g.GenerateContentWithCache(context.Background(), "prompt", "caches/jd-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fake.calls[0].config == nil || fake.calls[0].config.CachedContent != "caches/jd-1" {
		t.Fatalf("cached content not set: %+v", fake.calls[0].config)
	}
}

func TestEnsureJDCacheUploadsOnce(t *testing.T) {
	caches := &fakeCaches{name: "caches/jd-1"}
	g := newTestGenerator(&fakeModels{}, caches)

	first, err := g.EnsureJDCache(context.Background(), "", "platform engineer role")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := g.EnsureJDCache(context.Background(), "", "platform engineer role")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first != "caches/jd-1" || second != "caches/jd-1" {
		t.Fatalf("unexpected cache names: %q, %q", first, second)
	}
	if len(caches.calls) != 1 {
		t.Fatalf("expected single upload, got %d", len(caches.calls))
	}
	if caches.calls[0].Contents[0].Parts[0].Text != "platform engineer role" {
		t.Fatalf("unexpected cached payload: %+v", caches.calls[0].Contents[0])
	}

	if _, err := g.EnsureJDCache(context.Background(), "", "another role"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(caches.calls) != 2 {
		t.Fatalf("expected second upload for new payload, got %d", len(caches.calls))
	}
}

func TestEnsureJDCacheValidation(t *testing.T) {
	g := newTestGenerator(&fakeModels{}, &fakeCaches{name: "caches/jd-1"})
	if _, err := g.EnsureJDCache(context.Background(), "", "  "); err == nil {
		t.Fatal("expected error for empty payload")
	}

	g = newTestGenerator(&fakeModels{}, &fakeCaches{name: ""})
	if _, err := g.EnsureJDCache(context.Background(), "", "some role"); err == nil {
		t.Fatal("expected error for empty cache name")
	}
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), "  ", "", zap.NewNop()); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
