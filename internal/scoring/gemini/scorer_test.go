package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubGenerator struct {
	mu          sync.Mutex
	response    string
	err         error
	prompts     []string
	cachedCalls []string
	ensureCalls int
	ensureName  string
	ensureErr   error
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) GenerateContentWithCache(_ context.Context, prompt, cacheName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.cachedCalls = append(s.cachedCalls, cacheName)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) EnsureJDCache(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls++
	if s.ensureErr != nil {
		return "", s.ensureErr
	}
	return s.ensureName, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestScorerScore(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 0.82, "reason": "strong skill overlap"}`}
	scorer := NewScorer(stub, zap.NewNop(), false)

	score, err := scorer.Score(context.Background(), "golang engineer resume", "backend engineer role")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0.82 {
		t.Fatalf("expected score 0.82, got %v", score)
	}

	if len(stub.prompts) != 1 {
		t.Fatalf("expected single prompt, got %d", len(stub.prompts))
	}
	if !strings.Contains(stub.prompts[0], "golang engineer resume") {
		t.Fatalf("prompt missing resume text: %s", stub.prompts[0])
	}
	if !strings.Contains(stub.prompts[0], "backend engineer role") {
		t.Fatalf("prompt missing jd text: %s", stub.prompts[0])
	}
}

func TestScorerParsesFencedResponse(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"score\": \"0.8\", \"reason\": \"looks good\"}\n```"}
	scorer := NewScorer(stub, zap.NewNop(), false)

	score, err := scorer.Score(context.Background(), "resume", "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0.8 {
		t.Fatalf("expected score 0.8, got %v", score)
	}
}

func TestScorerClampsScore(t *testing.T) {
	cases := []struct {
		response string
		want     float64
	}{
		{`{"score": 1.7}`, 1},
		{`{"score": -0.2}`, 0},
		{`{"score": 0}`, 0},
		{`{"score": 1}`, 1},
	}

	for _, tc := range cases {
		scorer := NewScorer(&stubGenerator{response: tc.response}, zap.NewNop(), false)
		score, err := scorer.Score(context.Background(), "resume", "jd")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.response, err)
		}
		if score != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.response, tc.want, score)
		}
	}
}

func TestScorerRejectsMalformedResponse(t *testing.T) {
	for _, response := range []string{
		"the candidate is a great fit",
		`{"reason": "no score field"}`,
		`{"score": "high"}`,
	} {
		scorer := NewScorer(&stubGenerator{response: response}, zap.NewNop(), false)
		if _, err := scorer.Score(context.Background(), "resume", "jd"); err == nil {
			t.Fatalf("%s: expected error", response)
		}
	}
}

func TestScorerPropagatesGeneratorError(t *testing.T) {
	boom := errors.New("quota exceeded")
	scorer := NewScorer(&stubGenerator{err: boom}, zap.NewNop(), false)

	if _, err := scorer.Score(context.Background(), "resume", "jd"); !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestScorerUsesJDCache(t *testing.T) {
	stub := &stubGenerator{
		response:   `{"score": 0.5}`,
		ensureName: "caches/jd-abc",
	}
	scorer := NewScorer(stub, zap.NewNop(), true)

	jd := "kubernetes platform engineer role"
	for i := 0; i < 2; i++ {
		if _, err := scorer.Score(context.Background(), "resume", jd); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if stub.ensureCalls != 1 {
		t.Fatalf("expected single cache upload, got %d", stub.ensureCalls)
	}
	if len(stub.cachedCalls) != 2 || stub.cachedCalls[0] != "caches/jd-abc" {
		t.Fatalf("expected cached generation, got %+v", stub.cachedCalls)
	}
	for _, prompt := range stub.prompts {
		if strings.Contains(prompt, jd) {
			t.Fatalf("cached prompt should not repeat the jd: %s", prompt)
		}
		if !strings.Contains(prompt, "cached context") {
			t.Fatalf("cached prompt missing placeholder note: %s", prompt)
		}
	}
}

func TestScorerFallsBackWhenCacheFails(t *testing.T) {
	stub := &stubGenerator{
		response:  `{"score": 0.5}`,
		ensureErr: errors.New("payload too small"),
	}
	core, logs := observer.New(zap.WarnLevel)
	scorer := NewScorer(stub, zap.New(core), true)

	jd := "kubernetes platform engineer role"
	for i := 0; i < 2; i++ {
		if _, err := scorer.Score(context.Background(), "resume", jd); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if stub.ensureCalls != 1 {
		t.Fatalf("cache failure should be memoized, got %d attempts", stub.ensureCalls)
	}
	if len(stub.cachedCalls) != 0 {
		t.Fatalf("expected plain generation after cache failure, got %+v", stub.cachedCalls)
	}
	if !strings.Contains(stub.prompts[0], jd) {
		t.Fatalf("fallback prompt missing jd text: %s", stub.prompts[0])
	}
	if warns := logs.FilterMessage("jd cache unavailable, scoring without cached context").Len(); warns != 1 {
		t.Fatalf("expected single warning, got %d", warns)
	}
}
