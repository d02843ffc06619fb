// Package gemini scores resume/JD pairs with the Gemini API. The job
// description can be pinned in a cached content resource so ranking many
// resumes against one JD does not resend it on every call.
package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/logger"
)

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateContentWithCache(ctx context.Context, prompt, cacheName string) (string, error)
	EnsureJDCache(ctx context.Context, displayName, payload string) (string, error)
	Model() string
}

// Scorer implements scoring.Scorer on top of a content generator.
type Scorer struct {
	generator contentGenerator
	log       *zap.Logger
	cacheJD   bool

	cacheMu    sync.Mutex
	cacheNames map[string]string
	cacheTried map[string]bool
}

// NewScorer wraps the generator. With cacheJD enabled the first score call
// for a given JD uploads it as cached context; later calls reuse it.
func NewScorer(generator contentGenerator, log *zap.Logger, cacheJD bool) *Scorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scorer{
		generator:  generator,
		log:        log,
		cacheJD:    cacheJD,
		cacheNames: make(map[string]string),
		cacheTried: make(map[string]bool),
	}
}

func (s *Scorer) Score(ctx context.Context, resume, jd string) (float64, error) {
	cacheName := ""
	if s.cacheJD {
		cacheName = s.ensureCache(ctx, jd)
	}

	prompt := buildPrompt(resume, jd, cacheName != "")
	s.log.Debug("gemini score request",
		zap.String("model", s.generator.Model()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.Preview(prompt)),
	)

	var raw string
	var err error
	if cacheName != "" {
		raw, err = s.generator.GenerateContentWithCache(ctx, prompt, cacheName)
	} else {
		raw, err = s.generator.GenerateContent(ctx, prompt)
	}
	if err != nil {
		return 0, err
	}

	score, reason, err := parseScore(raw)
	if err != nil {
		return 0, err
	}

	if score < 0 || score > 1 {
		s.log.Debug("clamping out of range score", zap.Float64("score", score))
		score = math.Min(1, math.Max(0, score))
	}

	s.log.Debug("gemini score response",
		zap.Float64("score", score),
		zap.String("reason", logger.TruncateForLog(reason, 120)),
	)

	return score, nil
}

func (s *Scorer) Close() error {
	return nil
}

// ensureCache uploads the JD once and memoizes the outcome, including
// failure: a JD that cannot be cached is scored uncached from then on.
func (s *Scorer) ensureCache(ctx context.Context, jd string) string {
	sum := sha256.Sum256([]byte(jd))
	key := hex.EncodeToString(sum[:])[:16]

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.cacheTried[key] {
		return s.cacheNames[key]
	}
	s.cacheTried[key] = true

	name, err := s.generator.EnsureJDCache(ctx, "jd-"+key[:8], jd)
	if err != nil {
		s.log.Warn("jd cache unavailable, scoring without cached context", zap.Error(err))
		return ""
	}

	s.cacheNames[key] = name
	return name
}

func buildPrompt(resume, jd string, cached bool) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job description:\n{{JD}}\n\nResume:\n{{RESUME}}\n\nJSON response:"
	}
	if cached {
		jd = "(provided in the cached context)"
	}
	prompt := strings.ReplaceAll(template, "{{JD}}", jd)
	return strings.ReplaceAll(prompt, "{{RESUME}}", resume)
}

func parseScore(raw string) (float64, string, error) {
	cleaned := extractJSON(strings.TrimSpace(raw))

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return 0, "", fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return 0, "", errors.New("gemini response has no numeric score")
	}

	return score, coerceString(data["reason"]), nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
