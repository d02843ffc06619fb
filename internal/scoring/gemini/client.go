package gemini

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/rankworks/cv-ranker/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// models and caches cover the slice of the genai SDK the generator touches,
// so tests can stand in for the live API.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type caches interface {
	Create(ctx context.Context, model string, config *genai.CreateCachedContentConfig) (*genai.CachedContent, error)
}

// Generator wraps the Google GenAI client with prompt-based generation,
// bounded retries and JD context caching.
type Generator struct {
	models     models
	caches     caches
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	cacheMu sync.RWMutex
	jdCache map[string]string
}

// NewGenerator creates a Generator backed by the Gemini API.
func NewGenerator(ctx context.Context, apiKey, model string, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Generator{
		models:     client.Models,
		caches:     client.Caches,
		model:      model,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		logger:     log,
	}, nil
}

// GenerateContent sends the prompt to Gemini and returns the first textual
// response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt, nil)
}

// GenerateContentWithCache sends the prompt together with a cached content
// reference. An empty cache name falls back to plain generation.
func (g *Generator) GenerateContentWithCache(ctx context.Context, prompt, cacheName string) (string, error) {
	cacheName = strings.TrimSpace(cacheName)
	if cacheName == "" {
		return g.generate(ctx, prompt, nil)
	}
	return g.generate(ctx, prompt, &genai.GenerateContentConfig{CachedContent: cacheName})
}

// EnsureJDCache stores the job description in a Gemini cached content
// resource and returns its name. The same payload is only uploaded once.
func (g *Generator) EnsureJDCache(ctx context.Context, displayName, payload string) (string, error) {
	if g == nil || g.caches == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", errors.New("jd payload must not be empty")
	}

	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(payload)))

	g.cacheMu.RLock()
	name, ok := g.jdCache[hash]
	g.cacheMu.RUnlock()
	if ok && name != "" {
		return name, nil
	}

	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	if name, ok := g.jdCache[hash]; ok && name != "" {
		return name, nil
	}

	if displayName = strings.TrimSpace(displayName); displayName == "" {
		displayName = "jd-" + hash[:12]
	}

	cfg := &genai.CreateCachedContentConfig{
		DisplayName: displayName,
		TTL:         24 * time.Hour,
		Contents: []*genai.Content{{
			Role: genai.RoleUser,
			Parts: []*genai.Part{{
				Text: payload,
			}},
		}},
	}

	cached, err := g.caches.Create(ctx, g.model, cfg)
	if err != nil {
		return "", fmt.Errorf("create jd cache: %w", err)
	}

	name = strings.TrimSpace(cached.Name)
	if name == "" {
		return "", errors.New("gemini api returned empty cache name")
	}

	if g.jdCache == nil {
		g.jdCache = make(map[string]string)
	}
	g.jdCache[hash] = name

	return name, nil
}

func (g *Generator) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err == nil {
			output := flattenResponse(resp)
			if output == "" {
				return "", errors.New("gemini api returned empty response")
			}
			return output, nil
		}

		lastErr = err
		if !retryable(err) || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("retrying gemini request",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", g.maxRetries),
			zap.Error(err))
		if err := utils.WaitFor(ctx, g.retryDelay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

// retryable reports whether the API error is transient. Rate limits and
// server side failures are worth another attempt, everything else is not.
func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}

func flattenResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
