// Package encoder scores resume/JD pairs through a fine-tuned cross encoder
// served by a model sidecar over HTTP. The sidecar owns tokenization and
// inference; this client loads a checkpoint into it and streams pairs.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/scoring"
	"github.com/rankworks/cv-ranker/internal/utils"
)

const (
	loadPath   = "/v1/models/load"
	scorePath  = "/v1/score"
	unloadPath = "/v1/models/unload"

	contentType = "application/json"

	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// Config locates the sidecar and the checkpoint it should serve.
type Config struct {
	// URL is the sidecar base address, e.g. http://127.0.0.1:8090.
	URL string
	// Checkpoint is the model directory the sidecar loads on startup.
	// Optional when the sidecar already has a model loaded.
	Checkpoint string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Metrics is the training summary stored next to a checkpoint.
type Metrics struct {
	Accuracy float64 `mapstructure:"accuracy"`
	F1       float64 `mapstructure:"f1"`
	Epoch    float64 `mapstructure:"epoch"`
}

// Scorer implements scoring.Scorer against the sidecar.
type Scorer struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	log        *zap.Logger
}

type scoreResponse struct {
	Score *float64 `mapstructure:"score"`
	Model string   `mapstructure:"model"`
}

// New checks the checkpoint, asks the sidecar to load it and returns a ready
// scorer. A missing checkpoint or an unreachable sidecar is reported as
// scoring.ErrUnavailable.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Scorer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("encoder sidecar url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	s := &Scorer{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        log,
	}

	if cfg.Checkpoint != "" {
		if _, err := os.Stat(cfg.Checkpoint); err != nil {
			return nil, fmt.Errorf("%w: checkpoint %q is not readable", scoring.ErrUnavailable, cfg.Checkpoint)
		}

		if metrics, err := readMetrics(cfg.Checkpoint); err == nil {
			log.Info("checkpoint metrics",
				zap.String("checkpoint", cfg.Checkpoint),
				zap.Float64("accuracy", metrics.Accuracy),
				zap.Float64("f1", metrics.F1))
		} else {
			log.Debug("checkpoint metrics not available", zap.Error(err))
		}

		if err := s.load(ctx, cfg.Checkpoint); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scorer) Score(ctx context.Context, resume, jd string) (float64, error) {
	payload := map[string]string{"resume": resume, "jd": jd}

	var data map[string]any
	if err := s.post(ctx, scorePath, payload, &data); err != nil {
		return 0, fmt.Errorf("scoring pair: %w", err)
	}

	var resp scoreResponse
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &resp,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return 0, err
	}
	if err := decoder.Decode(data); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}

	if resp.Score == nil {
		return 0, errors.New("score response has no score field")
	}

	score := *resp.Score
	if score < 0 || score > 1 {
		s.log.Debug("clamping out of range score", zap.Float64("score", score))
		score = math.Min(1, math.Max(0, score))
	}

	return score, nil
}

// Close asks the sidecar to unload the model. Unload failures are not worth
// surfacing at shutdown, so they are only logged.
func (s *Scorer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.doPost(ctx, unloadPath, []byte("{}"), nil); err != nil {
		s.log.Debug("unload request failed", zap.Error(err))
	}
	s.httpClient.CloseIdleConnections()

	return nil
}

func (s *Scorer) load(ctx context.Context, checkpoint string) error {
	if err := s.post(ctx, loadPath, map[string]string{"checkpoint": checkpoint}, nil); err != nil {
		return fmt.Errorf("%w: loading model: %v", scoring.ErrUnavailable, err)
	}

	s.log.Info("encoder model loaded", zap.String("checkpoint", checkpoint))
	return nil
}

func (s *Scorer) post(ctx context.Context, path string, payload any, target *map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err := s.doPost(ctx, path, body, target)
		if err == nil {
			return nil
		}

		lastErr = err
		if !retryableRequest(err) || attempt == s.maxRetries {
			break
		}

		s.log.Warn("retrying sidecar request",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if err := utils.WaitFor(ctx, s.retryDelay); err != nil {
			return err
		}
	}

	return lastErr
}

func (s *Scorer) doPost(ctx context.Context, path string, body []byte, target *map[string]any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	s.log.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &requestError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &requestError{err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &requestError{status: resp.StatusCode, err: fmt.Errorf("bad status: %s", resp.Status)}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse sidecar response: %w", err)
	}

	return nil
}

// requestError separates transport and server failures, which are worth a
// retry, from client errors, which are not.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

func retryableRequest(err error) bool {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status == 0 || reqErr.status >= http.StatusInternalServerError
	}
	return false
}

func readMetrics(checkpoint string) (*Metrics, error) {
	raw, err := os.ReadFile(filepath.Join(checkpoint, "metrics.json"))
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse metrics.json: %w", err)
	}

	var metrics Metrics
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &metrics,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode metrics.json: %w", err)
	}

	return &metrics, nil
}
