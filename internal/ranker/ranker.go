// Package ranker orders resume candidates by scored relevance to a single
// job description. Candidates are scrubbed before any scorer sees them; the
// job description is passed through as provided.
package ranker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rankworks/cv-ranker/internal/logger"
	"github.com/rankworks/cv-ranker/internal/scoring"
	"github.com/rankworks/cv-ranker/internal/scrub"
	"github.com/rankworks/cv-ranker/internal/utils"
)

// ErrInvalidArgument guards rank calls with no candidates or a non-positive k.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	DefaultWorkers      = 4
	DefaultMaxTokens    = 1536
	DefaultScoreTimeout = 60 * time.Second
)

// Candidate is one resume competing for a ranking slot.
type Candidate struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
}

// Config tunes ranking concurrency and per pair limits.
type Config struct {
	// Workers caps how many candidates are scored at once.
	Workers int
	// MaxTokens is the whitespace token budget applied to both texts.
	MaxTokens int
	// ScoreTimeout bounds a single scorer call.
	ScoreTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.ScoreTimeout <= 0 {
		c.ScoreTimeout = DefaultScoreTimeout
	}
	return c
}

// Ranker scrubs candidates and scores them with a pluggable scorer.
type Ranker struct {
	scorer   scoring.Scorer
	scrubber *scrub.Scrubber
	cfg      Config
	log      *zap.Logger
}

func New(scorer scoring.Scorer, scrubber *scrub.Scrubber, cfg Config, log *zap.Logger) *Ranker {
	if scrubber == nil {
		scrubber = scrub.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ranker{
		scorer:   scorer,
		scrubber: scrubber,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// Rank scrubs every candidate, scores it against the job description and
// returns the top k by score, highest first. Ties keep their input order.
// A single scoring failure or timeout fails the whole call.
func (r *Ranker) Rank(ctx context.Context, jd string, candidates []Candidate, k int) (*RankedList, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrInvalidArgument)
	}

	jdText := utils.HeadTokens(jd, r.cfg.MaxTokens)
	scored := make([]*ScoredCandidate, len(candidates))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.cfg.Workers)

	for i, candidate := range candidates {
		group.Go(func() error {
			clean := r.scrubber.Scrub(candidate.Text)

			scoreCtx, cancel := context.WithTimeout(groupCtx, r.cfg.ScoreTimeout)
			defer cancel()

			score, err := r.scorer.Score(scoreCtx, utils.HeadTokens(clean, r.cfg.MaxTokens), jdText)
			if err != nil {
				return fmt.Errorf("scoring %s: %w", candidate.SourceID, err)
			}

			r.log.Debug("candidate scored",
				zap.String("source_id", candidate.SourceID),
				zap.Float64("score", score),
				zap.String("preview", logger.Preview(clean)))

			scored[i] = &ScoredCandidate{
				SourceID: candidate.SourceID,
				Score:    score,
				Text:     clean,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}

	r.log.Info("candidates ranked",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", k))

	return &RankedList{Items: scored[:k]}, nil
}
