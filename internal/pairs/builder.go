// Package pairs builds labeled resume/JD training pairs from dataset records.
//
// Positives come straight from the dataset associations. Negatives are drawn
// per positive from the pool of other job descriptions with a seeded uniform
// sampler, rejecting any JD the resume is actually associated with.
package pairs

import (
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/dataset"
	"github.com/rankworks/cv-ranker/internal/scrub"
	"github.com/rankworks/cv-ranker/internal/utils"
)

const (
	DefaultNegativeRatio = 1
	DefaultSeed          = 42
	DefaultMaxRetries    = 10
	DefaultMaxTokens     = 1536
)

// Options controls pair construction.
type Options struct {
	// NegativeRatio is the number of negatives sampled per positive.
	// Zero builds a positives-only set.
	NegativeRatio int
	// Seed feeds the negative sampler so builds are reproducible.
	Seed int64
	// MaxRetries bounds the rejection attempts per negative slot.
	MaxRetries int
	// MaxTokens is the whitespace token budget for resume and JD texts.
	MaxTokens int
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

type association struct {
	resumeID string
	resume   string
	jdID     string
	jd       string
}

type poolJD struct {
	id   string
	text string
}

func assocKey(resume, jd string) string {
	return resume + "\x1f" + jd
}

// Build scrubs every record once, drops records left empty, collapses
// duplicate associations and emits the labeled pair set. Negative slots that
// cannot be filled within the retry budget are skipped and counted, never
// fatal. A negative ratio below zero is rejected.
func Build(records []dataset.Record, scrubber *scrub.Scrubber, opts Options, log *zap.Logger) (*Set, error) {
	if opts.NegativeRatio < 0 {
		return nil, fmt.Errorf("negative ratio must be >= 0, got %d", opts.NegativeRatio)
	}
	opts = opts.withDefaults()
	if scrubber == nil {
		scrubber = scrub.New()
	}
	if log == nil {
		log = zap.NewNop()
	}

	stats := Stats{Records: len(records)}

	scrubbed := make(map[string]string)
	seen := make(map[string]bool)
	inPool := make(map[string]bool)

	var kept []association
	var pool []poolJD

	for _, rec := range records {
		jd := strings.TrimSpace(rec.JD)
		if jd != "" && !inPool[jd] {
			inPool[jd] = true
			pool = append(pool, poolJD{id: rec.JDID, text: jd})
		}

		clean, ok := scrubbed[rec.Resume]
		if !ok {
			clean = strings.TrimSpace(scrubber.Scrub(rec.Resume))
			scrubbed[rec.Resume] = clean
		}
		if clean == "" || jd == "" {
			stats.DroppedEmpty++
			log.Debug("dropping record with empty text", zap.String("resume_id", rec.SourceID))
			continue
		}

		key := assocKey(clean, jd)
		if seen[key] {
			stats.DuplicateAssociations++
			continue
		}
		seen[key] = true

		kept = append(kept, association{
			resumeID: rec.SourceID,
			resume:   clean,
			jdID:     rec.JDID,
			jd:       jd,
		})
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	out := make([]Example, 0, len(kept)*(1+opts.NegativeRatio))

	for _, a := range kept {
		out = append(out, Example{
			ResumeID: a.resumeID,
			Resume:   utils.HeadTokens(a.resume, opts.MaxTokens),
			JDID:     a.jdID,
			JD:       utils.HeadTokens(a.jd, opts.MaxTokens),
			Label:    1,
		})
		stats.Positives++

		if opts.NegativeRatio == 0 || len(pool) < 2 {
			continue
		}

		used := make(map[int]bool)
		for slot := 0; slot < opts.NegativeRatio; slot++ {
			found := false
			for attempt := 0; attempt < opts.MaxRetries; attempt++ {
				j := rng.Intn(len(pool))
				if used[j] || seen[assocKey(a.resume, pool[j].text)] {
					continue
				}
				used[j] = true
				out = append(out, Example{
					ResumeID: a.resumeID,
					Resume:   utils.HeadTokens(a.resume, opts.MaxTokens),
					JDID:     pool[j].id,
					JD:       utils.HeadTokens(pool[j].text, opts.MaxTokens),
					Label:    0,
				})
				stats.Negatives++
				found = true
				break
			}
			if !found {
				stats.ExhaustedSlots++
				log.Warn("negative sampling exhausted",
					zap.String("resume_id", a.resumeID),
					zap.Int("slot", slot),
					zap.Int("retries", opts.MaxRetries))
			}
		}
	}

	log.Info("pairs built",
		zap.Int("records", stats.Records),
		zap.Int("positives", stats.Positives),
		zap.Int("negatives", stats.Negatives),
		zap.Int("dropped_empty", stats.DroppedEmpty),
		zap.Int("duplicates", stats.DuplicateAssociations),
		zap.Int("exhausted_slots", stats.ExhaustedSlots))

	return &Set{Examples: out, Stats: stats}, nil
}
