// Package lexical scores resume/JD pairs by keyword coverage. It needs no
// model and serves as the offline fallback and smoke-test backend.
package lexical

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// stopWords filters common English words that add noise to keyword matching.
var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "high": true,
	"good": true, "able": true, "get": true, "set": true, "such": true,
}

// Scorer rates a pair by the share of JD keywords the resume covers.
type Scorer struct {
	log *zap.Logger

	mu   sync.Mutex
	jdKW map[string]map[string]bool
}

func New(log *zap.Logger) *Scorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scorer{log: log, jdKW: make(map[string]map[string]bool)}
}

func (s *Scorer) Score(_ context.Context, resume, jd string) (float64, error) {
	jdKW := s.jdKeywords(jd)
	if len(jdKW) == 0 {
		return 0, nil
	}

	resumeKW := keywords(resume)
	matched := 0
	for kw := range jdKW {
		if resumeKW[kw] {
			matched++
		}
	}

	score := float64(matched) / float64(len(jdKW))
	s.log.Debug("keyword coverage",
		zap.Int("matched", matched),
		zap.Int("jd_keywords", len(jdKW)),
		zap.Float64("score", score))

	return score, nil
}

func (s *Scorer) Close() error {
	return nil
}

// jdKeywords caches JD keyword sets, since ranking scores many resumes
// against the same description. Cached sets are read-only once published.
func (s *Scorer) jdKeywords(jd string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kw, ok := s.jdKW[jd]; ok {
		return kw
	}
	kw := keywords(jd)
	s.jdKW[jd] = kw
	return kw
}

// keywords tokenizes text into lowercase keywords of three or more runes,
// skipping stop words. Treats + # . as word characters so terms like "c++"
// and "node.js" survive intact.
func keywords(text string) map[string]bool {
	kw := make(map[string]bool)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= 3 && !stopWords[w] {
			kw[w] = true
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return kw
}
