// Package scoring defines the relevance scorer contract shared by all
// backends. The ranker treats a scorer as opaque: text pair in, score out.
package scoring

import (
	"context"
	"errors"
)

// ErrUnavailable marks a scorer whose backing model cannot be loaded or
// reached at all. Callers treat it as fatal instead of retrying per pair.
var ErrUnavailable = errors.New("scorer unavailable")

// Scorer rates how well a resume matches a job description on a [0, 1]
// scale, higher meaning a better match. Implementations must be safe for
// concurrent use; Close releases any backing model resources.
type Scorer interface {
	Score(ctx context.Context, resume, jd string) (float64, error)
	Close() error
}
