package pairs

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
)

// SplitCounts records how many examples landed in each subset.
type SplitCounts struct {
	Train      int `json:"train"`
	Validation int `json:"validation"`
	Test       int `json:"test"`
}

// Manifest records the provenance of a built pair set so a training run can
// be traced back to its inputs and sampling parameters.
type Manifest struct {
	RunID         string       `json:"run_id"`
	CreatedAt     time.Time    `json:"created_at"`
	Source        string       `json:"source"`
	Seed          int64        `json:"seed"`
	NegativeRatio int          `json:"negative_ratio"`
	MaxTokens     int          `json:"max_tokens"`
	Stats         Stats        `json:"stats"`
	Splits        *SplitCounts `json:"splits,omitempty"`
}

// NewManifest stamps a fresh run id and creation time over the build inputs.
func NewManifest(source string, opts Options, stats Stats) Manifest {
	opts = opts.withDefaults()
	return Manifest{
		RunID:         uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Source:        source,
		Seed:          opts.Seed,
		NegativeRatio: opts.NegativeRatio,
		MaxTokens:     opts.MaxTokens,
		Stats:         stats,
	}
}

// ToFile writes the manifest as indented JSON at path.
func (m Manifest) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
