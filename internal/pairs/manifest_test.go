package pairs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestNewManifest(t *testing.T) {
	t.Parallel()

	m := NewManifest("train.csv", Options{NegativeRatio: 2, Seed: 42}, Stats{Positives: 6, Negatives: 12})

	if _, err := uuid.Parse(m.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", m.RunID, err)
	}
	if m.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
	if m.Source != "train.csv" || m.Seed != 42 || m.NegativeRatio != 2 {
		t.Errorf("manifest carries wrong build inputs: %+v", m)
	}
	if m.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want default %d", m.MaxTokens, DefaultMaxTokens)
	}
}

func TestManifestToFile(t *testing.T) {
	t.Parallel()

	m := NewManifest("train.csv", Options{NegativeRatio: 1, Seed: 7}, Stats{Positives: 3, Negatives: 3})
	path := filepath.Join(t.TempDir(), "manifest.json")

	if err := m.ToFile(path); err != nil {
		t.Fatalf("ToFile() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}

	var got Manifest
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if got.RunID != m.RunID || got.Stats.Positives != 3 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Splits != nil {
		t.Errorf("Splits should be omitted when unset, got %+v", got.Splits)
	}
}
