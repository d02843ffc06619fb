package ranker

import (
	"encoding/json"
	"io"
	"os"
)

// ScoredCandidate is a ranked entry. Text is the scrubbed resume, kept so
// the output file is reviewable without the raw source documents.
type ScoredCandidate struct {
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// RankedList is the ordered result of a rank call, best match first.
type RankedList struct {
	Items []*ScoredCandidate `json:"items"`
}

func (r *RankedList) Len() int {
	return len(r.Items)
}

// WriteJSON writes the list as indented JSON.
func (r *RankedList) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ToFile writes the list as a JSON file at path.
func (r *RankedList) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	return r.WriteJSON(file)
}

// DumpToTmpFile writes the list to a temporary JSON file and returns its
// path.
func (r *RankedList) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "ranked_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := r.WriteJSON(file); err != nil {
		return "", err
	}
	return file.Name(), nil
}
