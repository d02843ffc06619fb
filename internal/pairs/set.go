package pairs

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
)

// Example is one labeled resume/JD pair in the training set. Resume text is
// always in scrubbed form; JD text is carried as-is.
type Example struct {
	ResumeID string `json:"resume_id"`
	Resume   string `json:"resume"`
	JDID     string `json:"jd_id"`
	JD       string `json:"jd"`
	Label    int    `json:"label"`
}

// Stats summarizes a build: how many input records were seen, how many were
// dropped or collapsed before pairing, and how the emitted pairs break down.
type Stats struct {
	Records               int `json:"records"`
	DroppedEmpty          int `json:"dropped_empty"`
	DuplicateAssociations int `json:"duplicate_associations"`
	Positives             int `json:"positives"`
	Negatives             int `json:"negatives"`
	ExhaustedSlots        int `json:"exhausted_slots"`
}

// Set is a built collection of labeled examples.
type Set struct {
	Examples []Example
	Stats    Stats
}

func (s *Set) Len() int {
	return len(s.Examples)
}

// WriteJSONL writes the set as JSON lines, one example per line.
func (s *Set) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range s.Examples {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// ToFile writes the set as a JSONL file at path.
func (s *Set) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	return s.WriteJSONL(file)
}

// Split partitions the set into train, validation and test subsets. The split
// is stratified by label so each subset keeps roughly the source positive to
// negative ratio, and is shuffled with the given seed so the same inputs
// always produce the same partition. The test subset receives whatever the
// two fractions leave over.
func (s *Set) Split(trainFrac, valFrac float64, seed int64) (train, val, test *Set, err error) {
	if trainFrac <= 0 || valFrac < 0 || trainFrac+valFrac >= 1 {
		return nil, nil, nil, fmt.Errorf("invalid split fractions: train=%v val=%v", trainFrac, valFrac)
	}

	rng := rand.New(rand.NewSource(seed))

	byLabel := make(map[int][]Example)
	for _, e := range s.Examples {
		byLabel[e.Label] = append(byLabel[e.Label], e)
	}

	train, val, test = &Set{}, &Set{}, &Set{}
	for _, label := range []int{0, 1} {
		group := byLabel[label]
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})

		nTrain := int(float64(len(group)) * trainFrac)
		nVal := int(float64(len(group)) * valFrac)

		train.Examples = append(train.Examples, group[:nTrain]...)
		val.Examples = append(val.Examples, group[nTrain:nTrain+nVal]...)
		test.Examples = append(test.Examples, group[nTrain+nVal:]...)
	}

	for _, sub := range []*Set{train, val, test} {
		rng.Shuffle(len(sub.Examples), func(i, j int) {
			sub.Examples[i], sub.Examples[j] = sub.Examples[j], sub.Examples[i]
		})
		for _, e := range sub.Examples {
			if e.Label == 1 {
				sub.Stats.Positives++
			} else {
				sub.Stats.Negatives++
			}
		}
	}

	return train, val, test, nil
}
