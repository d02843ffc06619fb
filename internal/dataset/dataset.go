// Package dataset loads the flat résumé/JD table that pair construction
// consumes. The table is a headered CSV with one résumé per row and the text
// of its associated job description (often just a category label) in another
// column.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultResumeColumn matches the column name of the public résumé
	// datasets this tool was built around.
	DefaultResumeColumn = "Resume"
	// DefaultJDColumn holds the matching job description or category text.
	DefaultJDColumn = "Category"
)

// Record is one résumé/JD association from the source table. Resume carries
// the raw, unscrubbed text; scrubbing happens exactly once downstream.
type Record struct {
	SourceID string
	Resume   string
	JD       string
	JDID     string
}

// Options selects which table columns hold the résumé and JD text.
type Options struct {
	ResumeColumn string
	JDColumn     string
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.ResumeColumn) == "" {
		o.ResumeColumn = DefaultResumeColumn
	}
	if strings.TrimSpace(o.JDColumn) == "" {
		o.JDColumn = DefaultJDColumn
	}
	return o
}

// Load reads every row of the CSV table at path. Rows too short to carry
// both selected columns are skipped with a warning. Empty texts are kept;
// excluding them is a pair-construction decision, not a loading one.
func Load(path string, opts Options, log *zap.Logger) ([]Record, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %q: %w", path, err)
	}

	resumeIdx, err := columnIndex(header, opts.ResumeColumn)
	if err != nil {
		return nil, err
	}
	jdIdx, err := columnIndex(header, opts.JDColumn)
	if err != nil {
		return nil, err
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rows of %q: %w", path, err)
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		if resumeIdx >= len(row) || jdIdx >= len(row) {
			log.Warn("skipping short row",
				zap.Int("row", i+2),
				zap.Int("fields", len(row)),
			)
			continue
		}

		resume := strings.TrimSpace(row[resumeIdx])
		jd := strings.TrimSpace(row[jdIdx])
		records = append(records, Record{
			SourceID: SourceID(resume),
			Resume:   resume,
			JD:       jd,
			JDID:     JDID(jd),
		})
	}

	return records, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in header %v", name, header)
}
