package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/dataset"
	"github.com/rankworks/cv-ranker/internal/logger"
	"github.com/rankworks/cv-ranker/internal/scrub"
)

var scrubCmd = &cobra.Command{
	Use:   "scrub",
	Short: "Redact PII from the resume column of a CSV dataset",
	Run: func(cmd *cobra.Command, _ []string) {
		scrubDataset(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scrubCmd)

	scrubCmd.Flags().String("input", "", "CSV file to anonymize")
	scrubCmd.Flags().String("output", "", "anonymized CSV file to write")
	scrubCmd.Flags().String("column", "Resume", "column holding the resume text")
	scrubCmd.Flags().String("report", "", "write a per-row redaction count report to this JSON file")

	for _, flag := range []string{"input", "output"} {
		if err := scrubCmd.MarkFlagRequired(flag); err != nil {
			log.Fatalf("marking %s flag required: %v", flag, err)
		}
	}
}

// scrubDataset rewrites only the resume column. Every other column passes
// through untouched, so labels and ids survive for pair building. The report
// carries redaction counts per class, never the redacted values themselves.
func scrubDataset(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	column, _ := cmd.Flags().GetString("column")
	reportPath, _ := cmd.Flags().GetString("report")

	report, rows, err := scrubCSV(input, output, column, logger)
	if err != nil {
		logger.Fatal("scrubbing the dataset", zap.Error(err))
	}

	logger.Info("dataset scrubbed",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("rows", rows),
	)

	if reportPath == "" {
		return
	}

	file, err := os.OpenFile(reportPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		logger.Fatal("creating the report file", zap.Error(err))
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("writing the report", zap.Error(err))
	}
	logger.Info("redaction report written", zap.String("filename", reportPath))
}

func scrubCSV(input, output, column string, log *zap.Logger) (map[string]scrub.Report, int, error) {
	in, err := os.Open(input)
	if err != nil {
		return nil, 0, fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(out)

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading header: %w", err)
	}

	idx := -1
	for i, name := range header {
		if name == column {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, 0, fmt.Errorf("column %q not found in %s", column, input)
	}

	if err := writer.Write(header); err != nil {
		return nil, 0, err
	}

	scrubber := scrub.New()
	report := make(map[string]scrub.Report)
	rows := 0

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rows, fmt.Errorf("reading row %d: %w", rows+2, err)
		}
		rows++

		if len(row) <= idx {
			log.Warn("row shorter than header, passing through", zap.Int("row", rows))
			if err := writer.Write(row); err != nil {
				return nil, rows, err
			}
			continue
		}

		id := dataset.SourceID(row[idx])
		clean, counts := scrubber.Audit(row[idx])
		row[idx] = clean
		if len(counts) > 0 {
			report[id] = counts
		}

		if err := writer.Write(row); err != nil {
			return nil, rows, err
		}
	}

	writer.Flush()
	return report, rows, writer.Error()
}
