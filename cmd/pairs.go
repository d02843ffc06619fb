package cmd

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/dataset"
	"github.com/rankworks/cv-ranker/internal/logger"
	"github.com/rankworks/cv-ranker/internal/pairs"
	"github.com/rankworks/cv-ranker/internal/scrub"
)

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "Build a labeled training pair set from a resume/JD table",
	Run: func(cmd *cobra.Command, _ []string) {
		buildPairs(cmd)
	},
}

func init() {
	rootCmd.AddCommand(pairsCmd)

	pairsCmd.Flags().String("input", "", "CSV file with resume and job description columns")
	pairsCmd.Flags().String("output-dir", ".", "directory for the pair files and the manifest")
	pairsCmd.Flags().Int("negative-ratio", pairs.DefaultNegativeRatio, "negatives sampled per positive")
	pairsCmd.Flags().Int64("seed", pairs.DefaultSeed, "seed for the negative sampler and the split shuffle")
	pairsCmd.Flags().Int("max-retries", pairs.DefaultMaxRetries, "rejection attempts per negative slot")
	pairsCmd.Flags().Int("max-tokens", pairs.DefaultMaxTokens, "head-truncation token budget per text")
	pairsCmd.Flags().String("split", "", `train/val/test fractions, e.g. "0.8,0.1,0.1" (omitted: single file)`)
	pairsCmd.Flags().String("resume-column", "", "resume column name in the input CSV")
	pairsCmd.Flags().String("jd-column", "", "job description column name in the input CSV")

	if err := pairsCmd.MarkFlagRequired("input"); err != nil {
		log.Fatalf("marking input flag required: %v", err)
	}
}

func buildPairs(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	input, _ := cmd.Flags().GetString("input")

	records, err := dataset.Load(input, datasetOptions(cmd, config), logger)
	if err != nil {
		logger.Fatal("loading the dataset", zap.Error(err))
	}

	opts := pairsOptions(cmd, config)

	set, err := pairs.Build(records, scrub.New(), opts, logger)
	if err != nil {
		logger.Fatal("building pairs", zap.Error(err))
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	manifest := pairs.NewManifest(input, opts, set.Stats)

	if split, _ := cmd.Flags().GetString("split"); split != "" {
		trainFrac, valFrac, err := parseSplit(split)
		if err != nil {
			logger.Fatal("parsing split fractions", zap.Error(err))
		}

		train, val, test, err := set.Split(trainFrac, valFrac, opts.Seed)
		if err != nil {
			logger.Fatal("splitting the pair set", zap.Error(err))
		}

		for name, sub := range map[string]*pairs.Set{
			"pairs_train.jsonl": train,
			"pairs_val.jsonl":   val,
			"pairs_test.jsonl":  test,
		} {
			if err := sub.ToFile(filepath.Join(outputDir, name)); err != nil {
				logger.Fatal("writing the pair file", zap.String("filename", name), zap.Error(err))
			}
		}

		manifest.Splits = &pairs.SplitCounts{
			Train:      train.Len(),
			Validation: val.Len(),
			Test:       test.Len(),
		}
		logger.Info("pair files written",
			zap.String("dir", outputDir),
			zap.Int("train", train.Len()),
			zap.Int("val", val.Len()),
			zap.Int("test", test.Len()),
		)
	} else {
		if err := set.ToFile(filepath.Join(outputDir, "pairs.jsonl")); err != nil {
			logger.Fatal("writing the pair file", zap.Error(err))
		}
		logger.Info("pair file written", zap.String("dir", outputDir), zap.Int("examples", set.Len()))
	}

	manifestPath := filepath.Join(outputDir, "manifest.json")
	if err := manifest.ToFile(manifestPath); err != nil {
		logger.Fatal("writing the manifest", zap.Error(err))
	}

	logger.Info("pair build finished",
		zap.String("run_id", manifest.RunID),
		zap.String("manifest", manifestPath),
		zap.Int("exhausted_slots", set.Stats.ExhaustedSlots),
	)
}

func datasetOptions(cmd *cobra.Command, config *Config) dataset.Options {
	opts := dataset.Options{}
	if config != nil && config.Dataset != nil {
		opts.ResumeColumn = config.Dataset.ResumeColumn
		opts.JDColumn = config.Dataset.JDColumn
	}
	if col, _ := cmd.Flags().GetString("resume-column"); col != "" {
		opts.ResumeColumn = col
	}
	if col, _ := cmd.Flags().GetString("jd-column"); col != "" {
		opts.JDColumn = col
	}
	return opts
}

func pairsOptions(cmd *cobra.Command, config *Config) pairs.Options {
	opts := pairs.Options{
		NegativeRatio: pairs.DefaultNegativeRatio,
		Seed:          pairs.DefaultSeed,
		MaxRetries:    pairs.DefaultMaxRetries,
		MaxTokens:     pairs.DefaultMaxTokens,
	}
	if config != nil && config.Pairs != nil {
		opts = pairs.Options{
			NegativeRatio: config.Pairs.NegativeRatio,
			Seed:          config.Pairs.Seed,
			MaxRetries:    config.Pairs.MaxRetries,
			MaxTokens:     config.Pairs.MaxTokens,
		}
	}

	// A flag set on the command line wins over the config file.
	if cmd.Flags().Changed("negative-ratio") {
		opts.NegativeRatio, _ = cmd.Flags().GetInt("negative-ratio")
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("max-retries") {
		opts.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
	}
	if cmd.Flags().Changed("max-tokens") {
		opts.MaxTokens, _ = cmd.Flags().GetInt("max-tokens")
	}

	return opts
}

func parseSplit(s string) (trainFrac, valFrac float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("split must have three comma separated fractions, got %q", s)
	}

	fracs := make([]float64, 3)
	sum := 0.0
	for i, p := range parts {
		fracs[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing split fraction %q: %w", p, err)
		}
		sum += fracs[i]
	}
	if sum < 0.999 || sum > 1.001 {
		return 0, 0, fmt.Errorf("split fractions must sum to 1, got %v", sum)
	}

	return fracs[0], fracs[1], nil
}
