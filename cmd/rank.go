package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/logger"
	"github.com/rankworks/cv-ranker/internal/ranker"
	"github.com/rankworks/cv-ranker/internal/scoring"
	"github.com/rankworks/cv-ranker/internal/scoring/encoder"
	"github.com/rankworks/cv-ranker/internal/scoring/gemini"
	"github.com/rankworks/cv-ranker/internal/scoring/lexical"
	"github.com/rankworks/cv-ranker/internal/scrub"
	"github.com/rankworks/cv-ranker/internal/secrets"
)

const (
	PromptShowCandidate = "Show a candidate"
	PromptDumpToFile    = "Dump ranked list to file"
	PromptExit          = "Exit"
	PromptBack          = "back"
)

var errExit = errors.New("exit requested")

var rankPrompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptShowCandidate, PromptDumpToFile, PromptExit},
}

var rankCmd = &cobra.Command{
	Use:   "rank [resume files...]",
	Short: "Rank resume files against a job description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rank(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("jd", "", "job description text")
	rankCmd.Flags().String("jd-file", "", "file with the job description text")
	rankCmd.Flags().IntP("top", "k", 5, "how many candidates to return")
	rankCmd.Flags().StringP("output", "o", "", "write the ranked list to a JSON file")
	rankCmd.Flags().BoolP("interactive", "i", false, "inspect results in an interactive menu")
	rankCmd.Flags().String("provider", "", "scorer provider: encoder, gemini or lexical (overrides config)")
}

// rank is the main command for the cli.
func rank(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cv-ranker", zap.String("version", version))

	jd, err := loadJD(cmd)
	if err != nil {
		logger.Fatal("loading job description",
			zap.Error(err),
			zap.String("hint", "pass exactly one of --jd or --jd-file"),
		)
	}

	candidates, err := loadCandidates(args, logger)
	if err != nil {
		logger.Fatal("loading resume files", zap.Error(err))
	}

	scorer, err := newScorer(ctx, cmd, config, logger)
	if err != nil {
		if errors.Is(err, scoring.ErrUnavailable) {
			logger.Fatal("scorer backend unavailable", zap.Error(err))
		}
		logger.Fatal("building scorer", zap.Error(err))
	}
	defer scorer.Close()

	k, _ := cmd.Flags().GetInt("top")

	list, err := ranker.New(scorer, scrub.New(), rankerConfig(config), logger).Rank(ctx, jd, candidates, k)
	if err != nil {
		logger.Fatal("ranking failed", zap.Error(err))
	}

	printRanked(list)

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := list.ToFile(output); err != nil {
			logger.Fatal("writing ranked list", zap.Error(err))
		}
		logger.Info("dumping result to file", zap.String("filename", output))
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := interact(list, logger); err != nil && !errors.Is(err, errExit) {
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func loadJD(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("jd")
	file, _ := cmd.Flags().GetString("jd-file")

	switch {
	case text != "" && file != "":
		return "", errors.New("--jd and --jd-file are mutually exclusive")
	case text != "":
		return text, nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading job description: %w", err)
		}
		jd := strings.TrimSpace(string(raw))
		if jd == "" {
			return "", fmt.Errorf("job description file %q is empty", file)
		}
		return jd, nil
	default:
		return "", errors.New("a job description is required")
	}
}

func loadCandidates(paths []string, log *zap.Logger) ([]ranker.Candidate, error) {
	candidates := make([]ranker.Candidate, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading resume %q: %w", path, err)
		}

		candidates = append(candidates, ranker.Candidate{
			SourceID: filepath.Base(path),
			Text:     strings.ToValidUTF8(string(raw), ""),
		})
	}

	log.Info("loaded resume files", zap.Int("count", len(candidates)))
	return candidates, nil
}

func printRanked(list *ranker.RankedList) {
	for i, item := range list.Items {
		fmt.Printf("%2d  %.4f  %s  %s\n", i+1, item.Score, item.SourceID, logger.Preview(item.Text))
	}
}

func interact(list *ranker.RankedList, log *zap.Logger) error {
	for {
		_, action, err := rankPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptShowCandidate:
			if err := showCandidate(list); err != nil {
				return err
			}
		case PromptDumpToFile:
			filename, err := list.DumpToTmpFile()
			if err != nil {
				return fmt.Errorf("dump results to file: %w", err)
			}
			log.Info("dumping result to file", zap.String("filename", filename))
		case PromptExit:
			log.Info("exiting", zap.String("reason", "got exit from prompt"))
			return errExit
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}

func showCandidate(list *ranker.RankedList) error {
	items := make([]string, 0, list.Len())
	for i, item := range list.Items {
		items = append(items, fmt.Sprintf("%d %s / %.4f", i+1, item.SourceID, item.Score))
	}

	candidatePrompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: append(items, PromptBack),
	}

	idx, selected, err := candidatePrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	fmt.Println(list.Items[idx].Text)
	return nil
}

func newScorer(ctx context.Context, cmd *cobra.Command, config *Config, log *zap.Logger) (scoring.Scorer, error) {
	provider, _ := cmd.Flags().GetString("provider")
	if provider == "" && config != nil && config.Scorer != nil {
		provider = config.Scorer.Provider
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		provider = "encoder"
	}

	switch provider {
	case "encoder":
		return newEncoderScorer(ctx, config, log)
	case "gemini":
		return newGeminiScorer(ctx, config, log)
	case "lexical":
		return lexical.New(logger.WithCommonFields(log, "lexical", "keyword-overlap")), nil
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", provider)
	}
}

func newEncoderScorer(ctx context.Context, config *Config, log *zap.Logger) (scoring.Scorer, error) {
	cfg := encoder.Config{}
	if config != nil && config.Scorer != nil && config.Scorer.Encoder != nil {
		ec := config.Scorer.Encoder
		cfg = encoder.Config{
			URL:        ec.URL,
			Checkpoint: ec.Checkpoint,
			Timeout:    ec.Timeout,
			MaxRetries: ec.MaxRetries,
		}
	}
	if cfg.URL == "" {
		cfg.URL = viper.GetString("scorer.encoder.url")
	}

	model := filepath.Base(cfg.Checkpoint)
	if cfg.Checkpoint == "" {
		model = "preloaded"
	}

	return encoder.New(ctx, cfg, logger.WithCommonFields(log, "encoder", model))
}

func newGeminiScorer(ctx context.Context, config *Config, log *zap.Logger) (scoring.Scorer, error) {
	gc := &GeminiConfig{}
	if config != nil && config.Scorer != nil && config.Scorer.Gemini != nil {
		gc = config.Scorer.Gemini
	}

	keyFile := strings.TrimSpace(gc.APIKeyFile)
	if keyFile == "" {
		keyFile = strings.TrimSpace(viper.GetString("scorer.gemini.api-key-file"))
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: keyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set scorer.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLog := logger.WithCommonFields(log, "gemini", gc.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, gc.Model, genLog)
	if err != nil {
		return nil, err
	}

	return gemini.NewScorer(generator, genLog, gc.CacheJD), nil
}

func rankerConfig(config *Config) ranker.Config {
	if config == nil || config.Ranker == nil {
		return ranker.Config{}
	}
	return ranker.Config{
		Workers:      config.Ranker.Workers,
		MaxTokens:    config.Ranker.MaxTokens,
		ScoreTimeout: config.Ranker.ScoreTimeout,
	}
}
