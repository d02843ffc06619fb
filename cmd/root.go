package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cv-ranker"
)

type Config struct {
	Dataset *DatasetConfig `mapstructure:"dataset"`
	Pairs   *PairsConfig   `mapstructure:"pairs"`
	Ranker  *RankerConfig  `mapstructure:"ranker"`
	Scorer  *ScorerConfig  `mapstructure:"scorer"`
}

type DatasetConfig struct {
	ResumeColumn string `mapstructure:"resume-column"`
	JDColumn     string `mapstructure:"jd-column"`
}

type PairsConfig struct {
	NegativeRatio int   `mapstructure:"negative-ratio"`
	Seed          int64 `mapstructure:"seed"`
	MaxRetries    int   `mapstructure:"max-retries"`
	MaxTokens     int   `mapstructure:"max-tokens"`
}

type RankerConfig struct {
	Workers      int           `mapstructure:"workers"`
	MaxTokens    int           `mapstructure:"max-tokens"`
	ScoreTimeout time.Duration `mapstructure:"score-timeout"`
}

type ScorerConfig struct {
	Provider string         `mapstructure:"provider"`
	Encoder  *EncoderConfig `mapstructure:"encoder"`
	Gemini   *GeminiConfig  `mapstructure:"gemini"`
}

type EncoderConfig struct {
	URL        string        `mapstructure:"url"`
	Checkpoint string        `mapstructure:"checkpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max-retries"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	CacheJD    bool   `mapstructure:"cache-jd"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker scrubs resumes, builds training pairs and ranks candidates against a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("scorer.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("scorer.encoder.url", "CV_RANKER_SCORER_URL"); err != nil {
		log.Fatalf("binding CV_RANKER_SCORER_URL environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional: every setting has a flag or a default.
	// An explicitly requested file must still parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
