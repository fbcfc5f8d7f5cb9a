package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Schedule   string        `yaml:"schedule"`
	RunOnStart bool          `yaml:"run_on_start"`
	Data       DataConfig    `yaml:"data"`
	Fetch      FetchConfig   `yaml:"fetch"`
	LLM        LLMConfig     `yaml:"llm"`
	Review     ReviewConfig  `yaml:"review"`
	Summary    SummaryConfig `yaml:"summary"`
}

// DataConfig fixes the on-disk layout. Other tooling depends on these paths,
// so they are configuration, not constants.
type DataConfig struct {
	RawDir       string `yaml:"raw_dir"`
	ScoredDir    string `yaml:"scored_dir"`
	SummaryDir   string `yaml:"summary_dir"`
	FeedbackDir  string `yaml:"feedback_dir"`
	Instructions string `yaml:"instructions"`
}

// FetchConfig parameterizes the GDELT geo query.
type FetchConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Query          string `yaml:"query"`
	Mode           string `yaml:"mode"`
	Timespan       string `yaml:"timespan"`
	Format         string `yaml:"format"`
	MaxRecords     int    `yaml:"max_records"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type LLMConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type ReviewConfig struct {
	Addr string `yaml:"addr"`
}

type SummaryConfig struct {
	Threshold int `yaml:"threshold"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 8 * * *"
	}
	if cfg.Data.RawDir == "" {
		cfg.Data.RawDir = "data/raw"
	}
	if cfg.Data.ScoredDir == "" {
		cfg.Data.ScoredDir = "data/scored"
	}
	if cfg.Data.SummaryDir == "" {
		cfg.Data.SummaryDir = "data/summary"
	}
	if cfg.Data.FeedbackDir == "" {
		cfg.Data.FeedbackDir = "data/daily"
	}
	if cfg.Data.Instructions == "" {
		cfg.Data.Instructions = "config/agent_prompt.txt"
	}
	if cfg.Fetch.Endpoint == "" {
		cfg.Fetch.Endpoint = "https://api.gdeltproject.org/api/v2/geo/geo"
	}
	if cfg.Fetch.Query == "" {
		cfg.Fetch.Query = "landslide"
	}
	if cfg.Fetch.Mode == "" {
		cfg.Fetch.Mode = "PointData"
	}
	if cfg.Fetch.Timespan == "" {
		cfg.Fetch.Timespan = "1d"
	}
	if cfg.Fetch.Format == "" {
		cfg.Fetch.Format = "geojson"
	}
	if cfg.Fetch.MaxRecords == 0 {
		cfg.Fetch.MaxRecords = 10
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 15
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-sonnet-4-20250514"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.Review.Addr == "" {
		cfg.Review.Addr = ":8080"
	}
	if cfg.Summary.Threshold == 0 {
		cfg.Summary.Threshold = 7
	}
}

func validate(cfg *Config) error {
	if cfg.Fetch.MaxRecords < 1 {
		return fmt.Errorf("config: fetch.max_records must be positive")
	}
	if cfg.Summary.Threshold < 0 || cfg.Summary.Threshold > 10 {
		return fmt.Errorf("config: summary.threshold must be in [0,10]")
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("config: llm.model is required")
	}
	return nil
}

// Load reads the config file, expands environment variables, applies
// defaults, and validates. A missing file is not an error: every setting
// has a default, so the pipeline runs on a fresh checkout. The LLM API key
// is not validated here; only the commands that contact the evaluator
// require it.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Printf("Config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
