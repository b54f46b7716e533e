package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

type Config struct {
	Server       ServerConfig                 `yaml:"server"`
	Database     DatabaseConfig               `yaml:"database"`
	Hermes       HermesConfig                 `yaml:"hermes"`
	Dataset      DatasetConfig                `yaml:"dataset"`
	Selection    SelectionConfig              `yaml:"selection"`
	Stakeholders []welfare.StakeholderWeights `yaml:"stakeholders"`
	Logging      LoggingConfig                `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type DatasetConfig struct {
	Dir           string  `yaml:"dir"`
	BaseURL       string  `yaml:"base_url"`
	RatingsFile   string  `yaml:"ratings_file"`
	MoviesFile    string  `yaml:"movies_file"`
	MinRatings    int     `yaml:"min_ratings"`
	MaxRating     float64 `yaml:"max_rating"`
	RiskSeed      uint64  `yaml:"risk_seed"`
	FetchAttempts int     `yaml:"fetch_attempts"`
}

type SelectionConfig struct {
	SlateSize          int     `yaml:"slate_size" json:"slate_size"`
	PoolSize           int     `yaml:"pool_size" json:"pool_size"`
	MaxPoolSize        int     `yaml:"max_pool_size" json:"max_pool_size"`
	MaxSlateSize       int     `yaml:"max_slate_size" json:"max_slate_size"`
	Seed               uint64  `yaml:"seed" json:"seed"`
	FairnessThreshold  float64 `yaml:"fairness_threshold" json:"fairness_threshold"`
	PenaltyWeight      float64 `yaml:"penalty_weight" json:"penalty_weight"`
	Workers            int     `yaml:"workers" json:"workers"`
	RelevanceAttribute string  `yaml:"relevance_attribute" json:"relevance_attribute"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Fairness returns the penalty policy the selection section describes.
func (c *Config) Fairness() welfare.FairnessPolicy {
	return welfare.FairnessPolicy{
		Threshold:     c.Selection.FairnessThreshold,
		PenaltyWeight: c.Selection.PenaltyWeight,
	}
}

func Load(path string) (*Config, error) {
	fairness := welfare.DefaultFairness()
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Dataset: DatasetConfig{
			Dir:           "data/movielens",
			BaseURL:       "",
			RatingsFile:   "ratings.csv",
			MoviesFile:    "movies.csv",
			MinRatings:    1,
			MaxRating:     5.0,
			RiskSeed:      7,
			FetchAttempts: 3,
		},
		Selection: SelectionConfig{
			SlateSize:          10,
			PoolSize:           1000,
			MaxPoolSize:        100000,
			MaxSlateSize:       100,
			Seed:               42,
			FairnessThreshold:  fairness.Threshold,
			PenaltyWeight:      fairness.PenaltyWeight,
			Workers:            1,
			RelevanceAttribute: welfare.AttrRelevance,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if len(cfg.Stakeholders) == 0 {
		cfg.Stakeholders = welfare.DefaultStakeholders()
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the selection parameters and stakeholder definitions.
func (c *Config) Validate() error {
	if c.Selection.SlateSize < 1 {
		return fmt.Errorf("selection.slate_size must be >= 1, got %d", c.Selection.SlateSize)
	}
	if c.Selection.PoolSize < 1 {
		return fmt.Errorf("selection.pool_size must be >= 1, got %d", c.Selection.PoolSize)
	}
	if c.Selection.MaxPoolSize < c.Selection.PoolSize {
		return fmt.Errorf("selection.max_pool_size (%d) must be >= selection.pool_size (%d)",
			c.Selection.MaxPoolSize, c.Selection.PoolSize)
	}
	if c.Selection.MaxSlateSize < c.Selection.SlateSize {
		return fmt.Errorf("selection.max_slate_size (%d) must be >= selection.slate_size (%d)",
			c.Selection.MaxSlateSize, c.Selection.SlateSize)
	}
	if c.Selection.RelevanceAttribute == "" {
		return fmt.Errorf("selection.relevance_attribute is required")
	}
	if err := c.Fairness().Validate(); err != nil {
		return err
	}
	if _, err := welfare.BuildStakeholders(c.Stakeholders); err != nil {
		return err
	}
	if c.Dataset.MaxRating <= 0 {
		return fmt.Errorf("dataset.max_rating must be positive, got %f", c.Dataset.MaxRating)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EQUILIBRIUM_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("EQUILIBRIUM_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("EQUILIBRIUM_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("EQUILIBRIUM_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("EQUILIBRIUM_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("EQUILIBRIUM_DATASET_DIR"); v != "" {
		cfg.Dataset.Dir = v
	}
	if v := os.Getenv("EQUILIBRIUM_DATASET_URL"); v != "" {
		cfg.Dataset.BaseURL = v
	}
	if v := os.Getenv("EQUILIBRIUM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Selection.Seed = n
		}
	}
	if v := os.Getenv("EQUILIBRIUM_SLATE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.SlateSize = n
		}
	}
	if v := os.Getenv("EQUILIBRIUM_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.PoolSize = n
		}
	}
	if v := os.Getenv("EQUILIBRIUM_MAX_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.MaxPoolSize = n
		}
	}
	if v := os.Getenv("EQUILIBRIUM_FAIRNESS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Selection.FairnessThreshold = f
		}
	}
	if v := os.Getenv("EQUILIBRIUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.Workers = n
		}
	}
	if v := os.Getenv("EQUILIBRIUM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EQUILIBRIUM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
