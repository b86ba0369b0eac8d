package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML configuration file. Any value set on the
// command line takes precedence over the file.
type fileConfig struct {
	DB    string `yaml:"db"`
	Redis string `yaml:"redis"`

	AI struct {
		EmbeddingHost       string `yaml:"embedding_host"`
		GeneratorHost       string `yaml:"generator_host"`
		EmbeddingModel      string `yaml:"embedding_model"`
		GeneratorModel      string `yaml:"generator_model"`
		Token               string `yaml:"token"`
		EmbeddingBatchSize  int    `yaml:"embedding_batch_size"`
		EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	} `yaml:"ai"`

	Query struct {
		Deadline      time.Duration `yaml:"deadline"`
		CacheSize     int           `yaml:"cache_size"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		TokenEncoding string        `yaml:"token_encoding"`
	} `yaml:"query"`

	Ingestion struct {
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"ingestion"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyFileConfig copies file values onto flags the user did not set.
func applyFileConfig(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return nil
	}
	cfg, err := loadFileConfig(path)
	if err != nil {
		return err
	}

	overlay := map[string]string{
		"db":              cfg.DB,
		"redis":           cfg.Redis,
		"embedding-host":  cfg.AI.EmbeddingHost,
		"generator-host":  cfg.AI.GeneratorHost,
		"embedding-model": cfg.AI.EmbeddingModel,
		"generator-model": cfg.AI.GeneratorModel,
		"token":           cfg.AI.Token,
		"token-encoding":  cfg.Query.TokenEncoding,
	}
	if cfg.AI.EmbeddingBatchSize > 0 {
		overlay["embedding-batch-size"] = fmt.Sprint(cfg.AI.EmbeddingBatchSize)
	}
	if cfg.AI.EmbeddingDimensions > 0 {
		overlay["embedding-dimensions"] = fmt.Sprint(cfg.AI.EmbeddingDimensions)
	}
	if cfg.Query.Deadline > 0 {
		overlay["deadline"] = cfg.Query.Deadline.String()
	}
	if cfg.Query.CacheSize > 0 {
		overlay["cache-size"] = fmt.Sprint(cfg.Query.CacheSize)
	}
	if cfg.Query.CacheTTL > 0 {
		overlay["cache-ttl"] = cfg.Query.CacheTTL.String()
	}
	if cfg.Ingestion.Debounce > 0 {
		overlay["debounce"] = cfg.Ingestion.Debounce.String()
	}

	for name, value := range overlay {
		if value == "" || c.IsSet(name) {
			continue
		}
		if err := c.Set(name, value); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	return nil
}
