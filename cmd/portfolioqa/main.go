// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/ai/openai"
	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/orchestrator"
	"github.com/urfave/cli/v2"
)

// newProvider builds the AI provider for every command. Tests replace it.
var newProvider = openai.NewProvider

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "portfolioqa",
		Usage: "Answer portfolio questions from documents and the knowledge graph",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file; command line flags take precedence",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./portfolio_db",
			},
			&cli.StringFlag{
				Name:  "redis",
				Usage: "Redis address for the shared embedding and resolution cache",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "generator-host",
				Usage: "Generation service host URL",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: "embeddinggemma",
			},
			&cli.StringFlag{
				Name:  "generator-model",
				Usage: "Generation model name for intent fallback and answer phrasing",
				Value: "qwen2.5:3b",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "API token for the AI services",
			},
			&cli.IntFlag{
				Name:  "embedding-batch-size",
				Usage: "Texts sent per embedding request",
				Value: 32,
			},
			&cli.IntFlag{
				Name:  "embedding-dimensions",
				Usage: "Reject embeddings whose length differs (0 disables the check)",
			},
			&cli.StringFlag{
				Name:  "token-encoding",
				Usage: "tiktoken encoding for context budgets (default counts words)",
			},
			&cli.DurationFlag{
				Name:  "deadline",
				Usage: "Default per-query deadline",
				Value: orchestrator.DefaultDeadline,
			},
			&cli.IntFlag{
				Name:  "cache-size",
				Usage: "Maximum number of cached answers",
				Value: cache.DefaultSize,
			},
			&cli.DurationFlag{
				Name:  "cache-ttl",
				Usage: "Lifetime of a cached answer",
				Value: cache.DefaultTTL,
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "How long change notifications settle before being applied",
				Value: 5 * time.Second,
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return applyFileConfig(c)
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: ":8080",
					},
					&cli.DurationFlag{
						Name:  "shutdown-timeout",
						Usage: "How long to wait for in-flight requests on shutdown",
						Value: 5 * time.Second,
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Answer a question and print the result as JSON",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: append(queryFlags(), &cli.BoolFlag{
					Name:  "explain",
					Usage: "Print each vector retrieval step to stderr",
				}),
			},
			{
				Name:      "stream",
				Usage:     "Answer a question and print each progressive event",
				ArgsUsage: "<question>",
				Action:    streamCommand,
				Flags:     queryFlags(),
			},
			{
				Name:   "notify",
				Usage:  "Apply entity updates from a JSON file",
				Action: notifyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON file holding one update or an array of updates",
						Required: true,
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Load a YAML portfolio fixture",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "YAML fixture file",
						Required: true,
					},
				},
			},
			{
				Name:  "job",
				Usage: "Run and inspect ingestion jobs",
				Subcommands: []*cli.Command{
					{
						Name:      "start",
						Usage:     "Start a reembed, rebuild or backfill job",
						ArgsUsage: "<kind>",
						Action:    jobStartCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "file",
								Aliases: []string{"f"},
								Usage:   "YAML fixture replayed by a backfill job",
							},
						},
					},
					{
						Name:      "status",
						Usage:     "Show a job",
						ArgsUsage: "<id>",
						Action:    jobStatusCommand,
					},
					{
						Name:   "list",
						Usage:  "List jobs, newest first",
						Action: jobListCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of jobs to show (0 for all)",
								Value: 20,
							},
						},
					},
				},
			},
		},
	}
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "context",
			Usage: "Caller context as key=value (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "entity",
			Usage: "Restrict retrieval to an entity id (repeatable)",
		},
		&cli.IntFlag{
			Name:  "top-k",
			Usage: "Number of vector candidates to retrieve",
		},
		&cli.BoolFlag{
			Name:  "partial",
			Usage: "Stream each retrieval path's result as it arrives",
		},
	}
}

func newAIConfig(c *cli.Context) (*ai.Config, error) {
	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithGeneratorHost(c.String("generator-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
		ai.WithEmbeddingBatchSize(c.Int("embedding-batch-size")),
		ai.WithEmbeddingDimensions(c.Int("embedding-dimensions")),
	)
	if token := c.String("token"); token != "" {
		config.Token = token
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return config, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
