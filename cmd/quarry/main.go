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

	"github.com/poiesic/quarry"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/logging"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "quarry",
		Usage: "Extract quotes, concepts and their links from text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"QUARRY_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   logging.FormatText,
				EnvVars: []string{"QUARRY_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Database path (a directory for badger, a file for sqlite)",
				Value:   "quarry-data",
				EnvVars: []string{"QUARRY_DB"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Storage backend (badger, sqlite)",
				Value:   quarry.BackendBadger,
				EnvVars: []string{"QUARRY_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "llm-host",
				Usage:   "OpenAI-compatible API host URL",
				Value:   ai.DefaultConfig().Host,
				EnvVars: []string{"QUARRY_LLM_HOST"},
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Usage:   "Chat model name",
				Value:   ai.DefaultConfig().Model,
				EnvVars: []string{"QUARRY_LLM_MODEL"},
			},
			&cli.DurationFlag{
				Name:    "llm-timeout",
				Usage:   "Timeout for a single model call",
				Value:   ai.DefaultConfig().Timeout,
				EnvVars: []string{"QUARRY_LLM_TIMEOUT"},
			},
			&cli.StringSliceFlag{
				Name:    "fallback-key",
				Usage:   "Server-side credential as provider=key, tried in order when the caller supplies none",
				EnvVars: []string{"QUARRY_FALLBACK_KEYS"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Analyze files (or stdin) and store the extracted graph",
				ArgsUsage: "[file...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Aliases:  []string{"o"},
						Usage:    "Owner of the stored data",
						Required: true,
						EnvVars:  []string{"QUARRY_OWNER"},
					},
					&cli.StringFlag{
						Name:    "credential",
						Usage:   "API key for this run; overrides the fallback keys",
						EnvVars: []string{"QUARRY_CREDENTIAL"},
					},
					&cli.StringFlag{
						Name:  "source-type",
						Usage: "Source type (manual, webpage, file, api); defaults to file for files, manual for stdin",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Source URL recorded with every submission",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of files analyzed concurrently",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N files",
						Value: 10,
					},
					&cli.DurationFlag{
						Name:  "analysis-timeout",
						Usage: "Upper bound on one file's analysis",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "atomic",
						Usage: "Write each extracted graph in a single transaction",
					},
				},
			},
			{
				Name:      "list",
				Usage:     "Print a view of stored data as JSON",
				ArgsUsage: "<list_quotes|list_nodes|graph_data|list_ideas>",
				Action:    listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Aliases:  []string{"o"},
						Usage:    "Owner whose data is listed",
						Required: true,
						EnvVars:  []string{"QUARRY_OWNER"},
					},
					&cli.Uint64Flag{
						Name:  "raw-content-id",
						Usage: "Only rows extracted from this content",
					},
					&cli.Uint64Flag{
						Name:  "source-id",
						Usage: "Only content of this source",
					},
					&cli.StringFlag{
						Name:  "node-type",
						Usage: "Only nodes of this type",
					},
					&cli.BoolFlag{
						Name:  "suggestions-only",
						Usage: "Only rows not yet reviewed",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only ideas with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of rows (0 for all)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   ":8080",
						EnvVars: []string{"QUARRY_ADDR"},
					},
					jwtSecretFlag(),
					jwtIssuerFlag(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Worker pool size for asynchronous submissions",
						Value: 4,
					},
					&cli.DurationFlag{
						Name:  "analysis-timeout",
						Usage: "Upper bound on one submission's analysis",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "atomic",
						Usage: "Write each extracted graph in a single transaction",
					},
					&cli.DurationFlag{
						Name:  "shutdown-grace",
						Usage: "How long in-flight requests may run after a shutdown signal",
						Value: 15 * time.Second,
					},
				},
			},
			{
				Name:   "token",
				Usage:  "Issue a bearer token for the HTTP API",
				Action: tokenCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Aliases:  []string{"o"},
						Usage:    "Subject (owner) of the token",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime (0 for no expiry)",
						Value: 24 * time.Hour,
					},
					jwtSecretFlag(),
					jwtIssuerFlag(),
				},
			},
		},
	}
}

func jwtSecretFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "jwt-secret",
		Usage:    "HS256 signing secret for bearer tokens",
		Required: true,
		EnvVars:  []string{"QUARRY_JWT_SECRET"},
	}
}

func jwtIssuerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "jwt-issuer",
		Usage:   "Required token issuer",
		EnvVars: []string{"QUARRY_JWT_ISSUER"},
	}
}

func setupLogger(c *cli.Context) error {
	level, err := logging.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logger, err := logging.New(c.App.ErrWriter, level, c.String("log-format"))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// aiConfig builds the model configuration from the global flags.
func aiConfig(c *cli.Context) (*ai.Config, error) {
	opts := []ai.ConfigOption{
		ai.WithHost(c.String("llm-host")),
		ai.WithModel(c.String("llm-model")),
		ai.WithTimeout(c.Duration("llm-timeout")),
	}
	fallbacks, err := parseFallbacks(c.StringSlice("fallback-key"))
	if err != nil {
		return nil, err
	}
	opts = append(opts, fallbacks...)

	cfg := ai.NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}

// parseFallbacks reads provider=key pairs. Errors name the position only.
func parseFallbacks(pairs []string) ([]ai.ConfigOption, error) {
	opts := make([]ai.ConfigOption, 0, len(pairs))
	for i, pair := range pairs {
		provider, key, ok := strings.Cut(pair, "=")
		provider, key = strings.TrimSpace(provider), strings.TrimSpace(key)
		if !ok || provider == "" || key == "" {
			return nil, fmt.Errorf("fallback key %d: expected provider=key", i+1)
		}
		opts = append(opts, ai.WithFallback(provider, key))
	}
	return opts, nil
}

func openDatabase(c *cli.Context) (*quarry.Database, error) {
	cfg, err := aiConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := quarry.NewDatabase(c.String("db"),
		quarry.WithBackend(c.String("backend")),
		quarry.WithAIConfig(cfg),
		quarry.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
