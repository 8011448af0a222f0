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

	"github.com/poiesic/vortex"
	"github.com/poiesic/vortex/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vortex",
		Usage: "Ingest documents and answer questions about them",
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
				Usage:   "Path to the TOML settings file",
				Value:   config.DefaultFile,
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Collection to read and write (overrides storage.collection)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Ingest every PDF and JSON record in a directory",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Directory of source documents (overrides ingestion.source_dir)",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of workers parsing and chunking sources (0 uses the CPU count)",
					},
					&cli.Float64Flag{
						Name:  "rate-limit",
						Usage: "Maximum embedding calls per second (0 disables the limit)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Answer questions over a websocket at /chat",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Address to listen on (overrides server.addr)",
					},
					&cli.DurationFlag{
						Name:  "shutdown-timeout",
						Usage: "How long to wait for open sessions on shutdown",
						Value: 10 * time.Second,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a single question and print the answer",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print the retrieval steps and passages to stderr",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every chunk of the collection with a new embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (overrides the configured host)",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "runs",
				Usage:  "Show the last ingestion run of the collection",
				Action: runsCommand,
			},
		},
	}
}

// loadSettings reads the settings file and environment, then applies the
// global flags.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		settings.Storage.Path = c.String("db")
	}
	if c.IsSet("collection") {
		settings.Storage.Collection = c.String("collection")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func openKnowledgebase(settings *config.Settings) (*vortex.Knowledgebase, error) {
	kb, err := vortex.Open(settings.Storage.Path,
		vortex.WithAIConfig(settings.AIConfig()),
		vortex.WithCollection(settings.Storage.Collection),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return kb, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
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
