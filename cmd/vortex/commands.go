package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/vortex"
	"github.com/poiesic/vortex/ai/openai"
	"github.com/poiesic/vortex/chunker"
	"github.com/poiesic/vortex/config"
	"github.com/poiesic/vortex/conversation"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/ingestion"
	"github.com/poiesic/vortex/reembed"
	"github.com/poiesic/vortex/retrieval"
	"github.com/urfave/cli/v2"
)

func ingestCommand(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	if c.IsSet("source") {
		settings.Ingestion.SourceDir = c.String("source")
	}
	if c.IsSet("pool-size") {
		settings.Ingestion.PoolSize = c.Int("pool-size")
	}
	if c.IsSet("rate-limit") {
		settings.Ingestion.RateLimit = c.Float64("rate-limit")
	}
	if settings.Ingestion.SourceDir == "" {
		return fmt.Errorf("source directory is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kb, err := openKnowledgebase(settings)
	if err != nil {
		return err
	}
	defer kb.Close()

	ch, err := chunker.New(
		chunker.WithSize(settings.Ingestion.ChunkSize),
		chunker.WithOverlap(settings.Ingestion.ChunkOverlap),
	)
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}

	opts := ingestionOptions(settings, ch, c.App.ErrWriter)
	ing, err := kb.NewIngester(opts...)
	if err != nil {
		return fmt.Errorf("failed to create ingester: %w", err)
	}
	defer ing.Release()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", settings.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Collection: %s\n", settings.Storage.Collection)
	fmt.Fprintf(c.App.ErrWriter, "Source: %s\n", settings.Ingestion.SourceDir)
	fmt.Fprintln(c.App.ErrWriter)

	report, err := ing.Ingest(ctx, settings.Ingestion.SourceDir)
	if report != nil {
		printReport(c.App.Writer, report)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if failures := ingestion.FailureSummary(report); failures != nil {
		slog.Warn("some sources could not be ingested", "failed", report.Failed, "err", failures)
	}
	return nil
}

func ingestionOptions(settings *config.Settings, ch *chunker.Chunker, progress io.Writer) []ingestion.Option {
	opts := []ingestion.Option{
		ingestion.WithChunker(ch),
		ingestion.WithEmbedBatchSize(settings.Ingestion.EmbedBatchSize),
		ingestion.WithRetry(settings.Ingestion.MaxAttempts, time.Duration(settings.Ingestion.RetryDelay)),
		ingestion.WithRateLimit(settings.Ingestion.RateLimit, 1),
		ingestion.WithProgress(progress),
	}
	if settings.Ingestion.PoolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(settings.Ingestion.PoolSize))
	}
	return opts
}

func printReport(w io.Writer, report *core.IngestionReport) {
	fmt.Fprintf(w, "Collection:       %s\n", report.Collection)
	fmt.Fprintf(w, "Started:          %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:         %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Sources:          %d processed, %d skipped, %d failed\n",
		report.Processed, report.Skipped, report.Failed)
	fmt.Fprintf(w, "Chunks staged:    %d (%d duplicates dropped)\n", report.ChunksStaged, report.DuplicateChunks)
	fmt.Fprintf(w, "Chunks unchanged: %d\n", report.ChunksUnchanged)
	fmt.Fprintf(w, "Chunks written:   %d\n", report.ChunksWritten)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  failed: %s: %s\n", f.Source, f.Reason)
	}
}

func newOrchestrator(kb *vortex.Knowledgebase, settings *config.Settings) (*retrieval.Orchestrator, error) {
	var opts []retrieval.Option
	system, err := settings.SystemPrompt()
	if err != nil {
		return nil, err
	}
	if system != "" {
		opts = append(opts, retrieval.WithSystemPrompt(system))
	}
	orch, err := kb.NewOrchestrator(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch, nil
}

func serveCommand(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		settings.Server.Addr = c.String("addr")
	}

	kb, err := openKnowledgebase(settings)
	if err != nil {
		return err
	}
	defer kb.Close()

	orch, err := newOrchestrator(kb, settings)
	if err != nil {
		return err
	}

	newSession := kb.NewSessionFactory(orch,
		conversation.WithMaxQuestionLength(settings.Server.MaxQuestionLength),
		conversation.WithRetrievalParameters(
			settings.Retrieval.K,
			settings.Retrieval.FetchK,
			settings.Retrieval.Lambda,
			settings.Retrieval.Temperature,
		),
	)

	chat := conversation.Handler(newSession, slog.Default())
	mux := http.NewServeMux()
	mux.Handle("/chat", chat)
	server := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("serving questions", "addr", settings.Server.Addr, "collection", settings.Storage.Collection)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, waiting for open sessions")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		if err := chat.Shutdown(shutdownCtx); err != nil {
			slog.Warn("cancelled sessions still open at the shutdown timeout", "err", err)
		}
		return nil
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kb, err := openKnowledgebase(settings)
	if err != nil {
		return err
	}
	defer kb.Close()

	orch, err := newOrchestrator(kb, settings)
	if err != nil {
		return err
	}

	var monitor retrieval.Monitor
	if c.Bool("verbose") {
		monitor = retrieval.NewTextMonitor(c.App.ErrWriter)
	}
	return streamAnswer(ctx, c.App.Writer, orch, settings.RetrievalQuery(question), monitor)
}

// streamAnswer prints tokens as they arrive, followed by the sources.
func streamAnswer(ctx context.Context, w io.Writer, orch *retrieval.Orchestrator, query core.RetrievalQuery, monitor retrieval.Monitor) error {
	for ev, err := range orch.AnswerWithMonitor(ctx, query, monitor) {
		if err != nil {
			fmt.Fprintln(w)
			return err
		}
		switch ev.Kind {
		case retrieval.EventToken:
			fmt.Fprint(w, ev.Token)
		case retrieval.EventAnswer:
			fmt.Fprintln(w)
			if len(ev.Answer.Sources) > 0 {
				fmt.Fprintln(w, "\nSources:")
			}
			for i, src := range ev.Answer.Sources {
				fmt.Fprintf(w, "%d. %s (%s) %s\n", i+1, src.Name, src.Date(), src.Link)
			}
		}
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	aiConfig := settings.AIConfig()
	if c.IsSet("embedding-host") {
		aiConfig.EmbeddingHost = c.String("embedding-host")
	}
	aiConfig.EmbeddingModel = c.String("embedding-model")
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if err := validateReembedConfig(reembedConfig); err != nil {
		return err
	}

	kb, err := openKnowledgebase(settings)
	if err != nil {
		return err
	}
	defer kb.Close()

	reembedder, err := kb.NewReembedder(embedder, reembedConfig, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", settings.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Collection: %s\n", settings.Storage.Collection)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", aiConfig.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func validateReembedConfig(cfg *reembed.Config) error {
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	return nil
}

func runsCommand(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	kb, err := openKnowledgebase(settings)
	if err != nil {
		return err
	}
	defer kb.Close()

	report, err := kb.Runs().LastRun(c.Context, settings.Storage.Collection)
	if err != nil {
		return fmt.Errorf("failed to read run ledger: %w", err)
	}
	if report == nil {
		fmt.Fprintf(c.App.Writer, "Collection %s has never been ingested\n", settings.Storage.Collection)
		return nil
	}
	printReport(c.App.Writer, report)
	return nil
}
