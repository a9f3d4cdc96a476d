package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/RishiKendai/plagscan/internal/api"
	"github.com/RishiKendai/plagscan/internal/config"
	"github.com/RishiKendai/plagscan/internal/configs/env"
	"github.com/RishiKendai/plagscan/internal/corpus"
	"github.com/RishiKendai/plagscan/internal/graph"
	"github.com/RishiKendai/plagscan/internal/infra/mongo"
	redisInfra "github.com/RishiKendai/plagscan/internal/infra/redis"
	"github.com/RishiKendai/plagscan/internal/logger"
	"github.com/RishiKendai/plagscan/internal/metrics"
	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/RishiKendai/plagscan/internal/plagiarism"
	"github.com/RishiKendai/plagscan/internal/report"
	"github.com/RishiKendai/plagscan/internal/repository"
	"github.com/RishiKendai/plagscan/internal/stream"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	parseFlags(cfg)

	l := logger.Init(cfg.LogLevel)

	if cfg.Serve {
		os.Exit(serve(cfg, l))
	}
	os.Exit(runOnce(cfg, l))
}

// parseFlags lets command line flags override the environment.
func parseFlags(cfg *config.Config) {
	flag.StringVar(&cfg.TemplateFile, "t", cfg.TemplateFile, "template file whose lines are subtracted from every document")
	flag.StringVar(&cfg.ResultFile, "o", cfg.ResultFile, "pairwise result table")
	flag.StringVar(&cfg.SummaryFile, "s", cfg.SummaryFile, "per-document summary table")
	flag.StringVar(&cfg.FailedFile, "f", cfg.FailedFile, "table of documents that could not be compared")
	flag.StringVar(&cfg.CorpusPath, "p", cfg.CorpusPath, "corpus directory")
	flag.StringVar(&cfg.RemovePattern, "r", cfg.RemovePattern, "regular expression removed from every document")
	flag.Func("g", "graph threshold in [0, 1]; enables the graph export", func(v string) error {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		cfg.GraphThreshold = &t
		return nil
	})
	flag.StringVar(&cfg.GraphFile, "graph-out", cfg.GraphFile, "graph export in Graphviz DOT format")
	flag.IntVar(&cfg.NumPerm, "k", cfg.NumPerm, "number of MinHash permutations")
	flag.IntVar(&cfg.Workers, "w", cfg.Workers, "number of workers, 0 for one per CPU")
	flag.BoolVar(&cfg.Serve, "serve", cfg.Serve, "run the HTTP API and the stream consumer")
	flag.Parse()
}

func newService(ctx context.Context, cfg *config.Config, l zerolog.Logger, status plagiarism.StatusReporter, m *metrics.Metrics, outputs plagiarism.Outputs) (*plagiarism.Service, *plagiarism.WorkerPool) {
	pool := plagiarism.NewWorkerPool(ctx, cfg.Workers, l)
	engine := plagiarism.NewEngine(plagiarism.Options{
		Pool:            pool,
		Source:          corpus.NewFileSource(),
		Hasher:          plagiarism.NewMinHasher(cfg.NumPerm, cfg.HashSeed),
		DocumentTimeout: cfg.DocumentTimeout,
		Status:          status,
		Metrics:         m,
		Logger:          l,
	})
	svc := plagiarism.NewService(engine, cfg.RemovePattern, l, outputs)
	return svc, pool
}

// runOnce compares the configured corpus and writes the tables.
func runOnce(cfg *config.Config, l zerolog.Logger) int {
	if err := cfg.Validate(); err != nil {
		l.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, pool := newService(ctx, cfg, l, nil, nil, plagiarism.Outputs{
		ResultFile:  cfg.ResultFile,
		SummaryFile: cfg.SummaryFile,
		FailedFile:  cfg.FailedFile,
		GraphFile:   cfg.GraphFile,
	})
	defer pool.Close()

	rep, err := svc.Compute(ctx, models.CompareRequest{
		CorpusPath:     cfg.CorpusPath,
		TemplatePath:   cfg.TemplateFile,
		RemovePattern:  cfg.RemovePattern,
		GraphThreshold: cfg.GraphThreshold,
	})
	if err != nil {
		var cfgErr *plagiarism.ConfigError
		if errors.As(err, &cfgErr) {
			l.Error().Err(err).Msg("Invalid configuration, nothing written")
		} else {
			l.Error().Err(err).Msg("Comparison failed")
		}
		return 1
	}

	paths := report.Paths{
		ResultFile:  cfg.ResultFile,
		SummaryFile: cfg.SummaryFile,
		FailedFile:  cfg.FailedFile,
	}
	if err := report.WriteFiles(rep, paths); err != nil {
		l.Error().Err(err).Msg("Failed to write results")
		return 1
	}

	if cfg.GraphThreshold != nil {
		var buf bytes.Buffer
		if err := graph.WriteDOT(&buf, graph.Build(rep, *cfg.GraphThreshold)); err != nil {
			l.Error().Err(err).Msg("Failed to render graph")
			return 1
		}
		if err := report.WriteAtomic(cfg.GraphFile, buf.Bytes()); err != nil {
			l.Error().Err(err).Msg("Failed to write graph")
			return 1
		}
	}

	for _, f := range rep.Failed {
		l.Warn().Str("document", f.ID).Str("path", f.Path).Str("reason", f.Reason).Msg("Document excluded")
	}
	l.Info().
		Str("result", cfg.ResultFile).
		Str("summary", cfg.SummaryFile).
		Int("rows", len(rep.Pairwise)).
		Int("failed", len(rep.Failed)).
		Msg("Results written")

	return 0
}

// serve runs the HTTP API and the Redis stream consumer until interrupted.
func serve(cfg *config.Config, l zerolog.Logger) int {
	if err := cfg.ValidateServer(); err != nil {
		l.Error().Err(err).Msg("Invalid configuration")
		return 1
	}
	l.Info().Msg("Starting similarity server")

	m := metrics.New(prometheus.NewRegistry())
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer := api.StartServer("metrics", metricsMux, cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect MongoDB
	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		l.Error().Err(err).Msg("Failed to create MongoDB client")
		return 1
	}
	defer mongoClient.Close(context.Background())

	// Connect Redis
	redisClient, err := redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
	if err != nil {
		l.Error().Err(err).Msg("Failed to create Redis client")
		return 1
	}
	defer redisClient.Close()

	reportsRepo := repository.NewReportsRepository(repository.NewMongoRepository(mongoClient))
	statusStore := plagiarism.NewRedisStatusStore(redisClient.Client, 0, l)

	// Server runs write no files, so nothing in a corpus is skipped.
	svc, pool := newService(ctx, cfg, l, statusStore, m, plagiarism.Outputs{})
	defer pool.Close()

	retryHandler := stream.NewRetryHandler(redisClient.Client, cfg.RedisDeadLetterKey, plagiarism.IsPermanent)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
	consumer := stream.NewConsumer(redisClient.Client, stream.ConsumerOptions{
		StreamKey: cfg.RedisStreamKey,
		Group:     cfg.RedisConsumerGroup,
		Name:      consumerName,
		Retention: cfg.StreamRetentionDuration,
	}, svc, reportsRepo, statusStore, retryHandler)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error().Err(err).Msg("Redis consumer error")
		}
	}()
	l.Info().Str("consumer_name", consumerName).Msg("Redis consumer started")

	router := api.SetupRoutes(ctx, cfg, svc, reportsRepo, statusStore, m)
	srv := api.StartServer("api", router, cfg.ServerPort)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	l.Info().Msg("Shutting down gracefully...")

	if err := api.ShutdownServer(srv, 30*time.Second); err != nil {
		l.Error().Err(err).Msg("Error shutting down API server")
	}

	cancel()
	<-consumerDone

	if err := api.ShutdownServer(metricsServer, 5*time.Second); err != nil {
		l.Error().Err(err).Msg("Error shutting down metrics server")
	}

	l.Info().Msg("Shutdown complete")
	return 0
}
