// Ingest job for callsight. Re-creates the sentence index from scratch,
// joins the sentence and transcript-metadata parquet datasets, embeds the
// sentence texts and bulk-writes the records, then verifies the result.
//
// Usage:
//
//	callsight-ingest -sentences /data/sentences.parquet -meta /data/meta.parquet
//
// Flags override the values from the config file. The job is destructive:
// an existing index and its documents are dropped before loading.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/config"
	dbRedis "github.com/callsight/callsight/internal/db/redis"
	"github.com/callsight/callsight/internal/ingest"
	logpkg "github.com/callsight/callsight/internal/logger"
	"github.com/callsight/callsight/internal/metrics"
	"github.com/callsight/callsight/internal/schema"
	openaiEmb "github.com/callsight/callsight/internal/transport/openai"
	"github.com/callsight/callsight/internal/version"
)

type flags struct {
	sentencesPath string
	metaPath      string
	collection    string
	batchSize     int
	maxRecords    int
	skipVerify    bool
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.sentencesPath, "sentences", "", "sentence-level parquet dataset (overrides config)")
	flag.StringVar(&f.metaPath, "meta", "", "transcript metadata parquet dataset (overrides config)")
	flag.StringVar(&f.collection, "collection", "", "collection name (overrides config)")
	flag.IntVar(&f.batchSize, "batch-size", 0, "records per bulk write (overrides config)")
	flag.IntVar(&f.maxRecords, "max-records", -1, "index size cap, 0=unlimited (overrides config)")
	flag.BoolVar(&f.skipVerify, "skip-verify", false, "skip the post-load verification pass")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	applyOverrides(&cfg, f)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, f.skipVerify, logger); err != nil {
		logger.Fatal("Ingest failed", zap.Error(err))
	}
}

func applyOverrides(cfg *config.Config, f flags) {
	if f.sentencesPath != "" {
		cfg.Ingest.SentencesPath = f.sentencesPath
	}
	if f.metaPath != "" {
		cfg.Ingest.MetaPath = f.metaPath
	}
	if f.collection != "" {
		cfg.Collection.Name = f.collection
	}
	if f.batchSize > 0 {
		cfg.Ingest.BatchSize = f.batchSize
	}
	if f.maxRecords >= 0 {
		cfg.Ingest.MaxRecords = f.maxRecords
	}
}

func run(ctx context.Context, cfg config.Config, skipVerify bool, logger *zap.Logger) error {
	start := time.Now()

	logger.Info("Starting callsight ingest",
		zap.String("version", version.Version),
		zap.String("collection", cfg.Collection.Name),
		zap.String("sentences", cfg.Ingest.SentencesPath),
		zap.String("meta", cfg.Ingest.MetaPath),
		zap.Int("batch_size", cfg.Ingest.BatchSize),
		zap.Int("max_records", cfg.Ingest.MaxRecords),
	)

	if cfg.Ingest.SentencesPath == "" || cfg.Ingest.MetaPath == "" {
		return fmt.Errorf("both sentences and meta dataset paths are required")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:          cfg.Database.Addrs,
		Username:       cfg.Database.Username,
		Password:       cfg.Database.Password,
		ConnectTimeout: time.Duration(cfg.Database.ConnectTimeoutSec) * time.Second,
		ReadTimeout:    time.Duration(cfg.Database.ReadTimeoutSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}

	metrics.RegisterDomainMetrics()

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	definer := schema.New(store, cfg.Collection.Name, cfg.Embedding.Dimensions, schema.HNSWConfig{
		M:           cfg.Collection.HNSWM,
		EFConstruct: cfg.Collection.HNSWEFConstruct,
		EFRuntime:   cfg.Collection.HNSWEFRuntime,
	}, logger)
	if err := definer.Apply(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	pipeline := ingest.New(store, embedder, ingest.Config{
		Collection: cfg.Collection.Name,
		BatchSize:  cfg.Ingest.BatchSize,
		MaxRecords: cfg.Ingest.MaxRecords,
	}, logger)

	stats, err := pipeline.Run(ctx, cfg.Ingest.SentencesPath, cfg.Ingest.MetaPath)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	logger.Info("Load complete",
		zap.Int("read", stats.Read),
		zap.Int("dropped", stats.Dropped),
		zap.Int("written", stats.Written),
		zap.Int("batches", stats.Batches),
		zap.Duration("elapsed", time.Since(start)),
	)

	if skipVerify {
		return nil
	}

	report, err := pipeline.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if report.Count != stats.Written {
		return fmt.Errorf("verification mismatch: index holds %d documents, wrote %d",
			report.Count, stats.Written)
	}

	logger.Info("Ingest finished",
		zap.Int("indexed", report.Count),
		zap.Int("vector_dim", report.VectorDim),
		zap.Int64("est_vector_bytes", report.VectorBytes),
		zap.Int64("est_graph_bytes", report.GraphBytes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
