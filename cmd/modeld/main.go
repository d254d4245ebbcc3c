package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/config"
	dbRedis "github.com/kailas-cloud/modeld/internal/db/redis"
	"github.com/kailas-cloud/modeld/internal/domain"
	"github.com/kailas-cloud/modeld/internal/domain/payload"
	"github.com/kailas-cloud/modeld/internal/domain/textfilter"
	"github.com/kailas-cloud/modeld/internal/embedding/binary"
	logpkg "github.com/kailas-cloud/modeld/internal/logger"
	"github.com/kailas-cloud/modeld/internal/metrics"
	"github.com/kailas-cloud/modeld/internal/repository/artifact"
	"github.com/kailas-cloud/modeld/internal/repository/centercache"
	"github.com/kailas-cloud/modeld/internal/trainer/als"
	chiTransport "github.com/kailas-cloud/modeld/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/modeld/internal/transport/openai"
	"github.com/kailas-cloud/modeld/internal/transport/router"
	healthuc "github.com/kailas-cloud/modeld/internal/usecase/health"
	modeluc "github.com/kailas-cloud/modeld/internal/usecase/model"
	"github.com/kailas-cloud/modeld/internal/usecase/word2vec"
	"github.com/kailas-cloud/modeld/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting modeld",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("admin_port", cfg.HTTP.AdminPort),
		zap.String("storage_root", cfg.Storage.Root),
		zap.String("word2vec_provider", cfg.Word2Vec.Provider),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterModelMetrics()

	ctx := context.Background()

	// Model storage
	repo, err := artifact.New(cfg.Storage.Root, logger)
	if err != nil {
		logger.Fatal("Failed to open model storage", zap.Error(err))
	}
	if cfg.Storage.SweepOnStart {
		n, err := repo.Sweep(ctx)
		if err != nil {
			logger.Warn("Storage sweep failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("Removed leftovers of interrupted writes", zap.Int("entries", n))
		}
	}

	trainer := als.New(als.Config{Workers: cfg.Training.Workers, Seed: cfg.Training.Seed})
	models := modeluc.New(repo, trainer, als.Evaluate, modeluc.WithNameAttempts(cfg.Storage.NameAttempts))

	// Optional Redis center cache
	var cache *dbRedis.Store
	if cfg.Cache.Enabled {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()

		if err := cache.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedder := buildEmbedder(cfg, cache, logger)
	words := word2vec.New(embedder, textfilter.New())

	if cfg.Word2Vec.LoadOnStart {
		if err := words.Load(ctx); err != nil {
			logger.Error("Initial word vector load failed", zap.Error(err))
		}
	}

	parser := payload.New(payload.Limits{
		MaxRank:       cfg.Training.MaxRank,
		MaxIterations: cfg.Training.MaxIterations,
	})
	rt := router.New(models, words, parser)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.Pinger
	if cache != nil {
		cachePinger = cache
	}
	health := healthuc.New(repo, cachePinger, words)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      chiTransport.NewRouter(chiTransport.NewHandler(rt, cfg.HTTP.MaxBodyBytes), logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	servers := []*http.Server{srv}

	if cfg.HTTP.AdminPort > 0 {
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.AdminPort),
			Handler:           chiTransport.NewAdminRouter(health, logger),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("Starting HTTP server", zap.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("HTTP server error", zap.String("addr", s.Addr), zap.Error(err))
			}
		}(s)
	}

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.String("addr", s.Addr), zap.Error(err))
		}
	}

	if err := words.Free(shutdownCtx); err != nil {
		logger.Error("Error freeing word vectors", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: provider -> center cache -> instrumented.
func buildEmbedder(cfg config.Config, cache *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	w2v := cfg.Word2Vec

	var base domain.Embedder
	switch w2v.Provider {
	case config.ProviderOpenAI:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     w2v.OpenAI.APIKey,
			BaseURL:    w2v.OpenAI.BaseURL,
			Model:      w2v.OpenAI.Model,
			Dimensions: w2v.OpenAI.Dimensions,
			Provider:   w2v.Provider,
			Logger:     logger,
		})
	default:
		base = binary.New(binary.Config{
			Path:          w2v.ModelFile,
			MaxWordLength: w2v.MaxWordLength,
			LogNearest:    w2v.LogNearest,
			Logger:        logger,
		})
	}

	embedder := base
	if cache != nil {
		embedder = centercache.New(base, cache, centercache.Config{
			KeyPrefix:  cfg.Cache.KeyPrefix,
			TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
			CacheTotal: metrics.CenterCacheTotal,
			Logger:     logger,
		})
	}

	logger.Info("Embedder created",
		zap.String("provider", w2v.Provider),
		zap.Bool("center_cache", cache != nil),
	)
	return word2vec.NewInstrumentedEmbedder(embedder, w2v.Provider, logger)
}
