package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/mythgate/internal/application/analysis"
	"github.com/aescanero/mythgate/internal/application/workers"
	"github.com/aescanero/mythgate/internal/config"
	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/internal/ports"
	"github.com/aescanero/mythgate/pkg/adapters/chain"
	memoryevents "github.com/aescanero/mythgate/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/mythgate/pkg/adapters/events/redis"
	"github.com/aescanero/mythgate/pkg/adapters/explorer"
	"github.com/aescanero/mythgate/pkg/adapters/flatten"
	"github.com/aescanero/mythgate/pkg/adapters/llm"
	"github.com/aescanero/mythgate/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/mythgate/pkg/adapters/mythril"
	"github.com/aescanero/mythgate/pkg/adapters/solc"
	memorystorage "github.com/aescanero/mythgate/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/mythgate/pkg/adapters/storage/redis"
	"github.com/aescanero/mythgate/pkg/adapters/toolexec"
	"github.com/aescanero/mythgate/pkg/api/grpc"
	"github.com/aescanero/mythgate/pkg/api/http"
	"github.com/aescanero/mythgate/pkg/api/websocket"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

// eventStreamMaxLen caps each Redis event stream
const eventStreamMaxLen = 10000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mythgate",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()
	metricsCollector := prometheus.NewCollector()

	// State storage and event bus
	var (
		stateStorage ports.StateStorage
		eventBus     ports.EventBus
		redisClient  *goredis.Client
	)
	switch cfg.Storage.Backend {
	case "redis":
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		stateStorage = redisstorage.NewStateStorage(redisClient, cfg.Storage.JobTTL, logger)
		eventBus = redisevents.NewStreamsEventBus(redisClient, eventStreamMaxLen, logger)
	default:
		stateStorage = memorystorage.NewInMemoryStateStorage(cfg.Storage.JobTTL)
		eventBus = memoryevents.NewInMemoryEventBus()
	}

	// External tools
	runner := toolexec.NewExecRunner(metricsCollector, logger)

	analyzer := mythril.NewAnalyzer(&mythril.Config{
		Binary:           cfg.Mythril.Binary,
		MaxDepth:         cfg.Mythril.MaxDepth,
		ExecutionTimeout: cfg.Mythril.ExecutionTimeout,
		InfuraID:         cfg.Mythril.InfuraID,
		Runner:           runner,
		Logger:           logger,
	})

	compiler := solc.NewManager(cfg.Compiler.Binary, runner, logger)

	var flattener ports.Flattener
	switch cfg.Flattener.Kind {
	case "command":
		flattener = flatten.NewCommandFlattener(cfg.Flattener.Command, cfg.Flattener.Args, runner)
	default:
		flattener = flatten.NewConcatFlattener()
	}

	fetcher := explorer.NewClient(&explorer.Config{
		BaseURL:   cfg.Explorer.BaseURL,
		APIKey:    cfg.Explorer.APIKey,
		ChainID:   cfg.Explorer.ChainID,
		Timeout:   cfg.Explorer.Timeout,
		RateLimit: cfg.Explorer.RateLimit,
		Logger:    logger,
	})
	if cfg.Explorer.APIKey == "" {
		logger.Warn("no explorer API key configured; source mode requests may be throttled")
	}

	svcCfg := &analysis.Config{
		Fetcher:     fetcher,
		Flattener:   flattener,
		Compiler:    compiler,
		Analyzer:    analyzer,
		Storage:     stateStorage,
		Metrics:     metricsCollector,
		Logger:      logger,
		DefaultMode: domain.AnalysisMode(cfg.Analysis.DefaultMode),
		WorkDir:     cfg.Analysis.WorkDir,
		Timeout:     cfg.Analysis.Timeout,
		CacheTTL:    cfg.Storage.ReportCacheTTL,
	}

	var codeChecker *chain.CodeChecker
	if cfg.Chain.RPCURL != "" {
		codeChecker, err = chain.Dial(ctx, cfg.Chain.RPCURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to node provider", zap.Error(err))
		}
		svcCfg.CodeChecker = codeChecker
	}

	if cfg.SummariesEnabled() {
		summarizer, err := llm.NewSummarizer(&llm.Config{
			Provider:       cfg.LLM.Provider,
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			MaxTokens:      cfg.LLM.MaxTokens,
			RequestTimeout: cfg.LLM.RequestTimeout,
			Metrics:        metricsCollector,
			Logger:         logger,
		})
		if err != nil {
			logger.Fatal("failed to create summarizer", zap.Error(err))
		}
		svcCfg.Summarizer = summarizer
		logger.Info("report summaries enabled",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model))
	}

	service := analysis.NewService(svcCfg)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueSize,
		service,
		stateStorage,
		eventBus,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// API servers
	httpServer := http.NewServer(&http.Config{
		Port:    cfg.HTTPPort,
		Service: service,
		Jobs:    workerPool,
		Health:  workerPool.Health(),
		Storage: stateStorage,
		Logger:  logger,
	})

	wsHandler := websocket.NewHandler(workerPool, eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Addr:   cfg.GetGRPCAddr(),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}
	grpcServer.SetServing(workerPool.Health().IsHealthy())
	workerPool.Health().OnStatus(func(status *workers.HealthStatus) {
		grpcServer.SetServing(status.Healthy)
	})

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("mythgate started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("default_mode", cfg.Analysis.DefaultMode),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if codeChecker != nil {
		codeChecker.Close()
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("mythgate shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
