package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/config"
	dbRedis "github.com/kailas-cloud/corag/internal/db/redis"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
	logpkg "github.com/kailas-cloud/corag/internal/logger"
	"github.com/kailas-cloud/corag/internal/metrics"
	corpusrepo "github.com/kailas-cloud/corag/internal/repository/corpus"
	"github.com/kailas-cloud/corag/internal/transport/httpapi"
	llm "github.com/kailas-cloud/corag/internal/transport/openai"
	"github.com/kailas-cloud/corag/internal/transport/tavily"
	craguc "github.com/kailas-cloud/corag/internal/usecase/crag"
	healthuc "github.com/kailas-cloud/corag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/corag/internal/usecase/ingest"
	orchestratoruc "github.com/kailas-cloud/corag/internal/usecase/orchestrator"
	reflectiveuc "github.com/kailas-cloud/corag/internal/usecase/reflective"
	retrieveuc "github.com/kailas-cloud/corag/internal/usecase/retrieve"
	"github.com/kailas-cloud/corag/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting corag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("chat_model", cfg.LLM.ChatModel),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	llmClient := llm.NewClient(&llm.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		ChatModel:       cfg.LLM.ChatModel,
		EmbeddingModel:  cfg.LLM.EmbeddingModel,
		Dimensions:      cfg.LLM.Dimensions,
		MaxAnswerTokens: cfg.LLM.MaxAnswerTokens,
		Logger:          logger,
	})
	embedder := llm.NewEmbedder(llmClient)
	generator := llm.NewGenerator(llmClient)
	reflector := llm.NewReflector(llmClient)

	thresholds := judgment.Thresholds{
		Relevant:  cfg.Pipeline.RelevanceThreshold,
		Ambiguous: cfg.Pipeline.AmbiguousThreshold,
	}
	grader := llm.NewGrader(llmClient, thresholds)

	webSearch := tavily.NewClient(&tavily.Config{
		APIKey:     cfg.WebSearch.APIKey,
		BaseURL:    cfg.WebSearch.BaseURL,
		MaxResults: cfg.WebSearch.MaxResults,
		Timeout:    time.Duration(cfg.WebSearch.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	// Corpus repository over the vector index
	repo := corpusrepo.New(store, cfg.Storage.KeyPrefix, cfg.Storage.IndexName, cfg.LLM.Dimensions).
		WithHNSW(corpusrepo.HNSWConfig{
			M:           cfg.Storage.HNSWM,
			EFConstruct: cfg.Storage.HNSWEFConstruct,
		})
	if err := repo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}

	// Use case services
	retriever := retrieveuc.New(repo, embedder)

	corrective, err := craguc.New(retriever, grader, webSearch, generator, thresholds)
	if err != nil {
		logger.Fatal("Failed to create corrective controller", zap.Error(err))
	}

	reflective, err := reflectiveuc.New(retriever, generator, reflector, reflectiveuc.Config{
		MaxIterations:      cfg.Pipeline.IterationCap(),
		GroundingThreshold: cfg.Pipeline.GroundingThreshold,
	})
	if err != nil {
		logger.Fatal("Failed to create reflective controller", zap.Error(err))
	}

	queries := orchestratoruc.New(retriever, generator, corrective, reflective)
	corpus := ingestuc.New(repo, embedder)
	healthSvc := healthuc.New(store, llmClient)

	server := httpapi.NewServer(
		queries, corpus, healthSvc,
		cfg.Pipeline.DefaultTopK,
		time.Duration(cfg.Pipeline.RequestTimeoutSec)*time.Second,
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
