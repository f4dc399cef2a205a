// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitequery-ai/search-orchestrator/internal/config"
	"github.com/sitequery-ai/search-orchestrator/internal/handler"
	"github.com/sitequery-ai/search-orchestrator/internal/llm"
	"github.com/sitequery-ai/search-orchestrator/internal/middleware"
	natsclient "github.com/sitequery-ai/search-orchestrator/internal/nats"
	"github.com/sitequery-ai/search-orchestrator/internal/ranking"
	"github.com/sitequery-ai/search-orchestrator/internal/retrieval"
	"github.com/sitequery-ai/search-orchestrator/internal/service"
	"github.com/sitequery-ai/search-orchestrator/internal/store"
	"github.com/sitequery-ai/search-orchestrator/internal/vector"
	"github.com/sitequery-ai/search-orchestrator/pkg/logger"
	"github.com/sitequery-ai/search-orchestrator/pkg/tracing"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting query orchestrator")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "search-orchestrator", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Session storage.
	var (
		sessionStore store.Store
		natsClient   *natsclient.Client
	)
	switch cfg.StoreProvider {
	case "jetstream":
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		js := store.NewJetStreamStore(natsClient)
		if err := js.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure session stream", zap.Error(err))
			os.Exit(1)
		}
		sessionStore = js
	case "file":
		sessionStore, err = store.NewFileStore(cfg.StoreDir)
		if err != nil {
			log.Error("failed to open session directory", zap.Error(err))
			os.Exit(1)
		}
	default:
		sessionStore = store.NewMemoryStore()
	}
	log.Info("session store ready", zap.String("provider", cfg.StoreProvider))

	// LLM client for decontextualization and scoring.
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" && cfg.DefaultLLM != "openai" {
		if c, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey); err != nil {
			log.Warn("failed to create Anthropic client, LLM features disabled", zap.Error(err))
		} else {
			llmClient = c
		}
	} else if cfg.OpenAIAPIKey != "" {
		if c, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey); err != nil {
			log.Warn("failed to create OpenAI client, LLM features disabled", zap.Error(err))
		} else {
			llmClient = c
		}
	}

	// Query embedder for the vector backends.
	var embedder llm.Embedder
	if cfg.OpenAIAPIKey != "" {
		oe, err := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, "")
		if err != nil {
			log.Warn("failed to create embedder, vector backends disabled", zap.Error(err))
		} else {
			embedder = oe
		}
	}

	// Site catalog drives capability routing and cross-site fallback.
	siteCatalog, err := config.LoadSiteCatalog(cfg.SiteCatalogPath)
	if err != nil {
		log.Warn("site catalog unavailable, fallback routing disabled", zap.Error(err))
		siteCatalog = &config.SiteCatalog{}
	}

	router := retrieval.NewRouter(siteCatalog, retrieval.RouterConfig{
		AggregateTimeout: cfg.RetrieveTimeout,
	}, log.Logger)

	if embedder != nil {
		for i, dir := range cfg.IndexDirs {
			name := fmt.Sprintf("index-%d", i)
			var backend retrieval.Backend
			if cfg.RemoteVectorURL != "" {
				remote := vector.NewRemoteStore(vector.RemoteConfig{
					URL:        cfg.RemoteVectorURL,
					APIKey:     cfg.RemoteVectorKey,
					Collection: fmt.Sprintf("%s-%d", cfg.RemoteCollection, i),
				}, log.Logger)
				backend, err = retrieval.OpenRemoteBackend(name, dir, remote, embedder, log.Logger)
			} else {
				backend, err = retrieval.OpenLocalBackend(name, dir, embedder, log.Logger)
			}
			if err != nil {
				log.Error("failed to open index", zap.String("dir", dir), zap.Error(err))
				os.Exit(1)
			}
			router.Register(backend)
		}
	} else if len(cfg.IndexDirs) > 0 {
		log.Warn("index directories configured but no embedder available")
	}
	for _, cc := range siteCatalog.Catalogs {
		router.Register(retrieval.NewCatalogBackend(cc, log.Logger))
	}

	// Scoring audit log.
	var recorder *ranking.Recorder
	if cfg.AuditLogPath != "" {
		recorder, err = ranking.NewRecorder(cfg.AuditLogPath, log.Logger)
		if err != nil {
			log.Error("failed to open scoring audit log", zap.Error(err))
			os.Exit(1)
		}
		defer recorder.Close()
	}

	// One ranking engine per scoring mode.
	engineCfg := ranking.EngineConfig{
		Concurrency:  cfg.ScoringConcurrency,
		ScoreTimeout: cfg.ScoreTimeout,
	}
	engines := make(map[ranking.Mode]*ranking.Engine)
	if llmClient != nil {
		for _, mode := range []ranking.Mode{ranking.ModeRelevance, ranking.ModeWho} {
			scorer := ranking.NewLLMScorer(llmClient, mode, cfg.RankingModel)
			engines[mode] = ranking.NewEngine(scorer, engineCfg, recorder, log.Logger)
		}
	} else {
		log.Warn("no LLM configured, ranking on retrieval proximity only")
		engines[ranking.ModeRelevance] = ranking.NewEngine(ranking.RetrievalScorer{}, engineCfg, recorder, log.Logger)
	}

	// Services.
	conversationSvc := service.NewConversationService(sessionStore, cfg.SessionQueueLimit, log)

	var decon service.Decontextualizer = service.NoopDecontextualizer{}
	if llmClient != nil {
		decon = service.NewLLMDecontextualizer(llmClient, "")
	}
	querySvc := service.NewQueryHandler(decon, router, engines, conversationSvc, service.QueryHandlerConfig{
		RetrieveLimit: cfg.RetrieveLimit,
	}, log)

	// Handlers.
	healthHandler := handler.NewHealthHandler(natsClient)
	askHandler := handler.NewAskHandler(querySvc, log)
	chatHandler := handler.NewChatHandler(conversationSvc, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/ask", askHandler.Ask)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/create", chatHandler.Create)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", chatHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", chatHandler.Get)
				r.Post("/participants", chatHandler.AddParticipant)
				r.Delete("/participants/{participantID}", chatHandler.RemoveParticipant)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
