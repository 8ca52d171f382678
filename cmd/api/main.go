package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/cache"
	"github.com/GTDGit/garimpo_api/internal/config"
	"github.com/GTDGit/garimpo_api/internal/database"
	"github.com/GTDGit/garimpo_api/internal/enrichment"
	"github.com/GTDGit/garimpo_api/internal/finance"
	"github.com/GTDGit/garimpo_api/internal/handler"
	"github.com/GTDGit/garimpo_api/internal/middleware"
	"github.com/GTDGit/garimpo_api/internal/repository"
	"github.com/GTDGit/garimpo_api/internal/service"
	"github.com/GTDGit/garimpo_api/internal/sse"
	"github.com/GTDGit/garimpo_api/internal/store"
	"github.com/GTDGit/garimpo_api/internal/worker"
)

// main is the application entrypoint for the garimpo catalog API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("storage", string(cfg.Storage)).Msg("starting garimpo api")

	if err := run(cfg); err != nil {
		fatal(err)
	}
}

// run wires every dependency and serves until SIGINT/SIGTERM. Resources are
// released by its deferred calls before any error reaches main.
func run(cfg *config.Config) error {
	// 3. Connect to Redis (optional)
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled() {
		var err error
		redisClient, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			if cfg.LocalCache.Backend == "redis" {
				return fmt.Errorf("redis connection failed: %w", err)
			}
			log.Warn().Err(err).Msg("redis unavailable, enrichment cache disabled")
		} else {
			defer redisClient.Close()
			log.Info().Msg("redis connected successfully")
		}
	}

	// 4. Local fallback cache
	var kv cache.KeyValue
	if redisClient != nil {
		kv = redisClient
	}
	backend, err := cache.NewBackend(&cfg.LocalCache, kv)
	if err != nil {
		return fmt.Errorf("local cache initialization failed: %w", err)
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}
	localCache := cache.NewLocalCache(backend)
	outbox := cache.NewOutbox(backend)
	log.Info().Str("backend", cfg.LocalCache.Backend).Str("path", cfg.LocalCache.Path).Msg("local cache ready")

	// 5. Remote store (only when the strategy asks for it)
	var remote store.Remote
	var migrator *database.SchemaMigrator
	if cfg.Storage == config.StorageRemote {
		db, err := database.Connect(&cfg.DB)
		connected := err == nil
		if err != nil {
			// Keep running on the local cache; migrations run once the database answers.
			log.Error().Err(err).Msg("database unreachable at startup, running degraded")
			db, err = database.Open(&cfg.DB)
			if err != nil {
				return fmt.Errorf("database configuration invalid: %w", err)
			}
		}
		defer db.Close()

		migrator = database.NewSchemaMigrator(db, "file://migrations")
		if connected {
			migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
			_, err := migrator.Ensure(migrateCtx)
			migrateCancel()
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
		remote = repository.NewProductRepository(db)
	}

	adapter, err := store.NewAdapter(cfg.Storage, remote, localCache, outbox)
	if err != nil {
		return fmt.Errorf("record store initialization failed: %w", err)
	}

	// 6. Enrichment gateway
	var generator enrichment.Generator
	if cfg.Gemini.APIKey != "" {
		gemini, err := enrichment.NewGeminiGenerator(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Warn().Err(err).Msg("gemini client initialization failed - enrichment disabled")
		} else {
			gemini.SetSearchGrounding(cfg.Gemini.SearchGrounding)
			generator = gemini
			log.Info().Str("model", cfg.Gemini.Model).Bool("search_grounding", cfg.Gemini.SearchGrounding).Msg("enrichment gateway enabled")
		}
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set - enrichment disabled, manual defaults apply")
	}
	var enrichmentCache *cache.EnrichmentCache
	if redisClient != nil && cfg.Gemini.CacheTTL > 0 {
		enrichmentCache = cache.NewEnrichmentCache(redisClient, cfg.Gemini.CacheTTL)
	}
	gateway := enrichment.NewGateway(generator, enrichmentCache, cfg.Gemini.Timeout)

	// 7. Catalog service
	model := finance.NewModel(finance.Thresholds{
		Profitable: cfg.Finance.ProfitableROI,
		Caution:    cfg.Finance.CautionROI,
	}, cfg.Finance.AssumedClicksPerSale)
	catalog := service.NewCatalogService(adapter, gateway, model)
	hub := sse.NewHub()
	catalog.SetNotifier(sse.NewHubNotifier(hub))

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := catalog.Load(loadCtx); err != nil {
		log.Warn().Err(err).Msg("initial catalog load incomplete")
	}
	loadCancel()

	// 8. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, &Handlers{
		Health:  handler.NewHealthHandler(adapter),
		Catalog: handler.NewCatalogHandler(catalog),
		SSE:     handler.NewSSEHandler(hub),
	})

	// 9. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 10. Start workers
	if cfg.Storage == config.StorageRemote {
		resync := worker.NewResyncWorker(adapter, catalog, cfg.Worker.ResyncInterval)
		resync.SetSchema(migrator)
		go resync.Start(ctx)
	}

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 12. Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
	return nil
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Catalog *handler.CatalogHandler
	SSE     *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers) {
	v1 := router.Group("/v1")

	v1.GET("/health", handlers.Health.GetHealth)
	v1.GET("/meta/options", handlers.Catalog.GetOptions)
	v1.POST("/enrichment/preview", handlers.Catalog.PreviewEnrichment)
	v1.GET("/events", handlers.SSE.Stream)

	products := v1.Group("/products")
	{
		products.GET("", handlers.Catalog.ListProducts)
		products.POST("", handlers.Catalog.CreateProduct)
		products.GET("/:id", handlers.Catalog.GetProduct)
		products.DELETE("/:id", handlers.Catalog.DeleteProduct)
		products.POST("/:id/enrich", handlers.Catalog.EnrichProduct)
		products.PATCH("/:id/performance", handlers.Catalog.UpdatePerformance)
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// fatal logs err and exits. Only called once run has released its resources.
func fatal(err error) {
	log.Error().Err(err).Msg("startup failed")
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}
