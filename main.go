package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/raushankrgupta/fitly-shop-links/api"
	"github.com/raushankrgupta/fitly-shop-links/config"
	"github.com/raushankrgupta/fitly-shop-links/enrich"
	"github.com/raushankrgupta/fitly-shop-links/generator"
	"github.com/raushankrgupta/fitly-shop-links/inspect"
	"github.com/raushankrgupta/fitly-shop-links/metrics"
	"github.com/raushankrgupta/fitly-shop-links/search"
	"github.com/raushankrgupta/fitly-shop-links/store"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

func main() {
	config.LoadConfig()

	logger, err := utils.NewLogger(config.LogMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Storage
	links, jobs, closeStore := openStore(ctx, logger)
	defer closeStore()

	// Search
	var cache search.Cache
	if config.CacheRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.CacheRedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, search cache may miss", "addr", config.CacheRedisAddr, "error", err)
		}
		cache = search.NewRedisCache(rdb, config.CacheTTL)
	}
	if config.SerpAPIKey == "" {
		logger.Warn("SERPAPI_KEY is not set, every search will fail")
	}
	client := &http.Client{}
	provider := search.NewSerpAPIProvider(config.SearchOptions(""), client, cache, logger, m)
	catalogSearch := provider
	if provider.Mode() != search.ModeCatalog {
		catalogSearch = search.NewSerpAPIProvider(config.SearchOptions(search.ModeCatalog), client, cache, logger, m)
	}

	// Enrichment
	orch := enrich.New(provider, links, config.EnrichOptions(), logger, m)
	if config.InspectLinks {
		orch.WithInspector(inspect.New(inspect.NewFetcher(config.InspectBrowserFallback, logger), logger))
	}

	var hooks []enrich.CompletionHook
	var presign enrich.Presigner
	if config.AWSBucketName != "" {
		archive, err := utils.NewSnapshotArchive(ctx, config.AWSRegion, config.AWSBucketName)
		if err != nil {
			logger.Warn("snapshot archive disabled", "error", err)
		} else {
			hooks = append(hooks, enrich.SnapshotHook(archive))
			presign = archive
		}
	}
	if config.SendGridAPIKey != "" {
		mailer, err := utils.NewEmailNotifier(config.SendGridAPIKey, config.NotifyFromEmail, logger)
		if err != nil {
			logger.Warn("email notifications disabled", "error", err)
		} else {
			hooks = append(hooks, enrich.EmailHook(mailer, presign))
		}
	}
	runner := enrich.NewJobRunner(orch, jobs, links, logger, m, hooks...)

	// Generation
	gen := &generator.Fallback{Secondary: generator.NewCatalog(), Logger: logger}
	if config.GeminiAPIKey != "" {
		gemini, err := generator.NewGemini(ctx, config.GeminiAPIKey, config.GeminiModel)
		if err != nil {
			logger.Warn("gemini unavailable, serving catalog outfits", "error", err)
		} else {
			defer gemini.Close()
			gen.Primary = gemini
		}
	}

	router := api.NewRouter(&api.Handler{
		Enricher:  orch,
		Jobs:      runner,
		Links:     links,
		Search:    catalogSearch,
		Generator: gen,
		Gatherer:  reg,
		JWTSecret: config.JWTSecret,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", "port", config.Port, "search_mode", string(provider.Mode()))
		fmt.Printf("Usage: curl \"http://localhost:%s/api/search?q=<query>\"\n", config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error("job runner shutdown", "error", err)
	}
}

// openStore picks the configured backend and bootstraps indexes once.
func openStore(ctx context.Context, logger *utils.Logger) (store.LinkStore, store.JobStore, func()) {
	if config.StoreBackend == "memory" {
		logger.Warn("using in-memory store, links are lost on restart")
		mem := store.NewMemoryStore()
		return mem, mem, func() {}
	}

	client, err := utils.ConnectMongo(ctx, config.MongoURI)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", "error", err)
	}
	db := client.Database(config.DBName)
	links := store.NewMongoLinkStore(db)
	if err := links.EnsureIndexes(ctx); err != nil {
		logger.Fatal("failed to create indexes", "error", err)
	}

	return links, store.NewMongoJobStore(db), func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Error("mongo disconnect", "error", err)
		}
	}
}
