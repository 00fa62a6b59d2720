package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kultuurivoog/internal/cache"
	"kultuurivoog/internal/config"
	cronrunner "kultuurivoog/internal/cron"
	"kultuurivoog/internal/db"
	"kultuurivoog/internal/handler"
	"kultuurivoog/internal/logger"
	"kultuurivoog/internal/metrics"
	gormrepository "kultuurivoog/internal/repository/gorm"
	"kultuurivoog/internal/scraper"
	"kultuurivoog/internal/service"
)

func main() {
	cfgPath := os.Getenv("KV_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("KV_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		logger.Warn("unknown app timezone, using UTC", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
		loc = time.UTC
	}
	clock := func() time.Time { return time.Now().In(loc) }

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}
	store := gormrepository.New(dbConn.Gorm)
	if err := store.EnsureViews(context.Background()); err != nil {
		logger.Fatal("create read views failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheCtx, cancelCache := context.WithTimeout(ctx, 3*time.Second)
	statusStore, err := cache.Open(cacheCtx, cfg.StatusCache)
	cancelCache()
	if err != nil {
		logger.Warn("redis status cache unavailable, using memory", zap.String("addr", cfg.StatusCache.RedisAddr), zap.Error(err))
		statusStore = cache.NewMemoryStore()
	}
	if closer, ok := statusStore.(io.Closer); ok {
		defer closer.Close()
	}
	statusCache := &service.StatusCache{
		Store: statusStore,
		Key:   cfg.StatusCache.Key,
		TTL:   cfg.StatusCache.TTL,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	fetcher := scraper.NewFetcher(cfg.Fetch, logger)
	var adapters []scraper.SourceAdapter
	if cfg.Sources.Teater.Enabled {
		teater := scraper.NewTeaterAdapter(cfg.Sources.Teater, cfg.Fetch, fetcher, logger)
		teater.Now = clock
		adapters = append(adapters, teater)
	}
	if cfg.Sources.Concert.Enabled {
		concert := scraper.NewConcertAdapter(cfg.Sources.Concert, fetcher, logger)
		concert.Now = clock
		adapters = append(adapters, concert)
	}
	if len(adapters) == 0 {
		logger.Warn("no sources enabled, refresh cycles will only run cleanup")
	}

	refreshService := &service.RefreshService{
		Adapters:     adapters,
		Merge:        &service.MergeStore{Repo: store, Logger: logger},
		Cleanup:      &service.CleanupEngine{Repo: store, Logger: logger},
		Views:        &service.ViewMaterializer{Repo: store, Logger: logger},
		Repo:         store,
		Status:       statusCache,
		Metrics:      recorder,
		Logger:       logger.Named("refresh"),
		Parallel:     cfg.Refresh.Parallel,
		CycleTimeout: cfg.Refresh.CycleTimeout,
	}
	queryService := &service.EventQueryService{
		Repo:     store,
		Logger:   logger,
		Location: loc,
		Now:      clock,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: store}
	healthHandler.Register(engine)
	eventsHandler := &handler.EventsHandler{Query: queryService, Location: loc}
	eventsHandler.Register(engine)
	statusHandler := &handler.StatusHandler{
		Refresh:    refreshService,
		Status:     statusCache,
		Repo:       store,
		Logger:     logger,
		RunHistory: cfg.Refresh.RunHistory,
		BaseCtx:    ctx,
	}
	statusHandler.Register(engine)
	registerDocs(engine)

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	refreshJob := func(ctx context.Context) {
		status, err := refreshService.TryRunRefreshCycle(ctx)
		if err != nil {
			logger.Warn("refresh cycle did not complete", zap.Error(err))
			return
		}
		logger.Info("cron refresh cycle ok",
			zap.String("cycle_id", status.CycleID),
			zap.String("outcome", status.Outcome()),
			zap.Int("parsed", status.ParsedTotal),
			zap.Int64("view_clean", status.Views.Clean),
			zap.Int64("view_adults", status.Views.Adults),
		)
	}
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.Refresh, refreshJob); err != nil {
			logger.Fatal("cron register refresh failed", zap.String("spec", cfg.Cron.Refresh), zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}
	if cfg.Cron.RunOnStart {
		cronRunner.RunNow("refresh", refreshJob)
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
