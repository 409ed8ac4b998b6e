package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/searchforge/searchforge/internal/ai"
	"github.com/searchforge/searchforge/internal/config"
	"github.com/searchforge/searchforge/internal/db"
	"github.com/searchforge/searchforge/internal/embedcache"
	"github.com/searchforge/searchforge/internal/handler"
	"github.com/searchforge/searchforge/internal/job"
	"github.com/searchforge/searchforge/internal/middleware"
	"github.com/searchforge/searchforge/internal/queue"
	"github.com/searchforge/searchforge/internal/repo"
	"github.com/searchforge/searchforge/internal/schedule"
	"github.com/searchforge/searchforge/internal/search"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "searchforge",
		Short: "hybrid search server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run searchforge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("queue_enabled", cfg.Queue.Enabled),
	)

	cacheRepo, err := repo.NewCacheRepo(conn, cfg.Cache.Compression)
	if err != nil {
		return fmt.Errorf("init cache repo: %w", err)
	}
	itemRepo := repo.NewItemRepo(conn)
	queueRepo := repo.NewQueueRepo(conn)

	var cacheStore embedcache.Store = cacheRepo
	if cfg.Cache.Backend == "memory" {
		cacheStore = embedcache.NewMemoryStore(cfg.Cache.MemorySize, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}
	cache := embedcache.NewCache(cacheStore, embedcache.Config{
		TTL:                time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		MaxEntries:         cfg.Cache.MaxEntries,
		CleanupProbability: cfg.Cache.CleanupProbability,
	})

	embedder, modelVersion, err := buildEmbedder(cfg.AI)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	cachedEmbedder := search.NewCachedEmbedder(cache, embedder, modelVersion, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)

	mgr := queue.NewManager(queueRepo, queue.Config{
		Enabled:              cfg.Queue.Enabled,
		DefaultServerEnabled: cfg.Queue.DefaultServerEnabled,
		ServerOverrides:      cfg.Queue.ServerOverrides,
		BatchSize:            cfg.Queue.BatchSize,
		MaxProcessing:        time.Duration(cfg.Queue.MaxProcessingSeconds) * time.Second,
		LeaseTimeout:         time.Duration(cfg.Queue.LeaseTimeoutSeconds) * time.Second,
		MaxAttempts:          cfg.Queue.MaxAttempts,
		Priorities: queue.Priorities{
			High:   cfg.Queue.Priorities.High,
			Normal: cfg.Queue.Priorities.Normal,
			Low:    cfg.Queue.Priorities.Low,
		},
	})
	worker := search.NewWorker(itemRepo, cachedEmbedder, mgr)
	worker.Register()

	indexer := search.NewIndexer(itemRepo, cachedEmbedder, mgr)
	searcher := search.NewSearcher(itemRepo, cachedEmbedder, search.Weights{
		Text:      cfg.Hybrid.TextWeight,
		Vector:    cfg.Hybrid.VectorWeight,
		Threshold: cfg.Hybrid.SimilarityThreshold,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewScheduler()
	if cfg.Queue.Enabled {
		budget := time.Duration(cfg.Queue.MaxProcessingSeconds) * time.Second
		if err := scheduler.Register(job.NewQueueWorkerJob(mgr, 500, budget), "* * * * *"); err != nil {
			return err
		}
		if err := scheduler.Register(job.NewLeaseReclaimJob(queueRepo), "*/10 * * * *"); err != nil {
			return err
		}
		if err := scheduler.Register(job.NewEmbeddingBackfillJob(worker, 200), "*/15 * * * *"); err != nil {
			return err
		}
	}
	if cfg.Cache.Backend == "db" {
		if err := scheduler.Register(job.NewCacheMaintenanceJob(cache), "0 * * * *"); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Search: handler.NewSearchHandler(searcher),
		Items:  handler.NewItemHandler(indexer),
		Admin:  handler.NewAdminHandler(mgr, cache, indexer),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.API.CORSAllowlist),
			middleware.RateLimit(time.Duration(cfg.API.RateLimitMS)*time.Millisecond),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, string, error) {
	if len(cfg.Providers) == 0 {
		return nil, "", fmt.Errorf("at least one ai provider is required")
	}
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		provider, err := ai.NewProvider(pc.Provider, pc.Args)
		if err != nil {
			return nil, "", fmt.Errorf("init ai provider %s: %w", pc.Provider, err)
		}
		name := pc.Name
		if name == "" {
			name = pc.Provider
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     name,
			Embedder: ai.NewEmbedder(provider, pc.Model),
		})
	}
	return ai.NewGroupEmbedder(entries), cfg.Providers[0].ModelVersion, nil
}
