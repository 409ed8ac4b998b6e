package handler_test

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/searchforge/searchforge/internal/embedcache"
	"github.com/searchforge/searchforge/internal/handler"
	"github.com/searchforge/searchforge/internal/queue"
	"github.com/searchforge/searchforge/internal/repo"
	"github.com/searchforge/searchforge/internal/search"
	"github.com/searchforge/searchforge/test/testutil"
)

func setupRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	itemRepo := repo.NewItemRepo(db)
	queueRepo := repo.NewQueueRepo(db)

	cache := embedcache.NewCache(embedcache.NewMemoryStore(64, time.Hour), embedcache.Config{TTL: time.Hour})
	mgr := queue.NewManager(queueRepo, queue.Config{
		Enabled:              true,
		DefaultServerEnabled: true,
		BatchSize:            50,
	})

	// No AI provider in tests; search degrades to the text arm.
	searcher := search.NewSearcher(itemRepo, nil, search.Weights{})
	indexer := search.NewIndexer(itemRepo, nil, mgr)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"), handler.RouterDeps{
		Search: handler.NewSearchHandler(searcher),
		Items:  handler.NewItemHandler(indexer),
		Admin:  handler.NewAdminHandler(mgr, cache, indexer),
	})
	return router, cleanup
}
