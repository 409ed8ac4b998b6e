package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/searchforge/searchforge/internal/embedcache"
	"github.com/searchforge/searchforge/internal/pkg/errcode"
	"github.com/searchforge/searchforge/internal/pkg/response"
	"github.com/searchforge/searchforge/internal/queue"
	"github.com/searchforge/searchforge/internal/search"
)

type AdminHandler struct {
	mgr     *queue.Manager
	cache   *embedcache.Cache
	indexer *search.Indexer
}

func NewAdminHandler(mgr *queue.Manager, cache *embedcache.Cache, indexer *search.Indexer) *AdminHandler {
	return &AdminHandler{mgr: mgr, cache: cache, indexer: indexer}
}

func (h *AdminHandler) QueueStats(c *gin.Context) {
	stats, err := h.mgr.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

type processQueueRequest struct {
	MaxItems      int `json:"max_items"`
	BudgetSeconds int `json:"budget_seconds"`
}

// ProcessQueue runs one bounded queue round. An empty body means defaults.
func (h *AdminHandler) ProcessQueue(c *gin.Context) {
	var req processQueueRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.MaxItems <= 0 {
		req.MaxItems = 100
	}
	budget := time.Duration(req.BudgetSeconds) * time.Second
	result, err := h.mgr.Process(c.Request.Context(), req.MaxItems, budget)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AdminHandler) ClearQueue(c *gin.Context) {
	serverID := c.Query("server_id")
	cleared, err := h.mgr.Clear(c.Request.Context(), serverID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cleared": cleared})
}

type reindexRequest struct {
	ServerID  string `json:"server_id"`
	IndexID   string `json:"index_id"`
	BatchSize int    `json:"batch_size"`
	Priority  string `json:"priority"`
}

func (h *AdminHandler) Reindex(c *gin.Context) {
	var req reindexRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.ServerID == "" || req.IndexID == "" {
		response.Error(c, errcode.ErrInvalid, "server_id and index_id are required")
		return
	}
	if !h.mgr.EnabledForServer(req.ServerID) {
		response.Error(c, errcode.ErrQueueDisabled, "embedding queue disabled for this server")
		return
	}
	if err := h.indexer.Reindex(c.Request.Context(), req.ServerID, req.IndexID, req.BatchSize, req.Priority); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"scheduled": true})
}

type invalidateCacheRequest struct {
	Key string `json:"key"`
}

func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	var req invalidateCacheRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Key == "" {
		response.Error(c, errcode.ErrInvalid, "key is required")
		return
	}
	if err := h.cache.Invalidate(c.Request.Context(), req.Key); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"invalidated": true})
}

func (h *AdminHandler) ClearCache(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cleared": true})
}

func (h *AdminHandler) CacheStats(c *gin.Context) {
	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
