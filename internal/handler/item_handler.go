package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/pkg/errcode"
	"github.com/searchforge/searchforge/internal/pkg/response"
	"github.com/searchforge/searchforge/internal/search"
)

type ItemHandler struct {
	indexer *search.Indexer
}

func NewItemHandler(indexer *search.Indexer) *ItemHandler {
	return &ItemHandler{indexer: indexer}
}

type indexItemRequest struct {
	ServerID string        `json:"server_id"`
	IndexID  string        `json:"index_id"`
	ItemID   string        `json:"item_id"`
	Fields   []model.Field `json:"fields"`
	Language string        `json:"language"`
	Priority string        `json:"priority"`
}

type deleteItemRequest struct {
	ServerID string `json:"server_id"`
	IndexID  string `json:"index_id"`
	ItemID   string `json:"item_id"`
}

func (h *ItemHandler) Index(c *gin.Context) {
	var req indexItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.ServerID == "" || req.IndexID == "" || req.ItemID == "" {
		response.Error(c, errcode.ErrInvalid, "server_id, index_id and item_id are required")
		return
	}
	if err := h.indexer.Index(c.Request.Context(), req.ServerID, req.IndexID, req.ItemID, req.Fields, req.Language, req.Priority); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"indexed": true})
}

func (h *ItemHandler) Delete(c *gin.Context) {
	var req deleteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.ServerID == "" || req.IndexID == "" || req.ItemID == "" {
		response.Error(c, errcode.ErrInvalid, "server_id, index_id and item_id are required")
		return
	}
	if err := h.indexer.Delete(c.Request.Context(), req.ServerID, req.IndexID, req.ItemID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
