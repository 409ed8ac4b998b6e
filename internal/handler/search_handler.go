package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/pkg/errcode"
	"github.com/searchforge/searchforge/internal/pkg/response"
	"github.com/searchforge/searchforge/internal/search"
)

type SearchHandler struct {
	searcher *search.Searcher
}

func NewSearchHandler(searcher *search.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.ServerID == "" || req.IndexID == "" {
		response.Error(c, errcode.ErrInvalid, "server_id and index_id are required")
		return
	}
	results, err := h.searcher.Search(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"results": results,
		"count":   len(results),
	})
}
