package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-kb/internal/service"
	"github.com/ashwinyue/next-kb/internal/vectorstore"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	svc *service.Services
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(svc *service.Services) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// Search 相似度检索
func (h *SearchHandler) Search(c *gin.Context) {
	kbID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	results, err := h.svc.Search.Search(c.Request.Context(), kbID, req.Query, req.TopK)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, results)
}

// ReadChunksRequest 分块读取请求
type ReadChunksRequest struct {
	Refs []vectorstore.ChunkRef `json:"refs" binding:"required"`
}

// ReadChunks 按 (file, chunkIndex) 键批量读取分块内容
func (h *SearchHandler) ReadChunks(c *gin.Context) {
	kbID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ReadChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	chunks, err := h.svc.Search.ReadChunks(c.Request.Context(), kbID, req.Refs)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, chunks)
}
