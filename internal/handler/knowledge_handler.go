package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-kb/internal/service"
	"github.com/ashwinyue/next-kb/internal/service/knowledge"
)

// KnowledgeHandler 知识库处理器
type KnowledgeHandler struct {
	svc *service.Services
}

// NewKnowledgeHandler 创建知识库处理器
func NewKnowledgeHandler(svc *service.Services) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// CreateKnowledgeBase 创建知识库
func (h *KnowledgeHandler) CreateKnowledgeBase(c *gin.Context) {
	var req knowledge.CreateKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	kb, err := h.svc.Knowledge.CreateKnowledgeBase(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, kb)
}

// GetKnowledgeBase 获取知识库
func (h *KnowledgeHandler) GetKnowledgeBase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	kb, err := h.svc.Knowledge.GetKnowledgeBase(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, kb)
}

// ListKnowledgeBases 列出知识库
func (h *KnowledgeHandler) ListKnowledgeBases(c *gin.Context) {
	page, pageSize := getPagination(c)

	kbs, total, err := h.svc.Knowledge.ListKnowledgeBases(c.Request.Context(), page, pageSize)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, kbs, total, page, pageSize)
}

// UpdateKnowledgeBase 更新知识库
func (h *KnowledgeHandler) UpdateKnowledgeBase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req knowledge.UpdateKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	kb, err := h.svc.Knowledge.UpdateKnowledgeBase(c.Request.Context(), id, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, kb)
}

// DeleteKnowledgeBase 删除知识库及其全部文件与向量
func (h *KnowledgeHandler) DeleteKnowledgeBase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Knowledge.DeleteKnowledgeBase(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}
