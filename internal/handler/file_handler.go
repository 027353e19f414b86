package handler

import (
	"mime"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-kb/internal/service"
	"github.com/ashwinyue/next-kb/internal/service/knowledge"
)

// FileHandler 知识库文件处理器
type FileHandler struct {
	svc *service.Services
}

// NewFileHandler 创建文件处理器
func NewFileHandler(svc *service.Services) *FileHandler {
	return &FileHandler{svc: svc}
}

// UploadFile 上传文件（multipart 表单，字段名 file）
// 文件登记为 pending，由后台 Worker 异步摄取
func (h *FileHandler) UploadFile(c *gin.Context) {
	kbID, ok := pathID(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		Error(c, err)
		return
	}
	defer src.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fileHeader.Filename))
	}

	f, err := h.svc.Knowledge.UploadFile(c.Request.Context(), kbID, &knowledge.UploadFileRequest{
		Filename: fileHeader.Filename,
		MimeType: mimeType,
		Size:     fileHeader.Size,
		Reader:   src,
	})
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, f)
}

// RegisterFile 登记存储中已存在的文件
func (h *FileHandler) RegisterFile(c *gin.Context) {
	kbID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req knowledge.RegisterFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	f, err := h.svc.Knowledge.RegisterFile(c.Request.Context(), kbID, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, f)
}

// GetFile 获取文件详情（含摄取进度）
func (h *FileHandler) GetFile(c *gin.Context) {
	id, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	f, err := h.svc.Knowledge.GetFile(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, f)
}

// ListFiles 列出知识库下的文件
func (h *FileHandler) ListFiles(c *gin.Context) {
	kbID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, pageSize := getPagination(c)

	files, total, err := h.svc.Knowledge.ListFiles(c.Request.Context(), kbID, page, pageSize)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, files, total, page, pageSize)
}

// DeleteFile 删除文件及其向量
func (h *FileHandler) DeleteFile(c *gin.Context) {
	id, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	if err := h.svc.Knowledge.DeleteFile(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// RetryFile 重试失败的文件
func (h *FileHandler) RetryFile(c *gin.Context) {
	id, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	if err := h.svc.Knowledge.RetryFile(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"id": id, "status": "pending"})
}

// PauseFile 暂停摄取中的文件
func (h *FileHandler) PauseFile(c *gin.Context) {
	id, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	if err := h.svc.Knowledge.PauseFile(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"id": id, "status": "paused"})
}

// ResumeFile 恢复暂停的文件
func (h *FileHandler) ResumeFile(c *gin.Context) {
	id, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	if err := h.svc.Knowledge.ResumeFile(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"id": id, "status": "pending"})
}
