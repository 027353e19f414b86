package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-kb/internal/handler"
	"github.com/ashwinyue/next-kb/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Knowledge 知识库
		kb := v1.Group("/knowledge-bases")
		{
			kb.POST("", h.Knowledge.CreateKnowledgeBase)
			kb.GET("", h.Knowledge.ListKnowledgeBases)
			kb.GET("/:id", h.Knowledge.GetKnowledgeBase)
			kb.PUT("/:id", h.Knowledge.UpdateKnowledgeBase)
			kb.DELETE("/:id", h.Knowledge.DeleteKnowledgeBase)

			// 文件
			kb.POST("/:id/files", h.File.UploadFile)
			kb.POST("/:id/files/register", h.File.RegisterFile)
			kb.GET("/:id/files", h.File.ListFiles)

			// 检索
			kb.POST("/:id/search", h.Search.Search)
			kb.POST("/:id/chunks/read", h.Search.ReadChunks)
		}

		// File 文件
		files := v1.Group("/files")
		{
			files.GET("/:fileId", h.File.GetFile)
			files.DELETE("/:fileId", h.File.DeleteFile)
			files.POST("/:fileId/retry", h.File.RetryFile)
			files.POST("/:fileId/pause", h.File.PauseFile)
			files.POST("/:fileId/resume", h.File.ResumeFile)
		}
	}

	return r
}
