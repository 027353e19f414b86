package handler

import "github.com/ashwinyue/next-kb/internal/service"

// Handlers 处理器集合
type Handlers struct {
	Knowledge *KnowledgeHandler
	File      *FileHandler
	Search    *SearchHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Knowledge: NewKnowledgeHandler(svc),
		File:      NewFileHandler(svc),
		Search:    NewSearchHandler(svc),
	}
}
