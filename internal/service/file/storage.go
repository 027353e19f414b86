// Package file 提供上传文件的持久化存储
// 摄取管道通过 Storage 回读文件内容做解析
package file

import (
	"context"
	"fmt"
	"io"

	"github.com/ashwinyue/next-kb/internal/config"
)

// Storage 文件存储接口
type Storage interface {
	// Save 保存文件，返回存储内路径
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get 获取文件内容
	Get(ctx context.Context, filePath string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, filePath string) error
}

// SaveRequest 保存文件请求
type SaveRequest struct {
	KnowledgeBaseID int64
	FileName        string
	ContentType     string
	Size            int64
	Reader          io.Reader
}

// NewStorage 按配置创建文件存储
func NewStorage(cfg *config.FileConfig) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		basePath := cfg.Local.BasePath
		if basePath == "" {
			basePath = "./data/files"
		}
		return NewLocalStorage(basePath)
	case "minio":
		return NewMinIOStorage(&cfg.MinIO)
	default:
		return nil, fmt.Errorf("unsupported file storage type: %s", cfg.Type)
	}
}
