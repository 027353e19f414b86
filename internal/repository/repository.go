package repository

import "github.com/ashwinyue/next-kb/internal/database"

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB        *database.DB // 直接访问数据库
	Knowledge KnowledgeRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		DB:        db,
		Knowledge: NewKnowledgeRepository(db),
	}
}
