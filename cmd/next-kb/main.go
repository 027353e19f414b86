package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/database"
	"github.com/ashwinyue/next-kb/internal/handler"
	"github.com/ashwinyue/next-kb/internal/repository"
	"github.com/ashwinyue/next-kb/internal/router"
	"github.com/ashwinyue/next-kb/internal/service"
	"github.com/ashwinyue/next-kb/internal/service/file"
	"github.com/ashwinyue/next-kb/internal/vectorstore"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connected: %s", cfg.Database.DBName)

	// 初始化 Redis（可选，仅用于检索缓存）
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	// 初始化向量索引
	index, err := newVectorIndex(cfg)
	if err != nil {
		log.Fatalf("Failed to init vector index: %v", err)
	}

	// 初始化文件存储
	storage, err := file.NewStorage(&cfg.File)
	if err != nil {
		log.Fatalf("Failed to init file storage: %v", err)
	}

	// 初始化各层
	repos := repository.NewRepositories(db)
	services := service.NewServices(cfg, repos, index, storage, redisClient)
	handlers := handler.NewHandlers(services)

	// 初始化路由
	r := router.SetupRouter(handlers)

	// 启动摄取 Worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		services.Worker.Start(workerCtx)
	}()

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 启动服务器
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// 先停 Worker：引擎会把在制文件放回 paused
	stopWorker()
	wg.Wait()

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// newVectorIndex 按配置创建向量索引
func newVectorIndex(cfg *config.Config) (vectorstore.Index, error) {
	switch cfg.Vector.Driver {
	case "memory":
		log.Printf("Using in-memory vector index (development mode)")
		return vectorstore.NewMemoryIndex(), nil
	default:
		client, err := vectorstore.NewES8Client(cfg)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewES8Index(client), nil
	}
}
