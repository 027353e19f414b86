package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Elastic   ElasticConfig
	Vector    VectorConfig
	File      FileConfig
	Ingest    IngestConfig
	Search    SearchConfig
	Providers map[string]ProviderConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// ElasticConfig Elasticsearch 配置
type ElasticConfig struct {
	Host     string
	Username string
	Password string
}

// VectorConfig 向量索引配置
type VectorConfig struct {
	// Driver 取值 es8 或 memory（本地开发/测试）
	Driver string
}

// FileConfig 上传文件存储配置
type FileConfig struct {
	// Type 取值 local 或 minio
	Type    string
	MaxSize int64 // 单文件大小上限（字节）
	Local   LocalFileConfig
	MinIO   MinIOConfig
}

// LocalFileConfig 本地存储配置
type LocalFileConfig struct {
	BasePath string
}

// MinIOConfig MinIO 存储配置
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// IngestConfig 摄取管道调优参数
type IngestConfig struct {
	PollInterval      int // 轮询间隔（秒）
	ErrorBackoff      int // 循环级错误退避（秒）
	ProcessingTimeout int // processing 租约超时（秒）
	BatchSize         int // 每批向量化的分块数
	BatchDelayMs      int // 批间延迟（毫秒）
	ChunkSize         int // 分块长度（rune）
	ChunkOverlap      int // 相邻分块重叠（rune）
}

// SearchConfig 检索配置
type SearchConfig struct {
	CandidateK  int // 向量召回候选数
	TopK        int // 最终返回条数
	CacheTTLSec int // redis 结果缓存 TTL（秒）
}

// ProviderConfig 模型提供商配置
// Type 取值 openai / dashscope / ollama / jina（OpenAI 兼容 rerank 端点也走 openai 类型）
type ProviderConfig struct {
	Type    string
	APIKey  string
	BaseURL string
	Timeout int
}

// DefaultProvider 未带 provider 前缀的模型串回退到的提供商 ID
const DefaultProvider = "openai"

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("NEXT_KB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "next-kb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "next_kb")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	// Elastic
	v.SetDefault("elastic.host", "http://localhost:9200")

	// Vector
	v.SetDefault("vector.driver", "es8")

	// File
	v.SetDefault("file.type", "local")
	v.SetDefault("file.maxSize", 100<<20)
	v.SetDefault("file.local.basePath", "./data/files")

	// Ingest
	v.SetDefault("ingest.pollInterval", 3)
	v.SetDefault("ingest.errorBackoff", 10)
	v.SetDefault("ingest.processingTimeout", 300)
	v.SetDefault("ingest.batchSize", 100)
	v.SetDefault("ingest.batchDelayMs", 100)
	v.SetDefault("ingest.chunkSize", 512)
	v.SetDefault("ingest.chunkOverlap", 50)

	// Search
	v.SetDefault("search.candidateK", 1000)
	v.SetDefault("search.topK", 5)
	v.SetDefault("search.cacheTTLSec", 30)
}
