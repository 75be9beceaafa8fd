// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	NVR           NVRConfig           `yaml:"nvr" mapstructure:"nvr"`
	Media         MediaConfig         `yaml:"media" mapstructure:"media"`
	Analysis      AnalysisConfig      `yaml:"analysis" mapstructure:"analysis"`
	Providers     ProvidersConfig     `yaml:"providers" mapstructure:"providers"`
	Budget        BudgetConfig        `yaml:"budget" mapstructure:"budget"`
	Matching      MatchingConfig      `yaml:"matching" mapstructure:"matching"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	Milvus MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	IndexType          string `yaml:"index_type" mapstructure:"index_type"`
	MetricType         string `yaml:"metric_type" mapstructure:"metric_type"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
}

// NVRConfig 上游摄像头/NVR 媒体源配置
type NVRConfig struct {
	// BaseURL 媒体源根地址，快照/片段路径在其下拼接
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// APIKey 可选的访问令牌
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// FetchTimeout 单次媒体请求超时
	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	// MaxConcurrentPerSource 单源并发抓取上限
	MaxConcurrentPerSource int64 `yaml:"max_concurrent_per_source" mapstructure:"max_concurrent_per_source"`
	// SlotWaitTimeout 等待并发槽位的最长时间，超时返回 busy
	SlotWaitTimeout time.Duration `yaml:"slot_wait_timeout" mapstructure:"slot_wait_timeout"`
	// RetryDelay 失败后唯一一次重试前的固定延迟
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
}

// MediaConfig 媒体处理与帧质量配置
type MediaConfig struct {
	// MaxSubmitWidth 提交给提供商前的最大宽度（像素）
	MaxSubmitWidth int `yaml:"max_submit_width" mapstructure:"max_submit_width"`
	// ThumbnailWidth 缩略图宽度（像素）
	ThumbnailWidth int `yaml:"thumbnail_width" mapstructure:"thumbnail_width"`
	// ThumbnailDir 缩略图落盘目录
	ThumbnailDir string `yaml:"thumbnail_dir" mapstructure:"thumbnail_dir"`
	// FrameCount 多帧模式下抓取的帧数
	FrameCount int `yaml:"frame_count" mapstructure:"frame_count"`
	// MinUsableFrames 质量过滤后保证的最少帧数
	MinUsableFrames int `yaml:"min_usable_frames" mapstructure:"min_usable_frames"`
	// BlurThreshold Laplacian 方差锐度阈值，低于视为模糊
	BlurThreshold float64 `yaml:"blur_threshold" mapstructure:"blur_threshold"`
	// FlatnessThreshold 像素强度标准差阈值，低于视为近纯色帧
	FlatnessThreshold float64 `yaml:"flatness_threshold" mapstructure:"flatness_threshold"`
	// BypassQualityFilter 关闭全部质量评分，原样返回输入
	BypassQualityFilter bool `yaml:"bypass_quality_filter" mapstructure:"bypass_quality_filter"`
}

// AnalysisConfig 分析编排配置
type AnalysisConfig struct {
	// DefaultMode 未按摄像头配置时的首选分析模式
	DefaultMode string `yaml:"default_mode" mapstructure:"default_mode"`
	// LowConfidenceCutoff 低置信度阈值（0-100）
	LowConfidenceCutoff int `yaml:"low_confidence_cutoff" mapstructure:"low_confidence_cutoff"`
}

// ProvidersConfig AI 描述提供商配置
type ProvidersConfig struct {
	Default   string                    `yaml:"default" mapstructure:"default"`
	Providers map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig 单个提供商配置
type ProviderConfig struct {
	// Kind 提供商变体：openai / gemini / ollama
	Kind        string        `yaml:"kind" mapstructure:"kind"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BudgetConfig 预算与费率配置
type BudgetConfig struct {
	// DailyCapUSD 日上限，nil 表示不限
	DailyCapUSD *float64 `yaml:"daily_cap_usd" mapstructure:"daily_cap_usd"`
	// MonthlyCapUSD 月上限，nil 表示不限
	MonthlyCapUSD *float64 `yaml:"monthly_cap_usd" mapstructure:"monthly_cap_usd"`
	// CacheTTL 开销聚合缓存时长
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// Rates 按提供商覆盖的费率表
	Rates map[string]RateConfig `yaml:"rates" mapstructure:"rates"`
}

// RateConfig 单个提供商费率
type RateConfig struct {
	// InputPer1K 每千输入 token 美元价
	InputPer1K float64 `yaml:"input_per_1k" mapstructure:"input_per_1k"`
	// OutputPer1K 每千输出 token 美元价
	OutputPer1K float64 `yaml:"output_per_1k" mapstructure:"output_per_1k"`
	// ImageTokensLow 低清图片的等效 token 数
	ImageTokensLow int `yaml:"image_tokens_low" mapstructure:"image_tokens_low"`
	// ImageTokensHigh 高清图片的等效 token 数
	ImageTokensHigh int `yaml:"image_tokens_high" mapstructure:"image_tokens_high"`
}

// MatchingConfig 实体匹配配置
type MatchingConfig struct {
	// SimilarityThreshold 向量相似度阈值，低于则新建实体
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
	// MaxConcurrentEvents 流水线同时在途的事件数上限
	MaxConcurrentEvents int64 `yaml:"max_concurrent_events" mapstructure:"max_concurrent_events"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}
