// Package config 提供了统一的配置加载与管理能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/geonear/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量覆盖前缀，例如 GEONEAR_SERVER_HTTP_ADDR.
const EnvPrefix = "GEONEAR"

// Config 全局顶级配置结构.
type Config struct {
	Version   string          `mapstructure:"version"   toml:"version"`
	Server    ServerConfig    `mapstructure:"server"    toml:"server"`
	Log       LogConfig       `mapstructure:"log"       toml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   toml:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"   toml:"tracing"`
	Index     IndexConfig     `mapstructure:"index"     toml:"index"`
	Cache     CacheConfig     `mapstructure:"cache"     toml:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" toml:"ratelimit"`
	Storage   StorageConfig   `mapstructure:"storage"   toml:"storage"`
	Datasets  []DatasetConfig `mapstructure:"datasets"  toml:"datasets"  validate:"dive"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数.
type ServerConfig struct {
	Name        string      `mapstructure:"name"        toml:"name"        validate:"required"`
	Environment string      `mapstructure:"environment" toml:"environment" validate:"oneof=dev test prod"`
	HTTP        HTTPConfig  `mapstructure:"http"        toml:"http"`
	RequestID   IDGenConfig `mapstructure:"request_id"  toml:"request_id"`
}

// HTTPConfig HTTP 服务监听、超时与请求大小限制.
type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"                toml:"addr"                validate:"required"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"        toml:"read_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" toml:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"       toml:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"        toml:"idle_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     toml:"request_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    toml:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"      toml:"max_body_bytes"      validate:"gte=0"`
	MaxBatchPoints    int           `mapstructure:"max_batch_points"    toml:"max_batch_points"    validate:"gte=0"`
}

// IDGenConfig 请求 ID 生成器参数.
type IDGenConfig struct {
	Type      string `mapstructure:"type"       toml:"type"       validate:"omitempty,oneof=snowflake sonyflake"`
	StartTime string `mapstructure:"start_time" toml:"start_time"` // 2006-01-02
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id" validate:"gte=0,lte=65535"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `mapstructure:"format"      toml:"format"      validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`    // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`     // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Path    string `mapstructure:"path"    toml:"path"`
	Port    string `mapstructure:"port"    toml:"port"` // 非空时在独立端口暴露
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// TracingConfig 分布式链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// IndexConfig 定义空间索引的构建与查询参数.
type IndexConfig struct {
	Strategy          string `mapstructure:"strategy"           toml:"strategy"           validate:"oneof=kdtree brute"`
	LeafSize          int    `mapstructure:"leaf_size"          toml:"leaf_size"          validate:"gte=1"`
	ParallelWorkers   int    `mapstructure:"parallel_workers"   toml:"parallel_workers"   validate:"gte=0"`
	ParallelThreshold int    `mapstructure:"parallel_threshold" toml:"parallel_threshold" validate:"gte=0"`
}

// CacheConfig 单点查询结果缓存配置.
type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"     toml:"ttl"`
	MaxMB   int           `mapstructure:"max_mb"  toml:"max_mb" validate:"gte=0"`
	Enabled bool          `mapstructure:"enabled" toml:"enabled"`
}

// RateLimitConfig 定义令牌桶限流参数.
type RateLimitConfig struct {
	RPS     float64 `mapstructure:"rps"     toml:"rps"     validate:"gte=0"`
	Burst   int     `mapstructure:"burst"   toml:"burst"   validate:"gte=0"`
	Enabled bool    `mapstructure:"enabled" toml:"enabled"`
}

// StorageConfig 数据集来源配置.
type StorageConfig struct {
	Minio   MinioConfig          `mapstructure:"minio"   toml:"minio"`
	Root    string               `mapstructure:"root"    toml:"root"` // 本地文件来源的根目录
	Breaker CircuitBreakerConfig `mapstructure:"breaker" toml:"breaker"`
}

// CircuitBreakerConfig 定义远程数据源熔断器的保护策略.
type CircuitBreakerConfig struct {
	Interval     time.Duration `mapstructure:"interval"      toml:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"       toml:"timeout"`
	MaxRequests  uint32        `mapstructure:"max_requests"  toml:"max_requests"`
	MinRequests  uint32        `mapstructure:"min_requests"  toml:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio" toml:"failure_ratio" validate:"gte=0,lte=1"`
	Enabled      bool          `mapstructure:"enabled"       toml:"enabled"`
}

// MinioConfig 定义 S3 兼容对象存储 MinIO 的连接参数.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"          toml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"     toml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" toml:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"       toml:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"           toml:"use_ssl"`
}

// DatasetConfig 描述启动时加载的一个格点场.
type DatasetConfig struct {
	Name   string `mapstructure:"name"   toml:"name"   validate:"required"`
	Source string `mapstructure:"source" toml:"source" validate:"required,oneof=file minio"`
	Object string `mapstructure:"object" toml:"object" validate:"required"`
	Format string `mapstructure:"format" toml:"format" validate:"omitempty,oneof=csv"`
}

// Enabled 报告是否配置了 MinIO 来源.
func (c MinioConfig) Enabled() bool {
	return c.Endpoint != "" && c.BucketName != ""
}

var (
	vInstance = viper.New()
	mu        sync.Mutex
	onReload  []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	onReload = append(onReload, hook)
	mu.Unlock()
}

// SetDefaults 写入与示例配置一致的默认值.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "geonear")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.read_timeout", 10*time.Second)
	v.SetDefault("server.http.read_header_timeout", 5*time.Second)
	v.SetDefault("server.http.write_timeout", 30*time.Second)
	v.SetDefault("server.http.idle_timeout", 60*time.Second)
	v.SetDefault("server.http.request_timeout", 20*time.Second)
	v.SetDefault("server.http.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.http.max_body_bytes", 8<<20)
	v.SetDefault("server.http.max_batch_points", 100000)
	v.SetDefault("server.request_id.type", "snowflake")
	v.SetDefault("server.request_id.machine_id", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("index.strategy", "kdtree")
	v.SetDefault("index.leaf_size", 8)
	v.SetDefault("index.parallel_threshold", 4096)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.max_mb", 64)
	v.SetDefault("storage.breaker.timeout", 30*time.Second)
	v.SetDefault("storage.breaker.failure_ratio", 0.5)
	v.SetDefault("storage.breaker.min_requests", 5)
	v.SetDefault("ratelimit.rps", 200)
	v.SetDefault("ratelimit.burst", 400)
}

// Load 全生产级的配置加载逻辑.
func Load(path string, conf *Config) error {
	SetDefaults(vInstance)
	vInstance.SetConfigFile(path)
	vInstance.SetConfigType("toml")

	vInstance.SetEnvPrefix(EnvPrefix)
	vInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vInstance.AutomaticEnv()

	if err := vInstance.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := vInstance.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	vInstance.WatchConfig()
	vInstance.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		var next Config
		if err := vInstance.Unmarshal(&next); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := validate.Struct(&next); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}

		logging.SetLevel(next.Log.Level)
		slog.Info("config hot-reloaded and validated successfully")

		mu.Lock()
		hooks := append([]func(*Config){}, onReload...)
		mu.Unlock()
		for _, hook := range hooks {
			hook(&next)
		}
	})

	return nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	maskedJSON, err := Masked(conf)
	if err != nil {
		slog.Error("failed to mask config for printing", "error", err)
		return
	}
	slog.Info("Current effective configuration", "config", maskedJSON)
}

// Masked 返回敏感字段被替换后的 JSON 文本.
func Masked(conf any) (string, error) {
	data, err := json.Marshal(conf)
	if err != nil {
		return "", err
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		return "", err
	}

	mask(configMap)

	out, err := json.MarshalIndent(configMap, "  ", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)

			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}

			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"

				break
			}
		}
	}
}

// GetViper 返回底层的 Viper 实例.
func GetViper() *viper.Viper {
	return vInstance
}
