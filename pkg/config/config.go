// Package config 商城配置：嵌入 wyfcoding/pkg/config.Config，补充商城业务段
package config

import (
	"fmt"
	"time"

	"github.com/wyfcoding/pkg/config"
	"gorm.io/gorm/logger"
)

// Config 商城服务配置
type Config struct {
	config.Config `mapstructure:",squash"`

	// 商城运行开关
	Storefront StorefrontConfig `mapstructure:"storefront" toml:"storefront"`
	// 登录注册接口限流
	Throttle ThrottleConfig `mapstructure:"throttle" toml:"throttle"`
	// 邮箱验证配置
	Verification VerificationConfig `mapstructure:"verification" toml:"verification"`
	// 邮件配置
	Mail MailConfig `mapstructure:"mail" toml:"mail"`
	// 商品目录配置
	Catalog CatalogConfig `mapstructure:"catalog" toml:"catalog"`
}

// StorefrontConfig 商城基础设施开关
type StorefrontConfig struct {
	// 启动时自动建表
	AutoMigrate bool `mapstructure:"auto_migrate" toml:"auto_migrate"`
	// SQL 迁移文件目录
	MigrationsDir string `mapstructure:"migrations_dir" toml:"migrations_dir"`
	// 关闭时验证码与看板缓存退化为进程内实现
	RedisEnabled bool `mapstructure:"redis_enabled" toml:"redis_enabled"`
	// 关闭时事件只写日志
	KafkaEnabled bool `mapstructure:"kafka_enabled" toml:"kafka_enabled"`
	// 导入文件大小上限（MB）
	MaxUploadMB int `mapstructure:"max_upload_mb" toml:"max_upload_mb"`
}

// ThrottleConfig 登录注册接口限流，按客户端 IP 计数
type ThrottleConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	Rate    int  `mapstructure:"rate" toml:"rate"`
	Burst   int  `mapstructure:"burst" toml:"burst"`
}

// VerificationConfig 注册验证码配置
type VerificationConfig struct {
	// 存储：memory, redis
	Store string `mapstructure:"store" toml:"store"`
	// 验证码有效期
	TTL time.Duration `mapstructure:"ttl" toml:"ttl"`
	// 过期清理间隔，仅 memory 生效
	SweepInterval time.Duration `mapstructure:"sweep_interval" toml:"sweep_interval"`
}

// MailConfig 邮件配置
type MailConfig struct {
	// 驱动：log, smtp
	Driver   string `mapstructure:"driver" toml:"driver"`
	Host     string `mapstructure:"host" toml:"host"`
	Port     int    `mapstructure:"port" toml:"port"`
	Username string `mapstructure:"username" toml:"username"`
	Password string `mapstructure:"password" toml:"password"`
	From     string `mapstructure:"from" toml:"from"`
}

// CatalogConfig 商品目录配置
type CatalogConfig struct {
	// 低库存阈值
	LowStockThreshold int `mapstructure:"low_stock_threshold" toml:"low_stock_threshold"`
	// 看板缓存时间，0 表示不缓存
	DashboardCacheTTL time.Duration `mapstructure:"dashboard_cache_ttl" toml:"dashboard_cache_ttl"`
}

const (
	defaultJWTSecret = "storefront-dev-secret"
	// DefaultDSN 会话时区固定为 UTC，与按日统计的边界一致
	DefaultDSN = "storefront:storefront@tcp(127.0.0.1:3306)/storefront?charset=utf8mb4&parseTime=True&loc=UTC"
)

// Default 返回预填默认值的配置，文件中出现的键覆盖对应字段
func Default() *Config {
	cfg := &Config{}
	cfg.Version = "dev"
	cfg.Server.Name = "storefront"
	cfg.Server.Environment = "dev"
	cfg.Server.HTTP.Addr = "0.0.0.0"
	cfg.Server.HTTP.Port = 8080
	cfg.Server.HTTP.ReadTimeout = 30 * time.Second
	cfg.Server.HTTP.WriteTimeout = 30 * time.Second
	cfg.Server.GRPC.Addr = "0.0.0.0"
	cfg.Server.GRPC.Port = 9080

	cfg.Data.Database = config.DatabaseConfig{
		Driver:          "mysql",
		DSN:             DefaultDSN,
		MaxIdleConns:    5,
		MaxOpenConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		LogLevel:        logger.Warn,
		SlowThreshold:   time.Second,
	}
	cfg.Data.Redis = config.RedisConfig{
		Addr:         "localhost:6379",
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}

	cfg.Log = config.LogConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		File:       "logs/storefront.log",
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
	cfg.JWT = config.JWTConfig{
		Secret:         defaultJWTSecret,
		Issuer:         "storefront",
		ExpireDuration: 24 * time.Hour,
	}
	cfg.MessageQueue.Kafka = config.KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "storefront.events",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  3,
		RequiredAcks: -1,
	}
	cfg.Tracing = config.TracingConfig{ServiceName: "storefront", OTLPEndpoint: "localhost:4317"}
	cfg.Metrics = config.MetricsConfig{Enabled: true, Port: "9090", Path: "/metrics"}
	cfg.CircuitBreaker = config.CircuitBreakerConfig{MaxRequests: 5, Interval: time.Minute, Timeout: 30 * time.Second}

	cfg.Storefront = StorefrontConfig{MigrationsDir: "migrations", MaxUploadMB: 8}
	cfg.Throttle = ThrottleConfig{Rate: 5, Burst: 10}
	cfg.Verification = VerificationConfig{Store: "memory", TTL: 24 * time.Hour, SweepInterval: 5 * time.Minute}
	cfg.Mail = MailConfig{Driver: "log", Port: 2525, From: "no-reply@storefront.local"}
	cfg.Catalog = CatalogConfig{LowStockThreshold: 5, DashboardCacheTTL: 30 * time.Second}
	return cfg
}

// Load 读取 TOML 文件（APP_ 前缀环境变量覆盖）并校验
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := config.Load(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate 商城段之间的约束，基础段的必填项由 config.Load 校验
func (c *Config) Validate() error {
	switch c.Data.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Data.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Server.Environment == "prod" && c.JWT.Secret == defaultJWTSecret {
		return fmt.Errorf("jwt.secret must be overridden in prod")
	}
	switch c.Verification.Store {
	case "memory":
	case "redis":
		if !c.Storefront.RedisEnabled {
			return fmt.Errorf("verification.store=redis requires storefront.redis_enabled")
		}
	default:
		return fmt.Errorf("unsupported verification store: %s", c.Verification.Store)
	}
	if c.Verification.TTL <= 0 {
		return fmt.Errorf("verification.ttl must be positive")
	}
	if c.Storefront.KafkaEnabled && len(c.MessageQueue.Kafka.Brokers) == 0 {
		return fmt.Errorf("messagequeue.kafka.brokers is required when kafka is enabled")
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			return fmt.Errorf("mail.host and mail.from are required for smtp driver")
		}
	default:
		return fmt.Errorf("unsupported mail driver: %s", c.Mail.Driver)
	}
	return nil
}
