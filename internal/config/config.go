package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	pkgconfig "tasknexus/pkg/config"
)

// OutboxConfig outbox dispatcher 配置
type OutboxConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`
}

// RunnerConfig 定时任务配置
type RunnerConfig struct {
	OverdueIntervalSeconds int `yaml:"overdue_interval_seconds"`
	OverdueBatchSize       int `yaml:"overdue_batch_size"`
}

// NotificationConfig 通知相关配置
type NotificationConfig struct {
	ListLimit       int `yaml:"list_limit"`
	DedupTTLMinutes int `yaml:"dedup_ttl_minutes"`
	RetryMax        int `yaml:"retry_max"`
}

// AdminConfig 管理接口（outbox 重放）使用的静态 token，为空时关闭管理接口
type AdminConfig struct {
	Token string `yaml:"token"`
}

// WorkerConfig worker 健康检查端口
type WorkerConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	DB           pkgconfig.DBConfig     `yaml:"db"`
	MQ           pkgconfig.MQConfig     `yaml:"mq"`
	Redis        pkgconfig.RedisConfig  `yaml:"redis"`
	JWT          pkgconfig.JWTConfig    `yaml:"jwt"`
	Server       pkgconfig.ServerConfig `yaml:"server"`
	Otel         pkgconfig.OtelConfig   `yaml:"otel"`
	Outbox       OutboxConfig           `yaml:"outbox"`
	Runner       RunnerConfig           `yaml:"runner"`
	Notification NotificationConfig     `yaml:"notification"`
	Admin        AdminConfig            `yaml:"admin"`
	Worker       WorkerConfig           `yaml:"worker"`
}

// Load 读取 CONFIG_DIR 下的 base.yaml + <CONFIG_ENV>.yaml，再应用环境变量覆盖
func Load() (*Config, error) {
	env := pkgconfig.GetConfigEnv()
	dir := pkgconfig.GetEnv("CONFIG_DIR", "config")

	raw, err := pkgconfig.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := pkgconfig.Decode(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideOtelFromEnv(&cfg.Otel)
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
	if v := os.Getenv("WORKER_PORT"); v != "" {
		cfg.Worker.Port = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 未在 yaml 中出现的字段使用这些默认值
func Default() *Config {
	return &Config{
		DB: pkgconfig.DBConfig{
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
			MaxConns: 10,
		},
		JWT:    pkgconfig.JWTConfig{TTLHours: 24},
		Server: pkgconfig.ServerConfig{Port: "8080"},
		Worker: WorkerConfig{Port: "8081"},
		Outbox: OutboxConfig{IntervalMs: 1000, BatchSize: 100, MaxRetries: 5},
		Runner: RunnerConfig{OverdueIntervalSeconds: 300, OverdueBatchSize: 200},
		Notification: NotificationConfig{
			ListLimit:       20,
			DedupTTLMinutes: 24 * 60,
			RetryMax:        3,
		},
	}
}

// Validate 检查启动必需的配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if strings.Contains(c.JWT.Secret, "${") || strings.Contains(c.Admin.Token, "${") {
		return fmt.Errorf("unresolved secret placeholder in config")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("db.name is required")
	}
	if c.Notification.ListLimit <= 0 {
		return fmt.Errorf("notification.list_limit must be positive")
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.TTLHours) * time.Hour
}

func (c *Config) OutboxInterval() time.Duration {
	return time.Duration(c.Outbox.IntervalMs) * time.Millisecond
}

func (c *Config) OverdueInterval() time.Duration {
	return time.Duration(c.Runner.OverdueIntervalSeconds) * time.Second
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Notification.DedupTTLMinutes) * time.Minute
}
