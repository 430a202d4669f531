package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述了 intentchaind 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Session  SessionConfig  `yaml:"session"`
	History  HistoryConfig  `yaml:"history"`
	Turns    TurnsConfig    `yaml:"turns"`
	LLM      LLMConfig      `yaml:"llm"`
	Market   MarketConfig   `yaml:"market"`
	Builder  BuilderConfig  `yaml:"builder"`
	Chain    ChainConfig    `yaml:"chain"`
	Alerting AlertingConfig `yaml:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig 控制日志输出与审计日志的滚动策略。
type LoggingConfig struct {
	Level           string   `yaml:"level"`
	Format          string   `yaml:"format"`
	OutputPaths     []string `yaml:"output_paths"`
	AuditPath       string   `yaml:"audit_path"`
	AuditMaxSizeMB  int      `yaml:"audit_max_size_mb"`
	AuditMaxBackups int      `yaml:"audit_max_backups"`
	AuditMaxAgeDays int      `yaml:"audit_max_age_days"`
}

// SessionConfig 描述会话存储的驱动与生命周期。
type SessionConfig struct {
	Driver         string `yaml:"driver"` // memory | redis
	TTLSeconds     int    `yaml:"ttl_seconds"`
	HistoryLimit   int    `yaml:"history_limit"`
	SweepSeconds   int    `yaml:"sweep_seconds"`
	RedisAddress   string `yaml:"redis_address"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
}

// HistoryConfig 描述对话轮次落库的驱动。
type HistoryConfig struct {
	Driver string `yaml:"driver"` // memory | mysql
	DSN    string `yaml:"dsn"`
}

// TurnsConfig 描述异步轮次队列的驱动。
type TurnsConfig struct {
	Driver   string         `yaml:"driver"` // memory | rabbitmq
	Workers  int            `yaml:"workers"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	Prefetch   int    `yaml:"prefetch"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// LLMConfig 配置意图抽取所使用的大模型服务。
type LLMConfig struct {
	Provider            string  `yaml:"provider"` // openai | mock
	APIKey              string  `yaml:"api_key"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	BaseURL             string  `yaml:"base_url"`
	Model               string  `yaml:"model"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// MarketConfig 配置行情排名服务与缓存。
type MarketConfig struct {
	Provider           string `yaml:"provider"` // http | mock
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	APIKeyEnv          string `yaml:"api_key_env"`
	RankLimit          int    `yaml:"rank_limit"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
	RefreshSeconds     int    `yaml:"refresh_seconds"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RetryAttempts      int    `yaml:"retry_attempts"`
	RetryBackoffMillis int    `yaml:"retry_backoff_millis"`
}

// BuilderConfig 配置外部交易构建服务。
type BuilderConfig struct {
	Provider           string `yaml:"provider"` // http | mock
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	APIKeyEnv          string `yaml:"api_key_env"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RetryAttempts      int    `yaml:"retry_attempts"`
	RetryBackoffMillis int    `yaml:"retry_backoff_millis"`
	ProposalTTLSeconds int    `yaml:"proposal_ttl_seconds"`
}

// ChainConfig 配置余额查询所需的节点地址。
type ChainConfig struct {
	RPCURL         string `yaml:"rpc_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AlertingConfig 配置告警的外部投递渠道，日志渠道始终开启。
type AlertingConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults()
	cfg.resolveSecrets()

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Session.Driver == "" {
		c.Session.Driver = "memory"
	}
	if c.Session.TTLSeconds <= 0 {
		c.Session.TTLSeconds = 1800
	}
	if c.Session.HistoryLimit <= 0 {
		c.Session.HistoryLimit = 10
	}
	if c.Session.SweepSeconds <= 0 {
		c.Session.SweepSeconds = 60
	}
	if c.Session.RedisKeyPrefix == "" {
		c.Session.RedisKeyPrefix = "intentchain:session:"
	}

	if c.History.Driver == "" {
		c.History.Driver = "memory"
	}

	if c.Turns.Driver == "" {
		c.Turns.Driver = "memory"
	}
	if c.Turns.Workers <= 0 {
		c.Turns.Workers = 4
	}
	if c.Turns.RabbitMQ.Queue == "" {
		c.Turns.RabbitMQ.Queue = "intentchain.turns"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 30
	}
	if c.LLM.ConfidenceThreshold <= 0 {
		c.LLM.ConfidenceThreshold = 0.6
	}

	if c.Market.Provider == "" {
		c.Market.Provider = "http"
	}
	if c.Market.RankLimit <= 0 {
		c.Market.RankLimit = 200
	}
	if c.Market.CacheTTLSeconds <= 0 {
		c.Market.CacheTTLSeconds = 3600
	}
	if c.Market.RefreshSeconds <= 0 {
		c.Market.RefreshSeconds = 900
	}
	if c.Market.TimeoutSeconds <= 0 {
		c.Market.TimeoutSeconds = 10
	}
	if c.Market.RetryAttempts <= 0 {
		c.Market.RetryAttempts = 3
	}
	if c.Market.RetryBackoffMillis <= 0 {
		c.Market.RetryBackoffMillis = 500
	}

	if c.Builder.Provider == "" {
		c.Builder.Provider = "http"
	}
	if c.Builder.TimeoutSeconds <= 0 {
		c.Builder.TimeoutSeconds = 10
	}
	if c.Builder.RetryAttempts <= 0 {
		c.Builder.RetryAttempts = 3
	}
	if c.Builder.RetryBackoffMillis <= 0 {
		c.Builder.RetryBackoffMillis = 500
	}
	if c.Builder.ProposalTTLSeconds <= 0 {
		c.Builder.ProposalTTLSeconds = 300
	}

	if c.Chain.TimeoutSeconds <= 0 {
		c.Chain.TimeoutSeconds = 10
	}

	if c.Alerting.TimeoutSeconds <= 0 {
		c.Alerting.TimeoutSeconds = 5
	}
}

// resolveSecrets 支持通过环境变量注入密钥，避免在配置文件中落盘。
func (c *Config) resolveSecrets() {
	if c.LLM.APIKey == "" && c.LLM.APIKeyEnv != "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
	}
	if c.Market.APIKey == "" && c.Market.APIKeyEnv != "" {
		c.Market.APIKey = strings.TrimSpace(os.Getenv(c.Market.APIKeyEnv))
	}
	if c.Builder.APIKey == "" && c.Builder.APIKeyEnv != "" {
		c.Builder.APIKey = strings.TrimSpace(os.Getenv(c.Builder.APIKeyEnv))
	}
}

// LLMTimeout 返回大模型调用的超时时间。
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
