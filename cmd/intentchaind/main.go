package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"IntentChain/internal/api"
	"IntentChain/internal/builder"
	"IntentChain/internal/chainquery"
	"IntentChain/internal/config"
	"IntentChain/internal/history"
	"IntentChain/internal/intent"
	"IntentChain/internal/llm"
	llmmock "IntentChain/internal/llm/mock"
	"IntentChain/internal/llm/openai"
	"IntentChain/internal/market"
	"IntentChain/internal/observability/alerting"
	"IntentChain/internal/pipeline"
	"IntentChain/internal/resolve"
	"IntentChain/internal/session"
	"IntentChain/internal/turnqueue"
	"IntentChain/pkg/logger"
	"IntentChain/pkg/retry"
)

// main 是 intentchaind 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("intentchaind 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 仅用于本地开发，缺失不是错误。
	_ = godotenv.Load()

	configPath := os.Getenv("INTENTCHAIN_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "intentchain.yaml")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.AuditPath != "",
			Path:       cfg.Logging.AuditPath,
			MaxSizeMB:  cfg.Logging.AuditMaxSizeMB,
			MaxBackups: cfg.Logging.AuditMaxBackups,
			MaxAgeDays: cfg.Logging.AuditMaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	// 会话存储。
	var store session.Store
	switch cfg.Session.Driver {
	case "", "memory":
		memStore := session.NewMemoryStore()
		go session.RunSweeper(ctx, memStore,
			time.Duration(cfg.Session.SweepSeconds)*time.Second,
			time.Duration(cfg.Session.TTLSeconds)*time.Second)
		store = memStore
	case "redis":
		redisStore, err := session.NewRedisStore(session.RedisStoreConfig{
			Address:   cfg.Session.RedisAddress,
			Password:  cfg.Session.RedisPassword,
			DB:        cfg.Session.RedisDB,
			KeyPrefix: cfg.Session.RedisKeyPrefix,
			TTL:       time.Duration(cfg.Session.TTLSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		store = redisStore
	default:
		return fmt.Errorf("不支持的会话存储驱动: %s", cfg.Session.Driver)
	}
	defer store.Close()

	// 对话记录。
	var records history.Repository
	switch cfg.History.Driver {
	case "", "memory":
		records = history.NewMemoryRepository(0)
	case "mysql":
		repo, err := history.NewMySQLRepository(ctx, history.MySQLConfig{DSN: cfg.History.DSN})
		if err != nil {
			return err
		}
		records = repo
	default:
		return fmt.Errorf("不支持的对话记录驱动: %s", cfg.History.Driver)
	}
	defer records.Close()

	// 意图抽取。
	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	// 行情排名与池子查询。
	lookup, pools, err := createMarket(ctx, cfg)
	if err != nil {
		return err
	}

	// 交易构建。
	actionBuilder, err := createBuilder(cfg)
	if err != nil {
		return err
	}

	// 链上余额查询。
	var chainReader chainquery.Reader
	if cfg.Chain.RPCURL != "" {
		client, err := chainquery.NewClient(ctx, chainquery.Config{RPCURL: cfg.Chain.RPCURL})
		if err != nil {
			return err
		}
		chainReader = client
	} else {
		chainReader = chainquery.NewMockReader("ETH")
	}
	defer chainReader.Close()

	// 告警渠道：日志始终开启，配置了回调地址时额外投递 webhook。
	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{
			URL:        cfg.Alerting.WebhookURL,
			HTTPClient: &http.Client{Timeout: time.Duration(cfg.Alerting.TimeoutSeconds) * time.Second},
		})
	}

	engine := pipeline.NewEngine(
		pipeline.Config{HistoryLimit: cfg.Session.HistoryLimit},
		store,
		intent.NewParser(llmClient, cfg.LLM.ConfidenceThreshold),
		resolve.NewResolver(lookup),
		actionBuilder,
		pools,
		chainReader,
		records,
		alerting.NewFanout(notifiers...),
	)

	// 异步轮次队列。
	var queue turnqueue.Queue
	switch cfg.Turns.Driver {
	case "", "memory":
		queue = turnqueue.NewMemoryQueue(1024)
	case "rabbitmq":
		rabbit, err := turnqueue.NewRabbitMQQueue(turnqueue.RabbitMQConfig{
			URL:        cfg.Turns.RabbitMQ.URL,
			Queue:      cfg.Turns.RabbitMQ.Queue,
			Prefetch:   cfg.Turns.RabbitMQ.Prefetch,
			Durable:    cfg.Turns.RabbitMQ.Durable,
			AutoDelete: cfg.Turns.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		queue = rabbit
	default:
		return fmt.Errorf("不支持的轮次队列驱动: %s", cfg.Turns.Driver)
	}
	defer queue.Close()

	dispatcher := turnqueue.NewDispatcher(queue, engine, nil)
	go func() {
		if err := dispatcher.Run(ctx, cfg.Turns.Workers); err != nil && ctx.Err() == nil {
			logger.L().Error("轮次调度器退出", "error", err)
		}
	}()

	logger.L().Info("intentchaind 启动", "address", cfg.Server.Address)
	server := api.NewServer(cfg.Server.Address, engine, records, queue)
	return server.Start(ctx)
}

// createLLMClient 根据配置选择意图抽取的提供方。
func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "mock":
		return llmmock.NewClient(), nil
	case "", "openai":
		return openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		})
	default:
		return nil, fmt.Errorf("不支持的大模型提供方: %s", cfg.LLM.Provider)
	}
}

// createMarket 构建符号解析与池子查询的数据源。
func createMarket(ctx context.Context, cfg *config.Config) (market.Lookup, market.PoolFinder, error) {
	switch cfg.Market.Provider {
	case "mock":
		provider := market.NewMockProvider()
		return provider, provider, nil
	case "", "http":
		client, err := market.NewClient(market.ClientConfig{
			BaseURL:   cfg.Market.BaseURL,
			APIKey:    cfg.Market.APIKey,
			RankLimit: cfg.Market.RankLimit,
			Timeout:   time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
			Retry: retry.Policy{
				Attempts: cfg.Market.RetryAttempts,
				Backoff:  time.Duration(cfg.Market.RetryBackoffMillis) * time.Millisecond,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		cache := market.NewCache(client, cfg.Market.RankLimit,
			time.Duration(cfg.Market.CacheTTLSeconds)*time.Second)
		go cache.RunRefresher(ctx, time.Duration(cfg.Market.RefreshSeconds)*time.Second)
		return cache, client, nil
	default:
		return nil, nil, fmt.Errorf("不支持的行情提供方: %s", cfg.Market.Provider)
	}
}

// createBuilder 构建交易构建服务的客户端。
func createBuilder(cfg *config.Config) (builder.Builder, error) {
	switch cfg.Builder.Provider {
	case "mock":
		return builder.NewMockBuilder(time.Duration(cfg.Builder.ProposalTTLSeconds) * time.Second), nil
	case "", "http":
		return builder.NewClient(builder.ClientConfig{
			BaseURL: cfg.Builder.BaseURL,
			APIKey:  cfg.Builder.APIKey,
			Timeout: time.Duration(cfg.Builder.TimeoutSeconds) * time.Second,
			Retry: retry.Policy{
				Attempts: cfg.Builder.RetryAttempts,
				Backoff:  time.Duration(cfg.Builder.RetryBackoffMillis) * time.Millisecond,
			},
		})
	default:
		return nil, fmt.Errorf("不支持的交易构建提供方: %s", cfg.Builder.Provider)
	}
}
