package session

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "IntentChain/internal/errors"
)

// RedisStoreConfig 描述 Redis 会话存储的连接参数。
type RedisStoreConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisStore 将会话序列化为 JSON 存入 Redis，借助服务端 TTL 完成过期回收。
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 会话存储实例。
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, stdErrors.New("Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "intentchain:session:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

// Get 读取会话，键不存在或内容损坏时返回全新会话。
func (r *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话键不能为空")
	}
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return NewSession(key, time.Now()), nil
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取会话失败")
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// 损坏的会话按过期处理，重新开始而不是报错给用户。
		return NewSession(key, time.Now()), nil
	}
	return &sess, nil
}

// Update 读取、修改并带 TTL 写回会话。调用方负责同键串行。
func (r *RedisStore) Update(ctx context.Context, key string, fn Mutation) (*Session, error) {
	if fn == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话修改函数不能为空")
	}
	sess, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.Touch(time.Now())
	encoded, err := json.Marshal(sess)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化会话失败")
	}
	if err := r.client.Set(ctx, r.prefix+key, encoded, r.ttl).Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话失败")
	}
	return sess.Clone(), nil
}

// Evict 依赖 Redis 服务端 TTL，无需主动清理。
func (r *RedisStore) Evict(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// Close 关闭 Redis 连接。
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
