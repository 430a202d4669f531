package session

import (
	"context"
	"time"

	"IntentChain/pkg/logger"
)

// Mutation 在存储内部对会话进行原子修改。
type Mutation func(*Session) error

// Store 抽象按键访问的会话存储。
// 同一键下的修改对后续读取立即可见；缺失的键不是错误，而是返回全新会话。
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	Update(ctx context.Context, key string, fn Mutation) (*Session, error)
	Evict(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// RunSweeper 周期性清理超过不活跃窗口的会话，直到上下文取消。
func RunSweeper(ctx context.Context, store Store, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evicted, err := store.Evict(ctx, now.Add(-ttl))
			if err != nil {
				logger.L().Error("清理过期会话失败", "error", err)
				continue
			}
			if evicted > 0 {
				logger.L().Debug("清理过期会话完成", "evicted", evicted)
			}
		}
	}
}
