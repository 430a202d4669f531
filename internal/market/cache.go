package market

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "IntentChain/internal/errors"
	"IntentChain/pkg/logger"
)

// RankSource 提供排名数据的拉取能力，通常由 HTTP 客户端实现。
type RankSource interface {
	FetchRankings(ctx context.Context, limit int) ([]Candidate, error)
}

// Cache 在内存中维护一张按符号索引的排名表。
// 所有会话共享同一份只读快照，按 TTL 失效并支持后台定期刷新。
type Cache struct {
	source RankSource
	limit  int
	ttl    time.Duration

	mu        sync.RWMutex
	bySymbol  map[string][]Candidate
	fetchedAt time.Time
}

// NewCache 创建排名缓存。
func NewCache(source RankSource, limit int, ttl time.Duration) *Cache {
	if limit <= 0 {
		limit = 200
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		source:   source,
		limit:    limit,
		ttl:      ttl,
		bySymbol: make(map[string][]Candidate),
	}
}

// Resolve 返回符号的全部大小写不敏感匹配，排名升序、同名次按标识符字典序。
// 缓存过期时同步刷新一次；刷新失败且缓存为空时返回瞬时错误。
func (c *Cache) Resolve(ctx context.Context, symbol string) ([]Candidate, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "资产符号不能为空")
	}
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	matches := c.bySymbol[strings.ToUpper(symbol)]
	out := make([]Candidate, len(matches))
	copy(out, matches)
	return out, nil
}

// Refresh 强制拉取一次排名数据并替换快照。
func (c *Cache) Refresh(ctx context.Context) error {
	candidates, err := c.source.FetchRankings(ctx, c.limit)
	if err != nil {
		return err
	}

	table := make(map[string][]Candidate, len(candidates))
	hasSOL := false
	hasWSOL := false
	var sol Candidate
	for _, candidate := range candidates {
		key := strings.ToUpper(candidate.Symbol)
		table[key] = append(table[key], candidate)
		switch key {
		case "SOL":
			hasSOL = true
			sol = candidate
		case "WSOL":
			hasWSOL = true
		}
	}
	// 排名表里有 SOL 时 WSOL 也视为已上榜（封装资产共享排名）。
	if hasSOL && !hasWSOL {
		wrapped := sol
		wrapped.Symbol = "WSOL"
		table["WSOL"] = []Candidate{wrapped}
	}
	for key := range table {
		entries := table[key]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Rank == entries[j].Rank {
				return entries[i].Identifier < entries[j].Identifier
			}
			return entries[i].Rank < entries[j].Rank
		})
		table[key] = entries
	}

	c.mu.Lock()
	c.bySymbol = table
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// RunRefresher 按固定间隔在后台刷新缓存，直到上下文取消。
func (c *Cache) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				logger.L().Warn("刷新行情排名缓存失败", "error", err)
			}
		}
	}
}

func (c *Cache) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	fresh := time.Since(c.fetchedAt) < c.ttl && len(c.bySymbol) > 0
	empty := len(c.bySymbol) == 0
	c.mu.RUnlock()

	if fresh {
		return nil
	}
	if err := c.Refresh(ctx); err != nil {
		if empty {
			return err
		}
		// 刷新失败但仍有旧快照时继续使用旧数据。
		logger.L().Warn("行情缓存刷新失败，沿用旧快照", "error", err)
	}
	return nil
}

var _ Lookup = (*Cache)(nil)
