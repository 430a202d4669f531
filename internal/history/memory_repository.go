package history

import (
	"context"
	"sync"
)

// MemoryRepository 把对话记录保存在进程内存中，用于开发与测试。
type MemoryRepository struct {
	mu      sync.RWMutex
	byKey   map[string][]Record
	maxKeep int
}

// NewMemoryRepository 创建内存记录仓库。每个会话最多保留 maxKeep 条，非正值表示不限制。
func NewMemoryRepository(maxKeep int) *MemoryRepository {
	return &MemoryRepository{
		byKey:   make(map[string][]Record),
		maxKeep: maxKeep,
	}
}

// Save 追加一条记录。
func (r *MemoryRepository) Save(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := append(r.byKey[record.SessionKey], record)
	if r.maxKeep > 0 && len(records) > r.maxKeep {
		records = records[len(records)-r.maxKeep:]
	}
	r.byKey[record.SessionKey] = records
	return nil
}

// ListRecent 返回指定会话最近的 limit 条记录，时间升序。
func (r *MemoryRepository) ListRecent(_ context.Context, sessionKey string, limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.byKey[sessionKey]
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// Close 无资源可释放。
func (r *MemoryRepository) Close() error { return nil }

var _ Repository = (*MemoryRepository)(nil)
