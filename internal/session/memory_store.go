package session

import (
	"context"
	"sync"
	"time"

	xerrors "IntentChain/internal/errors"
)

// MemoryStore 以内存方式保存会话，适合单实例部署与测试。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get 返回指定键的会话副本，不存在时返回全新会话（不落库）。
func (m *MemoryStore) Get(_ context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话键不能为空")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[key]; ok {
		return sess.Clone(), nil
	}
	return NewSession(key, m.now()), nil
}

// Update 在持锁状态下对会话应用修改，保证同键串行可见。
func (m *MemoryStore) Update(_ context.Context, key string, fn Mutation) (*Session, error) {
	if key == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话键不能为空")
	}
	if fn == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话修改函数不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	if !ok {
		sess = NewSession(key, m.now())
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.Touch(m.now())
	m.sessions[key] = sess
	return sess.Clone(), nil
}

// Evict 删除最近活跃时间早于 olderThan 的会话。
func (m *MemoryStore) Evict(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	cutoff := olderThan.Unix()
	for key, sess := range m.sessions {
		if sess.LastActivity < cutoff {
			delete(m.sessions, key)
			evicted++
		}
	}
	return evicted, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
