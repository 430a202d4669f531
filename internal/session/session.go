package session

import (
	"time"

	"IntentChain/internal/intent"
)

// State 表示会话在多轮对话中所处的阶段。
type State string

const (
	// StateEmpty 表示会话当前没有待处理的意图。
	StateEmpty State = "empty"
	// StateCollecting 表示意图的槽位仍在收集或澄清中。
	StateCollecting State = "collecting"
	// StateResolved 表示意图的全部必填槽位已经补齐。
	StateResolved State = "resolved"
	// StateOrchestrating 表示正在调用外部交易构建服务。
	StateOrchestrating State = "orchestrating"
)

// Turn 记录一轮对话的往返内容，供意图抽取时提供上下文。
type Turn struct {
	Utterance string `json:"utterance"`
	Reply     string `json:"reply"`
	At        int64  `json:"at"`
}

// Session 保存单个会话键下的全部可变状态。
// 终态（成功或失败）会清空 PendingIntent，会话回到 StateEmpty。
type Session struct {
	Key           string         `json:"key"`
	State         State          `json:"state"`
	PendingIntent *intent.Intent `json:"pending_intent,omitempty"`
	History       []Turn         `json:"history,omitempty"`
	CreatedAt     int64          `json:"created_at"`
	LastActivity  int64          `json:"last_activity"`
}

// NewSession 创建一个空白会话。
func NewSession(key string, now time.Time) *Session {
	return &Session{
		Key:          key,
		State:        StateEmpty,
		CreatedAt:    now.Unix(),
		LastActivity: now.Unix(),
	}
}

// Touch 更新最近活跃时间。
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now.Unix()
}

// AppendTurn 追加一轮对话并裁剪到限定长度。
func (s *Session) AppendTurn(turn Turn, limit int) {
	s.History = append(s.History, turn)
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// SetPending 记录待处理意图并进入收集状态。
func (s *Session) SetPending(in *intent.Intent) {
	s.PendingIntent = in
	s.State = StateCollecting
}

// ClearPending 清空待处理意图，会话回到空闲状态。
func (s *Session) ClearPending() {
	s.PendingIntent = nil
	s.State = StateEmpty
}

// Clone 返回会话的深拷贝，避免调用方与存储共享可变状态。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	if s.PendingIntent != nil {
		clone.PendingIntent = s.PendingIntent.Clone()
	}
	if len(s.History) > 0 {
		clone.History = make([]Turn, len(s.History))
		copy(clone.History, s.History)
	}
	return &clone
}
