// Package history 持久化每一轮对话的最终结果，供审计与上下文回放使用。
package history

import (
	"context"
	"time"
)

// Record 是一轮对话的落库记录。
type Record struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Utterance  string    `json:"utterance"`
	Reply      string    `json:"reply"`
	IntentKind string    `json:"intent_kind,omitempty"`
	Outcome    string    `json:"outcome"`
	CreatedAt  time.Time `json:"created_at"`
}

// 轮次结果的取值集合。
const (
	OutcomeProposal      = "proposal"
	OutcomeClarification = "clarification"
	OutcomeAnswer        = "answer"
	OutcomeSmallTalk     = "small_talk"
	OutcomeError         = "error"
)

// Repository 定义对话记录的持久化接口。
type Repository interface {
	Save(ctx context.Context, record Record) error
	ListRecent(ctx context.Context, sessionKey string, limit int) ([]Record, error)
	Close() error
}
