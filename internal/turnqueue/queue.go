// Package turnqueue 异步化入站轮次的接收与处理，
// 把外部前端的投递与管线的串行处理解耦。
package turnqueue

import (
	"context"
	"time"
)

// Envelope 是一条待处理的用户轮次。
type Envelope struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Utterance  string    `json:"utterance"`
	ReceivedAt time.Time `json:"received_at"`
}

// Handler 处理来自消息队列的轮次。
type Handler func(ctx context.Context, envelope Envelope) error

// Producer 负责向队列投递轮次。
type Producer interface {
	Publish(ctx context.Context, envelope Envelope) error
	Close() error
}

// Consumer 负责从队列中消费轮次。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}
