package turnqueue

import (
	"context"
	"log/slog"
	"time"

	"IntentChain/pkg/logger"
)

// Processor 是能处理一条用户轮次并产出回复的组件。
type Processor interface {
	HandleTurn(ctx context.Context, sessionKey, utterance string, receivedAt time.Time) (string, error)
}

// Responder 把回复送回给发起轮次的前端。
type Responder interface {
	Respond(ctx context.Context, envelope Envelope, reply string) error
}

// LogResponder 把回复写入日志，是没有回传通道时的兜底实现。
type LogResponder struct{}

// Respond 记录回复内容。
func (LogResponder) Respond(_ context.Context, envelope Envelope, reply string) error {
	logger.L().Info("轮次回复",
		slog.String("envelope_id", envelope.ID),
		slog.String("session_key", envelope.SessionKey),
		slog.String("reply", reply),
	)
	return nil
}

// Dispatcher 把队列中的轮次交给处理器，并把回复送回前端。
type Dispatcher struct {
	queue     Consumer
	processor Processor
	responder Responder
}

// NewDispatcher 创建调度器。responder 为空时使用 LogResponder。
func NewDispatcher(queue Consumer, processor Processor, responder Responder) *Dispatcher {
	if responder == nil {
		responder = LogResponder{}
	}
	return &Dispatcher{
		queue:     queue,
		processor: processor,
		responder: responder,
	}
}

// Run 启动消费循环，阻塞直到上下文取消。
// 处理器对任何输入都会产出回复，这里的错误只可能来自基础设施。
func (d *Dispatcher) Run(ctx context.Context, workerCount int) error {
	return d.queue.Consume(ctx, workerCount, func(ctx context.Context, envelope Envelope) error {
		reply, err := d.processor.HandleTurn(ctx, envelope.SessionKey, envelope.Utterance, envelope.ReceivedAt)
		if err != nil {
			logger.L().Error("轮次处理失败",
				slog.String("envelope_id", envelope.ID),
				slog.String("session_key", envelope.SessionKey),
				slog.Any("error", err),
			)
			return err
		}
		if err := d.responder.Respond(ctx, envelope, reply); err != nil {
			logger.L().Warn("回传回复失败",
				slog.String("envelope_id", envelope.ID),
				slog.Any("error", err),
			)
		}
		return nil
	})
}
