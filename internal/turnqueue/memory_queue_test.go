package turnqueue

import (
	"context"
	"sync"
	"testing"
	"time"
)

// upperProcessor 返回固定格式的回复，便于断言调度链路。
type upperProcessor struct{}

func (upperProcessor) HandleTurn(_ context.Context, sessionKey, utterance string, _ time.Time) (string, error) {
	return "reply[" + sessionKey + "]: " + utterance, nil
}

// channelResponder 把回复转投到 channel，供测试同步等待。
type channelResponder struct {
	ch chan string
}

func (r *channelResponder) Respond(_ context.Context, _ Envelope, reply string) error {
	r.ch <- reply
	return nil
}

func TestMemoryQueuePublishThenDispatch(t *testing.T) {
	queue := NewMemoryQueue(8)
	defer queue.Close()
	responder := &channelResponder{ch: make(chan string, 1)}
	dispatcher := NewDispatcher(queue, upperProcessor{}, responder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, 2)
		close(done)
	}()

	err := queue.Publish(ctx, Envelope{
		ID:         "env-1",
		SessionKey: "tg:42",
		Utterance:  "send 5 USDC to alice.sol",
		ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Publish 失败: %v", err)
	}

	select {
	case reply := <-responder.ch:
		if reply != "reply[tg:42]: send 5 USDC to alice.sol" {
			t.Fatalf("reply = %q", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("等待调度回复超时")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("调度器未随上下文取消退出")
	}
}

func TestMemoryQueueFansOutAcrossWorkers(t *testing.T) {
	queue := NewMemoryQueue(16)
	defer queue.Close()

	var mu sync.Mutex
	seen := map[string]bool{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go queue.Consume(ctx, 4, func(_ context.Context, envelope Envelope) error {
		mu.Lock()
		seen[envelope.ID] = true
		mu.Unlock()
		return nil
	})

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := queue.Publish(ctx, Envelope{ID: id, SessionKey: "tg:1", Utterance: "hi"}); err != nil {
			t.Fatalf("Publish(%s) 失败: %v", id, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		count := len(seen)
		mu.Unlock()
		if count == 4 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("仅消费了 %d 条轮次", count)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMemoryQueueRejectsPublishAfterClose(t *testing.T) {
	queue := NewMemoryQueue(1)
	queue.Close()
	if err := queue.Publish(context.Background(), Envelope{ID: "x"}); err == nil {
		t.Fatal("关闭后的队列应拒绝投递")
	}
}
