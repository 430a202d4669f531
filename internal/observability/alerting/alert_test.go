package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	xerrors "IntentChain/internal/errors"
)

// countingNotifier 记录收到的事件，可模拟投递失败。
type countingNotifier struct {
	channel Channel
	mu      sync.Mutex
	events  []Event
	err     error
}

func (n *countingNotifier) Channel() Channel { return n.channel }

func (n *countingNotifier) Notify(_ context.Context, event Event) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return n.err
}

func TestFromErrorOnlyForAlertingCodes(t *testing.T) {
	mismatch := xerrors.New(xerrors.CodeBuilderMismatch, "amount 回显不一致",
		xerrors.WithMetadata("field", "amount"))
	event, ok := FromError(mismatch, "tg:42", "transfer")
	if !ok {
		t.Fatal("回显不一致必须产生告警事件")
	}
	if event.Code != xerrors.CodeBuilderMismatch || event.Severity != xerrors.SeverityCritical {
		t.Fatalf("event = %+v", event)
	}
	if event.SessionKey != "tg:42" || event.IntentKind != "transfer" {
		t.Fatalf("会话上下文丢失: %+v", event)
	}
	if event.Metadata["field"] != "amount" {
		t.Fatalf("metadata = %+v", event.Metadata)
	}

	if _, ok := FromError(xerrors.New(xerrors.CodeLookupMiss, ""), "tg:42", "transfer"); ok {
		t.Fatal("查询未命中不应触发告警")
	}
}

func TestWebhookNotifierPostsEvent(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("解析告警载荷失败: %v", err)
		}
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := &WebhookNotifier{URL: server.URL, HTTPClient: server.Client()}
	err := notifier.Notify(context.Background(), Event{
		Code:       xerrors.CodeBuilderMismatch,
		Message:    "amount 回显不一致",
		Severity:   xerrors.SeverityCritical,
		SessionKey: "tg:42",
		IntentKind: "transfer",
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Notify 失败: %v", err)
	}

	payload := <-received
	if payload["code"] != string(xerrors.CodeBuilderMismatch) {
		t.Fatalf("code = %v", payload["code"])
	}
	if payload["session_key"] != "tg:42" {
		t.Fatalf("session_key = %v", payload["session_key"])
	}
}

func TestWebhookNotifierReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := &WebhookNotifier{URL: server.URL, HTTPClient: server.Client()}
	if err := notifier.Notify(context.Background(), Event{Code: xerrors.CodeUnknown}); err == nil {
		t.Fatal("回调返回 5xx 时应报错")
	}
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	logSide := &countingNotifier{channel: ChannelLog}
	hookSide := &countingNotifier{channel: ChannelWebhook}
	fanout := NewFanout(logSide, hookSide)

	event := Event{Code: xerrors.CodeBuilderMismatch, SessionKey: "tg:42"}
	if err := fanout.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify 失败: %v", err)
	}
	if len(logSide.events) != 1 || len(hookSide.events) != 1 {
		t.Fatalf("两个渠道都应收到事件: log=%d hook=%d", len(logSide.events), len(hookSide.events))
	}
}

func TestFanoutJoinsChannelFailures(t *testing.T) {
	logSide := &countingNotifier{channel: ChannelLog}
	hookSide := &countingNotifier{channel: ChannelWebhook, err: context.DeadlineExceeded}
	fanout := NewFanout(logSide, hookSide)

	err := fanout.Notify(context.Background(), Event{Code: xerrors.CodeUnknown})
	if err == nil {
		t.Fatal("单渠道失败应向上返回")
	}
	if len(logSide.events) != 1 {
		t.Fatal("其余渠道不应被失败渠道拖累")
	}
}
