package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		server.Close()
		t.Fatalf("创建客户端失败: %v", err)
	}
	return client, server
}

func TestExtractToolCall(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("意外的请求路径: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("缺少鉴权头: %q", got)
		}
		var payload struct {
			Model string           `json:"model"`
			Tools []map[string]any `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("解析请求失败: %v", err)
		}
		if len(payload.Tools) != 4 {
			t.Fatalf("工具数量 = %d, 期望 4", len(payload.Tools))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"tool_calls": [{
						"function": {
							"name": "propose_transfer",
							"arguments": "{\"amount\": \"5\", \"asset\": \"USDC\", \"destination\": \"alice.sol\", \"confidence\": 0.92}"
						}
					}]
				}
			}]
		}`))
	})
	defer server.Close()

	got, err := client.Extract(context.Background(), llm.Request{Utterance: "send 5 USDC to alice.sol"})
	if err != nil {
		t.Fatalf("Extract 失败: %v", err)
	}
	if got.Kind != "transfer" {
		t.Fatalf("Kind = %q, 期望 transfer", got.Kind)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, 期望 0.92", got.Confidence)
	}
	want := map[string]string{"amount": "5", "asset": "USDC", "destination": "alice.sol"}
	for key, value := range want {
		if got.Params[key] != value {
			t.Fatalf("Params[%s] = %q, 期望 %q", key, got.Params[key], value)
		}
	}
	if _, ok := got.Params["confidence"]; ok {
		t.Fatal("confidence 不应出现在参数表中")
	}
}

func TestExtractConversationalReply(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Hello! How can I help?"}}]}`))
	})
	defer server.Close()

	got, err := client.Extract(context.Background(), llm.Request{Utterance: "hi"})
	if err != nil {
		t.Fatalf("Extract 失败: %v", err)
	}
	if got.Kind != "" {
		t.Fatalf("闲聊回复不应携带意图变体: %q", got.Kind)
	}
	if got.Reply != "Hello! How can I help?" {
		t.Fatalf("Reply = %q", got.Reply)
	}
}

func TestExtractServerErrorIsTransient(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	_, err := client.Extract(context.Background(), llm.Request{Utterance: "send 5 USDC to alice.sol"})
	if err == nil {
		t.Fatal("期望错误")
	}
	if xerrors.CodeOf(err) != xerrors.CodeTransientService {
		t.Fatalf("错误码 = %s, 期望 TRANSIENT_SERVICE", xerrors.CodeOf(err))
	}
}

func TestExtractNumericArguments(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"tool_calls": [{
						"function": {
							"name": "propose_ranking_query",
							"arguments": "{\"risk_level\": \"low\", \"rank_limit\": 10, \"confidence\": 0.8}"
						}
					}]
				}
			}]
		}`))
	})
	defer server.Close()

	got, err := client.Extract(context.Background(), llm.Request{Utterance: "find low risk pools in the top 10"})
	if err != nil {
		t.Fatalf("Extract 失败: %v", err)
	}
	if got.Kind != "ranking_query" {
		t.Fatalf("Kind = %q", got.Kind)
	}
	if got.Params["rank_limit"] != "10" {
		t.Fatalf("数值参数应转为字符串, 得到 %q", got.Params["rank_limit"])
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("缺少 API Key 时应当报错")
	}
}
