package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xerrors "IntentChain/internal/errors"
	"IntentChain/pkg/retry"
)

func newTestMarketClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Retry:   retry.Policy{Attempts: 2, Timeout: time.Second, Backoff: time.Millisecond},
	})
	if err != nil {
		server.Close()
		t.Fatalf("创建客户端失败: %v", err)
	}
	return client, server
}

func TestFetchRankings(t *testing.T) {
	client, server := newTestMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listings" {
			t.Fatalf("意外的请求路径: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[
			{"id":"sol-native","symbol":"SOL","name":"Solana","rank":5},
			{"id":"","symbol":"","name":"broken","rank":0}
		]}`))
	})
	defer server.Close()

	candidates, err := client.FetchRankings(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchRankings 失败: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Identifier != "sol-native" {
		t.Fatalf("candidates = %+v", candidates)
	}
}

func TestBestPoolAppliesRiskFloor(t *testing.T) {
	client, server := newTestMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/pools" {
			t.Fatalf("意外的请求路径: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[
			{"id":"thin","name":"THIN-POOL","tvl":400000,"volume_24h":100000,"apr":90},
			{"id":"deep","name":"DEEP-POOL","tvl":60000000,"volume_24h":2000000,"apr":12}
		]}`))
	})
	defer server.Close()

	// 低风险下限 500 万美元，高收益但流动性不足的池子被排除。
	pool, err := client.BestPool(context.Background(), "low", 100)
	if err != nil {
		t.Fatalf("BestPool 失败: %v", err)
	}
	if pool.Name != "DEEP-POOL" {
		t.Fatalf("pool = %+v", pool)
	}
	if pool.APY != 0.12 {
		t.Fatalf("APR 应转换为小数收益率: %v", pool.APY)
	}
}

func TestBestPoolNoMatchReturnsLookupMiss(t *testing.T) {
	client, server := newTestMarketClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	defer server.Close()

	_, err := client.BestPool(context.Background(), "low", 100)
	if xerrors.CodeOf(err) != xerrors.CodeLookupMiss {
		t.Fatalf("错误码 = %s, 期望 LOOKUP_MISS", xerrors.CodeOf(err))
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	client, server := newTestMarketClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	_, err := client.FetchRankings(context.Background(), 10)
	if xerrors.CodeOf(err) != xerrors.CodeTransientService {
		t.Fatalf("错误码 = %s, 期望 TRANSIENT_SERVICE", xerrors.CodeOf(err))
	}
}
