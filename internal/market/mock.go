package market

import (
	"context"
	"strings"

	xerrors "IntentChain/internal/errors"
)

// MockProvider 提供确定性的行情数据，用于测试与离线开发。
// 资产表刻意包含同符号多链资产，便于验证歧义处理。
type MockProvider struct{}

// NewMockProvider 创建 MockProvider。
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

var mockListings = []Candidate{
	{Identifier: "sol-native", Symbol: "SOL", Name: "Solana", Rank: 5},
	{Identifier: "usdc-solana", Symbol: "USDC", Name: "USD Coin", Rank: 7},
	{Identifier: "usdt-solana", Symbol: "USDT", Name: "Tether", Rank: 3},
	{Identifier: "eth-mainnet", Symbol: "ETH", Name: "Ethereum", Rank: 2},
	{Identifier: "jup-solana", Symbol: "JUP", Name: "Jupiter", Rank: 64},
	// 同符号不同链，验证多候选排序与默认项选取。
	{Identifier: "velo-solana", Symbol: "VELO", Name: "Velo Solana", Rank: 180},
	{Identifier: "velo-base", Symbol: "VELO", Name: "Velodrome", Rank: 120},
}

var mockPools = []Pool{
	{ID: "pool-usdc-usdt", Name: "USDC-USDT", Liquidity: 20_000_000, Volume24h: 50_000_000, APY: 0.08},
	{ID: "pool-usdc-sol", Name: "USDC-SOL", Liquidity: 50_000_000, Volume24h: 100_000_000, APY: 0.15},
	{ID: "pool-jup-wif", Name: "JUP-WIF", Liquidity: 10_000_000, Volume24h: 40_000_000, APY: 0.50},
	{ID: "pool-usdc-uxd", Name: "USDC-UXD", Liquidity: 500_000, Volume24h: 1_000_000, APY: 0.12},
}

// FetchRankings 返回固定的排名列表。
func (m *MockProvider) FetchRankings(_ context.Context, limit int) ([]Candidate, error) {
	if limit <= 0 || limit > len(mockListings) {
		limit = len(mockListings)
	}
	out := make([]Candidate, limit)
	copy(out, mockListings[:limit])
	return out, nil
}

// Resolve 直接在固定表上做大小写不敏感匹配。
func (m *MockProvider) Resolve(_ context.Context, symbol string) ([]Candidate, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	var matches []Candidate
	for _, candidate := range mockListings {
		if strings.ToUpper(candidate.Symbol) == key {
			matches = append(matches, candidate)
		}
	}
	// 与缓存层保持一致的排序约定。
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].Rank < matches[i].Rank ||
				(matches[j].Rank == matches[i].Rank && matches[j].Identifier < matches[i].Identifier) {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	return matches, nil
}

// BestPool 在固定池子表上应用与真实客户端相同的筛选规则。
func (m *MockProvider) BestPool(_ context.Context, riskLevel string, _ int) (*Pool, error) {
	floor := LiquidityFloor(riskLevel)
	var best *Pool
	for i := range mockPools {
		pool := mockPools[i]
		if pool.Liquidity <= floor {
			continue
		}
		if best == nil || pool.APY > best.APY {
			chosen := pool
			best = &chosen
		}
	}
	if best == nil {
		return nil, xerrors.New(xerrors.CodeLookupMiss, "没有满足条件的流动性池")
	}
	return best, nil
}

var (
	_ Lookup     = (*MockProvider)(nil)
	_ PoolFinder = (*MockProvider)(nil)
	_ RankSource = (*MockProvider)(nil)
)
