package market

import "context"

// Candidate 是一次符号解析得到的候选资产。
type Candidate struct {
	Identifier string `json:"identifier"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Rank       int    `json:"rank"`
}

// Pool 描述一个可供收益查询的流动性池。
type Pool struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume_24h"`
	APY       float64 `json:"apy"`
}

// Lookup 将资产符号解析为候选列表。
// 返回值按市值排名升序排列，排名相同时按标识符字典序排列；
// 大小写完全一致的符号视为精确匹配，由调用方优先采用。
type Lookup interface {
	Resolve(ctx context.Context, symbol string) ([]Candidate, error)
}

// PoolFinder 在满足风险约束的池子中挑选收益最高者。
type PoolFinder interface {
	BestPool(ctx context.Context, riskLevel string, rankLimit int) (*Pool, error)
}

// 风险等级到流动性下限（美元）的映射。
var riskLiquidityFloor = map[string]float64{
	"low":    5_000_000,
	"medium": 1_000_000,
	"high":   100_000,
}

// LiquidityFloor 返回风险等级对应的流动性下限，未知等级按最保守处理。
func LiquidityFloor(riskLevel string) float64 {
	if floor, ok := riskLiquidityFloor[riskLevel]; ok {
		return floor
	}
	return riskLiquidityFloor["low"]
}
