package market

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "IntentChain/internal/errors"
	"IntentChain/pkg/retry"
)

const defaultClientTimeout = 10 * time.Second

// ClientConfig 描述行情排名服务的调用参数。
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	RankLimit int
	Timeout   time.Duration
	Retry     retry.Policy
}

// Client 通过 HTTP 调用行情排名服务，实现 Lookup 与 PoolFinder 的数据来源。
type Client struct {
	baseURL    string
	apiKey     string
	rankLimit  int
	policy     retry.Policy
	httpClient *http.Client
}

// NewClient 创建行情服务客户端。
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, stdErrors.New("未配置行情服务地址")
	}
	limit := cfg.RankLimit
	if limit <= 0 {
		limit = 200
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	policy := cfg.Retry
	if policy.Attempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	policy.Timeout = timeout
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		rankLimit:  limit,
		policy:     policy,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// FetchRankings 拉取前 N 名资产列表，供缓存层刷新使用。
func (c *Client) FetchRankings(ctx context.Context, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = c.rankLimit
	}
	endpoint := fmt.Sprintf("%s/v1/listings?limit=%d", c.baseURL, limit)

	var decoded struct {
		Data []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
			Rank   int    `json:"rank"`
		} `json:"data"`
	}
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &decoded)
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(decoded.Data))
	for _, entry := range decoded.Data {
		if entry.Symbol == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Identifier: entry.ID,
			Symbol:     entry.Symbol,
			Name:       entry.Name,
			Rank:       entry.Rank,
		})
	}
	return candidates, nil
}

// BestPool 在满足风险约束的池子中返回收益最高者，无匹配时返回 LOOKUP_MISS。
func (c *Client) BestPool(ctx context.Context, riskLevel string, rankLimit int) (*Pool, error) {
	query := url.Values{}
	query.Set("risk", riskLevel)
	query.Set("rank_limit", strconv.Itoa(rankLimit))
	endpoint := c.baseURL + "/v1/pools?" + query.Encode()

	var decoded struct {
		Data []struct {
			ID        string  `json:"id"`
			Name      string  `json:"name"`
			Liquidity float64 `json:"tvl"`
			Volume24h float64 `json:"volume_24h"`
			APR       float64 `json:"apr"`
		} `json:"data"`
	}
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &decoded)
	})
	if err != nil {
		return nil, err
	}

	floor := LiquidityFloor(riskLevel)
	var best *Pool
	for _, entry := range decoded.Data {
		if entry.Liquidity <= floor {
			continue
		}
		if best == nil || entry.APR/100 > best.APY {
			best = &Pool{
				ID:        entry.ID,
				Name:      entry.Name,
				Liquidity: entry.Liquidity,
				Volume24h: entry.Volume24h,
				APY:       entry.APR / 100,
			}
		}
	}
	if best == nil {
		return nil, xerrors.New(xerrors.CodeLookupMiss, "没有满足条件的流动性池")
	}
	return best, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("构建行情请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeTransientService, err, "请求行情服务失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return xerrors.New(xerrors.CodeTransientService,
			fmt.Sprintf("行情服务返回状态 %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("行情服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析行情响应失败: %w", err)
	}
	return nil
}
