package builder

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "IntentChain/internal/errors"
	"IntentChain/pkg/retry"
)

const defaultBuildTimeout = 15 * time.Second

// Builder 定义了交易构建服务的统一接口。
// 实现必须保证返回的提案已通过经济字段核验。
type Builder interface {
	Build(ctx context.Context, req ActionRequest) (*ActionResult, error)
}

// ClientConfig 描述交易构建服务的调用参数。
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   retry.Policy
}

// Client 通过 HTTP 调用交易构建服务。
// 瞬时失败在有限次数内重试；被拒绝或回显不一致的请求绝不重试。
type Client struct {
	baseURL    string
	apiKey     string
	policy     retry.Policy
	httpClient *http.Client
}

// NewClient 创建构建服务客户端。
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, stdErrors.New("未配置交易构建服务地址")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultBuildTimeout
	}
	policy := cfg.Retry
	if policy.Attempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	policy.Timeout = timeout
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		policy:     policy,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Build 提交动作请求并核验返回的提案。
func (c *Client) Build(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化动作请求失败: %w", err)
	}

	var result ActionResult
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		return c.post(ctx, payload, &result)
	})
	if err != nil {
		return nil, err
	}

	if err := Verify(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, payload []byte, out *ActionResult) error {
	endpoint := c.baseURL + "/v1/actions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构建交易请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeTransientService, err, "请求交易构建服务失败")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return xerrors.New(xerrors.CodeTransientService,
			fmt.Sprintf("构建服务返回状态 %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.New(xerrors.CodeBuilderRejected,
			fmt.Sprintf("构建服务拒绝了请求: %s", strings.TrimSpace(string(body))))
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("构建服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析构建响应失败: %w", err)
	}
	return nil
}

var _ Builder = (*Client)(nil)
