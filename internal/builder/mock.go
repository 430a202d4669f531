package builder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockBuilder 在本地生成确定结构的交易提案，用于离线开发与测试。
// 回显与请求完全一致，引用形如 solana-action 链接但内容不可执行。
type MockBuilder struct {
	ttl time.Duration
	now func() time.Time
}

// NewMockBuilder 创建 MockBuilder，ttl 是提案的签名时限。
func NewMockBuilder(ttl time.Duration) *MockBuilder {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MockBuilder{ttl: ttl, now: time.Now}
}

// Build 返回回显一致的提案。引用是动作载荷加一次性随机数的
// base64url 编码，同一请求每次生成的引用都不同。
func (m *MockBuilder) Build(_ context.Context, req ActionRequest) (*ActionResult, error) {
	payload, err := json.Marshal(struct {
		Action ActionRequest `json:"action"`
		Nonce  string        `json:"nonce"`
	}{Action: req, Nonce: uuid.NewString()})
	if err != nil {
		return nil, fmt.Errorf("序列化动作载荷失败: %w", err)
	}
	result := &ActionResult{
		Reference: fmt.Sprintf("solana-action:%s", base64.RawURLEncoding.EncodeToString(payload)),
		Echo:      req,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := Verify(req, result); err != nil {
		return nil, err
	}
	return result, nil
}

var _ Builder = (*MockBuilder)(nil)
