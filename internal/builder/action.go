package builder

import (
	"fmt"
	"time"

	xerrors "IntentChain/internal/errors"
)

// ActionRequest 是提交给交易构建服务的动作请求。
// 经济字段（金额与资产）来自已解析的意图，提交后不允许被响应篡改。
type ActionRequest struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	Asset       string  `json:"asset"`
	Destination string  `json:"destination,omitempty"`
	ToAsset     string  `json:"to_asset,omitempty"`
}

// ActionResult 是构建服务返回的交易提案。
// Echo 回显构建方实际采用的请求参数，Reference 是用户签名入口的不透明引用。
type ActionResult struct {
	Reference string        `json:"reference"`
	Echo      ActionRequest `json:"echo"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Expired 判断提案在给定时刻是否已过签名时限。
func (r *ActionResult) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Verify 核对构建响应回显的经济字段与请求是否一致。
// 任何不一致都是致命错误，调用方不得重试也不得把结果展示给用户。
func Verify(req ActionRequest, res *ActionResult) error {
	if res == nil {
		return xerrors.New(xerrors.CodeBuilderMismatch, "构建服务没有返回提案")
	}
	echo := res.Echo
	switch {
	case echo.Amount != req.Amount:
		return mismatch("amount", fmt.Sprintf("%v", req.Amount), fmt.Sprintf("%v", echo.Amount))
	case echo.Asset != req.Asset:
		return mismatch("asset", req.Asset, echo.Asset)
	case echo.Destination != req.Destination:
		return mismatch("destination", req.Destination, echo.Destination)
	case echo.ToAsset != req.ToAsset:
		return mismatch("to_asset", req.ToAsset, echo.ToAsset)
	}
	if res.Reference == "" {
		return xerrors.New(xerrors.CodeBuilderMismatch, "构建响应缺少签名引用")
	}
	return nil
}

func mismatch(field, want, got string) error {
	return xerrors.New(xerrors.CodeBuilderMismatch,
		fmt.Sprintf("构建响应的 %s 与请求不一致", field),
		xerrors.WithMetadata("field", field),
		xerrors.WithMetadata("requested", want),
		xerrors.WithMetadata("echoed", got))
}
