// Package compose 把管线的内部结果转成面向用户的英文回复。
// 所有函数都是纯函数，便于在测试里直接断言文案。
package compose

import (
	"fmt"
	"strings"
	"time"

	"IntentChain/internal/builder"
	"IntentChain/internal/chainquery"
	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/intent"
	"IntentChain/internal/market"
)

// slotLabels 把槽位名映射为用户可读的称呼。
var slotLabels = map[string]string{
	"amount":      "the amount",
	"asset":       "the asset",
	"destination": "the destination",
	"from_asset":  "the asset to sell",
	"to_asset":    "the asset to buy",
	"address":     "the address",
	"risk_level":  "the risk level",
	"rank_limit":  "the rank limit",
}

func labelOf(name string) string {
	if label, ok := slotLabels[name]; ok {
		return label
	}
	return name
}

// Clarification 生成一条澄清问题，精确点名全部缺失或有歧义的槽位。
// 歧义槽位的候选按排名列出且第一项为默认；仍缺失的槽位追加在候选之后。
func Clarification(in *intent.Intent) string {
	var misses, missing []string
	for _, name := range in.Unresolved() {
		slot := in.Slots[name]
		if slot != nil && slot.Raw != "" {
			misses = append(misses, fmt.Sprintf("I couldn't recognize %q as %s.", slot.Raw, labelOf(name)))
			continue
		}
		missing = append(missing, labelOf(name))
	}

	var parts []string
	parts = append(parts, misses...)
	switch len(missing) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("Please tell me %s.", missing[0]))
	default:
		last := missing[len(missing)-1]
		parts = append(parts, fmt.Sprintf("Please tell me %s and %s.",
			strings.Join(missing[:len(missing)-1], ", "), last))
	}

	if ambiguous := in.Ambiguous(); len(ambiguous) > 0 {
		slot := ambiguous[0]
		var lines []string
		lines = append(lines, fmt.Sprintf("I found more than one token called %s. Which one do you mean?", slot.Raw))
		for i, candidate := range slot.Candidates {
			suffix := ""
			if i == 0 {
				suffix = " (default)"
			}
			lines = append(lines, fmt.Sprintf("%d. %s — %s, rank %d%s",
				i+1, candidate.Name, candidate.Identifier, candidate.Rank, suffix))
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
		return strings.Join(lines, "\n")
	}

	if len(parts) == 0 {
		return "Could you rephrase that?"
	}
	return strings.Join(parts, " ")
}

// TransferProposal 生成转账提案的成功回复，附签名引用与有效期。
func TransferProposal(amount, asset, destination string, res *builder.ActionResult) string {
	return fmt.Sprintf(
		"Your transfer of %s %s to %s is ready to sign.\nOpen this link to review and sign: %s\nThe proposal expires at %s.",
		amount, asset, destination, res.Reference, formatExpiry(res.ExpiresAt))
}

// SwapProposal 生成兑换提案的成功回复。
func SwapProposal(amount, fromAsset, toAsset string, res *builder.ActionResult) string {
	return fmt.Sprintf(
		"Your swap of %s %s for %s is ready to sign.\nOpen this link to review and sign: %s\nThe proposal expires at %s.",
		amount, fromAsset, toAsset, res.Reference, formatExpiry(res.ExpiresAt))
}

// BalanceReply 生成余额查询回复。
func BalanceReply(balance *chainquery.Balance) string {
	return fmt.Sprintf("The balance of %s is %s %s.",
		balance.Address, chainquery.FormatNative(balance.Amount), balance.Symbol)
}

// PoolProposal 生成流动性池推荐回复。
func PoolProposal(pool *market.Pool, riskLevel string) string {
	return fmt.Sprintf(
		"Best %s-risk pool right now: %s\n- TVL: $%.0f\n- 24h volume: $%.0f\n- APY: %.2f%%",
		riskLevel, pool.Name, pool.Liquidity, pool.Volume24h, pool.APY*100)
}

// SmallTalk 透传模型的闲聊回复，空回复时兜底。
func SmallTalk(reply string) string {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "Hi! I can help you send tokens, swap assets, check balances or find liquidity pools."
	}
	return reply
}

// ExpiredProposal 提示用户提案已过签名时限。
func ExpiredProposal() string {
	return "That proposal has expired. Please tell me again what you'd like to do and I'll prepare a fresh one."
}

// ErrorReply 把内部错误转成用户可见的失败说明，绝不泄露内部细节。
func ErrorReply(err error) string {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeParseFailed:
		return "Sorry, I didn't understand that. I can send tokens, swap assets, check balances or find liquidity pools."
	case xerrors.CodeLookupMiss:
		return "I couldn't find anything matching that. Could you try a different symbol?"
	case xerrors.CodeTransientService:
		return "A service I depend on is temporarily unavailable. Please try again in a moment."
	case xerrors.CodeBuilderMismatch:
		return "I couldn't safely prepare that transaction, so I've discarded it. Nothing was signed or sent. Please start over."
	case xerrors.CodeBuilderRejected:
		return "The transaction service declined that request, so nothing was prepared. Please check the details and try again."
	case xerrors.CodeInvalidArgument:
		return "Some of those details don't look valid. Could you double-check and try again?"
	default:
		return "Something went wrong on my side. Please try again."
	}
}

func formatExpiry(at time.Time) string {
	if at.IsZero() {
		return "in a few minutes"
	}
	return at.UTC().Format("15:04:05 MST")
}
