package mock

import (
	"context"
	"strings"

	"IntentChain/internal/llm"
)

// Client 是规则驱动的确定性抽取器，用于离线开发与端到端测试。
// 规则覆盖四类意图的常见英文表述，覆盖不到的输入按闲聊回复处理。
type Client struct{}

// NewClient 创建规则抽取器。
func NewClient() *Client {
	return &Client{}
}

// Extract 按关键词规则抽取意图，不访问任何外部服务。
func (c *Client) Extract(_ context.Context, req llm.Request) (*llm.Extraction, error) {
	text := strings.TrimSpace(req.Utterance)
	lower := strings.ToLower(text)
	words := strings.Fields(text)

	switch {
	case strings.Contains(lower, "swap") || strings.Contains(lower, " for "):
		return extractSwap(words), nil
	case strings.Contains(lower, "send") || strings.Contains(lower, "transfer") || strings.Contains(lower, " to "):
		return extractTransfer(words), nil
	case strings.Contains(lower, "balance"):
		return extractBalance(words), nil
	case strings.Contains(lower, "pool") || strings.Contains(lower, "yield") || strings.Contains(lower, "apy"):
		return extractRanking(lower, words), nil
	default:
		return &llm.Extraction{Reply: "Hi! I can help you send tokens, swap assets, check balances or find liquidity pools."}, nil
	}
}

// extractTransfer 匹配 "send <amount> <asset> to <destination>" 形态。
func extractTransfer(words []string) *llm.Extraction {
	params := map[string]string{}
	for i, word := range words {
		lower := strings.ToLower(word)
		if (lower == "send" || lower == "transfer") && i+2 < len(words) {
			params["amount"] = words[i+1]
			params["asset"] = words[i+2]
		}
		if lower == "to" && i+1 < len(words) {
			params["destination"] = strings.TrimRight(words[i+1], ".,!?")
		}
	}
	return &llm.Extraction{Kind: "transfer", Params: params, Confidence: 0.9}
}

// extractSwap 匹配 "swap <amount> <from> for <to>" 形态，金额缺失时只给出资产对。
func extractSwap(words []string) *llm.Extraction {
	params := map[string]string{}
	for i, word := range words {
		lower := strings.ToLower(word)
		if lower == "swap" && i+1 < len(words) {
			next := words[i+1]
			if strings.IndexFunc(next, func(r rune) bool { return r >= '0' && r <= '9' }) == 0 {
				params["amount"] = next
				if i+2 < len(words) {
					params["from_asset"] = words[i+2]
				}
			} else {
				params["from_asset"] = next
			}
		}
		if lower == "for" && i+1 < len(words) {
			params["to_asset"] = strings.TrimRight(words[i+1], ".,!?")
		}
	}
	return &llm.Extraction{Kind: "swap", Params: params, Confidence: 0.9}
}

// extractBalance 把最后一个词当作地址。
func extractBalance(words []string) *llm.Extraction {
	params := map[string]string{}
	for _, word := range words {
		trimmed := strings.TrimRight(word, ".,!?")
		if strings.HasPrefix(trimmed, "0x") ||
			strings.HasSuffix(strings.ToLower(trimmed), ".sol") ||
			strings.HasSuffix(strings.ToLower(trimmed), ".eth") {
			params["address"] = trimmed
		}
	}
	return &llm.Extraction{Kind: "balance_query", Params: params, Confidence: 0.9}
}

// extractRanking 识别风险词与 top-N 限定。
func extractRanking(lower string, words []string) *llm.Extraction {
	params := map[string]string{}
	for _, level := range []string{"low", "medium", "high"} {
		if strings.Contains(lower, level) {
			params["risk_level"] = level
			break
		}
	}
	for i, word := range words {
		cleaned := strings.TrimPrefix(strings.ToLower(word), "top")
		if cleaned != strings.ToLower(word) && cleaned != "" {
			params["rank_limit"] = cleaned
		} else if strings.EqualFold(word, "top") && i+1 < len(words) {
			params["rank_limit"] = strings.TrimRight(words[i+1], ".,!?")
		}
	}
	return &llm.Extraction{Kind: "ranking_query", Params: params, Confidence: 0.9}
}

var _ llm.Client = (*Client)(nil)
