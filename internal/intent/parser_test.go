package intent

import (
	"context"
	"testing"
	"time"

	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/llm"
)

// stubLLM 返回固定的抽取结果或错误。
type stubLLM struct {
	extraction *llm.Extraction
	err        error
}

func (s *stubLLM) Extract(_ context.Context, _ llm.Request) (*llm.Extraction, error) {
	return s.extraction, s.err
}

func TestParseValidExtraction(t *testing.T) {
	parser := NewParser(&stubLLM{extraction: &llm.Extraction{
		Kind:       "transfer",
		Params:     map[string]string{"amount": "5", "asset": "USDC", "destination": "alice.sol"},
		Confidence: 0.9,
	}}, 0.6)

	result, err := parser.Parse(context.Background(), nil, nil, "send 5 USDC to alice.sol")
	if err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}
	if result.Intent == nil || result.Intent.Kind != KindTransfer {
		t.Fatalf("结果 = %+v", result)
	}
	if result.Intent.Slots["asset"].Raw != "USDC" {
		t.Fatalf("槽位未写入: %+v", result.Intent.Slots["asset"])
	}
}

func TestParseUnknownKindFails(t *testing.T) {
	parser := NewParser(&stubLLM{extraction: &llm.Extraction{
		Kind:       "stake",
		Confidence: 0.9,
	}}, 0.6)

	_, err := parser.Parse(context.Background(), nil, nil, "stake everything")
	if xerrors.CodeOf(err) != xerrors.CodeParseFailed {
		t.Fatalf("错误码 = %s, 期望 PARSE_FAILED", xerrors.CodeOf(err))
	}
}

func TestParseLowConfidenceFails(t *testing.T) {
	parser := NewParser(&stubLLM{extraction: &llm.Extraction{
		Kind:       "transfer",
		Params:     map[string]string{"amount": "5"},
		Confidence: 0.4,
	}}, 0.6)

	_, err := parser.Parse(context.Background(), nil, nil, "maybe send something")
	if xerrors.CodeOf(err) != xerrors.CodeParseFailed {
		t.Fatalf("错误码 = %s, 期望 PARSE_FAILED", xerrors.CodeOf(err))
	}
}

func TestParseUnknownParamFails(t *testing.T) {
	parser := NewParser(&stubLLM{extraction: &llm.Extraction{
		Kind:       "transfer",
		Params:     map[string]string{"memo": "hello"},
		Confidence: 0.9,
	}}, 0.6)

	_, err := parser.Parse(context.Background(), nil, nil, "send with memo")
	if xerrors.CodeOf(err) != xerrors.CodeParseFailed {
		t.Fatalf("错误码 = %s, 期望 PARSE_FAILED", xerrors.CodeOf(err))
	}
}

func TestParseSmallTalkReturnsReply(t *testing.T) {
	parser := NewParser(&stubLLM{extraction: &llm.Extraction{Reply: "Hello!"}}, 0.6)
	result, err := parser.Parse(context.Background(), nil, nil, "hi")
	if err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}
	if result.Intent != nil || result.Reply != "Hello!" {
		t.Fatalf("结果 = %+v", result)
	}
}

func TestParseTransientErrorPassesThrough(t *testing.T) {
	parser := NewParser(&stubLLM{err: xerrors.New(xerrors.CodeTransientService, "")}, 0.6)
	_, err := parser.Parse(context.Background(), nil, nil, "send 5 USDC to alice.sol")
	if xerrors.CodeOf(err) != xerrors.CodeTransientService {
		t.Fatalf("错误码 = %s, 期望 TRANSIENT_SERVICE", xerrors.CodeOf(err))
	}
}

func TestParseMergesWithPending(t *testing.T) {
	pending := New(KindSwap, "swap SOL for USDC", 0.9, time.Now())
	pending.ApplyParams(map[string]string{"from_asset": "SOL", "to_asset": "USDC"})
	pending.Slots["from_asset"].State = SlotResolved
	pending.Slots["from_asset"].Value = "SOL"

	parser := NewParser(&stubLLM{extraction: &llm.Extraction{
		Kind:       "swap",
		Params:     map[string]string{"amount": "5"},
		Confidence: 0.9,
	}}, 0.6)

	result, err := parser.Parse(context.Background(), pending, nil, "5")
	if err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}
	if result.Intent.Slots["amount"].Raw != "5" {
		t.Fatal("新槽位应被叠加")
	}
	if result.Intent.Slots["from_asset"].State != SlotResolved {
		t.Fatal("已解析槽位应保留")
	}
}
