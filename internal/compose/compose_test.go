package compose

import (
	"strings"
	"testing"
	"time"

	"IntentChain/internal/builder"
	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/intent"
	"IntentChain/internal/market"
)

func TestClarificationNamesMissingSlots(t *testing.T) {
	in := intent.New(intent.KindSwap, "swap SOL for USDC", 0.9, time.Now())
	in.Slots["from_asset"].State = intent.SlotResolved
	in.Slots["from_asset"].Value = "SOL"
	in.Slots["to_asset"].State = intent.SlotResolved
	in.Slots["to_asset"].Value = "USDC"

	got := Clarification(in)
	if !strings.Contains(got, "the amount") {
		t.Fatalf("澄清问题应点名金额槽位: %q", got)
	}
	if strings.Contains(got, "asset") {
		t.Fatalf("已解析槽位不应出现在澄清问题里: %q", got)
	}
}

func TestClarificationListsCandidatesDefaultFirst(t *testing.T) {
	in := intent.New(intent.KindTransfer, "send 5 VELO to alice.sol", 0.9, time.Now())
	slot := in.Slots["asset"]
	slot.Raw = "VELO"
	slot.State = intent.SlotAmbiguous
	slot.Candidates = []market.Candidate{
		{Identifier: "velo-base", Symbol: "VELO", Name: "Velodrome", Rank: 120},
		{Identifier: "velo-solana", Symbol: "VELO", Name: "Velo Solana", Rank: 180},
	}

	got := Clarification(in)
	if !strings.Contains(got, "more than one token called VELO") {
		t.Fatalf("应提示同名多候选: %q", got)
	}
	first := strings.Index(got, "velo-base")
	second := strings.Index(got, "velo-solana")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("候选应按排名列出且默认在前: %q", got)
	}
	if !strings.Contains(got, "(default)") {
		t.Fatalf("第一候选应标注默认: %q", got)
	}
}

func TestClarificationNamesMissingSlotsAfterCandidates(t *testing.T) {
	in := intent.New(intent.KindTransfer, "send 5 VELO", 0.9, time.Now())
	in.Slots["amount"].State = intent.SlotResolved
	in.Slots["amount"].Value = "5"
	slot := in.Slots["asset"]
	slot.Raw = "VELO"
	slot.State = intent.SlotAmbiguous
	slot.Candidates = []market.Candidate{
		{Identifier: "velo-base", Symbol: "VELO", Name: "Velodrome", Rank: 120},
		{Identifier: "velo-solana", Symbol: "VELO", Name: "Velo Solana", Rank: 180},
	}

	got := Clarification(in)
	if !strings.Contains(got, "more than one token called VELO") {
		t.Fatalf("应先列出歧义候选: %q", got)
	}
	if !strings.Contains(got, "Please tell me the destination.") {
		t.Fatalf("仍缺失的槽位必须一并点名: %q", got)
	}
	if strings.Index(got, "velo-solana") > strings.Index(got, "Please tell me") {
		t.Fatalf("缺失槽位应排在候选列表之后: %q", got)
	}
}

func TestClarificationReportsLookupMiss(t *testing.T) {
	in := intent.New(intent.KindTransfer, "send 5 FAKECOIN to alice.sol", 0.9, time.Now())
	in.Slots["amount"].State = intent.SlotResolved
	in.Slots["amount"].Value = "5"
	in.Slots["destination"].State = intent.SlotResolved
	in.Slots["destination"].Value = "alice.sol"
	in.Slots["asset"].Raw = "FAKECOIN"
	in.Slots["asset"].State = intent.SlotUnfilled

	got := Clarification(in)
	if !strings.Contains(got, "FAKECOIN") {
		t.Fatalf("查不到的符号应原样出现在回复中: %q", got)
	}
}

func TestTransferProposalMentionsReferenceAndExpiry(t *testing.T) {
	res := &builder.ActionResult{
		Reference: "solana-action:abc",
		ExpiresAt: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
	got := TransferProposal("5", "USDC", "alice.sol", res)
	if !strings.Contains(got, "solana-action:abc") {
		t.Fatalf("回复应包含签名引用: %q", got)
	}
	if !strings.Contains(got, "15:04:05") {
		t.Fatalf("回复应包含过期时间: %q", got)
	}
	if !strings.Contains(got, "5 USDC") || !strings.Contains(got, "alice.sol") {
		t.Fatalf("回复应复述交易内容: %q", got)
	}
}

func TestPoolProposalFormatsMetrics(t *testing.T) {
	pool := &market.Pool{Name: "USDC-SOL", Liquidity: 50_000_000, Volume24h: 100_000_000, APY: 0.15}
	got := PoolProposal(pool, "low")
	if !strings.Contains(got, "USDC-SOL") {
		t.Fatalf("回复应包含池子名称: %q", got)
	}
	if !strings.Contains(got, "15.00%") {
		t.Fatalf("APY 应按百分比展示: %q", got)
	}
}

func TestErrorReplyByCode(t *testing.T) {
	cases := []struct {
		code xerrors.Code
		want string
	}{
		{xerrors.CodeTransientService, "temporarily unavailable"},
		{xerrors.CodeBuilderMismatch, "Nothing was signed or sent"},
		{xerrors.CodeParseFailed, "didn't understand"},
		{xerrors.CodeLookupMiss, "couldn't find"},
	}
	for _, tc := range cases {
		got := ErrorReply(xerrors.New(tc.code, ""))
		if !strings.Contains(got, tc.want) {
			t.Fatalf("错误码 %s 的回复 = %q, 应包含 %q", tc.code, got, tc.want)
		}
	}
}

func TestSmallTalkFallback(t *testing.T) {
	if got := SmallTalk("  "); !strings.Contains(got, "I can help") {
		t.Fatalf("空回复应使用兜底文案: %q", got)
	}
	if got := SmallTalk("Hello there"); got != "Hello there" {
		t.Fatalf("非空回复应原样透传: %q", got)
	}
}
