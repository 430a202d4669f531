package intent

import (
	"testing"
	"time"
)

func TestKindFromString(t *testing.T) {
	for _, raw := range []string{"transfer", "SWAP", " balance_query ", "ranking_query"} {
		if _, ok := KindFromString(raw); !ok {
			t.Fatalf("%q 应属于封闭集合", raw)
		}
	}
	for _, raw := range []string{"", "stake", "transfer_all"} {
		if _, ok := KindFromString(raw); ok {
			t.Fatalf("%q 不应被接受", raw)
		}
	}
}

func TestApplyParamsRejectsUnknownSlot(t *testing.T) {
	in := New(KindTransfer, "send 5 USDC to alice.sol", 0.9, time.Now())
	if in.ApplyParams(map[string]string{"amount": "5", "memo": "hi"}) {
		t.Fatal("未声明的参数名应视为 Schema 不符")
	}
	if !in.ApplyParams(map[string]string{"amount": "5", "asset": "USDC"}) {
		t.Fatal("合法参数应被接受")
	}
	if in.Slots["amount"].Raw != "5" || in.Slots["amount"].Source != SourceUser {
		t.Fatalf("槽位未正确写入: %+v", in.Slots["amount"])
	}
}

func TestMergeKeepsResolvedSlots(t *testing.T) {
	now := time.Now()
	pending := New(KindSwap, "swap SOL for USDC", 0.9, now)
	pending.ApplyParams(map[string]string{"from_asset": "SOL", "to_asset": "USDC"})
	pending.Slots["from_asset"].State = SlotResolved
	pending.Slots["from_asset"].Value = "SOL"
	pending.Slots["to_asset"].State = SlotResolved
	pending.Slots["to_asset"].Value = "USDC"

	next := New(KindSwap, "5", 0.85, now)
	next.ApplyParams(map[string]string{"amount": "5"})

	merged := Merge(pending, next)
	if merged.Slots["from_asset"].State != SlotResolved {
		t.Fatal("已解析槽位应在合并后保留")
	}
	if merged.Slots["amount"].Raw != "5" {
		t.Fatal("新槽位应被叠加")
	}
}

func TestMergeDifferentKindReplaces(t *testing.T) {
	now := time.Now()
	pending := New(KindSwap, "swap SOL for USDC", 0.9, now)
	next := New(KindBalance, "balance of 0xabc", 0.9, now)
	if merged := Merge(pending, next); merged.Kind != KindBalance {
		t.Fatalf("变体变化时应整体替换: %s", merged.Kind)
	}
}

func TestUnresolvedOrderMatchesDeclaration(t *testing.T) {
	in := New(KindTransfer, "send", 0.9, time.Now())
	missing := in.Unresolved()
	want := []string{"amount", "asset", "destination"}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v", missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("缺失槽位顺序 = %v, 期望 %v", missing, want)
		}
	}
}

func TestRankingDefaultsAreNotRequired(t *testing.T) {
	in := New(KindRanking, "find pools", 0.9, time.Now())
	if missing := in.Unresolved(); len(missing) != 0 {
		t.Fatalf("排名查询不应有必填缺失: %v", missing)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"5", 5, true},
		{"send 2.5 SOL", 2.5, true},
		{"0.001", 0.001, true},
		{"swap v2 tokens", 0, false},
		{"no numbers here", 0, false},
		{"0", 0, false},
		{"-3", 3, true}, // 负号按分隔符处理，金额取绝对数值
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.text)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("ParseAmount(%q) = %v,%v, 期望 %v,%v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}
