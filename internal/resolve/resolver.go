package resolve

import (
	"context"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"IntentChain/internal/intent"
	"IntentChain/internal/market"
)

// Result 是一次槽位解析的汇总。
// Missing 按变体声明顺序列出仍未解析的必填槽位；
// Ambiguous 列出需要用户二选一的多候选槽位。
type Result struct {
	Intent    *intent.Intent
	Missing   []string
	Ambiguous []*intent.Slot
}

// Resolver 把槽位的原始文本解析为规范值。
// 代币槽位通过行情排名表解析，其余槽位本地校验，
// 用户已给出的值绝不会被默认值覆盖。
type Resolver struct {
	lookup market.Lookup
}

// NewResolver 创建槽位解析器。
func NewResolver(lookup market.Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve 逐槽位解析意图。仅行情查询的瞬时失败会中断解析并向上返回。
func (r *Resolver) Resolve(ctx context.Context, in *intent.Intent) (*Result, error) {
	for _, spec := range intent.SlotsOf(in.Kind) {
		slot := in.Slots[spec.Name]
		if slot == nil {
			continue
		}
		if slot.State == intent.SlotResolved {
			continue
		}
		if slot.Raw == "" {
			if !spec.Required && spec.Default != "" {
				slot.Value = spec.Default
				slot.Source = intent.SourceDefault
				slot.State = intent.SlotResolved
			}
			continue
		}

		var err error
		switch slot.Type {
		case intent.TypeAmount:
			resolveAmount(slot)
		case intent.TypeToken:
			err = r.resolveToken(ctx, slot)
		case intent.TypeAddress:
			resolveAddress(slot)
		case intent.TypeRisk:
			resolveRisk(slot)
		case intent.TypeRank:
			resolveRank(slot)
		}
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Intent:    in,
		Missing:   in.Unresolved(),
		Ambiguous: in.Ambiguous(),
	}, nil
}

func resolveAmount(slot *intent.Slot) {
	value, ok := intent.ParseAmount(slot.Raw)
	if !ok {
		slot.State = intent.SlotUnfilled
		return
	}
	slot.Value = intent.FormatAmount(value)
	slot.State = intent.SlotResolved
}

// resolveToken 先尝试在既有候选集中消歧，再走行情排名表查询。
// 多候选时排名第一的作为默认项排在最前。
func (r *Resolver) resolveToken(ctx context.Context, slot *intent.Slot) error {
	if len(slot.Candidates) > 0 {
		if chosen, ok := pickCandidate(slot.Candidates, slot.Raw); ok {
			slot.Value = chosen.Symbol
			slot.Source = intent.SourceLookup
			slot.State = intent.SlotResolved
			slot.Candidates = nil
			return nil
		}
	}

	matches, err := r.lookup.Resolve(ctx, slot.Raw)
	if err != nil {
		return err
	}
	switch len(matches) {
	case 0:
		slot.State = intent.SlotUnfilled
		slot.Candidates = nil
	case 1:
		slot.Value = matches[0].Symbol
		slot.Source = intent.SourceLookup
		slot.State = intent.SlotResolved
		slot.Candidates = nil
	default:
		// 多候选时大小写完全一致的符号优先，唯一命中即直接解析。
		if exact, ok := exactSymbol(matches, slot.Raw); ok {
			slot.Value = exact.Symbol
			slot.Source = intent.SourceLookup
			slot.State = intent.SlotResolved
			slot.Candidates = nil
			return nil
		}
		slot.State = intent.SlotAmbiguous
		slot.Candidates = matches
	}
	return nil
}

// exactSymbol 在候选集中查找与用户原文逐字符一致的符号，唯一命中才算精确匹配。
func exactSymbol(candidates []market.Candidate, raw string) (market.Candidate, bool) {
	cleaned := strings.TrimSpace(raw)
	var matched []market.Candidate
	for _, candidate := range candidates {
		if candidate.Symbol == cleaned {
			matched = append(matched, candidate)
		}
	}
	if len(matched) == 1 {
		return matched[0], true
	}
	return market.Candidate{}, false
}

// pickCandidate 在候选集中按标识符或符号做精确匹配，唯一命中才算选中。
func pickCandidate(candidates []market.Candidate, raw string) (market.Candidate, bool) {
	cleaned := strings.TrimSpace(raw)
	var matched []market.Candidate
	for _, candidate := range candidates {
		if strings.EqualFold(candidate.Identifier, cleaned) {
			return candidate, true
		}
		if strings.EqualFold(candidate.Symbol, cleaned) || strings.EqualFold(candidate.Name, cleaned) {
			matched = append(matched, candidate)
		}
	}
	if len(matched) == 1 {
		return matched[0], true
	}
	if len(matched) > 1 {
		return exactSymbol(matched, cleaned)
	}
	return market.Candidate{}, false
}

// resolveAddress 接受十六进制地址或 .sol/.eth 域名。
func resolveAddress(slot *intent.Slot) {
	raw := strings.TrimSpace(slot.Raw)
	lower := strings.ToLower(raw)
	if common.IsHexAddress(raw) ||
		strings.HasSuffix(lower, ".sol") ||
		strings.HasSuffix(lower, ".eth") {
		slot.Value = raw
		slot.State = intent.SlotResolved
		return
	}
	slot.State = intent.SlotUnfilled
}

func resolveRisk(slot *intent.Slot) {
	level := strings.ToLower(strings.TrimSpace(slot.Raw))
	switch level {
	case "low", "medium", "high":
		slot.Value = level
		slot.State = intent.SlotResolved
	default:
		slot.State = intent.SlotUnfilled
	}
}

func resolveRank(slot *intent.Slot) {
	limit, err := strconv.Atoi(strings.TrimSpace(slot.Raw))
	if err != nil || limit <= 0 {
		slot.State = intent.SlotUnfilled
		return
	}
	slot.Value = strconv.Itoa(limit)
	slot.State = intent.SlotResolved
}
