package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"IntentChain/internal/market"
)

// Kind 是意图变体的封闭标签集合。未知标签一律视为无法识别，绝不部分信任。
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindSwap     Kind = "swap"
	KindBalance  Kind = "balance_query"
	KindRanking  Kind = "ranking_query"
)

// SlotType 描述槽位的语义类型。
type SlotType string

const (
	TypeAmount  SlotType = "amount"
	TypeToken   SlotType = "token"
	TypeAddress SlotType = "address"
	TypeRisk    SlotType = "risk"
	TypeRank    SlotType = "rank"
)

// FillState 描述槽位的填充状态。
type FillState string

const (
	SlotUnfilled  FillState = "unfilled"
	SlotResolved  FillState = "resolved"
	SlotAmbiguous FillState = "ambiguous"
)

// Provenance 记录槽位值的来源，用户给定的值绝不允许被默认值覆盖。
type Provenance string

const (
	SourceUser    Provenance = "user"
	SourceLookup  Provenance = "lookup"
	SourceDefault Provenance = "default"
)

// Slot 是意图的一个命名参数。
// Raw 保存用户原话中的文本，Value 保存解析后的规范值。
type Slot struct {
	Name       string             `json:"name"`
	Type       SlotType           `json:"type"`
	State      FillState          `json:"state"`
	Raw        string             `json:"raw,omitempty"`
	Value      string             `json:"value,omitempty"`
	Source     Provenance         `json:"source,omitempty"`
	Candidates []market.Candidate `json:"candidates,omitempty"`
}

// SlotSpec 声明某个意图变体的一个参数。
type SlotSpec struct {
	Name     string
	Type     SlotType
	Required bool
	Default  string
}

// variantSlots 声明每个意图变体的参数集合，是意图 Schema 的唯一定义点。
var variantSlots = map[Kind][]SlotSpec{
	KindTransfer: {
		{Name: "amount", Type: TypeAmount, Required: true},
		{Name: "asset", Type: TypeToken, Required: true},
		{Name: "destination", Type: TypeAddress, Required: true},
	},
	KindSwap: {
		{Name: "amount", Type: TypeAmount, Required: true},
		{Name: "from_asset", Type: TypeToken, Required: true},
		{Name: "to_asset", Type: TypeToken, Required: true},
	},
	KindBalance: {
		{Name: "address", Type: TypeAddress, Required: true},
	},
	KindRanking: {
		{Name: "risk_level", Type: TypeRisk, Required: false, Default: "low"},
		{Name: "rank_limit", Type: TypeRank, Required: false, Default: "100"},
	},
}

// KindFromString 校验变体标签是否属于封闭集合。
func KindFromString(raw string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := variantSlots[kind]; ok {
		return kind, true
	}
	return "", false
}

// SlotsOf 返回变体声明的参数集合。
func SlotsOf(kind Kind) []SlotSpec {
	return variantSlots[kind]
}

// Intent 是一次意图抽取的结构化结果。构造后不再原地修改，
// 新一轮对话通过 Merge 产生新的意图。
type Intent struct {
	Kind       Kind             `json:"kind"`
	Confidence float64          `json:"confidence"`
	Utterance  string           `json:"utterance"`
	Slots      map[string]*Slot `json:"slots"`
	CreatedAt  int64            `json:"created_at"`
}

// New 按变体声明初始化意图，所有槽位初始为未填充。
func New(kind Kind, utterance string, confidence float64, now time.Time) *Intent {
	slots := make(map[string]*Slot)
	for _, spec := range variantSlots[kind] {
		slots[spec.Name] = &Slot{
			Name:  spec.Name,
			Type:  spec.Type,
			State: SlotUnfilled,
		}
	}
	return &Intent{
		Kind:       kind,
		Confidence: confidence,
		Utterance:  utterance,
		Slots:      slots,
		CreatedAt:  now.Unix(),
	}
}

// ApplyParams 将抽取到的参数写入对应槽位（来源为用户）。
// 未在变体中声明的参数名视为 Schema 不符，返回 false。
func (in *Intent) ApplyParams(params map[string]string) bool {
	for name, raw := range params {
		slot, ok := in.Slots[name]
		if !ok {
			return false
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		slot.Raw = raw
		slot.Source = SourceUser
		slot.State = SlotUnfilled
		slot.Value = ""
		slot.Candidates = nil
	}
	return true
}

// Merge 以 pending 为基础叠加 next 的用户槽位，实现跨轮细化。
// 变体不同则直接以 next 取代 pending。
func Merge(pending, next *Intent) *Intent {
	if pending == nil {
		return next
	}
	if next == nil {
		return pending
	}
	if pending.Kind != next.Kind {
		return next
	}
	merged := pending.Clone()
	merged.Confidence = next.Confidence
	merged.Utterance = next.Utterance
	for name, slot := range next.Slots {
		if slot.Raw == "" {
			continue
		}
		target, ok := merged.Slots[name]
		if !ok {
			continue
		}
		if target.Raw == slot.Raw && target.State == SlotResolved {
			// 同一值已解析过，保留解析结果。
			continue
		}
		*target = *slot
	}
	return merged
}

// Clone 返回意图的深拷贝。
func (in *Intent) Clone() *Intent {
	if in == nil {
		return nil
	}
	clone := *in
	clone.Slots = make(map[string]*Slot, len(in.Slots))
	for name, slot := range in.Slots {
		copied := *slot
		if len(slot.Candidates) > 0 {
			copied.Candidates = make([]market.Candidate, len(slot.Candidates))
			copy(copied.Candidates, slot.Candidates)
		}
		clone.Slots[name] = &copied
	}
	return &clone
}

// Unresolved 返回尚未解析的必填槽位名，顺序与变体声明一致。
func (in *Intent) Unresolved() []string {
	var missing []string
	for _, spec := range variantSlots[in.Kind] {
		if !spec.Required {
			continue
		}
		slot := in.Slots[spec.Name]
		if slot == nil || slot.State != SlotResolved {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

// Ambiguous 返回处于多候选状态的槽位，顺序与变体声明一致。
func (in *Intent) Ambiguous() []*Slot {
	var out []*Slot
	for _, spec := range variantSlots[in.Kind] {
		slot := in.Slots[spec.Name]
		if slot != nil && slot.State == SlotAmbiguous {
			out = append(out, slot)
		}
	}
	return out
}

// FullyResolved 判断全部必填槽位是否已解析且无歧义。
func (in *Intent) FullyResolved() bool {
	return len(in.Unresolved()) == 0 && len(in.Ambiguous()) == 0
}

var numberToken = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// ParseAmount 提取文本中的第一个正数，拒绝 v2 之类的版本号写法。
func ParseAmount(text string) (float64, bool) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	for _, field := range fields {
		if !numberToken.MatchString(field) {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSuffix(field, "."), 64)
		if err == nil && value > 0 {
			return value, true
		}
	}
	return 0, false
}

// FormatAmount 将数值金额转为规范字符串表示。
func FormatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
