package llm

import "context"

// HistoryTurn 是提供给大模型的一轮历史对话。
type HistoryTurn struct {
	Utterance string
	Reply     string
}

// Request 描述一次意图抽取调用。
type Request struct {
	Utterance string
	History   []HistoryTurn
}

// Extraction 是大模型抽取得到的原始结果。
// Kind 为空表示模型没有调用抽取工具，此时 Reply 携带其闲聊回复。
// Kind 与 Params 在此处尚未经过 Schema 校验，下游必须先校验再使用。
type Extraction struct {
	Kind       string
	Params     map[string]string
	Confidence float64
	Reply      string
}

// Client 定义了调用语言理解服务的统一接口。
type Client interface {
	Extract(ctx context.Context, req Request) (*Extraction, error)
}
