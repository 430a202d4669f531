package intent

import (
	"context"
	"fmt"
	"time"

	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/llm"
)

const defaultConfidenceThreshold = 0.6

// ParseResult 是一次解析的产物。
// Intent 非空表示抽取到合法意图；否则 Reply 携带对闲聊输入的直接回复。
type ParseResult struct {
	Intent *Intent
	Reply  string
}

// Parser 把自然语言转成结构化意图。
// 抽取交给语言模型，Schema 校验与跨轮合并在本地完成，
// 模型输出在通过校验之前不被信任。
type Parser struct {
	client    llm.Client
	threshold float64
	now       func() time.Time
}

// NewParser 创建解析器。threshold 非正时使用默认置信度阈值。
func NewParser(client llm.Client, threshold float64) *Parser {
	if threshold <= 0 {
		threshold = defaultConfidenceThreshold
	}
	return &Parser{
		client:    client,
		threshold: threshold,
		now:       time.Now,
	}
}

// Parse 抽取一轮用户输入的意图并与未完成意图合并。
// 低于阈值或不符合变体 Schema 的抽取一律按解析失败处理。
func (p *Parser) Parse(ctx context.Context, pending *Intent, history []llm.HistoryTurn, utterance string) (*ParseResult, error) {
	extraction, err := p.client.Extract(ctx, llm.Request{
		Utterance: utterance,
		History:   history,
	})
	if err != nil {
		return nil, err
	}

	if extraction.Kind == "" {
		return &ParseResult{Reply: extraction.Reply}, nil
	}

	kind, ok := KindFromString(extraction.Kind)
	if !ok {
		return nil, xerrors.New(xerrors.CodeParseFailed,
			fmt.Sprintf("模型返回了未知的意图变体 %q", extraction.Kind),
			xerrors.WithMetadata("kind", extraction.Kind))
	}
	if extraction.Confidence < p.threshold {
		return nil, xerrors.New(xerrors.CodeParseFailed,
			fmt.Sprintf("抽取置信度 %.2f 低于阈值 %.2f", extraction.Confidence, p.threshold),
			xerrors.WithMetadata("confidence", fmt.Sprintf("%.2f", extraction.Confidence)))
	}

	next := New(kind, utterance, extraction.Confidence, p.now())
	if !next.ApplyParams(extraction.Params) {
		return nil, xerrors.New(xerrors.CodeParseFailed,
			"模型返回的参数不符合意图 Schema",
			xerrors.WithMetadata("kind", string(kind)))
	}

	return &ParseResult{Intent: Merge(pending, next)}, nil
}
