// Package pipeline 把解析、槽位解析、编排与文案组装串成一条轮次处理管线。
// 同一会话键下的轮次严格串行，跨会话并行互不影响。
package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"IntentChain/internal/builder"
	"IntentChain/internal/chainquery"
	"IntentChain/internal/compose"
	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/history"
	"IntentChain/internal/intent"
	"IntentChain/internal/llm"
	"IntentChain/internal/market"
	"IntentChain/internal/observability/alerting"
	"IntentChain/internal/resolve"
	"IntentChain/internal/session"
	"IntentChain/pkg/logger"
)

// Config 控制管线的行为参数。
type Config struct {
	// HistoryLimit 是会话里保留的往返轮次上限。
	HistoryLimit int
	// ContextTurns 是提供给意图抽取的历史轮次数。
	ContextTurns int
}

// Engine 是轮次处理管线的入口。
type Engine struct {
	cfg      Config
	store    session.Store
	parser   *intent.Parser
	resolver *resolve.Resolver
	builder  builder.Builder
	pools    market.PoolFinder
	chain    chainquery.Reader
	records  history.Repository
	alerts   alerting.Dispatcher

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine 组装管线。records 与 alerts 允许为空。
func NewEngine(
	cfg Config,
	store session.Store,
	parser *intent.Parser,
	resolver *resolve.Resolver,
	actionBuilder builder.Builder,
	pools market.PoolFinder,
	chain chainquery.Reader,
	records history.Repository,
	alerts alerting.Dispatcher,
) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = 5
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		parser:   parser,
		resolver: resolver,
		builder:  actionBuilder,
		pools:    pools,
		chain:    chain,
		records:  records,
		alerts:   alerts,
		locks:    make(map[string]*keyLock),
	}
}

// turnResult 是一轮处理的内部产物。
type turnResult struct {
	reply   string
	outcome string
	kind    string
}

// HandleTurn 处理一条用户轮次并返回回复。
// 任何输入都会产出一条回复；返回的 error 仅用于基础设施层面的记录。
func (e *Engine) HandleTurn(ctx context.Context, sessionKey, utterance string, receivedAt time.Time) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if sessionKey == "" || utterance == "" {
		return compose.ErrorReply(xerrors.New(xerrors.CodeInvalidArgument, "会话键与输入不能为空")), nil
	}

	unlock := e.lockKey(sessionKey)
	defer unlock()

	started := time.Now()
	sess, err := e.store.Get(ctx, sessionKey)
	if err != nil {
		return compose.ErrorReply(err), err
	}

	result := e.process(ctx, sess, utterance)

	sess.AppendTurn(session.Turn{
		Utterance: utterance,
		Reply:     result.reply,
		At:        receivedAt.Unix(),
	}, e.cfg.HistoryLimit)

	if _, err := e.store.Update(ctx, sessionKey, func(stored *session.Session) error {
		stored.State = sess.State
		stored.PendingIntent = sess.PendingIntent
		stored.History = sess.History
		return nil
	}); err != nil {
		logger.L().Error("持久化会话失败",
			slog.String("session_key", sessionKey),
			slog.Any("error", err),
		)
	}

	e.record(ctx, sessionKey, utterance, result, receivedAt)
	logger.Audit().Info("turn",
		slog.String("session_key", sessionKey),
		slog.String("utterance", utterance),
		slog.String("outcome", result.outcome),
		slog.String("intent_kind", result.kind),
		slog.Duration("took", time.Since(started)),
	)
	return result.reply, nil
}

// process 执行解析、槽位解析与编排，并把会话推进到对应状态。
func (e *Engine) process(ctx context.Context, sess *session.Session, utterance string) turnResult {
	pending := sess.PendingIntent
	kind := ""
	if pending != nil {
		kind = string(pending.Kind)
	}

	current, ok := e.cheapFill(pending, utterance)
	if !ok {
		parsed, err := e.parser.Parse(ctx, pending, e.contextFor(sess), utterance)
		if err != nil {
			// 解析失败与上游瞬时失败都不触碰既有意图，用户可以直接重试。
			return turnResult{reply: compose.ErrorReply(err), outcome: history.OutcomeError, kind: kind}
		}
		if parsed.Intent == nil {
			return turnResult{reply: compose.SmallTalk(parsed.Reply), outcome: history.OutcomeSmallTalk, kind: kind}
		}
		current = parsed.Intent
	}

	kind = string(current.Kind)
	resolved, err := e.resolver.Resolve(ctx, current)
	if err != nil {
		// 行情查询瞬时失败：保留合并后的意图，下一轮接着问。
		sess.SetPending(current)
		return turnResult{reply: compose.ErrorReply(err), outcome: history.OutcomeError, kind: kind}
	}

	if len(resolved.Missing) > 0 || len(resolved.Ambiguous) > 0 {
		sess.SetPending(resolved.Intent)
		return turnResult{
			reply:   compose.Clarification(resolved.Intent),
			outcome: history.OutcomeClarification,
			kind:    kind,
		}
	}

	sess.State = session.StateResolved
	reply, outcome := e.orchestrate(ctx, sess, resolved.Intent)
	// 编排结果无论成败都是终态，会话回到空闲。
	sess.ClearPending()
	return turnResult{reply: reply, outcome: outcome, kind: kind}
}

// cheapFill 在等待单个槽位补充时接受裸值输入，不经过语言模型。
// 裸值必须与所等待槽位的类型吻合，否则交还给完整解析路径。
func (e *Engine) cheapFill(pending *intent.Intent, utterance string) (*intent.Intent, bool) {
	if pending == nil || strings.ContainsAny(utterance, " \t\n") {
		return nil, false
	}

	var target *intent.Slot
	if ambiguous := pending.Ambiguous(); len(ambiguous) > 0 {
		target = ambiguous[0]
	} else if missing := pending.Unresolved(); len(missing) == 1 {
		target = pending.Slots[missing[0]]
	}
	if target == nil {
		return nil, false
	}

	switch target.Type {
	case intent.TypeAmount:
		if _, ok := intent.ParseAmount(utterance); !ok {
			return nil, false
		}
	case intent.TypeAddress:
		lower := strings.ToLower(utterance)
		if !strings.HasPrefix(lower, "0x") &&
			!strings.HasSuffix(lower, ".sol") &&
			!strings.HasSuffix(lower, ".eth") {
			return nil, false
		}
	case intent.TypeRisk:
		switch strings.ToLower(utterance) {
		case "low", "medium", "high":
		default:
			return nil, false
		}
	case intent.TypeRank:
		if _, err := strconv.Atoi(utterance); err != nil {
			return nil, false
		}
	case intent.TypeToken:
		// 任何单词都可能是符号或候选标识符，交给解析器判定。
	}

	filled := pending.Clone()
	slot := filled.Slots[target.Name]
	slot.Raw = utterance
	slot.Source = intent.SourceUser
	if slot.State != intent.SlotAmbiguous {
		slot.State = intent.SlotUnfilled
	}
	slot.Value = ""
	return filled, true
}

// orchestrate 执行已补齐意图对应的外部动作，执行期间会话处于编排状态。
func (e *Engine) orchestrate(ctx context.Context, sess *session.Session, in *intent.Intent) (string, string) {
	sess.State = session.StateOrchestrating
	switch in.Kind {
	case intent.KindTransfer:
		return e.buildTransfer(ctx, sess.Key, in)
	case intent.KindSwap:
		return e.buildSwap(ctx, sess.Key, in)
	case intent.KindBalance:
		return e.queryBalance(ctx, in)
	case intent.KindRanking:
		return e.findPool(ctx, in)
	default:
		return compose.ErrorReply(xerrors.New(xerrors.CodeUnknown, "")), history.OutcomeError
	}
}

func (e *Engine) buildTransfer(ctx context.Context, sessionKey string, in *intent.Intent) (string, string) {
	amount, _ := intent.ParseAmount(in.Slots["amount"].Value)
	req := builder.ActionRequest{
		ID:          uuid.NewString(),
		Kind:        string(intent.KindTransfer),
		Amount:      amount,
		Asset:       in.Slots["asset"].Value,
		Destination: in.Slots["destination"].Value,
	}
	result, err := e.builder.Build(ctx, req)
	if err != nil {
		e.alert(ctx, err, sessionKey, string(in.Kind))
		return compose.ErrorReply(err), history.OutcomeError
	}
	if result.Expired(time.Now()) {
		return compose.ExpiredProposal(), history.OutcomeError
	}
	return compose.TransferProposal(in.Slots["amount"].Value, req.Asset, req.Destination, result), history.OutcomeProposal
}

func (e *Engine) buildSwap(ctx context.Context, sessionKey string, in *intent.Intent) (string, string) {
	amount, _ := intent.ParseAmount(in.Slots["amount"].Value)
	req := builder.ActionRequest{
		ID:      uuid.NewString(),
		Kind:    string(intent.KindSwap),
		Amount:  amount,
		Asset:   in.Slots["from_asset"].Value,
		ToAsset: in.Slots["to_asset"].Value,
	}
	result, err := e.builder.Build(ctx, req)
	if err != nil {
		e.alert(ctx, err, sessionKey, string(in.Kind))
		return compose.ErrorReply(err), history.OutcomeError
	}
	if result.Expired(time.Now()) {
		return compose.ExpiredProposal(), history.OutcomeError
	}
	return compose.SwapProposal(in.Slots["amount"].Value, req.Asset, req.ToAsset, result), history.OutcomeProposal
}

func (e *Engine) queryBalance(ctx context.Context, in *intent.Intent) (string, string) {
	balance, err := e.chain.NativeBalance(ctx, in.Slots["address"].Value)
	if err != nil {
		return compose.ErrorReply(err), history.OutcomeError
	}
	return compose.BalanceReply(balance), history.OutcomeAnswer
}

func (e *Engine) findPool(ctx context.Context, in *intent.Intent) (string, string) {
	risk := in.Slots["risk_level"].Value
	limit, _ := strconv.Atoi(in.Slots["rank_limit"].Value)
	pool, err := e.pools.BestPool(ctx, risk, limit)
	if err != nil {
		return compose.ErrorReply(err), history.OutcomeError
	}
	return compose.PoolProposal(pool, risk), history.OutcomeAnswer
}

// contextFor 把会话历史转成提供给语言模型的上下文窗口。
func (e *Engine) contextFor(sess *session.Session) []llm.HistoryTurn {
	turns := sess.History
	if len(turns) > e.cfg.ContextTurns {
		turns = turns[len(turns)-e.cfg.ContextTurns:]
	}
	out := make([]llm.HistoryTurn, 0, len(turns))
	for _, turn := range turns {
		out = append(out, llm.HistoryTurn{Utterance: turn.Utterance, Reply: turn.Reply})
	}
	return out
}

func (e *Engine) record(ctx context.Context, sessionKey, utterance string, result turnResult, receivedAt time.Time) {
	if e.records == nil {
		return
	}
	err := e.records.Save(ctx, history.Record{
		ID:         uuid.NewString(),
		SessionKey: sessionKey,
		Utterance:  utterance,
		Reply:      result.reply,
		IntentKind: result.kind,
		Outcome:    result.outcome,
		CreatedAt:  receivedAt,
	})
	if err != nil {
		logger.L().Warn("保存对话记录失败",
			slog.String("session_key", sessionKey),
			slog.Any("error", err),
		)
	}
}

func (e *Engine) alert(ctx context.Context, err error, sessionKey, intentKind string) {
	if e.alerts == nil {
		return
	}
	event, ok := alerting.FromError(err, sessionKey, intentKind)
	if !ok {
		// 编排阶段重试耗尽意味着用户的交易没有落地，同样需要关注。
		if xerrors.CodeOf(err) != xerrors.CodeTransientService {
			return
		}
		event = alerting.Event{
			Code:       xerrors.CodeOf(err),
			Message:    err.Error(),
			Severity:   xerrors.SeverityOf(err),
			SessionKey: sessionKey,
			IntentKind: intentKind,
			OccurredAt: time.Now(),
		}
	}
	if notifyErr := e.alerts.Notify(ctx, event); notifyErr != nil {
		logger.L().Warn("投递告警失败", slog.Any("error", notifyErr))
	}
}

// lockKey 获取会话键对应的互斥锁，保证同键轮次串行。
func (e *Engine) lockKey(key string) func() {
	e.mu.Lock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &keyLock{}
		e.locks[key] = lock
	}
	lock.refs++
	e.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		e.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(e.locks, key)
		}
		e.mu.Unlock()
	}
}
