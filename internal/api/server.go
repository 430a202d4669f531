package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"IntentChain/internal/history"
	"IntentChain/internal/turnqueue"
)

// Processor 处理一条用户轮次并返回回复文本。
type Processor interface {
	HandleTurn(ctx context.Context, sessionKey, utterance string, receivedAt time.Time) (string, error)
}

// Server 负责暴露 REST 接口，供外部前端驱动对话管线。
type Server struct {
	addr      string
	processor Processor
	records   history.Repository
	turns     turnqueue.Producer
}

// NewServer 构造 API 服务实例。records 与 turns 允许为空，对应接口返回 404。
func NewServer(addr string, processor Processor, records history.Repository, turns turnqueue.Producer) *Server {
	return &Server{addr: addr, processor: processor, records: records, turns: turns}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回路由后的处理器，便于测试直接挂到 httptest。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/turns", s.handleTurns)
	mux.HandleFunc("/api/v1/turns/enqueue", s.handleEnqueue)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

type turnRequest struct {
	SessionKey string `json:"session_key"`
	Utterance  string `json:"utterance"`
}

type turnResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体不是合法 JSON", http.StatusBadRequest)
		return
	}
	req.SessionKey = strings.TrimSpace(req.SessionKey)
	req.Utterance = strings.TrimSpace(req.Utterance)
	if req.SessionKey == "" || req.Utterance == "" {
		http.Error(w, "session_key 与 utterance 不能为空", http.StatusBadRequest)
		return
	}

	reply, err := s.processor.HandleTurn(r.Context(), req.SessionKey, req.Utterance, time.Now())
	if err != nil {
		http.Error(w, "处理轮次失败", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Reply: reply})
}

type enqueueResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleEnqueue 把轮次投递到队列后立即返回，回复由调度器异步产出。
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.turns == nil {
		http.Error(w, "异步轮次未启用", http.StatusNotFound)
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体不是合法 JSON", http.StatusBadRequest)
		return
	}
	req.SessionKey = strings.TrimSpace(req.SessionKey)
	req.Utterance = strings.TrimSpace(req.Utterance)
	if req.SessionKey == "" || req.Utterance == "" {
		http.Error(w, "session_key 与 utterance 不能为空", http.StatusBadRequest)
		return
	}

	envelope := turnqueue.Envelope{
		ID:         uuid.NewString(),
		SessionKey: req.SessionKey,
		Utterance:  req.Utterance,
		ReceivedAt: time.Now(),
	}
	if err := s.turns.Publish(r.Context(), envelope); err != nil {
		http.Error(w, "投递轮次失败", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{ID: envelope.ID, Status: "queued"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.records == nil {
		http.Error(w, "历史记录未启用", http.StatusNotFound)
		return
	}
	sessionKey := strings.TrimSpace(r.URL.Query().Get("session_key"))
	if sessionKey == "" {
		http.Error(w, "缺少 session_key 参数", http.StatusBadRequest)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit 必须是正整数", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.records.ListRecent(r.Context(), sessionKey, limit)
	if err != nil {
		http.Error(w, "查询历史失败", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
