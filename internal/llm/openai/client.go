package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModelName = "gpt-4o-mini"
	defaultTimeout   = 30 * time.Second
)

// Config 描述了调用 OpenAI Chat Completions API 所需的信息。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client 通过 HTTP 调用 OpenAI 完成结构化意图抽取。
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Extract 调用 OpenAI 进行一次工具调用式的结构化抽取。
func (c *Client) Extract(ctx context.Context, req llm.Request) (*llm.Extraction, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建 OpenAI 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeTransientService, err, "请求 OpenAI 失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, xerrors.New(xerrors.CodeTransientService,
			fmt.Sprintf("OpenAI 返回状态 %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("OpenAI 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析 OpenAI 响应失败: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("OpenAI 响应中没有有效的 choices")
	}

	message := decoded.Choices[0].Message
	if len(message.ToolCalls) == 0 {
		// 未调用工具时将模型回复原样透传，由上层决定是否当作闲聊。
		return &llm.Extraction{Reply: strings.TrimSpace(message.Content)}, nil
	}

	call := message.ToolCalls[0].Function
	params, confidence, err := decodeArguments(call.Arguments)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeParseFailed, err, "工具参数不是合法 JSON")
	}
	return &llm.Extraction{
		Kind:       strings.TrimPrefix(call.Name, "propose_"),
		Params:     params,
		Confidence: confidence,
	}, nil
}

// decodeArguments 将工具参数展平为字符串映射，并剥离自报的置信度。
func decodeArguments(raw string) (map[string]string, float64, error) {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()

	var args map[string]any
	if err := decoder.Decode(&args); err != nil {
		return nil, 0, err
	}

	params := make(map[string]string, len(args))
	confidence := 0.0
	for key, value := range args {
		text := ""
		switch v := value.(type) {
		case string:
			text = v
		case json.Number:
			text = v.String()
		case bool:
			text = strconv.FormatBool(v)
		default:
			continue
		}
		if key == "confidence" {
			if parsed, err := strconv.ParseFloat(text, 64); err == nil {
				confidence = parsed
			}
			continue
		}
		params[key] = text
	}
	return params, confidence, nil
}

func (c *Client) buildPayload(req llm.Request) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	messages := []message{
		{
			Role:    "system",
			Content: systemPrompt,
		},
	}
	for _, turn := range req.History {
		messages = append(messages,
			message{Role: "user", Content: turn.Utterance},
			message{Role: "assistant", Content: turn.Reply},
		)
	}
	messages = append(messages, message{Role: "user", Content: req.Utterance})

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"tools":       intentTools,
		"temperature": 0.2,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化 OpenAI 请求失败: %w", err)
	}
	return encoded, nil
}

const systemPrompt = "" +
	"You are the intent extraction engine of a wallet assistant. " +
	"When the user asks to move funds, swap assets, check a balance or find yield, " +
	"call exactly one of the provided tools and copy parameter values verbatim from the user's words " +
	"without inventing or defaulting any value the user did not state. " +
	"Report how certain you are in the required \"confidence\" parameter (0 to 1). " +
	"If the message is a greeting or unrelated chatter, reply conversationally instead of calling a tool."

// confidenceProperty 是所有工具共享的置信度参数声明。
var confidenceProperty = map[string]any{
	"type":        "number",
	"description": "Extraction confidence between 0 and 1.",
}

// intentTools 声明四类意图的抽取 Schema，工具名去掉 propose_ 前缀即变体标签。
var intentTools = []map[string]any{
	{
		"type": "function",
		"function": map[string]any{
			"name":        "propose_transfer",
			"description": "The user wants to send an amount of an asset to a destination address or name.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"amount":      map[string]any{"type": "string", "description": "Amount exactly as stated by the user."},
					"asset":       map[string]any{"type": "string", "description": "Asset symbol exactly as stated."},
					"destination": map[string]any{"type": "string", "description": "Destination address or name exactly as stated."},
					"confidence":  confidenceProperty,
				},
				"required": []string{"confidence"},
			},
		},
	},
	{
		"type": "function",
		"function": map[string]any{
			"name":        "propose_swap",
			"description": "The user wants to swap one asset for another.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"amount":     map[string]any{"type": "string", "description": "Amount exactly as stated by the user."},
					"from_asset": map[string]any{"type": "string", "description": "Asset being sold, exactly as stated."},
					"to_asset":   map[string]any{"type": "string", "description": "Asset being bought, exactly as stated."},
					"confidence": confidenceProperty,
				},
				"required": []string{"confidence"},
			},
		},
	},
	{
		"type": "function",
		"function": map[string]any{
			"name":        "propose_balance_query",
			"description": "The user wants to check the balance of an address.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"address":    map[string]any{"type": "string", "description": "Address exactly as stated."},
					"confidence": confidenceProperty,
				},
				"required": []string{"confidence"},
			},
		},
	},
	{
		"type": "function",
		"function": map[string]any{
			"name":        "propose_ranking_query",
			"description": "The user wants to find liquidity pools by risk level and token market-cap rank.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"risk_level": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
					"rank_limit": map[string]any{"type": "integer", "description": "Maximum market cap rank, e.g. 10 for top-10 tokens."},
					"confidence": confidenceProperty,
				},
				"required": []string{"confidence"},
			},
		},
	},
}
