package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	vterrors "github.com/vtcode/vtcode/pkg/errors"
	"github.com/vtcode/vtcode/pkg/runloop"
	"github.com/vtcode/vtcode/pkg/tools"
)

// defaultProviderRateLimit and defaultProviderBurst throttle outbound
// requests to the configured model provider, grounded on the teacher's
// pkg/model/client.go (a token-bucket rate.Limiter guarding its own
// outbound HTTP calls) — distinct from the Safety Gateway's per-tool
// sliding-window limits in pkg/safety, which police the agent's own tool
// calls rather than provider transport traffic.
const (
	defaultProviderRateLimit = rate.Limit(1)
	defaultProviderBurst     = 4
)

// openAICompatProvider implements runloop.Provider against the OpenAI chat
// completions wire format, which openrouter, openai, and most self-hosted
// gateways share. Provider is an injected port, so this is just the CLI's
// default concrete implementation of it; a different backend (anthropic's
// native format, a local model server) plugs in by implementing the same
// three-method interface. Streaming delta accumulation lives on the
// transport side of the port instead of in the run-loop itself.
type openAICompatProvider struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func newOpenAICompatProvider(baseURL, apiKey string) *openAICompatProvider {
	return &openAICompatProvider{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		client:      &http.Client{Timeout: 5 * time.Minute},
		rateLimiter: rate.NewLimiter(defaultProviderRateLimit, defaultProviderBurst),
	}
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireRequest struct {
	Model          string          `json:"model"`
	Messages       []wireMessage   `json:"messages"`
	Tools          []map[string]any `json:"tools,omitempty"`
	Stream         bool            `json:"stream"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
}

type wireDelta struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
	ToolCalls []struct {
		Index    int    `json:"index"`
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

type wireChunk struct {
	Choices []struct {
		Delta        wireDelta `json:"delta"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Stream implements runloop.Provider.
func (p *openAICompatProvider) Stream(ctx context.Context, req runloop.Request) (<-chan runloop.StreamEvent, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, vterrors.Wrap(err, vterrors.ErrCodeModelRateLimit, "wait for provider rate limiter").WithRetryable(true)
	}

	body := wireRequest{
		Model:           req.Model,
		Stream:          true,
		ReasoningEffort: req.ReasoningEffort,
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			wtc := wireToolCall{ID: tc.ID, Type: "function"}
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = string(tc.Arguments)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		body.Messages = append(body.Messages, wm)
	}
	for _, d := range req.Tools {
		body.Tools = append(body.Tools, d.ToOpenAIFormat())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		code := vterrors.ErrCodeModelAPIError
		if ctx.Err() != nil {
			code = vterrors.ErrCodeModelTimeout
		}
		return nil, vterrors.Wrap(err, code, "send request to provider").WithContext("model", req.Model).WithRetryable(true)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		code := vterrors.ErrCodeModelAPIError
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if resp.StatusCode == http.StatusTooManyRequests {
			code = vterrors.ErrCodeModelRateLimit
		}
		return nil, vterrors.New(code, fmt.Sprintf("provider returned %s", resp.Status)).
			WithContext("model", req.Model).WithContext("body", buf.String()).WithRetryable(retryable)
	}

	events := make(chan runloop.StreamEvent, 8)
	go p.consume(resp.Body, events)
	return events, nil
}

type toolCallAccumulator struct {
	id   string
	name string
	args strings.Builder
}

func toolCallFrom(acc *toolCallAccumulator) tools.ToolCall {
	return tools.ToolCall{ID: acc.id, Name: acc.name, Arguments: json.RawMessage(acc.args.String())}
}

// consume reads an SSE response body, accumulating per-token deltas into
// TokenEvent/ReasoningEvent and incremental tool-call-delta fragments into
// whole tool_calls, emitted once as part of the final CompletedEvent — the
// wire format's incremental tool-call encoding never crosses the Provider
// port.
func (p *openAICompatProvider) consume(body io.ReadCloser, events chan<- runloop.StreamEvent) {
	defer close(events)
	defer body.Close()

	reader := bufio.NewReaderSize(body, 64*1024)

	var content, reasoning strings.Builder
	var finishReason string
	var usage *runloop.Usage
	toolCalls := map[int]*toolCallAccumulator{}
	maxIndex := -1

	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}
			if data != "" {
				var chunk wireChunk
				if jerr := json.Unmarshal([]byte(data), &chunk); jerr == nil {
					if chunk.Usage != nil {
						usage = &runloop.Usage{
							PromptTokens:     chunk.Usage.PromptTokens,
							CompletionTokens: chunk.Usage.CompletionTokens,
							TotalTokens:      chunk.Usage.TotalTokens,
						}
					}
					for _, choice := range chunk.Choices {
						if choice.Delta.Content != "" {
							content.WriteString(choice.Delta.Content)
							events <- runloop.TokenEvent{Delta: choice.Delta.Content}
						}
						if choice.Delta.Reasoning != "" {
							reasoning.WriteString(choice.Delta.Reasoning)
							events <- runloop.ReasoningEvent{Delta: choice.Delta.Reasoning}
						}
						for _, tc := range choice.Delta.ToolCalls {
							acc, exists := toolCalls[tc.Index]
							if !exists {
								acc = &toolCallAccumulator{}
								toolCalls[tc.Index] = acc
								if tc.Index > maxIndex {
									maxIndex = tc.Index
								}
							}
							if tc.ID != "" {
								acc.id = tc.ID
							}
							if tc.Function.Name != "" {
								acc.name = tc.Function.Name
							}
							acc.args.WriteString(tc.Function.Arguments)
						}
						if choice.FinishReason != "" {
							finishReason = choice.FinishReason
						}
					}
				}
			}
		}
		if err != nil {
			break
		}
	}

	final := runloop.Response{
		Content:      content.String(),
		Reasoning:    reasoning.String(),
		FinishReason: finishReason,
		Usage:        usage,
	}
	for i := 0; i <= maxIndex; i++ {
		acc, ok := toolCalls[i]
		if !ok {
			continue
		}
		final.ToolCalls = append(final.ToolCalls, toolCallFrom(acc))
	}
	events <- runloop.CompletedEvent{Response: final}
}
