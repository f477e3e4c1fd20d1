package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPToolOptions — настройки HTTP-инструмента.
type HTTPToolOptions struct {
	Name        string
	Description string

	// Endpoint — URL, на который отправляется вход инструмента.
	Endpoint string

	// Method — HTTP метод (default: POST).
	Method string

	Headers map[string]string

	// Timeout — таймаут запроса (default: 30s).
	Timeout time.Duration

	// Capabilities — по умолчанию async, без стриминга, external.
	Capabilities *Capabilities

	// Client — HTTP клиент (для тестов).
	Client *http.Client
}

// HTTPTool — инструмент, отправляющий вход как JSON на endpoint.
//
// Ответ со статусом вне 2xx превращается в TOOL_HTTP_ERROR;
// ошибка восстанавливаема для статусов >= 500.
//
// Output — тело ответа (JSON или строка), Metadata — {status}.
type HTTPTool struct {
	name         string
	description  string
	endpoint     string
	method       string
	headers      map[string]string
	capabilities Capabilities
	client       *http.Client
}

// NewHTTPTool создаёт HTTPTool.
func NewHTTPTool(opts HTTPToolOptions) *HTTPTool {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodPost
	}

	headers := opts.Headers
	if headers == nil {
		headers = make(map[string]string)
	}

	caps := Capabilities{
		ExecutionMode:   ExecutionModeAsync,
		Streaming:       StreamingNone,
		SideEffectLevel: SideEffectExternal,
	}
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPTool{
		name:         opts.Name,
		description:  opts.Description,
		endpoint:     opts.Endpoint,
		method:       method,
		headers:      headers,
		capabilities: caps,
		client:       client,
	}
}

func (t *HTTPTool) Name() string               { return t.name }
func (t *HTTPTool) Description() string        { return t.description }
func (t *HTTPTool) Capabilities() Capabilities { return t.capabilities }

// Execute выполняет HTTP запрос.
func (t *HTTPTool) Execute(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(req.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize input: %v", ErrInvalidArguments, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, t.method, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range t.headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrToolCancelled, ctx.Err())
		}
		return nil, &ToolError{
			Code:        CodeToolHTTP,
			Message:     fmt.Sprintf("HTTP tool %s request failed: %v", t.name, err),
			Recoverable: true,
			Err:         err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ToolError{
			Code:        CodeToolHTTP,
			Message:     fmt.Sprintf("HTTP tool %s failed with status %d.", t.name, resp.StatusCode),
			Recoverable: resp.StatusCode >= 500,
			Details:     map[string]any{"status": resp.StatusCode},
		}
	}

	output, err := parseResponseBody(resp)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:   output,
		Metadata: map[string]any{"status": resp.StatusCode},
	}, nil
}

// parseResponseBody читает тело с ограничением размера.
// JSON разбирается, остальное возвращается строкой.
func parseResponseBody(resp *http.Response) (any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if len(bodyBytes) == 0 {
		return nil, nil
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var body any
		if err := json.Unmarshal(bodyBytes, &body); err == nil {
			return body, nil
		}
	}

	return string(bodyBytes), nil
}
