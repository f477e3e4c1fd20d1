package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
)

// --- Response types (повторяют api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API вместе с результатом валидации.
type FlowResponse struct {
	Flow       domain.Flow              `json:"flow"`
	Valid      bool                     `json:"valid"`
	Validation []engine.ValidationError `json:"validation"`
	Migration  *MigrationResponse       `json:"migration,omitempty"`
}

// FlowSummary — элемент списка flows.
type FlowSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// MigrationResponse — отчёт о миграции.
type MigrationResponse struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Applied []string `json:"applied"`
	Current bool     `json:"current"`
}

// ValidateResponse — результат проверки flow.
type ValidateResponse struct {
	Valid  bool                     `json:"valid"`
	Errors []engine.ValidationError `json:"errors"`
}

// RunResponse — состояние run.
//
// Для очереди заполнены RunID и Request, для inline-запуска —
// поля итогового результата движка (Status, Outputs, Error, NodeRuns).
type RunResponse struct {
	RunID    string             `json:"runId"`
	Request  *domain.RunRequest `json:"request,omitempty"`
	Run      *domain.FlowRun    `json:"run,omitempty"`
	Status   string             `json:"status,omitempty"`
	Outputs  map[string]any     `json:"outputs,omitempty"`
	Error    *RunError          `json:"error,omitempty"`
	NodeRuns []domain.NodeRun   `json:"nodeRuns,omitempty"`
}

// RunError — ошибка inline-запуска.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// State возвращает статус run для вывода.
func (r *RunResponse) State() string {
	switch {
	case r.Run != nil:
		return string(r.Run.Status)
	case r.Status != "":
		return r.Status
	case r.Request != nil:
		return string(r.Request.Status)
	default:
		return ""
	}
}

// --- Request types ---

// CreateRunRequest — запуск flow.
type CreateRunRequest struct {
	Mode             string            `json:"mode,omitempty"`
	Input            map[string]any    `json:"input,omitempty"`
	Variables        map[string]any    `json:"variables,omitempty"`
	SecretReferences map[string]string `json:"secretReferences,omitempty"`
	TraceID          string            `json:"traceId,omitempty"`
	IdempotencyKey   string            `json:"idempotencyKey,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cronExpr,omitempty"`
	IntervalSec int            `json:"intervalSec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Input       map[string]any `json:"input,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cronExpr,omitempty"`
	IntervalSec *int    `json:"intervalSec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для flowgen API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Flows ---

// ListFlows возвращает все flows.
func (c *Client) ListFlows(ctx context.Context) ([]FlowSummary, error) {
	var flows []FlowSummary
	err := c.list(ctx, "/api/v1/flows", nil, &flows)
	return flows, err
}

// ImportFlow сохраняет документ flow (JSON или YAML).
// create=true запрещает перезапись существующего flow.
func (c *Client) ImportFlow(ctx context.Context, document []byte, create bool) (*FlowResponse, error) {
	path := "/api/v1/flows/import"
	if create {
		path = "/api/v1/flows"
	}
	var flow FlowResponse
	err := c.doData(ctx, http.MethodPost, path, rawBody(document), &flow)
	return &flow, err
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(ctx context.Context, id string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.get(ctx, "/api/v1/flows/"+url.PathEscape(id), &flow)
	return &flow, err
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/flows/"+url.PathEscape(id))
}

// ExportFlow возвращает документ flow в формате format.
func (c *Client) ExportFlow(ctx context.Context, id string, format engine.Format) ([]byte, error) {
	path := "/api/v1/flows/" + url.PathEscape(id) + "/export?format=" + url.QueryEscape(string(format))

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// ValidateFlow проверяет сохранённый flow.
func (c *Client) ValidateFlow(ctx context.Context, id string) (*ValidateResponse, error) {
	var result ValidateResponse
	err := c.post(ctx, "/api/v1/flows/"+url.PathEscape(id)+"/validate", nil, &result)
	return &result, err
}

// --- Runs ---

// ListRuns возвращает ID runs, для которых есть журнал или снимок.
func (c *Client) ListRuns(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.list(ctx, "/api/v1/runs", nil, &ids)
	return ids, err
}

// CreateRun запускает flow.
func (c *Client) CreateRun(ctx context.Context, flowID string, req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post(ctx, "/api/v1/flows/"+url.PathEscape(flowID)+"/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// ListRunEvents возвращает журнал run.
func (c *Client) ListRunEvents(ctx context.Context, id string) ([]domain.ExecutionEvent, error) {
	var events []domain.ExecutionEvent
	err := c.list(ctx, "/api/v1/runs/"+url.PathEscape(id)+"/events", nil, &events)
	return events, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если flowID не пустой — фильтрует.
func (c *Client) ListSchedules(ctx context.Context, flowID string) ([]domain.Schedule, error) {
	params := url.Values{}
	if flowID != "" {
		params.Set("flow_id", flowID)
	}

	var schedules []domain.Schedule
	err := c.list(ctx, "/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для flow.
func (c *Client) CreateSchedule(ctx context.Context, flowID string, req CreateScheduleRequest) (*domain.Schedule, error) {
	var schedule domain.Schedule
	err := c.post(ctx, "/api/v1/flows/"+url.PathEscape(flowID)+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	var schedule domain.Schedule
	err := c.get(ctx, "/api/v1/schedules/"+url.PathEscape(id), &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(ctx context.Context, id string, req UpdateScheduleRequest) (*domain.Schedule, error) {
	var schedule domain.Schedule
	err := c.put(ctx, "/api/v1/schedules/"+url.PathEscape(id), req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/schedules/"+url.PathEscape(id))
}

// SetScheduleEnabled включает или выключает schedule.
func (c *Client) SetScheduleEnabled(ctx context.Context, id string, enabled bool) (*domain.Schedule, error) {
	var schedule domain.Schedule
	body := map[string]bool{"enabled": enabled}
	err := c.put(ctx, "/api/v1/schedules/"+url.PathEscape(id)+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

// rawBody — тело запроса, отправляемое без JSON-кодирования.
type rawBody []byte

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPut, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case rawBody:
		bodyReader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
