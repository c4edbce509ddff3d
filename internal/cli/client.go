package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — task из API.
type TaskResponse struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Status     string         `json:"status"`
	Priority   string         `json:"priority"`
	Progress   int            `json:"progress"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
	StartedAt  string         `json:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// BatchResult — результат действия над одним task.
type BatchResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TaskStats — статистика по tasks из API.
type TaskStats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByPriority         map[string]int `json:"by_priority"`
	AvgDurationSeconds float64        `json:"avg_duration_seconds"`
	QueueDepth         int            `json:"queue_depth"`
	ComputedAt         string         `json:"computed_at"`
}

// WorkflowResponse — workflow definition из API.
type WorkflowResponse struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Tasks            []map[string]any    `json:"tasks"`
	Dependencies     map[string][]string `json:"dependencies,omitempty"`
	Strategy         string              `json:"strategy"`
	MaxParallelTasks int                 `json:"max_parallel_tasks"`
}

// InstanceResponse — workflow instance из API.
type InstanceResponse struct {
	ID            string            `json:"id"`
	WorkflowID    string            `json:"workflow_id"`
	Status        string            `json:"status"`
	TaskInstances map[string]string `json:"task_instances"`
	Error         string            `json:"error,omitempty"`
	StartedAt     string            `json:"started_at,omitempty"`
	FinishedAt    string            `json:"finished_at,omitempty"`
	CreatedAt     string            `json:"created_at"`
}

// NodeResponse — worker-узел из API.
type NodeResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Healthy       bool               `json:"healthy"`
	Capacity      map[string]float64 `json:"capacity"`
	CurrentLoad   map[string]float64 `json:"current_load"`
	ActiveTasks   int                `json:"active_tasks"`
	LastHeartbeat string             `json:"last_heartbeat"`
}

// SchedulingMetrics — метрики планировщика из API.
type SchedulingMetrics struct {
	AvgWaitSeconds      float64            `json:"avg_wait_seconds"`
	AvgExecutionSeconds float64            `json:"avg_execution_seconds"`
	ThroughputPerMinute float64            `json:"throughput_per_minute"`
	ResourceUtilization map[string]float64 `json:"resource_utilization"`
	LoadBalanceScore    float64            `json:"load_balance_score"`
}

// SystemStatus — статус системы из API.
type SystemStatus struct {
	Running     bool                     `json:"running"`
	Components  map[string]ComponentInfo `json:"components"`
	ActiveCount int                      `json:"active_count"`
	ErrorCount  int                      `json:"error_count"`
	Time        string                   `json:"time"`
}

// ComponentInfo — состояние компонента из API.
type ComponentInfo struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	ErrorCount int            `json:"error_count"`
	LastError  string         `json:"last_error,omitempty"`
	Metrics    map[string]any `json:"metrics,omitempty"`
}

// --- Request types ---

// CreateTaskRequest — создание task.
type CreateTaskRequest struct {
	Name       string         `json:"name,omitempty"`
	Type       string         `json:"type"`
	Priority   *int           `json:"priority,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
	MaxRetries int            `json:"max_retries,omitempty"`
}

// ListTasksOpts — параметры фильтрации tasks.
type ListTasksOpts struct {
	Status string
	Type   string
	Limit  int
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

// --- Client ---

// Client — HTTP-клиент для Dirigent API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// ListTasks возвращает список tasks с фильтрацией.
func (c *Client) ListTasks(opts ListTasksOpts) ([]TaskResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// CreateTask создаёт task.
func (c *Client) CreateTask(req CreateTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks", req, &task)
	return &task, err
}

// GetTask возвращает task по ID.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get("/api/v1/tasks/"+id, &task)
	return &task, err
}

// ExecuteAction выполняет действие над task.
func (c *Client) ExecuteAction(id, action string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks/"+id+"/actions", map[string]string{"action": action}, &task)
	return &task, err
}

// ExecuteBatch выполняет действие над несколькими tasks.
func (c *Client) ExecuteBatch(ids []string, action string) ([]BatchResult, error) {
	body := map[string]any{"ids": ids, "action": action}
	var results []BatchResult
	err := c.list2(http.MethodPost, "/api/v1/tasks/actions", body, &results)
	return results, err
}

// GetTaskStats возвращает статистику по tasks.
func (c *Client) GetTaskStats() (*TaskStats, error) {
	var stats TaskStats
	err := c.get("/api/v1/tasks/stats", &stats)
	return &stats, err
}

// --- Workflows ---

// ListWorkflows возвращает зарегистрированные workflows.
func (c *Client) ListWorkflows() ([]WorkflowResponse, error) {
	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", nil, &workflows)
	return workflows, err
}

// RegisterWorkflow регистрирует workflow definition из JSON.
func (c *Client) RegisterWorkflow(definition json.RawMessage) (*WorkflowResponse, error) {
	var workflow WorkflowResponse
	err := c.post("/api/v1/workflows", definition, &workflow)
	return &workflow, err
}

// StartWorkflow запускает instance workflow.
func (c *Client) StartWorkflow(workflowID string, execCtx map[string]any) (*InstanceResponse, error) {
	var body any
	if len(execCtx) > 0 {
		body = map[string]any{"context": execCtx}
	}
	var instance InstanceResponse
	err := c.post("/api/v1/workflows/"+workflowID+"/instances", body, &instance)
	return &instance, err
}

// ListInstances возвращает все instances.
func (c *Client) ListInstances() ([]InstanceResponse, error) {
	var instances []InstanceResponse
	err := c.list("/api/v1/instances", nil, &instances)
	return instances, err
}

// GetInstance возвращает instance по ID.
func (c *Client) GetInstance(id string) (*InstanceResponse, error) {
	var instance InstanceResponse
	err := c.get("/api/v1/instances/"+id, &instance)
	return &instance, err
}

// CancelInstance отменяет instance.
func (c *Client) CancelInstance(id string) (*InstanceResponse, error) {
	var instance InstanceResponse
	err := c.post("/api/v1/instances/"+id+"/cancel", nil, &instance)
	return &instance, err
}

// --- Nodes ---

// ListNodes возвращает worker-узлы.
func (c *Client) ListNodes() ([]NodeResponse, error) {
	var nodes []NodeResponse
	err := c.list("/api/v1/nodes", nil, &nodes)
	return nodes, err
}

// AddNode добавляет worker-узел.
func (c *Client) AddNode(id, name string, capacity map[string]float64) (*NodeResponse, error) {
	body := map[string]any{"id": id, "name": name, "capacity": capacity}
	var node NodeResponse
	err := c.post("/api/v1/nodes", body, &node)
	return &node, err
}

// GetNode возвращает worker-узел по ID.
func (c *Client) GetNode(id string) (*NodeResponse, error) {
	var node NodeResponse
	err := c.get("/api/v1/nodes/"+id, &node)
	return &node, err
}

// RemoveNode удаляет worker-узел.
func (c *Client) RemoveNode(id string) error {
	return c.delete("/api/v1/nodes/" + id)
}

// HeartbeatNode обновляет heartbeat узла.
func (c *Client) HeartbeatNode(id string) error {
	return c.post("/api/v1/nodes/"+id+"/heartbeat", nil, nil)
}

// --- System ---

// GetSchedulingMetrics возвращает метрики планировщика.
func (c *Client) GetSchedulingMetrics() (*SchedulingMetrics, error) {
	var metrics SchedulingMetrics
	err := c.get("/api/v1/scheduling/metrics", &metrics)
	return &metrics, err
}

// GetSystemStatus возвращает статус системы.
func (c *Client) GetSystemStatus() (*SystemStatus, error) {
	var status SystemStatus
	err := c.get("/api/v1/system/status", &status)
	return &status, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	return c.list2(http.MethodGet, path, nil, result)
}

// list2 выполняет запрос, ожидающий ListResponse в ответе.
func (c *Client) list2(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
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

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
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

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
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
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
