package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/integrator"
	"github.com/shaiso/Dirigent/internal/scheduler"
	"github.com/shaiso/Dirigent/internal/taskmgr"
)

func newTestServer(t *testing.T) (*httptest.Server, *scheduler.Scheduler) {
	t.Helper()

	registry := taskmgr.NewRegistry()
	registry.Register("noop", taskmgr.ExecutorFunc(
		func(_ context.Context, _ *domain.Task, _ taskmgr.ProgressFunc) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		}))

	tasks := taskmgr.New(taskmgr.Config{
		Registry:     registry,
		PollInterval: 5 * time.Millisecond,
	})
	sched := scheduler.New(scheduler.Config{
		Tasks:        tasks,
		TickInterval: 10 * time.Millisecond,
	})

	in := integrator.New(integrator.Config{})
	_ = in.Register("taskmgr", tasks)
	_ = in.Register("scheduler", sched, "taskmgr")
	if err := in.StartAll(context.Background()); err != nil {
		t.Fatalf("start components: %v", err)
	}
	t.Cleanup(func() { in.StopAll(context.Background()) })

	handler := NewHandler(Config{
		Tasks:      tasks,
		Scheduler:  sched,
		Integrator: in,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, sched
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestAPI_TaskLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
		"name": "ad-hoc",
		"type": "noop",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task: expected 201, got %d (%v)", resp.StatusCode, body)
	}

	data := body["data"].(map[string]any)
	taskID := data["id"].(string)

	// Task выполняется воркером — ждём COMPLETED
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks/"+taskID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get task: expected 200, got %d", resp.StatusCode)
		}
		if body["data"].(map[string]any)["status"] == "COMPLETED" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := body["data"].(map[string]any)["status"]; got != "COMPLETED" {
		t.Fatalf("expected COMPLETED, got %v", got)
	}

	// Действие над завершённым task — 422
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks/"+taskID+"/actions",
		map[string]any{"action": "pause"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("pause of finished task: expected 422, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	stats := body["data"].(map[string]any)
	if stats["total"].(float64) < 1 {
		t.Errorf("expected at least 1 task in stats, got %v", stats["total"])
	}
}

func TestAPI_TaskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing type", map[string]any{"name": "x"}, http.StatusBadRequest},
		{"unknown type", map[string]any{"type": "ghost"}, http.StatusBadRequest},
		{"priority out of range", map[string]any{"type": "noop", "priority": 7}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", tc.body)
		if resp.StatusCode != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks/not-a-uuid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid uuid: expected 400, got %d", resp.StatusCode)
	}
}

func TestAPI_WorkflowRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	def := map[string]any{
		"id":   "pipeline",
		"name": "pipeline",
		"tasks": []map[string]any{
			{"name": "a", "type": "noop"},
			{"name": "b", "type": "noop"},
		},
		"dependencies": map[string][]string{"b": {"a"}},
		"strategy":     "DEPENDENCY_AWARE",
	}

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/workflows", def)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register workflow: expected 201, got %d", resp.StatusCode)
	}

	// Повторная регистрация — конфликт
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/workflows", def)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate workflow: expected 409, got %d", resp.StatusCode)
	}

	// Циклический definition — 400
	cyclic := map[string]any{
		"id":    "broken",
		"tasks": []map[string]any{{"name": "a", "type": "noop"}, {"name": "b", "type": "noop"}},
		"dependencies": map[string][]string{
			"a": {"b"},
			"b": {"a"},
		},
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/workflows", cyclic)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cyclic workflow: expected 400, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/workflows/pipeline/instances",
		map[string]any{"context": map[string]any{"region": "eu"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start workflow: expected 201, got %d", resp.StatusCode)
	}
	instanceID := body["data"].(map[string]any)["id"].(string)

	deadline := time.Now().Add(5 * time.Second)
	status := ""
	for time.Now().Before(deadline) {
		_, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/instances/"+instanceID, nil)
		status = body["data"].(map[string]any)["status"].(string)
		if status == "COMPLETED" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != "COMPLETED" {
		t.Fatalf("expected instance COMPLETED, got %s", status)
	}

	// Отмена завершённого instance — 422
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/instances/"+instanceID+"/cancel", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("cancel finished instance: expected 422, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/workflows/ghost/instances", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown workflow: expected 404, got %d", resp.StatusCode)
	}
}

func TestAPI_Nodes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/nodes", map[string]any{
		"id":       "n1",
		"capacity": map[string]float64{"cpu": 100, "memory": 100},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add node: expected 201, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/nodes", map[string]any{
		"id":       "n1",
		"capacity": map[string]float64{"cpu": 100},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate node: expected 409, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/nodes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list nodes: expected 200, got %d", resp.StatusCode)
	}
	if total := body["total"].(float64); total != 2 {
		t.Errorf("expected 2 nodes (local + n1), got %v", total)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/nodes/n1/heartbeat", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("heartbeat: expected 204, got %d", resp.StatusCode)
	}

	// Локальный узел удалить нельзя
	resp, _ = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/api/v1/nodes/%s", srv.URL, scheduler.LocalNodeID), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("remove local node: expected 422, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/nodes/n1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("remove node: expected 204, got %d", resp.StatusCode)
	}
}

func TestAPI_SystemStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/system/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("system status: expected 200, got %d", resp.StatusCode)
	}

	data := body["data"].(map[string]any)
	if data["running"] != true {
		t.Error("expected running system")
	}
	components := data["components"].(map[string]any)
	if len(components) != 2 {
		t.Errorf("expected 2 components, got %d", len(components))
	}
}
