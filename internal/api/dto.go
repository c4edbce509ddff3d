package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
)

// Task DTOs

// CreateTaskRequest — запрос создания task.
type CreateTaskRequest struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Priority    *int           `json:"priority,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	MaxRetries  int            `json:"max_retries,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
}

// ActionRequest — запрос действия над task.
type ActionRequest struct {
	Action string `json:"action"`
}

// BatchActionRequest — запрос действия над несколькими tasks.
type BatchActionRequest struct {
	IDs    []uuid.UUID `json:"ids"`
	Action string      `json:"action"`
}

// TaskResponse — представление task в API.
type TaskResponse struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Status     string         `json:"status"`
	Priority   string         `json:"priority"`
	Progress   int            `json:"progress"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TaskFromDomain преобразует domain.Task в DTO.
func TaskFromDomain(task domain.Task) TaskResponse {
	return TaskResponse{
		ID:         task.ID,
		Name:       task.Name,
		Type:       task.Type,
		Status:     string(task.Status),
		Priority:   task.Priority.String(),
		Progress:   task.Progress,
		Result:     task.Result,
		Error:      task.Error,
		RetryCount: task.RetryCount,
		MaxRetries: task.MaxRetries,
		StartedAt:  task.StartedAt,
		FinishedAt: task.FinishedAt,
		CreatedAt:  task.CreatedAt,
	}
}

// Workflow DTOs

// RegisterWorkflowRequest — запрос регистрации workflow definition.
type RegisterWorkflowRequest struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Tasks            []TaskTemplateDTO   `json:"tasks"`
	Dependencies     map[string][]string `json:"dependencies,omitempty"`
	Strategy         string              `json:"strategy,omitempty"`
	MaxParallelTasks int                 `json:"max_parallel_tasks,omitempty"`
}

// TaskTemplateDTO — шаблон task в запросе регистрации.
type TaskTemplateDTO struct {
	Name         string           `json:"name"`
	Type         string           `json:"type"`
	Priority     int              `json:"priority,omitempty"`
	Config       map[string]any   `json:"config,omitempty"`
	MaxRetries   int              `json:"max_retries,omitempty"`
	Requirements []RequirementDTO `json:"requirements,omitempty"`
}

// RequirementDTO — требование к ресурсу узла.
type RequirementDTO struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit,omitempty"`
}

// ToDomain преобразует запрос в domain.WorkflowDefinition.
func (r *RegisterWorkflowRequest) ToDomain() *domain.WorkflowDefinition {
	tasks := make([]domain.TaskTemplate, len(r.Tasks))
	for i, t := range r.Tasks {
		reqs := make([]domain.ResourceRequirement, len(t.Requirements))
		for j, req := range t.Requirements {
			reqs[j] = domain.ResourceRequirement{
				Type:   domain.ResourceType(req.Type),
				Amount: req.Amount,
				Unit:   req.Unit,
			}
		}
		tasks[i] = domain.TaskTemplate{
			Name:         t.Name,
			Type:         t.Type,
			Priority:     domain.TaskPriority(t.Priority),
			Config:       t.Config,
			MaxRetries:   t.MaxRetries,
			Requirements: reqs,
		}
	}

	return &domain.WorkflowDefinition{
		ID:               r.ID,
		Name:             r.Name,
		Tasks:            tasks,
		Dependencies:     r.Dependencies,
		Strategy:         domain.SchedulingStrategy(r.Strategy),
		MaxParallelTasks: r.MaxParallelTasks,
	}
}

// StartWorkflowRequest — запрос запуска instance.
type StartWorkflowRequest struct {
	Context map[string]any `json:"context,omitempty"`
}

// InstanceResponse — представление workflow instance в API.
type InstanceResponse struct {
	ID            uuid.UUID            `json:"id"`
	WorkflowID    string               `json:"workflow_id"`
	Status        string               `json:"status"`
	TaskInstances map[string]uuid.UUID `json:"task_instances"`
	Error         string               `json:"error,omitempty"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	FinishedAt    *time.Time           `json:"finished_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// InstanceFromDomain преобразует domain.WorkflowInstance в DTO.
func InstanceFromDomain(instance domain.WorkflowInstance) InstanceResponse {
	return InstanceResponse{
		ID:            instance.ID,
		WorkflowID:    instance.WorkflowID,
		Status:        string(instance.Status),
		TaskInstances: instance.TaskInstances,
		Error:         instance.Error,
		StartedAt:     instance.StartedAt,
		FinishedAt:    instance.FinishedAt,
		CreatedAt:     instance.CreatedAt,
	}
}

// Node DTOs

// AddNodeRequest — запрос добавления worker-узла.
type AddNodeRequest struct {
	ID       string             `json:"id"`
	Name     string             `json:"name,omitempty"`
	Capacity map[string]float64 `json:"capacity"`
}
