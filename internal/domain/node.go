package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceType — тип ресурса узла.
type ResourceType string

const (
	ResourceCPU     ResourceType = "cpu"
	ResourceMemory  ResourceType = "memory"
	ResourceNetwork ResourceType = "network"
	ResourceStorage ResourceType = "storage"
)

// ResourceRequirement — требование task'а к ресурсу узла.
type ResourceRequirement struct {
	// Type — тип ресурса.
	Type ResourceType `json:"type"`

	// Amount — требуемое количество.
	Amount float64 `json:"amount"`

	// Unit — единица измерения ("percent", "mb", "mbps").
	Unit string `json:"unit,omitempty"`
}

// WorkerNode — узел выполнения с ограниченными ресурсами.
//
// Узел отслеживает вместимость и текущую нагрузку по каждому ресурсу.
// Назначение task'а на узел проходит admission check:
// для каждого ресурса load + requested <= capacity.
//
// Доступ к полям узла защищается мьютексом планировщика — сам узел
// методами не синхронизируется.
type WorkerNode struct {
	// ID — уникальный идентификатор узла.
	ID string `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name"`

	// Capacity — вместимость по каждому ресурсу.
	Capacity map[ResourceType]float64 `json:"capacity"`

	// CurrentLoad — текущая нагрузка по каждому ресурсу.
	CurrentLoad map[ResourceType]float64 `json:"current_load"`

	// ActiveTasks — множество ID активных tasks на узле.
	ActiveTasks map[uuid.UUID]bool `json:"-"`

	// Healthy — узел доступен для назначений.
	Healthy bool `json:"healthy"`

	// LastHeartbeat — время последнего heartbeat.
	// Узлы с устаревшим heartbeat помечаются нездоровыми.
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// NewWorkerNode создаёт узел с заданной вместимостью.
func NewWorkerNode(id, name string, capacity map[ResourceType]float64) *WorkerNode {
	return &WorkerNode{
		ID:            id,
		Name:          name,
		Capacity:      capacity,
		CurrentLoad:   make(map[ResourceType]float64),
		ActiveTasks:   make(map[uuid.UUID]bool),
		Healthy:       true,
		LastHeartbeat: time.Now(),
	}
}

// CanAccept проверяет, хватает ли узлу свободных ресурсов
// для всех требований. Требование на ресурс, которого нет
// в Capacity, отклоняется.
func (n *WorkerNode) CanAccept(reqs []ResourceRequirement) bool {
	for _, req := range reqs {
		cap, ok := n.Capacity[req.Type]
		if !ok {
			return false
		}
		if n.CurrentLoad[req.Type]+req.Amount > cap {
			return false
		}
	}
	return true
}

// Reserve резервирует ресурсы под task.
// Вызывающий обязан предварительно проверить CanAccept.
func (n *WorkerNode) Reserve(taskID uuid.UUID, reqs []ResourceRequirement) {
	for _, req := range reqs {
		n.CurrentLoad[req.Type] += req.Amount
	}
	n.ActiveTasks[taskID] = true
}

// Release освобождает ресурсы, занятые task'ом.
// Нагрузка не опускается ниже нуля.
func (n *WorkerNode) Release(taskID uuid.UUID, reqs []ResourceRequirement) {
	if !n.ActiveTasks[taskID] {
		return
	}
	for _, req := range reqs {
		n.CurrentLoad[req.Type] -= req.Amount
		if n.CurrentLoad[req.Type] < 0 {
			n.CurrentLoad[req.Type] = 0
		}
	}
	delete(n.ActiveTasks, taskID)
}

// LoadScore возвращает сумму процентов загрузки по всем ресурсам узла
// при условии, что требования reqs будут назначены.
// Чем меньше score, тем предпочтительнее узел.
func (n *WorkerNode) LoadScore(reqs []ResourceRequirement) float64 {
	requested := make(map[ResourceType]float64, len(reqs))
	for _, req := range reqs {
		requested[req.Type] += req.Amount
	}

	var score float64
	for res, cap := range n.Capacity {
		if cap <= 0 {
			continue
		}
		score += (n.CurrentLoad[res] + requested[res]) / cap * 100
	}
	return score
}

// LoadPercentages возвращает процент загрузки по каждому ресурсу.
func (n *WorkerNode) LoadPercentages() map[ResourceType]float64 {
	out := make(map[ResourceType]float64, len(n.Capacity))
	for res, cap := range n.Capacity {
		if cap <= 0 {
			continue
		}
		out[res] = n.CurrentLoad[res] / cap * 100
	}
	return out
}

// NodeStatus — снимок состояния узла для API.
type NodeStatus struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Healthy       bool                     `json:"healthy"`
	Capacity      map[ResourceType]float64 `json:"capacity"`
	CurrentLoad   map[ResourceType]float64 `json:"current_load"`
	ActiveTasks   int                      `json:"active_tasks"`
	LastHeartbeat time.Time                `json:"last_heartbeat"`
}

// Snapshot возвращает снимок состояния узла.
func (n *WorkerNode) Snapshot() NodeStatus {
	capacity := make(map[ResourceType]float64, len(n.Capacity))
	for k, v := range n.Capacity {
		capacity[k] = v
	}
	load := make(map[ResourceType]float64, len(n.CurrentLoad))
	for k, v := range n.CurrentLoad {
		load[k] = v
	}
	return NodeStatus{
		ID:            n.ID,
		Name:          n.Name,
		Healthy:       n.Healthy,
		Capacity:      capacity,
		CurrentLoad:   load,
		ActiveTasks:   len(n.ActiveTasks),
		LastHeartbeat: n.LastHeartbeat,
	}
}
