package taskmgr

import (
	"sync"

	"github.com/google/uuid"
)

// queue — очередь task ID с приоритетным смещением.
//
// FIFO с одним отступлением: HIGH/URGENT tasks кладутся в голову.
// Внутри каждой группы порядок вставки сохраняется.
type queue struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func newQueue() *queue {
	return &queue{ids: make([]uuid.UUID, 0)}
}

// PushFront кладёт ID в голову очереди.
func (q *queue) PushFront(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append([]uuid.UUID{id}, q.ids...)
}

// PushBack кладёт ID в хвост очереди.
func (q *queue) PushBack(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

// Pop извлекает ID из головы очереди.
func (q *queue) Pop() (uuid.UUID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return uuid.Nil, false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

// Remove удаляет ID из очереди, если он там есть.
func (q *queue) Remove(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, queued := range q.ids {
		if queued == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return true
		}
	}
	return false
}

// Len возвращает длину очереди.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
