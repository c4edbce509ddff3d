package taskmgr

import (
	"testing"

	"github.com/google/uuid"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue()
	a, b := uuid.New(), uuid.New()

	q.PushBack(a)
	q.PushBack(b)

	if id, _ := q.Pop(); id != a {
		t.Error("expected a first")
	}
	if id, _ := q.Pop(); id != b {
		t.Error("expected b second")
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected empty queue")
	}
}

func TestQueue_PushFront(t *testing.T) {
	q := newQueue()
	normal, urgent := uuid.New(), uuid.New()

	q.PushBack(normal)
	q.PushFront(urgent)

	if id, _ := q.Pop(); id != urgent {
		t.Error("expected front-pushed id first")
	}
}

func TestQueue_Remove(t *testing.T) {
	q := newQueue()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	if !q.Remove(b) {
		t.Fatal("expected b removed")
	}
	if q.Remove(b) {
		t.Error("second remove must report false")
	}
	if q.Len() != 2 {
		t.Errorf("expected len 2, got %d", q.Len())
	}

	if id, _ := q.Pop(); id != a {
		t.Error("expected a first")
	}
	if id, _ := q.Pop(); id != c {
		t.Error("expected c second")
	}
}
