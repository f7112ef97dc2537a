package queue

import (
	"sync"
	"testing"
)

// snapshot stands in for the full-list save snapshots the store queues.
type snapshot struct {
	Rev  int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[snapshot]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[snapshot]()

	q.Push(snapshot{Rev: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(snapshot{Rev: 2}, snapshot{Rev: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[snapshot]()

	// Pop from empty queue returns zero value
	result := q.Pop()
	if result.Rev != 0 || result.Name != "" {
		t.Errorf("expected zero value, got %+v", result)
	}

	// Pop from non-empty queue
	q.Push(snapshot{Rev: 1, Name: "first"}, snapshot{Rev: 2, Name: "second"})
	first := q.Pop()
	if first.Rev != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[snapshot]()
	q.Push(snapshot{Rev: 1}, snapshot{Rev: 2}, snapshot{Rev: 3})

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[snapshot]()
	q.Push(snapshot{Rev: 1}, snapshot{Rev: 2}, snapshot{Rev: 3})

	result := q.GetAndEmpty()

	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}
	if result[0].Rev != 1 || result[1].Rev != 2 || result[2].Rev != 3 {
		t.Errorf("unexpected items: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_TakeLatest(t *testing.T) {
	q := New[snapshot]()

	if _, ok := q.TakeLatest(); ok {
		t.Error("expected ok=false on empty queue")
	}

	q.Push(snapshot{Rev: 1}, snapshot{Rev: 2}, snapshot{Rev: 3})

	latest, ok := q.TakeLatest()
	if !ok {
		t.Fatal("expected ok=true")
	}
	if latest.Rev != 3 {
		t.Errorf("expected latest Rev=3, got %d", latest.Rev)
	}
	if !q.Empty() {
		t.Error("expected empty queue after TakeLatest")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[snapshot]()
	var wg sync.WaitGroup

	// Concurrent pushes
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(rev int) {
			defer wg.Done()
			q.Push(snapshot{Rev: rev})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	// Concurrent pops
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Errorf("expected 50 items after pops, got %d", q.Len())
	}
}

func TestQueue_ConcurrentGetAndEmpty(t *testing.T) {
	q := New[snapshot]()

	// Fill queue
	for i := 0; i < 100; i++ {
		q.Push(snapshot{Rev: i})
	}

	var wg sync.WaitGroup
	results := make(chan []snapshot, 10)

	// Concurrent GetAndEmpty calls
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.GetAndEmpty()
		}()
	}
	wg.Wait()
	close(results)

	// Total items across all results should be 100
	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected total 100 items, got %d", total)
	}
}

// Test with different types to ensure generics work correctly

func TestQueue_StringType(t *testing.T) {
	q := New[string]()
	q.Push("hello", "world")

	first := q.Pop()
	if first != "hello" {
		t.Errorf("expected 'hello', got '%s'", first)
	}
}

func TestQueue_SliceType(t *testing.T) {
	q := New[[]string]()
	q.Push([]string{"a", "b"}, []string{"c", "d"})

	first := q.Pop()
	if len(first) != 2 || first[0] != "a" {
		t.Errorf("expected [a, b], got %v", first)
	}
}
