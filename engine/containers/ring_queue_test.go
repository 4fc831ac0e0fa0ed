package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	for want := 1; want <= 3; want++ {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if got != want {
			t.Errorf("dequeue = %d, want %d", got, want)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestRingQueuePushOverwritesOldest(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}
	var got []int
	q.Each(func(v int) { got = append(got, v) })
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if front, _ := q.Peek(); front != 3 {
		t.Errorf("peek = %d, want 3", front)
	}
}
