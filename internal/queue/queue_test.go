package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPushPop_FIFO(t *testing.T) {
	q := New[int](10, 0)

	for i := 0; i < 5; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("Push(%d) failed: %v", i, err)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	for i := 0; i < 5; i++ {
		v, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop() failed for item %d: %v", i, err)
		}
		if v != i {
			t.Errorf("Pop() = %d, want %d", v, i)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after draining, want 0", q.Len())
	}
}

func TestPush_GrowsAt70Percent(t *testing.T) {
	q := New[int](10, 0)

	for i := 0; i < 7; i++ {
		q.Push(i)
	}

	s := q.Stats()
	if s.Cap <= 10 {
		t.Errorf("Cap = %d, expected growth after 70%% fill", s.Cap)
	}
	if s.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", s.Resizes)
	}
	for i, v := range q.PopBatch(0) {
		if v != i {
			t.Errorf("PopBatch()[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestPush_GrowPreservesWrappedOrder(t *testing.T) {
	q := New[int](4, 0)

	// Advance head so the ring wraps before growing.
	q.Push(0)
	q.Push(1)
	q.PopBatch(2)

	for i := 0; i < 20; i++ {
		q.Push(i)
	}
	got := q.PopBatch(0)
	if len(got) != 20 {
		t.Fatalf("len(PopBatch) = %d, want 20", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("PopBatch()[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestPush_Limit(t *testing.T) {
	q := New[string](2, 3)

	for i := 0; i < 3; i++ {
		if err := q.Push("x"); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}
	if err := q.Push("overflow"); !errors.Is(err, ErrFull) {
		t.Errorf("Push over limit error = %v, want ErrFull", err)
	}
	if s := q.Stats(); s.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", s.Rejected)
	}

	q.PopBatch(1)
	if err := q.Push("fits"); err != nil {
		t.Errorf("Push after pop failed: %v", err)
	}
}

func TestPop_Blocks(t *testing.T) {
	q := New[int](4, 0)

	got := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before Push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("Pop() = %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestPop_ContextCancel(t *testing.T) {
	q := New[int](4, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Pop() error = %v, want DeadlineExceeded", err)
	}
}

func TestClose(t *testing.T) {
	q := New[int](4, 0)
	q.Push(1)
	q.Push(2)

	if !q.Close() {
		t.Error("first Close() = false, want true")
	}
	if q.Close() {
		t.Error("second Close() = true, want false")
	}
	if err := q.Push(3); !errors.Is(err, ErrClosed) {
		t.Errorf("Push after Close error = %v, want ErrClosed", err)
	}

	// Queued items drain before ErrClosed.
	for _, want := range []int{1, 2} {
		v, err := q.Pop(context.Background())
		if err != nil || v != want {
			t.Errorf("Pop() = %d, %v, want %d, nil", v, err, want)
		}
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Pop() on closed empty queue error = %v, want ErrClosed", err)
	}
}

func TestClose_UnblocksPop(t *testing.T) {
	q := New[int](4, 0)

	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Pop() error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
}

func TestPopBatch(t *testing.T) {
	q := New[int](4, 0)
	for i := 0; i < 10; i++ {
		q.Push(i)
	}

	first := q.PopBatch(4)
	if len(first) != 4 || first[0] != 0 || first[3] != 3 {
		t.Errorf("PopBatch(4) = %v, want [0 1 2 3]", first)
	}
	rest := q.PopBatch(100)
	if len(rest) != 6 {
		t.Errorf("len(PopBatch(100)) = %d, want 6", len(rest))
	}
	if q.PopBatch(1) != nil {
		t.Error("PopBatch on empty queue returned non-nil")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q := New[int](8, 0)
	const producers, perProducer = 4, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	var mu sync.Mutex
	received := 0
	var cwg sync.WaitGroup
	for c := 0; c < 3; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				if _, err := q.Pop(context.Background()); err != nil {
					return
				}
				mu.Lock()
				received++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	q.Close()
	cwg.Wait()

	if received != producers*perProducer {
		t.Errorf("received %d, want %d", received, producers*perProducer)
	}
}

func TestNew_MinCapacity(t *testing.T) {
	q := New[int](0, 0)
	if s := q.Stats(); s.Cap != 1 {
		t.Errorf("Cap = %d, want 1", s.Cap)
	}
	if err := q.Push(1); err != nil {
		t.Errorf("Push failed: %v", err)
	}
}
