package stream

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestChunkQueueFIFO(t *testing.T) {
	q := NewChunkQueue(4, nil)

	for i := 0; i < 3; i++ {
		dropped, err := q.Push(Chunk{Seq: uint64(i)})
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if dropped {
			t.Fatalf("unexpected drop on push %d", i)
		}
	}

	for i := 0; i < 3; i++ {
		c, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d returned end of stream", i)
		}
		if c.Seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, c.Seq)
		}
	}
}

func TestChunkQueueDropOldest(t *testing.T) {
	var dropped []uint64
	q := NewChunkQueue(2, func(c Chunk) {
		dropped = append(dropped, c.Seq)
	})

	drops := 0
	for i := 0; i < 5; i++ {
		d, err := q.Push(Chunk{Seq: uint64(i)})
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if d {
			drops++
		}
		if q.Len() > q.Depth() {
			t.Fatalf("queue length %d exceeds depth %d", q.Len(), q.Depth())
		}
	}

	if drops != 3 {
		t.Fatalf("expected 3 drops, got %d", drops)
	}
	if len(dropped) != 3 || dropped[0] != 0 || dropped[1] != 1 || dropped[2] != 2 {
		t.Fatalf("expected dropped seqs [0 1 2], got %v", dropped)
	}

	q.Close()
	var remaining []uint64
	for {
		c, ok := q.Pop()
		if !ok {
			break
		}
		remaining = append(remaining, c.Seq)
	}
	if len(remaining) != 2 || remaining[0] != 3 || remaining[1] != 4 {
		t.Fatalf("expected remaining [3 4], got %v", remaining)
	}
}

func TestChunkQueueCloseDrainsThenEnds(t *testing.T) {
	q := NewChunkQueue(3, nil)
	q.Push(Chunk{Seq: 7})
	q.Close()
	q.Close()

	if _, err := q.Push(Chunk{Seq: 8}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}

	c, ok := q.Pop()
	if !ok || c.Seq != 7 {
		t.Fatalf("expected queued chunk 7 before end of stream, got %v %v", c.Seq, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected end of stream")
	}
}

func TestChunkQueuePopBlocksUntilPush(t *testing.T) {
	q := NewChunkQueue(1, nil)
	got := make(chan uint64, 1)

	go func() {
		c, ok := q.Pop()
		if ok {
			got <- c.Seq
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(Chunk{Seq: 42})
	select {
	case seq := <-got:
		if seq != 42 {
			t.Fatalf("expected 42, got %d", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestChunkQueueCloseWakesConsumer(t *testing.T) {
	q := NewChunkQueue(1, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := q.Pop(); ok {
			t.Error("expected end of stream from empty closed queue")
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the blocked consumer")
	}
}
