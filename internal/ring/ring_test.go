package ring

import "testing"

func freshLinks(n int) ([]int32, []int32) {
	next := make([]int32, n)
	prev := make([]int32, n)
	for i := range next {
		next[i] = None
		prev[i] = None
	}
	return next, prev
}

func TestRingAppendAndAdvance(t *testing.T) {
	next, prev := freshLinks(4)
	r := NewRing(next, prev)

	if !r.Empty() {
		t.Fatalf("expected empty ring")
	}

	r.Append(0)
	r.Append(1)
	r.Append(2)

	if r.Head != 0 {
		t.Fatalf("expected head 0, got %d", r.Head)
	}

	seen := []int32{r.Head}
	cur := r.Head
	for i := 0; i < 2; i++ {
		cur = r.Advance(cur)
		seen = append(seen, cur)
	}
	want := []int32{0, 1, 2}
	for i, v := range want {
		if seen[i] != v {
			t.Fatalf("ring order mismatch at %d: got %v want %v", i, seen, want)
		}
	}
	// Ring wraps.
	if r.Advance(2) != 0 {
		t.Fatalf("expected ring to wrap back to head")
	}
}

func TestRingRemoveClearsLinks(t *testing.T) {
	next, prev := freshLinks(4)
	r := NewRing(next, prev)
	r.Append(0)
	r.Append(1)
	r.Append(2)

	r.Remove(1)
	if r.Next[1] != None || r.Prev[1] != None {
		t.Fatalf("expected removed node's links cleared")
	}
	if r.Advance(0) != 2 {
		t.Fatalf("expected ring to skip removed node")
	}

	r.Remove(2)
	r.Remove(0)
	if !r.Empty() {
		t.Fatalf("expected empty ring after removing all members")
	}
}

func TestRingInsertBeforeMovesHead(t *testing.T) {
	next, prev := freshLinks(4)
	r := NewRing(next, prev)
	r.Append(0)

	r.InsertBefore(0, 1)
	if r.Head != 1 {
		t.Fatalf("expected new head 1 when inserted before old head, got %d", r.Head)
	}
	if r.Advance(1) != 0 {
		t.Fatalf("expected 1 -> 0 after insert")
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	next, _ := freshLinks(4)
	q := NewQueue(next)

	if !q.Empty() {
		t.Fatalf("expected empty queue")
	}

	q.Enqueue(2)
	q.Enqueue(0)
	q.Enqueue(1)

	for _, want := range []int32{2, 0, 1} {
		got := q.Dequeue()
		if got != want {
			t.Fatalf("expected dequeue order 2,0,1; got %d want %d", got, want)
		}
	}
	if !q.Empty() {
		t.Fatalf("expected queue empty after draining")
	}
	if q.Dequeue() != None {
		t.Fatalf("expected Dequeue on empty queue to return None")
	}
}

func TestRingAndQueueShareBackingArray(t *testing.T) {
	next, prev := freshLinks(4)
	r := NewRing(next, prev)
	q := NewQueue(next)

	r.Append(0)
	r.Remove(0)
	q.Enqueue(0)

	if q.Dequeue() != 0 {
		t.Fatalf("expected task to move cleanly from ring to queue via shared Next storage")
	}
}
