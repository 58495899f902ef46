package ring

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestMPSCBasic(t *testing.T) {
	q := NewMPSC[string](2)
	if !q.Push("a") || !q.Push("b") {
		t.Fatal("push failed unexpectedly")
	}
	if q.Push("c") {
		t.Fatal("push beyond capacity should fail")
	}
	if v, ok := q.Pop(); !ok || v != "a" {
		t.Errorf("expected a, got %q", v)
	}
	if !q.Push("c") {
		t.Fatal("push after pop should succeed")
	}
	if v, _ := q.Pop(); v != "b" {
		t.Errorf("expected b, got %q", v)
	}
	if v, _ := q.Pop(); v != "c" {
		t.Errorf("expected c, got %q", v)
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected empty")
	}
}

func TestMPSCSequenceAdvancesPerLap(t *testing.T) {
	q := NewMPSC[int](2)
	for lap := 0; lap < 5; lap++ {
		q.Push(lap)
		q.Pop()
	}
	// five pushes have cycled slot 0 three times and slot 1 twice
	if got := q.slots[0].seq.Load(); got != 6 {
		t.Errorf("slot 0 seq = %d, want 6", got)
	}
	if got := q.slots[1].seq.Load(); got != 5 {
		t.Errorf("slot 1 seq = %d, want 5", got)
	}
}

type tagged struct {
	producer int
	n        int
}

// pushPopConcurrently runs producers against one consumer and checks that
// nothing is lost, duplicated or reordered within a producer.
func pushPopConcurrently(t *testing.T, capacity, producers, each int) {
	t.Helper()
	q := NewMPSC[tagged](capacity)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; {
				if q.Push(tagged{producer: p, n: i}) {
					i++
				} else {
					runtime.Gosched()
				}
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	deadline := time.Now().Add(20 * time.Second)
	for got := 0; got < producers*each; {
		v, ok := q.Pop()
		if !ok {
			if time.Now().After(deadline) {
				t.Fatalf("consumer stuck after %d of %d items", got, producers*each)
			}
			runtime.Gosched()
			continue
		}
		if v.n != last[v.producer]+1 {
			t.Fatalf("producer %d: want %d, got %d", v.producer, last[v.producer]+1, v.n)
		}
		last[v.producer] = v.n
		got++
	}
	wg.Wait()

	if q.Len() != 0 {
		t.Errorf("expected drained ring, len=%d", q.Len())
	}
	if _, ok := q.Pop(); ok {
		t.Error("extra element after all producers finished")
	}
}

func TestMPSCConcurrentProducers(t *testing.T) {
	pushPopConcurrently(t, 128, 8, 20_000)
}

func TestMPSCConcurrentProducersSmallestRing(t *testing.T) {
	pushPopConcurrently(t, 2, 8, 3_000)
}

func TestMPSCRejectsSingleSlot(t *testing.T) {
	for _, c := range []int{-1, 0, 1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("NewMPSC(%d) should panic", c)
				}
			}()
			NewMPSC[int](c)
		}()
	}
}

func BenchmarkMPSCParallelPush(b *testing.B) {
	q := NewMPSC[int](1 << 16)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				q.Pop()
			}
		}
	}()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for !q.Push(1) {
			}
		}
	})
	close(done)
}
