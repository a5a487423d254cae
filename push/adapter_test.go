package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeResumer struct {
	resumes atomic.Int32
}

func (r *fakeResumer) Resume() { r.resumes.Add(1) }

type fakeController struct {
	mu         sync.Mutex
	suspends   int
	terminates int
	last       *fakeResumer
}

func (c *fakeController) Suspend() Resumer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspends++
	c.last = &fakeResumer{}
	return c.last
}

func (c *fakeController) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminates++
}

func (c *fakeController) suspendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspends
}

func (c *fakeController) terminateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminates
}

func (c *fakeController) lastResumer() *fakeResumer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAdapter_FastPathNoSuspend(t *testing.T) {
	ch := NewChannel[int](10)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	a.OnNext([]int{1, 2, 3, 4, 5}, ctrl)

	if got := ctrl.suspendCount(); got != 0 {
		t.Fatalf("fast path suspended %d times", got)
	}
	for want := 1; want <= 5; want++ {
		if got := <-ch.Chan(); got != want {
			t.Fatalf("want %d, got %d", want, got)
		}
	}
}

func TestAdapter_EmptyBatchIsNoop(t *testing.T) {
	ch := NewChannel[int](1)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	a.OnNext(nil, ctrl)

	if ctrl.suspendCount() != 0 || ctrl.terminateCount() != 0 {
		t.Fatalf("empty batch triggered ctrl calls: %+v", ctrl)
	}
	if len(ch.Chan()) != 0 {
		t.Fatal("empty batch delivered items")
	}
}

// Scenario: batch of 5 into a capacity-3 buffer. Three items go out
// synchronously, item 4 is the straggler, the drain goroutine sends 4 and 5
// and then resumes the source exactly once.
func TestAdapter_SuspendDrainsTailInOrder(t *testing.T) {
	ch := NewChannel[int](3)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	a.OnNext([]int{1, 2, 3, 4, 5}, ctrl)

	if got := ctrl.suspendCount(); got != 1 {
		t.Fatalf("want 1 suspend, got %d", got)
	}
	for want := 1; want <= 5; want++ {
		select {
		case got := <-ch.Chan():
			if got != want {
				t.Fatalf("want %d, got %d", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for item %d", want)
		}
	}
	res := ctrl.lastResumer()
	waitFor(t, func() bool { return res.resumes.Load() == 1 }, "resume not called")
	a.OnComplete()
}

func TestAdapter_ConsumerCloseBeforeFirstBatch(t *testing.T) {
	ch := NewChannel[int](4)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	ch.Close()

	a.OnNext([]int{1, 2}, ctrl)
	if got := ctrl.terminateCount(); got != 1 {
		t.Fatalf("want terminate after consumer close, got %d", got)
	}
	if ctrl.suspendCount() != 0 {
		t.Fatal("terminating batch must not suspend")
	}

	a.OnHeartbeat(ctrl)
	if got := ctrl.terminateCount(); got != 2 {
		t.Fatalf("heartbeat after close should terminate, got %d", got)
	}
}

func TestAdapter_ConsumerCloseWhilePaused(t *testing.T) {
	ch := NewChannel[int](1)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	a.OnNext([]int{1, 2, 3}, ctrl) // 1 buffered, drain blocked on 2
	if ctrl.suspendCount() != 1 {
		t.Fatal("expected a suspend")
	}

	ch.Close()

	res := ctrl.lastResumer()
	if got := res.resumes.Load(); got != 1 {
		t.Fatalf("close hook should resume the paused source once, got %d", got)
	}

	// The drain goroutine exits against the closed channel and must not
	// resume a second time.
	time.Sleep(50 * time.Millisecond)
	if got := res.resumes.Load(); got != 1 {
		t.Fatalf("resume called %d times for one suspend", got)
	}

	a.OnNext([]int{4}, ctrl)
	if ctrl.terminateCount() != 1 {
		t.Fatal("re-entry after consumer close must terminate")
	}
}

func TestAdapter_ScopeCancelReleasesPausedSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := NewChannel[int](1)
	a := NewAdapter(ctx, ch)
	ctrl := &fakeController{}

	a.OnNext([]int{1, 2, 3}, ctrl) // drain blocked
	cancel()

	res := ctrl.lastResumer()
	waitFor(t, func() bool { return res.resumes.Load() == 1 }, "cancelled drain did not resume")

	a.OnNext([]int{9}, ctrl)
	if ctrl.terminateCount() != 1 {
		t.Fatal("re-entry after scope cancel must terminate")
	}
}

func TestAdapter_OnErrorClosesWithCause(t *testing.T) {
	ch := NewChannel[int](4)
	a := NewAdapter(context.Background(), ch)

	boom := errors.New("region server lost")
	a.OnError(boom)

	if err := ch.Err(); !errors.Is(err, boom) {
		t.Fatalf("want cause wrapping %v, got %v", boom, err)
	}
	if _, ok := <-ch.Chan(); ok {
		t.Fatal("channel still open after OnError")
	}
}

func TestAdapter_OnErrorWhileDraining(t *testing.T) {
	ch := NewChannel[int](1)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	a.OnNext([]int{1, 2, 3}, ctrl) // drain blocked on 2
	boom := errors.New("scan failed")
	a.OnError(boom)

	res := ctrl.lastResumer()
	waitFor(t, func() bool { return res.resumes.Load() == 1 }, "drain did not resume after OnError")

	var got []int
	for v := range ch.Chan() {
		got = append(got, v)
	}
	// Whatever arrived must be a prefix, with nothing past the drain's
	// observation of the close.
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("out of order after error: %v", got)
		}
	}
	if !errors.Is(ch.Err(), boom) {
		t.Fatalf("want error cause, got %v", ch.Err())
	}
}

func TestAdapter_ConsumerCloseWinsOverLateError(t *testing.T) {
	ch := NewChannel[int](4)
	a := NewAdapter(context.Background(), ch)

	ch.Close() // clean consumer close, no cause
	a.OnError(errors.New("late failure"))

	if err := ch.Err(); err != nil {
		t.Fatalf("consumer close cause overwritten: %v", err)
	}
}

func TestAdapter_HeartbeatNoopWhileActive(t *testing.T) {
	ch := NewChannel[int](4)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	a.OnHeartbeat(ctrl)
	if ctrl.terminateCount() != 0 || ctrl.suspendCount() != 0 {
		t.Fatalf("live heartbeat should be a no-op: %+v", ctrl)
	}
}

// Drives many batches through repeated suspend/resume cycles with a
// concurrent reader and verifies exact concatenation: no loss, no
// duplication, no reorder.
func TestAdapter_ManyBatchesExactDelivery(t *testing.T) {
	ch := NewChannel[int](4)
	a := NewAdapter(context.Background(), ch)
	ctrl := &fakeController{}

	var want []int
	batches := make([][]int, 20)
	n := 0
	for i := range batches {
		batch := make([]int, 7)
		for j := range batch {
			batch[j] = n
			want = append(want, n)
			n++
		}
		batches[i] = batch
	}

	done := make(chan []int)
	go func() {
		var got []int
		for v := range ch.Chan() {
			got = append(got, v)
		}
		done <- got
	}()

	for _, batch := range batches {
		before := ctrl.suspendCount()
		a.OnNext(batch, ctrl)
		if ctrl.suspendCount() > before {
			// Paused: the source must not deliver again until resumed.
			res := ctrl.lastResumer()
			waitFor(t, func() bool { return res.resumes.Load() == 1 }, "suspend never resumed")
		}
	}
	a.OnComplete()

	got := <-done
	if len(got) != len(want) {
		t.Fatalf("want %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: want %d, got %d", i, want[i], got[i])
		}
	}
	if ctrl.terminateCount() != 0 {
		t.Fatal("clean run should not terminate the source")
	}
}
