package push

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChannel_TrySendFullAndClosed(t *testing.T) {
	ch := NewChannel[int](2)

	if err := ch.TrySend(1); err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	if err := ch.TrySend(2); err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	if err := ch.TrySend(3); !errors.Is(err, ErrFull) {
		t.Fatalf("want ErrFull, got %v", err)
	}

	ch.Close()
	if err := ch.TrySend(4); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed after close, got %v", err)
	}
}

func TestChannel_SendContextBlocksUntilSpace(t *testing.T) {
	ch := NewChannel[int](1)
	if err := ch.TrySend(1); err != nil {
		t.Fatalf("TrySend: %v", err)
	}

	sent := make(chan error, 1)
	go func() { sent <- ch.SendContext(context.Background(), 2) }()

	select {
	case err := <-sent:
		t.Fatalf("send completed against a full buffer: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if got := <-ch.Chan(); got != 1 {
		t.Fatalf("want 1, got %d", got)
	}
	if err := <-sent; err != nil {
		t.Fatalf("SendContext: %v", err)
	}
	if got := <-ch.Chan(); got != 2 {
		t.Fatalf("want 2, got %d", got)
	}
}

func TestChannel_SendContextUnblocksOnClose(t *testing.T) {
	ch := NewChannel[int](1)
	_ = ch.TrySend(1)

	sent := make(chan error, 1)
	go func() { sent <- ch.SendContext(context.Background(), 2) }()
	time.Sleep(10 * time.Millisecond)

	ch.Close()
	if err := <-sent; !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}

	// Buffered item stays readable, then the range ends.
	var got []int
	for v := range ch.Chan() {
		got = append(got, v)
	}
	if len(got) < 1 || got[0] != 1 {
		t.Fatalf("buffered item lost: %v", got)
	}
}

func TestChannel_SendContextCancel(t *testing.T) {
	ch := NewChannel[int](1)
	_ = ch.TrySend(1)

	ctx, cancel := context.WithCancel(context.Background())
	sent := make(chan error, 1)
	go func() { sent <- ch.SendContext(ctx, 2) }()
	time.Sleep(10 * time.Millisecond)

	cancel()
	if err := <-sent; !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestChannel_FirstCloseCauseWins(t *testing.T) {
	ch := NewChannel[int](1)
	first := errors.New("first")

	ch.CloseWithError(first)
	ch.CloseWithError(errors.New("second"))
	ch.Close()

	if err := ch.Err(); !errors.Is(err, first) {
		t.Fatalf("want first cause, got %v", err)
	}
}

func TestChannel_OnCloseHook(t *testing.T) {
	ch := NewChannel[int](1)

	fired := 0
	ch.OnClose(func() { fired++ })

	ch.Close()
	ch.Close()
	if fired != 1 {
		t.Fatalf("hook fired %d times", fired)
	}

	// Late registration runs immediately.
	late := 0
	ch.OnClose(func() { late++ })
	if late != 1 {
		t.Fatal("late hook did not run")
	}
}

func TestChannel_DoneSignalsBeforeDrain(t *testing.T) {
	ch := NewChannel[int](2)
	_ = ch.TrySend(1)
	_ = ch.TrySend(2)

	ch.Close()
	select {
	case <-ch.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
	if got := <-ch.Chan(); got != 1 {
		t.Fatalf("want 1, got %d", got)
	}
}
