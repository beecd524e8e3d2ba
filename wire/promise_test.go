package wire

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPromiseForceBlocksUntilDeliver(t *testing.T) {
	p := newPromise()
	want := &Reply{CursorID: 7}

	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.deliver(want, nil)
		close(done)
	}()

	reply, err := p.Force(context.Background())
	<-done
	if err != nil {
		t.Fatalf("Force: %v", err)
	}
	if reply != want {
		t.Errorf("Force returned %#v, want %#v", reply, want)
	}
}

func TestPromiseForceCachesResult(t *testing.T) {
	p := newPromise()
	p.deliver(&Reply{CursorID: 3}, nil)

	r1, err1 := p.Force(context.Background())
	r2, err2 := p.Force(context.Background())
	if err1 != nil || err2 != nil {
		t.Fatalf("Force errors: %v, %v", err1, err2)
	}
	if r1 != r2 {
		t.Error("repeated Force calls should return the same cached reply")
	}
}

func TestPromiseForceRespectsContextCancellation(t *testing.T) {
	p := newPromise()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Force(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewResolvedPromise(t *testing.T) {
	want := &Reply{CursorID: 42}
	p := NewResolvedPromise(want, nil)

	reply, err := p.Force(context.Background())
	if err != nil {
		t.Fatalf("Force: %v", err)
	}
	if reply != want {
		t.Errorf("Force returned %#v, want %#v", reply, want)
	}
}
