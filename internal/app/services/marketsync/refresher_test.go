package marketsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexafin/marketsync/internal/app/storage/memory"
)

func TestRefresherRunsOnSchedule(t *testing.T) {
	crypto := &staticFetcher{}
	svc := New(memory.New(), crypto, nil, nil, nil)
	r := NewRefresher(svc, "@every 100ms", nil)

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt64(&crypto.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("refresher never ran a pass")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRefresherRejectsBadSchedule(t *testing.T) {
	r := NewRefresher(New(memory.New(), nil, nil, nil, nil), "not a schedule", nil)
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestRefresherStartIdempotent(t *testing.T) {
	r := NewRefresher(New(memory.New(), nil, nil, nil, nil), "@every 1h", nil)
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := r.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
