package orchestrator

import (
	"context"
	"testing"
	"time"
)

func TestRecentSetEvictsOldest(t *testing.T) {
	r := newRecentSet(3)
	for id := uint64(1); id <= 4; id++ {
		r.Add(id)
	}
	if r.Has(1) {
		t.Fatalf("oldest id kept")
	}
	for _, id := range []uint64{2, 3, 4} {
		if !r.Has(id) {
			t.Fatalf("id %d evicted", id)
		}
	}
	r.Add(4)
	if r.Len() != 3 {
		t.Fatalf("len = %d after re-adding", r.Len())
	}
	r.Remove(3)
	if r.Has(3) || r.Len() != 2 {
		t.Fatalf("remove failed")
	}
}

func TestSchedulerRunsImmediately(t *testing.T) {
	env := newTestEnv(t, nil)
	sched := NewScheduler(env.orch, time.Hour)
	if err := sched.Start(env.ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.activeCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Stop(ctx)

	if env.activeCount() != 1 {
		t.Fatalf("scheduler did not open a session")
	}
	sched.Stop(ctx)
}
