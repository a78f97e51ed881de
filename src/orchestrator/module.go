package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stake-plus/storyvote/src/actions/core"
)

var _ core.Module = (*Scheduler)(nil)

// Scheduler runs the expiry check on a fixed interval.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(orch *Orchestrator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{orch: orch, interval: interval}
}

// Name implements core.Module.
func (s *Scheduler) Name() string { return "scheduler" }

// Start implements core.Module. The first check runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(runCtx, s.done)

	log.Printf("scheduler: checking sessions every %s", s.interval)
	return nil
}

// Stop implements core.Module. It waits for an in-flight check unless ctx ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("scheduler: stop timed out waiting for tick")
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		report, err := s.orch.RunExpiryCheck(ctx)
		if err == nil && !report.Skipped && (len(report.Resolved) > 0 || report.Created != nil) {
			log.Printf("scheduler: resolved %d session(s), created=%t", len(report.Resolved), report.Created != nil)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
