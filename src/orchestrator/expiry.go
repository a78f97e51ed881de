package orchestrator

import (
	"context"
	"log"

	"github.com/stake-plus/storyvote/src/types"
)

const (
	SkipInFlight = "tick already running"
	SkipTooSoon  = "minimum interval not elapsed"
)

// Report summarizes one expiry check.
type Report struct {
	Skipped    bool                 `json:"skipped"`
	SkipReason string               `json:"skip_reason,omitempty"`
	Recovered  []uint64             `json:"recovered,omitempty"`
	Resolved   []Resolution         `json:"resolved,omitempty"`
	Created    *types.VotingSession `json:"created,omitempty"`
}

// RunExpiryCheck resolves expired sessions and makes sure a round is open.
// Overlapping calls and calls within the minimum interval of the last
// completed check return a skipped report. Cancelling ctx stops the check
// between sessions; a session already being resolved is carried through.
func (o *Orchestrator) RunExpiryCheck(ctx context.Context) (Report, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Report{Skipped: true, SkipReason: SkipInFlight}, nil
	}
	if !o.lastTick.IsZero() && o.now().Sub(o.lastTick) < o.settings.MinTickInterval {
		o.mu.Unlock()
		return Report{Skipped: true, SkipReason: SkipTooSoon}, nil
	}
	o.running = true
	o.mu.Unlock()

	report, err := o.tick(ctx)

	o.mu.Lock()
	o.running = false
	if err == nil {
		o.lastTick = o.now()
	}
	o.mu.Unlock()

	if err != nil {
		log.Printf("orchestrator: expiry check failed: %v", err)
	}
	return report, err
}

func (o *Orchestrator) tick(ctx context.Context) (Report, error) {
	var report Report
	if err := ctx.Err(); err != nil {
		return report, err
	}
	work := context.WithoutCancel(ctx)

	settled, err := o.retryPending(work)
	for _, res := range settled {
		report.Resolved = append(report.Resolved, res)
		if res.Successor != nil && res.SuccessorCreated {
			report.Created = res.Successor
		}
	}
	if err != nil {
		return report, err
	}

	recovered, err := o.recoverStale(work)
	report.Recovered = recovered
	if err != nil {
		return report, err
	}

	now := o.now()
	expired, err := o.sessions.Expired(work, now, o.settings.MaxPerTick+o.recent.Len())
	if err != nil {
		return report, err
	}

	for _, session := range expired {
		if len(report.Resolved) >= o.settings.MaxPerTick {
			break
		}
		if o.recent.Has(session.ID) {
			log.Printf("orchestrator: session %d already handled, skipping", session.ID)
			continue
		}
		if len(report.Resolved) > 0 {
			if err := o.pause(ctx); err != nil {
				return report, err
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := o.resolve(work, session)
		if err != nil {
			return report, err
		}
		if res == nil {
			continue
		}
		report.Resolved = append(report.Resolved, *res)
		if res.Successor != nil && res.SuccessorCreated {
			report.Created = res.Successor
		}
	}

	if len(report.Resolved) == 0 {
		created, err := o.ensureActive(work)
		if err != nil {
			return report, err
		}
		if created != nil {
			report.Created = created
		}
	}
	return report, nil
}

// recoverStale fails sessions left in resolving by an interrupted process.
// The ledger is not called again for them and both proposal sets are
// cleared: the write may already have landed.
func (o *Orchestrator) recoverStale(ctx context.Context) ([]uint64, error) {
	stale, err := o.sessions.StaleResolving(ctx, o.now().Add(-o.settings.StaleAfter))
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, session := range stale {
		if _, ok := o.pending[session.ID]; ok {
			continue
		}
		if err := o.sessions.Abandon(ctx, session.ID, notesInterrupted, types.SessionTitle, types.SessionParagraph); err != nil {
			return ids, err
		}
		o.recent.Add(session.ID)
		log.Printf("orchestrator: session %d was stuck resolving, marked failed", session.ID)
		ids = append(ids, session.ID)
	}
	return ids, nil
}

// ensureActive opens a round when none is active. A session still being
// resolved counts as open: its resolver creates the successor.
func (o *Orchestrator) ensureActive(ctx context.Context) (*types.VotingSession, error) {
	active, err := o.sessions.Active(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, nil
	}
	resolving, err := o.sessions.Resolving(ctx)
	if err != nil {
		return nil, err
	}
	if resolving != nil {
		return nil, nil
	}

	next, err := o.NextSessionType(ctx, types.SessionTitle)
	if err != nil {
		log.Printf("orchestrator: book unavailable, opening %s session: %v", next, err)
	}
	session, created, err := o.openSession(ctx, next)
	if err != nil || !created {
		return nil, err
	}
	log.Printf("orchestrator: no active session, created %s session %d", session.Type, session.ID)
	return session, nil
}
