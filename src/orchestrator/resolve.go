package orchestrator

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/stake-plus/storyvote/src/events"
	"github.com/stake-plus/storyvote/src/ledger"
	"github.com/stake-plus/storyvote/src/logging"
	"github.com/stake-plus/storyvote/src/types"
)

const (
	notesNoProposals = "no proposals found"
	notesNotEnough   = "not enough votes"
	notesTxFailed    = "transaction failed"
	notesNoBook      = "no ongoing book"
	notesInterrupted = "resolution interrupted"
)

// Resolution is the outcome of one expired session.
type Resolution struct {
	SessionID        uint64               `json:"session_id"`
	Type             types.SessionType    `json:"type"`
	Status           types.SessionStatus  `json:"status"`
	Notes            string               `json:"notes"`
	Winner           *types.Proposal      `json:"winner,omitempty"`
	Operation        ledger.Operation     `json:"operation,omitempty"`
	Digest           string               `json:"digest,omitempty"`
	Archived         bool                 `json:"archived,omitempty"`
	Successor        *types.VotingSession `json:"successor,omitempty"`
	SuccessorCreated bool                 `json:"-"`
}

// resolve claims an expired session, settles it and opens its successor.
// It returns nil when another caller holds the claim.
func (o *Orchestrator) resolve(ctx context.Context, session types.VotingSession) (*Resolution, error) {
	claimed, err := o.sessions.Claim(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Printf("orchestrator: session %d claimed elsewhere, skipping", session.ID)
		return nil, nil
	}
	o.recent.Add(session.ID)
	log.Printf("orchestrator: resolving %s session %d", session.Type, session.ID)

	res := &Resolution{SessionID: session.ID, Type: session.Type}
	requested := session.Type

	proposals, err := o.proposals.ByType(ctx, session.Type)
	if err != nil {
		o.release(ctx, session.ID)
		return nil, err
	}

	switch {
	case len(proposals) == 0:
		if err := o.fail(ctx, res, notesNoProposals); err != nil {
			return nil, err
		}
	case proposals[0].Votes < o.settings.VoteThreshold:
		winner := proposals[0]
		res.Winner = &winner
		if err := o.fail(ctx, res, notesNotEnough); err != nil {
			return nil, err
		}
	default:
		winner := proposals[0]
		res.Winner = &winner
		next, err := o.commit(ctx, session, res)
		if err != nil {
			return nil, err
		}
		requested = next
	}

	return o.conclude(ctx, session, res, requested)
}

// conclude announces a settled session and opens its successor.
func (o *Orchestrator) conclude(ctx context.Context, session types.VotingSession, res *Resolution, requested types.SessionType) (*Resolution, error) {
	ev := events.Event{
		Kind:        events.SessionResolved,
		SessionID:   session.ID,
		SessionType: session.Type,
		Status:      res.Status,
		Notes:       res.Notes,
		Operation:   string(res.Operation),
		Archived:    res.Archived,
	}
	if w := res.Winner; w != nil {
		ev.ProposalID, ev.Content, ev.Author, ev.Votes = w.ID, w.Content, w.Author, w.Votes
	}
	o.publish(ctx, ev)

	next := types.SessionTitle
	if !res.Archived {
		// A lagging node may not show the archive yet, so only re-read when
		// this round left the book open.
		var err error
		next, err = o.NextSessionType(ctx, requested)
		if err != nil {
			log.Printf("orchestrator: book unavailable after session %d, keeping %s: %v", session.ID, next, err)
		}
	}
	successor, created, err := o.openSession(ctx, next)
	if err != nil {
		return res, err
	}
	res.Successor = successor
	res.SuccessorCreated = created
	return res, nil
}

// commit performs the ledger write for the winner and records the outcome.
// It returns the type the successor round should have.
func (o *Orchestrator) commit(ctx context.Context, session types.VotingSession, res *Resolution) (types.SessionType, error) {
	winner := res.Winner

	book, err := o.book.CurrentBook(ctx)
	if err != nil {
		log.Printf("orchestrator: session %d: read book (%s): %v", session.ID, logging.Kind(err), err)
		return session.Type, o.fail(ctx, res, err.Error())
	}

	var (
		op     ledger.Operation
		write  func(context.Context, ledger.WriteRequest) (*ledger.TxResult, error)
		reward int64
	)
	switch {
	case session.Type == types.SessionTitle:
		op, write, reward = ledger.OpStartNewBook, o.ledger.StartNewBook, o.settings.RewardTitle
	case book == nil || book.Archived():
		return types.SessionTitle, o.fail(ctx, res, notesNoBook)
	case book.ParagraphCount() >= o.settings.MaxParagraphs-1:
		op, write, reward = ledger.OpAddParagraphAndArchive, o.ledger.AddParagraphAndArchive, o.settings.RewardArchive
	default:
		op, write, reward = ledger.OpAddParagraph, o.ledger.AddParagraph, o.settings.RewardParagraph
	}
	res.Operation = op

	tx, err := write(ctx, ledger.WriteRequest{
		Content:        winner.Content,
		Author:         winner.Author,
		IdempotencyKey: proposalKey(winner, op),
	})
	if err == nil && (tx == nil || tx.Digest == "") {
		err = errors.New(notesTxFailed)
	}
	if err != nil {
		log.Printf("orchestrator: session %d: %s failed (%s): %v", session.ID, op, logging.Kind(err), err)
		notes := err.Error()
		if notes == "" {
			notes = notesTxFailed
		}
		return session.Type, o.fail(ctx, res, notes)
	}

	return o.record(ctx, &pendingCommit{session: session, res: res, tx: tx, reward: reward})
}

// pendingCommit is a ledger write that landed but is not recorded in the
// store yet.
type pendingCommit struct {
	session types.VotingSession
	res     *Resolution
	tx      *ledger.TxResult
	reward  int64
}

// record completes the session of a landed write and clears both proposal
// sets. On a store error the commit is kept and retried on the next tick, so
// the winner stays out of later rounds and the ledger is not written again.
func (o *Orchestrator) record(ctx context.Context, p *pendingCommit) (types.SessionType, error) {
	session, res, tx := p.session, p.res, p.tx
	if err := o.sessions.Complete(ctx, session.ID, tx.Digest, types.SessionTitle, types.SessionParagraph); err != nil {
		o.pending[session.ID] = p
		log.Printf("orchestrator: session %d: tx %s landed but was not recorded (%s): %v", session.ID, tx.Digest, logging.Kind(err), err)
		return session.Type, err
	}
	delete(o.pending, session.ID)

	res.Status = types.StatusCompleted
	res.Notes = tx.Digest
	res.Digest = tx.Digest
	res.Archived = tx.Archived
	log.Printf("orchestrator: session %d completed with %s, tx %s", session.ID, res.Operation, tx.Digest)

	o.bump(ctx, res.Winner.Author, types.StatWon, 0)
	o.bump(ctx, res.Winner.Author, types.StatRewarded, p.reward)

	if err := o.pause(ctx); err != nil {
		return types.SessionParagraph, err
	}

	if session.Type == types.SessionTitle || !tx.Archived {
		return types.SessionParagraph, nil
	}
	return types.SessionTitle, nil
}

// retryPending records commits whose store update failed on an earlier tick.
func (o *Orchestrator) retryPending(ctx context.Context) ([]Resolution, error) {
	var out []Resolution
	for _, p := range o.pending {
		next, err := o.record(ctx, p)
		if err != nil {
			return out, err
		}
		res, err := o.conclude(ctx, p.session, p.res, next)
		if err != nil {
			return out, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// proposalKey identifies the write of one proposal. It does not depend on the
// session, so a proposal that wins again after a lost commit dedupes at the
// gateway.
func proposalKey(p *types.Proposal, op ledger.Operation) string {
	return ledger.IdempotencyKey("proposal", strconv.FormatUint(p.ID, 10), string(op), p.Content)
}

func (o *Orchestrator) fail(ctx context.Context, res *Resolution, notes string) error {
	if err := o.sessions.Finish(ctx, res.SessionID, types.StatusFailed, notes); err != nil {
		return err
	}
	res.Status = types.StatusFailed
	res.Notes = notes
	log.Printf("orchestrator: session %d failed: %s", res.SessionID, notes)
	return nil
}

func (o *Orchestrator) release(ctx context.Context, id uint64) {
	o.recent.Remove(id)
	if err := o.sessions.Release(ctx, id); err != nil {
		log.Printf("orchestrator: release session %d: %v", id, err)
	}
}

func (o *Orchestrator) bump(ctx context.Context, author string, action types.StatAction, amount int64) {
	if err := o.stats.Upsert(ctx, author, action, amount); err != nil {
		log.Printf("orchestrator: stats %s for %s: %v", action, author, err)
	}
}
