package orchestrator

import (
	"context"
	"log"

	"github.com/stake-plus/storyvote/src/events"
	"github.com/stake-plus/storyvote/src/ledger"
	"github.com/stake-plus/storyvote/src/logging"
	"github.com/stake-plus/storyvote/src/types"
)

// NextSessionType decides the type of the next round from the book state.
// When the book cannot be read the requested type is returned with the error.
func (o *Orchestrator) NextSessionType(ctx context.Context, requested types.SessionType) (types.SessionType, error) {
	book, err := o.book.CurrentBook(ctx)
	if err != nil {
		return requested, err
	}

	switch {
	case book == nil:
		return types.SessionTitle, nil
	case book.Archived():
		return types.SessionTitle, nil
	case book.ParagraphCount() >= o.settings.MaxParagraphs:
		o.autoArchive(ctx, book)
		return types.SessionTitle, nil
	default:
		return types.SessionParagraph, nil
	}
}

// autoArchive closes a full book that was never archived. Failures are
// logged only: the next title round starts a new book either way.
func (o *Orchestrator) autoArchive(ctx context.Context, book *ledger.Book) {
	log.Printf("orchestrator: book %d has %d paragraphs but is not archived, archiving", book.Index, book.ParagraphCount())
	_, err := o.ledger.AddParagraphAndArchive(ctx, ledger.WriteRequest{
		Content:        autoArchiveContent,
		Author:         SystemAuthor,
		IdempotencyKey: ledger.IdempotencyKey("auto-archive", book.Title, autoArchiveContent),
	})
	if err != nil {
		log.Printf("orchestrator: auto-archive of book %d failed (%s): %v", book.Index, logging.Kind(err), err)
	}
}

// GetOrCreateActiveSession returns the open round, creating one when none
// exists. A session in resolution is returned as is. When the book cannot be
// read a title round is opened, the same as the periodic check does.
func (o *Orchestrator) GetOrCreateActiveSession(ctx context.Context) (*types.VotingSession, error) {
	active, err := o.sessions.Active(ctx)
	if err != nil || active != nil {
		return active, err
	}
	resolving, err := o.sessions.Resolving(ctx)
	if err != nil || resolving != nil {
		return resolving, err
	}

	next, err := o.NextSessionType(ctx, types.SessionTitle)
	if err != nil {
		log.Printf("orchestrator: book unavailable, opening %s session: %v", next, err)
	}
	session, _, err := o.openSession(ctx, next)
	return session, err
}

func (o *Orchestrator) openSession(ctx context.Context, sessionType types.SessionType) (*types.VotingSession, bool, error) {
	expiresAt := o.now().Add(o.settings.Countdown).UTC()
	session, created, err := o.sessions.CreateIfNone(ctx, sessionType, expiresAt)
	if err != nil {
		return nil, false, err
	}
	if created {
		log.Printf("orchestrator: opened %s session %d until %s", session.Type, session.ID, session.ExpiresAt.Format("15:04:05"))
		o.publish(ctx, events.Event{
			Kind:        events.SessionCreated,
			SessionID:   session.ID,
			SessionType: session.Type,
			Status:      session.Status,
			ExpiresAt:   &session.ExpiresAt,
		})
	}
	return session, created, nil
}
