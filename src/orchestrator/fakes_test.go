package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stake-plus/storyvote/src/data/sqlitetest"
	"github.com/stake-plus/storyvote/src/events"
	"github.com/stake-plus/storyvote/src/ledger"
	"github.com/stake-plus/storyvote/src/store"
	"github.com/stake-plus/storyvote/src/types"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeLedger is both the book reader and the writer; writes change the book.
type fakeLedger struct {
	mu       sync.Mutex
	books    []ledger.Book
	readErr  error
	writeErr error
	archErr  error
	noDigest bool
	calls    []ledger.Operation
	authors  []string
	keys     []string
	// landed writes by idempotency key, replayed like the gateway does
	landed map[string]*ledger.TxResult
}

func (f *fakeLedger) CurrentBook(context.Context) (*ledger.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	if len(f.books) == 0 {
		return nil, nil
	}
	b := f.books[len(f.books)-1]
	b.Paragraphs = append([]ledger.Paragraph(nil), b.Paragraphs...)
	return &b, nil
}

func (f *fakeLedger) setBook(paragraphs int, status ledger.BookStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := ledger.Book{Index: uint64(len(f.books)), Title: "a book", Author: "0xauthor", Status: status}
	for i := 0; i < paragraphs; i++ {
		b.Paragraphs = append(b.Paragraphs, ledger.Paragraph{Content: fmt.Sprintf("p%d", i), Author: "0xauthor"})
	}
	f.books = append(f.books, b)
}

func (f *fakeLedger) record(op ledger.Operation, req ledger.WriteRequest) (*ledger.TxResult, error) {
	f.calls = append(f.calls, op)
	f.authors = append(f.authors, req.Author)
	f.keys = append(f.keys, req.IdempotencyKey)
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	if f.noDigest {
		return &ledger.TxResult{}, nil
	}
	return &ledger.TxResult{Digest: fmt.Sprintf("tx-%d", len(f.calls))}, nil
}

// replay returns the result of an earlier write with the same key.
func (f *fakeLedger) replay(req ledger.WriteRequest) (*ledger.TxResult, bool) {
	if req.IdempotencyKey == "" {
		return nil, false
	}
	res, ok := f.landed[req.IdempotencyKey]
	if !ok {
		return nil, false
	}
	cp := *res
	return &cp, true
}

func (f *fakeLedger) land(req ledger.WriteRequest, res *ledger.TxResult) {
	if req.IdempotencyKey == "" {
		return
	}
	if f.landed == nil {
		f.landed = make(map[string]*ledger.TxResult)
	}
	cp := *res
	f.landed[req.IdempotencyKey] = &cp
}

// paragraphCount counts paragraphs with the given content across all books.
func (f *fakeLedger) paragraphCount(content string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.books {
		for _, p := range b.Paragraphs {
			if p.Content == content {
				n++
			}
		}
	}
	return n
}

func (f *fakeLedger) StartNewBook(_ context.Context, req ledger.WriteRequest) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.replay(req); ok {
		return res, nil
	}
	res, err := f.record(ledger.OpStartNewBook, req)
	if err != nil || res.Digest == "" {
		return res, err
	}
	f.books = append(f.books, ledger.Book{Index: uint64(len(f.books)), Title: req.Content, Author: req.Author})
	f.land(req, res)
	return res, nil
}

func (f *fakeLedger) AddParagraph(_ context.Context, req ledger.WriteRequest) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.replay(req); ok {
		return res, nil
	}
	res, err := f.record(ledger.OpAddParagraph, req)
	if err != nil || res.Digest == "" {
		return res, err
	}
	if len(f.books) == 0 {
		return nil, errors.New("no book")
	}
	b := &f.books[len(f.books)-1]
	b.Paragraphs = append(b.Paragraphs, ledger.Paragraph{Content: req.Content, Author: req.Author})
	f.land(req, res)
	return res, nil
}

func (f *fakeLedger) AddParagraphAndArchive(_ context.Context, req ledger.WriteRequest) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.replay(req); ok {
		return res, nil
	}
	if f.archErr != nil {
		f.calls = append(f.calls, ledger.OpAddParagraphAndArchive)
		f.authors = append(f.authors, req.Author)
		return nil, f.archErr
	}
	res, err := f.record(ledger.OpAddParagraphAndArchive, req)
	if err != nil || res.Digest == "" {
		return res, err
	}
	if len(f.books) == 0 {
		return nil, errors.New("no book")
	}
	b := &f.books[len(f.books)-1]
	b.Paragraphs = append(b.Paragraphs, ledger.Paragraph{Content: req.Content, Author: req.Author})
	b.Status = ledger.BookArchived
	res.Archived = true
	f.land(req, res)
	return res, nil
}

func (f *fakeLedger) ops() []ledger.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Operation(nil), f.calls...)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type testEnv struct {
	t         *testing.T
	ctx       context.Context
	db        *gorm.DB
	clock     *fakeClock
	sessions  *store.Sessions
	proposals *store.Proposals
	stats     *store.Stats
	ledger    *fakeLedger
	events    *recorder
	orch      *Orchestrator
}

func newTestEnv(t *testing.T, tweak func(*Settings)) *testEnv {
	t.Helper()
	db := sqlitetest.Open(t)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	env := &testEnv{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		clock:     clock,
		sessions:  store.NewSessions(db).WithClock(clock.Now),
		proposals: store.NewProposals(db).WithClock(clock.Now),
		stats:     store.NewStats(db),
		ledger:    &fakeLedger{},
		events:    &recorder{},
	}
	env.orch = env.newOrchestrator(tweak)
	return env
}

func (e *testEnv) newOrchestrator(tweak func(*Settings)) *Orchestrator {
	e.t.Helper()
	return e.orchestratorWith(e.sessions, e.ledger, tweak)
}

// orchestratorWith builds an orchestrator over the env stores with the
// session store and ledger writer swapped out.
func (e *testEnv) orchestratorWith(sessions SessionStore, writer LedgerWriter, tweak func(*Settings)) *Orchestrator {
	e.t.Helper()
	settings := DefaultSettings()
	if tweak != nil {
		tweak(&settings)
	}
	o, err := New(Deps{
		Sessions:  sessions,
		Proposals: e.proposals,
		Stats:     e.stats,
		Book:      e.ledger,
		Ledger:    writer,
		Events:    e.events,
		Now:       e.clock.Now,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}, settings)
	if err != nil {
		e.t.Fatalf("New: %v", err)
	}
	return o
}

// expiredSession inserts an active session that expired a second ago.
func (e *testEnv) expiredSession(kind types.SessionType) *types.VotingSession {
	e.t.Helper()
	s, err := e.sessions.Create(e.ctx, kind, e.clock.Now().Add(-time.Second))
	if err != nil {
		e.t.Fatalf("create session: %v", err)
	}
	return s
}

func (e *testEnv) proposal(sessionID uint64, kind types.SessionType, author string, votes int) *types.Proposal {
	e.t.Helper()
	p := &types.Proposal{SessionID: sessionID, Content: fmt.Sprintf("%s by %s", kind, author), Author: author, Type: kind}
	if err := e.proposals.Create(e.ctx, p); err != nil {
		e.t.Fatalf("create proposal: %v", err)
	}
	if err := e.db.Model(&types.Proposal{}).Where("id = ?", p.ID).Update("votes", votes).Error; err != nil {
		e.t.Fatalf("set votes: %v", err)
	}
	p.Votes = votes
	return p
}

func (e *testEnv) session(id uint64) *types.VotingSession {
	e.t.Helper()
	s, err := e.sessions.Get(e.ctx, id)
	if err != nil {
		e.t.Fatalf("get session %d: %v", id, err)
	}
	return s
}

func (e *testEnv) activeCount() int64 {
	e.t.Helper()
	var n int64
	if err := e.db.Model(&types.VotingSession{}).Where("status = ?", types.StatusActive).Count(&n).Error; err != nil {
		e.t.Fatalf("count active: %v", err)
	}
	return n
}

func (e *testEnv) proposalCount() int64 {
	e.t.Helper()
	var n int64
	e.db.Model(&types.Proposal{}).Count(&n)
	return n
}

func (e *testEnv) tick() Report {
	e.t.Helper()
	report, err := e.orch.RunExpiryCheck(e.ctx)
	if err != nil {
		e.t.Fatalf("RunExpiryCheck: %v", err)
	}
	if report.Skipped {
		e.t.Fatalf("tick skipped: %s", report.SkipReason)
	}
	return report
}

// flakySessions fails the next completeFailures calls to Complete.
type flakySessions struct {
	*store.Sessions
	mu               sync.Mutex
	completeFailures int
}

func (f *flakySessions) Complete(ctx context.Context, id uint64, notes string, clear ...types.SessionType) error {
	f.mu.Lock()
	if f.completeFailures > 0 {
		f.completeFailures--
		f.mu.Unlock()
		return errors.New("db: connection reset")
	}
	f.mu.Unlock()
	return f.Sessions.Complete(ctx, id, notes, clear...)
}

// cancellingWriter cancels the caller's context right after a write lands.
type cancellingWriter struct {
	*fakeLedger
	cancel context.CancelFunc
}

func (w cancellingWriter) AddParagraph(ctx context.Context, req ledger.WriteRequest) (*ledger.TxResult, error) {
	res, err := w.fakeLedger.AddParagraph(ctx, req)
	w.cancel()
	return res, err
}
