// Package orchestrator runs the voting round lifecycle: it closes expired
// rounds, commits winners to the ledger and opens the next round.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stake-plus/storyvote/src/config"
	"github.com/stake-plus/storyvote/src/events"
	"github.com/stake-plus/storyvote/src/ledger"
	"github.com/stake-plus/storyvote/src/types"
)

// SystemAuthor signs corrective writes that no participant proposed.
const SystemAuthor = "0x0000000000000000000000000000000000000000000000000000000000000123"

const autoArchiveContent = "System auto-archive"

type SessionStore interface {
	Active(ctx context.Context) (*types.VotingSession, error)
	Resolving(ctx context.Context) (*types.VotingSession, error)
	Expired(ctx context.Context, now time.Time, limit int) ([]types.VotingSession, error)
	StaleResolving(ctx context.Context, before time.Time) ([]types.VotingSession, error)
	CreateIfNone(ctx context.Context, sessionType types.SessionType, expiresAt time.Time) (*types.VotingSession, bool, error)
	Claim(ctx context.Context, id uint64) (bool, error)
	Release(ctx context.Context, id uint64) error
	Finish(ctx context.Context, id uint64, status types.SessionStatus, notes string) error
	Complete(ctx context.Context, id uint64, notes string, clear ...types.SessionType) error
	Abandon(ctx context.Context, id uint64, notes string, clear ...types.SessionType) error
}

type ProposalStore interface {
	ByType(ctx context.Context, proposalType types.SessionType) ([]types.Proposal, error)
}

type StatsStore interface {
	Upsert(ctx context.Context, author string, action types.StatAction, amount int64) error
}

type BookReader interface {
	CurrentBook(ctx context.Context) (*ledger.Book, error)
}

type LedgerWriter interface {
	StartNewBook(ctx context.Context, req ledger.WriteRequest) (*ledger.TxResult, error)
	AddParagraph(ctx context.Context, req ledger.WriteRequest) (*ledger.TxResult, error)
	AddParagraphAndArchive(ctx context.Context, req ledger.WriteRequest) (*ledger.TxResult, error)
}

// Deps are the collaborators of an Orchestrator. Events, Now and Sleep are optional.
type Deps struct {
	Sessions  SessionStore
	Proposals ProposalStore
	Stats     StatsStore
	Book      BookReader
	Ledger    LedgerWriter
	Events    events.Publisher
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
}

// Settings tune round length, thresholds and rewards.
type Settings struct {
	Countdown       time.Duration
	VoteThreshold   int
	MinTickInterval time.Duration
	MaxPerTick      int
	DedupCapacity   int
	CallPause       time.Duration
	StaleAfter      time.Duration
	MaxParagraphs   int
	RewardTitle     int64
	RewardParagraph int64
	RewardArchive   int64
}

func DefaultSettings() Settings {
	return Settings{
		Countdown:       300 * time.Second,
		VoteThreshold:   2,
		MinTickInterval: 60 * time.Second,
		MaxPerTick:      1,
		DedupCapacity:   50,
		CallPause:       2 * time.Second,
		StaleAfter:      600 * time.Second,
		MaxParagraphs:   10,
		RewardTitle:     100,
		RewardParagraph: 20,
		RewardArchive:   70,
	}
}

func SettingsFromConfig(c config.ContestConfig) Settings {
	return Settings{
		Countdown:       c.Countdown,
		VoteThreshold:   c.VoteThreshold,
		MinTickInterval: c.MinTickInterval,
		MaxPerTick:      c.MaxPerTick,
		DedupCapacity:   c.DedupCapacity,
		CallPause:       c.CallPause,
		StaleAfter:      c.StaleResolving,
		MaxParagraphs:   c.MaxParagraphs,
		RewardTitle:     c.RewardTitle,
		RewardParagraph: c.RewardParagraph,
		RewardArchive:   c.RewardArchive,
	}
}

type Orchestrator struct {
	sessions  SessionStore
	proposals ProposalStore
	stats     StatsStore
	book      BookReader
	ledger    LedgerWriter
	events    events.Publisher
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	settings Settings
	recent   *recentSet
	// only touched from tick, which never overlaps itself
	pending map[uint64]*pendingCommit

	mu       sync.Mutex
	running  bool
	lastTick time.Time
}

func New(deps Deps, settings Settings) (*Orchestrator, error) {
	if deps.Sessions == nil || deps.Proposals == nil || deps.Stats == nil {
		return nil, fmt.Errorf("orchestrator: stores are required")
	}
	if deps.Book == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("orchestrator: ledger reader and writer are required")
	}
	defaults := DefaultSettings()
	if settings.Countdown <= 0 {
		settings.Countdown = defaults.Countdown
	}
	if settings.VoteThreshold <= 0 {
		settings.VoteThreshold = defaults.VoteThreshold
	}
	if settings.MaxPerTick <= 0 {
		settings.MaxPerTick = defaults.MaxPerTick
	}
	if settings.MaxParagraphs <= 0 {
		settings.MaxParagraphs = defaults.MaxParagraphs
	}
	if settings.StaleAfter <= 0 {
		settings.StaleAfter = defaults.StaleAfter
	}

	o := &Orchestrator{
		sessions:  deps.Sessions,
		proposals: deps.Proposals,
		stats:     deps.Stats,
		book:      deps.Book,
		ledger:    deps.Ledger,
		events:    deps.Events,
		now:       deps.Now,
		sleep:     deps.Sleep,
		settings:  settings,
		recent:    newRecentSet(settings.DedupCapacity),
		pending:   make(map[uint64]*pendingCommit),
	}
	if o.events == nil {
		o.events = events.Nop{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
	return o, nil
}

func (o *Orchestrator) Settings() Settings { return o.settings }

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = o.now().UTC()
	}
	if err := o.events.Publish(ctx, ev); err != nil {
		log.Printf("orchestrator: publish %s: %v", ev.Kind, err)
	}
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.settings.CallPause <= 0 {
		return nil
	}
	return o.sleep(ctx, o.settings.CallPause)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
