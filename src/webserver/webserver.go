package webserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/storyvote/src/actions/core"
	"github.com/stake-plus/storyvote/src/config"
	"github.com/stake-plus/storyvote/src/ledger"
	"github.com/stake-plus/storyvote/src/orchestrator"
	"github.com/stake-plus/storyvote/src/types"
)

type Orchestrator interface {
	GetOrCreateActiveSession(ctx context.Context) (*types.VotingSession, error)
	RunExpiryCheck(ctx context.Context) (orchestrator.Report, error)
}

type SessionStore interface {
	Active(ctx context.Context) (*types.VotingSession, error)
	History(ctx context.Context, limit int) ([]types.VotingSession, error)
}

type ProposalStore interface {
	All(ctx context.Context) ([]types.Proposal, error)
	ByType(ctx context.Context, proposalType types.SessionType) ([]types.Proposal, error)
}

type StatsStore interface {
	Get(ctx context.Context, author string) (*types.ProposalStats, error)
}

type Contest interface {
	SubmitProposal(ctx context.Context, content, author string, kind types.SessionType) (*types.Proposal, error)
	CastVote(ctx context.Context, proposalID uint64, voter string) (*types.Proposal, error)
	VoteStatus(ctx context.Context, voter string) (*types.Vote, error)
}

type BookSource interface {
	CurrentBook(ctx context.Context) (*ledger.Book, error)
	Books(ctx context.Context) ([]ledger.Book, error)
}

// Info is reported by the health endpoint.
type Info struct {
	StoryBookID   string `json:"storyBookId"`
	Countdown     int    `json:"votingCountdown"`
	VoteThreshold int    `json:"voteThreshold"`
}

type Deps struct {
	Orchestrator Orchestrator
	Sessions     SessionStore
	Proposals    ProposalStore
	Stats        StatsStore
	Contest      Contest
	Books        BookSource
	Info         Info
}

// New builds the engine. Close the returned limiter when the engine is discarded.
func New(cfg config.ServerConfig, deps Deps) (*gin.Engine, *RateLimiter) {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	limiter := attachRoutes(g, cfg, deps)
	return g, limiter
}

var _ core.Module = (*Module)(nil)

// Module serves the API for the life of the process.
type Module struct {
	srv     *http.Server
	limiter *RateLimiter
}

func NewModule(cfg config.ServerConfig, deps Deps) *Module {
	engine, limiter := New(cfg, deps)
	return &Module{
		srv: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		limiter: limiter,
	}
}

// Name implements core.Module.
func (m *Module) Name() string { return "webserver" }

func (m *Module) Start(context.Context) error {
	go func() {
		log.Printf("webserver: listening on %s", m.srv.Addr)
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("webserver: %v", err)
		}
	}()
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	if err := m.srv.Shutdown(ctx); err != nil {
		log.Printf("webserver: shutdown: %v", err)
	}
	m.limiter.Close()
}
