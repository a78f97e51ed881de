package webserver

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/storyvote/src/contest"
	"github.com/stake-plus/storyvote/src/store"
	"github.com/stake-plus/storyvote/src/types"
)

func health(info Info) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"config":    info,
		})
	}
}

type Sessions struct {
	orch  Orchestrator
	store SessionStore
}

func NewSessions(orch Orchestrator, s SessionStore) Sessions {
	return Sessions{orch: orch, store: s}
}

func (h Sessions) List(c *gin.Context) {
	session, err := h.store.Active(c.Request.Context())
	if err != nil {
		internalError(c, "list sessions", err)
		return
	}
	if session == nil {
		c.JSON(http.StatusOK, []types.VotingSession{})
		return
	}
	c.JSON(http.StatusOK, []types.VotingSession{*session})
}

func (h Sessions) Current(c *gin.Context) {
	session, err := h.orch.GetOrCreateActiveSession(c.Request.Context())
	if err != nil {
		internalError(c, "current session", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h Sessions) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "limit must be between 1 and 100"})
		return
	}
	sessions, err := h.store.History(c.Request.Context(), limit)
	if err != nil {
		internalError(c, "session history", err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

type Proposals struct {
	contest Contest
	store   ProposalStore
	stats   StatsStore
}

func NewProposals(ct Contest, p ProposalStore, s StatsStore) Proposals {
	return Proposals{contest: ct, store: p, stats: s}
}

func (h Proposals) List(c *gin.Context) {
	var (
		proposals []types.Proposal
		err       error
	)
	if raw := c.Query("type"); raw != "" {
		kind := types.SessionType(raw)
		if !kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"err": "invalid proposal type"})
			return
		}
		proposals, err = h.store.ByType(c.Request.Context(), kind)
	} else {
		proposals, err = h.store.All(c.Request.Context())
	}
	if err != nil {
		internalError(c, "list proposals", err)
		return
	}
	c.JSON(http.StatusOK, proposals)
}

func (h Proposals) Create(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
		Author  string `json:"author" binding:"required"`
		Type    string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "missing required fields"})
		return
	}

	proposal, err := h.contest.SubmitProposal(c.Request.Context(), req.Content, req.Author, types.SessionType(req.Type))
	if err != nil {
		contestError(c, "submit proposal", err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

func (h Proposals) Vote(c *gin.Context) {
	var req struct {
		ProposalID uint64 `json:"proposal_id" binding:"required"`
		Voter      string `json:"voter" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "missing required fields"})
		return
	}

	proposal, err := h.contest.CastVote(c.Request.Context(), req.ProposalID, req.Voter)
	if err != nil {
		contestError(c, "cast vote", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "votes": proposal.Votes})
}

func (h Proposals) CheckVote(c *gin.Context) {
	vote, err := h.contest.VoteStatus(c.Request.Context(), c.Param("voter"))
	if err != nil {
		contestError(c, "check vote", err)
		return
	}
	if vote == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal_id": vote.ProposalID})
}

func (h Proposals) Stats(c *gin.Context) {
	author := strings.ToLower(strings.TrimSpace(c.Param("author")))
	stats, err := h.stats.Get(c.Request.Context(), author)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "no statistics found for this author"})
		return
	}
	if err != nil {
		internalError(c, "author stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type Books struct {
	books BookSource
}

func NewBooks(b BookSource) Books { return Books{books: b} }

func (h Books) List(c *gin.Context) {
	books, err := h.books.Books(c.Request.Context())
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h Books) Current(c *gin.Context) {
	book, err := h.books.CurrentBook(c.Request.Context())
	if err != nil {
		ledgerError(c, err)
		return
	}
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "no active book found"})
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h Books) Get(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid book index"})
		return
	}
	books, err := h.books.Books(c.Request.Context())
	if err != nil {
		ledgerError(c, err)
		return
	}
	if index >= uint64(len(books)) {
		c.JSON(http.StatusNotFound, gin.H{"err": "book not found"})
		return
	}
	c.JSON(http.StatusOK, books[index])
}

type Trigger struct {
	orch  Orchestrator
	token string
}

func NewTrigger(orch Orchestrator, token string) Trigger {
	return Trigger{orch: orch, token: token}
}

// Check runs an expiry check on demand. With a token configured the caller
// must present it as a bearer token or a token query parameter.
func (h Trigger) Check(c *gin.Context) {
	if h.token != "" && !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "unauthorized"})
		return
	}

	report, err := h.orch.RunExpiryCheck(c.Request.Context())
	if err != nil {
		internalError(c, "expiry check", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"report":    report,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h Trigger) authorized(c *gin.Context) bool {
	presented := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if presented == "" {
		presented = c.Query("token")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}

func contestError(c *gin.Context, op string, err error) {
	switch {
	case contest.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
	case errors.Is(err, contest.ErrProposalMissing):
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
	case errors.Is(err, contest.ErrAlreadyVoted),
		errors.Is(err, contest.ErrTypeMismatch),
		errors.Is(err, contest.ErrNoSession),
		errors.Is(err, contest.ErrVotingClosed):
		c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
	default:
		internalError(c, op, err)
	}
}

func ledgerError(c *gin.Context, err error) {
	log.Printf("webserver: ledger read: %v", err)
	c.JSON(http.StatusBadGateway, gin.H{"err": "failed to read story book"})
}

func internalError(c *gin.Context, op string, err error) {
	log.Printf("webserver: %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to " + op})
}
