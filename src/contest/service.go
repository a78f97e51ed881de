// Package contest handles what participants do during a round: submitting
// proposals and voting on them.
package contest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/storyvote/src/events"
	"github.com/stake-plus/storyvote/src/store"
	"github.com/stake-plus/storyvote/src/types"
)

const (
	MaxTitleLength     = 200
	MaxParagraphLength = 2000
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{1,64}$`)

// SessionSource yields the round currently open for participation.
type SessionSource interface {
	GetOrCreateActiveSession(ctx context.Context) (*types.VotingSession, error)
}

type ProposalStore interface {
	Create(ctx context.Context, proposal *types.Proposal) error
	Get(ctx context.Context, id uint64) (*types.Proposal, error)
	CastVote(ctx context.Context, sessionID, proposalID uint64, voter string) (*types.Proposal, error)
	VoteBy(ctx context.Context, sessionID uint64, voter string) (*types.Vote, error)
}

type StatsStore interface {
	Upsert(ctx context.Context, author string, action types.StatAction, amount int64) error
}

type Service struct {
	sessions  SessionSource
	proposals ProposalStore
	stats     StatsStore
	events    events.Publisher
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

func NewService(sessions SessionSource, proposals ProposalStore, stats StatsStore, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		sessions:  sessions,
		proposals: proposals,
		stats:     stats,
		events:    pub,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// WithClock replaces the clock used to decide whether a round has ended.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// NormalizeAddress lower-cases and validates a participant address.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !addressPattern.MatchString(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return addr, nil
}

// SubmitProposal stores a proposal for the open round. The round must be
// of the same type and not yet expired.
func (s *Service) SubmitProposal(ctx context.Context, content, author string, kind types.SessionType) (*types.Proposal, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, kind)
	}
	author, err := NormalizeAddress(author)
	if err != nil {
		return nil, err
	}
	content, err = s.cleanContent(content, kind)
	if err != nil {
		return nil, err
	}

	session, err := s.openSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Type != kind {
		return nil, fmt.Errorf("%w: session %d takes %s proposals", ErrTypeMismatch, session.ID, session.Type)
	}

	proposal := &types.Proposal{SessionID: session.ID, Content: content, Author: author, Type: kind}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, err
	}
	s.bump(ctx, author, types.StatSubmitted)
	s.publish(ctx, events.Event{
		Kind:        events.ProposalSubmitted,
		SessionID:   session.ID,
		SessionType: kind,
		ProposalID:  proposal.ID,
		Content:     proposal.Content,
		Author:      author,
	})
	return proposal, nil
}

// CastVote records one vote by voter in the open round.
func (s *Service) CastVote(ctx context.Context, proposalID uint64, voter string) (*types.Proposal, error) {
	voter, err := NormalizeAddress(voter)
	if err != nil {
		return nil, err
	}
	session, err := s.openSession(ctx)
	if err != nil {
		return nil, err
	}

	proposal, err := s.proposals.Get(ctx, proposalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProposalMissing
	}
	if err != nil {
		return nil, err
	}
	if proposal.Type != session.Type {
		return nil, fmt.Errorf("%w: proposal %d is a %s", ErrTypeMismatch, proposal.ID, proposal.Type)
	}

	updated, err := s.proposals.CastVote(ctx, session.ID, proposal.ID, voter)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProposalMissing
	}
	if err != nil {
		return nil, err
	}
	s.bump(ctx, updated.Author, types.StatVoted)
	s.publish(ctx, events.Event{
		Kind:        events.VoteCast,
		SessionID:   session.ID,
		SessionType: session.Type,
		ProposalID:  updated.ID,
		Author:      updated.Author,
		Votes:       updated.Votes,
	})
	return updated, nil
}

// VoteStatus returns the vote voter cast in the open round, or nil.
func (s *Service) VoteStatus(ctx context.Context, voter string) (*types.Vote, error) {
	voter, err := NormalizeAddress(voter)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.GetOrCreateActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	return s.proposals.VoteBy(ctx, session.ID, voter)
}

func (s *Service) openSession(ctx context.Context) (*types.VotingSession, error) {
	session, err := s.sessions.GetOrCreateActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if session.Status != types.StatusActive || !s.now().Before(session.ExpiresAt) {
		return nil, ErrVotingClosed
	}
	return session, nil
}

func (s *Service) cleanContent(content string, kind types.SessionType) (string, error) {
	if !utf8.ValidString(content) {
		return "", fmt.Errorf("%w: invalid characters", ErrEmptyContent)
	}
	// Strip markup, then undo the entity escaping so the ledger stores plain text.
	content = strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(content)))
	if content == "" {
		return "", ErrEmptyContent
	}
	limit := MaxParagraphLength
	if kind == types.SessionTitle {
		limit = MaxTitleLength
	}
	if utf8.RuneCountInString(content) > limit {
		return "", fmt.Errorf("%w: %s limit is %d characters", ErrContentTooLong, kind, limit)
	}
	return content, nil
}

func (s *Service) bump(ctx context.Context, author string, action types.StatAction) {
	if err := s.stats.Upsert(ctx, author, action, 0); err != nil {
		log.Printf("contest: stats %s for %s: %v", action, author, err)
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("contest: publish %s: %v", ev.Kind, err)
	}
}
