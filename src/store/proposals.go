package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stake-plus/storyvote/src/types"
	"gorm.io/gorm"
)

// Proposals persists candidate titles/paragraphs and the votes cast on them.
type Proposals struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProposals(db *gorm.DB) *Proposals {
	return &Proposals{db: db, now: utcNow}
}

// WithClock returns a copy of p that stamps rows using now.
func (p *Proposals) WithClock(now func() time.Time) *Proposals {
	return &Proposals{db: p.db, now: func() time.Time { return now().UTC() }}
}

// Create inserts a proposal with zero votes.
func (p *Proposals) Create(ctx context.Context, proposal *types.Proposal) error {
	if !proposal.Type.Valid() {
		return fmt.Errorf("create proposal: invalid type %q", proposal.Type)
	}
	proposal.Votes = 0
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = p.now()
	}
	if err := p.db.WithContext(ctx).Create(proposal).Error; err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// Get loads a proposal by id.
func (p *Proposals) Get(ctx context.Context, id uint64) (*types.Proposal, error) {
	var proposal types.Proposal
	err := p.db.WithContext(ctx).First(&proposal, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load proposal %d: %w", id, err)
	}
	return &proposal, nil
}

// ByType returns the proposals of one type, most votes first. Equal vote
// counts keep submission order.
func (p *Proposals) ByType(ctx context.Context, proposalType types.SessionType) ([]types.Proposal, error) {
	var proposals []types.Proposal
	err := p.db.WithContext(ctx).
		Where("type = ?", proposalType).
		Order("votes DESC").Order("id ASC").
		Find(&proposals).Error
	if err != nil {
		return nil, fmt.Errorf("load %s proposals: %w", proposalType, err)
	}
	return proposals, nil
}

// All returns every open proposal, most votes first.
func (p *Proposals) All(ctx context.Context) ([]types.Proposal, error) {
	var proposals []types.Proposal
	err := p.db.WithContext(ctx).
		Order("votes DESC").Order("id ASC").
		Find(&proposals).Error
	if err != nil {
		return nil, fmt.Errorf("load proposals: %w", err)
	}
	return proposals, nil
}

// VoteBy returns the vote a voter cast in a session, or nil.
func (p *Proposals) VoteBy(ctx context.Context, sessionID uint64, voter string) (*types.Vote, error) {
	var vote types.Vote
	err := p.db.WithContext(ctx).
		Where("session_id = ? AND voter = ?", sessionID, voter).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vote for %s: %w", voter, err)
	}
	return &vote, nil
}

// CastVote records one vote and bumps the proposal tally atomically. A second
// vote by the same voter in the same session fails with ErrAlreadyVoted.
func (p *Proposals) CastVote(ctx context.Context, sessionID, proposalID uint64, voter string) (*types.Proposal, error) {
	var proposal types.Proposal
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&types.Vote{}).
			Where("session_id = ? AND voter = ?", sessionID, voter).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyVoted
		}

		vote := types.Vote{
			SessionID:  sessionID,
			ProposalID: proposalID,
			Voter:      voter,
			CreatedAt:  p.now(),
		}
		if err := tx.Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyVoted
			}
			return err
		}

		res := tx.Model(&types.Proposal{}).
			Where("id = ?", proposalID).
			UpdateColumn("votes", gorm.Expr("votes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.First(&proposal, proposalID).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cast vote on %d: %w", proposalID, err)
	}
	return &proposal, nil
}

// Clear deletes the proposals of each listed type together with their votes.
func (p *Proposals) Clear(ctx context.Context, kinds ...types.SessionType) (int64, error) {
	var total int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, kind := range kinds {
			n, err := clearProposals(tx, kind)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}

func clearProposals(tx *gorm.DB, kind types.SessionType) (int64, error) {
	ids := tx.Model(&types.Proposal{}).Select("id").Where("type = ?", kind)
	if err := tx.Where("proposal_id IN (?)", ids).Delete(&types.Vote{}).Error; err != nil {
		return 0, fmt.Errorf("clear %s votes: %w", kind, err)
	}
	res := tx.Where("type = ?", kind).Delete(&types.Proposal{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear %s proposals: %w", kind, res.Error)
	}
	return res.RowsAffected, nil
}
