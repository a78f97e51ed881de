package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stake-plus/storyvote/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stats keeps per-author counters. Rows are created on first use and never deleted.
type Stats struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStats(db *gorm.DB) *Stats {
	return &Stats{db: db, now: utcNow}
}

var statColumns = map[types.StatAction]string{
	types.StatSubmitted: "proposals_submitted",
	types.StatVoted:     "votes_received",
	types.StatWon:       "proposals_won",
	types.StatRewarded:  "tokens_earned",
}

// Upsert increments one counter for author. amount only applies to rewards;
// the other actions always count one.
func (s *Stats) Upsert(ctx context.Context, author string, action types.StatAction, amount int64) error {
	column, ok := statColumns[action]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if action != types.StatRewarded {
		amount = 1
	}
	if amount == 0 {
		return nil
	}

	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := types.ProposalStats{Author: author, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("seed stats for %s: %w", author, err)
		}
		err := tx.Model(&types.ProposalStats{}).
			Where("author = ?", author).
			UpdateColumns(map[string]interface{}{
				column:       gorm.Expr(column+" + ?", amount),
				"updated_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("bump %s for %s: %w", column, author, err)
		}
		return nil
	})
}

// Get returns the counters for author.
func (s *Stats) Get(ctx context.Context, author string) (*types.ProposalStats, error) {
	var stats types.ProposalStats
	err := s.db.WithContext(ctx).Where("author = ?", author).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load stats for %s: %w", author, err)
	}
	return &stats, nil
}
