package data

import (
	"fmt"

	"github.com/stake-plus/storyvote/src/types"
	"gorm.io/gorm"
)

var allModels = []interface{}{
	&types.Setting{},
	&types.VotingSession{},
	&types.Proposal{},
	&types.Vote{},
	&types.ProposalStats{},
}

// Migrate creates or updates every table the contest uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
