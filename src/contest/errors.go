package contest

import (
	"errors"

	"github.com/stake-plus/storyvote/src/store"
)

var (
	ErrInvalidType     = errors.New("invalid proposal type")
	ErrEmptyContent    = errors.New("content is empty")
	ErrContentTooLong  = errors.New("content is too long")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrNoSession       = errors.New("no voting session is open")
	ErrVotingClosed    = errors.New("voting session has ended")
	ErrTypeMismatch    = errors.New("proposal type does not match the open session")
	ErrProposalMissing = errors.New("proposal not found")
	ErrAlreadyVoted    = store.ErrAlreadyVoted
)

// IsValidation reports whether err was caused by bad caller input rather
// than by a failing dependency.
func IsValidation(err error) bool {
	for _, target := range []error{ErrInvalidType, ErrEmptyContent, ErrContentTooLong, ErrInvalidAddress} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
