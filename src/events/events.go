// Package events fans contest state changes out to other processes and
// to chat announcements.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/stake-plus/storyvote/src/types"
)

type Kind string

const (
	SessionCreated    Kind = "session.created"
	SessionResolved   Kind = "session.resolved"
	ProposalSubmitted Kind = "proposal.submitted"
	VoteCast          Kind = "vote.cast"
)

// Event describes one change. Fields that do not apply to Kind stay empty.
type Event struct {
	ID          string              `json:"id"`
	Kind        Kind                `json:"kind"`
	SessionID   uint64              `json:"session_id,omitempty"`
	SessionType types.SessionType   `json:"session_type,omitempty"`
	Status      types.SessionStatus `json:"status,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	ProposalID  uint64              `json:"proposal_id,omitempty"`
	Content     string              `json:"content,omitempty"`
	Author      string              `json:"author,omitempty"`
	Votes       int                 `json:"votes,omitempty"`
	Operation   string              `json:"operation,omitempty"`
	Archived    bool                `json:"archived,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	At          time.Time           `json:"at"`
}

// Publisher delivers events. Publish failures never roll back the change
// that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
