package types

import "time"

// SessionType is the kind of content a voting round decides on.
type SessionType string

const (
	SessionTitle     SessionType = "title"
	SessionParagraph SessionType = "paragraph"
)

// Valid reports whether t is one of the known round types.
func (t SessionType) Valid() bool {
	return t == SessionTitle || t == SessionParagraph
}

// SessionStatus is the lifecycle state of a voting round.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusResolving SessionStatus = "resolving"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatAction names a per-author counter.
type StatAction string

const (
	StatSubmitted StatAction = "submitted"
	StatVoted     StatAction = "voted"
	StatWon       StatAction = "won"
	StatRewarded  StatAction = "rewarded"
)

// Voting rounds
type VotingSession struct {
	ID        uint64        `gorm:"primaryKey" json:"id"`
	Type      SessionType   `gorm:"size:16;not null;index" json:"type"`
	Status    SessionStatus `gorm:"size:16;not null;index" json:"status"`
	ExpiresAt time.Time     `gorm:"not null;index" json:"expires_at"`
	Notes     string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Candidate titles and paragraphs
type Proposal struct {
	ID        uint64      `gorm:"primaryKey" json:"id"`
	SessionID uint64      `gorm:"index" json:"session_id"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	Author    string      `gorm:"size:128;not null;index" json:"author"`
	Type      SessionType `gorm:"size:16;not null;index" json:"type"`
	Votes     int         `gorm:"not null;default:0" json:"votes"`
	CreatedAt time.Time   `json:"created_at"`
}

// One row per voter per round
type Vote struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	SessionID  uint64    `gorm:"not null;uniqueIndex:idx_vote_session_voter" json:"session_id"`
	ProposalID uint64    `gorm:"not null;index" json:"proposal_id"`
	Voter      string    `gorm:"size:128;not null;uniqueIndex:idx_vote_session_voter" json:"voter"`
	CreatedAt  time.Time `json:"created_at"`
}

// Per-author counters
type ProposalStats struct {
	Author             string    `gorm:"primaryKey;size:128" json:"author"`
	ProposalsSubmitted int64     `gorm:"not null;default:0" json:"proposals_submitted"`
	ProposalsWon       int64     `gorm:"not null;default:0" json:"proposals_won"`
	VotesReceived      int64     `gorm:"not null;default:0" json:"votes_received"`
	TokensEarned       int64     `gorm:"not null;default:0" json:"tokens_earned"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Runtime settings, overriding env defaults
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}
