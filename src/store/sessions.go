package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stake-plus/storyvote/src/types"
	"gorm.io/gorm"
)

// Sessions persists voting rounds. Status changes go through compare-and-swap
// updates so a round is resolved by at most one caller.
type Sessions struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessions(db *gorm.DB) *Sessions {
	return &Sessions{db: db, now: utcNow}
}

// WithClock returns a copy of s that stamps rows using now.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	return &Sessions{db: s.db, now: func() time.Time { return now().UTC() }}
}

// Active returns the newest active session, or nil when there is none.
func (s *Sessions) Active(ctx context.Context) (*types.VotingSession, error) {
	return s.latestWithStatus(ctx, types.StatusActive)
}

// Resolving returns a session currently claimed for resolution, or nil.
func (s *Sessions) Resolving(ctx context.Context) (*types.VotingSession, error) {
	return s.latestWithStatus(ctx, types.StatusResolving)
}

func (s *Sessions) latestWithStatus(ctx context.Context, status types.SessionStatus) (*types.VotingSession, error) {
	var session types.VotingSession
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").Order("id DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s session: %w", status, err)
	}
	return &session, nil
}

// Get loads a session by id.
func (s *Sessions) Get(ctx context.Context, id uint64) (*types.VotingSession, error) {
	var session types.VotingSession
	err := s.db.WithContext(ctx).First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", id, err)
	}
	return &session, nil
}

// Expired returns up to limit active sessions whose expiry is before now, oldest first.
func (s *Sessions) Expired(ctx context.Context, now time.Time, limit int) ([]types.VotingSession, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", types.StatusActive, now.UTC()).
		Order("expires_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sessions []types.VotingSession
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("load expired sessions: %w", err)
	}
	return sessions, nil
}

// StaleResolving returns sessions claimed for resolution and not touched since before.
func (s *Sessions) StaleResolving(ctx context.Context, before time.Time) ([]types.VotingSession, error) {
	var sessions []types.VotingSession
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", types.StatusResolving, before.UTC()).
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("load stale sessions: %w", err)
	}
	return sessions, nil
}

// History returns the most recently resolved sessions.
func (s *Sessions) History(ctx context.Context, limit int) ([]types.VotingSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var sessions []types.VotingSession
	err := s.db.WithContext(ctx).
		Where("status IN ?", []types.SessionStatus{types.StatusCompleted, types.StatusFailed}).
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	return sessions, nil
}

// Create inserts a new active session unconditionally.
func (s *Sessions) Create(ctx context.Context, sessionType types.SessionType, expiresAt time.Time) (*types.VotingSession, error) {
	return createSession(s.db.WithContext(ctx), sessionType, expiresAt, s.now())
}

// CreateIfNone inserts an active session unless one already exists, in which
// case the existing session is returned with created=false.
func (s *Sessions) CreateIfNone(ctx context.Context, sessionType types.SessionType, expiresAt time.Time) (*types.VotingSession, bool, error) {
	var (
		session *types.VotingSession
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing types.VotingSession
		err := tx.Where("status = ?", types.StatusActive).Order("id DESC").First(&existing).Error
		if err == nil {
			session = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check active session: %w", err)
		}
		session, err = createSession(tx, sessionType, expiresAt, s.now())
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return session, created, nil
}

func createSession(db *gorm.DB, sessionType types.SessionType, expiresAt, now time.Time) (*types.VotingSession, error) {
	if !sessionType.Valid() {
		return nil, fmt.Errorf("create session: invalid type %q", sessionType)
	}
	session := types.VotingSession{
		Type:      sessionType,
		Status:    types.StatusActive,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create %s session: %w", sessionType, err)
	}
	return &session, nil
}

// Claim moves an active session to resolving. It reports false when another
// caller already claimed or resolved it.
func (s *Sessions) Claim(ctx context.Context, id uint64) (bool, error) {
	n, err := s.swap(s.db.WithContext(ctx), id, types.StatusActive, types.StatusResolving, nil)
	if err != nil {
		return false, fmt.Errorf("claim session %d: %w", id, err)
	}
	return n == 1, nil
}

// Release hands a claimed session back to the active pool.
func (s *Sessions) Release(ctx context.Context, id uint64) error {
	n, err := s.swap(s.db.WithContext(ctx), id, types.StatusResolving, types.StatusActive, nil)
	if err != nil {
		return fmt.Errorf("release session %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotClaimed
	}
	return nil
}

// Finish records the terminal status of a claimed session.
func (s *Sessions) Finish(ctx context.Context, id uint64, status types.SessionStatus, notes string) error {
	return finishSession(s.db.WithContext(ctx), s, id, status, notes)
}

// Complete marks a claimed session completed and clears the proposals (and
// their votes) of each listed type in the same transaction.
func (s *Sessions) Complete(ctx context.Context, id uint64, notes string, clear ...types.SessionType) error {
	return s.settle(ctx, id, types.StatusCompleted, notes, clear)
}

// Abandon fails a claimed session and clears the listed proposal sets with it.
// Used when the outcome of the ledger write is unknown, so the same winner
// cannot be committed again by a later round.
func (s *Sessions) Abandon(ctx context.Context, id uint64, notes string, clear ...types.SessionType) error {
	return s.settle(ctx, id, types.StatusFailed, notes, clear)
}

func (s *Sessions) settle(ctx context.Context, id uint64, status types.SessionStatus, notes string, clear []types.SessionType) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := finishSession(tx, s, id, status, notes); err != nil {
			return err
		}
		for _, t := range clear {
			if _, err := clearProposals(tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func finishSession(db *gorm.DB, s *Sessions, id uint64, status types.SessionStatus, notes string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish session %d: %q is not a terminal status", id, status)
	}
	n, err := s.swap(db, id, types.StatusResolving, status, &notes)
	if err != nil {
		return fmt.Errorf("finish session %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (s *Sessions) swap(db *gorm.DB, id uint64, from, to types.SessionStatus, notes *string) (int64, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": s.now(),
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	res := db.Model(&types.VotingSession{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func utcNow() time.Time { return time.Now().UTC() }
