// Package pending persists intents that are waiting for a YES/NO reply.
//
// Only the newest unprocessed, unexpired action for a sender can be
// resolved. Older ones are shadowed, never cancelled. Expiry is enforced by
// filtering at read time; nothing sweeps the table.
package pending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"whatsapp-assistant/internal/models"
)

var ErrNotFound = errors.New("pending: no open action")

type Store struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

// Create stamps the action with its creation and expiry times and inserts it.
func (s *Store) Create(ctx context.Context, action *models.PendingAction, now time.Time) error {
	now = now.UTC()
	action.CreatedAt = now
	action.ExpiresAt = now.Add(s.ttl)
	action.ProcessedAt = nil

	if err := s.db.WithContext(ctx).Create(action).Error; err != nil {
		return fmt.Errorf("create pending action: %w", err)
	}
	return nil
}

// Latest returns the most recent open action for the sender, or ErrNotFound.
func (s *Store) Latest(ctx context.Context, tenantID, phone string, now time.Time) (*models.PendingAction, error) {
	var action models.PendingAction
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND phone_number = ? AND processed_at IS NULL AND expires_at > ?", tenantID, phone, now.UTC()).
		Order("created_at DESC").
		First(&action).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pending action: %w", err)
	}
	return &action, nil
}

// Claim marks the action processed if it is still open at now. It returns
// true only for the caller whose update took effect, so two concurrent
// replies can never both resolve the same action.
func (s *Store) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	now = now.UTC()
	result := s.db.WithContext(ctx).
		Model(&models.PendingAction{}).
		Where("id = ? AND processed_at IS NULL AND expires_at > ?", id, now).
		Update("processed_at", now)
	if result.Error != nil {
		return false, fmt.Errorf("claim pending action: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListRecent returns the newest actions for a tenant, open or not.
func (s *Store) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.PendingAction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}

	var actions []models.PendingAction
	if err := q.Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("list pending actions: %w", err)
	}
	return actions, nil
}
