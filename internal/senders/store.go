// Package senders maps WhatsApp phone numbers to tenant users.
package senders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"whatsapp-assistant/internal/models"
)

var ErrNotFound = errors.New("senders: mapping not found")

// Status is the outcome of resolving a phone number.
type Status int

const (
	Unregistered Status = iota
	Inactive
	Active
	// Ambiguous means more than one active mapping exists for the number,
	// usually because it was registered under two tenants.
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

type Resolution struct {
	Status  Status
	Mapping *models.SenderMapping // nil for Unregistered and Ambiguous
	Matches int
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NormalizePhone strips the channel prefix and whitespace from a sender id,
// e.g. "whatsapp:+260 97 1234567" becomes "+260971234567".
func NormalizePhone(from string) string {
	s := strings.TrimSpace(from)
	if len(s) >= len("whatsapp:") && strings.EqualFold(s[:len("whatsapp:")], "whatsapp:") {
		s = s[len("whatsapp:"):]
	}
	return strings.Join(strings.Fields(s), "")
}

// Resolve looks a phone number up across all tenants.
func (s *Store) Resolve(ctx context.Context, phone string) (*Resolution, error) {
	var mappings []models.SenderMapping
	err := s.db.WithContext(ctx).
		Where("phone_number = ?", phone).
		Order("updated_at DESC").
		Find(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	if len(mappings) == 0 {
		return &Resolution{Status: Unregistered}, nil
	}

	var active []models.SenderMapping
	for _, m := range mappings {
		if m.IsActive {
			active = append(active, m)
		}
	}

	switch len(active) {
	case 0:
		return &Resolution{Status: Inactive, Mapping: &mappings[0], Matches: len(mappings)}, nil
	case 1:
		return &Resolution{Status: Active, Mapping: &active[0], Matches: len(mappings)}, nil
	default:
		return &Resolution{Status: Ambiguous, Matches: len(active)}, nil
	}
}

// Touch records that the mapping was just used.
func (s *Store) Touch(ctx context.Context, id string, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.SenderMapping{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", now.UTC()).Error
	if err != nil {
		return fmt.Errorf("touch sender mapping: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]models.SenderMapping, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	var mappings []models.SenderMapping
	if err := q.Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("list sender mappings: %w", err)
	}
	return mappings, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.SenderMapping, error) {
	var m models.SenderMapping
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sender mapping: %w", err)
	}
	return &m, nil
}

// Create inserts a mapping. Activating a number that is already active in
// the same tenant is rejected.
func (s *Store) Create(ctx context.Context, m *models.SenderMapping) error {
	m.PhoneNumber = NormalizePhone(m.PhoneNumber)
	if m.IsActive {
		if err := s.ensureUnique(ctx, m.TenantID, m.PhoneNumber, ""); err != nil {
			return err
		}
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create sender mapping: %w", err)
	}
	return nil
}

// Update is the editable subset of a mapping
type Update struct {
	Role        *string
	DisplayName *string
	IsActive    *bool
	EmployeeID  *string
	BranchID    *string
}

func (s *Store) Update(ctx context.Context, id string, u Update) (*models.SenderMapping, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.EmployeeID != nil {
		updates["employee_id"] = *u.EmployeeID
	}
	if u.BranchID != nil {
		updates["branch_id"] = *u.BranchID
	}
	if u.IsActive != nil {
		if *u.IsActive && !m.IsActive {
			if err := s.ensureUnique(ctx, m.TenantID, m.PhoneNumber, m.ID); err != nil {
				return nil, err
			}
		}
		updates["is_active"] = *u.IsActive
	}
	if len(updates) == 0 {
		return m, nil
	}

	if err := s.db.WithContext(ctx).Model(m).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update sender mapping: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.SenderMapping{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete sender mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrDuplicate is returned when a phone number already has an active
// mapping in the tenant.
var ErrDuplicate = errors.New("senders: phone number already active for tenant")

func (s *Store) ensureUnique(ctx context.Context, tenantID, phone, excludeID string) error {
	q := s.db.WithContext(ctx).Model(&models.SenderMapping{}).
		Where("tenant_id = ? AND phone_number = ? AND is_active = ?", tenantID, phone, true)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("check sender mapping: %w", err)
	}
	if n > 0 {
		return ErrDuplicate
	}
	return nil
}
