// Package audit appends one immutable record per inbound WhatsApp message.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/models"
)

// Entry describes the outcome of one inbound message.
type Entry struct {
	TenantID        string
	PhoneNumber     string
	UserID          string
	DisplayName     string
	Intent          string
	MessageText     string
	ResponseText    string
	Success         bool
	ErrorMessage    string
	ExecutionTimeMs int64
}

// Notifier receives every audit row after it is stored.
type Notifier interface {
	NotifyAudit(entry models.AuditLog)
}

type Logger struct {
	db       *gorm.DB
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewLogger(db *gorm.DB, notifier Notifier, logger *zap.Logger) *Logger {
	return &Logger{
		db:       db,
		notifier: notifier,
		logger:   logger.Named("audit"),
		now:      time.Now,
	}
}

// Record stores the entry and returns any database error.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	row := toRow(e, l.now().UTC())
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	if l.notifier != nil {
		l.notifier.NotifyAudit(row)
	}
	return nil
}

// RecordBestEffort stores the entry and swallows failures after logging
// them. A reply must never be held back because the audit write failed.
func (l *Logger) RecordBestEffort(ctx context.Context, e Entry) {
	if err := l.Record(ctx, e); err != nil {
		l.logger.Error("Audit write failed, continuing",
			zap.Error(err),
			zap.String("phone", e.PhoneNumber),
			zap.String("tenant_id", e.TenantID),
			zap.Bool("success", e.Success),
		)
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	TenantID    string
	PhoneNumber string
	Success     *bool
	Limit       int
	Offset      int
}

func (l *Logger) List(ctx context.Context, f Filter) ([]models.AuditLog, int64, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	q := l.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.TenantID != "" {
		q = q.Where("tenant_id = ?", f.TenantID)
	}
	if f.PhoneNumber != "" {
		q = q.Where("phone_number = ?", f.PhoneNumber)
	}
	if f.Success != nil {
		q = q.Where("success = ?", *f.Success)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	var rows []models.AuditLog
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return rows, total, nil
}

func toRow(e Entry, now time.Time) models.AuditLog {
	return models.AuditLog{
		TenantID:        optional(e.TenantID),
		PhoneNumber:     e.PhoneNumber,
		UserID:          optional(e.UserID),
		DisplayName:     e.DisplayName,
		Intent:          optional(e.Intent),
		MessageText:     e.MessageText,
		ResponseText:    e.ResponseText,
		Success:         e.Success,
		ErrorMessage:    optional(e.ErrorMessage),
		ExecutionTimeMs: e.ExecutionTimeMs,
		CreatedAt:       now,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
