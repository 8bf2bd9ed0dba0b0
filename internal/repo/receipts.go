// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the update-receipt helpers used to
// suppress relaying a redelivered Telegram update twice.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
)

// ErrDuplicate indicates that a live receipt already exists for the update.
var ErrDuplicate = errors.New("duplicate")

// ClaimUpdate records that updateID is being dispatched. It returns
// ErrDuplicate when a receipt for the same update is still live. An expired
// receipt is taken over in place.
func ClaimUpdate(ctx context.Context, db *gorm.DB, table string, updateID int64, chatID string, ttl time.Duration) (*domain.UpdateReceipt, error) {
	now := time.Now().UTC()
	rec := &domain.UpdateReceipt{
		UpdateID:  updateID,
		ChatID:    chatID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Table(table).Create(rec).Error
	if err == nil {
		return rec, nil
	}
	if !isUniqueViolation(err) {
		return nil, err
	}

	var cur domain.UpdateReceipt
	err = db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: "update_id"}, Value: updateID}).
		Take(&cur).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil && cur.Live(now) {
		return nil, ErrDuplicate
	}

	// The expiry condition guards against a concurrent claim of the same update.
	res := db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: "update_id"}, Value: updateID}).
		Where("expires_at <= ?", now).
		Updates(map[string]any{
			"chat_id":    chatID,
			"created_at": rec.CreatedAt,
			"expires_at": rec.ExpiresAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeExpiredReceipts deletes receipts that expired before now and reports
// how many were removed.
func PurgeExpiredReceipts(ctx context.Context, db *gorm.DB, table string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Table(table).
		Where("expires_at <= ?", now).
		Delete(&domain.UpdateReceipt{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
