package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	svcErr "github.com/IdrisKulubi/strath-mobile-sub004/internal/errors"
)

// ErrDuplicateDrop means another writer already created this drop number.
var ErrDuplicateDrop = errors.New("drop number already exists for user")

// DropRepository persists weekly drop snapshots. Every status transition
// is a conditional update so concurrent writers stay idempotent.
type DropRepository struct {
	db *gorm.DB
}

// NewDropRepository creates a new repository bound to the given DB connection.
func NewDropRepository(database *gorm.DB) *DropRepository {
	return &DropRepository{db: database}
}

// Create inserts a new drop. A clash on (user_id, drop_number) is
// reported as ErrDuplicateDrop.
func (r *DropRepository) Create(ctx context.Context, drop *db.WeeklyDrop) error {
	err := r.db.WithContext(ctx).Create(drop).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("drop %d for user %d: %w", drop.DropNumber, drop.UserID, ErrDuplicateDrop)
	}
	return err
}

// LatestNumber returns the highest drop number a user has, or 0.
func (r *DropRepository) LatestNumber(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.WithContext(ctx).
		Model(&db.WeeklyDrop{}).
		Select("COALESCE(MAX(drop_number), 0)").
		Where("user_id = ?", userID).
		Scan(&n).Error
	return n, err
}

// HasActive reports whether the user holds a drop that is not expired.
func (r *DropRepository) HasActive(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.WeeklyDrop{}).
		Where("user_id = ? AND status <> ? AND expires_at > ?", userID, db.DropExpired, now).
		Count(&count).Error
	return count > 0, err
}

// Current returns the newest non-expired drop, or nil when there is none.
func (r *DropRepository) Current(ctx context.Context, userID uint64, now time.Time) (*db.WeeklyDrop, error) {
	var drops []db.WeeklyDrop
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ? AND expires_at > ?", userID, db.DropExpired, now).
		Order("drop_number DESC").
		Limit(1).
		Find(&drops).Error
	if err != nil {
		return nil, fmt.Errorf("current drop for %d: %w", userID, err)
	}
	if len(drops) == 0 {
		return nil, nil
	}
	return &drops[0], nil
}

// Get loads one of the user's drops by id.
func (r *DropRepository) Get(ctx context.Context, userID uint64, id string) (*db.WeeklyDrop, error) {
	var d db.WeeklyDrop
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("drop %s: %w", id, svcErr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get drop %s: %w", id, err)
	}
	return &d, nil
}

// History returns expired drops, newest first.
func (r *DropRepository) History(ctx context.Context, userID uint64, limit int) ([]db.WeeklyDrop, error) {
	var drops []db.WeeklyDrop
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, db.DropExpired).
		Order("drop_number DESC").
		Limit(limit).
		Find(&drops).Error
	if err != nil {
		return nil, fmt.Errorf("drop history for %d: %w", userID, err)
	}
	return drops, nil
}

// ExpireOverdue forces every overdue drop to expired.
//
// Behavior:
//   - Only rows with status <> expired AND expires_at <= now are touched.
//   - Returns the number of rows transitioned; a repeat call returns 0.
//
// Example:
//
//	n, _ := repo.ExpireOverdue(ctx, time.Now()) // 3
//	n, _ = repo.ExpireOverdue(ctx, time.Now())  // 0
func (r *DropRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.WeeklyDrop{}).
		Where("status <> ? AND expires_at <= ?", db.DropExpired, now).
		Update("status", db.DropExpired)
	return res.RowsAffected, res.Error
}

// ExpireOverdueForUser is ExpireOverdue scoped to one user, used before reads.
func (r *DropRepository) ExpireOverdueForUser(ctx context.Context, userID uint64, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.WeeklyDrop{}).
		Where("user_id = ? AND status <> ? AND expires_at <= ?", userID, db.DropExpired, now).
		Update("status", db.DropExpired)
	return res.RowsAffected, res.Error
}

// MarkDelivered moves a pending drop to delivered. Reports whether the row changed.
func (r *DropRepository) MarkDelivered(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.WeeklyDrop{}).
		Where("id = ? AND status = ?", id, db.DropPending).
		Updates(map[string]any{"status": db.DropDelivered, "delivered_at": now})
	return res.RowsAffected > 0, res.Error
}

// MarkOpened moves a pending or delivered, unexpired drop to opened.
// Reports whether the row changed.
func (r *DropRepository) MarkOpened(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.WeeklyDrop{}).
		Where("id = ? AND status IN ? AND expires_at > ?", id, []db.DropStatus{db.DropPending, db.DropDelivered}, now).
		Updates(map[string]any{"status": db.DropOpened, "opened_at": now})
	return res.RowsAffected > 0, res.Error
}
