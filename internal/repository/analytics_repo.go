package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
)

// AnalyticsRepository appends to and counts the agent analytics event log.
type AnalyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository creates a new repository bound to the given DB connection.
func NewAnalyticsRepository(database *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: database}
}

// RecordEvent appends one event row.
func (r *AnalyticsRepository) RecordEvent(ctx context.Context, ev *db.AgentAnalyticsEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

// CountEventsSince counts a user's events of the given types at or after since.
//
// Example:
//
//	repo.CountEventsSince(ctx, 42, []string{db.EventAgentSearch, db.EventAgentRefine}, midnight)
func (r *AnalyticsRepository) CountEventsSince(ctx context.Context, userID uint64, types []string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.AgentAnalyticsEvent{}).
		Where("user_id = ? AND event_type IN ? AND created_at >= ?", userID, types, since).
		Count(&count).Error
	return count, err
}
