package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
)

// InteractionRepository writes swipe and block edges. Production traffic
// for these lives in the swipe/safety services; this writer backs seeding
// and tests.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new repository bound to the given DB connection.
func NewInteractionRepository(database *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// RecordSwipe inserts or updates the swiper -> swiped edge.
//
// Behavior:
//   - If (swiper_id, swiped_id) exists the row is updated with the new is_like.
//   - Otherwise a new row is inserted.
//
// Example:
//
//	repo.RecordSwipe(ctx, 1, 2, true) // user 1 liked user 2
func (r *InteractionRepository) RecordSwipe(ctx context.Context, swiperID, swipedID uint64, isLike bool) error {
	swipe := db.Swipe{
		SwiperID: swiperID,
		SwipedID: swipedID,
		IsLike:   isLike,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "swiper_id"}, {Name: "swiped_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_like"}),
		}).
		Create(&swipe).Error
}

// RecordBlock stores blocker -> blocked. Repeating a block is a no-op.
func (r *InteractionRepository) RecordBlock(ctx context.Context, blockerID, blockedID uint64) error {
	block := db.Block{BlockerID: blockerID, BlockedID: blockedID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&block).Error
}
