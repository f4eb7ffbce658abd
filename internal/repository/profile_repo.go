package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	svcErr "github.com/IdrisKulubi/strath-mobile-sub004/internal/errors"
)

// ProfileRepository provides read access to discoverable profiles.
// It owns the candidate-pool query and its exclusion rules.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// CandidateQuery bounds one candidate-pool fetch.
type CandidateQuery struct {
	ViewerID uint64
	// Genders, when set, prefilters to these genders plus rows whose gender
	// is not one of KnownGenders (blank or free-form values stay in).
	Genders      []string
	KnownGenders []string
	Limit        int
}

// discoverable restricts a "profiles p" query to profiles that may be shown
// to anyone: live account, visible, complete, not paused.
func discoverable(q *gorm.DB) *gorm.DB {
	return q.
		Joins("JOIN users u ON u.id = p.user_id").
		Where("u.deleted_at IS NULL AND u.active = ?", true).
		Where("p.is_visible = ? AND p.profile_completed = ? AND p.discovery_paused = ?", true, true, false)
}

// FindCandidates returns the raw candidate pool for a viewer.
//
// Behavior:
//   - Excludes the viewer, soft-deleted/inactive users and profiles that
//     are invisible, incomplete or paused.
//   - Excludes anyone the viewer blocked or who blocked the viewer.
//   - Excludes anyone the viewer swiped on or who swiped on the viewer.
//   - Optional gender prefilter is permissive: unknown genders pass.
//   - Ordered by user_id ASC and capped at Limit, so repeated calls with
//     the same swipe state return the same pool.
//
// Example:
//
//	repo.FindCandidates(ctx, CandidateQuery{ViewerID: 42, Limit: 200})
func (r *ProfileRepository) FindCandidates(ctx context.Context, q CandidateQuery) ([]db.Profile, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	query := discoverable(r.db.WithContext(ctx).Table("profiles p").Select("p.*")).
		Where("p.user_id <> ?", q.ViewerID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM blocks b
				WHERE (b.blocker_id = ? AND b.blocked_id = p.user_id)
				   OR (b.blocker_id = p.user_id AND b.blocked_id = ?)
			)`, q.ViewerID, q.ViewerID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s
				WHERE (s.swiper_id = ? AND s.swiped_id = p.user_id)
				   OR (s.swiper_id = p.user_id AND s.swiped_id = ?)
			)`, q.ViewerID, q.ViewerID)

	if len(q.Genders) > 0 && len(q.KnownGenders) > 0 {
		query = query.Where(
			"(LOWER(p.gender) IN ? OR p.gender IS NULL OR LOWER(p.gender) NOT IN ?)",
			q.Genders, q.KnownGenders,
		)
	}

	var profiles []db.Profile
	if err := query.Order("p.user_id ASC").Limit(q.Limit).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("find candidates for %d: %w", q.ViewerID, err)
	}
	return profiles, nil
}

// GetProfile returns the profile of a single user.
// A missing profile is reported as errors.ErrNotFound.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %d: %w", userID, svcErr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %d: %w", userID, err)
	}
	return &p, nil
}

// GetProfilesByIDs loads many profiles in one query, keyed by user id.
// Unknown ids are simply absent from the map.
func (r *ProfileRepository) GetProfilesByIDs(ctx context.Context, ids []uint64) (map[uint64]db.Profile, error) {
	out := make(map[uint64]db.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var profiles []db.Profile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("get profiles by ids: %w", err)
	}
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out, nil
}

// ListEligibleUserIDs pages through discoverable users by id for batch jobs.
//
// Example:
//
//	ids, _ := repo.ListEligibleUserIDs(ctx, 0, 100)   // first page
//	ids, _ = repo.ListEligibleUserIDs(ctx, ids[len(ids)-1], 100)
func (r *ProfileRepository) ListEligibleUserIDs(ctx context.Context, afterID uint64, limit int) ([]uint64, error) {
	var ids []uint64
	err := discoverable(r.db.WithContext(ctx).Table("profiles p")).
		Where("p.user_id > ?", afterID).
		Order("p.user_id ASC").
		Limit(limit).
		Pluck("p.user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	return ids, nil
}
