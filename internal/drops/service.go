package drops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/app"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/clock"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	svcErr "github.com/IdrisKulubi/strath-mobile-sub004/internal/errors"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/matching"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/metrics"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/notify"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/ranking"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
)

const (
	// HistoryLimit caps GetDropHistory.
	HistoryLimit = 20
	// PreviewSize is how many matched users each history entry previews.
	PreviewSize = 3

	jobLockKey      = "lock:weekly-drop"
	deliveryMessage = "Your weekly drop is here. Come see who we picked for you!"
)

// ErrJobInProgress means another process holds the weekly job lock.
var ErrJobInProgress = errors.New("weekly drop job already running")

// CandidateMatcher produces the scored, reciprocal pool for a user.
type CandidateMatcher interface {
	Match(ctx context.Context, viewer *db.Profile) ([]scoring.ScoredCandidate, error)
}

// Locker is a best-effort distributed lock; *cache.RedisCache satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

type Options struct {
	Size          int
	TTL           time.Duration
	BatchSize     int
	LockTTL       time.Duration
	NotifyTimeout time.Duration
}

// JobResult summarises one weekly job run.
type JobResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Preview is the lightweight card shown for a past drop.
type Preview struct {
	UserID       uint64 `json:"user_id"`
	Name         string `json:"name"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
}

// HistoryEntry is an expired drop plus previews of its first matches.
type HistoryEntry struct {
	Drop     db.WeeklyDrop
	Previews []Preview
}

type Service struct {
	drops    *repository.DropRepository
	profiles *repository.ProfileRepository
	matcher  CandidateMatcher
	notifier notify.Notifier
	locker   Locker
	clock    clock.Clock
	opts     Options
	log      *slog.Logger
}

// NewService wires the drop service. locker may be nil, in which case
// only the unique (user_id, drop_number) index guards concurrent runs.
func NewService(
	drops *repository.DropRepository,
	profiles *repository.ProfileRepository,
	matcher CandidateMatcher,
	notifier notify.Notifier,
	locker Locker,
	clk clock.Clock,
	opts Options,
) *Service {
	if opts.Size <= 0 {
		opts.Size = 5
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	return &Service{
		drops:    drops,
		profiles: profiles,
		matcher:  matcher,
		notifier: notifier,
		locker:   locker,
		clock:    clk,
		opts:     opts,
		log:      logger.Named("drops"),
	}
}

// RunWeeklyDropJob creates this week's drop for every eligible user.
//
// Behavior:
//   - Overdue drops are expired first.
//   - Users holding a non-expired drop are skipped, so re-runs are no-ops.
//   - Each drop is the top Size ranked candidates, numbered latest+1,
//     created pending and moved to delivered, then a push is dispatched.
//   - A failure for one user is counted and logged; the batch continues.
//   - Only failing to page users or losing ctx ends the run early.
//
// Example:
//
//	res, err := svc.RunWeeklyDropJob(ctx)
//	// res == JobResult{Processed: 120, Created: 97, Skipped: 21, Failed: 2}
func (s *Service) RunWeeklyDropJob(ctx context.Context) (JobResult, error) {
	var res JobResult
	now := s.clock.Now()

	if s.locker != nil {
		owner := uuid.NewString()
		ok, err := s.locker.AcquireLock(ctx, jobLockKey, owner, s.opts.LockTTL)
		if err != nil {
			return res, fmt.Errorf("acquire weekly drop lock: %w", err)
		}
		if !ok {
			return res, ErrJobInProgress
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), jobLockKey, owner); err != nil {
				s.log.Warn("release weekly drop lock failed", "err", err)
			}
		}()
	}

	if _, err := s.RunExpiryCleanup(ctx); err != nil {
		return res, err
	}

	s.log.Info("weekly drop job started", "batch_size", s.opts.BatchSize, "drop_size", s.opts.Size)
	var after uint64
	for {
		ids, err := s.profiles.ListEligibleUserIDs(ctx, after, s.opts.BatchSize)
		if err != nil {
			return res, err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Processed++
			created, err := s.createDrop(ctx, id, now)
			switch {
			case err != nil:
				res.Failed++
				metrics.DropJobUsers.WithLabelValues("failed").Inc()
				s.log.Error("weekly drop failed for user", "user_id", id, "err", err)
			case created:
				res.Created++
				metrics.DropJobUsers.WithLabelValues("created").Inc()
			default:
				res.Skipped++
				metrics.DropJobUsers.WithLabelValues("skipped").Inc()
			}
		}
		if len(ids) < s.opts.BatchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	s.log.Info("weekly drop job finished",
		"processed", res.Processed, "created", res.Created, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// createDrop reports created=false for a user that needs no drop.
func (s *Service) createDrop(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	active, err := s.drops.HasActive(ctx, userID, now)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}

	viewer, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	scored, err := s.matcher.Match(ctx, viewer)
	if err != nil {
		return false, err
	}
	top := ranking.Rank(scored)
	if len(top) == 0 {
		return false, nil
	}
	if len(top) > s.opts.Size {
		top = top[:s.opts.Size]
	}

	latest, err := s.drops.LatestNumber(ctx, userID)
	if err != nil {
		return false, err
	}

	drop := &db.WeeklyDrop{
		ID:         uuid.NewString(),
		UserID:     userID,
		DropNumber: latest + 1,
		Status:     db.DropPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.opts.TTL),
	}
	for _, c := range top {
		drop.MatchData = append(drop.MatchData, snapshot(c))
		drop.MatchedUserIDs = append(drop.MatchedUserIDs, c.UserID())
	}

	if err := s.drops.Create(ctx, drop); err != nil {
		if errors.Is(err, repository.ErrDuplicateDrop) {
			return false, nil // a concurrent run got there first
		}
		return false, err
	}
	if _, err := s.drops.MarkDelivered(ctx, drop.ID, now); err != nil {
		return false, err
	}

	notify.Dispatch(ctx, s.notifier, s.opts.NotifyTimeout, userID, deliveryMessage, map[string]string{
		"type":        "weekly_drop",
		"drop_id":     drop.ID,
		"drop_number": fmt.Sprint(drop.DropNumber),
	})
	return true, nil
}

// RunExpiryCleanup expires every overdue drop and returns how many rows
// changed. A second call straight after returns 0.
func (s *Service) RunExpiryCleanup(ctx context.Context) (int64, error) {
	n, err := s.drops.ExpireOverdue(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("drop expiry cleanup failed", "err", err)
		return 0, fmt.Errorf("expire overdue drops: %w", err)
	}
	if n > 0 {
		metrics.DropsExpired.Add(float64(n))
		s.log.Info("expired overdue drops", "rows", n)
	}
	return n, nil
}

// GetCurrentDrop returns the viewer's live drop, or nil.
func (s *Service) GetCurrentDrop(ctx context.Context, userID uint64) (*db.WeeklyDrop, error) {
	now := s.clock.Now()
	if err := s.expireFor(ctx, userID, now); err != nil {
		return nil, err
	}
	drop, err := s.drops.Current(ctx, userID, now)
	if err != nil || drop == nil {
		return nil, err
	}
	out := ApplyExpiryPolicy(*drop, now)
	if out.Status == db.DropExpired {
		return nil, nil
	}
	return &out, nil
}

// GetDropHistory returns expired drops newest first, at most HistoryLimit,
// with previews of the first PreviewSize matches of each. All previews are
// resolved by a single profile lookup.
func (s *Service) GetDropHistory(ctx context.Context, userID uint64) ([]HistoryEntry, error) {
	now := s.clock.Now()
	if err := s.expireFor(ctx, userID, now); err != nil {
		return nil, err
	}
	drops, err := s.drops.History(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	seen := map[uint64]struct{}{}
	for _, d := range drops {
		for _, id := range previewIDs(d) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	profiles, err := s.profiles.GetProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(drops))
	for _, d := range drops {
		entry := HistoryEntry{Drop: ApplyExpiryPolicy(d, now)}
		for _, id := range previewIDs(d) {
			entry.Previews = append(entry.Previews, preview(id, d, profiles))
		}
		out = append(out, entry)
	}
	return out, nil
}

// OpenDrop marks one of the viewer's drops as opened.
//
// Behavior:
//   - unknown or foreign drop: errors.ErrNotFound
//   - expired drop: errors.ErrExpired
//   - already opened: returned unchanged
func (s *Service) OpenDrop(ctx context.Context, userID uint64, dropID string) (*db.WeeklyDrop, error) {
	now := s.clock.Now()
	drop, err := s.drops.Get(ctx, userID, dropID)
	if err != nil {
		return nil, err
	}
	if IsOverdue(*drop, now) {
		if err := s.expireFor(ctx, userID, now); err != nil {
			return nil, err
		}
	}
	if ApplyExpiryPolicy(*drop, now).Status == db.DropExpired {
		return nil, fmt.Errorf("drop %s: %w", dropID, svcErr.ErrExpired)
	}
	if drop.Status == db.DropOpened {
		return drop, nil
	}

	changed, err := s.drops.MarkOpened(ctx, drop.ID, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// lost a race with expiry or another open; report what is stored
		return s.reload(ctx, userID, dropID, now)
	}
	drop.Status = db.DropOpened
	drop.OpenedAt = &now
	return drop, nil
}

func (s *Service) reload(ctx context.Context, userID uint64, dropID string, now time.Time) (*db.WeeklyDrop, error) {
	drop, err := s.drops.Get(ctx, userID, dropID)
	if err != nil {
		return nil, err
	}
	if ApplyExpiryPolicy(*drop, now).Status == db.DropExpired {
		return nil, fmt.Errorf("drop %s: %w", dropID, svcErr.ErrExpired)
	}
	return drop, nil
}

func (s *Service) expireFor(ctx context.Context, userID uint64, now time.Time) error {
	n, err := s.drops.ExpireOverdueForUser(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("expire drops for %d: %w", userID, err)
	}
	if n > 0 {
		metrics.DropsExpired.Add(float64(n))
	}
	return nil
}

func snapshot(c scoring.ScoredCandidate) db.DropMatch {
	p := c.Profile
	return db.DropMatch{
		UserID:          p.UserID,
		Name:            p.Name,
		Age:             p.Age,
		ProfilePhoto:    p.ProfilePhoto,
		University:      p.University,
		Course:          p.Course,
		Score:           c.Total,
		SharedInterests: c.Breakdown.SharedInterestNames,
		Reasons:         c.Reasons,
	}
}

func previewIDs(d db.WeeklyDrop) []uint64 {
	ids := []uint64(d.MatchedUserIDs)
	if len(ids) > PreviewSize {
		ids = ids[:PreviewSize]
	}
	return ids
}

// preview prefers the live profile and falls back to the frozen snapshot
// for users who have since left.
func preview(id uint64, d db.WeeklyDrop, live map[uint64]db.Profile) Preview {
	if p, ok := live[id]; ok {
		return Preview{UserID: id, Name: p.Name, ProfilePhoto: p.ProfilePhoto}
	}
	for _, m := range d.MatchData {
		if m.UserID == id {
			return Preview{UserID: id, Name: m.Name, ProfilePhoto: m.ProfilePhoto}
		}
	}
	return Preview{UserID: id}
}

// NewFromApp builds the drop service from shared application dependencies.
func NewFromApp(appCtx *app.AppContext) *Service {
	cfg := appCtx.Config
	profiles := repository.NewProfileRepository(appCtx.DB)
	matcher := matching.NewMatcher(profiles, scoring.NewEngine(), cfg.Matching.PoolSize, appCtx.Clock)

	var locker Locker
	if appCtx.RedisCache != nil {
		locker = appCtx.RedisCache
	}
	return NewService(repository.NewDropRepository(appCtx.DB), profiles, matcher, appCtx.Notifier, locker, appCtx.Clock, Options{
		Size:          cfg.Drops.Size,
		TTL:           cfg.Drops.TTL,
		BatchSize:     cfg.Drops.BatchSize,
		LockTTL:       cfg.Drops.LockTTL,
		NotifyTimeout: cfg.Notify.Timeout,
	})
}
