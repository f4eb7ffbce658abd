package drops_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/cache"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/clock"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db/dbtest"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/drops"
	svcErr "github.com/IdrisKulubi/strath-mobile-sub004/internal/errors"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/matching"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type sent struct {
	userID uint64
	data   map[string]string
}

type chanNotifier chan sent

func (c chanNotifier) Notify(_ context.Context, userID uint64, _ string, data map[string]string) error {
	c <- sent{userID: userID, data: data}
	return nil
}

// failFor wraps a matcher and fails for selected viewers.
type failFor struct {
	inner drops.CandidateMatcher
	ids   map[uint64]bool
}

func (f failFor) Match(ctx context.Context, viewer *db.Profile) ([]scoring.ScoredCandidate, error) {
	if f.ids[viewer.UserID] {
		return nil, errors.New("scoring exploded")
	}
	return f.inner.Match(ctx, viewer)
}

type fixture struct {
	gdb      *gorm.DB
	repo     *repository.DropRepository
	svc      *drops.Service
	clock    *clock.Fixed
	notified chanNotifier
	cache    *cache.RedisCache
}

func newFixture(t *testing.T, wrap func(drops.CandidateMatcher) drops.CandidateMatcher) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	f := &fixture{
		gdb:      gdb,
		repo:     repository.NewDropRepository(gdb),
		clock:    clock.NewFixed(t0),
		notified: make(chanNotifier, 32),
		cache:    cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ""),
	}
	profiles := repository.NewProfileRepository(gdb)
	var m drops.CandidateMatcher = matching.NewMatcher(profiles, scoring.NewEngine(), 50, f.clock)
	if wrap != nil {
		m = wrap(m)
	}
	f.svc = drops.NewService(f.repo, profiles, m, f.notified, f.cache, f.clock, drops.Options{
		Size:      5,
		TTL:       7 * 24 * time.Hour,
		BatchSize: 2,
	})
	return f
}

// seedCouples creates two men (1, 2) and two women (3, 4).
func (f *fixture) seedCouples(t *testing.T) {
	t.Helper()
	dbtest.UserProfile(t, f.gdb, 1, "male", nil)
	dbtest.UserProfile(t, f.gdb, 2, "male", nil)
	dbtest.UserProfile(t, f.gdb, 3, "female", nil)
	dbtest.UserProfile(t, f.gdb, 4, "female", nil)
}

func (f *fixture) insert(t *testing.T, userID uint64, number int, status db.DropStatus, expiresAt time.Time) *db.WeeklyDrop {
	t.Helper()
	d := &db.WeeklyDrop{
		ID:             uuid.NewString(),
		UserID:         userID,
		DropNumber:     number,
		Status:         status,
		MatchData:      []db.DropMatch{{UserID: 3, Name: "Snapshot Three"}, {UserID: 4, Name: "Snapshot Four"}},
		MatchedUserIDs: []uint64{3, 4},
		CreatedAt:      expiresAt.Add(-7 * 24 * time.Hour),
		ExpiresAt:      expiresAt,
	}
	require.NoError(t, f.repo.Create(context.Background(), d))
	return d
}

func (f *fixture) waitNotified(t *testing.T, n int) []sent {
	t.Helper()
	var out []sent
	for len(out) < n {
		select {
		case s := <-f.notified:
			out = append(out, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d notifications, want %d", len(out), n)
		}
	}
	return out
}

func TestApplyExpiryPolicy(t *testing.T) {
	d := db.WeeklyDrop{Status: db.DropDelivered, ExpiresAt: t0}

	assert.Equal(t, db.DropDelivered, drops.ApplyExpiryPolicy(d, t0.Add(-time.Second)).Status)

	once := drops.ApplyExpiryPolicy(d, t0)
	assert.Equal(t, db.DropExpired, once.Status)
	assert.Equal(t, once, drops.ApplyExpiryPolicy(once, t0.Add(time.Hour)))
	assert.Equal(t, db.DropDelivered, d.Status, "input untouched")
}

func TestRunWeeklyDropJob_CreatesDeliversAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCouples(t)
	ctx := context.Background()

	res, err := f.svc.RunWeeklyDropJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, drops.JobResult{Processed: 4, Created: 4}, res)

	current, err := f.svc.GetCurrentDrop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, db.DropDelivered, current.Status)
	assert.Equal(t, 1, current.DropNumber)
	assert.Equal(t, []uint64{3, 4}, []uint64(current.MatchedUserIDs))
	assert.Equal(t, t0.Add(7*24*time.Hour), current.ExpiresAt.UTC())
	require.NotNil(t, current.DeliveredAt)

	got := f.waitNotified(t, 4)
	for _, s := range got {
		assert.Equal(t, "weekly_drop", s.data["type"])
		assert.NotEmpty(t, s.data["drop_id"])
	}
}

func TestRunWeeklyDropJob_RerunIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCouples(t)
	ctx := context.Background()

	_, err := f.svc.RunWeeklyDropJob(ctx)
	require.NoError(t, err)
	res, err := f.svc.RunWeeklyDropJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, drops.JobResult{Processed: 4, Skipped: 4}, res)

	var count int64
	require.NoError(t, f.gdb.Model(&db.WeeklyDrop{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}

func TestRunWeeklyDropJob_NextWeekNumbersIncrement(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCouples(t)
	ctx := context.Background()

	_, err := f.svc.RunWeeklyDropJob(ctx)
	require.NoError(t, err)

	f.clock.Advance(7 * 24 * time.Hour)
	res, err := f.svc.RunWeeklyDropJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)

	current, err := f.svc.GetCurrentDrop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 2, current.DropNumber)

	history, err := f.svc.GetDropHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Drop.DropNumber)
	assert.Equal(t, db.DropExpired, history[0].Drop.Status)
}

func TestRunWeeklyDropJob_PerUserFailureIsIsolated(t *testing.T) {
	f := newFixture(t, func(m drops.CandidateMatcher) drops.CandidateMatcher {
		return failFor{inner: m, ids: map[uint64]bool{2: true}}
	})
	f.seedCouples(t)

	res, err := f.svc.RunWeeklyDropJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, drops.JobResult{Processed: 4, Created: 3, Failed: 1}, res)

	current, err := f.svc.GetCurrentDrop(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestRunWeeklyDropJob_NoCandidatesSkips(t *testing.T) {
	f := newFixture(t, nil)
	dbtest.UserProfile(t, f.gdb, 1, "male", nil)
	dbtest.UserProfile(t, f.gdb, 2, "male", nil)

	res, err := f.svc.RunWeeklyDropJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, drops.JobResult{Processed: 2, Skipped: 2}, res)
}

func TestRunWeeklyDropJob_LockHeldElsewhere(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCouples(t)
	ctx := context.Background()

	ok, err := f.cache.AcquireLock(ctx, "lock:weekly-drop", "other-replica", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.RunWeeklyDropJob(ctx)
	assert.ErrorIs(t, err, drops.ErrJobInProgress)

	require.NoError(t, f.cache.ReleaseLock(ctx, "lock:weekly-drop", "other-replica"))
	res, err := f.svc.RunWeeklyDropJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
}

func TestRunExpiryCleanup_SecondCallIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.insert(t, 1, 1, db.DropDelivered, t0.Add(-time.Hour))
	f.insert(t, 2, 1, db.DropOpened, t0.Add(-time.Minute))
	f.insert(t, 3, 1, db.DropDelivered, t0.Add(time.Hour))

	n, err := f.svc.RunExpiryCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.svc.RunExpiryCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestGetDropHistory_LazyExpiryIsStableAcrossCalls(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCouples(t)
	d := f.insert(t, 1, 1, db.DropDelivered, t0.Add(-time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		history, err := f.svc.GetDropHistory(ctx, 1)
		require.NoError(t, err)
		require.Len(t, history, 1, "call %d", i+1)
		assert.Equal(t, d.ID, history[0].Drop.ID)
		assert.Equal(t, db.DropExpired, history[0].Drop.Status)
	}

	current, err := f.svc.GetCurrentDrop(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, current, "an overdue drop is never current")
}

func TestGetDropHistory_PreviewsAndCap(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCouples(t)
	require.NoError(t, f.gdb.Model(&db.Profile{}).Where("user_id = ?", 3).Update("profile_photo", "https://cdn.example.com/3.jpg").Error)
	for n := 1; n <= 22; n++ {
		f.insert(t, 1, n, db.DropExpired, t0.Add(-time.Duration(30-n)*24*time.Hour))
	}
	// user 4 has left; the snapshot still names them
	require.NoError(t, f.gdb.Where("user_id = ?", 4).Delete(&db.Profile{}).Error)

	history, err := f.svc.GetDropHistory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, drops.HistoryLimit)
	assert.Equal(t, 22, history[0].Drop.DropNumber)
	assert.Equal(t, 3, history[len(history)-1].Drop.DropNumber)

	assert.Equal(t, []drops.Preview{
		{UserID: 3, Name: "User 3", ProfilePhoto: "https://cdn.example.com/3.jpg"},
		{UserID: 4, Name: "Snapshot Four"},
	}, history[0].Previews)
}

func TestOpenDrop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	live := f.insert(t, 1, 2, db.DropDelivered, t0.Add(24*time.Hour))
	stale := f.insert(t, 1, 1, db.DropDelivered, t0.Add(-time.Hour))

	opened, err := f.svc.OpenDrop(ctx, 1, live.ID)
	require.NoError(t, err)
	assert.Equal(t, db.DropOpened, opened.Status)
	require.NotNil(t, opened.OpenedAt)

	again, err := f.svc.OpenDrop(ctx, 1, live.ID)
	require.NoError(t, err)
	assert.Equal(t, db.DropOpened, again.Status)

	_, err = f.svc.OpenDrop(ctx, 2, live.ID)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = f.svc.OpenDrop(ctx, 1, stale.ID)
	assert.ErrorIs(t, err, svcErr.ErrExpired)
	stored, err := f.repo.Get(ctx, 1, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, db.DropExpired, stored.Status)
}

func TestNextWeekly(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"earlier same day", monday.Add(8 * time.Hour), monday.Add(9 * time.Hour)},
		{"exactly at slot", monday.Add(9 * time.Hour), monday.AddDate(0, 0, 7).Add(9 * time.Hour)},
		{"later same day", monday.Add(12 * time.Hour), monday.AddDate(0, 0, 7).Add(9 * time.Hour)},
		{"sunday night", monday.Add(-time.Hour), monday.Add(9 * time.Hour)},
		{"wednesday", monday.AddDate(0, 0, 2), monday.AddDate(0, 0, 7).Add(9 * time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, drops.NextWeekly(tc.now, time.Monday, 9))
		})
	}
}

type countingJobs struct {
	mu       sync.Mutex
	cleanups int
}

func (c *countingJobs) RunWeeklyDropJob(context.Context) (drops.JobResult, error) {
	return drops.JobResult{}, nil
}

func (c *countingJobs) RunExpiryCleanup(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups++
	return 0, nil
}

func (c *countingJobs) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanups
}

func TestScheduler_RunsCleanupAndStops(t *testing.T) {
	jobs := &countingJobs{}
	s := drops.NewScheduler(jobs, drops.ScheduleConfig{
		Weekday:         time.Monday,
		Hour:            9,
		CleanupInterval: 5 * time.Millisecond,
	}, clock.NewFixed(t0))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return jobs.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	s.Wait()
}
