package matching_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/clock"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db/dbtest"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/matching"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/ranking"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func userIDs(cs []scoring.ScoredCandidate) []uint64 {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		out[i] = c.UserID()
	}
	return out
}

type stubSource struct {
	pool []db.Profile
	err  error
	got  repository.CandidateQuery
}

func (s *stubSource) FindCandidates(_ context.Context, q repository.CandidateQuery) ([]db.Profile, error) {
	s.got = q
	return s.pool, s.err
}

func TestMatch_ReciprocalGateAndPrefilter(t *testing.T) {
	gdb := dbtest.Open(t)
	viewer := dbtest.UserProfile(t, gdb, 1, "male", func(p *db.Profile) {
		p.InterestedIn = []string{"women"}
	})
	// wants men: kept
	dbtest.UserProfile(t, gdb, 2, "female", func(p *db.Profile) { p.InterestedIn = []string{"men"} })
	// wants women only: dropped by the reciprocal check
	dbtest.UserProfile(t, gdb, 3, "female", func(p *db.Profile) { p.InterestedIn = []string{"women"} })
	// male: dropped by the prefilter
	dbtest.UserProfile(t, gdb, 4, "male", nil)
	// unknown gender: passes both
	dbtest.UserProfile(t, gdb, 5, "", nil)

	m := matching.NewMatcher(repository.NewProfileRepository(gdb), scoring.NewEngine(), 50, clock.NewFixed(now))
	scored, err := m.Match(context.Background(), &viewer)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 5}, userIDs(scored))
	for _, s := range scored {
		assert.Equal(t, 1.0, s.Breakdown.PreferenceStrength)
	}
}

func TestMatch_NoPrefilterWhenOpenToEveryone(t *testing.T) {
	src := &stubSource{}
	m := matching.NewMatcher(src, scoring.NewEngine(), 0, clock.NewFixed(now))

	_, err := m.Match(context.Background(), &db.Profile{UserID: 9, Gender: "female", InterestedIn: []string{"everyone"}})
	require.NoError(t, err)
	assert.Nil(t, src.got.Genders)
	assert.Equal(t, matching.DefaultPoolSize, src.got.Limit)
	assert.Equal(t, uint64(9), src.got.ViewerID)
}

func TestMatch_StorageFailurePropagates(t *testing.T) {
	boom := errors.New("db down")
	m := matching.NewMatcher(&stubSource{err: boom}, scoring.NewEngine(), 10, clock.NewFixed(now))

	got, err := m.Match(context.Background(), &db.Profile{UserID: 1, Gender: "male"})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestMatch_SwipeExcludesFromNextMatch(t *testing.T) {
	gdb := dbtest.Open(t)
	viewer := dbtest.UserProfile(t, gdb, 1, "female", nil)
	for id := uint64(2); id <= 4; id++ {
		dbtest.UserProfile(t, gdb, id, "male", nil)
	}
	m := matching.NewMatcher(repository.NewProfileRepository(gdb), scoring.NewEngine(), 50, clock.NewFixed(now))
	ctx := context.Background()

	first, err := m.Match(ctx, &viewer)
	require.NoError(t, err)
	top := ranking.Rank(first)[0].UserID()

	require.NoError(t, repository.NewInteractionRepository(gdb).RecordSwipe(ctx, 1, top, true))

	second, err := m.Match(ctx, &viewer)
	require.NoError(t, err)
	assert.NotContains(t, userIDs(second), top)
	assert.Len(t, second, len(first)-1)
}

func TestMatchAt_PinsTimeDependentScores(t *testing.T) {
	gdb := dbtest.Open(t)
	viewer := dbtest.UserProfile(t, gdb, 1, "male", nil)
	idle := now.Add(-10 * 24 * time.Hour)
	dbtest.UserProfile(t, gdb, 2, "female", func(p *db.Profile) { p.LastActive = &idle })

	clk := clock.NewFixed(now)
	m := matching.NewMatcher(repository.NewProfileRepository(gdb), scoring.NewEngine(), 50, clk)
	before, err := m.Match(context.Background(), &viewer)
	require.NoError(t, err)

	clk.Advance(6 * time.Hour)
	later, err := m.Match(context.Background(), &viewer)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Less(t, later[0].Total, before[0].Total, "recency decays as the clock moves")

	pinned, err := m.MatchAt(context.Background(), &viewer, now)
	require.NoError(t, err)
	assert.Equal(t, before[0].Total, pinned[0].Total)
}
