package scoring_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func viewer() *db.Profile {
	return &db.Profile{
		UserID:     1,
		Name:       "Brian",
		Gender:     "male",
		University: "Strathmore University",
		Course:     "Computer Science",
		Interests:  []string{"music", "Hiking"},
	}
}

func candidate(id uint64) *db.Profile {
	return &db.Profile{
		UserID:       id,
		Name:         "Amina",
		Gender:       "female",
		Bio:          "Weekend hikes and live gigs",
		ProfilePhoto: "https://cdn.example.com/amina.jpg",
		University:   "strathmore university ",
		Course:       "computer science",
		Interests:    []string{"Music", "hiking", "art"},
		LastActive:   ago(time.Hour),
	}
}

func TestInterestComponent(t *testing.T) {
	assert.Equal(t, 0.0, scoring.InterestComponent(0, 4))
	assert.InDelta(t, 0.4, scoring.InterestComponent(2, 4), 1e-9)
	assert.InDelta(t, 0.8, scoring.InterestComponent(4, 4), 1e-9)
	assert.InDelta(t, 0.9, scoring.InterestComponent(5, 4), 1e-9)
	assert.InDelta(t, 0.95, scoring.InterestComponent(6, 4), 1e-9)

	// diminishing, never unbounded
	prev := 0.0
	for n := 1; n <= 30; n++ {
		v := scoring.InterestComponent(n, 4)
		assert.Greater(t, v, prev)
		assert.LessOrEqual(t, v, 1.0)
		prev = v
	}
}

func TestSharedInterests_CaseNormalized(t *testing.T) {
	got := scoring.SharedInterests(
		[]string{"Music", "Hiking ", " chess"},
		[]string{"music", "CHESS", "art", "Music"},
	)
	assert.Equal(t, []string{"chess", "music"}, got)
	assert.Empty(t, scoring.SharedInterests(nil, []string{"music"}))
}

func TestRecencyComponent(t *testing.T) {
	w, hl := scoring.DefaultActiveWindow, scoring.DefaultHalfLife

	assert.Equal(t, 0.05, scoring.RecencyComponent(nil, now, w, hl))
	assert.Equal(t, 1.0, scoring.RecencyComponent(ago(time.Hour), now, w, hl))
	assert.Equal(t, 1.0, scoring.RecencyComponent(ago(w), now, w, hl))
	assert.InDelta(t, 0.5, scoring.RecencyComponent(ago(w+hl), now, w, hl), 1e-9)
	assert.Equal(t, 0.05, scoring.RecencyComponent(ago(365*24*time.Hour), now, w, hl))
}

func TestCompleteness(t *testing.T) {
	assert.Equal(t, 1.0, scoring.Completeness(candidate(2)))
	assert.Equal(t, 0.0, scoring.Completeness(&db.Profile{}))
	assert.Equal(t, 0.5, scoring.Completeness(&db.Profile{Bio: "hi", Interests: []string{"art"}}))
}

func TestScore_WeightedTotal(t *testing.T) {
	res := scoring.NewEngine().Score(viewer(), candidate(2), now)

	// interests 0.4×0.4 + campus 0.2 + course 0.1 + recency 0.2 + completeness 0.1
	assert.InDelta(t, 76.0, res.Total, 1e-9)
	assert.Equal(t, 2, res.Breakdown.SharedInterests)
	assert.Equal(t, []string{"hiking", "music"}, res.Breakdown.SharedInterestNames)
	assert.True(t, res.Breakdown.SameCampus)
	assert.True(t, res.Breakdown.SameCourse)
	assert.Equal(t, 1.0, res.Breakdown.PreferenceStrength)
	assert.Contains(t, res.Reasons, "2 shared interests")
	assert.Contains(t, res.Reasons, "Also at strathmore university")
	assert.Contains(t, res.Reasons, "Active recently")
}

func TestScore_CourseNeedsCampus(t *testing.T) {
	c := candidate(2)
	c.University = "University of Nairobi"

	res := scoring.NewEngine().Score(viewer(), c, now)
	assert.False(t, res.Breakdown.SameCampus)
	assert.False(t, res.Breakdown.SameCourse)
	assert.InDelta(t, 46.0, res.Total, 1e-9)
}

func TestScore_NonReciprocalIsGatedToZero(t *testing.T) {
	c := candidate(2)
	c.InterestedIn = []string{"women"}

	res := scoring.NewEngine().Score(viewer(), c, now)
	assert.Equal(t, 0.0, res.Breakdown.PreferenceStrength)
	assert.Equal(t, 0.0, res.Total)
}

func TestScore_IsPure(t *testing.T) {
	e := scoring.NewEngine()
	v, c := viewer(), candidate(2)

	first := e.Score(v, c, now)
	second := e.Score(v, c, now)
	assert.Equal(t, first, second)
}

func TestScoreAll_KeepsInputOrder(t *testing.T) {
	e := scoring.NewEngine()
	v := viewer()

	pool := make([]db.Profile, 0, 50)
	for i := 0; i < 50; i++ {
		c := candidate(uint64(i + 2))
		if i%3 == 0 {
			c.Interests = []string{"rugby"}
		}
		if i%4 == 0 {
			c.LastActive = ago(time.Duration(i) * 24 * time.Hour)
		}
		pool = append(pool, *c)
	}

	got, err := e.ScoreAll(context.Background(), v, pool, now)
	require.NoError(t, err)
	require.Len(t, got, len(pool))
	for i := range pool {
		want := e.Score(v, &pool[i], now)
		assert.Equal(t, pool[i].UserID, got[i].UserID())
		assert.Equal(t, want.Total, got[i].Total)
	}
}

func TestScoreAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scoring.NewEngine().ScoreAll(ctx, viewer(), []db.Profile{*candidate(2), *candidate(3)}, now)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryRelevance(t *testing.T) {
	c := candidate(2)
	assert.Equal(t, 2, scoring.QueryRelevance([]string{"music", "hikes", "rugby"}, c))
	assert.Equal(t, 0, scoring.QueryRelevance(nil, c))
}
