// Package matching runs the shared candidate pipeline: resolve the
// viewer's targets, fetch the pool, apply the reciprocal gate and score.
// Discovery, agent search and the weekly drop job all go through it.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/clock"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/metrics"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/preference"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
)

// DefaultPoolSize bounds the pool when none is configured.
const DefaultPoolSize = 200

// CandidateSource is the storage read the matcher depends on.
type CandidateSource interface {
	FindCandidates(ctx context.Context, q repository.CandidateQuery) ([]db.Profile, error)
}

type Matcher struct {
	source   CandidateSource
	engine   *scoring.Engine
	poolSize int
	clock    clock.Clock
}

func NewMatcher(source CandidateSource, engine *scoring.Engine, poolSize int, clk clock.Clock) *Matcher {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Matcher{source: source, engine: engine, poolSize: poolSize, clock: clk}
}

// Match returns every compatible candidate for viewer, scored but unranked.
//
// Behavior:
//   - The pool is prefiltered by the viewer's target genders unless the
//     viewer is open to everyone; unknown candidate genders pass.
//   - Candidates failing the reciprocal check in either direction are dropped.
//   - Output keeps pool order (user id asc); callers rank.
//
// Example:
//
//	scored, err := m.Match(ctx, viewerProfile)
//	ranked := ranking.Rank(scored)
func (m *Matcher) Match(ctx context.Context, viewer *db.Profile) ([]scoring.ScoredCandidate, error) {
	return m.MatchAt(ctx, viewer, m.clock.Now())
}

// MatchAt is Match scored at a given instant. Paged feeds use it so every
// page of one walk sees the same time-dependent scores.
func (m *Matcher) MatchAt(ctx context.Context, viewer *db.Profile, at time.Time) ([]scoring.ScoredCandidate, error) {
	q := repository.CandidateQuery{ViewerID: viewer.UserID, Limit: m.poolSize}
	if targets := preference.ResolveTargets(viewer.Gender, viewer.InterestedIn); !targets.IsAll() {
		q.Genders = targets.Strings()
		q.KnownGenders = preference.KnownGenders()
	}

	pool, err := m.source.FindCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	self := preference.Party{Gender: viewer.Gender, InterestedIn: viewer.InterestedIn}
	compatible := pool[:0]
	for _, c := range pool {
		if preference.MutuallyCompatible(self, preference.Party{Gender: c.Gender, InterestedIn: c.InterestedIn}) {
			compatible = append(compatible, c)
		}
	}

	scored, err := m.engine.ScoreAll(ctx, viewer, compatible, at)
	if err != nil {
		return nil, fmt.Errorf("score candidates for %d: %w", viewer.UserID, err)
	}
	for _, s := range scored {
		metrics.CompatibilityScores.Observe(s.Total)
	}
	return scored, nil
}
