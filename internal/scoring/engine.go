// Package scoring computes an explainable compatibility score for a
// (viewer, candidate) pair. Every function here is pure: the same two
// profile snapshots and the same instant always yield the same result.
package scoring

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/preference"
)

// Weights of each component in the total. They sum to 1 and are fixed at
// construction; requests cannot tune them.
type Weights struct {
	Interests    float64
	Campus       float64
	Course       float64
	Recency      float64
	Completeness float64
}

// DefaultWeights is the production weighting.
var DefaultWeights = Weights{
	Interests:    0.40,
	Campus:       0.20,
	Course:       0.10,
	Recency:      0.20,
	Completeness: 0.10,
}

const (
	// DefaultInterestCap is where shared interests stop counting linearly.
	DefaultInterestCap = 4
	// DefaultActiveWindow is how long a user counts as fully active.
	DefaultActiveWindow = 72 * time.Hour
	// DefaultHalfLife halves the recency contribution past the window.
	DefaultHalfLife = 7 * 24 * time.Hour

	recencyFloor = 0.05
	maxScore     = 100.0
)

// Breakdown holds the component sub-scores behind a total.
type Breakdown struct {
	SharedInterests     int      `json:"shared_interests"`
	SharedInterestNames []string `json:"shared_interest_names,omitempty"`
	SameCampus          bool     `json:"same_campus"`
	SameCourse          bool     `json:"same_course"`
	PreferenceStrength  float64  `json:"preference_strength"`
	InterestScore       float64  `json:"interest_score"`
	Recency             float64  `json:"recency"`
	Completeness        float64  `json:"completeness"`
}

// ScoredCandidate is a candidate profile plus its score and explanation.
type ScoredCandidate struct {
	Profile   *db.Profile
	Total     float64
	Breakdown Breakdown
	Reasons   []string
}

// UserID is the candidate's id, the stable tie-break key.
func (c ScoredCandidate) UserID() uint64 {
	if c.Profile == nil {
		return 0
	}
	return c.Profile.UserID
}

type Engine struct {
	weights      Weights
	interestCap  int
	activeWindow time.Duration
	halfLife     time.Duration
}

// NewEngine returns an engine with the production weights and thresholds.
func NewEngine() *Engine {
	return &Engine{
		weights:      DefaultWeights,
		interestCap:  DefaultInterestCap,
		activeWindow: DefaultActiveWindow,
		halfLife:     DefaultHalfLife,
	}
}

// Score computes the total and breakdown of candidate as seen by viewer.
//
// Behavior:
//   - total = 100 × preference × Σ(weight × component), rounded to 4 decimals
//   - preference is a gate: 1 when both sides accept each other, else 0
//   - course only counts when the university also matches
//
// Example:
//
//	res := engine.Score(viewer, candidate, time.Now())
//	res.Total              // 0..100
//	res.Breakdown.SharedInterests
func (e *Engine) Score(viewer, candidate *db.Profile, now time.Time) ScoredCandidate {
	names := SharedInterests(viewer.Interests, candidate.Interests)
	sameCampus := SameCampus(viewer.University, candidate.University)
	sameCourse := sameCampus && SameCourse(viewer.Course, candidate.Course)

	pref := PreferenceStrength(viewer, candidate)
	interest := InterestComponent(len(names), e.interestCap)
	recency := RecencyComponent(candidate.LastActive, now, e.activeWindow, e.halfLife)
	completeness := Completeness(candidate)

	weighted := e.weights.Interests*interest +
		e.weights.Recency*recency +
		e.weights.Completeness*completeness
	if sameCampus {
		weighted += e.weights.Campus
	}
	if sameCourse {
		weighted += e.weights.Course
	}

	res := ScoredCandidate{
		Profile: candidate,
		Total:   round4(maxScore * pref * weighted),
		Breakdown: Breakdown{
			SharedInterests:     len(names),
			SharedInterestNames: names,
			SameCampus:          sameCampus,
			SameCourse:          sameCourse,
			PreferenceStrength:  pref,
			InterestScore:       round4(interest),
			Recency:             round4(recency),
			Completeness:        round4(completeness),
		},
	}
	res.Reasons = reasons(res.Breakdown, candidate, e.activeWindow, now)
	return res
}

// ScoreAll scores every candidate concurrently. Output order matches input
// order regardless of which goroutine finishes first.
func (e *Engine) ScoreAll(ctx context.Context, viewer *db.Profile, candidates []db.Profile, now time.Time) ([]ScoredCandidate, error) {
	out := make([]ScoredCandidate, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.Score(viewer, &candidates[i], now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SharedInterests returns the case-normalised intersection, sorted.
func SharedInterests(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		if k := normalize(s); k != "" {
			set[k] = struct{}{}
		}
	}
	seen := make(map[string]struct{}, len(b))
	var out []string
	for _, s := range b {
		k := normalize(s)
		if k == "" {
			continue
		}
		if _, ok := set[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// InterestComponent maps a shared-interest count to [0,1]. Linear up to
// limit (reaching 0.8), then each extra interest adds half of what the
// previous one did.
func InterestComponent(n, limit int) float64 {
	if n <= 0 || limit <= 0 {
		return 0
	}
	if n <= limit {
		return float64(n) / float64(limit) * 0.8
	}
	return 0.8 + 0.2*(1-math.Pow(0.5, float64(n-limit)))
}

// SameCampus compares universities case-insensitively; blanks never match.
func SameCampus(a, b string) bool {
	a, b = normalize(a), normalize(b)
	return a != "" && a == b
}

// SameCourse compares courses case-insensitively; blanks never match.
func SameCourse(a, b string) bool {
	a, b = normalize(a), normalize(b)
	return a != "" && a == b
}

// PreferenceStrength is 1 when both sides accept each other's gender, else 0.
func PreferenceStrength(viewer, candidate *db.Profile) float64 {
	if preference.MutuallyCompatible(party(viewer), party(candidate)) {
		return 1
	}
	return 0
}

// RecencyComponent is 1 inside the active window, then decays with the
// given half-life down to a floor so dormant profiles still surface last.
func RecencyComponent(lastActive *time.Time, now time.Time, window, halfLife time.Duration) float64 {
	if lastActive == nil || lastActive.IsZero() {
		return recencyFloor
	}
	idle := now.Sub(*lastActive)
	if idle <= window {
		return 1
	}
	v := math.Pow(0.5, float64(idle-window)/float64(halfLife))
	return math.Max(v, recencyFloor)
}

// Completeness is the share of optional profile fields that are filled in.
func Completeness(p *db.Profile) float64 {
	filled := 0
	if strings.TrimSpace(p.ProfilePhoto) != "" || len(p.Photos) > 0 {
		filled++
	}
	if strings.TrimSpace(p.Bio) != "" {
		filled++
	}
	if strings.TrimSpace(p.Course) != "" {
		filled++
	}
	if len(p.Interests) > 0 {
		filled++
	}
	return float64(filled) / 4
}

// QueryRelevance counts how many query terms appear in the candidate's
// interests, course or bio.
func QueryRelevance(terms []string, p *db.Profile) int {
	if len(terms) == 0 {
		return 0
	}
	var hay strings.Builder
	for _, s := range p.Interests {
		hay.WriteString(normalize(s))
		hay.WriteByte(' ')
	}
	hay.WriteString(normalize(p.Course))
	hay.WriteByte(' ')
	hay.WriteString(normalize(p.Bio))
	text := hay.String()

	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func reasons(b Breakdown, p *db.Profile, window time.Duration, now time.Time) []string {
	var out []string
	switch {
	case b.SharedInterests == 1:
		out = append(out, fmt.Sprintf("You both like %s", b.SharedInterestNames[0]))
	case b.SharedInterests > 1:
		out = append(out, fmt.Sprintf("%d shared interests", b.SharedInterests))
	}
	if b.SameCampus {
		out = append(out, fmt.Sprintf("Also at %s", strings.TrimSpace(p.University)))
	}
	if b.SameCourse {
		out = append(out, "Same course")
	}
	if p.LastActive != nil && now.Sub(*p.LastActive) <= window {
		out = append(out, "Active recently")
	}
	return out
}

func party(p *db.Profile) preference.Party {
	return preference.Party{Gender: p.Gender, InterestedIn: p.InterestedIn}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
