// Package agent serves natural-language "wingman" searches: guardrail
// first, then the daily quota, then the shared matching pipeline.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/guardrail"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/metrics"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/quota"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/ranking"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
)

type Status string

const (
	StatusOK             Status = "ok"
	StatusRejected       Status = "rejected"
	StatusQuotaExhausted Status = "quota_exhausted"
)

// QuotaExhaustedMessage is shown instead of results once the day's
// allowance is gone.
const QuotaExhaustedMessage = "You've used all your searches for today. Come back tomorrow for more."

// DefaultResultLimit caps results when no limit is configured.
const DefaultResultLimit = 10

// CandidateMatcher produces the scored, reciprocal pool for a viewer.
type CandidateMatcher interface {
	Match(ctx context.Context, viewer *db.Profile) ([]scoring.ScoredCandidate, error)
}

// Quotas is the slice of the quota service a search needs.
type Quotas interface {
	Get(ctx context.Context, userID uint64) (quota.Quota, error)
	Record(ctx context.Context, userID uint64, eventType, query string, resultCount int) error
}

// Request is one agent search. Refine marks a follow-up on a previous
// search; it is billed the same but logged under its own event type.
type Request struct {
	Query  string
	Refine bool
	Limit  int
}

// Result is the terminal outcome of a search. Results is empty unless
// Status is StatusOK.
type Result struct {
	Status   Status
	Decision guardrail.Decision
	Quota    quota.Quota
	Message  string
	Results  []scoring.ScoredCandidate
}

type Service struct {
	quotas      Quotas
	matcher     CandidateMatcher
	resultLimit int
}

func NewService(quotas Quotas, matcher CandidateMatcher, resultLimit int) *Service {
	if resultLimit <= 0 {
		resultLimit = DefaultResultLimit
	}
	return &Service{quotas: quotas, matcher: matcher, resultLimit: resultLimit}
}

// Evaluate runs the guardrail and counts rejections by code.
func (s *Service) Evaluate(raw string) guardrail.Decision {
	d := guardrail.Evaluate(raw)
	if !d.Allowed {
		metrics.GuardrailRejections.WithLabelValues(string(d.Code)).Inc()
	}
	return d
}

// Quota returns the viewer's allowance for today.
func (s *Service) Quota(ctx context.Context, userID uint64) (quota.Quota, error) {
	return s.quotas.Get(ctx, userID)
}

// Search runs a guarded, quota-limited search for viewer.
//
// Behavior:
//   - A guardrail rejection returns StatusRejected and consumes no quota.
//   - An exhausted quota returns StatusQuotaExhausted before any scoring.
//   - Candidates matching at least one query term are ranked by relevance
//     first; if none match, plain ranking is used.
//   - The usage event is written right after results are ready; if that
//     write fails the whole search fails and nothing is returned.
//
// Example:
//
//	res, err := svc.Search(ctx, viewer, agent.Request{Query: "someone into jazz"})
//	res.Status  // "ok"
//	res.Quota.Remaining
func (s *Service) Search(ctx context.Context, viewer *db.Profile, req Request) (Result, error) {
	log := logger.FromContext(ctx)

	decision := s.Evaluate(req.Query)
	if !decision.Allowed {
		log.Info("agent query rejected", "user_id", viewer.UserID, "code", decision.Code)
		metrics.AgentSearches.WithLabelValues(string(StatusRejected)).Inc()
		return Result{Status: StatusRejected, Decision: decision, Message: decision.UserMessage}, nil
	}

	q, err := s.quotas.Get(ctx, viewer.UserID)
	if err != nil {
		return Result{}, err
	}
	if q.IsExhausted {
		log.Info("agent quota exhausted", "user_id", viewer.UserID, "used", q.Used, "limit", q.Limit)
		metrics.QuotaExhausted.Inc()
		metrics.AgentSearches.WithLabelValues(string(StatusQuotaExhausted)).Inc()
		return Result{Status: StatusQuotaExhausted, Decision: decision, Quota: q, Message: QuotaExhaustedMessage}, nil
	}

	scored, err := s.matcher.Match(ctx, viewer)
	if err != nil {
		return Result{}, err
	}

	limit := s.resultLimit
	if req.Limit > 0 && req.Limit < limit {
		limit = req.Limit
	}
	results := rankByRelevance(Terms(decision.NormalizedQuery), scored)
	if len(results) > limit {
		results = results[:limit]
	}

	event := db.EventAgentSearch
	if req.Refine {
		event = db.EventAgentRefine
	}
	if err := s.quotas.Record(ctx, viewer.UserID, event, decision.NormalizedQuery, len(results)); err != nil {
		return Result{}, fmt.Errorf("record agent usage: %w", err)
	}

	q.Used++
	q.Remaining = max(q.Limit-q.Used, 0)
	q.IsExhausted = q.Remaining == 0

	metrics.AgentSearches.WithLabelValues(string(StatusOK)).Inc()
	log.Debug("agent search served", "user_id", viewer.UserID, "results", len(results), "remaining", q.Remaining)

	return Result{Status: StatusOK, Decision: decision, Quota: q, Results: results}, nil
}

var stopwords = map[string]struct{}{
	"and": {}, "the": {}, "who": {}, "with": {}, "into": {}, "someone": {}, "somebody": {},
	"looking": {}, "for": {}, "likes": {}, "like": {}, "loves": {}, "love": {}, "that": {},
	"person": {}, "people": {}, "guy": {}, "girl": {}, "want": {}, "find": {}, "from": {},
	"also": {}, "really": {}, "about": {}, "are": {}, "has": {}, "have": {}, "enjoys": {},
}

// Terms splits a normalized query into lower-cased search terms of at
// least three letters, minus filler words.
func Terms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func rankByRelevance(terms []string, scored []scoring.ScoredCandidate) []scoring.ScoredCandidate {
	ranked := ranking.Rank(scored)
	if len(terms) == 0 {
		return ranked
	}

	relevance := make(map[uint64]int, len(ranked))
	matched := make([]scoring.ScoredCandidate, 0, len(ranked))
	for _, c := range ranked {
		if n := scoring.QueryRelevance(terms, c.Profile); n > 0 {
			relevance[c.UserID()] = n
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return ranked
	}

	// ranked is already total desc, id asc; a stable sort on relevance keeps that as the tie-break
	sort.SliceStable(matched, func(i, j int) bool {
		return relevance[matched[i].UserID()] > relevance[matched[j].UserID()]
	})
	return matched
}
