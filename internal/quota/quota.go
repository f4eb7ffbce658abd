// Package quota derives the per-user daily agent-search allowance from the
// analytics event log. There is no separate counter to drift.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/clock"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
)

// DefaultDailyLimit applies when no positive limit is configured.
const DefaultDailyLimit = 10

// CountedEvents are the event types that consume quota.
var CountedEvents = []string{db.EventAgentSearch, db.EventAgentRefine}

// EventLog is the storage the quota is computed from.
type EventLog interface {
	CountEventsSince(ctx context.Context, userID uint64, types []string, since time.Time) (int64, error)
	RecordEvent(ctx context.Context, ev *db.AgentAnalyticsEvent) error
}

// Quota is a user's allowance for the current UTC day.
type Quota struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	IsExhausted bool      `json:"is_exhausted"`
	ResetsAt    time.Time `json:"resets_at"`
}

type Service struct {
	events EventLog
	limit  int
	clock  clock.Clock
}

// NewService builds a quota service. A non-positive limit falls back to
// DefaultDailyLimit; config validation rejects it before we get here.
func NewService(events EventLog, limit int, clk clock.Clock) *Service {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Service{events: events, limit: limit, clock: clk}
}

// Limit is the configured daily allowance.
func (s *Service) Limit() int { return s.limit }

// Get returns the user's quota as of now.
//
// Behavior:
//   - used counts agent_search and agent_refine events since 00:00 UTC
//   - remaining = max(limit - used, 0)
//   - resets_at is the next 00:00 UTC
func (s *Service) Get(ctx context.Context, userID uint64) (Quota, error) {
	now := s.clock.Now().UTC()
	start := StartOfDay(now)

	used, err := s.events.CountEventsSince(ctx, userID, CountedEvents, start)
	if err != nil {
		return Quota{}, fmt.Errorf("count agent events for %d: %w", userID, err)
	}

	q := Quota{
		Used:     int(used),
		Limit:    s.limit,
		ResetsAt: start.Add(24 * time.Hour),
	}
	q.Remaining = max(q.Limit-q.Used, 0)
	q.IsExhausted = q.Remaining == 0
	return q, nil
}

// Record appends one usage event stamped with the service clock.
func (s *Service) Record(ctx context.Context, userID uint64, eventType, query string, resultCount int) error {
	ev := &db.AgentAnalyticsEvent{
		UserID:      userID,
		EventType:   eventType,
		Query:       truncate(query, 500),
		ResultCount: resultCount,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.events.RecordEvent(ctx, ev); err != nil {
		return fmt.Errorf("record %s for %d: %w", eventType, userID, err)
	}
	return nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
