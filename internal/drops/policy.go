// Package drops builds, serves and expires the weekly "drop": a frozen,
// ranked set of matches handed to each user once a week.
package drops

import (
	"time"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
)

// ApplyExpiryPolicy returns drop with its status forced to expired once
// expires_at has passed. It never mutates its input and applying it twice
// is the same as applying it once.
func ApplyExpiryPolicy(drop db.WeeklyDrop, now time.Time) db.WeeklyDrop {
	if IsOverdue(drop, now) {
		drop.Status = db.DropExpired
	}
	return drop
}

// IsOverdue reports whether drop should be expired but is not yet.
func IsOverdue(drop db.WeeklyDrop, now time.Time) bool {
	return drop.Status != db.DropExpired && !now.Before(drop.ExpiresAt)
}
