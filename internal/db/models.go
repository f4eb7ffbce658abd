package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is the identity row. Soft-deleted or inactive users never show up
// in any candidate pool.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"not null"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// Profile holds a user's matchable attributes.
//
// Indexes:
//   - idx_profiles_discoverable(is_visible, profile_completed, discovery_paused)
//     Narrows the candidate scan to discoverable rows.
//   - idx_profiles_gender(gender)
//     Supports the optional target-gender prefilter.
//
// List-valued fields (photos, interested_in, interests) are JSON columns.
type Profile struct {
	UserID           uint64                      `gorm:"primaryKey;autoIncrement:false"`
	Name             string                      `gorm:"size:100;not null"`
	Age              int                         `gorm:"not null;default:0"`
	Bio              string                      `gorm:"size:1000"`
	ProfilePhoto     string                      `gorm:"size:512"`
	Photos           datatypes.JSONSlice[string] `gorm:"type:json"`
	Gender           string                      `gorm:"size:32;index:idx_profiles_gender"`
	InterestedIn     datatypes.JSONSlice[string] `gorm:"type:json"`
	University       string                      `gorm:"size:160"`
	Course           string                      `gorm:"size:160"`
	YearOfStudy      int                         `gorm:"not null;default:0"`
	Interests        datatypes.JSONSlice[string] `gorm:"type:json"`
	IsVisible        bool                        `gorm:"not null;index:idx_profiles_discoverable,priority:1"`
	ProfileCompleted bool                        `gorm:"not null;index:idx_profiles_discoverable,priority:2"`
	DiscoveryPaused  bool                        `gorm:"not null;index:idx_profiles_discoverable,priority:3"`
	LastActive       *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// Swipe is a directed like/pass edge. Written by the swipe service; read
// here only to exclude already-evaluated candidates in both directions.
//
// Composite PK: (SwiperID, SwipedID)
//
// Indexes:
//   - idx_swipes_swiped(swiped_id, swiper_id)
//     Serves the reverse-direction exclusion lookup.
type Swipe struct {
	SwiperID  uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_swipes_swiped,priority:2"`
	SwipedID  uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_swipes_swiped,priority:1"`
	IsLike    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Block is a directed edge whose effect is symmetric: neither party sees
// the other.
type Block struct {
	BlockerID uint64    `gorm:"primaryKey;autoIncrement:false"`
	BlockedID uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_blocks_blocked"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// DropStatus is the lifecycle state of a weekly drop.
type DropStatus string

const (
	DropPending   DropStatus = "pending"
	DropDelivered DropStatus = "delivered"
	DropOpened    DropStatus = "opened"
	DropExpired   DropStatus = "expired"
)

// DropMatch is one ranked candidate frozen inside a WeeklyDrop snapshot.
type DropMatch struct {
	UserID          uint64   `json:"user_id"`
	Name            string   `json:"name"`
	Age             int      `json:"age,omitempty"`
	ProfilePhoto    string   `json:"profile_photo,omitempty"`
	University      string   `json:"university,omitempty"`
	Course          string   `json:"course,omitempty"`
	Score           float64  `json:"score"`
	SharedInterests []string `json:"shared_interests,omitempty"`
	Reasons         []string `json:"reasons,omitempty"`
}

// WeeklyDrop is a persisted snapshot of ranked matches for one user.
//
// Unique index uq_drop_user_number(user_id, drop_number) keeps two
// concurrent job runs from both creating drop N+1 for the same user.
// Index idx_drop_status_expires(status, expires_at) serves the expiry sweep.
type WeeklyDrop struct {
	ID             string                         `gorm:"primaryKey;size:36"`
	UserID         uint64                         `gorm:"not null;uniqueIndex:uq_drop_user_number,priority:1"`
	DropNumber     int                            `gorm:"not null;uniqueIndex:uq_drop_user_number,priority:2"`
	Status         DropStatus                     `gorm:"size:16;not null;index:idx_drop_status_expires,priority:1"`
	MatchData      datatypes.JSONSlice[DropMatch] `gorm:"type:json"`
	MatchedUserIDs datatypes.JSONSlice[uint64]    `gorm:"type:json"`
	CreatedAt      time.Time                      `gorm:"autoCreateTime"`
	DeliveredAt    *time.Time
	OpenedAt       *time.Time
	ExpiresAt      time.Time `gorm:"not null;index:idx_drop_status_expires,priority:2"`
}

// Agent analytics event types that count against the daily search quota.
const (
	EventAgentSearch = "agent_search"
	EventAgentRefine = "agent_refine"
)

// AgentAnalyticsEvent is the append-only log the search quota is derived from.
type AgentAnalyticsEvent struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UserID      uint64    `gorm:"not null;index:idx_agent_events_user_type_created,priority:1"`
	EventType   string    `gorm:"size:32;not null;index:idx_agent_events_user_type_created,priority:2"`
	Query       string    `gorm:"size:500"`
	ResultCount int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null;index:idx_agent_events_user_type_created,priority:3"`
}

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&User{},
		&Profile{},
		&Swipe{},
		&Block{},
		&WeeklyDrop{},
		&AgentAnalyticsEvent{},
	}
}
