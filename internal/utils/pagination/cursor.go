package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// ErrInvalidToken is returned for tokens that were not produced by Encode.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is the opaque keyset position we encode/decode.
// Score + UserID of the last returned candidate establish a stable cursor
// over an ordering of (score DESC, user_id ASC). AsOf pins the instant the
// first page was scored at; later pages must score at the same instant or
// time-dependent components shift every score under the cursor.
type Cursor struct {
	Score  float64 `json:"score"`
	UserID uint64  `json:"user_id"`
	AsOf   int64   `json:"as_of,omitempty"` // unix millis
}

// IsZero reports whether this is the first-page cursor.
func (c Cursor) IsZero() bool { return c.UserID == 0 }

// ScoredAt returns the instant to score this page at: the cursor's AsOf,
// or now (truncated to the millisecond so it survives a round trip) for a
// first page or a cursor without one.
func (c Cursor) ScoredAt(now time.Time) time.Time {
	if c.AsOf > 0 {
		return time.UnixMilli(c.AsOf).UTC()
	}
	return time.UnixMilli(now.UnixMilli()).UTC()
}

// After reports whether an item at (score, userID) sorts strictly after c.
func (c Cursor) After(score float64, userID uint64) bool {
	if c.IsZero() {
		return true
	}
	if score != c.Score {
		return score < c.Score
	}
	return userID > c.UserID
}

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}
