// Package ranking orders scored candidates, slices them into feed
// sections and pages through them with keyset cursors.
package ranking

import (
	"sort"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/utils/pagination"
)

// Rank returns a new slice ordered by total score descending, ties broken
// by user id ascending. A user appearing more than once keeps only their
// best-ranked entry.
func Rank(cands []scoring.ScoredCandidate) []scoring.ScoredCandidate {
	out := make([]scoring.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Profile != nil {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return byTotal(out[i], out[j])
	})
	return dedupe(out)
}

// Page is one slice of a ranked list.
type Page struct {
	Items     []scoring.ScoredCandidate
	NextToken string
	HasMore   bool
}

// Paginate returns up to size items that sort after cursor. HasMore is
// true when the page came back full; that is slightly conservative at the
// exact boundary, where the next page is simply empty. The next token
// carries cursor.AsOf forward so every page is scored at the same instant.
//
// Example:
//
//	at := time.Now()
//	page, _ := ranking.Paginate(ranked, pagination.Cursor{AsOf: at.UnixMilli()}, 20)
//	c, _ := pagination.Decode(page.NextToken)
//	next, _ := ranking.Paginate(rankedAt(c.ScoredAt(time.Now())), c, 20)
func Paginate(ranked []scoring.ScoredCandidate, cursor pagination.Cursor, size int) (Page, error) {
	if size <= 0 {
		return Page{}, nil
	}

	items := make([]scoring.ScoredCandidate, 0, size)
	for _, c := range ranked {
		if !cursor.After(c.Total, c.UserID()) {
			continue
		}
		items = append(items, c)
		if len(items) == size {
			break
		}
	}

	page := Page{Items: items, HasMore: len(items) == size}
	if page.HasMore {
		last := items[len(items)-1]
		var err error
		page.NextToken, err = pagination.Encode(pagination.Cursor{Score: last.Total, UserID: last.UserID(), AsOf: cursor.AsOf})
		if err != nil {
			return Page{}, err
		}
	}
	return page, nil
}

func byTotal(a, b scoring.ScoredCandidate) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	return a.UserID() < b.UserID()
}

func dedupe(sorted []scoring.ScoredCandidate) []scoring.ScoredCandidate {
	seen := make(map[uint64]struct{}, len(sorted))
	out := sorted[:0]
	for _, c := range sorted {
		if _, ok := seen[c.UserID()]; ok {
			continue
		}
		seen[c.UserID()] = struct{}{}
		out = append(out, c)
	}
	return out
}
