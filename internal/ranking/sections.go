package ranking

import (
	"sort"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
)

type SectionType string

const (
	SectionRecommended      SectionType = "recommended"
	SectionSimilarInterests SectionType = "similar_interests"
	SectionCampus           SectionType = "campus"
)

// Section is a named, independently ordered slice of the feed.
type Section struct {
	ID       string
	Title    string
	Type     SectionType
	Profiles []scoring.ScoredCandidate
	HasMore  bool
}

type SectionOptions struct {
	// Size caps every section.
	Size int
	// StrictDedupe keeps a candidate in the first section that claims it.
	// Off by default: the sections mean different things to the viewer.
	StrictDedupe bool
}

// BuildSections slices scored candidates into the recommended,
// similar-interests and campus sections. Empty sections are omitted.
//
// Behavior:
//   - recommended: total desc, id asc
//   - similar_interests: shared > 0; shared desc, then total desc, id asc
//   - campus: same university as the viewer; total desc, id asc
//   - a candidate may appear in several sections unless StrictDedupe is set
func BuildSections(viewer *db.Profile, scored []scoring.ScoredCandidate, opts SectionOptions) []Section {
	ranked := Rank(scored)
	claimed := map[uint64]struct{}{}

	take := func(list []scoring.ScoredCandidate) ([]scoring.ScoredCandidate, bool) {
		out := make([]scoring.ScoredCandidate, 0, opts.Size)
		for _, c := range list {
			if len(out) == opts.Size {
				break
			}
			if opts.StrictDedupe {
				if _, ok := claimed[c.UserID()]; ok {
					continue
				}
			}
			out = append(out, c)
		}
		if opts.StrictDedupe {
			for _, c := range out {
				claimed[c.UserID()] = struct{}{}
			}
		}
		return out, opts.Size > 0 && len(out) == opts.Size
	}

	var sections []Section
	add := func(typ SectionType, title string, list []scoring.ScoredCandidate) {
		profiles, more := take(list)
		if len(profiles) == 0 {
			return
		}
		sections = append(sections, Section{
			ID:       string(typ),
			Title:    title,
			Type:     typ,
			Profiles: profiles,
			HasMore:  more,
		})
	}

	add(SectionRecommended, "Recommended for you", ranked)

	var similar []scoring.ScoredCandidate
	for _, c := range ranked {
		if c.Breakdown.SharedInterests > 0 {
			similar = append(similar, c)
		}
	}
	sort.SliceStable(similar, func(i, j int) bool {
		a, b := similar[i], similar[j]
		if a.Breakdown.SharedInterests != b.Breakdown.SharedInterests {
			return a.Breakdown.SharedInterests > b.Breakdown.SharedInterests
		}
		return byTotal(a, b)
	})
	add(SectionSimilarInterests, "Similar interests", similar)

	var campus []scoring.ScoredCandidate
	for _, c := range ranked {
		if scoring.SameCampus(viewer.University, c.Profile.University) {
			campus = append(campus, c)
		}
	}
	add(SectionCampus, "From your campus", campus)

	return sections
}
