// Package preference resolves which genders a user is open to and checks
// that two users accept each other.
package preference

import "strings"

type Gender string

const (
	Male    Gender = "male"
	Female  Gender = "female"
	Other   Gender = "other"
	Unknown Gender = "unknown"
)

// Targets is a de-duplicated set of accepted genders in canonical order.
type Targets []Gender

var allGenders = Targets{Male, Female, Other}

// All returns the full gender set.
func All() Targets {
	out := make(Targets, len(allGenders))
	copy(out, allGenders)
	return out
}

func (t Targets) Contains(g Gender) bool {
	for _, x := range t {
		if x == g {
			return true
		}
	}
	return false
}

// IsAll reports whether every known gender is accepted.
func (t Targets) IsAll() bool {
	for _, g := range allGenders {
		if !t.Contains(g) {
			return false
		}
	}
	return true
}

func (t Targets) Strings() []string {
	out := make([]string, len(t))
	for i, g := range t {
		out[i] = string(g)
	}
	return out
}

// KnownGenders are the values a stored gender must equal exactly to be
// treated as known by storage-level prefilters.
func KnownGenders() []string { return allGenders.Strings() }

var everyone = map[string]struct{}{
	"both":     {},
	"all":      {},
	"everyone": {},
	"anyone":   {},
	"any":      {},
}

// NormalizeGender maps free-form input to a Gender. It never fails:
// unrecognised values become Unknown, which widens rather than narrows.
func NormalizeGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "man", "men", "m", "guy", "guys":
		return Male
	case "female", "woman", "women", "f", "girl", "girls", "lady", "ladies":
		return Female
	case "other", "non-binary", "nonbinary", "non binary", "nb":
		return Other
	default:
		return Unknown
	}
}

// ResolveTargets derives the genders a user accepts.
//
// Behavior, in priority order:
//   - any "everyone" sentinel (both/all/everyone/...) → full set
//   - otherwise the recognised entries of interestedIn, de-duplicated
//   - otherwise a fallback on userGender: male → {female},
//     female → {male}, anything else → full set
//
// Example:
//
//	ResolveTargets("male", nil)                  // {female}
//	ResolveTargets("female", []string{"Women"})  // {female}
func ResolveTargets(userGender string, interestedIn []string) Targets {
	for _, raw := range interestedIn {
		if _, ok := everyone[strings.ToLower(strings.TrimSpace(raw))]; ok {
			return All()
		}
	}

	var out Targets
	for _, raw := range interestedIn {
		g := NormalizeGender(raw)
		if g == Unknown || out.Contains(g) {
			continue
		}
		out = append(out, g)
	}
	if len(out) > 0 {
		return canonical(out)
	}

	switch NormalizeGender(userGender) {
	case Male:
		return Targets{Female}
	case Female:
		return Targets{Male}
	default:
		return All()
	}
}

// IsReciprocalMatch reports whether the viewer's gender is accepted by the
// candidate. One-directional: callers wanting both directions use
// MutuallyCompatible. An unknown viewer gender never excludes.
func IsReciprocalMatch(viewerGender, candidateGender string, candidateInterestedIn []string) bool {
	vg := NormalizeGender(viewerGender)
	if vg == Unknown {
		return true
	}
	return ResolveTargets(candidateGender, candidateInterestedIn).Contains(vg)
}

// Party is the slice of a profile the resolver needs.
type Party struct {
	Gender       string
	InterestedIn []string
}

// MutuallyCompatible applies IsReciprocalMatch in both directions.
func MutuallyCompatible(a, b Party) bool {
	return IsReciprocalMatch(a.Gender, b.Gender, b.InterestedIn) &&
		IsReciprocalMatch(b.Gender, a.Gender, a.InterestedIn)
}

func canonical(t Targets) Targets {
	out := make(Targets, 0, len(t))
	for _, g := range allGenders {
		if t.Contains(g) {
			out = append(out, g)
		}
	}
	return out
}
