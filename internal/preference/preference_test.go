package preference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTargets(t *testing.T) {
	cases := []struct {
		name         string
		gender       string
		interestedIn []string
		want         Targets
	}{
		{"male fallback", "male", nil, Targets{Female}},
		{"female fallback", "female", []string{}, Targets{Male}},
		{"unknown fallback widens", "", nil, Targets{Male, Female, Other}},
		{"other fallback widens", "non-binary", nil, Targets{Male, Female, Other}},
		{"everyone sentinel", "male", []string{"women", "Both"}, Targets{Male, Female, Other}},
		{"all sentinel", "female", []string{" ALL "}, Targets{Male, Female, Other}},
		{"plural forms normalized", "male", []string{"men", "Women"}, Targets{Male, Female}},
		{"deduplicated", "female", []string{"women", "female", "Woman"}, Targets{Female}},
		{"garbage falls back", "female", []string{"  ", "cats"}, Targets{Male}},
		{"canonical order", "male", []string{"other", "female"}, Targets{Female, Other}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveTargets(tc.gender, tc.interestedIn))
		})
	}
}

func TestNormalizeGender_NeverFails(t *testing.T) {
	assert.Equal(t, Male, NormalizeGender(" Men "))
	assert.Equal(t, Female, NormalizeGender("WOMAN"))
	assert.Equal(t, Other, NormalizeGender("nonbinary"))
	assert.Equal(t, Unknown, NormalizeGender("🦄"))
	assert.Equal(t, Unknown, NormalizeGender(""))
}

// male viewer with no stated interest: a female candidate is reciprocal-eligible, a male one is not
func TestReciprocal_MaleViewerDefaults(t *testing.T) {
	viewer := Party{Gender: "male", InterestedIn: []string{}}
	assert.Equal(t, Targets{Female}, ResolveTargets(viewer.Gender, viewer.InterestedIn))

	female := Party{Gender: "female"}
	male := Party{Gender: "male", InterestedIn: []string{"everyone"}}

	assert.True(t, MutuallyCompatible(viewer, female))
	assert.False(t, MutuallyCompatible(viewer, male))
}

func TestIsReciprocalMatch(t *testing.T) {
	// unknown viewer never excludes
	assert.True(t, IsReciprocalMatch("", "female", []string{"women"}))
	assert.True(t, IsReciprocalMatch("female", "female", []string{"women"}))
	assert.False(t, IsReciprocalMatch("male", "female", []string{"women"}))
	// one-directional: candidate accepts viewer, viewer preferences not consulted
	assert.True(t, IsReciprocalMatch("male", "male", []string{"men"}))
}

func TestMutuallyCompatible_IsSymmetric(t *testing.T) {
	parties := []Party{
		{Gender: "male"},
		{Gender: "female"},
		{Gender: "female", InterestedIn: []string{"women"}},
		{Gender: "male", InterestedIn: []string{"both"}},
		{Gender: "other", InterestedIn: []string{"men"}},
		{Gender: ""},
	}
	for _, a := range parties {
		for _, b := range parties {
			assert.Equal(t, MutuallyCompatible(a, b), MutuallyCompatible(b, a), "%+v vs %+v", a, b)
		}
	}
}

func TestMutuallyCompatible_UnsetGenderIsPermissive(t *testing.T) {
	unset := Party{Gender: ""}
	assert.True(t, MutuallyCompatible(Party{Gender: "male"}, unset))
	assert.True(t, MutuallyCompatible(unset, Party{Gender: "female", InterestedIn: []string{"women"}}))
}

func TestTargets_IsAll(t *testing.T) {
	assert.True(t, All().IsAll())
	assert.False(t, Targets{Male, Female}.IsAll())
}
