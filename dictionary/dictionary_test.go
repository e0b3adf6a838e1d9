package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordsAreNormalizedAndUnique(t *testing.T) {
	for _, cat := range Categories {
		kws := Keywords(cat)
		require.NotEmpty(t, kws, cat)
		seen := map[string]bool{}
		for _, kw := range kws {
			assert.False(t, seen[kw], "duplicate keyword %q in %s", kw, cat)
			seen[kw] = true
		}
	}
	assert.Contains(t, Keywords(CategoryLodging), "hosteria")
	assert.NotContains(t, Keywords(CategoryLodging), "hostería")
}

func TestCategoryRank(t *testing.T) {
	assert.Equal(t, 0, CategoryRank(CategoryLodging))
	assert.Less(t, CategoryRank(CategoryFood), CategoryRank(CategoryServices))
	assert.Equal(t, len(Categories), CategoryRank(CategoryUnknown))
	assert.False(t, IsKnownCategory(CategoryUnknown))
}

func TestAliasesLongestFirst(t *testing.T) {
	for i := 1; i < len(Aliases); i++ {
		assert.GreaterOrEqual(t, len(Aliases[i-1].Key), len(Aliases[i].Key))
	}
	r, ok := AliasRegion("ciudad autonoma de buenos aires")
	require.True(t, ok)
	assert.Equal(t, "CABA", r)
}

func TestCitiesLongestFirst(t *testing.T) {
	for i := 1; i < len(Cities); i++ {
		assert.GreaterOrEqual(t, len(Cities[i-1].Key), len(Cities[i].Key))
	}
	c, ok := LookupCity("ushuaia")
	require.True(t, ok)
	assert.Equal(t, []string{"Tierra del Fuego"}, c.Regions)

	c, ok = LookupCity("santa rosa")
	require.True(t, ok)
	assert.True(t, c.Ambiguous())
}

func TestSchemaCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"LodgingBusiness", CategoryLodging, true},
		{"Restaurant", CategoryFood, true},
		{"ExerciseGym", CategorySports, true},
		{"TouristAttraction", CategoryActivities, true},
		{"WebPage", "", false},
	}
	for _, tt := range tests {
		got, ok := SchemaCategory(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRegionKeys(t *testing.T) {
	keys := RegionKeys("CABA")
	assert.Contains(t, keys, "caba")
	assert.Contains(t, keys, "capital federal")
	assert.True(t, IsSpecificRegion("Salta"))
	assert.False(t, IsSpecificRegion(RegionNational))
	assert.False(t, IsSpecificRegion(RegionUnknown))
}
