package dictionary

import (
	"sort"

	"benefit-scraper/textnorm"
)

// Region sentinels.
const (
	RegionNational = "Nacional"
	RegionUnknown  = "Provincia desconocida"
)

// Provinces are the first-level subdivisions a listing can resolve to.
var Provinces = []string{
	"Buenos Aires", "CABA", "Catamarca", "Chaco", "Chubut", "Córdoba", "Corrientes", "Entre Ríos", "Formosa", "Jujuy",
	"La Pampa", "La Rioja", "Mendoza", "Misiones", "Neuquén", "Río Negro", "Salta", "San Juan", "San Luis", "Santa Cruz",
	"Santa Fe", "Santiago del Estero", "Tierra del Fuego", "Tucumán",
}

// NamedRegion pairs a normalized lookup key with its display region.
type NamedRegion struct {
	Key    string
	Region string
}

// RegionNames holds the normalized province names followed by the
// nationwide sentinel.
var RegionNames = func() []NamedRegion {
	out := make([]NamedRegion, 0, len(Provinces)+1)
	for _, p := range Provinces {
		out = append(out, NamedRegion{Key: textnorm.Normalize(p), Region: p})
	}
	return append(out, NamedRegion{Key: textnorm.Normalize(RegionNational), Region: RegionNational})
}()

var rawAliases = map[string]string{
	"bs as":                           "Buenos Aires",
	"bs. as.":                         "Buenos Aires",
	"pcia de buenos aires":            "Buenos Aires",
	"provincia de buenos aires":       "Buenos Aires",
	"buenos aires":                    "Buenos Aires",
	"caba":                            "CABA",
	"capital federal":                 "CABA",
	"ciudad autonoma de buenos aires": "CABA",
	"ciudad autónoma de buenos aires": "CABA",
	"rio negro":                       "Río Negro",
	"neuquen":                         "Neuquén",
	"sta fe":                          "Santa Fe",
	"sta. fe":                         "Santa Fe",
	"stgo del estero":                 "Santiago del Estero",
	"santiago del estero":             "Santiago del Estero",
	"tierra del fuego":                "Tierra del Fuego",
	"tdf":                             "Tierra del Fuego",
}

// Aliases are abbreviation and alternate spellings, longest key first so a
// short alias never shadows a longer one containing it.
var Aliases = func() []NamedRegion {
	out := make([]NamedRegion, 0, len(rawAliases))
	seen := make(map[string]struct{}, len(rawAliases))
	for k, v := range rawAliases {
		n := textnorm.Normalize(k)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, NamedRegion{Key: n, Region: v})
	}
	sortByKeyLength(out, func(i int) string { return out[i].Key })
	return out
}()

var aliasIndex = func() map[string]string {
	m := make(map[string]string, len(Aliases))
	for _, a := range Aliases {
		m[a.Key] = a.Region
	}
	return m
}()

var nameIndex = func() map[string]string {
	m := make(map[string]string, len(RegionNames))
	for _, r := range RegionNames {
		m[r.Key] = r.Region
	}
	return m
}()

// AliasRegion resolves a normalized string that is exactly an alias key.
func AliasRegion(normalized string) (string, bool) {
	r, ok := aliasIndex[normalized]
	return r, ok
}

// ExactRegion resolves a normalized string that is exactly a region name.
func ExactRegion(normalized string) (string, bool) {
	r, ok := nameIndex[normalized]
	return r, ok
}

// IsSpecificRegion reports whether r names a province rather than a sentinel.
func IsSpecificRegion(r string) bool {
	return r != "" && r != RegionNational && r != RegionUnknown
}

// RegionKeys returns the normalized keys that spell out region r: its own
// name plus every alias pointing at it.
func RegionKeys(r string) []string {
	var keys []string
	for _, n := range RegionNames {
		if n.Region == r {
			keys = append(keys, n.Key)
		}
	}
	for _, a := range Aliases {
		if a.Region == r {
			keys = append(keys, a.Key)
		}
	}
	return keys
}

// NationwideMarkers flag a listing as valid across the whole country.
var NationwideMarkers = normalizedSet([]string{
	"nacional", "todo el país", "toda la argentina", "nationwide", "entire country",
})

func sortByKeyLength[T any](s []T, key func(i int) string) {
	sort.SliceStable(s, func(i, j int) bool {
		ki, kj := key(i), key(j)
		if len(ki) != len(kj) {
			return len(ki) > len(kj)
		}
		return ki < kj
	})
}
