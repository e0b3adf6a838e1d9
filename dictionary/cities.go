package dictionary

import "benefit-scraper/textnorm"

// City maps a normalized city name to the regions it may belong to. Most
// cities have a single region; a few names exist in more than one province.
type City struct {
	Key     string
	Regions []string
}

// Ambiguous reports whether the city name exists in several provinces.
func (c City) Ambiguous() bool { return len(c.Regions) > 1 }

var rawCities = map[string][]string{
	"san lorenzo":             {"Salta", "Santa Fe"},
	"santa rosa":              {"La Pampa", "Mendoza"},
	"lago puelo":              {"Chubut"},
	"bariloche":               {"Río Negro"},
	"san carlos de bariloche": {"Río Negro"},
	"dina huapi":              {"Río Negro"},
	"puerto madryn":           {"Chubut"},
	"trelew":                  {"Chubut"},
	"esquel":                  {"Chubut"},
	"comodoro rivadavia":      {"Chubut"},
	"ushuaia":                 {"Tierra del Fuego"},
	"el calafate":             {"Santa Cruz"},
	"el chaltén":              {"Santa Cruz"},
	"río gallegos":            {"Santa Cruz"},
	"merlo":                   {"San Luis"},
	"villa carlos paz":        {"Córdoba"},
	"carlos paz":              {"Córdoba"},
	"potrero de garay":        {"Córdoba"},
	"villa general belgrano":  {"Córdoba"},
	"san rafael":              {"Mendoza"},
	"tigre":                   {"Buenos Aires"},
	"mar del plata":           {"Buenos Aires"},
	"mdq":                     {"Buenos Aires"},
	"chapadmalal":             {"Buenos Aires"},
	"valeria del mar":         {"Buenos Aires"},
	"exaltación de la cruz":   {"Buenos Aires"},
	"la plata":                {"Buenos Aires"},
	"tandil":                  {"Buenos Aires"},
	"sierra de la ventana":    {"Buenos Aires"},
	"cariló":                  {"Buenos Aires"},
	"san bernardo":            {"Buenos Aires"},
	"san clemente del tuyú":   {"Buenos Aires"},
	"pinamar":                 {"Buenos Aires"},
	"monte hermoso":           {"Buenos Aires"},
	"necochea":                {"Buenos Aires"},
	"miramar":                 {"Buenos Aires"},
	"villa gesell":            {"Buenos Aires"},
	"villa gessell":           {"Buenos Aires"},
	"ramallo":                 {"Buenos Aires"},
	"bahía blanca":            {"Buenos Aires"},
	"baradero":                {"Buenos Aires"},
	"villa la angostura":      {"Neuquén"},
	"san martín de los andes": {"Neuquén"},
	"junín de los andes":      {"Neuquén"},
	"villa traful":            {"Neuquén"},
	"iguazú":                  {"Misiones"},
	"puerto iguazú":           {"Misiones"},
	"posadas":                 {"Misiones"},
	"rosario":                 {"Santa Fe"},
	"resistencia":             {"Chaco"},
	"concepción del uruguay":  {"Entre Ríos"},
	"federación":              {"Entre Ríos"},
	"san josé":                {"Entre Ríos"},
	"gualeguaychú":            {"Entre Ríos"},
	"concordia":               {"Entre Ríos"},
	"río hondo":               {"Santiago del Estero"},
	"termas de río hondo":     {"Santiago del Estero"},
	"tilcara":                 {"Jujuy"},
	"san salvador de jujuy":   {"Jujuy"},
	"villa unión":             {"La Rioja"},
}

// Cities is the city lookup table ordered longest key first, so
// "san carlos de bariloche" is tried before "bariloche".
var Cities = func() []City {
	out := make([]City, 0, len(rawCities))
	seen := make(map[string]struct{}, len(rawCities))
	for k, regions := range rawCities {
		n := textnorm.Normalize(k)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, City{Key: n, Regions: regions})
	}
	sortByKeyLength(out, func(i int) string { return out[i].Key })
	return out
}()

var cityIndex = func() map[string]City {
	m := make(map[string]City, len(Cities))
	for _, c := range Cities {
		m[c.Key] = c
	}
	return m
}()

// LookupCity finds a city by its exact normalized name.
func LookupCity(normalized string) (City, bool) {
	c, ok := cityIndex[normalized]
	return c, ok
}
