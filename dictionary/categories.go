// Package dictionary holds the static evidence tables used by the
// classifier: category labels and keywords, brand overrides, schema.org type
// mappings, provinces, aliases and the city lookup. Everything here is built
// once at package init and never mutated afterwards.
package dictionary

import (
	"regexp"

	"benefit-scraper/textnorm"
)

// Category labels. Order in Categories is the tie-break precedence.
const (
	CategoryLodging    = "Alojamiento"
	CategoryActivities = "Excursiones y Actividades"
	CategoryTransport  = "Transporte"
	CategoryFood       = "Gastronomía"
	CategoryRetail     = "Retail / Comercios"
	CategorySports     = "Deportes y Gimnasios"
	CategoryHealth     = "Salud"
	CategoryEducation  = "Educación"
	CategoryServices   = "Servicios"
	CategoryUnknown    = "Categoría desconocida"
)

// Categories lists every scoreable label in precedence order. The unknown
// label is terminal and never scored.
var Categories = []string{
	CategoryLodging,
	CategoryActivities,
	CategoryTransport,
	CategoryFood,
	CategoryRetail,
	CategorySports,
	CategoryHealth,
	CategoryEducation,
	CategoryServices,
}

var categoryIndex = func() map[string]int {
	m := make(map[string]int, len(Categories))
	for i, c := range Categories {
		m[c] = i
	}
	return m
}()

// CategoryRank returns the precedence of a label; unknown labels sort last.
func CategoryRank(c string) int {
	if i, ok := categoryIndex[c]; ok {
		return i
	}
	return len(Categories)
}

// IsKnownCategory reports whether c is one of the scoreable labels.
func IsKnownCategory(c string) bool {
	_, ok := categoryIndex[c]
	return ok
}

var rawKeywords = map[string][]string{
	CategoryLodging: {
		"alojamiento", "hospedaje", "estadia", "estadía", "descanso",
		"hotel", "hosteria", "hostería", "posada", "cabaña", "cabañas", "casa de campo",
		"departamento", "departamentos", "apart", "apart hotel", "apart-hotel", "duplex", "dúplex",
		"bungalow", "resort", "spa", "spa & resort", "lodge", "boutique",
		"habitacion", "habitaciones", "suite", "deluxe", "standard", "superior",
		"noche", "noches", "pension", "pensión", "media pension", "pensión completa", "all inclusive",
		"check in", "check-in", "check out", "check-out",
		"reserva", "reservas", "disponibilidad", "tarifa", "tarifas",
		"complejo turistico", "complejo turístico", "complejo", "tower", "class",
	},
	CategoryActivities: {
		"excursion", "excursión", "excursiones", "tour", "paseo", "itinerario", "visita", "entrada", "ticket",
		"parque", "termas", "avistaje", "catamaran", "catamarán", "fluvial", "museo", "circuito", "trekking",
		"aventura", "turismo", "viaje de bodas", "luna de miel", "honeymoon",
	},
	CategoryTransport: {
		"transfer", "traslado", "remis", "taxi", "alquiler de auto", "alquiler auto", "rent a car", "rentacar", "rent car",
		"pasaje", "micro", "bus", "omnibus", "ómnibus", "aeropuerto", "terminal",
		"hertz", "chevalier", "crucero del norte", "rutatlantica", "rutatlántica",
	},
	CategoryFood: {
		"restaurant", "restaurante", "parrilla", "resto bar", "bar",
		"cafe", "café", "cerveceria", "cervecería", "pizzeria", "pizzería",
		"almuerzo", "cena", "desayuno", "comida", "platos", "cocina", "menu", "menú",
		"gastronomia", "gastronomía", "buffet", "confiteria", "confitería",
	},
	CategoryRetail: {
		"tienda", "local", "indumentaria", "calzado", "boutique", "outlet", "descuento",
		"artesania", "artesanía", "compras", "shopping", "ropa", "zapatos", "accesorios",
	},
	CategorySports: {
		"gimnasio", "gym", "fitness", "entrenamiento", "natacion", "natación", "pilates", "yoga",
		"megatlon", "sport", "deporte", "crossfit", "spinning",
	},
	CategoryHealth: {
		"obra social", "clinica", "clínica", "sanatorio", "odontologia", "odontología", "farmacia",
		"optica", "óptica", "laboratorio", "medico", "médico", "hospital", "salud",
	},
	CategoryEducation: {
		"curso", "taller", "capacitacion", "capacitación", "instituto", "universidad", "idioma",
		"colegio", "escuela", "formacion", "formación", "educacion", "educación",
	},
	CategoryServices: {
		"jubilacion", "jubilación", "jubilarte", "jubilado", "jubilada", "pension", "pensión",
		"reafiliate", "reafiliación", "afiliación", "afiliado", "afiliada",
		"sepelio", "funeral", "cobertura", "seguro", "seguros", "aseguradora",
		"asesoramiento", "asesorar", "consultoría", "tramite", "trámite", "gestión",
		"beneficio social", "servicio social", "prestación", "asistencia",
	},
}

// keywords holds the normalized, de-duplicated keyword list per category.
var keywords = func() map[string][]string {
	out := make(map[string][]string, len(rawKeywords))
	for cat, list := range rawKeywords {
		out[cat] = normalizedSet(list)
	}
	return out
}()

// Keywords returns the normalized keyword list for a category.
func Keywords(category string) []string {
	return keywords[category]
}

// detailBlacklist lists template words that appear on every detail page and
// must not score from the body channel.
var detailBlacklist = map[string]struct{}{"menu": {}}

// IsDetailBlacklisted reports whether a normalized keyword is ignored in the
// detail channel.
func IsDetailBlacklisted(kw string) bool {
	_, ok := detailBlacklist[kw]
	return ok
}

// PatternRule maps a regular expression over normalized text to a category.
type PatternRule struct {
	Pattern  *regexp.Regexp
	Category string
}

// Brands are strong entity signals matched on normalized text.
var Brands = []PatternRule{
	{regexp.MustCompile(`\bmegatlon\b`), CategorySports},
	{regexp.MustCompile(`\bhertz\b`), CategoryTransport},
	{regexp.MustCompile(`\bchevalier\b|\bcrucero del norte\b|\brutatlantica\b`), CategoryTransport},
	{regexp.MustCompile(`\burbana\s*class\b`), CategoryLodging},
	{regexp.MustCompile(`\bpremium\s*tower\b`), CategoryLodging},
	{regexp.MustCompile(`\bhoward\s*johnson\b`), CategoryLodging},
	{regexp.MustCompile(`\bbagu\b`), CategoryLodging},
	{regexp.MustCompile(`\bsi\s*turismo\b`), CategoryActivities},
	{regexp.MustCompile(`\bel\s*surco\b`), CategoryServices},
}

// SchemaTypes maps schema.org @type values (lowercased) to categories. First
// match wins.
var SchemaTypes = []PatternRule{
	{regexp.MustCompile(`lodging|hotel|resort|inn|hostel`), CategoryLodging},
	{regexp.MustCompile(`restaurant|food|bar|cafe`), CategoryFood},
	{regexp.MustCompile(`gym|sports|fitness`), CategorySports},
	{regexp.MustCompile(`tour|attraction|travel|amusement|park`), CategoryActivities},
	{regexp.MustCompile(`medical|clinic|health|pharmacy`), CategoryHealth},
	{regexp.MustCompile(`school|college|course|education`), CategoryEducation},
	{regexp.MustCompile(`insurance|service|consulting|funeral`), CategoryServices},
}

// SchemaCategory returns the category for a schema.org type, if any.
func SchemaCategory(schemaType string) (string, bool) {
	t := textnorm.Normalize(schemaType)
	for _, r := range SchemaTypes {
		if r.Pattern.MatchString(t) {
			return r.Category, true
		}
	}
	return "", false
}

func normalizedSet(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		n := textnorm.Normalize(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
