package domain

import "strings"

// Category is one of the eight canonical transaction categories. Every
// record, whatever its source, ends up with exactly one of these.
type Category string

const (
	CategoryGroceries     Category = "groceries"
	CategoryDining        Category = "dining"
	CategoryTransport     Category = "transport"
	CategoryUtilities     Category = "utilities"
	CategoryEntertainment Category = "entertainment"
	CategoryShopping      Category = "shopping"
	CategoryHealth        Category = "health"
	CategoryOther         Category = "other"
)

// Categories returns the canonical set in display order.
func Categories() []Category {
	return []Category{
		CategoryGroceries,
		CategoryDining,
		CategoryTransport,
		CategoryUtilities,
		CategoryEntertainment,
		CategoryShopping,
		CategoryHealth,
		CategoryOther,
	}
}

// categorySynonyms maps labels commonly produced by models or present in
// exported files onto the canonical set. Keys are normalized (lowercase,
// trimmed). Legacy taxonomy names (Food, Housing, Salary, ...) live here so
// older exports keep mapping cleanly.
var categorySynonyms = map[string]Category{
	"food":           CategoryGroceries,
	"grocery":        CategoryGroceries,
	"supermarket":    CategoryGroceries,
	"restaurant":     CategoryDining,
	"restaurants":    CategoryDining,
	"cafe":           CategoryDining,
	"eating out":     CategoryDining,
	"transportation": CategoryTransport,
	"travel":         CategoryTransport,
	"commute":        CategoryTransport,
	"housing":        CategoryUtilities,
	"rent":           CategoryUtilities,
	"bills":          CategoryUtilities,
	"utility":        CategoryUtilities,
	"fun":            CategoryEntertainment,
	"leisure":        CategoryEntertainment,
	"clothing":       CategoryShopping,
	"clothes":        CategoryShopping,
	"retail":         CategoryShopping,
	"medical":        CategoryHealth,
	"healthcare":     CategoryHealth,
	"pharmacy":       CategoryHealth,
	"salary":         CategoryOther,
	"education":      CategoryOther,
	"uncategorized":  CategoryOther,
}

// CoerceCategory clamps an arbitrary label onto the canonical set. Matching
// is case-insensitive and whitespace-tolerant; known synonyms are mapped to
// their nearest canonical category and everything unrecognized becomes
// CategoryOther.
func CoerceCategory(raw string) Category {
	norm := strings.ToLower(strings.TrimSpace(raw))
	for _, c := range Categories() {
		if norm == string(c) {
			return c
		}
	}
	if c, ok := categorySynonyms[norm]; ok {
		return c
	}
	return CategoryOther
}
