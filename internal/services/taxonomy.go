package services

import (
	"sort"
	"strings"
)

// Genders accepted on products.
var Genders = []string{"men", "women"}

// Categories maps each category to its allowed subcategories.
var Categories = map[string][]string{
	"clothing": {"tshirt", "jeans", "kurti", "saree", "jacket", "shirt", "trouser", "shorts", "kurta"},
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateGender normalizes and checks a gender value.
func ValidateGender(gender string) (string, error) {
	g := normalizeTerm(gender)
	for _, allowed := range Genders {
		if g == allowed {
			return g, nil
		}
	}
	return "", newError(ErrValidation, "gender must be 'men' or 'women'")
}

// ValidateTaxonomy normalizes and checks a (category, subcategory) pair.
func ValidateTaxonomy(category, subcategory string) (string, string, error) {
	cat := normalizeTerm(category)
	sub := normalizeTerm(subcategory)
	allowed, ok := Categories[cat]
	if !ok {
		return "", "", newError(ErrValidation, "category must be one of: %s", strings.Join(categoryNames(), ", "))
	}
	for _, s := range allowed {
		if s == sub {
			return cat, sub, nil
		}
	}
	return "", "", newError(ErrValidation, "subcategory must be one of: %s", strings.Join(allowed, ", "))
}

func categoryNames() []string {
	names := make([]string, 0, len(Categories))
	for k := range Categories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
